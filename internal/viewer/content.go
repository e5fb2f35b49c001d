// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/viewer/content.go
// Summary: Materializes buffer rows for display and search.

package viewer

import (
	"github.com/framegrace/texelhist/histbuf"
	"github.com/framegrace/texelhist/histfmt"
)

// displayRow is one screen row of the materialized history. Cells is a
// subslice of its logical line's cell array, so highlighting the line
// shows through here without a second copy.
type displayRow struct {
	cells []histbuf.Cell
	line  int // the logical line this row belongs to, oldest line = 0
}

// content is a display snapshot of a history buffer. It owns copies of
// the buffer's cells, so buffer mutations never invalidate it.
type content struct {
	rows      []displayRow
	lineStart []int // first display row of each logical line
}

// buildContent copies every stored row out of hb, grouped into logical
// lines, optionally highlighted. Rows keep their original boundaries:
// each source row contributes exactly Columns cells.
func buildContent(hb *histbuf.HistoryBuffer, highlight bool, fmtCfg histfmt.Config) *content {
	cols := hb.Columns()
	n := hb.Count()
	c := &content{}

	var lines [][]histbuf.Cell
	var rowsPerLine []int
	var lineCells []histbuf.Cell
	lineRows := 0
	for off := 0; off < n; off++ {
		row := hb.SourceRow(off)
		lineCells = append(lineCells, row.Cells...)
		lineRows++
		if !hb.SourceRowContinues(off) {
			lines = append(lines, lineCells)
			rowsPerLine = append(rowsPerLine, lineRows)
			lineCells = nil
			lineRows = 0
		}
	}

	if highlight {
		histfmt.Highlight(lines, fmtCfg)
	}

	for li, cells := range lines {
		c.lineStart = append(c.lineStart, len(c.rows))
		for r := 0; r < rowsPerLine[li]; r++ {
			c.rows = append(c.rows, displayRow{
				cells: cells[r*cols : (r+1)*cols],
				line:  li,
			})
		}
	}
	return c
}

// rowCount returns the number of display rows.
func (c *content) rowCount() int { return len(c.rows) }

// firstRowOfLine returns the display row index where a logical line
// starts, clamped to the stored range.
func (c *content) firstRowOfLine(line int) int {
	if len(c.lineStart) == 0 {
		return 0
	}
	if line < 0 {
		line = 0
	}
	if line >= len(c.lineStart) {
		line = len(c.lineStart) - 1
	}
	return c.lineStart[line]
}
