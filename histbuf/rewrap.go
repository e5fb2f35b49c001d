// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: histbuf/rewrap.go
// Summary: Generic reflow of history content between buffer widths.
//
// The rewrap protocol is a small primitive set two ring buffers expose
// identically, so one engine can reflow between any pair of them: the
// source side maps oldest-first offsets to physical slots and reports
// soft-wrap joins, the destination side assembles rows in a staging
// buffer and commits them with normal eviction.

package histbuf

// RewrapSource is the read side of the rewrap protocol.
type RewrapSource interface {
	Count() int
	Columns() int

	// SourceSlot maps an oldest-first row offset to the physical slot
	// holding that row.
	SourceSlot(offset int) int

	// SourceRow returns the row at an oldest-first offset.
	SourceRow(offset int) Row

	// SourceRowContinues reports whether the row after offset continues
	// the same logical line. The newest row never continues.
	SourceRowContinues(offset int) bool
}

// RewrapDestination is the write side of the rewrap protocol.
type RewrapDestination interface {
	Columns() int

	// BeginLine blanks the assembly row so the first row committed
	// afterwards starts a hard logical line.
	BeginLine()

	// StagedRow returns the assembly row, Columns() cells wide.
	StagedRow() []Cell

	// PushLine commits the assembly row into the ring with the given
	// continuation flag, evicting the oldest row if full, then blanks
	// the assembly row again.
	PushLine(continued bool)
}

// SourceSlot implements the rewrap protocol read side.
func (hb *HistoryBuffer) SourceSlot(offset int) int { return hb.slot(offset) }

// SourceRow implements the rewrap protocol read side.
func (hb *HistoryBuffer) SourceRow(offset int) Row {
	idx := hb.slot(offset)
	return Row{Cells: hb.rowAt(idx), Continued: hb.continued[idx]}
}

// SourceRowContinues implements the rewrap protocol read side.
func (hb *HistoryBuffer) SourceRowContinues(offset int) bool {
	if offset+1 >= hb.count {
		return false
	}
	return hb.continued[hb.slot(offset+1)]
}

// BeginLine implements the rewrap protocol write side.
func (hb *HistoryBuffer) BeginLine() {
	clearCells(hb.staged)
}

// StagedRow implements the rewrap protocol write side.
func (hb *HistoryBuffer) StagedRow() []Cell { return hb.staged }

// PushLine implements the rewrap protocol write side.
func (hb *HistoryBuffer) PushLine(continued bool) {
	hb.Push(hb.staged, continued)
	clearCells(hb.staged)
}

// Rewrap reflows the entire content of hb into dst, which may have a
// different width or capacity. Destination content is discarded first.
// When both geometries match the cells and bookkeeping are copied
// verbatim instead of reflowed. dst must not be the receiver.
func (hb *HistoryBuffer) Rewrap(dst *HistoryBuffer) {
	if hb.columns == dst.columns && len(hb.continued) == len(dst.continued) {
		copy(dst.cells, hb.cells)
		copy(dst.continued, hb.continued)
		dst.head = hb.head
		dst.count = hb.count
		return
	}
	dst.Clear()
	Reflow(hb, dst)
}

// Reflow streams every logical line of src into dst, re-segmented at
// dst's width. Rows that soft-wrap contribute all their cells; the
// final row of each line is trimmed of default-blank tail cells. A
// blank logical line still produces one blank destination row. When dst
// cannot hold everything its oldest rows are evicted as usual, so the
// surviving tail may open mid-line.
func Reflow(src RewrapSource, dst RewrapDestination) {
	dst.BeginLine()
	cols := dst.Columns()
	row := dst.StagedRow()
	staged := 0   // cells filled in the assembly row
	lineRows := 0 // rows committed for the current logical line
	n := src.Count()
	for off := 0; off < n; off++ {
		cells := src.SourceRow(off).Cells
		continues := src.SourceRowContinues(off)
		if !continues {
			cells = trimTrailingBlanks(cells)
		}
		for _, c := range cells {
			if staged == cols {
				dst.PushLine(lineRows > 0)
				row = dst.StagedRow()
				lineRows++
				staged = 0
			}
			row[staged] = c
			staged++
		}
		if !continues {
			dst.PushLine(lineRows > 0)
			row = dst.StagedRow()
			lineRows = 0
			staged = 0
		}
	}
}

// trimTrailingBlanks drops default-blank cells from the tail of a row.
// Styled blanks count as content and survive.
func trimTrailingBlanks(cells []Cell) []Cell {
	end := len(cells)
	for end > 0 && isDefaultBlank(cells[end-1]) {
		end--
	}
	return cells[:end]
}

func clearCells(cells []Cell) {
	for i := range cells {
		cells[i] = BlankCell
	}
}
