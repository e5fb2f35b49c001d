// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: histbuf/export.go
// Summary: Chronological text export of the whole history.
//
// Export walks rows oldest to newest, so the output reads in the order
// the content originally scrolled by, regardless of where the ring's
// physical wrap point currently sits.

package histbuf

import "strings"

// exportRows feeds every stored row, oldest first, to emit. lineFinal
// marks rows that end their logical line; those arrive with the
// default-blank tail already trimmed. The first error stops the walk.
func (hb *HistoryBuffer) exportRows(emit func(cells []Cell, lineFinal bool) error) error {
	for off := 0; off < hb.count; off++ {
		cells := hb.rowAt(hb.slot(off))
		continues := hb.SourceRowContinues(off)
		if !continues {
			cells = trimTrailingBlanks(cells)
		}
		if err := emit(cells, !continues); err != nil {
			return err
		}
	}
	return nil
}

// ExportANSI serializes the history as escaped text, one fragment per
// stored row, oldest first. Soft-wrapped rows stream without a break;
// each logical line ends with a newline. A sink error aborts the export
// and is returned; no fragment is delivered twice.
func (hb *HistoryBuffer) ExportANSI(sink func(string) error) error {
	return hb.exportRows(func(cells []Cell, lineFinal bool) error {
		var b strings.Builder
		b.Grow(len(cells) + 16)
		serializeANSI(&b, cells)
		if lineFinal {
			b.WriteByte('\n')
		}
		return sink(b.String())
	})
}

// ExportText is ExportANSI without styling: plain text fragments,
// oldest first, newline-terminated per logical line.
func (hb *HistoryBuffer) ExportText(sink func(string) error) error {
	return hb.exportRows(func(cells []Cell, lineFinal bool) error {
		var b strings.Builder
		b.Grow(len(cells) + 1)
		serializeText(&b, cells)
		if lineFinal {
			b.WriteByte('\n')
		}
		return sink(b.String())
	})
}

// LogicalLines materializes the history as one plain string per logical
// line, oldest first. Convenient for indexing and highlighting, where
// line identity matters more than streaming.
func (hb *HistoryBuffer) LogicalLines() []string {
	var lines []string
	var b strings.Builder
	hb.exportRows(func(cells []Cell, lineFinal bool) error {
		serializeText(&b, cells)
		if lineFinal {
			lines = append(lines, b.String())
			b.Reset()
		}
		return nil
	})
	return lines
}
