// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: histbuf/histbuf.go
// Summary: HistoryBuffer stores evicted terminal rows in a fixed ring.
//
// Architecture:
//
//	HistoryBuffer is the single source of truth for scrolled-off content.
//	It stores physical rows in one flat cell array with a parallel
//	per-row continuation flag, and keeps ring bookkeeping (oldest slot
//	plus stored count) so pushes are O(columns) and eviction is a
//	pointer bump, never a copy.
//
//	The screen feeds rows in; viewers read rows back newest-first;
//	Rewrap reflows the whole ring into a buffer of another width.

package histbuf

import (
	"errors"
	"math"
)

// DefaultColumns is the default row width used when width is not specified.
const DefaultColumns = 80

// DefaultCapacity is the default number of row slots to keep.
const DefaultCapacity = 10000

var (
	// ErrInvalidGeometry is returned when rows or columns are not positive.
	ErrInvalidGeometry = errors.New("histbuf: rows and columns must be positive")

	// ErrBufferTooLarge is returned when the requested geometry cannot be
	// addressed.
	ErrBufferTooLarge = errors.New("histbuf: buffer dimensions exceed limits")

	// ErrEmptyBuffer is returned when reading from a buffer holding no rows.
	ErrEmptyBuffer = errors.New("histbuf: buffer is empty")

	// ErrIndexOutOfRange is returned when a row index falls outside the
	// stored range.
	ErrIndexOutOfRange = errors.New("histbuf: row index out of range")
)

// Row is a read-only view of one stored row. Cells aliases buffer
// storage and stays valid only until the next mutation of the buffer.
type Row struct {
	Cells     []Cell
	Continued bool // True if this row continues the row stored before it
}

// HistoryBuffer is a fixed-capacity ring of terminal rows with FIFO
// eviction. The zero value is not usable; call New.
//
// HistoryBuffer is not safe for concurrent use. Callers that share one
// across goroutines must serialize all access externally.
type HistoryBuffer struct {
	columns   int
	head      int    // physical slot of the oldest stored row
	count     int    // rows currently stored
	cells     []Cell // capacity*columns cells, row-major by physical slot
	continued []bool // one flag per row slot
	staged    []Cell // assembly row for the rewrap protocol
}

// New creates a history buffer holding up to rows rows of columns cells.
func New(rows, columns int) (*HistoryBuffer, error) {
	if rows <= 0 || columns <= 0 {
		return nil, ErrInvalidGeometry
	}
	if rows > math.MaxInt/columns {
		return nil, ErrBufferTooLarge
	}
	hb := &HistoryBuffer{
		columns:   columns,
		cells:     make([]Cell, rows*columns),
		continued: make([]bool, rows),
		staged:    make([]Cell, columns),
	}
	clearCells(hb.staged)
	return hb, nil
}

// Columns returns the fixed row width.
func (hb *HistoryBuffer) Columns() int { return hb.columns }

// Capacity returns the number of row slots.
func (hb *HistoryBuffer) Capacity() int { return len(hb.continued) }

// Count returns the number of rows currently stored.
func (hb *HistoryBuffer) Count() int { return hb.count }

// slot maps an oldest-first row offset to a physical slot index. All
// ring index arithmetic in this package funnels through here and
// reverseSlot.
func (hb *HistoryBuffer) slot(offset int) int {
	return (hb.head + offset) % len(hb.continued)
}

// reverseSlot maps a newest-first row index to a physical slot,
// saturating at both ends: negative indices resolve to the newest row,
// indices past the oldest row resolve to the oldest. The clamp is for
// internal callers walking the ring; Row rejects out-of-range indices
// before it gets here.
func (hb *HistoryBuffer) reverseSlot(n int) int {
	if n < 0 {
		n = 0
	}
	if n > hb.count-1 {
		n = hb.count - 1
	}
	return hb.slot(hb.count - 1 - n)
}

// rowAt returns the cell storage of a physical slot.
func (hb *HistoryBuffer) rowAt(slot int) []Cell {
	return hb.cells[slot*hb.columns : (slot+1)*hb.columns]
}

// Push appends one row to the history. When the buffer is full the
// oldest row is evicted and its slot reused. Cells beyond the buffer
// width are dropped; missing cells are blank-filled. The continued flag
// records whether this row soft-wraps from the row pushed before it.
func (hb *HistoryBuffer) Push(cells []Cell, continued bool) {
	idx := hb.slot(hb.count)
	dst := hb.rowAt(idx)
	n := copy(dst, cells)
	for i := n; i < len(dst); i++ {
		dst[i] = BlankCell
	}
	hb.continued[idx] = continued
	if hb.count == len(hb.continued) {
		hb.head = hb.slot(1)
	} else {
		hb.count++
	}
}

// Row returns the n-th most recent row: Row(0) is the newest,
// Row(Count()-1) the oldest. Indices outside that range fail with
// ErrIndexOutOfRange. The returned view is invalidated by any later
// mutation.
func (hb *HistoryBuffer) Row(n int) (Row, error) {
	if hb.count == 0 {
		return Row{}, ErrEmptyBuffer
	}
	if n < 0 || n >= hb.count {
		return Row{}, ErrIndexOutOfRange
	}
	idx := hb.reverseSlot(n)
	return Row{Cells: hb.rowAt(idx), Continued: hb.continued[idx]}, nil
}

// Resize changes the row capacity in place, keeping the most recent
// min(Count, rows) rows in order together with their continuation
// flags. Shrinking drops the oldest overflow. On error the buffer is
// left untouched. Columns never change here; use Rewrap to change
// width.
func (hb *HistoryBuffer) Resize(rows int) error {
	if rows <= 0 {
		return ErrInvalidGeometry
	}
	if rows > math.MaxInt/hb.columns {
		return ErrBufferTooLarge
	}
	if rows == len(hb.continued) {
		return nil
	}
	cells := make([]Cell, rows*hb.columns)
	continued := make([]bool, rows)
	n := min(hb.count, rows)
	skip := hb.count - n
	for i := 0; i < n; i++ {
		s := hb.slot(skip + i)
		copy(cells[i*hb.columns:(i+1)*hb.columns], hb.rowAt(s))
		continued[i] = hb.continued[s]
	}
	hb.cells = cells
	hb.continued = continued
	hb.head = 0
	hb.count = n
	return nil
}

// Clear drops all stored rows. Slot storage is retained for reuse.
func (hb *HistoryBuffer) Clear() {
	hb.head = 0
	hb.count = 0
}
