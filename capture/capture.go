// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: capture/capture.go
// Summary: LineWriter captures a terminal byte stream into history rows.
// Usage: Sits between a pty and a histbuf.HistoryBuffer.
// Notes: Deliberately not a terminal emulator. It understands newline,
//        carriage return, tab, backspace and SGR styling, soft-wraps at
//        the buffer width, and swallows every other escape sequence
//        without acting on it. Cursor addressing, scroll regions and
//        alternate screens are out of its world; content written through
//        them lands wherever the simple line model puts it.

package capture

import (
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/framegrace/texelhist/histbuf"
)

// DefaultTabStop is the tab advance used when the config leaves it zero.
const DefaultTabStop = 8

// Config holds configuration for a LineWriter.
type Config struct {
	// TabStop is the tab advance in columns. Default: 8
	TabStop int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{TabStop: DefaultTabStop}
}

type state int

const (
	stateGround state = iota
	stateEscape
	stateCSI
	stateOSC
	stateCharset
	stateDCS
	stateDCSEscape
)

// pen is the style applied to newly placed cells.
type pen struct {
	fg   histbuf.Color
	bg   histbuf.Color
	attr histbuf.Attribute
}

func defaultPen() pen {
	return pen{fg: histbuf.DefaultFG, bg: histbuf.DefaultBG}
}

// LineWriter is an io.Writer that assembles terminal output into
// fixed-width rows and pushes them into a history buffer. Rows push on
// newline and on soft wrap; a soft-wrapped row marks its successor
// continued so rewrap and export can rejoin the logical line.
//
// LineWriter is not safe for concurrent use.
type LineWriter struct {
	buf     *histbuf.HistoryBuffer
	tabStop int

	state        state
	params       []int
	currentParam int
	private      bool
	intermediate rune

	pen       pen
	row       []histbuf.Cell
	col       int
	dirty     bool // the current row holds placed content
	continues bool // the next pushed row continues the current line

	tail []byte // undecoded UTF-8 tail carried between writes
}

// NewLineWriter creates a writer feeding hb. The wrap width is the
// buffer's column count.
func NewLineWriter(hb *histbuf.HistoryBuffer, cfg Config) *LineWriter {
	if cfg.TabStop <= 0 {
		cfg.TabStop = DefaultTabStop
	}
	w := &LineWriter{
		buf:     hb,
		tabStop: cfg.TabStop,
		params:  make([]int, 0, 16),
		pen:     defaultPen(),
		row:     make([]histbuf.Cell, hb.Columns()),
	}
	w.resetRow()
	return w
}

// Buffer returns the history buffer this writer feeds.
func (w *LineWriter) Buffer() *histbuf.HistoryBuffer { return w.buf }

// SetBuffer redirects the writer to another buffer, committing any
// pending partial row to the old one first. Callers swapping buffers
// across a width change want ResizeWidth instead, which commits the
// partial row before the old content is rewrapped.
func (w *LineWriter) SetBuffer(hb *histbuf.HistoryBuffer) {
	w.Flush()
	w.buf = hb
	w.row = make([]histbuf.Cell, hb.Columns())
	w.resetRow()
}

// ResizeWidth rewraps the captured history to a new column count. The
// pending partial row is committed first so it travels with the rest of
// the content; flushing after the rewrap would strand it in the old
// buffer. On error the writer keeps its current buffer.
func (w *LineWriter) ResizeWidth(columns int) error {
	if columns == w.buf.Columns() {
		return nil
	}
	dst, err := histbuf.New(w.buf.Capacity(), columns)
	if err != nil {
		return err
	}
	w.Flush()
	w.buf.Rewrap(dst)
	w.buf = dst
	w.row = make([]histbuf.Cell, columns)
	w.resetRow()
	return nil
}

// Write consumes a chunk of terminal output. It never fails; the
// history buffer absorbs everything.
func (w *LineWriter) Write(p []byte) (int, error) {
	data := p
	if len(w.tail) > 0 {
		data = append(w.tail, p...)
		w.tail = nil
	}
	for len(data) > 0 {
		if !utf8.FullRune(data) {
			// Keep the partial sequence for the next write.
			w.tail = append(w.tail, data...)
			break
		}
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		w.step(r)
	}
	return len(p), nil
}

// Flush commits a pending partial row as a finished line. Call at
// session end so unterminated output is not lost.
func (w *LineWriter) Flush() {
	if !w.dirty && w.col == 0 {
		return
	}
	w.endLine()
}

func (w *LineWriter) step(r rune) {
	switch w.state {
	case stateGround:
		switch r {
		case '\x1b':
			w.state = stateEscape
		case '\n':
			w.endLine()
		case '\r':
			w.col = 0
		case '\b':
			if w.col > 0 {
				w.col--
			}
		case '\t':
			next := (w.col/w.tabStop + 1) * w.tabStop
			if next >= len(w.row) {
				next = len(w.row) - 1
			}
			w.col = next
		default:
			if r >= ' ' {
				w.placeChar(r)
			}
		}
	case stateEscape:
		switch r {
		case '[':
			w.state = stateCSI
			w.params = w.params[:0]
			w.currentParam = 0
			w.private = false
			w.intermediate = 0
		case ']':
			w.state = stateOSC
		case 'P':
			w.state = stateDCS
		case '(':
			w.state = stateCharset
		default:
			w.state = stateGround
		}
	case stateCSI:
		switch {
		case r >= '0' && r <= '9':
			w.currentParam = w.currentParam*10 + int(r-'0')
		case r == ';':
			w.params = append(w.params, w.currentParam)
			w.currentParam = 0
		case r >= '<' && r <= '?':
			w.private = true
		case r >= ' ' && r <= '/':
			w.intermediate = r
		case r >= '@' && r <= '~':
			w.params = append(w.params, w.currentParam)
			if r == 'm' && !w.private && w.intermediate == 0 {
				w.applySGR(w.params)
			}
			w.state = stateGround
		}
	case stateOSC:
		if r == '\x07' {
			w.state = stateGround
		} else if r == '\x1b' {
			// Terminated by ST; re-handle the ESC.
			w.state = stateGround
			w.step(r)
		}
	case stateDCS:
		if r == '\x1b' {
			w.state = stateDCSEscape
		}
	case stateDCSEscape:
		if r == '\\' {
			w.state = stateGround
		} else {
			w.state = stateDCS
		}
	case stateCharset:
		w.state = stateGround
	}
}

// placeChar writes one printable rune at the current column, wrapping
// first when it no longer fits. Wide runes wrap as a unit so the pair
// never splits across rows.
func (w *LineWriter) placeChar(r rune) {
	width := runewidth.RuneWidth(r)
	if width == 0 || width > len(w.row) {
		return
	}
	if w.col+width > len(w.row) {
		w.softWrap()
	}
	w.row[w.col] = histbuf.Cell{Rune: r, FG: w.pen.fg, BG: w.pen.bg, Attr: w.pen.attr, Wide: width == 2}
	w.col++
	if width == 2 {
		w.row[w.col] = histbuf.Cell{FG: w.pen.fg, BG: w.pen.bg, Attr: w.pen.attr}
		w.col++
	}
	w.dirty = true
}

func (w *LineWriter) softWrap() {
	w.buf.Push(w.row, w.continues)
	w.continues = true
	w.resetRow()
}

func (w *LineWriter) endLine() {
	w.buf.Push(w.row, w.continues)
	w.continues = false
	w.resetRow()
}

func (w *LineWriter) resetRow() {
	for i := range w.row {
		w.row[i] = histbuf.BlankCell
	}
	w.col = 0
	w.dirty = false
}

// applySGR updates the pen from SGR parameters: attributes, the
// standard and bright color ranges, and the 38/48 extended forms.
func (w *LineWriter) applySGR(params []int) {
	if len(params) == 0 {
		params = []int{0}
	}
	i := 0
	for i < len(params) {
		p := params[i]
		switch {
		case p == 0:
			w.pen = defaultPen()
		case p == 1:
			w.pen.attr |= histbuf.AttrBold
		case p == 4:
			w.pen.attr |= histbuf.AttrUnderline
		case p == 7:
			w.pen.attr |= histbuf.AttrReverse
		case p == 22:
			w.pen.attr &^= histbuf.AttrBold
		case p == 24:
			w.pen.attr &^= histbuf.AttrUnderline
		case p == 27:
			w.pen.attr &^= histbuf.AttrReverse
		case p >= 30 && p <= 37:
			w.pen.fg = histbuf.Color{Mode: histbuf.ColorModeStandard, Value: uint8(p - 30)}
		case p == 39:
			w.pen.fg = histbuf.DefaultFG
		case p >= 40 && p <= 47:
			w.pen.bg = histbuf.Color{Mode: histbuf.ColorModeStandard, Value: uint8(p - 40)}
		case p == 49:
			w.pen.bg = histbuf.DefaultBG
		case p == 38: // Set extended foreground color
			if i+2 < len(params) && params[i+1] == 5 {
				w.pen.fg = histbuf.Color{Mode: histbuf.ColorMode256, Value: uint8(params[i+2])}
				i += 2
			} else if i+4 < len(params) && params[i+1] == 2 {
				w.pen.fg = histbuf.Color{Mode: histbuf.ColorModeRGB, R: uint8(params[i+2]), G: uint8(params[i+3]), B: uint8(params[i+4])}
				i += 4
			}
		case p == 48: // Set extended background color
			if i+2 < len(params) && params[i+1] == 5 {
				w.pen.bg = histbuf.Color{Mode: histbuf.ColorMode256, Value: uint8(params[i+2])}
				i += 2
			} else if i+4 < len(params) && params[i+1] == 2 {
				w.pen.bg = histbuf.Color{Mode: histbuf.ColorModeRGB, R: uint8(params[i+2]), G: uint8(params[i+3]), B: uint8(params[i+4])}
				i += 4
			}
		case p >= 90 && p <= 97: // Bright foreground
			w.pen.fg = histbuf.Color{Mode: histbuf.ColorModeStandard, Value: uint8(p - 90 + 8)}
		case p >= 100 && p <= 107: // Bright background
			w.pen.bg = histbuf.Color{Mode: histbuf.ColorModeStandard, Value: uint8(p - 100 + 8)}
		}
		i++
	}
}
