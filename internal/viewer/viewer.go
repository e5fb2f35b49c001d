// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/viewer/viewer.go
// Summary: Interactive tcell viewport over a history snapshot.
//
// Keys: arrows/PgUp/PgDn scroll, Home/End (also g/G) jump, / search,
// n/N walk matches, h toggle highlighting, q/Esc quit.

package viewer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/framegrace/texelhist/histbuf"
	"github.com/framegrace/texelhist/histfmt"
	"github.com/framegrace/texelhist/histindex"
)

// Config holds viewer settings.
type Config struct {
	// HighlightStyle is the Chroma style for the h toggle.
	HighlightStyle string

	// IndexPath is the search database location. Empty means a
	// throwaway index in the user cache dir.
	IndexPath string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{HighlightStyle: "catppuccin-mocha"}
}

// Viewer displays a history buffer in a scrollable viewport. Scroll
// state lives here; the buffer itself never tracks a position.
type Viewer struct {
	screen tcell.Screen
	buf    *histbuf.HistoryBuffer
	cfg    Config

	content   *content
	offset    int // first display row shown
	highlight bool

	index      *histindex.SQLiteIndex
	indexStale bool
	matches    []histindex.Result
	matchPos   int
	status     string
}

// Run displays hb until the user quits. The buffer is rewrapped in
// place whenever the terminal width changes.
func Run(hb *histbuf.HistoryBuffer, cfg Config) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to init screen: %w", err)
	}
	defer screen.Fini()

	v := &Viewer{
		screen:     screen,
		buf:        hb,
		cfg:        cfg,
		indexStale: true,
	}
	defer func() {
		if v.index != nil {
			v.index.Close()
		}
	}()

	v.fitToScreen()
	v.rebuild()
	v.scrollToEnd()
	return v.loop()
}

// fitToScreen rewraps the buffer to the current screen width.
func (v *Viewer) fitToScreen() {
	w, _ := v.screen.Size()
	if w <= 0 || w == v.buf.Columns() {
		return
	}
	dst, err := histbuf.New(v.buf.Capacity(), w)
	if err != nil {
		return
	}
	v.buf.Rewrap(dst)
	v.buf = dst
	v.indexStale = true
	v.matches = nil
}

// rebuild recomputes the display snapshot after a buffer or mode change.
func (v *Viewer) rebuild() {
	v.content = buildContent(v.buf, v.highlight, histfmt.Config{Style: v.cfg.HighlightStyle})
	v.clampOffset()
}

func (v *Viewer) viewHeight() int {
	_, h := v.screen.Size()
	if h <= 1 {
		return 1
	}
	return h - 1 // last line is the status bar
}

func (v *Viewer) maxOffset() int {
	m := v.content.rowCount() - v.viewHeight()
	if m < 0 {
		m = 0
	}
	return m
}

func (v *Viewer) clampOffset() {
	if v.offset > v.maxOffset() {
		v.offset = v.maxOffset()
	}
	if v.offset < 0 {
		v.offset = 0
	}
}

func (v *Viewer) scrollToEnd() {
	v.offset = v.maxOffset()
}

func (v *Viewer) loop() error {
	for {
		v.draw()
		switch ev := v.screen.PollEvent().(type) {
		case *tcell.EventResize:
			v.screen.Sync()
			v.fitToScreen()
			v.rebuild()
			v.scrollToEnd()
		case *tcell.EventKey:
			quit, err := v.handleKey(ev)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		}
	}
}

func (v *Viewer) handleKey(ev *tcell.EventKey) (quit bool, err error) {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true, nil
	case tcell.KeyUp:
		v.offset--
	case tcell.KeyDown:
		v.offset++
	case tcell.KeyPgUp:
		v.offset -= v.viewHeight()
	case tcell.KeyPgDn:
		v.offset += v.viewHeight()
	case tcell.KeyHome:
		v.offset = 0
	case tcell.KeyEnd:
		v.scrollToEnd()
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return true, nil
		case 'g':
			v.offset = 0
		case 'G':
			v.scrollToEnd()
		case 'h':
			v.highlight = !v.highlight
			v.rebuild()
		case '/':
			if err := v.promptSearch(); err != nil {
				v.status = fmt.Sprintf("search error: %v", err)
			}
		case 'n':
			v.stepMatch(1)
		case 'N':
			v.stepMatch(-1)
		}
	}
	v.clampOffset()
	return false, nil
}

// promptSearch reads a query on the status line and jumps to the best
// match.
func (v *Viewer) promptSearch() error {
	query, ok := v.readLine("/")
	if !ok || query == "" {
		v.status = ""
		return nil
	}
	if err := v.ensureIndex(); err != nil {
		return err
	}
	matches, err := v.index.Search(query, 100)
	if err != nil {
		return err
	}
	v.matches = matches
	v.matchPos = 0
	if len(matches) == 0 {
		v.status = fmt.Sprintf("no matches for %q", query)
		return nil
	}
	v.gotoMatch()
	return nil
}

// ensureIndex opens the search index and (re)feeds it the buffer's
// logical lines when the buffer changed since the last search.
func (v *Viewer) ensureIndex() error {
	if v.index == nil {
		path := v.cfg.IndexPath
		if path == "" {
			cache, err := os.UserCacheDir()
			if err != nil {
				cache = os.TempDir()
			}
			path = filepath.Join(cache, "texelhist", "view-index.db")
		}
		idx, err := histindex.Open(path, histindex.DefaultIndexConfig())
		if err != nil {
			return fmt.Errorf("failed to open search index: %w", err)
		}
		v.index = idx
	}
	if v.indexStale {
		if err := v.index.IndexBuffer(v.buf); err != nil {
			return fmt.Errorf("failed to index history: %w", err)
		}
		v.indexStale = false
	}
	return nil
}

func (v *Viewer) stepMatch(delta int) {
	if len(v.matches) == 0 {
		return
	}
	v.matchPos = (v.matchPos + delta + len(v.matches)) % len(v.matches)
	v.gotoMatch()
}

func (v *Viewer) gotoMatch() {
	m := v.matches[v.matchPos]
	v.offset = v.content.firstRowOfLine(int(m.LineNum))
	v.clampOffset()
	v.status = fmt.Sprintf("match %d/%d: line %d", v.matchPos+1, len(v.matches), m.LineNum)
}

// readLine collects a line of input on the status bar. Returns ok=false
// when the user cancels with Escape.
func (v *Viewer) readLine(prompt string) (string, bool) {
	input := []rune{}
	for {
		v.status = prompt + string(input)
		v.draw()
		ev, ok := v.screen.PollEvent().(*tcell.EventKey)
		if !ok {
			continue
		}
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return "", false
		case tcell.KeyEnter:
			return string(input), true
		case tcell.KeyBackspace, tcell.KeyBackspace2:
			if len(input) > 0 {
				input = input[:len(input)-1]
			}
		case tcell.KeyRune:
			input = append(input, ev.Rune())
		}
	}
}

func (v *Viewer) draw() {
	v.screen.Clear()
	w, h := v.screen.Size()
	height := v.viewHeight()

	for y := 0; y < height; y++ {
		ri := v.offset + y
		if ri >= v.content.rowCount() {
			break
		}
		drawCells(v.screen, 0, y, w, v.content.rows[ri].cells)
	}

	status := v.status
	if status == "" {
		status = fmt.Sprintf(" %d rows | row %d | h:highlight /:search q:quit ",
			v.content.rowCount(), v.offset)
	}
	drawStatus(v.screen, h-1, w, status)
	v.screen.Show()
}

// drawStatus paints the reverse-video status bar. The text is walked by
// rune, not byte, so multibyte content (searched queries, file names)
// renders intact; wide runes advance two columns.
func drawStatus(s tcell.Screen, y, w int, status string) {
	style := tcell.StyleDefault.Reverse(true)
	x := 0
	for _, r := range status {
		if x >= w {
			break
		}
		s.SetContent(x, y, r, nil, style)
		width := runewidth.RuneWidth(r)
		if width < 1 {
			width = 1
		}
		x += width
	}
	for ; x < w; x++ {
		s.SetContent(x, y, ' ', nil, style)
	}
}

// drawCells paints one stored row. A wide rune is drawn once at its
// first column; its spacer cell just advances the cursor, matching the
// two columns tcell gives the rune.
func drawCells(s tcell.Screen, x, y, maxW int, cells []histbuf.Cell) {
	col := x
	for _, c := range cells {
		if col >= maxW {
			break
		}
		if c.Rune == 0 {
			col++
			continue
		}
		s.SetContent(col, y, c.Rune, nil, cellStyle(c))
		col++
	}
}

// cellStyle translates a stored cell style to a tcell style.
func cellStyle(c histbuf.Cell) tcell.Style {
	style := tcell.StyleDefault.
		Foreground(cellColor(c.FG)).
		Background(cellColor(c.BG))
	style = style.Bold(c.Attr&histbuf.AttrBold != 0)
	style = style.Underline(c.Attr&histbuf.AttrUnderline != 0)
	style = style.Reverse(c.Attr&histbuf.AttrReverse != 0)
	return style
}

func cellColor(c histbuf.Color) tcell.Color {
	switch c.Mode {
	case histbuf.ColorModeStandard:
		return tcell.PaletteColor(int(c.Value))
	case histbuf.ColorMode256:
		return tcell.PaletteColor(int(c.Value))
	case histbuf.ColorModeRGB:
		return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
	default:
		return tcell.ColorDefault
	}
}
