// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: histbuf/ansi.go
// Summary: Minimal-SGR serialization of stored rows to escaped text.

package histbuf

import (
	"fmt"
	"strings"
)

// ansiPen tracks the style state already emitted, so escape sequences
// only appear where the style actually changes. A run of default-styled
// cells serializes to bare text.
type ansiPen struct {
	fg   Color
	bg   Color
	attr Attribute
}

func (p *ansiPen) isDefault() bool {
	return p.fg == DefaultFG && p.bg == DefaultBG && p.attr == 0
}

// shift emits the SGR transition from the pen's state to the cell's
// style. Removing an attribute or returning a color to default requires
// a full reset first.
func (p *ansiPen) shift(b *strings.Builder, c Cell) {
	if c.FG == p.fg && c.BG == p.bg && c.Attr == p.attr {
		return
	}
	var params []string
	needsReset := p.attr&^c.Attr != 0 ||
		(c.FG == DefaultFG && p.fg != DefaultFG) ||
		(c.BG == DefaultBG && p.bg != DefaultBG)
	if needsReset {
		params = append(params, "0")
		p.fg, p.bg, p.attr = DefaultFG, DefaultBG, 0
	}
	if add := c.Attr &^ p.attr; add != 0 {
		if add&AttrBold != 0 {
			params = append(params, "1")
		}
		if add&AttrUnderline != 0 {
			params = append(params, "4")
		}
		if add&AttrReverse != 0 {
			params = append(params, "7")
		}
	}
	if c.FG != p.fg {
		params = append(params, colorParams(c.FG, true))
	}
	if c.BG != p.bg {
		params = append(params, colorParams(c.BG, false))
	}
	p.fg, p.bg, p.attr = c.FG, c.BG, c.Attr
	b.WriteString("\x1b[" + strings.Join(params, ";") + "m")
}

// colorParams renders one color as SGR parameters. Standard values 8-15
// are the bright variants and use the 90/100 code range.
func colorParams(c Color, foreground bool) string {
	base := 40
	if foreground {
		base = 30
	}
	switch c.Mode {
	case ColorModeStandard:
		if c.Value >= 8 {
			return fmt.Sprintf("%d", base+60+int(c.Value)-8)
		}
		return fmt.Sprintf("%d", base+int(c.Value))
	case ColorMode256:
		return fmt.Sprintf("%d;5;%d", base+8, c.Value)
	case ColorModeRGB:
		return fmt.Sprintf("%d;2;%d;%d;%d", base+8, c.R, c.G, c.B)
	}
	return fmt.Sprintf("%d", base+9)
}

// serializeANSI writes one row's cells as escaped text. Spacer cells
// behind wide runes are skipped; other empty cells render as spaces so
// column alignment survives. The pen is reset at the end when the row
// leaves a non-default style open.
func serializeANSI(b *strings.Builder, cells []Cell) {
	var pen ansiPen
	skipSpacer := false
	for _, c := range cells {
		if skipSpacer {
			skipSpacer = false
			if c.Rune == 0 {
				continue
			}
		}
		pen.shift(b, c)
		if c.Rune == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteRune(c.Rune)
		}
		skipSpacer = c.Wide
	}
	if !pen.isDefault() {
		b.WriteString("\x1b[0m")
	}
}

// serializeText writes one row's cells as plain text, dropping empty
// cells and control runes outright.
func serializeText(b *strings.Builder, cells []Cell) {
	for _, c := range cells {
		if c.Rune == 0 || c.Rune < 32 {
			continue
		}
		b.WriteRune(c.Rune)
	}
}
