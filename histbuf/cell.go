// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: histbuf/cell.go
// Summary: Cell, color and attribute model for scrollback storage.
// Usage: Consumed by everything that reads or fills history rows.
// Notes: Keeps the storage model independent of any renderer.

package histbuf

import "github.com/mattn/go-runewidth"

type Attribute uint16

const (
	AttrBold Attribute = 1 << iota
	AttrUnderline
	AttrReverse
)

// String returns a human-readable representation of the attribute flags.
func (a Attribute) String() string {
	if a == 0 {
		return "none"
	}
	var parts []string
	if a&AttrBold != 0 {
		parts = append(parts, "bold")
	}
	if a&AttrUnderline != 0 {
		parts = append(parts, "underline")
	}
	if a&AttrReverse != 0 {
		parts = append(parts, "reverse")
	}
	if len(parts) == 0 {
		return "unknown"
	}
	result := parts[0]
	for i := 1; i < len(parts); i++ {
		result += "|" + parts[i]
	}
	return result
}

// ColorMode defines the type of color stored.
type ColorMode int

const (
	ColorModeDefault  ColorMode = iota // Default terminal color
	ColorModeStandard                  // The basic 8 ANSI colors
	ColorMode256                       // 256-color palette
	ColorModeRGB                       // 24-bit "true" color
)

// Color represents a color in potentially different modes.
type Color struct {
	Mode    ColorMode
	Value   uint8 // Holds the color code for Standard (0-7) and 256-mode (0-255)
	R, G, B uint8 // Holds the values for RGB mode
}

// Cell represents a single character cell of a stored row.
//
// A wide (2-column) rune occupies two cells: the rune itself with Wide
// set, followed by a zero-rune spacer cell carrying the same style.
type Cell struct {
	Rune rune
	FG   Color
	BG   Color
	Attr Attribute
	Wide bool // True if this cell holds a wide (2-column) character
}

// --- Predefined default colors for convenience ---
var (
	DefaultFG = Color{Mode: ColorModeDefault}
	DefaultBG = Color{Mode: ColorModeDefault}
)

// BlankCell is what unwritten storage reads as: a default-styled space.
var BlankCell = Cell{Rune: ' '}

// CellsFromString converts a string to default-styled cells. Wide runes
// produce a cell pair (rune plus spacer) so column accounting stays
// correct.
func CellsFromString(s string) []Cell {
	return CellsFromStringStyled(s, DefaultFG, DefaultBG, 0)
}

// CellsFromStringStyled converts a string to cells carrying the given
// style.
func CellsFromStringStyled(s string, fg, bg Color, attr Attribute) []Cell {
	cells := make([]Cell, 0, len(s))
	for _, r := range s {
		wide := runewidth.RuneWidth(r) == 2
		cells = append(cells, Cell{Rune: r, FG: fg, BG: bg, Attr: attr, Wide: wide})
		if wide {
			cells = append(cells, Cell{FG: fg, BG: bg, Attr: attr})
		}
	}
	return cells
}

// isDefaultBlank reports whether a cell carries no visible content: a
// space or empty rune with default colors and no attributes. Styled
// blanks are content and are never trimmed.
func isDefaultBlank(c Cell) bool {
	return (c.Rune == ' ' || c.Rune == 0) && c.FG == DefaultFG && c.BG == DefaultBG && c.Attr == 0
}
