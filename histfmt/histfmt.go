// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// Package histfmt colorizes exported scrollback history. It infers the
// language of a block of logical lines, tokenizes the block with
// Chroma, and applies token colors to the lines' cells in place. Only
// cells whose foreground is still the terminal default are touched, so
// colors the application itself emitted are preserved.
package histfmt

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/go-enry/go-enry/v2"

	"github.com/framegrace/texelhist/histbuf"
)

const defaultStyleName = "catppuccin-mocha"

// Config selects the lexer and color style.
type Config struct {
	// Lexer names a Chroma lexer. Empty means infer from content.
	Lexer string

	// Style names a Chroma style. Empty means the default style.
	Style string
}

// DefaultConfig returns the default highlight configuration.
func DefaultConfig() Config {
	return Config{Style: defaultStyleName}
}

// chromaStyle resolves a style name, falling back to the default.
func chromaStyle(name string) *chroma.Style {
	if name == "" {
		name = defaultStyleName
	}
	return styles.Get(name)
}

// InferLanguage guesses the language of a text block using go-enry's
// strategies in order: shebang, modeline, then the Bayesian content
// classifier. Returns an empty string when nothing matches.
func InferLanguage(text string) string {
	content := []byte(text)
	if langs := enry.GetLanguagesByShebang("", content, nil); len(langs) > 0 {
		return langs[0]
	}
	if langs := enry.GetLanguagesByModeline("", content, nil); len(langs) > 0 {
		return langs[0]
	}
	if langs := enry.GetLanguagesByClassifier("", content, nil); len(langs) > 0 {
		return langs[0]
	}
	return ""
}

// lineRegion tracks a line's rune span within the combined text.
type lineRegion struct {
	cells      []histbuf.Cell
	textStart  int   // rune offset in the combined text where this line starts
	textToCell []int // maps rune index (relative to textStart) to cell index
}

// Highlight tokenizes the logical lines as one block and colors their
// cells in place. Block-level tokenization gives the lexer full context
// (package/import/func structure in Go, heading context in markdown).
func Highlight(lines [][]histbuf.Cell, cfg Config) {
	if len(lines) == 0 {
		return
	}
	regions, fullText := buildLineRegions(lines)
	if fullText == "" {
		return
	}

	lexerName := cfg.Lexer
	if lexerName == "" {
		lexerName = InferLanguage(fullText)
	}
	applyChromaTokens(regions, fullText, lexerName, chromaStyle(cfg.Style))
}

// buildLineRegions extracts plain text from each line and concatenates
// them with \n separators.
func buildLineRegions(lines [][]histbuf.Cell) ([]lineRegion, string) {
	regions := make([]lineRegion, 0, len(lines))
	var sb strings.Builder
	runeOffset := 0

	for _, cells := range lines {
		plain, textToCell := buildPlainTextMap(cells)
		if len(plain) == 0 {
			// Empty line: still emit a \n for proper line counting.
			sb.WriteByte('\n')
			runeOffset++
			continue
		}
		regions = append(regions, lineRegion{
			cells:      cells,
			textStart:  runeOffset,
			textToCell: textToCell,
		})
		sb.WriteString(string(plain))
		runeOffset += len(plain)
		sb.WriteByte('\n')
		runeOffset++
	}
	return regions, sb.String()
}

// buildPlainTextMap builds a rune slice and a mapping from rune index
// to cell index. Zero-rune spacer cells are skipped.
func buildPlainTextMap(cells []histbuf.Cell) ([]rune, []int) {
	plain := make([]rune, 0, len(cells))
	textToCell := make([]int, 0, len(cells))
	for i, c := range cells {
		if c.Rune != 0 {
			plain = append(plain, c.Rune)
			textToCell = append(textToCell, i)
		}
	}
	return plain, textToCell
}

// applyChromaTokens tokenizes fullText and applies colors to cell regions.
func applyChromaTokens(regions []lineRegion, fullText, lexerName string, style *chroma.Style) {
	lexer := getLexer(lexerName, fullText)
	lexer = chroma.Coalesce(lexer)

	tokens, err := chroma.Tokenise(lexer, nil, fullText)
	if err != nil {
		return
	}

	baseColour := style.Get(chroma.Text).Colour

	// Tokens and regions are both ordered by rune position, so a single
	// region cursor suffices.
	ri := 0
	runePos := 0

	for _, tok := range tokens {
		if tok.Type == chroma.EOFType {
			break
		}
		tokRunes := []rune(tok.Value)
		entry := style.Get(tok.Type)

		fg, attr, hasDistinctColor := resolveTokenStyle(entry, baseColour)

		for i := range tokRunes {
			absPos := runePos + i

			for ri < len(regions) && absPos >= regions[ri].textStart+len(regions[ri].textToCell) {
				ri++
			}
			if ri >= len(regions) {
				break
			}

			r := &regions[ri]
			localPos := absPos - r.textStart
			if localPos < 0 || localPos >= len(r.textToCell) {
				continue // in a \n separator or before this region
			}

			ci := r.textToCell[localPos]
			if hasDistinctColor {
				setFGAttr(&r.cells[ci], fg, attr)
			} else if attr != 0 && isDefaultFG(&r.cells[ci]) {
				// Base text color with attributes, e.g. bold markdown text
				r.cells[ci].Attr |= attr
			}
		}

		runePos += len(tokRunes)
		// A token spanning a \n boundary may have pushed the cursor past
		// the region the next token starts in. Walk it back if so.
		if ri > 0 && ri < len(regions) && runePos < regions[ri].textStart {
			ri--
		}
	}
}

// resolveTokenStyle extracts color and attributes from a style entry.
// Returns hasDistinctColor=false if the color matches the base text
// color, so the default-FG bit survives for unstyled text.
func resolveTokenStyle(entry chroma.StyleEntry, baseColour chroma.Colour) (histbuf.Color, histbuf.Attribute, bool) {
	var attr histbuf.Attribute
	if entry.Bold == chroma.Yes {
		attr |= histbuf.AttrBold
	}
	if entry.Underline == chroma.Yes {
		attr |= histbuf.AttrUnderline
	}

	if !entry.Colour.IsSet() || entry.Colour == baseColour {
		return histbuf.Color{}, attr, false
	}

	fg := histbuf.Color{
		Mode: histbuf.ColorModeRGB,
		R:    entry.Colour.Red(),
		G:    entry.Colour.Green(),
		B:    entry.Colour.Blue(),
	}
	return fg, attr, true
}

// getLexer returns a Chroma lexer by name, or auto-detects from content.
func getLexer(name, text string) chroma.Lexer {
	if name != "" {
		if l := lexers.Get(name); l != nil {
			return l
		}
	}
	if l := lexers.Analyse(text); l != nil {
		return l
	}
	return lexers.Fallback
}

// isDefaultFG reports whether the cell's foreground is the terminal default.
func isDefaultFG(c *histbuf.Cell) bool {
	return c.FG.Mode == histbuf.ColorModeDefault
}

// setFGAttr colors a cell and adds attributes if its FG is still default.
func setFGAttr(c *histbuf.Cell, color histbuf.Color, attr histbuf.Attribute) {
	if isDefaultFG(c) {
		c.FG = color
		c.Attr |= attr
	}
}
