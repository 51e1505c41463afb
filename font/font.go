// seehuhn.de/go/invoice - compose invoice summaries and merge PDF files
// Copyright (C) 2026  The seehuhn.de/go/invoice authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package font provides the TrueType fonts used for invoice summaries and
// embeds them into PDF files as composite fonts.
package font

import (
	"bytes"
	"fmt"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"seehuhn.de/go/sfnt"
	"seehuhn.de/go/sfnt/cmap"
	"seehuhn.de/go/sfnt/glyph"
)

// Face identifies one of the built-in fonts.
type Face int

// Constants for the built-in fonts.
const (
	Regular Face = iota // Go Regular
	Bold                // Go Bold
)

func (f Face) String() string {
	switch f {
	case Regular:
		return "Regular"
	case Bold:
		return "Bold"
	default:
		return fmt.Sprintf("Face(%d)", int(f))
	}
}

var ttf = map[Face][]byte{
	Regular: goregular.TTF,
	Bold:    gobold.TTF,
}

// New parses the built-in font f.
// Every call returns a new, independent font instance.
func (f Face) New() (*Font, error) {
	data, ok := ttf[f]
	if !ok {
		return nil, fmt.Errorf("font: unknown face %d", f)
	}

	info, err := sfnt.Read(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("font %s: %w", f, err)
	}
	return New(info)
}

// Font is a TrueType font together with the character map used to
// translate text into glyphs.
type Font struct {
	sfnt *sfnt.Font
	cmap cmap.Subtable
}

// New wraps a TrueType font.
func New(info *sfnt.Font) (*Font, error) {
	if !info.IsGlyf() {
		return nil, fmt.Errorf("font %q: not a TrueType font", info.PostScriptName())
	}
	subtable, err := info.CMapTable.GetBest()
	if err != nil {
		return nil, fmt.Errorf("font %q: %w", info.PostScriptName(), err)
	}
	return &Font{
		sfnt: info,
		cmap: subtable,
	}, nil
}

// PostScriptName returns the PostScript name of the font.
func (f *Font) PostScriptName() string {
	return f.sfnt.PostScriptName()
}

// GID returns the glyph used to show r.
// Characters not covered by the font map to glyph 0 (.notdef).
func (f *Font) GID(r rune) glyph.ID {
	return f.cmap.Lookup(r)
}

// GlyphWidth returns the advance width of a glyph in PDF glyph space units
// (1/1000 of the font size).
func (f *Font) GlyphWidth(gid glyph.ID) float64 {
	return float64(f.sfnt.GlyphWidth(gid)) * 1000 / float64(f.sfnt.UnitsPerEm)
}

// Width returns the width of s, when set at the given font size.
func (f *Font) Width(s string, size float64) float64 {
	var w float64
	for _, r := range s {
		w += f.GlyphWidth(f.GID(r))
	}
	return w * size / 1000
}
