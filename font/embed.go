// seehuhn.de/go/invoice - compose invoice summaries and merge PDF files
// Copyright (C) 2021  Jochen Voss <voss@seehuhn.de>
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

package font

import (
	"bytes"
	"fmt"

	"golang.org/x/exp/slices"

	"seehuhn.de/go/sfnt/glyph"

	"seehuhn.de/go/invoice/pdf"
)

// Embedded is a font which is being embedded into a PDF file as a
// composite font.  Text is encoded using two-byte character codes
// (Identity-H), where the code of a glyph is its glyph ID in the
// unsubsetted font.
//
// The font data is written when Close is called.  Only the glyphs used
// in calls to Encode are included.
type Embedded struct {
	*Font

	// Ref is the reference of the PDF font dictionary.
	Ref pdf.Reference

	w      pdf.Putter
	used   map[glyph.ID]bool
	text   map[glyph.ID][]rune
	closed bool
}

// Embed prepares f for use in the PDF file w.
func (f *Font) Embed(w pdf.Putter) (*Embedded, error) {
	err := pdf.CheckVersion(w, "composite TrueType fonts", pdf.V1_3)
	if err != nil {
		return nil, err
	}
	return &Embedded{
		Font: f,
		Ref:  w.Alloc(),
		w:    w,
		used: map[glyph.ID]bool{},
		text: map[glyph.ID][]rune{},
	}, nil
}

// Encode converts s into a PDF string which shows s in this font.
func (e *Embedded) Encode(s string) pdf.String {
	res := make(pdf.String, 0, 2*len(s))
	for _, r := range s {
		gid := e.GID(r)
		e.used[gid] = true
		if _, seen := e.text[gid]; !seen && gid != 0 {
			e.text[gid] = []rune{r}
		}
		res = append(res, byte(gid>>8), byte(gid))
	}
	return res
}

// Decode converts a PDF string produced by Encode back to text.
// Glyphs without a known text representation are dropped.
func (e *Embedded) Decode(s pdf.String) string {
	var rr []rune
	for i := 0; i+1 < len(s); i += 2 {
		gid := glyph.ID(s[i])<<8 | glyph.ID(s[i+1])
		rr = append(rr, e.text[gid]...)
	}
	return string(rr)
}

// DecodeWidth returns the width of the text shown by s, in PDF glyph space
// units.
func (e *Embedded) DecodeWidth(s pdf.String) float64 {
	var w float64
	for i := 0; i+1 < len(s); i += 2 {
		gid := glyph.ID(s[i])<<8 | glyph.ID(s[i+1])
		w += e.GlyphWidth(gid)
	}
	return w
}

// Close writes the font subset and all associated PDF objects.
func (e *Embedded) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	gids := []glyph.ID{0}
	for gid := range e.used {
		if gid != 0 {
			gids = append(gids, gid)
		}
	}
	slices.Sort(gids)

	origTTF := e.sfnt.Clone()
	origTTF.CMapTable = nil
	origTTF.Gdef = nil
	origTTF.Gsub = nil
	origTTF.Gpos = nil

	subsetTTF := origTTF.Subset(gids)
	fontName := subsetTag(gids, origTTF.NumGlyphs()) + "+" + e.PostScriptName()

	q := 1000 / float64(e.sfnt.UnitsPerEm)
	fontBBox := subsetTTF.FontBBoxPDF().Rounded()

	w := e.w
	cidFontRef := w.Alloc()
	fontDescriptorRef := w.Alloc()
	fontFileRef := w.Alloc()
	cidToGIDRef := w.Alloc()
	toUnicodeRef := w.Alloc()

	fontDict := pdf.Dict{
		"Type":            pdf.Name("Font"),
		"Subtype":         pdf.Name("Type0"),
		"BaseFont":        pdf.Name(fontName),
		"Encoding":        pdf.Name("Identity-H"),
		"DescendantFonts": pdf.Array{cidFontRef},
		"ToUnicode":       toUnicodeRef,
	}
	cidFontDict := pdf.Dict{
		"Type":     pdf.Name("Font"),
		"Subtype":  pdf.Name("CIDFontType2"),
		"BaseFont": pdf.Name(fontName),
		"CIDSystemInfo": pdf.Dict{
			"Registry":   pdf.String("Adobe"),
			"Ordering":   pdf.String("Identity"),
			"Supplement": pdf.Integer(0),
		},
		"FontDescriptor": fontDescriptorRef,
		"CIDToGIDMap":    cidToGIDRef,
		"W":              encodeWidths(gids, e.GlyphWidth),
	}

	// See table 121 of ISO 32000-2:2020.
	flags := pdf.Integer(1 << 5) // nonsymbolic
	if e.sfnt.IsFixedPitch() {
		flags |= 1 << 0
	}
	if e.sfnt.IsSerif {
		flags |= 1 << 1
	}
	if e.sfnt.IsItalic {
		flags |= 1 << 6
	}
	fontDescriptor := pdf.Dict{
		"Type":        pdf.Name("FontDescriptor"),
		"FontName":    pdf.Name(fontName),
		"Flags":       flags,
		"FontBBox":    pdf.Rectangle(fontBBox),
		"ItalicAngle": pdf.Number(e.sfnt.ItalicAngle),
		"Ascent":      pdf.Number(e.sfnt.Ascent.AsFloat(q)),
		"Descent":     pdf.Number(e.sfnt.Descent.AsFloat(q)),
		"CapHeight":   pdf.Number(e.sfnt.CapHeight.AsFloat(q)),
		"StemV":       pdf.Integer(0),
		"FontFile2":   fontFileRef,
	}

	for _, obj := range []struct {
		ref pdf.Reference
		val pdf.Object
	}{
		{e.Ref, fontDict},
		{cidFontRef, cidFontDict},
		{fontDescriptorRef, fontDescriptor},
	} {
		err := w.Put(obj.ref, obj.val)
		if err != nil {
			return err
		}
	}

	// See section 9.9 of ISO 32000-2:2020.
	fontFile := &bytes.Buffer{}
	n, err := subsetTTF.WriteTrueTypePDF(fontFile)
	if err != nil {
		return fmt.Errorf("composite TrueType font %q: %w", fontName, err)
	}
	err = writeStream(w, fontFileRef, pdf.Dict{"Length1": pdf.Integer(n)}, fontFile.Bytes())
	if err != nil {
		return err
	}

	// CIDs are glyph IDs of the original font, the subset renumbers
	// the glyphs.
	maxCID := gids[len(gids)-1]
	cidToGID := make([]byte, 2*(int(maxCID)+1))
	for subsetGID, origGID := range gids {
		cidToGID[2*origGID] = byte(subsetGID >> 8)
		cidToGID[2*origGID+1] = byte(subsetGID)
	}
	err = writeStream(w, cidToGIDRef, nil, cidToGID)
	if err != nil {
		return err
	}

	toUnicode := &bytes.Buffer{}
	err = writeToUnicode(toUnicode, e.text)
	if err != nil {
		return err
	}
	return writeStream(w, toUnicodeRef, nil, toUnicode.Bytes())
}

func writeStream(w pdf.Putter, ref pdf.Reference, dict pdf.Dict, data []byte) error {
	stm, err := w.OpenStream(ref, dict, pdf.FilterFlate{})
	if err != nil {
		return err
	}
	_, err = stm.Write(data)
	if err != nil {
		return err
	}
	return stm.Close()
}

// encodeWidths constructs the /W array of a CIDFont, with one entry for
// every run of consecutive CIDs.
func encodeWidths(gids []glyph.ID, width func(glyph.ID) float64) pdf.Array {
	var res pdf.Array
	for i := 0; i < len(gids); {
		j := i + 1
		for j < len(gids) && gids[j] == gids[j-1]+1 {
			j++
		}
		ww := make(pdf.Array, 0, j-i)
		for _, gid := range gids[i:j] {
			ww = append(ww, pdf.Number(roundWidth(width(gid))))
		}
		res = append(res, pdf.Integer(gids[i]), ww)
		i = j
	}
	return res
}

func roundWidth(w float64) float64 {
	return float64(int64(w*10+0.5)) / 10
}

const subsetModulus = 26 * 26 * 26 * 26 * 26 * 26

// subsetTag computes a six-letter tag which identifies the subset of a font
// with numGlyphs glyphs.  The glyph list must be sorted.
func subsetTag(gids []glyph.ID, numGlyphs int) string {
	// mix all the information into a single uint32
	X := uint32(numGlyphs)
	for _, g := range gids {
		// 11 is the largest integer smaller than 1<<32 / subsetModulus which
		// is relatively prime to 26.
		X = (X*11 + uint32(g)) % subsetModulus
	}

	var buf [6]byte
	for i := range buf {
		buf[i] = 'A' + byte(X%26)
		X /= 26
	}
	return string(buf[:])
}
