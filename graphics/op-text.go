// seehuhn.de/go/invoice - compose invoice summaries and merge PDF files
// Copyright (C) 2024  Jochen Voss <voss@seehuhn.de>
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

package graphics

import (
	"errors"
	"fmt"

	"seehuhn.de/go/geom/matrix"

	"seehuhn.de/go/invoice/font"
)

// This file implements the text operators used by the layout code.
// See tables 105, 106 and 107 of ISO 32000-2:2020.

// TextStart starts a new text object.
//
// This implements the PDF graphics operator "BT".
func (w *Writer) TextStart() {
	if !w.isValid("TextStart", objPage) {
		return
	}
	w.currentObject = objText

	w.nesting = append(w.nesting, pairTypeBT)

	w.State.TextMatrix = matrix.Identity
	w.State.TextLineMatrix = matrix.Identity
	w.Set |= StateTextMatrix

	_, w.Err = fmt.Fprintln(w.Content, "BT")
}

// TextEnd ends the current text object.
//
// This implements the PDF graphics operator "ET".
func (w *Writer) TextEnd() {
	if !w.isValid("TextEnd", objText) {
		return
	}
	w.currentObject = objPage

	if len(w.nesting) == 0 || w.nesting[len(w.nesting)-1] != pairTypeBT {
		w.Err = errors.New("TextEnd: no matching TextStart")
		return
	}
	w.nesting = w.nesting[:len(w.nesting)-1]

	w.Set &= ^StateTextMatrix

	_, w.Err = fmt.Fprintln(w.Content, "ET")
}

// TextSetFont sets the font and font size.
//
// This implements the PDF graphics operator "Tf".
func (w *Writer) TextSetFont(F *font.Embedded, size float64) {
	if !w.isValid("TextSetFont", objText|objPage) {
		return
	}
	if w.isSet(StateTextFont) && w.State.TextFont == F && nearlyEqual(w.State.TextFontSize, size) {
		return
	}

	w.State.TextFont = F
	w.State.TextFontSize = size
	w.State.Set |= StateTextFont

	name := w.getFontName(F)
	err := name.PDF(w.Content)
	if err != nil {
		w.Err = err
		return
	}
	_, w.Err = fmt.Fprintln(w.Content, "", w.coord(size), "Tf")
}

// TextFirstLine moves to the start of the next line of text.
// The offset is relative to the start of the current line.
//
// This implements the PDF graphics operator "Td".
func (w *Writer) TextFirstLine(dx, dy float64) {
	if !w.isValid("TextFirstLine", objText) {
		return
	}

	w.TextLineMatrix = matrix.Translate(dx, dy).Mul(w.TextLineMatrix)
	w.TextMatrix = w.TextLineMatrix

	_, w.Err = fmt.Fprintln(w.Content, w.coord(dx), w.coord(dy), "Td")
}

// TextShow shows s using the current font.
// The text position is advanced by the width of s.
//
// This implements the PDF graphics operator "Tj".
func (w *Writer) TextShow(s string) {
	if !w.isValid("TextShow", objText) {
		return
	}
	if !w.isSet(StateTextFont | StateTextMatrix) {
		w.Err = errors.New("TextShow: no font set")
		return
	}

	F := w.State.TextFont
	code := F.Encode(s)
	tx := F.DecodeWidth(code) * w.State.TextFontSize / 1000
	w.TextMatrix = matrix.Translate(tx, 0).Mul(w.TextMatrix)

	w.Err = code.PDF(w.Content)
	if w.Err != nil {
		return
	}
	_, w.Err = fmt.Fprintln(w.Content, " Tj")
}

// TextPosition returns the current text position, in user space
// coordinates.
func (w *Writer) TextPosition() (float64, float64) {
	return w.TextMatrix[4], w.TextMatrix[5]
}
