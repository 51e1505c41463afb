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
)

// PushGraphicsState saves the current graphics state.
//
// This implements the PDF graphics operator "q".
func (w *Writer) PushGraphicsState() {
	if !w.isValid("PushGraphicsState", objPage) {
		return
	}

	w.nesting = append(w.nesting, pairTypeQ)
	w.stack = append(w.stack, w.State)

	_, w.Err = fmt.Fprintln(w.Content, "q")
}

// PopGraphicsState restores the previous graphics state.
//
// This implements the PDF graphics operator "Q".
func (w *Writer) PopGraphicsState() {
	if !w.isValid("PopGraphicsState", objPage) {
		return
	}

	if len(w.nesting) == 0 || w.nesting[len(w.nesting)-1] != pairTypeQ {
		w.Err = errors.New("PopGraphicsState: no matching PushGraphicsState")
		return
	}
	w.nesting = w.nesting[:len(w.nesting)-1]

	n := len(w.stack) - 1
	w.State = w.stack[n]
	w.stack = w.stack[:n]

	_, w.Err = fmt.Fprintln(w.Content, "Q")
}

// SetLineWidth sets the line width.
//
// This implements the PDF graphics operator "w".
func (w *Writer) SetLineWidth(width float64) {
	if !w.isValid("SetLineWidth", objPage|objText) {
		return
	}
	if w.isSet(StateLineWidth) && nearlyEqual(width, w.State.LineWidth) {
		return
	}

	w.State.LineWidth = width
	w.Set |= StateLineWidth

	_, w.Err = fmt.Fprintln(w.Content, w.coord(width), "w")
}

// SetFillColor sets the colour used for filling paths and for text.
//
// This implements the PDF graphics operator "rg".
func (w *Writer) SetFillColor(c RGB) {
	if !w.isValid("SetFillColor", objPage|objText) {
		return
	}
	if w.isSet(StateFillColor) && w.State.FillColor == c {
		return
	}

	w.State.FillColor = c
	w.Set |= StateFillColor

	_, w.Err = fmt.Fprintln(w.Content, format(c.R), format(c.G), format(c.B), "rg")
}

// SetStrokeColor sets the colour used for stroking paths.
//
// This implements the PDF graphics operator "RG".
func (w *Writer) SetStrokeColor(c RGB) {
	if !w.isValid("SetStrokeColor", objPage|objText) {
		return
	}
	if w.isSet(StateStrokeColor) && w.State.StrokeColor == c {
		return
	}

	w.State.StrokeColor = c
	w.Set |= StateStrokeColor

	_, w.Err = fmt.Fprintln(w.Content, format(c.R), format(c.G), format(c.B), "RG")
}
