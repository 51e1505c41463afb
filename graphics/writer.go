// seehuhn.de/go/invoice - compose invoice summaries and merge PDF files
// Copyright (C) 2023  Jochen Voss <voss@seehuhn.de>
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

// Package graphics writes PDF content streams.
//
// A [Writer] tracks the graphics state and the nesting of text objects and
// graphics state pairs.  The first error encountered is stored in
// [Writer.Err]; once an error has occurred, all further operators are
// ignored.
package graphics

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"seehuhn.de/go/geom/matrix"

	"seehuhn.de/go/invoice/font"
	"seehuhn.de/go/invoice/pdf"
)

// Writer writes a PDF content stream.
type Writer struct {
	Content   io.Writer
	Resources pdf.Dict
	Err       error

	currentObject objectType

	State
	stack []State

	nesting  []pairType
	fontName map[*font.Embedded]pdf.Name
}

// State holds the parts of the graphics state tracked by a [Writer].
type State struct {
	TextMatrix     matrix.Matrix
	TextLineMatrix matrix.Matrix
	TextFont       *font.Embedded
	TextFontSize   float64

	FillColor   RGB
	StrokeColor RGB
	LineWidth   float64

	Set StateBits
}

// StateBits records which graphics state parameters have been set.
type StateBits uint

// Possible values for [StateBits].
const (
	StateTextMatrix StateBits = 1 << iota
	StateTextFont
	StateFillColor
	StateStrokeColor
	StateLineWidth
)

// RGB is a colour in the DeviceRGB colour space.
// Components range from 0 to 1.
type RGB struct {
	R, G, B float64
}

type pairType byte

const (
	pairTypeQ  pairType = iota + 1 // q ... Q
	pairTypeBT                     // BT ... ET
)

// NewWriter allocates a new Writer object.
func NewWriter(out io.Writer) *Writer {
	return &Writer{
		Content:       out,
		Resources:     pdf.Dict{},
		currentObject: objPage,
		State:         newState(),
		fontName:      make(map[*font.Embedded]pdf.Name),
	}
}

func newState() State {
	return State{
		TextMatrix:     matrix.Identity,
		TextLineMatrix: matrix.Identity,
		LineWidth:      1,
		Set:            StateFillColor | StateStrokeColor | StateLineWidth,
	}
}

// NewStream resets the writer for a new content stream.
// The new content stream shares the resource dictionary with the previous
// content stream.
func (w *Writer) NewStream(out io.Writer) {
	w.Content = out
	w.currentObject = objPage
	w.State = newState()
	w.stack = w.stack[:0]
	w.nesting = w.nesting[:0]
	w.Err = nil
}

// Close checks that all text objects and saved graphics states have been
// closed.  It returns the first error encountered while writing the content
// stream.
func (w *Writer) Close() error {
	if w.Err != nil {
		return w.Err
	}
	if len(w.nesting) > 0 {
		return fmt.Errorf("content stream: %d unclosed pairs", len(w.nesting))
	}
	return nil
}

// isValid returns true, if the current graphics object is one of the given
// types and if w.Err is nil.  Otherwise it sets w.Err and returns false.
func (w *Writer) isValid(cmd string, ss objectType) bool {
	if w.Err != nil {
		return false
	}

	if w.currentObject&ss != 0 {
		return true
	}

	w.Err = fmt.Errorf("unexpected state %q for %q", w.currentObject, cmd)
	return false
}

func (w *Writer) isSet(bits StateBits) bool {
	return w.State.Set&bits == bits
}

// getFontName returns the resource name used for f, and adds the font to
// the resource dictionary if needed.
func (w *Writer) getFontName(f *font.Embedded) pdf.Name {
	if name, ok := w.fontName[f]; ok {
		return name
	}

	fonts, _ := w.Resources["Font"].(pdf.Dict)
	if fonts == nil {
		fonts = pdf.Dict{}
		w.Resources["Font"] = fonts
	}
	var name pdf.Name
	for k := len(fonts) + 1; ; k++ {
		name = pdf.Name("F" + strconv.Itoa(k))
		if _, used := fonts[name]; !used {
			break
		}
	}
	fonts[name] = f.Ref
	w.fontName[f] = name
	return name
}

type objectType byte

// The possible values of currentObject, see figure 9 of ISO 32000-2:2020.
const (
	objPage objectType = 1 << iota
	objPath
	objText
)

func (s objectType) String() string {
	switch s {
	case objPage:
		return "page"
	case objPath:
		return "path"
	case objText:
		return "text"
	default:
		return fmt.Sprintf("objectType(%d)", s)
	}
}

func (w *Writer) coord(x float64) string {
	return format(x)
}

func format(x float64) string {
	return strconv.FormatFloat(math.Round(x*1000)/1000, 'f', -1, 64)
}

func nearlyEqual(a, b float64) bool {
	const ε = 1e-6
	return math.Abs(a-b) < ε
}
