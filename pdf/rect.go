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

package pdf

import (
	"errors"
	"math"

	"seehuhn.de/go/geom/rect"
)

// GetRectangle resolves references to indirect objects and makes sure the
// resulting object is a PDF rectangle object.
// If the object is null, nil is returned.
func GetRectangle(r Getter, obj Object) (*rect.Rect, error) {
	a, err := GetArray(r, obj)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, nil
	}
	if len(a) != 4 {
		return nil, &MalformedFileError{Err: errNoRectangle}
	}

	var values [4]float64
	for i, obj := range a {
		values[i], err = GetNumber(r, obj)
		if err != nil {
			return nil, err
		}
	}
	return &rect.Rect{
		LLx: math.Min(values[0], values[2]),
		LLy: math.Min(values[1], values[3]),
		URx: math.Max(values[0], values[2]),
		URy: math.Max(values[1], values[3]),
	}, nil
}

// Rectangle converts a rectangle to a PDF array.
// Coordinates are rounded to two decimal places.
func Rectangle(r rect.Rect) Array {
	res := make(Array, 0, 4)
	for _, x := range []float64{r.LLx, r.LLy, r.URx, r.URy} {
		res = append(res, Number(math.Round(100*x)/100))
	}
	return res
}

var errNoRectangle = errors.New("not a valid PDF rectangle")
