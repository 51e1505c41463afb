// seehuhn.de/go/invoice - compose invoice summaries and merge PDF files
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
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

package predict

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPNGUp(t *testing.T) {
	p := &Params{Colors: 1, BitsPerComponent: 8, Columns: 3, Predictor: 12}
	in := []byte{
		2, 1, 2, 3,
		2, 1, 1, 1,
		2, 255, 0, 0,
	}
	out, err := Decode(in, p)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 2, 3, 2, 3, 4, 1, 3, 4}
	if d := cmp.Diff(want, out); d != "" {
		t.Error(d)
	}
}

func TestPNGMixed(t *testing.T) {
	p := &Params{Colors: 1, BitsPerComponent: 8, Columns: 4, Predictor: 15}
	in := []byte{
		0, 10, 20, 30, 40,
		1, 1, 1, 1, 1, // Sub
		3, 0, 0, 0, 0, // Average
		4, 0, 0, 0, 0, // Paeth
	}
	out, err := Decode(in, p)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		10, 20, 30, 40,
		1, 2, 3, 4,
		0, 1, 2, 3,
		0, 1, 2, 3,
	}
	if d := cmp.Diff(want, out); d != "" {
		t.Error(d)
	}
}

func TestTIFF8(t *testing.T) {
	p := &Params{Colors: 2, BitsPerComponent: 8, Columns: 3, Predictor: 2}
	in := []byte{10, 20, 1, 2, 1, 2}
	out, err := Decode(in, p)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{10, 20, 11, 22, 12, 24}
	if d := cmp.Diff(want, out); d != "" {
		t.Error(d)
	}
}

func TestTIFF1(t *testing.T) {
	// 8 one-bit pixels, differences encoded with XOR
	p := &Params{Colors: 1, BitsPerComponent: 1, Columns: 8, Predictor: 2}
	out, err := Decode([]byte{0b10000000}, p)
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != 0xFF {
		t.Errorf("got %08b, want 11111111", out[0])
	}
}

func TestInvalid(t *testing.T) {
	for _, p := range []*Params{
		{Colors: 1, BitsPerComponent: 8, Columns: 1, Predictor: 7},
		{Colors: 0, BitsPerComponent: 8, Columns: 1, Predictor: 12},
		{Colors: 1, BitsPerComponent: 3, Columns: 1, Predictor: 12},
		{Colors: 1, BitsPerComponent: 8, Columns: 0, Predictor: 12},
	} {
		_, err := Decode([]byte{0, 0}, p)
		if err == nil {
			t.Errorf("%v: missing error", p)
		}
	}
}
