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

package runlength

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRoundTrip(t *testing.T) {
	testCases := [][]byte{
		{0},
		{0, 0},
		{0, 0, 0},
		{1, 2, 3, 4, 5},
		{1, 1, 1, 1, 1},
		{0, 1, 2, 3, 0, 0, 0, 0, 4, 5, 6},
		bytes.Repeat([]byte{7}, 128),
		bytes.Repeat([]byte{8}, 300),
		bytes.Repeat([]byte{1, 2}, 200),
	}

	for i, data := range testCases {
		enc := Encode(data)
		out, err := Decode(enc)
		if err != nil {
			t.Fatalf("case %d: decode: %v", i, err)
		}
		if diff := cmp.Diff(data, out); diff != "" {
			t.Errorf("case %d: round trip failed (-want +got):\n%s", i, diff)
		}
	}
}

func TestDecode(t *testing.T) {
	in := []byte{2, 'a', 'b', 'c', 254, 'x', 128, 'z'}
	out, err := Decode(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "abcxxx" {
		t.Errorf("got %q", out)
	}
}

func TestTruncated(t *testing.T) {
	_, err := Decode([]byte{5, 'a'})
	if err != errTruncated {
		t.Errorf("got %v, want %v", err, errTruncated)
	}
}
