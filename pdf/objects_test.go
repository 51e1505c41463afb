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

package pdf

import (
	"testing"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		in   Object
		want string
	}{
		{nil, "null"},
		{Bool(true), "true"},
		{Integer(-12), "-12"},
		{Real(1.5), "1.5"},
		{Real(2), "2."},
		{Number(2), "2"},
		{Number(0.25), "0.25"},
		{String("hello"), "(hello)"},
		{String("a(b)c"), "(a(b)c)"},
		{String("a)b(c"), `(a\)b\(c)`},
		{String("line\n"), `(line\n)`},
		{String("\x00\x01\x02"), "<000102>"},
		{String(""), "()"},
		{String("\000"), "<00>"},
		{String("a (test version"), `(a \(test version)`},
		{String("))(("), `(\)\)\(\()`},
		{String("ab\x00cd"), `(ab\000cd)`},
		{String("\x00\x01x"), "<000178>"},
		{Name("Type"), "/Type"},
		{Name("A B"), "/A#20B"},
		{Name("x#y"), "/x#23y"},
		{Array{Integer(1), nil, Name("N")}, "[1 null /N]"},
		{Dict{"B": Integer(2), "A": Integer(1), "C": nil}, "<<\n/A 1\n/B 2\n>>"},
		{NewReference(12, 0), "12 0 R"},
		{NewReference(7, 3), "7 3 R"},
	}
	for _, c := range cases {
		got := Format(c.in)
		if got != c.want {
			t.Errorf("Format(%#v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestReference(t *testing.T) {
	ref := NewReference(1<<32-1, 1<<16-1)
	if ref.Number() != 1<<32-1 || ref.Generation() != 1<<16-1 {
		t.Errorf("got %d %d", ref.Number(), ref.Generation())
	}
	if s := NewReference(5, 2).String(); s != "obj_5@2" {
		t.Errorf("got %q", s)
	}
}
