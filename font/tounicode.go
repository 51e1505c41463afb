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

package font

import (
	"fmt"
	"io"
	"text/template"
	"unicode/utf16"

	"golang.org/x/exp/slices"

	"seehuhn.de/go/postscript"
	"seehuhn.de/go/sfnt/glyph"
)

type toUnicodeEntry struct {
	Code  glyph.ID
	Value []rune
}

// writeToUnicode writes a ToUnicode CMap which maps two-byte character
// codes to the given text.
func writeToUnicode(w io.Writer, text map[glyph.ID][]rune) error {
	entries := make([]toUnicodeEntry, 0, len(text))
	for gid, rr := range text {
		entries = append(entries, toUnicodeEntry{Code: gid, Value: rr})
	}
	slices.SortFunc(entries, func(a, b toUnicodeEntry) int {
		return int(a.Code) - int(b.Code)
	})

	var chunks [][]toUnicodeEntry
	for len(entries) > 0 {
		n := min(len(entries), 100)
		chunks = append(chunks, entries[:n])
		entries = entries[n:]
	}

	return toUnicodeTmpl.Execute(w, chunks)
}

var toUnicodeTmpl = template.Must(template.New("tounicode").Funcs(template.FuncMap{
	"PN": func(s string) string {
		return postscript.Name(s).PS()
	},
	"Single": func(e toUnicodeEntry) string {
		val := ""
		for _, c := range utf16.Encode(e.Value) {
			val += fmt.Sprintf("%04x", c)
		}
		return fmt.Sprintf("<%04x> <%s>", uint16(e.Code), val)
	},
}).Parse(`/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CMapName {{PN "Adobe-Identity-UCS"}} def
/CMapType 2 def
/CIDSystemInfo <<
/Registry (Adobe)
/Ordering (UCS)
/Supplement 0
>> def
1 begincodespacerange
<0000> <ffff>
endcodespacerange
{{range . -}}
{{len .}} beginbfchar
{{range . -}}
{{Single .}}
{{end -}}
endbfchar
{{end -}}
endcmap
CMapName currentdict /CMap defineresource pop
end
end
`))
