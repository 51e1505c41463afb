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
	"errors"
	"strings"
	"time"
	"unicode/utf16"
)

// TextString creates a String object using the "text string" encoding,
// i.e. using either PDFDocEncoding or UTF-16BE with a byte order mark.
func TextString(s string) String {
	buf, ok := pdfDocEncode(s)
	if ok {
		return buf
	}
	return utf16Encode(s)
}

// AsTextString interprets x as a PDF "text string" and returns
// the corresponding utf-8 encoded string.
func (x String) AsTextString() string {
	if len(x) >= 2 && x[0] == 0xFE && x[1] == 0xFF {
		return utf16Decode(x[2:])
	}
	return pdfDocDecode(x)
}

// Date creates a PDF String object encoding the given date and time.
func Date(t time.Time) String {
	s := t.Format("D:20060102150405-0700")
	k := len(s) - 2
	s = s[:k] + "'" + s[k:]
	return String(s)
}

// AsDate converts a PDF date string to a time.Time object.
// If the string does not have the correct format, an error is returned.
func (x String) AsDate() (time.Time, error) {
	s := x.AsTextString()
	if s == "D:" || s == "" {
		return time.Time{}, nil
	}
	s = strings.ReplaceAll(s, "'", "")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "19") || strings.HasPrefix(s, "20") {
		s = "D:" + s
	}

	formats := []string{
		"D:20060102150405-0700",
		"D:20060102150405-07",
		"D:20060102150405Z0000",
		"D:20060102150405Z00",
		"D:20060102150405Z",
		"D:20060102150405",
		"D:200601021504",
		"D:2006010215",
		"D:20060102",
		"D:200601",
		"D:2006",
	}
	for _, format := range formats {
		t, err := time.Parse(format, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, errNoDate
}

var errNoDate = errors.New("not a valid date string")

func utf16Encode(s string) String {
	codes := utf16.Encode([]rune(s))
	res := make(String, 2, 2+2*len(codes))
	res[0] = 0xFE
	res[1] = 0xFF
	for _, c := range codes {
		res = append(res, byte(c>>8), byte(c))
	}
	return res
}

func utf16Decode(s String) string {
	u := make([]uint16, 0, len(s)/2)
	for i := 0; i+1 < len(s); i += 2 {
		u = append(u, uint16(s[i])<<8|uint16(s[i+1]))
	}
	return string(utf16.Decode(u))
}

// pdfDocEncode converts s to PDFDocEncoding.  The second return value
// reports whether all characters could be represented.
func pdfDocEncode(s string) (String, bool) {
	res := make(String, 0, len(s))
	for _, r := range s {
		c, ok := pdfDocRev[r]
		if !ok {
			return nil, false
		}
		res = append(res, c)
	}
	return res, true
}

func pdfDocDecode(s String) string {
	var b strings.Builder
	for _, c := range s {
		r := pdfDocTable[c]
		if r == noRune {
			r = rune(c)
		}
		b.WriteRune(r)
	}
	return b.String()
}

const noRune = 0xFFFD

// pdfDocTable maps PDFDocEncoding codes to unicode, see table D.2 of
// ISO 32000-2:2020.
var pdfDocTable [256]rune

var pdfDocRev map[rune]byte

func init() {
	for i := range pdfDocTable {
		pdfDocTable[i] = rune(i)
	}
	copy(pdfDocTable[0x18:], []rune{
		0x02D8, 0x02C7, 0x02C6, 0x02D9, 0x02DD, 0x02DB, 0x02DA, 0x02DC,
	})
	pdfDocTable[0x7F] = noRune
	copy(pdfDocTable[0x80:], []rune{
		0x2022, 0x2020, 0x2021, 0x2026, 0x2014, 0x2013, 0x0192, 0x2044,
		0x2039, 0x203A, 0x2212, 0x2030, 0x201E, 0x201C, 0x201D, 0x2018,
		0x2019, 0x201A, 0x2122, 0xFB01, 0xFB02, 0x0141, 0x0152, 0x0160,
		0x0178, 0x017D, 0x0131, 0x0142, 0x0153, 0x0161, 0x017E, noRune,
		0x20AC,
	})
	pdfDocTable[0xAD] = noRune

	pdfDocRev = make(map[rune]byte, 256)
	for c, r := range pdfDocTable {
		if r == noRune {
			continue
		}
		// control characters other than tab, newline and carriage return
		// are not allowed in text strings
		if c < 0x18 && c != '\t' && c != '\n' && c != '\r' {
			continue
		}
		pdfDocRev[r] = byte(c)
	}
}
