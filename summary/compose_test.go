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

package summary

import (
	"bytes"
	"strings"
	"testing"

	"golang.org/x/text/language"

	"seehuhn.de/go/xmp"

	"seehuhn.de/go/invoice/pdf"
	"seehuhn.de/go/invoice/pdf/pagetree"
)

func TestCompose(t *testing.T) {
	body, warnings, err := Compose(makeRecords(3), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if warnings != nil {
		t.Errorf("unexpected warnings %v", warnings.Errs)
	}

	r, err := pdf.NewReader(bytes.NewReader(body), nil)
	if err != nil {
		t.Fatal(err)
	}
	n, err := pagetree.NumPages(r)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("got %d pages", n)
	}

	meta := r.GetMeta()
	if meta.Version != pdf.V1_7 {
		t.Errorf("wrong version %s", meta.Version)
	}
	if want := "Invoice summary – ABC Corp / Ltd."; meta.Info.Title != want {
		t.Errorf("got title %q, want %q", meta.Info.Title, want)
	}
	if !meta.Info.CreationDate.Equal(testNow) {
		t.Errorf("wrong creation date %s", meta.Info.CreationDate)
	}
	if meta.Catalog.Lang != language.BritishEnglish {
		t.Errorf("wrong language %s", meta.Catalog.Lang)
	}
	if meta.Catalog.OutputIntents == nil {
		t.Error("missing output intent")
	}

	stm, err := pdf.GetStream(r, meta.Catalog.Metadata)
	if err != nil {
		t.Fatal(err)
	}
	xmpData, err := pdf.DecodeStream(r, stm)
	if err != nil {
		t.Fatal(err)
	}
	_, err = xmp.Read(bytes.NewReader(xmpData))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(xmpData, []byte("Invoice summary")) {
		t.Error("title missing from XMP metadata")
	}

	_, page, err := pagetree.GetPage(r, 0)
	if err != nil {
		t.Fatal(err)
	}
	box, err := pdf.GetRectangle(r, page["MediaBox"])
	if err != nil {
		t.Fatal(err)
	}
	if box.URx != 595 || box.URy != 842 {
		t.Errorf("wrong page size %v", box)
	}
	contents, err := pdf.GetStream(r, page["Contents"])
	if err != nil {
		t.Fatal(err)
	}
	content, err := pdf.DecodeStream(r, contents)
	if err != nil {
		t.Fatal(err)
	}
	// rows 0 and 2 are shaded
	if k := strings.Count(string(content), " re\n"); k != 2 {
		t.Errorf("found %d shaded rows", k)
	}
	if !strings.Contains(string(content), "0.95 0.95 0.95 rg") {
		t.Error("missing shading colour")
	}
}

func TestComposeEmpty(t *testing.T) {
	body, warnings, err := Compose(nil, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !warnings.Has(ErrEmptyInput) {
		t.Error("missing warning for empty input")
	}

	r, err := pdf.NewReader(bytes.NewReader(body), nil)
	if err != nil {
		t.Fatal(err)
	}
	n, err := pagetree.NumPages(r)
	if err != nil || n != 1 {
		t.Errorf("got %d pages, %v", n, err)
	}
	if want := "Invoice summary – N/A"; r.GetMeta().Info.Title != want {
		t.Errorf("got title %q", r.GetMeta().Info.Title)
	}
}

func TestComposeMultiPage(t *testing.T) {
	records := makeRecords(100)
	body, _, err := Compose(records, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	doc := Layout(records, testFonts(t), testOptions())

	r, err := pdf.NewReader(bytes.NewReader(body), nil)
	if err != nil {
		t.Fatal(err)
	}
	n, err := pagetree.NumPages(r)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(doc.Pages) || n < 4 {
		t.Errorf("got %d pages, want %d", n, len(doc.Pages))
	}
}

func TestComposeDeterministic(t *testing.T) {
	records := makeRecords(40)
	a, _, err := Compose(records, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := Compose(records, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("output is not deterministic")
	}
}

// TestRoundTrip checks that decoding a summary and writing it again
// without changes reproduces the original bytes.
func TestRoundTrip(t *testing.T) {
	body, _, err := Compose(makeRecords(50), testOptions())
	if err != nil {
		t.Fatal(err)
	}

	data, err := pdf.Read(bytes.NewReader(body), nil)
	if err != nil {
		t.Fatal(err)
	}
	buf := &bytes.Buffer{}
	err = data.Write(buf, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), body) {
		t.Errorf("round trip changed the file (%d -> %d bytes)", len(body), buf.Len())
	}
}
