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

package merge

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/text/language"

	"seehuhn.de/go/invoice/pdf"
	"seehuhn.de/go/invoice/pdf/pagetree"
)

// makeDocument returns a PDF file with numPages pages.  Each page carries
// a /Marker entry and a content stream which identify the page.
func makeDocument(t *testing.T, prefix string, numPages int, opt *pdf.WriterOptions) []byte {
	t.Helper()

	data := pdf.NewData(pdf.V1_7)
	tree := pagetree.NewWriter(data)
	font := data.Alloc()
	err := data.Put(font, pdf.Dict{
		"Type":     pdf.Name("Font"),
		"Subtype":  pdf.Name("Type1"),
		"BaseFont": pdf.Name("Helvetica"),
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := range numPages {
		marker := fmt.Sprintf("%s-%d", prefix, i+1)

		content := data.Alloc()
		w, err := data.OpenStream(content, nil, pdf.FilterFlate{})
		if err != nil {
			t.Fatal(err)
		}
		fmt.Fprintf(w, "BT /F1 12 Tf 72 720 Td (%s) Tj ET\n", marker)
		err = w.Close()
		if err != nil {
			t.Fatal(err)
		}

		ref := data.Alloc()
		err = tree.AppendPageDict(ref, pdf.Dict{
			"Type":      pdf.Name("Page"),
			"MediaBox":  pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(600 + i), pdf.Integer(800)},
			"Resources": pdf.Dict{"Font": pdf.Dict{"F1": font}},
			"Contents":  content,
			"Marker":    pdf.String(marker),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	root, err := tree.Close()
	if err != nil {
		t.Fatal(err)
	}
	meta := data.GetMeta()
	meta.Catalog.Pages = root
	meta.Catalog.Lang = language.BritishEnglish
	meta.Info = &pdf.Info{Title: prefix}

	buf := &bytes.Buffer{}
	err = data.Write(buf, opt)
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// readMarkers returns the /Marker entries and the decoded page contents of
// all pages in a PDF file.
func readMarkers(t *testing.T, file []byte, opt *pdf.ReaderOptions) ([]string, []string) {
	t.Helper()

	r, err := pdf.NewReader(bytes.NewReader(file), opt)
	if err != nil {
		t.Fatal(err)
	}
	var markers, contents []string
	err = pagetree.ForEachPage(r, func(ref pdf.Reference, dict pdf.Dict) error {
		marker, err := pdf.GetString(r, dict["Marker"])
		if err != nil {
			return err
		}
		markers = append(markers, string(marker))

		stm, err := pdf.GetStream(r, dict["Contents"])
		if err != nil {
			return err
		}
		body, err := pdf.DecodeStream(r, stm)
		if err != nil {
			return err
		}
		contents = append(contents, string(body))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return markers, contents
}

func TestMerge(t *testing.T) {
	summary := makeDocument(t, "summary", 2, nil)
	source := makeDocument(t, "source", 3, nil)

	out, err := Merge(summary, source, nil)
	if err != nil {
		t.Fatal(err)
	}

	markers, contents := readMarkers(t, out, nil)
	expected := []string{"summary-1", "summary-2", "source-1", "source-2", "source-3"}
	if d := cmp.Diff(expected, markers); d != "" {
		t.Errorf("wrong page order (-want +got):\n%s", d)
	}
	for i, body := range contents {
		want := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET\n", expected[i])
		if body != want {
			t.Errorf("page %d: content %q, want %q", i+1, body, want)
		}
	}

	r, err := pdf.NewReader(bytes.NewReader(out), nil)
	if err != nil {
		t.Fatal(err)
	}
	n, err := pagetree.NumPages(r)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("NumPages = %d, want 5", n)
	}
	meta := r.GetMeta()
	if meta.Info == nil || meta.Info.Title != "summary" {
		t.Errorf("document information not taken from summary: %v", meta.Info)
	}
	if meta.Catalog.Lang != language.BritishEnglish {
		t.Errorf("Lang = %v", meta.Catalog.Lang)
	}
	if r.IsEncrypted() {
		t.Error("output unexpectedly encrypted")
	}

	_, page, err := pagetree.GetPage(r, 4)
	if err != nil {
		t.Fatal(err)
	}
	box, err := pdf.GetRectangle(r, page["MediaBox"])
	if err != nil {
		t.Fatal(err)
	}
	if box.URx != 602 || box.URy != 800 {
		t.Errorf("page 5 MediaBox = %v", box)
	}
}

func TestMergeLinks(t *testing.T) {
	// The source has an annotation which refers back to its page.
	data := pdf.NewData(pdf.V1_7)
	tree := pagetree.NewWriter(data)
	page := data.Alloc()
	annot := data.Alloc()
	err := data.Put(annot, pdf.Dict{
		"Type":    pdf.Name("Annot"),
		"Subtype": pdf.Name("Text"),
		"Rect":    pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(10), pdf.Integer(10)},
		"P":       page,
	})
	if err != nil {
		t.Fatal(err)
	}
	err = tree.AppendPageDict(page, pdf.Dict{
		"Type":     pdf.Name("Page"),
		"MediaBox": pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(100), pdf.Integer(100)},
		"Annots":   pdf.Array{annot},
	})
	if err != nil {
		t.Fatal(err)
	}
	root, err := tree.Close()
	if err != nil {
		t.Fatal(err)
	}
	data.GetMeta().Catalog.Pages = root
	buf := &bytes.Buffer{}
	err = data.Write(buf, nil)
	if err != nil {
		t.Fatal(err)
	}

	summary := makeDocument(t, "summary", 1, nil)
	out, err := Merge(summary, buf.Bytes(), nil)
	if err != nil {
		t.Fatal(err)
	}

	r, err := pdf.NewReader(bytes.NewReader(out), nil)
	if err != nil {
		t.Fatal(err)
	}
	newPage, dict, err := pagetree.GetPage(r, 1)
	if err != nil {
		t.Fatal(err)
	}
	annots, err := pdf.GetArray(r, dict["Annots"])
	if err != nil {
		t.Fatal(err)
	}
	if len(annots) != 1 {
		t.Fatalf("expected 1 annotation, got %d", len(annots))
	}
	annotDict, err := pdf.GetDict(r, annots[0])
	if err != nil {
		t.Fatal(err)
	}
	if annotDict["P"] != newPage {
		t.Errorf("annotation refers to %v, want %v", annotDict["P"], newPage)
	}
}

func TestMergeDanglingReference(t *testing.T) {
	// The link annotation refers to an object which does not exist.
	data := pdf.NewData(pdf.V1_3)
	tree := pagetree.NewWriter(data)
	page := data.Alloc()
	link := data.Alloc()
	err := data.Put(link, pdf.Dict{
		"Type":    pdf.Name("Annot"),
		"Subtype": pdf.Name("Link"),
		"Rect":    pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(10), pdf.Integer(10)},
		"Dest":    pdf.Array{page, pdf.Name("Fit")},
		"X":       pdf.NewReference(99, 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	err = tree.AppendPageDict(page, pdf.Dict{
		"Type":     pdf.Name("Page"),
		"MediaBox": pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(100), pdf.Integer(100)},
		"Annots":   pdf.Array{link},
		"Marker":   pdf.String("source-1"),
	})
	if err != nil {
		t.Fatal(err)
	}
	root, err := tree.Close()
	if err != nil {
		t.Fatal(err)
	}
	data.GetMeta().Catalog.Pages = root
	buf := &bytes.Buffer{}
	err = data.Write(buf, nil)
	if err != nil {
		t.Fatal(err)
	}

	summary := makeDocument(t, "summary", 1, nil)
	out, err := Merge(summary, buf.Bytes(), nil)
	if err != nil {
		t.Fatal(err)
	}

	r, err := pdf.NewReader(bytes.NewReader(out), nil)
	if err != nil {
		t.Fatal(err)
	}
	newPage, dict, err := pagetree.GetPage(r, 1)
	if err != nil {
		t.Fatal(err)
	}
	annots, err := pdf.GetArray(r, dict["Annots"])
	if err != nil || len(annots) != 1 {
		t.Fatalf("wrong annotations %v, %v", annots, err)
	}
	annotDict, err := pdf.GetDict(r, annots[0])
	if err != nil {
		t.Fatal(err)
	}
	if x, ok := annotDict["X"]; ok {
		t.Errorf("dangling reference copied as %v", x)
	}
	want := pdf.Array{newPage, pdf.Name("Fit")}
	if d := cmp.Diff(want, annotDict["Dest"]); d != "" {
		t.Errorf("wrong link destination (-want +got):\n%s", d)
	}
}

func TestMergeDecodeError(t *testing.T) {
	summary := makeDocument(t, "summary", 1, nil)
	source := makeDocument(t, "source", 1, nil)

	cases := []struct {
		name    string
		summary []byte
		source  []byte
		input   string
	}{
		{"garbage source", summary, []byte("this is not a PDF file"), InputSource},
		{"empty source", summary, nil, InputSource},
		{"truncated summary", summary[:20], source, InputSummary},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out, err := Merge(c.summary, c.source, nil)
			if out != nil {
				t.Error("output returned despite error")
			}
			var decErr *DecodeError
			if !errors.As(err, &decErr) {
				t.Fatalf("expected DecodeError, got %v", err)
			}
			if decErr.Input != c.input {
				t.Errorf("Input = %q, want %q", decErr.Input, c.input)
			}
		})
	}
}

func TestMergeNoPages(t *testing.T) {
	// The page tree writer refuses empty trees, so the root node is
	// built by hand.
	data := pdf.NewData(pdf.V1_7)
	root := data.Alloc()
	err := data.Put(root, pdf.Dict{
		"Type":  pdf.Name("Pages"),
		"Kids":  pdf.Array{},
		"Count": pdf.Integer(0),
	})
	if err != nil {
		t.Fatal(err)
	}
	data.GetMeta().Catalog.Pages = root
	buf := &bytes.Buffer{}
	err = data.Write(buf, nil)
	if err != nil {
		t.Fatal(err)
	}

	summary := makeDocument(t, "summary", 1, nil)
	_, err = Merge(summary, buf.Bytes(), nil)
	var decErr *DecodeError
	if !errors.As(err, &decErr) || decErr.Input != InputSource {
		t.Fatalf("expected DecodeError for source, got %v", err)
	}
	if !errors.Is(err, errNoPages) {
		t.Errorf("expected errNoPages, got %v", err)
	}
}

func TestMergeEncryptedSource(t *testing.T) {
	summary := makeDocument(t, "summary", 1, nil)
	source := makeDocument(t, "source", 2, &pdf.WriterOptions{
		UserPassword:  "secret",
		OwnerPassword: "owner",
	})

	_, err := Merge(summary, source, &Options{SourcePassword: "wrong"})
	var authErr *pdf.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	var decErr *DecodeError
	if !errors.As(err, &decErr) || decErr.Input != InputSource {
		t.Errorf("expected DecodeError for source, got %v", err)
	}

	core, logs := observer.New(zapcore.DebugLevel)
	out, err := Merge(summary, source, &Options{
		SourcePassword: "secret",
		Logger:         zap.New(core),
	})
	if err != nil {
		t.Fatal(err)
	}
	markers, _ := readMarkers(t, out, nil)
	expected := []string{"summary-1", "source-1", "source-2"}
	if d := cmp.Diff(expected, markers); d != "" {
		t.Errorf("wrong pages (-want +got):\n%s", d)
	}

	if n := logs.FilterMessage("source document is encrypted").Len(); n != 1 {
		t.Errorf("expected one warning about encryption, got %d", n)
	}
	entries := logs.FilterMessage("merged documents").All()
	if len(entries) != 1 {
		t.Fatalf("expected one debug entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["summaryPages"] != int64(1) || fields["sourcePages"] != int64(2) {
		t.Errorf("wrong page counts in log: %v", fields)
	}
}

func TestMergeReadPassword(t *testing.T) {
	summary := makeDocument(t, "summary", 1, nil)
	source := makeDocument(t, "source", 1, &pdf.WriterOptions{
		UserPassword:  "secret",
		OwnerPassword: "owner",
	})

	var tries []int
	_, err := Merge(summary, source, &Options{
		SourcePassword: "wrong",
		ReadPassword: func(_ []byte, try int) string {
			tries = append(tries, try)
			if try == 0 {
				return "secret"
			}
			return ""
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]int{0}, tries); d != "" {
		t.Errorf("unexpected password requests (-want +got):\n%s", d)
	}
}

func TestMergeProtected(t *testing.T) {
	summary := makeDocument(t, "summary", 1, nil)
	source := makeDocument(t, "source", 1, nil)

	out, err := Merge(summary, source, &Options{OutputPassword: "s3cret"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = pdf.NewReader(bytes.NewReader(out), nil)
	if !errors.As(err, new(*pdf.AuthenticationError)) {
		t.Errorf("protected output readable without password: %v", err)
	}

	opt := &pdf.ReaderOptions{
		ReadPassword: func(_ []byte, try int) string {
			if try == 0 {
				return "s3cret"
			}
			return ""
		},
	}
	r, err := pdf.NewReader(bytes.NewReader(out), opt)
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsEncrypted() {
		t.Error("output not encrypted")
	}
	if v := r.GetMeta().Version; v < pdf.V1_6 {
		t.Errorf("version %s too low for AES encryption", v)
	}
	markers, _ := readMarkers(t, out, opt)
	if d := cmp.Diff([]string{"summary-1", "source-1"}, markers); d != "" {
		t.Errorf("wrong pages (-want +got):\n%s", d)
	}
}
