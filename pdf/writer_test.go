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
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/language"
)

// writeTestFile writes a one-page document with a content stream.
func writeTestFile(t *testing.T, opt *WriterOptions) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, opt)
	if err != nil {
		t.Fatal(err)
	}

	pagesRef := w.Alloc()
	pageRef := w.Alloc()
	contentRef := w.Alloc()

	err = w.Put(pagesRef, Dict{
		"Type":  Name("Pages"),
		"Kids":  Array{pageRef},
		"Count": Integer(1),
	})
	if err != nil {
		t.Fatal(err)
	}
	err = w.Put(pageRef, Dict{
		"Type":     Name("Page"),
		"Parent":   pagesRef,
		"MediaBox": Array{Integer(0), Integer(0), Integer(595), Integer(842)},
		"Contents": contentRef,
		"Label":    String("secret label"),
	})
	if err != nil {
		t.Fatal(err)
	}
	stm, err := w.OpenStream(contentRef, nil, FilterFlate{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = stm.Write([]byte("0 0 m 100 100 l S\n"))
	if err != nil {
		t.Fatal(err)
	}
	err = stm.Close()
	if err != nil {
		t.Fatal(err)
	}

	meta := w.GetMeta()
	meta.Catalog.Pages = pagesRef
	meta.Catalog.Lang = language.BritishEnglish
	meta.Info = &Info{
		Title:        "Invoice summary – Test",
		Producer:     "test",
		CreationDate: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	err = w.Close()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func checkTestFile(t *testing.T, r Getter) {
	t.Helper()

	meta := r.GetMeta()
	if meta.Catalog.Lang != language.BritishEnglish {
		t.Errorf("wrong language %s", meta.Catalog.Lang)
	}
	if meta.Info == nil || meta.Info.Title != "Invoice summary – Test" {
		t.Errorf("wrong info %v", meta.Info)
	}

	pages, err := GetDict(r, meta.Catalog.Pages)
	if err != nil {
		t.Fatal(err)
	}
	kids, err := GetArray(r, pages["Kids"])
	if err != nil || len(kids) != 1 {
		t.Fatalf("wrong kids %v %v", kids, err)
	}
	page, err := GetDict(r, kids[0])
	if err != nil {
		t.Fatal(err)
	}
	label, err := GetString(r, page["Label"])
	if err != nil || string(label) != "secret label" {
		t.Errorf("wrong label %q %v", label, err)
	}
	stm, err := GetStream(r, page["Contents"])
	if err != nil {
		t.Fatal(err)
	}
	data, err := DecodeStream(r, stm)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "0 0 m 100 100 l S\n" {
		t.Errorf("wrong content %q", data)
	}
}

func TestWriteRead(t *testing.T) {
	for _, v := range []Version{V1_4, V1_7, V2_0} {
		t.Run(v.String(), func(t *testing.T) {
			body := writeTestFile(t, &WriterOptions{Version: v})
			r, err := NewReader(bytes.NewReader(body), nil)
			if err != nil {
				t.Fatal(err)
			}
			if r.GetMeta().Version != v {
				t.Errorf("wrong version %s", r.GetMeta().Version)
			}
			if r.IsEncrypted() {
				t.Error("file unexpectedly encrypted")
			}
			checkTestFile(t, r)
		})
	}
}

func TestDeterministic(t *testing.T) {
	a := writeTestFile(t, nil)
	b := writeTestFile(t, nil)
	if !bytes.Equal(a, b) {
		t.Error("output differs between runs")
	}
}

func TestDataRoundTrip(t *testing.T) {
	orig := writeTestFile(t, nil)

	d, err := Read(bytes.NewReader(orig), nil)
	if err != nil {
		t.Fatal(err)
	}
	checkTestFile(t, d)

	buf := &bytes.Buffer{}
	err = d.Write(buf, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(string(orig), buf.String()); d != "" {
		t.Errorf("round trip changed the file (-want +got):\n%s", d)
	}
}

func TestEncryption(t *testing.T) {
	for _, v := range []Version{V1_7, V2_0} {
		t.Run(v.String(), func(t *testing.T) {
			body := writeTestFile(t, &WriterOptions{
				Version:       v,
				UserPassword:  "user",
				OwnerPassword: "owner",
			})
			if bytes.Contains(body, []byte("secret label")) {
				t.Error("string not encrypted")
			}

			_, err := NewReader(bytes.NewReader(body), nil)
			var authErr *AuthenticationError
			if !errors.As(err, &authErr) {
				t.Fatalf("expected AuthenticationError, got %v", err)
			}

			for _, passwd := range []string{"user", "owner"} {
				tries := 0
				opt := &ReaderOptions{
					ReadPassword: func(_ []byte, try int) string {
						tries++
						if try == 0 {
							return "wrong"
						}
						if try == 1 {
							return passwd
						}
						return ""
					},
				}
				r, err := NewReader(bytes.NewReader(body), opt)
				if err != nil {
					t.Fatalf("%s: %v", passwd, err)
				}
				if tries != 2 {
					t.Errorf("%s: %d password tries", passwd, tries)
				}
				if !r.IsEncrypted() {
					t.Error("file not marked as encrypted")
				}
				checkTestFile(t, r)
			}
		})
	}
}

func TestEncryptionVersion(t *testing.T) {
	_, err := NewWriter(io.Discard, &WriterOptions{Version: V1_4, UserPassword: "x"})
	var vErr *VersionError
	if !errors.As(err, &vErr) {
		t.Errorf("expected VersionError, got %v", err)
	}
}

func TestReadDamagedXRef(t *testing.T) {
	body := writeTestFile(t, &WriterOptions{Version: V1_4})
	idx := bytes.LastIndex(body, []byte("startxref"))
	damaged := append([]byte{}, body[:idx]...)
	damaged = append(damaged, "startxref\n12\n%%EOF\n"...)

	r, err := NewReader(bytes.NewReader(damaged), nil)
	if err != nil {
		t.Fatal(err)
	}
	checkTestFile(t, r)
}

func TestReadNotPDF(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("hello world")), nil)
	var malformed *MalformedFileError
	if !errors.As(err, &malformed) {
		t.Errorf("expected MalformedFileError, got %v", err)
	}
}

func TestEncryptionFileID(t *testing.T) {
	id := []byte("0123456789abcdef")
	for _, v := range []Version{V1_7, V2_0} {
		t.Run(v.String(), func(t *testing.T) {
			body := writeTestFile(t, &WriterOptions{
				Version:      v,
				ID:           [][]byte{id, id},
				UserPassword: "user",
			})
			// The file ID is needed to derive the key, and is never encrypted.
			if !bytes.Contains(body, []byte("(0123456789abcdef)")) {
				t.Error("file ID not written in plain text")
			}

			r, err := NewReader(bytes.NewReader(body), &ReaderOptions{
				ReadPassword: func(_ []byte, try int) string {
					if try == 0 {
						return "user"
					}
					return ""
				},
			})
			if err != nil {
				t.Fatal(err)
			}
			if d := cmp.Diff([][]byte{id, id}, r.GetMeta().ID); d != "" {
				t.Errorf("wrong file ID (-want +got):\n%s", d)
			}
			checkTestFile(t, r)
		})
	}
}

func TestWriteUnusedReference(t *testing.T) {
	for _, v := range []Version{V1_4, V1_7} {
		t.Run(v.String(), func(t *testing.T) {
			buf := &bytes.Buffer{}
			w, err := NewWriter(buf, &WriterOptions{Version: v})
			if err != nil {
				t.Fatal(err)
			}
			pagesRef := w.Alloc()
			unused := w.Alloc()
			err = w.Put(pagesRef, Dict{
				"Type":  Name("Pages"),
				"Kids":  Array{},
				"Count": Integer(0),
				"X":     unused,
			})
			if err != nil {
				t.Fatal(err)
			}
			w.GetMeta().Catalog.Pages = pagesRef
			err = w.Close()
			if err != nil {
				t.Fatal(err)
			}

			r, err := NewReader(bytes.NewReader(buf.Bytes()), nil)
			if err != nil {
				t.Fatal(err)
			}
			obj, err := r.Get(unused)
			if err != nil {
				t.Fatal(err)
			}
			if obj != nil {
				t.Errorf("unused reference resolves to %v", obj)
			}
		})
	}
}

func TestDataStreamReread(t *testing.T) {
	orig := writeTestFile(t, nil)
	d, err := Read(bytes.NewReader(orig), nil)
	if err != nil {
		t.Fatal(err)
	}

	pages, err := GetDict(d, d.GetMeta().Catalog.Pages)
	if err != nil {
		t.Fatal(err)
	}
	kids, err := GetArray(d, pages["Kids"])
	if err != nil {
		t.Fatal(err)
	}
	page, err := GetDict(d, kids[0])
	if err != nil {
		t.Fatal(err)
	}
	var bodies []string
	for range 2 {
		stm, err := GetStream(d, page["Contents"])
		if err != nil {
			t.Fatal(err)
		}
		body, err := io.ReadAll(stm.R)
		if err != nil {
			t.Fatal(err)
		}
		bodies = append(bodies, string(body))
	}
	if bodies[0] == "" {
		t.Fatal("empty stream data")
	}
	if d := cmp.Diff(bodies[0], bodies[1]); d != "" {
		t.Errorf("second read differs (-first +second):\n%s", d)
	}

	first := &bytes.Buffer{}
	err = d.Write(first, nil)
	if err != nil {
		t.Fatal(err)
	}
	second := &bytes.Buffer{}
	err = d.Write(second, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(first.String(), second.String()); d != "" {
		t.Errorf("second write differs (-first +second):\n%s", d)
	}
}
