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

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"seehuhn.de/go/invoice/pdf"
	"seehuhn.de/go/invoice/pdf/pagetree"
)

const testRecords = `[
  {"invoiceNumber": "1001", "date": "02/05/2025", "supplierName": "ABC Corp Ltd",
   "description": "Registered mail", "amount": "Rs 100.00", "quantity": 2,
   "vat": "Rs 15.00", "total": "Rs 115.00"}
]`

func testNow() time.Time {
	return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
}

func writeTestFiles(t *testing.T, dir string) (string, string) {
	t.Helper()

	recFile := filepath.Join(dir, "records.json")
	err := os.WriteFile(recFile, []byte(testRecords), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	data := pdf.NewData(pdf.V1_7)
	tree := pagetree.NewWriter(data)
	for range 3 {
		err = tree.AppendPageDict(data.Alloc(), pdf.Dict{
			"Type":     pdf.Name("Page"),
			"MediaBox": pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(612), pdf.Integer(792)},
		})
		if err != nil {
			t.Fatal(err)
		}
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
	srcFile := filepath.Join(dir, "scan.pdf")
	err = os.WriteFile(srcFile, buf.Bytes(), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	return recFile, srcFile
}

func countPages(t *testing.T, body []byte, opt *pdf.ReaderOptions) int {
	t.Helper()
	r, err := pdf.NewReader(bytes.NewReader(body), opt)
	if err != nil {
		t.Fatal(err)
	}
	n, err := pagetree.NumPages(r)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	recFile, srcFile := writeTestFiles(t, dir)

	cfg := &config{
		RecordsFile: recFile,
		SourceFile:  srcFile,
		Now:         testNow,
	}
	err := run(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	body, err := os.ReadFile("ABC_Corp_Ltd_May_2025.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if n := countPages(t, body, nil); n != 4 {
		t.Errorf("expected 4 pages, got %d", n)
	}

	// no temporary files are left behind
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("unexpected directory contents: %q", names)
	}

	// the output file is not overwritten without Force
	err = run(cfg, zap.NewNop())
	if err == nil {
		t.Error("existing output file overwritten")
	}
	cfg.Force = true
	err = run(cfg, zap.NewNop())
	if err != nil {
		t.Error(err)
	}
}

func TestRunStdout(t *testing.T) {
	dir := t.TempDir()
	recFile, _ := writeTestFiles(t, dir)

	buf := &bytes.Buffer{}
	cfg := &config{
		RecordsFile:    recFile,
		OutFile:        "-",
		OutputPassword: "secret",
		Now:            testNow,
		Stdout:         buf,
	}
	err := run(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	opt := &pdf.ReaderOptions{
		ReadPassword: func(_ []byte, try int) string {
			if try == 0 {
				return "secret"
			}
			return ""
		},
	}
	if n := countPages(t, buf.Bytes(), opt); n != 1 {
		t.Errorf("expected 1 page, got %d", n)
	}
}

func TestRunBadSource(t *testing.T) {
	dir := t.TempDir()
	recFile, _ := writeTestFiles(t, dir)
	badFile := filepath.Join(dir, "bad.pdf")
	err := os.WriteFile(badFile, []byte("%PDF-1.7\ngarbage"), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out.pdf")
	err = run(&config{
		RecordsFile: recFile,
		SourceFile:  badFile,
		OutFile:     out,
		Now:         testNow,
	}, zap.NewNop())
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, err := os.Stat(out); err == nil {
		t.Error("output written despite error")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "x.pdf")
	for _, body := range []string{"first", "second"} {
		err := writeFileAtomic(fname, []byte(body))
		if err != nil {
			t.Fatal(err)
		}
		got, err := os.ReadFile(fname)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != body {
			t.Errorf("got %q, want %q", got, body)
		}
	}

	err := writeFileAtomic(filepath.Join(t.TempDir(), "missing", "x.pdf"), nil)
	if err == nil {
		t.Error("expected an error for a missing directory")
	}
}
