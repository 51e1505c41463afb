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

// Invoice-summary composes a summary of extracted invoice records and
// prepends it to the scanned source invoice.
//
// Usage:
//
//	invoice-summary [options] <records.json> <source.pdf>
//
// The records file holds the JSON output of the invoice extraction step.
// The merged document is written to a file named after the supplier and
// the billing period, unless a different name is given with -o.  Use
// "-o -" to write to standard output.
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"seehuhn.de/go/invoice"
	"seehuhn.de/go/invoice/merge"
	"seehuhn.de/go/invoice/pdf"
	"seehuhn.de/go/invoice/records"
	"seehuhn.de/go/invoice/summary"
	"seehuhn.de/go/invoice/tools/internal/buildinfo"
	"seehuhn.de/go/invoice/tools/internal/profile"
)

var (
	outFile     = flag.String("o", "", "output file name (default: derived from the supplier name)")
	force       = flag.Bool("f", false, "overwrite the output file if it exists")
	passwd      = flag.String("p", "", "password of the source PDF (\"-\" to prompt)")
	protect     = flag.String("protect", "", "encrypt the output with this password")
	summaryOnly = flag.Bool("summary-only", false, "write only the summary, without the source PDF")
	verbose     = flag.Bool("v", false, "verbose logging")
	cpuprofile  = flag.String("cpuprofile", "", "write cpu profile to `file`")
	memprofile  = flag.String("memprofile", "", "write memory profile to `file`")
)

func main() {
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintln(out, buildinfo.Short("invoice-summary"))
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Usage: invoice-summary [options] <records.json> <source.pdf>")
		fmt.Fprintln(out)
		flag.PrintDefaults()
	}
	flag.Parse()

	numArgs := 2
	if *summaryOnly {
		numArgs = 1
	}
	if flag.NArg() != numArgs {
		flag.Usage()
		os.Exit(2)
	}

	log, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	stop, err := profile.Start(*cpuprofile, *memprofile, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg := &config{
		RecordsFile:    flag.Arg(0),
		OutFile:        *outFile,
		Force:          *force,
		OutputPassword: *protect,
		Now:            time.Now,
		Stdout:         os.Stdout,
	}
	if !*summaryOnly {
		cfg.SourceFile = flag.Arg(1)
	}
	if *passwd == "-" {
		cfg.ReadPassword = promptPassword
	} else {
		cfg.SourcePassword = *passwd
	}

	err = run(cfg, log)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invoice-summary:", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	var log *zap.Logger
	var err error
	if verbose {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return log.With(buildinfo.Read().Fields()...), nil
}

// config describes one run of the tool.
type config struct {
	RecordsFile string
	SourceFile  string // empty for a summary without source document
	OutFile     string // "-" for standard output, empty for the default name
	Force       bool

	SourcePassword string
	ReadPassword   func(ID []byte, try int) string
	OutputPassword string

	Now    func() time.Time
	Stdout io.Writer
}

func run(cfg *config, log *zap.Logger) error {
	recs, err := readRecords(cfg.RecordsFile)
	if err != nil {
		return err
	}
	log.Info("read invoice records",
		zap.String("file", cfg.RecordsFile),
		zap.Int("records", len(recs)),
		zap.Float64("total", invoice.GrandTotal(recs)))

	now := cfg.Now()
	body, warnings, err := summary.Compose(recs, &summary.Options{
		Now: func() time.Time { return now },
	})
	if err != nil {
		return err
	}
	if warnings != nil {
		for _, w := range warnings.Errs {
			log.Warn("summary", zap.Error(w))
		}
	}

	if cfg.SourceFile != "" {
		source, err := os.ReadFile(cfg.SourceFile)
		if err != nil {
			return err
		}
		body, err = merge.Merge(body, source, &merge.Options{
			Logger:         log,
			SourcePassword: cfg.SourcePassword,
			ReadPassword:   cfg.ReadPassword,
			OutputPassword: cfg.OutputPassword,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", cfg.SourceFile, err)
		}
	} else if cfg.OutputPassword != "" {
		// Protect the summary by itself.
		body, err = protectFile(body, cfg.OutputPassword)
		if err != nil {
			return err
		}
	}

	out := cfg.OutFile
	if out == "" {
		out = invoice.SuggestFilename(invoice.Client(recs), invoice.PreviousMonth(now))
	}
	if out == "-" {
		if f, ok := cfg.Stdout.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return errTerminal
		}
		_, err = cfg.Stdout.Write(body)
		return err
	}

	if !cfg.Force {
		if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("output file %q already exists", out)
		}
	}
	err = writeFileAtomic(out, body)
	if err != nil {
		return err
	}
	log.Info("wrote merged document",
		zap.String("file", out),
		zap.Int("size", len(body)))
	return nil
}

var errTerminal = errors.New("refusing to write PDF data to a terminal")

func readRecords(fname string) ([]invoice.Record, error) {
	fd, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	recs, err := records.Decode(fd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	return recs, nil
}

// protectFile encrypts a PDF file which has been generated by this tool.
func protectFile(body []byte, passwd string) ([]byte, error) {
	data, err := pdf.Read(bytes.NewReader(body), nil)
	if err != nil {
		return nil, err
	}
	meta := data.GetMeta()
	meta.Version = max(meta.Version, pdf.V1_6)
	buf := &bytes.Buffer{}
	err = data.Write(buf, &pdf.WriterOptions{UserPassword: passwd})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes data to the named file.  The data is first
// written to a temporary file in the same directory, which is then renamed.
func writeFileAtomic(fname string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(fname), "."+filepath.Base(fname)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Chmod(0o644)
	}
	if err == nil {
		err = tmp.Sync()
	}
	if err2 := tmp.Close(); err == nil {
		err = err2
	}
	if err == nil {
		err = os.Rename(tmpName, fname)
	}
	if err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func promptPassword(_ []byte, try int) string {
	if try > 2 || !term.IsTerminal(int(os.Stdin.Fd())) {
		return ""
	}
	fmt.Fprint(os.Stderr, "password: ")
	passwd, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return ""
	}
	return string(passwd)
}
