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

// Package merge combines an invoice summary and a source document into a
// single PDF file.
//
// The pages of the summary come first, followed by the pages of the source
// document.  Page content is copied without re-encoding, so the pages of the
// output render exactly as the pages of the inputs.
package merge

import (
	"bytes"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"seehuhn.de/go/invoice/pdf"
	"seehuhn.de/go/invoice/pdf/pagetree"
)

// Options control the merge.  A nil pointer selects the defaults.
type Options struct {
	// Logger receives debug information about the merge.
	// If this is nil, nothing is logged.
	Logger *zap.Logger

	// SourcePassword is used to open an encrypted source document.
	SourcePassword string

	// ReadPassword, if set, is called to obtain passwords for an encrypted
	// source document, after SourcePassword has been tried.  See
	// [pdf.ReaderOptions] for details.
	ReadPassword func(ID []byte, try int) string

	// OutputPassword, if set, is used to encrypt the merged document.
	// The output version is raised to at least PDF 1.6 in this case.
	OutputPassword string

	// OwnerPassword is the owner password of an encrypted output file.
	OwnerPassword string

	// Permissions are the operations allowed for users of an encrypted
	// output file who do not know the owner password.  The zero value
	// allows all operations.
	Permissions pdf.Perm
}

// Input names used in [DecodeError].
const (
	InputSummary = "summary"
	InputSource  = "source"
)

// DecodeError indicates that one of the input documents could not be read.
type DecodeError struct {
	Input string // InputSummary or InputSource
	Err   error
}

func (err *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode %s document: %v", err.Input, err.Err)
}

func (err *DecodeError) Unwrap() error {
	return err.Err
}

// EncodeError indicates that the merged document could not be written.
type EncodeError struct {
	Err error
}

func (err *EncodeError) Error() string {
	return "cannot encode merged document: " + err.Err.Error()
}

func (err *EncodeError) Unwrap() error {
	return err.Err
}

// Merge returns a PDF file containing the pages of summary, followed by the
// pages of source.
//
// If either input cannot be decoded, an error of type [*DecodeError] is
// returned.  Failures while writing the output are reported as
// [*EncodeError].  In both cases no output is returned.
func Merge(summary, source []byte, opt *Options) ([]byte, error) {
	if opt == nil {
		opt = &Options{}
	}
	log := opt.Logger
	if log == nil {
		log = zap.NewNop()
	}

	sumReader, err := pdf.NewReader(bytes.NewReader(summary), nil)
	if err != nil {
		return nil, &DecodeError{Input: InputSummary, Err: err}
	}

	srcOpt := &pdf.ReaderOptions{
		ReadPassword: func(ID []byte, try int) string {
			if try == 0 && opt.SourcePassword != "" {
				return opt.SourcePassword
			}
			if opt.ReadPassword != nil {
				if opt.SourcePassword != "" {
					try--
				}
				return opt.ReadPassword(ID, try)
			}
			return ""
		},
	}
	srcReader, err := pdf.NewReader(bytes.NewReader(source), srcOpt)
	if err != nil {
		return nil, &DecodeError{Input: InputSource, Err: err}
	}
	if srcReader.IsEncrypted() {
		log.Warn("source document is encrypted")
	}

	version := max(sumReader.GetMeta().Version, srcReader.GetMeta().Version)
	if opt.OutputPassword != "" || opt.OwnerPassword != "" {
		version = max(version, pdf.V1_6)
	}

	out := pdf.NewData(version)
	tree := pagetree.NewWriter(out)

	numSummary, err := appendPages(out, tree, sumReader)
	if err != nil {
		return nil, &DecodeError{Input: InputSummary, Err: err}
	}
	numSource, err := appendPages(out, tree, srcReader)
	if err != nil {
		return nil, &DecodeError{Input: InputSource, Err: err}
	}

	root, err := tree.Close()
	if err != nil {
		return nil, &EncodeError{Err: err}
	}

	meta := out.GetMeta()
	meta.Catalog.Pages = root
	sumMeta := sumReader.GetMeta()
	if sumMeta.Catalog != nil {
		meta.Catalog.Lang = sumMeta.Catalog.Lang
	}
	meta.Info = sumMeta.Info

	buf := &bytes.Buffer{}
	err = out.Write(buf, &pdf.WriterOptions{
		UserPassword:    opt.OutputPassword,
		OwnerPassword:   opt.OwnerPassword,
		UserPermissions: opt.Permissions,
	})
	if err != nil {
		return nil, &EncodeError{Err: err}
	}

	log.Debug("merged documents",
		zap.Int("summaryPages", numSummary),
		zap.Int("sourcePages", numSource),
		zap.Stringer("version", version),
		zap.Bool("encrypted", opt.OutputPassword != "" || opt.OwnerPassword != ""),
		zap.Int("size", buf.Len()))

	return buf.Bytes(), nil
}

// appendPages copies all pages of r to out and adds them to the page tree.
// The number of pages copied is returned.
func appendPages(out pdf.Putter, tree *pagetree.Writer, r pdf.Getter) (int, error) {
	type pageInfo struct {
		ref  pdf.Reference
		dict pdf.Dict
	}
	var pages []pageInfo
	err := pagetree.ForEachPage(r, func(ref pdf.Reference, dict pdf.Dict) error {
		pages = append(pages, pageInfo{ref, dict})
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(pages) == 0 {
		return 0, errNoPages
	}

	// Allocate all page objects first, so that links between pages can
	// be redirected to the new page objects.
	copier := pdf.NewCopier(out, r)
	newRefs := make([]pdf.Reference, len(pages))
	for i, p := range pages {
		newRefs[i] = out.Alloc()
		copier.Redirect(p.ref, newRefs[i])
	}

	for i, p := range pages {
		dict := pdf.Dict{}
		for key, val := range p.dict {
			if key == "Parent" {
				continue
			}
			dict[key] = val
		}
		newDict, err := copier.CopyDict(dict)
		if err != nil {
			return 0, fmt.Errorf("page %d: %w", i+1, err)
		}
		err = tree.AppendPageDict(newRefs[i], newDict)
		if err != nil {
			return 0, err
		}
	}
	return len(pages), nil
}

var errNoPages = errors.New("document has no pages")
