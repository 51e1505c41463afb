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

// Package summary lays out invoice records as a printable PDF summary.
//
// The summary consists of a page header, a table with one row per invoice
// record and a footer with payment instructions.  Whenever a table row or a
// footer line does not fit above the bottom margin, a new page is started,
// and the page header and table header are repeated there.
package summary

import (
	"errors"
	"time"

	"golang.org/x/text/language"

	"seehuhn.de/go/invoice"
)

// Options control the generation of a summary.
// The zero value, or a nil pointer, selects the defaults.
type Options struct {
	// Template is the page layout.  If this is nil, [DefaultTemplate] is
	// used.
	Template *Template

	// Now returns the generation time.  The invoice date and billing
	// period are derived from this, in the location of the returned time.
	// If this is nil, [time.Now] is used.
	Now func() time.Time

	// Language is the natural language of the document text.
	// The default is British English.
	Language language.Tag

	// Producer is recorded in the document metadata.
	Producer string
}

func (opt *Options) withDefaults() *Options {
	res := &Options{}
	if opt != nil {
		*res = *opt
	}
	if res.Template == nil {
		res.Template = DefaultTemplate()
	}
	if res.Now == nil {
		res.Now = time.Now
	}
	if res.Language == language.Und {
		res.Language = language.BritishEnglish
	}
	if res.Producer == "" {
		res.Producer = "seehuhn.de/go/invoice/summary"
	}
	return res
}

// ErrEmptyInput indicates that a summary was composed without any invoice
// records.  The resulting document has a header and a footer, but an empty
// table.
var ErrEmptyInput = errors.New("no invoice records")

// Warnings lists conditions which did not prevent a summary from being
// composed, but which the caller may want to report.
type Warnings struct {
	Errs []error
}

// Has reports whether one of the warnings matches target, as determined
// by errors.Is.
func (w *Warnings) Has(target error) bool {
	if w == nil {
		return false
	}
	for _, err := range w.Errs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (w *Warnings) add(err error) *Warnings {
	if w == nil {
		w = &Warnings{}
	}
	w.Errs = append(w.Errs, err)
	return w
}

// Compose lays out the records and returns the summary as a PDF file.
//
// An empty list of records is valid; in this case the warnings include
// [ErrEmptyInput].  The error return is only used for internal failures
// while encoding the document, never for problems with the records.
func Compose(records []invoice.Record, opt *Options) ([]byte, *Warnings, error) {
	opt = opt.withDefaults()

	var warnings *Warnings
	if len(records) == 0 {
		warnings = warnings.add(ErrEmptyInput)
	}

	fonts, err := LoadFonts()
	if err != nil {
		return nil, warnings, err
	}

	doc := Layout(records, fonts, opt)
	body, err := Encode(doc, fonts, opt)
	if err != nil {
		return nil, warnings, err
	}
	return body, warnings, nil
}
