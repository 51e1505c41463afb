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

// Package invoice holds the data model shared by the invoice summary
// composer and the PDF compositor.
//
// An invoice summary is a printable PDF document listing a sequence of
// invoice records.  The summary is generated by package
// [seehuhn.de/go/invoice/summary] and is then combined with the scanned
// source invoice by package [seehuhn.de/go/invoice/merge].
package invoice

import (
	"regexp"
	"strings"
	"time"
)

// Record is one line item extracted from a scanned invoice.
//
// Monetary values are assumed to be given in a single currency.
type Record struct {
	InvoiceNumber string  `json:"invoiceNumber"`
	Date          string  `json:"date"` // display form, not necessarily ISO 8601
	SupplierName  string  `json:"supplierName"`
	Description   string  `json:"description"`
	Amount        float64 `json:"amount"`
	Quantity      float64 `json:"quantity"`
	VAT           float64 `json:"vat"`
	Total         float64 `json:"total"`
}

// GrandTotal returns the sum of the Total fields of all records.
func GrandTotal(records []Record) float64 {
	var sum float64
	for _, r := range records {
		sum += r.Total
	}
	return sum
}

// Client returns the supplier name shown on the summary, which is the
// supplier of the first record.  If there are no records, the empty string
// is returned.
func Client(records []Record) string {
	if len(records) == 0 {
		return ""
	}
	return records[0].SupplierName
}

// PreviousMonth returns the first day of the calendar month before the
// month containing now, in the location of now.
func PreviousMonth(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m-1, 1, 0, 0, 0, 0, now.Location())
}

// LastDayOfPreviousMonth returns the last day of the calendar month before
// the month containing now, in the location of now.
func LastDayOfPreviousMonth(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m, 0, 0, 0, 0, 0, now.Location())
}

// SuggestFilename returns a file name for the merged document of the given
// supplier, covering the given month.
//
// Runs of white space in the supplier name are replaced by underscores and
// all characters other than ASCII letters, digits, '_' and '-' are removed.
// For example, supplier "ABC Corp / Ltd." and May 2025 give
// "ABC_Corp_Ltd_May_2025.pdf".
func SuggestFilename(supplier string, month time.Time) string {
	name := spaceRuns.ReplaceAllString(strings.TrimSpace(supplier), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = underscoreRuns.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = "Unknown"
	}
	return name + "_" + month.Format("Jan_2006") + ".pdf"
}

var (
	spaceRuns      = regexp.MustCompile(`\s+`)
	unsafeChars    = regexp.MustCompile(`[^A-Za-z0-9_-]`)
	underscoreRuns = regexp.MustCompile(`__+`)
)
