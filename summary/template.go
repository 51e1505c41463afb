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

import "seehuhn.de/go/invoice/graphics"

// Template describes the fixed layout of an invoice summary.
// All lengths are in PDF points.
type Template struct {
	PageWidth  float64
	PageHeight float64
	Margin     float64
	LineHeight float64

	BodySize    float64 // regular text and table cells
	HeaderSize  float64 // organization name
	SectionSize float64 // section label
	ClientSize  float64 // client line

	HeaderColor graphics.RGB
	TextColor   graphics.RGB
	ShadeColor  graphics.RGB

	// RuleWidth is the line width of the client underline and of the rule
	// below the table header.
	RuleWidth float64

	// UnderlineOffset is the distance of the client underline and of the
	// table header rule below the text baseline.
	UnderlineOffset float64

	// ShadeOffset is the distance by which row shading extends below the
	// baseline of the row.
	ShadeOffset float64

	Organization  string
	Contact       string
	Section       string
	ClientLabel   string
	NoClient      string // shown instead of the client name if there are no records
	InvoiceNumber string
	DateLabel     string
	DateFormat    string // time layout of the invoice date
	PeriodLabel   string
	PeriodFormat  string // time layout of the billing period
	Registration  string

	Columns []Column
	Footer  []string
}

// Column is a column of the summary table.
type Column struct {
	Label string
	X     float64 // left edge of the column
}

// The columns of the summary table, in the order used by [DefaultTemplate].
const (
	ColInvoiceNumber = iota
	ColDate
	ColDescription
	ColAmount
	ColQuantity
	ColFees
	ColTotal
	numColumns
)

// DefaultTemplate returns the summary layout used by the Mauritius Post
// credit sales department.
func DefaultTemplate() *Template {
	const margin = 40
	return &Template{
		PageWidth:  595,
		PageHeight: 842,
		Margin:     margin,
		LineHeight: 18,

		BodySize:    10,
		HeaderSize:  18,
		SectionSize: 12,
		ClientSize:  12,

		HeaderColor: graphics.RGB{R: 0, G: 0, B: 0.5},
		ShadeColor:  graphics.RGB{R: 0.95, G: 0.95, B: 0.95},

		RuleWidth:       1,
		UnderlineOffset: 2,
		ShadeOffset:     3,

		Organization:  "THE MAURITIUS POST LTD.",
		Contact:       "Tel 208-2851/55 Fax 211-2262/210-2581",
		Section:       "Credit Sales",
		ClientLabel:   "CLIENT : ",
		NoClient:      "N/A",
		InvoiceNumber: "Invoice Number : MIN_NO",
		DateLabel:     "Date : ",
		DateFormat:    "02/01/2006",
		PeriodLabel:   "Postage Due for period : ",
		PeriodFormat:  "Jan 06",
		Registration:  "Business Registration Number : C07027647",

		Columns: []Column{
			ColInvoiceNumber: {Label: "Invoice No.", X: margin},
			ColDate:          {Label: "Date", X: 100},
			ColDescription:   {Label: "Description", X: 160},
			ColAmount:        {Label: "Amount", X: 320},
			ColQuantity:      {Label: "Qty", X: 380},
			ColFees:          {Label: "Fees", X: 420},
			ColTotal:         {Label: "Total", X: 460},
		},

		Footer: []string{
			"FOR FURTHER DETAILS, CONTACT MS TRISHALA ON 208 2851, EXT 109",
			"",
			"NOTE",
			"a) Payment should be effected within one week from date of receipt of this Invoice.",
			"b) Cheque to be drawn in favour of 'THE MAURITIUS POST LTD' and addressed to:",
			"   Finance Department, The Mauritius Post Ltd, 1, Sir William Newton, Port Louis 11328, together with a copy",
			"   of this invoice.",
			"c) However, if amount is settled through bank transfer as per details below:",
			"",
			"Bank Name         : MauBank Ltd",
			"Bank Address      : 25, Bank Street, Ebene 72201",
			"Bank a/c no       : 011000593450MUR",
			"IBAN No           : MU34MPCB1215011000593450000MUR",
			"",
			"kindly submit detail of payment on the following email addresses:",
			"   dmooteea@mauritiuspost.mu",
			"   finance@mauritiuspost.mu",
			"   rauckloo@mauritiuspost.mu",
			"",
			"Signature. ................................",
			"",
			"Head of Finance",
		},
	}
}
