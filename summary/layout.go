// seehuhn.de/go/invoice - compose invoice summaries and merge PDF files
// Copyright (C) 2023  Jochen Voss <voss@seehuhn.de>
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
	"strconv"
	"time"

	"seehuhn.de/go/invoice"
	"seehuhn.de/go/invoice/font"
	"seehuhn.de/go/invoice/graphics"
)

// Document is the page model of an invoice summary, before it is
// converted to PDF.
type Document struct {
	Width, Height float64
	Pages         []*Page

	// Client is the client name shown in the page headers.
	Client string

	// Period is the first day of the billing month.
	Period time.Time
}

// Page is a single page of a summary.  The content of a page is divided
// into units, where each unit is drawn without a page break.
type Page struct {
	Units []*Unit
}

// Unit is a group of drawing operations belonging to one region of the
// page.
type Unit struct {
	Region Region
	Row    int // index of the record, for RegionRow units
	Ops    []Op
}

// Region identifies the part of the template a [Unit] belongs to.
type Region int

// These are the regions of the summary template.
const (
	RegionHeader Region = iota + 1
	RegionTableHeader
	RegionRow
	RegionFooter
)

func (r Region) String() string {
	switch r {
	case RegionHeader:
		return "header"
	case RegionTableHeader:
		return "table header"
	case RegionRow:
		return "row"
	case RegionFooter:
		return "footer"
	default:
		return "Region(" + strconv.Itoa(int(r)) + ")"
	}
}

// Op is a drawing operation.  This is one of [Text], [Line] or [Rect].
type Op interface {
	isOp()
}

// Text is a run of text, starting at the given baseline position.
type Text struct {
	X, Y  float64
	Size  float64
	Bold  bool
	Color graphics.RGB
	Text  string
}

// Line is a straight line segment.
type Line struct {
	X0, Y0, X1, Y1 float64
	Width          float64
	Color          graphics.RGB
}

// Rect is a filled rectangle.
type Rect struct {
	X, Y, Width, Height float64
	Color               graphics.RGB
}

func (Text) isOp() {}
func (Line) isOp() {}
func (Rect) isOp() {}

// Fonts holds the font faces used in a summary.
type Fonts struct {
	Regular *font.Font
	Bold    *font.Font
}

// LoadFonts loads the built-in regular and bold fonts.
func LoadFonts() (*Fonts, error) {
	regular, err := font.Regular.New()
	if err != nil {
		return nil, err
	}
	bold, err := font.Bold.New()
	if err != nil {
		return nil, err
	}
	return &Fonts{Regular: regular, Bold: bold}, nil
}

func (f *Fonts) width(s string, bold bool, size float64) float64 {
	if bold {
		return f.Bold.Width(s, size)
	}
	return f.Regular.Width(s, size)
}

// Cursor is the drawing position during layout.
type Cursor struct {
	Page int     // index of the current page
	Y    float64 // baseline of the next line, from the bottom of the page
}

// Layout arranges the records on the pages of a summary.
// The fonts are used to measure text for centring and underlining.
//
// Layout never fails.  Missing values render as zero or as empty text.
// If there are no records, the document consists of a single page with
// header, table header and footer.
func Layout(records []invoice.Record, fonts *Fonts, opt *Options) *Document {
	opt = opt.withDefaults()
	tmpl := opt.Template
	now := opt.Now()

	client := invoice.Client(records)
	if len(records) == 0 {
		client = tmpl.NoClient
	}

	l := &layout{
		tmpl:  tmpl,
		fonts: fonts,
		doc: &Document{
			Width:  tmpl.PageWidth,
			Height: tmpl.PageHeight,
			Client: client,
			Period: invoice.PreviousMonth(now),
		},
		date: invoice.LastDayOfPreviousMonth(now).Format(tmpl.DateFormat),
	}

	l.newPage()
	for i, rec := range records {
		l.ensureSpace(tmpl.LineHeight)
		l.drawRow(i, &rec)
	}

	l.cur.Y -= 2 * tmpl.LineHeight
	for _, line := range tmpl.Footer {
		l.ensureSpace(tmpl.LineHeight)
		u := l.startUnit(RegionFooter)
		l.text(u, tmpl.Margin, line, false, tmpl.BodySize, tmpl.TextColor)
		l.cur.Y -= tmpl.LineHeight
	}

	return l.doc
}

type layout struct {
	tmpl  *Template
	fonts *Fonts
	doc   *Document
	cur   Cursor
	date  string
}

// ensureSpace makes sure that a unit of height h fits on the current page
// above the bottom margin.  If needed, a new page is started.
func (l *layout) ensureSpace(h float64) {
	if l.cur.Y-h < l.tmpl.Margin {
		l.newPage()
	}
}

// newPage starts a new page and draws the page header and the table
// header.
func (l *layout) newPage() {
	l.doc.Pages = append(l.doc.Pages, &Page{})
	l.cur = Cursor{
		Page: len(l.doc.Pages) - 1,
		Y:    l.tmpl.PageHeight - l.tmpl.Margin,
	}
	l.drawHeader()
	l.drawTableHeader()
}

func (l *layout) startUnit(region Region) *Unit {
	u := &Unit{Region: region}
	page := l.doc.Pages[l.cur.Page]
	page.Units = append(page.Units, u)
	return u
}

func (l *layout) drawHeader() {
	t := l.tmpl
	u := l.startUnit(RegionHeader)

	l.cur.Y -= t.LineHeight
	l.centred(u, t.Organization, true, t.HeaderSize, t.HeaderColor)
	l.cur.Y -= t.LineHeight
	l.centred(u, t.Contact, false, t.BodySize, t.HeaderColor)
	l.cur.Y -= 2 * t.LineHeight

	l.text(u, t.Margin, t.Section, true, t.SectionSize, t.TextColor)
	l.cur.Y -= t.LineHeight

	client := t.ClientLabel + l.doc.Client
	l.text(u, t.Margin, client, true, t.ClientSize, t.TextColor)
	y := l.cur.Y - t.UnderlineOffset
	u.Ops = append(u.Ops, Line{
		X0: t.Margin, Y0: y,
		X1: t.Margin + l.fonts.width(client, true, t.ClientSize), Y1: y,
		Width: t.RuleWidth,
		Color: t.TextColor,
	})
	l.cur.Y -= 1.2 * t.LineHeight

	l.text(u, t.Margin, t.InvoiceNumber, false, t.BodySize, t.TextColor)
	l.text(u, t.PageWidth/2, t.DateLabel+l.date, false, t.BodySize, t.TextColor)
	l.cur.Y -= t.LineHeight

	period := l.doc.Period.Format(t.PeriodFormat)
	l.text(u, t.Margin, t.PeriodLabel+period, false, t.BodySize, t.TextColor)
	l.cur.Y -= t.LineHeight

	l.text(u, t.Margin, t.Registration, false, t.BodySize, t.TextColor)
	l.cur.Y -= 2 * t.LineHeight
}

func (l *layout) drawTableHeader() {
	t := l.tmpl
	u := l.startUnit(RegionTableHeader)

	for _, col := range t.Columns {
		l.text(u, col.X, col.Label, true, t.BodySize, t.TextColor)
	}
	y := l.cur.Y - t.UnderlineOffset
	u.Ops = append(u.Ops, Line{
		X0: t.Margin, Y0: y,
		X1: t.PageWidth - t.Margin, Y1: y,
		Width: t.RuleWidth,
		Color: t.TextColor,
	})
	l.cur.Y -= t.LineHeight
}

func (l *layout) drawRow(i int, rec *invoice.Record) {
	t := l.tmpl
	u := l.startUnit(RegionRow)
	u.Row = i

	if i%2 == 0 {
		u.Ops = append(u.Ops, Rect{
			X:      t.Margin,
			Y:      l.cur.Y - t.ShadeOffset,
			Width:  t.PageWidth - 2*t.Margin,
			Height: t.LineHeight,
			Color:  t.ShadeColor,
		})
	}

	cells := Cells(rec)
	for k, col := range t.Columns {
		if k >= len(cells) {
			break
		}
		l.text(u, col.X, cells[k], false, t.BodySize, t.TextColor)
	}
	l.cur.Y -= t.LineHeight
}

func (l *layout) text(u *Unit, x float64, s string, bold bool, size float64, color graphics.RGB) {
	if s == "" {
		return
	}
	u.Ops = append(u.Ops, Text{
		X:     x,
		Y:     l.cur.Y,
		Size:  size,
		Bold:  bold,
		Color: color,
		Text:  s,
	})
}

func (l *layout) centred(u *Unit, s string, bold bool, size float64, color graphics.RGB) {
	x := (l.tmpl.PageWidth - l.fonts.width(s, bold, size)) / 2
	l.text(u, x, s, bold, size, color)
}

// Cells returns the table cells for a record, in column order.
func Cells(rec *invoice.Record) [numColumns]string {
	return [numColumns]string{
		ColInvoiceNumber: rec.InvoiceNumber,
		ColDate:          rec.Date,
		ColDescription:   rec.Description,
		ColAmount:        FormatMoney(rec.Amount),
		ColQuantity:      FormatQuantity(rec.Quantity),
		ColFees:          FormatMoney(rec.VAT),
		ColTotal:         FormatMoney(rec.Total),
	}
}

// FormatMoney formats a monetary value with exactly two decimal places,
// without currency symbol or thousands separators.
func FormatMoney(x float64) string {
	return strconv.FormatFloat(x, 'f', 2, 64)
}

// FormatQuantity formats a quantity using as many digits as needed.
func FormatQuantity(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
