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
	"fmt"

	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/icc"
	"seehuhn.de/go/xmp"

	"seehuhn.de/go/invoice/font"
	"seehuhn.de/go/invoice/graphics"
	"seehuhn.de/go/invoice/pdf"
	"seehuhn.de/go/invoice/pdf/pagetree"
)

// Encode converts the page model into a PDF file.
//
// The output is deterministic: for a given document and generation time,
// the same bytes are produced every time.  The file is written via
// [pdf.Data], so reading it with [pdf.Read] and writing it again reproduces
// the file exactly.
func Encode(doc *Document, fonts *Fonts, opt *Options) ([]byte, error) {
	opt = opt.withDefaults()
	now := opt.Now()

	data := pdf.NewData(pdf.V1_7)

	regular, err := fonts.Regular.Embed(data)
	if err != nil {
		return nil, err
	}
	bold, err := fonts.Bold.Embed(data)
	if err != nil {
		return nil, err
	}

	resRef := data.Alloc()
	mediaBox := pdf.Rectangle(rect.Rect{URx: doc.Width, URy: doc.Height})
	gw := graphics.NewWriter(nil)
	tree := pagetree.NewWriter(data)
	for i, page := range doc.Pages {
		content := &bytes.Buffer{}
		gw.NewStream(content)
		drawPage(gw, page, regular, bold)
		err = gw.Close()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}

		contentRef := data.Alloc()
		stm, err := data.OpenStream(contentRef, nil, pdf.FilterFlate{})
		if err != nil {
			return nil, err
		}
		_, err = stm.Write(content.Bytes())
		if err != nil {
			return nil, err
		}
		err = stm.Close()
		if err != nil {
			return nil, err
		}

		pageRef := data.Alloc()
		err = tree.AppendPageDict(pageRef, pdf.Dict{
			"Type":      pdf.Name("Page"),
			"MediaBox":  mediaBox,
			"Resources": resRef,
			"Contents":  contentRef,
		})
		if err != nil {
			return nil, err
		}
	}
	rootRef, err := tree.Close()
	if err != nil {
		return nil, err
	}

	err = data.Put(resRef, gw.Resources)
	if err != nil {
		return nil, err
	}
	for _, F := range []*font.Embedded{regular, bold} {
		err = F.Close()
		if err != nil {
			return nil, err
		}
	}

	title := "Invoice summary – " + doc.Client
	metaRef, err := writeMetadata(data, title, doc, opt)
	if err != nil {
		return nil, err
	}
	intents, err := writeOutputIntent(data)
	if err != nil {
		return nil, err
	}

	meta := data.GetMeta()
	meta.Catalog.Pages = rootRef
	meta.Catalog.Lang = opt.Language
	meta.Catalog.Metadata = metaRef
	meta.Catalog.OutputIntents = intents
	meta.Info = &pdf.Info{
		Title:        title,
		Author:       opt.Template.Organization,
		Producer:     opt.Producer,
		CreationDate: now,
	}

	buf := &bytes.Buffer{}
	err = data.Write(buf, nil)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawPage(w *graphics.Writer, page *Page, regular, bold *font.Embedded) {
	for _, unit := range page.Units {
		for _, op := range unit.Ops {
			switch op := op.(type) {
			case Text:
				F := regular
				if op.Bold {
					F = bold
				}
				w.SetFillColor(op.Color)
				w.TextStart()
				w.TextSetFont(F, op.Size)
				w.TextFirstLine(op.X, op.Y)
				w.TextShow(op.Text)
				w.TextEnd()
			case Line:
				w.SetStrokeColor(op.Color)
				w.SetLineWidth(op.Width)
				w.MoveTo(op.X0, op.Y0)
				w.LineTo(op.X1, op.Y1)
				w.Stroke()
			case Rect:
				w.SetFillColor(op.Color)
				w.Rectangle(op.X, op.Y, op.Width, op.Height)
				w.Fill()
			}
		}
	}
}

// pdfNamespace is the XMP namespace for PDF properties.
type pdfNamespace struct {
	_        xmp.Namespace `xmp:"http://ns.adobe.com/pdf/1.3/"`
	_        xmp.Prefix    `xmp:"pdf"`
	Producer xmp.AgentName
}

// writeMetadata adds an XMP metadata stream to the document.
func writeMetadata(w pdf.Putter, title string, doc *Document, opt *Options) (pdf.Reference, error) {
	err := pdf.CheckVersion(w, "XMP metadata stream", pdf.V1_4)
	if err != nil {
		return 0, err
	}
	now := opt.Now()

	dc := &xmp.DublinCore{}
	dc.Title.Set(opt.Language, title)
	dc.Creator.Append(xmp.NewProperName(opt.Template.Organization))
	basic := &xmp.Basic{}
	basic.CreateDate = xmp.NewDate(now)
	basic.ModifyDate = xmp.NewDate(now)
	pdfInfo := &pdfNamespace{
		Producer: xmp.NewAgentName(opt.Producer),
	}

	packet := xmp.NewPacket()
	err = packet.Set(dc, basic, pdfInfo)
	if err != nil {
		return 0, err
	}

	ref := w.Alloc()
	dict := pdf.Dict{
		"Type":    pdf.Name("Metadata"),
		"Subtype": pdf.Name("XML"),
	}
	stm, err := w.OpenStream(ref, dict)
	if err != nil {
		return 0, err
	}
	err = packet.Write(stm, nil)
	if err != nil {
		return 0, err
	}
	err = stm.Close()
	if err != nil {
		return 0, err
	}
	return ref, nil
}

// writeOutputIntent embeds the sRGB colour profile and returns the value of
// the /OutputIntents entry of the document catalog.
func writeOutputIntent(w pdf.Putter) (pdf.Object, error) {
	profile := SRGBProfile()
	p, err := icc.Decode(bytes.Clone(profile))
	if err != nil {
		return nil, err
	}

	ref := w.Alloc()
	stm, err := w.OpenStream(ref, pdf.Dict{
		"N": pdf.Integer(p.ColorSpace.NumComponents()),
	}, pdf.FilterFlate{})
	if err != nil {
		return nil, err
	}
	_, err = stm.Write(profile)
	if err != nil {
		return nil, err
	}
	err = stm.Close()
	if err != nil {
		return nil, err
	}

	const condition = "sRGB IEC61966-2.1"
	intent := pdf.Dict{
		"Type":                      pdf.Name("OutputIntent"),
		"S":                         pdf.Name("GTS_PDFA1"),
		"OutputConditionIdentifier": pdf.String(condition),
		"Info":                      pdf.String(condition),
		"DestOutputProfile":         ref,
	}
	return pdf.Array{intent}, nil
}
