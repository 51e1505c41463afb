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
	"crypto/md5"
	"crypto/rand"
	"errors"
	"fmt"
	"hash"
	"io"
)

// WriterOptions allows to influence the way a PDF file is generated.
type WriterOptions struct {
	// Version is the PDF version written to the file header.
	// The default is PDF 1.7.
	Version Version

	// ID, if not nil, is used as the file identifier.  It must consist of
	// two byte strings.  If ID is nil, an identifier is derived from the
	// file contents, or chosen at random for encrypted files.
	ID [][]byte

	// UserPassword and OwnerPassword, if either is set, enable encryption.
	// AES-128 is used for PDF 1.6 and 1.7, AES-256 for PDF 2.0.
	UserPassword  string
	OwnerPassword string

	// UserPermissions lists the operations allowed with the user password.
	// This is only used if the file is encrypted.  The zero value means
	// PermAll.
	UserPermissions Perm
}

// Writer represents a PDF file open for writing.
// Objects are written to the output as soon as they are passed to
// [Writer.Put].
type Writer struct {
	meta MetaInfo

	w    *posWriter
	xref []*xRefEntry

	enc       *encryptInfo
	derivedID bool
	closed    bool
}

// NewWriter prepares a PDF file for writing and writes the file header.
//
// The caller must set the /Pages entry of the document catalog, via
// GetMeta().Catalog, before calling [Writer.Close].
func NewWriter(w io.Writer, opt *WriterOptions) (*Writer, error) {
	if opt == nil {
		opt = &WriterOptions{}
	}
	version := opt.Version
	if version == 0 {
		version = V1_7
	}
	versionString, err := version.ToString()
	if err != nil {
		return nil, err
	}

	pdf := &Writer{
		meta: MetaInfo{
			Version: version,
			Catalog: &Catalog{},
		},
		w: &posWriter{w: w, h: md5.New()},

		// object 0 is always free
		xref: []*xRefEntry{{Pos: -1, Generation: 65535}},
	}

	if opt.ID != nil {
		if len(opt.ID) != 2 {
			return nil, errors.New("invalid file ID")
		}
		pdf.meta.ID = opt.ID
	}

	if opt.UserPassword != "" || opt.OwnerPassword != "" {
		if pdf.meta.ID == nil {
			id := make([]byte, 16)
			_, err := io.ReadFull(rand.Reader, id)
			if err != nil {
				return nil, err
			}
			pdf.meta.ID = [][]byte{id, id}
		}
		perm := opt.UserPermissions
		if perm == 0 {
			perm = PermAll
		}
		pdf.enc, err = newEncryptInfo(version, pdf.meta.ID[0], opt.UserPassword, opt.OwnerPassword, perm)
		if err != nil {
			return nil, err
		}
	}
	pdf.derivedID = pdf.meta.ID == nil

	_, err = fmt.Fprintf(pdf.w, "%%PDF-%s\n%%\x80\x80\x80\x80\n", versionString)
	if err != nil {
		return nil, err
	}
	return pdf, nil
}

// GetMeta returns the meta information of the file.
func (pdf *Writer) GetMeta() *MetaInfo {
	return &pdf.meta
}

// Alloc allocates an object number for an indirect object.
func (pdf *Writer) Alloc() Reference {
	ref := NewReference(uint32(len(pdf.xref)), 0)
	pdf.xref = append(pdf.xref, nil)
	return ref
}

// reserve makes sure that ref can be used with this writer.
func (pdf *Writer) reserve(ref Reference) {
	for uint32(len(pdf.xref)) <= ref.Number() {
		pdf.xref = append(pdf.xref, nil)
	}
}

// Put writes obj as the indirect object ref.
func (pdf *Writer) Put(ref Reference, obj Object) error {
	return pdf.writeIndirect(ref, obj, pdf.enc != nil)
}

func (pdf *Writer) writeIndirect(ref Reference, obj Object, encrypt bool) error {
	if pdf.closed {
		return errClosed
	}
	if ref.Number() == 0 {
		return errors.New("object number 0 is reserved")
	}
	pdf.reserve(ref)
	if pdf.xref[ref.Number()] != nil {
		return fmt.Errorf("object %s written twice", ref)
	}
	pdf.xref[ref.Number()] = &xRefEntry{
		Pos:        pdf.w.pos,
		Generation: ref.Generation(),
	}

	_, err := fmt.Fprintf(pdf.w, "%d %d obj\n", ref.Number(), ref.Generation())
	if err != nil {
		return err
	}
	ow := &objWriter{w: pdf.w, ref: ref}
	if encrypt {
		ow.enc = pdf.enc
	}
	err = writeObject(ow, obj)
	if err != nil {
		return err
	}
	_, err = pdf.w.Write([]byte("\nendobj\n"))
	return err
}

// OpenStream adds a PDF stream to the file and returns an io.WriteCloser
// which can be used to add the stream's data.  No other objects can be
// added to the file until the stream is closed.
//
// The filters are listed in decoding order, as in the /Filter entry.
func (pdf *Writer) OpenStream(ref Reference, dict Dict, filters ...Filter) (io.WriteCloser, error) {
	return openStream(pdf, pdf.meta.Version, ref, dict, filters)
}

// Close writes the document catalog, the cross-reference information and
// the trailer.  The underlying writer is not closed.
func (pdf *Writer) Close() error {
	if pdf.closed {
		return errClosed
	}
	catalog := pdf.meta.Catalog
	if catalog == nil || catalog.Pages == 0 {
		return errors.New("missing /Pages in document catalog")
	}

	trailer := Dict{}

	rootRef := pdf.Alloc()
	err := pdf.Put(rootRef, catalog.AsDict())
	if err != nil {
		return err
	}
	trailer["Root"] = rootRef

	if pdf.meta.Info != nil {
		infoRef := pdf.Alloc()
		err = pdf.Put(infoRef, pdf.meta.Info.AsDict())
		if err != nil {
			return err
		}
		trailer["Info"] = infoRef
	}

	if pdf.enc != nil {
		encRef := pdf.Alloc()
		err = pdf.writeIndirect(encRef, pdf.enc.AsDict(), false)
		if err != nil {
			return err
		}
		trailer["Encrypt"] = encRef
	}

	if pdf.derivedID {
		sum := pdf.w.h.Sum(nil)
		pdf.meta.ID = [][]byte{sum, sum}
	}
	trailer["ID"] = Array{String(pdf.meta.ID[0]), String(pdf.meta.ID[1])}

	var xrefPos int64
	if pdf.meta.Version >= V1_5 {
		xrefRef := pdf.Alloc()
		trailer["Size"] = Integer(len(pdf.xref))
		xrefPos = pdf.w.pos
		err = pdf.writeXRefStream(trailer, xrefRef)
	} else {
		trailer["Size"] = Integer(len(pdf.xref))
		xrefPos = pdf.w.pos
		err = pdf.writeXRefTable(trailer)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(pdf.w, "startxref\n%d\n%%%%EOF\n", xrefPos)
	if err != nil {
		return err
	}
	pdf.closed = true
	return nil
}

// objWriter is passed to the PDF methods of objects, so that strings and
// streams can be encrypted with the key for the enclosing object.
type objWriter struct {
	w   io.Writer
	enc *encryptInfo
	ref Reference
}

func (ow *objWriter) Write(p []byte) (int, error) {
	return ow.w.Write(p)
}

type posWriter struct {
	w   io.Writer
	h   hash.Hash
	pos int64
}

func (w *posWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.h.Write(p[:n])
	w.pos += int64(n)
	return n, err
}

// streamWriter collects the data of a stream until Close is called.
type streamWriter struct {
	bytes.Buffer
	out     Putter
	version Version
	ref     Reference
	dict    Dict
	filters []Filter
	closed  bool
}

func openStream(out Putter, v Version, ref Reference, dict Dict, filters []Filter) (io.WriteCloser, error) {
	d := Dict{}
	for key, val := range dict {
		d[key] = val
	}

	var names, parms Array
	hasParms := false
	for _, f := range filters {
		name, p, err := f.Info(v)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		if p != nil {
			parms = append(parms, p)
			hasParms = true
		} else {
			parms = append(parms, nil)
		}
	}
	switch len(names) {
	case 0:
		// pass
	case 1:
		d["Filter"] = names[0]
		if hasParms {
			d["DecodeParms"] = parms[0]
		}
	default:
		d["Filter"] = names
		if hasParms {
			d["DecodeParms"] = parms
		}
	}

	return &streamWriter{
		out:     out,
		version: v,
		ref:     ref,
		dict:    d,
		filters: filters,
	}, nil
}

func (sw *streamWriter) Close() error {
	if sw.closed {
		return errClosed
	}
	sw.closed = true

	data := sw.Bytes()
	for i := len(sw.filters) - 1; i >= 0; i-- {
		var err error
		data, err = sw.filters[i].Encode(data)
		if err != nil {
			return err
		}
	}
	return sw.out.Put(sw.ref, &Stream{Dict: sw.dict, R: bytes.NewReader(data)})
}

var errClosed = errors.New("file already closed")
