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

package pdf

import (
	"bytes"
	"io"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Data is an in-memory representation of a PDF document.
// Stream data is held in its encoded form.
type Data struct {
	meta    MetaInfo
	objects map[Reference]Object
	lastRef uint32
}

// NewData allocates a new, empty PDF document.
func NewData(v Version) *Data {
	return &Data{
		meta: MetaInfo{
			Version: v,
			Catalog: &Catalog{},
		},
		objects: map[Reference]Object{},
	}
}

// Read reads a complete PDF document into memory.
// Object streams and cross-reference streams are unpacked, and the
// document catalog and information dictionary are moved into the
// [MetaInfo].  Encrypted files are decrypted.
func Read(r io.Reader, opt *ReaderOptions) (*Data, error) {
	pdf, err := NewReader(r, opt)
	if err != nil {
		return nil, err
	}

	res := &Data{
		meta:    pdf.meta,
		objects: map[Reference]Object{},
	}

	skip := map[Reference]bool{}
	for _, key := range []Name{"Root", "Info", "Encrypt"} {
		if ref, ok := pdf.trailer[key].(Reference); ok {
			skip[ref] = true
		}
	}
	for _, entry := range pdf.xref {
		if entry.InStream != 0 {
			skip[entry.InStream] = true
		}
	}

	for _, ref := range pdf.Objects() {
		if skip[ref] {
			continue
		}
		obj, err := pdf.Get(ref)
		if err != nil {
			return nil, err
		}
		if s, isStream := obj.(*Stream); isStream && s.Dict["Type"] == Name("XRef") {
			continue
		}
		err = res.Put(ref, obj)
		if err != nil {
			return nil, err
		}
	}

	return res, nil
}

// Write writes the PDF document to w.
//
// The file version and ID are taken from the document's [MetaInfo].
// Objects are written in order of increasing object number, followed by
// the document catalog and the information dictionary.  Documents which
// have been read using [Read] and are then written without changes
// reproduce a file written by this method byte for byte.
func (d *Data) Write(w io.Writer, opt *WriterOptions) error {
	wOpt := &WriterOptions{}
	if opt != nil {
		*wOpt = *opt
	}
	wOpt.Version = d.meta.Version
	if wOpt.ID == nil && d.meta.ID != nil && wOpt.UserPassword == "" && wOpt.OwnerPassword == "" {
		wOpt.ID = d.meta.ID
	}

	pdf, err := NewWriter(w, wOpt)
	if err != nil {
		return err
	}
	meta := pdf.GetMeta()
	meta.Catalog = d.meta.Catalog
	meta.Info = d.meta.Info

	refs := make([]Reference, 0, len(d.objects))
	for ref := range d.objects {
		refs = append(refs, ref)
	}
	slices.SortFunc(refs, func(a, b Reference) int {
		return int(a.Number()) - int(b.Number())
	})
	for _, ref := range refs {
		obj, err := d.Get(ref)
		if err != nil {
			return err
		}
		err = pdf.Put(ref, obj)
		if err != nil {
			return err
		}
	}

	return pdf.Close()
}

// GetMeta returns the meta information of the document.
func (d *Data) GetMeta() *MetaInfo {
	return &d.meta
}

// Alloc allocates a new object number for an indirect object.
func (d *Data) Alloc() Reference {
	for {
		d.lastRef++
		ref := NewReference(d.lastRef, 0)
		if _, ok := d.objects[ref]; !ok {
			return ref
		}
	}
}

// Get returns the object ref.  Streams are returned with a fresh reader
// for the (encoded) stream data.
func (d *Data) Get(ref Reference) (Object, error) {
	obj := d.objects[ref]
	if s, ok := obj.(*dataStream); ok {
		return &Stream{
			Dict: maps.Clone(s.dict),
			R:    bytes.NewReader(s.data),
		}, nil
	}
	return obj, nil
}

// Put stores obj as the object ref.  Setting an object to nil removes it.
func (d *Data) Put(ref Reference, obj Object) error {
	if obj == nil {
		delete(d.objects, ref)
		return nil
	}
	if s, ok := obj.(*Stream); ok {
		data, err := io.ReadAll(s.R)
		if err != nil {
			return err
		}
		dict := maps.Clone(s.Dict)
		if dict == nil {
			dict = Dict{}
		}
		dict["Length"] = Integer(len(data))
		obj = &dataStream{dict: dict, data: data}
	}
	d.objects[ref] = obj
	d.lastRef = max(d.lastRef, ref.Number())
	return nil
}

// OpenStream adds a stream to the document.  The data written to the
// returned io.WriteCloser is stored when the writer is closed.
func (d *Data) OpenStream(ref Reference, dict Dict, filters ...Filter) (io.WriteCloser, error) {
	return openStream(d, d.meta.Version, ref, dict, filters)
}

// Close implements the [Putter] interface.  This is a no-op.
func (d *Data) Close() error {
	return nil
}

// dataStream is the stored form of a stream inside a [Data] object.
type dataStream struct {
	dict Dict
	data []byte
}

func (s *dataStream) PDF(w io.Writer) error {
	x := &Stream{Dict: s.dict, R: bytes.NewReader(s.data)}
	return x.PDF(w)
}
