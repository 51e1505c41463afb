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
	"errors"
	"fmt"
	"io"
)

// ReaderOptions provides additional information for opening a PDF file.
type ReaderOptions struct {
	// ReadPassword, if not nil, is called to obtain passwords for
	// encrypted files.  The first argument is the file ID, the second
	// counts the attempts so far.  Returning the empty string gives up.
	ReadPassword func(ID []byte, try int) string
}

// Reader represents a PDF file opened for reading.
// The whole file is kept in memory.
type Reader struct {
	meta MetaInfo

	buf     []byte
	xref    map[uint32]*xRefEntry
	trailer Dict

	enc    *encryptInfo
	encRef Reference

	objStm   map[Reference]*objStm
	inLength bool
}

// NewReader reads a PDF file from r.
//
// The header, cross-reference information, and document catalog are
// read immediately.  If the file is encrypted, the password callback from
// opt is used until authentication succeeds.
func NewReader(r io.Reader, opt *ReaderOptions) (*Reader, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if opt == nil {
		opt = &ReaderOptions{}
	}

	res := &Reader{
		buf:    buf,
		objStm: make(map[Reference]*objStm),
	}

	s := newScanner(buf, nil)
	res.meta.Version, err = s.readHeaderVersion()
	if err != nil {
		return nil, err
	}

	xref, trailer, err := res.readXRef()
	if err != nil || trailer["Root"] == nil {
		var err2 error
		xref, trailer, err2 = res.reconstructXRef()
		if err2 != nil {
			if err == nil {
				err = err2
			}
			return nil, err
		}
	}
	res.xref = xref
	res.trailer = trailer

	if ids, ok := trailer["ID"].(Array); ok && len(ids) == 2 {
		id0, ok0 := ids[0].(String)
		id1, ok1 := ids[1].(String)
		if ok0 && ok1 {
			res.meta.ID = [][]byte{[]byte(id0), []byte(id1)}
		}
	}

	if encObj := trailer["Encrypt"]; encObj != nil {
		res.encRef, _ = encObj.(Reference)
		enc, err := parseEncryptDict(res, encObj, res.meta.ID, opt.ReadPassword)
		if err != nil {
			return nil, err
		}
		res.enc = enc
	}

	root, err := GetDict(res, trailer["Root"])
	if err != nil {
		return nil, err
	}
	res.meta.Catalog, err = DecodeCatalog(res, root)
	if err != nil {
		return nil, err
	}
	if v := res.meta.Catalog.Version; v > res.meta.Version {
		res.meta.Version = v
	}

	infoDict, err := GetDict(res, trailer["Info"])
	if err == nil && infoDict != nil {
		res.meta.Info = DecodeInfo(res, infoDict)
	}

	return res, nil
}

// GetMeta returns the meta information of the file.
func (r *Reader) GetMeta() *MetaInfo {
	return &r.meta
}

// IsEncrypted reports whether the file uses encryption.
func (r *Reader) IsEncrypted() bool {
	return r.enc != nil
}

// Objects returns the references of all objects listed in the
// cross-reference information.
func (r *Reader) Objects() []Reference {
	var res []Reference
	for number, entry := range r.xref {
		if entry.IsFree() || number == 0 {
			continue
		}
		res = append(res, NewReference(number, entry.Generation))
	}
	return res
}

// Get reads an indirect object from the file.
// References to free or missing objects resolve to nil (the null object).
func (r *Reader) Get(ref Reference) (Object, error) {
	entry := r.xref[ref.Number()]
	if entry.IsFree() || entry.Generation != ref.Generation() {
		return nil, nil
	}

	if entry.InStream != 0 {
		return r.getFromObjectStream(ref, entry)
	}

	if entry.Pos >= int64(len(r.buf)) {
		return nil, &MalformedFileError{
			Pos: entry.Pos,
			Err: fmt.Errorf("object %s points past end of file", ref),
		}
	}

	s := newScanner(r.buf, r.getInt)
	s.pos = int(entry.Pos)
	if r.enc != nil && ref != r.encRef {
		s.enc = r.enc
	}
	obj, fileRef, err := s.readIndirectObject()
	if err != nil {
		return nil, err
	}
	if fileRef != ref {
		return nil, &MalformedFileError{
			Pos: entry.Pos,
			Err: fmt.Errorf("expected object %s but found %s", ref, fileRef),
		}
	}

	if stm, isStream := obj.(*Stream); isStream {
		data, err := io.ReadAll(stm.R)
		if err != nil {
			return nil, err
		}
		if r.needsStreamDecryption(ref, stm.Dict) {
			data, err = r.enc.DecryptStream(ref, data)
			if err != nil {
				return nil, &MalformedFileError{Pos: entry.Pos, Err: err}
			}
		}
		stm.Dict["Length"] = Integer(len(data))
		stm.R = bytes.NewReader(data)
	}

	return obj, nil
}

func (r *Reader) needsStreamDecryption(ref Reference, dict Dict) bool {
	if r.enc == nil || ref == r.encRef {
		return false
	}
	switch dict["Type"] {
	case Name("XRef"):
		return false
	case Name("Metadata"):
		return !r.enc.sec.unencryptedMetaData
	}
	return true
}

// getInt resolves the /Length of a stream.
func (r *Reader) getInt(obj Object) (Integer, error) {
	if r.inLength {
		return 0, errors.New("recursive stream length")
	}
	r.inLength = true
	defer func() { r.inLength = false }()

	return GetInt(r, obj)
}

type objStm struct {
	data    []byte
	entries []objStmEntry
}

type objStmEntry struct {
	Number uint32
	Offset int
}

func (r *Reader) getFromObjectStream(ref Reference, entry *xRefEntry) (Object, error) {
	container, ok := r.objStm[entry.InStream]
	if !ok {
		stm, err := GetStream(r, entry.InStream)
		if err != nil {
			return nil, err
		}
		if stm == nil {
			return nil, &MalformedFileError{
				Err: fmt.Errorf("object stream %s not found", entry.InStream),
			}
		}
		n, err := GetInt(r, stm.Dict["N"])
		if err != nil {
			return nil, err
		}
		first, err := GetInt(r, stm.Dict["First"])
		if err != nil {
			return nil, err
		}
		data, err := DecodeStream(r, stm)
		if err != nil {
			return nil, &MalformedFileError{Err: err}
		}
		entries, err := parseObjStmHeader(data, int(n), int(first))
		if err != nil {
			return nil, err
		}
		container = &objStm{data: data, entries: entries}
		r.objStm[entry.InStream] = container
	}

	idx := entry.Pos
	if idx < 0 || idx >= int64(len(container.entries)) || container.entries[idx].Number != ref.Number() {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("object %s not found in object stream %s", ref, entry.InStream),
		}
	}

	s := newScanner(container.data, nil)
	s.pos = container.entries[idx].Offset
	return s.ReadObject()
}

// parseObjStmHeader decodes the pairs of object numbers and offsets at the
// start of an object stream.  The returned offsets are relative to the
// start of the data.
func parseObjStmHeader(data []byte, n, first int) ([]objStmEntry, error) {
	if n < 0 || first < 0 || first > len(data) {
		return nil, &MalformedFileError{Err: errors.New("invalid object stream header")}
	}
	s := newScanner(data[:first], nil)
	res := make([]objStmEntry, 0, min(n, len(data)))
	for range n {
		s.skipWhiteSpace()
		number, err := s.readUnsigned()
		if err != nil {
			return nil, err
		}
		s.skipWhiteSpace()
		offset, err := s.readUnsigned()
		if err != nil {
			return nil, err
		}
		if number >= 1<<32 || int64(first)+offset >= int64(len(data)) {
			return nil, &MalformedFileError{Err: errors.New("invalid object stream header")}
		}
		res = append(res, objStmEntry{Number: uint32(number), Offset: first + int(offset)})
	}
	return res, nil
}
