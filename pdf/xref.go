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
	"math/bits"
	"regexp"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type xRefEntry struct {
	// InStream is the object stream containing the object, or 0 if the
	// object is stored directly in the file.
	InStream Reference

	// Pos is the byte offset of the object, or the index inside the
	// object stream.  Free entries have Pos < 0.
	Pos        int64
	Generation uint16
}

// IsFree reports whether the entry refers to a free object.
func (entry *xRefEntry) IsFree() bool {
	return entry == nil || entry.Pos < 0
}

// findXRef returns the byte offset given after the last "startxref".
func (r *Reader) findXRef() (int64, error) {
	idx := bytes.LastIndex(r.buf, []byte("startxref"))
	if idx < 0 {
		return 0, &MalformedFileError{Err: errors.New("startxref not found")}
	}
	s := newScanner(r.buf, nil)
	s.pos = idx + len("startxref")
	s.skipWhiteSpace()
	pos, err := s.readUnsigned()
	if err != nil {
		return 0, err
	}
	if pos >= int64(len(r.buf)) {
		return 0, &MalformedFileError{
			Pos: int64(idx),
			Err: errors.New("startxref points past end of file"),
		}
	}
	return pos, nil
}

// readXRef reads the cross-reference information of the file, following
// the chain of /Prev pointers.  Newer entries take precedence.
func (r *Reader) readXRef() (map[uint32]*xRefEntry, Dict, error) {
	start, err := r.findXRef()
	if err != nil {
		return nil, nil, err
	}

	xref := make(map[uint32]*xRefEntry)
	var trailer Dict
	seen := make(map[int64]bool)
	pos := start
	for {
		if seen[pos] {
			return nil, nil, &MalformedFileError{
				Pos: pos,
				Err: errors.New("loop in /Prev chain"),
			}
		}
		seen[pos] = true

		dict, err := r.readXRefSection(xref, pos)
		if err != nil {
			return nil, nil, err
		}
		if trailer == nil {
			trailer = dict
		}

		// hybrid-reference files point to an additional xref stream
		if stm, ok := dict["XRefStm"].(Integer); ok && !seen[int64(stm)] {
			seen[int64(stm)] = true
			_, err = r.readXRefSection(xref, int64(stm))
			if err != nil {
				return nil, nil, err
			}
		}

		prev, ok := dict["Prev"].(Integer)
		if !ok {
			break
		}
		pos = int64(prev)
	}

	return xref, trailer, nil
}

func (r *Reader) readXRefSection(xref map[uint32]*xRefEntry, pos int64) (Dict, error) {
	if pos < 0 || pos >= int64(len(r.buf)) {
		return nil, &MalformedFileError{Pos: pos, Err: errors.New("invalid xref offset")}
	}
	s := newScanner(r.buf, nil)
	s.pos = int(pos)
	s.skipWhiteSpace()
	if s.hasPrefix("xref") {
		s.pos += len("xref")
		return readXRefTable(xref, s)
	}
	return readXRefStream(xref, s)
}

func readXRefTable(xref map[uint32]*xRefEntry, s *scanner) (Dict, error) {
	for {
		s.skipWhiteSpace()
		if s.hasPrefix("trailer") {
			s.pos += len("trailer")
			break
		}

		start, err := s.readUnsigned()
		if err != nil {
			return nil, err
		}
		s.skipWhiteSpace()
		count, err := s.readUnsigned()
		if err != nil {
			return nil, err
		}
		err = decodeXRefSection(xref, s, start, count)
		if err != nil {
			return nil, err
		}
	}

	obj, err := s.ReadObject()
	if err != nil {
		return nil, err
	}
	trailer, ok := obj.(Dict)
	if !ok {
		return nil, s.errorf("invalid trailer dictionary")
	}
	return trailer, nil
}

func decodeXRefSection(xref map[uint32]*xRefEntry, s *scanner, start, count int64) error {
	if start < 0 || count < 0 || start+count > 1<<32 {
		return s.errorf("invalid xref subsection %d %d", start, count)
	}

	// Some writers start the table with "1 n" instead of "0 n", while
	// still listing the free entry for object 0 first.
	fixOffset := false
	for i := range count {
		s.skipWhiteSpace()
		offset, err := s.readUnsigned()
		if err != nil {
			return err
		}
		s.skipWhiteSpace()
		gen, err := s.readUnsigned()
		if err != nil {
			return err
		}
		s.skipWhiteSpace()
		tp := s.peek()
		if tp != 'n' && tp != 'f' {
			return s.errorf("invalid xref entry type %q", tp)
		}
		s.pos++

		if i == 0 && start == 1 && tp == 'f' && gen == 65535 {
			fixOffset = true
		}
		number := uint32(start + i)
		if fixOffset {
			number--
		}
		if _, exists := xref[number]; exists {
			continue
		}

		entry := &xRefEntry{Pos: -1, Generation: uint16(gen)}
		if tp == 'n' {
			entry.Pos = offset
		}
		xref[number] = entry
	}
	return nil
}

func readXRefStream(xref map[uint32]*xRefEntry, s *scanner) (Dict, error) {
	obj, _, err := s.readIndirectObject()
	if err != nil {
		return nil, err
	}
	stm, ok := obj.(*Stream)
	if !ok {
		return nil, s.errorf("xref stream not found")
	}

	w, ss, err := checkXRefStreamDict(stm.Dict)
	if err != nil {
		return nil, err
	}

	data, err := DecodeStream(nil, stm)
	if err != nil {
		return nil, &MalformedFileError{Pos: int64(s.pos), Err: err}
	}
	err = decodeXRefStream(xref, data, w, ss)
	if err != nil {
		return nil, err
	}
	return stm.Dict, nil
}

type xRefSubSection struct {
	Start, Size int64
}

func checkXRefStreamDict(dict Dict) ([]int, []*xRefSubSection, error) {
	size, ok := dict["Size"].(Integer)
	if !ok || size < 0 {
		return nil, nil, &MalformedFileError{Err: errors.New("xref stream without valid /Size")}
	}

	var ss []*xRefSubSection
	if index, ok := dict["Index"].(Array); ok {
		if len(index)%2 != 0 {
			return nil, nil, &MalformedFileError{Err: errors.New("invalid xref stream /Index")}
		}
		for i := 0; i < len(index); i += 2 {
			start, ok1 := index[i].(Integer)
			n, ok2 := index[i+1].(Integer)
			if !ok1 || !ok2 || start < 0 || n < 0 {
				return nil, nil, &MalformedFileError{Err: errors.New("invalid xref stream /Index")}
			}
			ss = append(ss, &xRefSubSection{Start: int64(start), Size: int64(n)})
		}
	} else {
		ss = append(ss, &xRefSubSection{Start: 0, Size: int64(size)})
	}

	wArray, ok := dict["W"].(Array)
	if !ok || len(wArray) != 3 {
		return nil, nil, &MalformedFileError{Err: errors.New("invalid xref stream /W")}
	}
	w := make([]int, 3)
	for i, obj := range wArray {
		x, ok := obj.(Integer)
		if !ok || x < 0 || x > 8 {
			return nil, nil, &MalformedFileError{Err: errors.New("invalid xref stream /W")}
		}
		w[i] = int(x)
	}

	return w, ss, nil
}

func decodeXRefStream(xref map[uint32]*xRefEntry, data []byte, w []int, ss []*xRefSubSection) error {
	entryLen := w[0] + w[1] + w[2]
	if entryLen == 0 {
		return &MalformedFileError{Err: errors.New("invalid xref stream /W")}
	}
	for _, sec := range ss {
		for i := range sec.Size {
			if len(data) < entryLen {
				return &MalformedFileError{Err: errors.New("xref stream data too short")}
			}
			tp := int64(1)
			if w[0] > 0 {
				tp = decodeInt(data[:w[0]])
			}
			f2 := decodeInt(data[w[0] : w[0]+w[1]])
			f3 := decodeInt(data[w[0]+w[1] : entryLen])
			data = data[entryLen:]

			number := sec.Start + i
			if number >= 1<<32 {
				continue
			}
			if _, exists := xref[uint32(number)]; exists {
				continue
			}
			switch tp {
			case 0:
				xref[uint32(number)] = &xRefEntry{Pos: -1, Generation: uint16(f3)}
			case 1:
				xref[uint32(number)] = &xRefEntry{Pos: f2, Generation: uint16(f3)}
			case 2:
				xref[uint32(number)] = &xRefEntry{
					InStream: NewReference(uint32(f2), 0),
					Pos:      f3,
				}
			default:
				// unknown types are treated as references to null
			}
		}
	}
	return nil
}

func decodeInt(buf []byte) (res int64) {
	for _, x := range buf {
		res = res<<8 | int64(x)
	}
	return res
}

var objHeader = regexp.MustCompile(`(?m)(?:^|[\r\n\s])(\d{1,10})\s+(\d{1,5})\s+obj\b`)

// reconstructXRef rebuilds the cross-reference information by scanning the
// whole file for object headers.  This is used when the xref table or
// stream is damaged.
func (r *Reader) reconstructXRef() (map[uint32]*xRefEntry, Dict, error) {
	xref := make(map[uint32]*xRefEntry)
	for _, m := range objHeader.FindAllSubmatchIndex(r.buf, -1) {
		var number, gen int64
		fmt.Sscan(string(r.buf[m[2]:m[3]]), &number)
		fmt.Sscan(string(r.buf[m[4]:m[5]]), &gen)
		if number >= 1<<32 || gen >= 1<<16 {
			continue
		}
		// later definitions override earlier ones
		xref[uint32(number)] = &xRefEntry{Pos: int64(m[2]), Generation: uint16(gen)}
	}
	if len(xref) == 0 {
		return nil, nil, &MalformedFileError{Err: errors.New("no objects found")}
	}
	numbers := maps.Keys(xref)
	slices.Sort(numbers)

	var trailer Dict
	if idx := bytes.LastIndex(r.buf, []byte("trailer")); idx >= 0 {
		s := newScanner(r.buf, nil)
		s.pos = idx + len("trailer")
		if obj, err := s.ReadObject(); err == nil {
			trailer, _ = obj.(Dict)
		}
	}
	if trailer == nil || trailer["Root"] == nil {
		// look for an xref stream dictionary carrying the trailer entries
		for i := len(numbers) - 1; i >= 0; i-- {
			number := numbers[i]
			s := newScanner(r.buf, nil)
			s.pos = int(xref[number].Pos)
			obj, _, err := s.readIndirectObject()
			if err != nil {
				continue
			}
			if stm, ok := obj.(*Stream); ok && stm.Dict["Type"] == Name("XRef") && stm.Dict["Root"] != nil {
				trailer = stm.Dict
				break
			}
		}
	}
	if trailer == nil || trailer["Root"] == nil {
		return nil, nil, &MalformedFileError{Err: errors.New("document catalog not found")}
	}

	// object streams are found via the objects they contain
	for _, number := range numbers {
		s := newScanner(r.buf, nil)
		s.pos = int(xref[number].Pos)
		obj, _, err := s.readIndirectObject()
		if err != nil {
			continue
		}
		stm, ok := obj.(*Stream)
		if !ok || stm.Dict["Type"] != Name("ObjStm") {
			continue
		}
		n, _ := stm.Dict["N"].(Integer)
		first, _ := stm.Dict["First"].(Integer)
		data, err := DecodeStream(nil, stm)
		if err != nil {
			continue
		}
		entries, err := parseObjStmHeader(data, int(n), int(first))
		if err != nil {
			continue
		}
		for i, e := range entries {
			if _, exists := xref[e.Number]; !exists {
				xref[e.Number] = &xRefEntry{InStream: NewReference(number, 0), Pos: int64(i)}
			}
		}
	}

	return xref, trailer, nil
}

// writeXRefTable writes a classic cross-reference table and trailer.
func (pdf *Writer) writeXRefTable(trailer Dict) error {
	_, err := fmt.Fprintf(pdf.w, "xref\n0 %d\n", len(pdf.xref))
	if err != nil {
		return err
	}
	for _, entry := range pdf.xref {
		if entry.IsFree() {
			_, err = fmt.Fprintf(pdf.w, "%010d %05d f\r\n", 0, 65535)
		} else {
			_, err = fmt.Fprintf(pdf.w, "%010d %05d n\r\n", entry.Pos, entry.Generation)
		}
		if err != nil {
			return err
		}
	}
	_, err = pdf.w.Write([]byte("trailer\n"))
	if err != nil {
		return err
	}
	err = trailer.PDF(pdf.w)
	if err != nil {
		return err
	}
	_, err = pdf.w.Write([]byte("\n"))
	return err
}

// writeXRefStream writes a cross-reference stream, which carries the
// trailer entries in its dictionary.  The stream object is ref, and its
// own entry is included.
func (pdf *Writer) writeXRefStream(trailer Dict, ref Reference) error {
	pdf.xref[ref.Number()] = &xRefEntry{Pos: pdf.w.pos}

	var maxPos int64
	for _, entry := range pdf.xref {
		if entry.IsFree() {
			continue
		}
		maxPos = max(maxPos, entry.Pos)
	}
	w2 := max((bits.Len64(uint64(maxPos))+7)/8, 1)

	data := &bytes.Buffer{}
	for _, entry := range pdf.xref {
		if entry.IsFree() {
			data.WriteByte(0)
			encodeInt(data, 0, w2)
			data.WriteByte(0xFF)
			data.WriteByte(0xFF)
			continue
		}
		data.WriteByte(1)
		encodeInt(data, uint64(entry.Pos), w2)
		data.WriteByte(byte(entry.Generation >> 8))
		data.WriteByte(byte(entry.Generation))
	}
	pdf.xref[ref.Number()] = nil // set again by writeIndirect

	dict := Dict{}
	for key, val := range trailer {
		dict[key] = val
	}
	dict["Type"] = Name("XRef")
	dict["W"] = Array{Integer(1), Integer(w2), Integer(2)}

	compressed, err := FilterFlate{}.Encode(data.Bytes())
	if err != nil {
		return err
	}
	dict["Filter"] = Name("FlateDecode")

	return pdf.writeIndirect(ref, &Stream{Dict: dict, R: bytes.NewReader(compressed)}, false)
}

func encodeInt(data *bytes.Buffer, x uint64, w int) {
	for i := w - 1; i >= 0; i-- {
		data.WriteByte(byte(x >> (i * 8)))
	}
}
