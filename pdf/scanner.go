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
	"strconv"
)

// scanner splits the contents of a PDF file into tokens and objects.
// The whole file is held in memory.
type scanner struct {
	buf []byte
	pos int

	// getInt resolves indirect /Length values of streams.
	getInt func(Object) (Integer, error)

	// enc, if non-nil, is used to decrypt strings belonging to object ref.
	enc *encryptInfo
	ref Reference
}

func newScanner(buf []byte, getInt func(Object) (Integer, error)) *scanner {
	return &scanner{
		buf:    buf,
		getInt: getInt,
	}
}

func (s *scanner) errorf(format string, args ...any) error {
	return &MalformedFileError{
		Pos: int64(s.pos),
		Err: fmt.Errorf(format, args...),
	}
}

func (s *scanner) eof() bool {
	return s.pos >= len(s.buf)
}

func (s *scanner) peek() byte {
	if s.pos >= len(s.buf) {
		return 0
	}
	return s.buf[s.pos]
}

// hasPrefix checks whether the unread input starts with pfx.
func (s *scanner) hasPrefix(pfx string) bool {
	return bytes.HasPrefix(s.buf[s.pos:], []byte(pfx))
}

// skipWhiteSpace skips white space and comments.
func (s *scanner) skipWhiteSpace() {
	for s.pos < len(s.buf) {
		c := s.buf[s.pos]
		switch {
		case isSpace[c]:
			s.pos++
		case c == '%':
			for s.pos < len(s.buf) && s.buf[s.pos] != '\n' && s.buf[s.pos] != '\r' {
				s.pos++
			}
		default:
			return
		}
	}
}

// readToken reads a run of regular characters.
func (s *scanner) readToken() []byte {
	start := s.pos
	for s.pos < len(s.buf) {
		c := s.buf[s.pos]
		if isSpace[c] || isDelimiter[c] {
			break
		}
		s.pos++
	}
	return s.buf[start:s.pos]
}

// skipKeyword skips white space followed by the given keyword.
func (s *scanner) skipKeyword(kw string) error {
	s.skipWhiteSpace()
	start := s.pos
	tok := s.readToken()
	if string(tok) != kw {
		s.pos = start
		return s.errorf("expected %q", kw)
	}
	return nil
}

// readIndirectObject reads an object of the form "N G obj ... endobj".
// Stream data is returned undecrypted.
func (s *scanner) readIndirectObject() (Object, Reference, error) {
	s.skipWhiteSpace()
	number, err := s.readUnsigned()
	if err != nil {
		return nil, 0, err
	}
	s.skipWhiteSpace()
	generation, err := s.readUnsigned()
	if err != nil {
		return nil, 0, err
	}
	if number > 1<<32-1 || generation > 1<<16-1 {
		return nil, 0, s.errorf("invalid object number %d %d", number, generation)
	}
	ref := NewReference(uint32(number), uint16(generation))
	err = s.skipKeyword("obj")
	if err != nil {
		return nil, 0, err
	}

	s.ref = ref
	obj, err := s.ReadObject()
	if err != nil {
		return nil, 0, err
	}

	s.skipWhiteSpace()
	if dict, isDict := obj.(Dict); isDict && s.hasPrefix("stream") {
		data, err := s.readStreamData(dict)
		if err != nil {
			return nil, 0, err
		}
		obj = &Stream{
			Dict: dict,
			R:    bytes.NewReader(data),
		}
		s.skipWhiteSpace()
	}

	// Some writers omit "endobj".  This is tolerated.
	if s.hasPrefix("endobj") {
		s.pos += len("endobj")
	}

	return obj, ref, nil
}

func (s *scanner) readStreamData(dict Dict) ([]byte, error) {
	s.pos += len("stream")
	if s.hasPrefix("\r\n") {
		s.pos += 2
	} else if s.hasPrefix("\n") || s.hasPrefix("\r") {
		s.pos++
	}
	start := s.pos

	length := -1
	if s.getInt != nil {
		if l, err := s.getInt(dict["Length"]); err == nil {
			length = int(l)
		}
	} else if l, ok := dict["Length"].(Integer); ok {
		length = int(l)
	}

	if length >= 0 && start+length <= len(s.buf) {
		s.pos = start + length
		save := s.pos
		s.skipWhiteSpace()
		if s.hasPrefix("endstream") {
			s.pos += len("endstream")
			return s.buf[start : start+length], nil
		}
		s.pos = save
	}

	// The /Length is missing or wrong.  Try to recover by searching for
	// the "endstream" keyword.
	idx := bytes.Index(s.buf[start:], []byte("endstream"))
	if idx < 0 {
		s.pos = start
		return nil, s.errorf("stream data not terminated")
	}
	end := start + idx
	if end > start && s.buf[end-1] == '\n' {
		end--
	}
	if end > start && s.buf[end-1] == '\r' {
		end--
	}
	s.pos = start + idx + len("endstream")
	dict["Length"] = Integer(end - start)
	return s.buf[start:end], nil
}

// ReadObject reads a direct object or a reference.
// The PDF null object is returned as nil.
func (s *scanner) ReadObject() (Object, error) {
	s.skipWhiteSpace()
	if s.eof() {
		return nil, s.errorf("unexpected end of file")
	}

	c := s.buf[s.pos]
	switch {
	case c == '/':
		return s.readName()
	case c == '(':
		return s.readQuotedString()
	case c == '<':
		if s.hasPrefix("<<") {
			return s.readDict()
		}
		return s.readHexString()
	case c == '[':
		return s.readArray()
	case c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.':
		return s.readNumberOrReference()
	}

	start := s.pos
	tok := s.readToken()
	switch string(tok) {
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	case "null":
		return nil, nil
	}
	s.pos = start
	return nil, s.errorf("unexpected token %q", string(tok))
}

func (s *scanner) readUnsigned() (int64, error) {
	start := s.pos
	for s.pos < len(s.buf) && s.buf[s.pos] >= '0' && s.buf[s.pos] <= '9' {
		s.pos++
	}
	if s.pos == start {
		return 0, s.errorf("expected an integer")
	}
	x, err := strconv.ParseInt(string(s.buf[start:s.pos]), 10, 64)
	if err != nil {
		s.pos = start
		return 0, s.errorf("invalid integer: %w", err)
	}
	return x, nil
}

func (s *scanner) readNumberOrReference() (Object, error) {
	start := s.pos
	tok := s.readToken()
	if len(tok) == 0 {
		return nil, s.errorf("expected a number")
	}

	isInt := true
	for i, c := range tok {
		if c == '+' || c == '-' {
			if i > 0 {
				s.pos = start
				return nil, s.errorf("malformed number %q", string(tok))
			}
		} else if c < '0' || c > '9' {
			isInt = false
		}
	}

	if !isInt {
		x, err := strconv.ParseFloat(string(tok), 64)
		if err != nil {
			s.pos = start
			return nil, s.errorf("malformed number %q", string(tok))
		}
		return Real(x), nil
	}

	x, err := strconv.ParseInt(string(tok), 10, 64)
	if err != nil {
		f, err := strconv.ParseFloat(string(tok), 64)
		if err != nil {
			s.pos = start
			return nil, s.errorf("malformed number %q", string(tok))
		}
		return Real(f), nil
	}

	if tok[0] == '+' || tok[0] == '-' || x > 1<<32-1 {
		return Integer(x), nil
	}

	// check for a reference "N G R"
	save := s.pos
	s.skipWhiteSpace()
	gen, err := s.readUnsigned()
	if err == nil && gen < 1<<16 {
		s.skipWhiteSpace()
		if s.peek() == 'R' {
			s.pos++
			if s.eof() || isSpace[s.peek()] || isDelimiter[s.peek()] {
				return NewReference(uint32(x), uint16(gen)), nil
			}
		}
	}
	s.pos = save
	return Integer(x), nil
}

func (s *scanner) readName() (Name, error) {
	s.pos++ // skip '/'
	tok := s.readToken()

	var res []byte
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		if c == '#' && i+2 < len(tok) {
			hi, ok1 := hexDigit(tok[i+1])
			lo, ok2 := hexDigit(tok[i+2])
			if ok1 && ok2 {
				res = append(res, hi<<4|lo)
				i += 2
				continue
			}
		}
		res = append(res, c)
	}
	return Name(res), nil
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

func (s *scanner) readQuotedString() (String, error) {
	s.pos++ // skip '('

	var res []byte
	level := 1
	for {
		if s.eof() {
			return nil, s.errorf("unterminated string")
		}
		c := s.buf[s.pos]
		s.pos++

		switch c {
		case '(':
			level++
		case ')':
			level--
			if level == 0 {
				return s.decryptString(res)
			}
		case '\r':
			// end-of-line markers inside strings are read as "\n"
			if s.peek() == '\n' {
				s.pos++
			}
			c = '\n'
		case '\\':
			if s.eof() {
				return nil, s.errorf("unterminated string")
			}
			c = s.buf[s.pos]
			s.pos++
			switch c {
			case 'n':
				c = '\n'
			case 'r':
				c = '\r'
			case 't':
				c = '\t'
			case 'b':
				c = '\b'
			case 'f':
				c = '\f'
			case '\r':
				if s.peek() == '\n' {
					s.pos++
				}
				continue
			case '\n':
				continue
			case '0', '1', '2', '3', '4', '5', '6', '7':
				x := int(c - '0')
				for range 2 {
					d := s.peek()
					if d < '0' || d > '7' {
						break
					}
					x = x*8 + int(d-'0')
					s.pos++
				}
				c = byte(x)
			}
		}
		res = append(res, c)
	}
}

func (s *scanner) readHexString() (String, error) {
	s.pos++ // skip '<'

	var res []byte
	var hi byte
	haveHi := false
	for {
		if s.eof() {
			return nil, s.errorf("unterminated hex string")
		}
		c := s.buf[s.pos]
		s.pos++
		if c == '>' {
			break
		}
		if isSpace[c] {
			continue
		}
		d, ok := hexDigit(c)
		if !ok {
			return nil, s.errorf("invalid character %q in hex string", c)
		}
		if haveHi {
			res = append(res, hi<<4|d)
		} else {
			hi = d
		}
		haveHi = !haveHi
	}
	if haveHi {
		res = append(res, hi<<4)
	}
	return s.decryptString(res)
}

func (s *scanner) decryptString(data []byte) (String, error) {
	if s.enc == nil {
		return String(data), nil
	}
	plain, err := s.enc.DecryptBytes(s.ref, data)
	if err != nil {
		return nil, &MalformedFileError{Pos: int64(s.pos), Err: err}
	}
	return String(plain), nil
}

func (s *scanner) readArray() (Array, error) {
	s.pos++ // skip '['

	res := Array{}
	for {
		s.skipWhiteSpace()
		if s.eof() {
			return nil, s.errorf("unterminated array")
		}
		if s.peek() == ']' {
			s.pos++
			return res, nil
		}
		obj, err := s.ReadObject()
		if err != nil {
			return nil, err
		}
		res = append(res, obj)
	}
}

func (s *scanner) readDict() (Dict, error) {
	s.pos += 2 // skip "<<"

	res := Dict{}
	for {
		s.skipWhiteSpace()
		if s.eof() {
			return nil, s.errorf("unterminated dictionary")
		}
		if s.hasPrefix(">>") {
			s.pos += 2
			return res, nil
		}
		if s.peek() != '/' {
			return nil, s.errorf("expected a name as dictionary key")
		}
		key, err := s.readName()
		if err != nil {
			return nil, err
		}
		val, err := s.ReadObject()
		if err != nil {
			return nil, err
		}
		if val != nil {
			res[key] = val
		}
	}
}

// readHeaderVersion reads the PDF version from the "%PDF-x.y" header line.
func (s *scanner) readHeaderVersion() (Version, error) {
	idx := bytes.Index(s.buf[:min(len(s.buf), 1024)], []byte("%PDF-"))
	if idx < 0 {
		return 0, &MalformedFileError{Err: errors.New("PDF header not found")}
	}
	s.pos = idx + len("%PDF-")
	tok := s.readToken()
	ver, err := ParseVersion(string(tok))
	if err != nil {
		return 0, s.errorf("unsupported PDF version %q", string(tok))
	}
	return ver, nil
}

var isSpace = [256]bool{
	0:  true,
	9:  true,
	10: true,
	12: true,
	13: true,
	32: true,
}

var isDelimiter = [256]bool{
	'(': true,
	')': true,
	'<': true,
	'>': true,
	'[': true,
	']': true,
	'{': true,
	'}': true,
	'/': true,
	'%': true,
}
