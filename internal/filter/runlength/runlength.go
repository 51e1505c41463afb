// seehuhn.de/go/invoice - compose invoice summaries and merge PDF files
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
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

// Package runlength implements the RunLengthDecode filter.
package runlength

import "errors"

// Decode decodes run-length encoded data.  Decoding stops at the
// end-of-data marker 128 or at the end of the input.
func Decode(data []byte) ([]byte, error) {
	var res []byte
	for len(data) > 0 {
		length := data[0]
		data = data[1:]
		switch {
		case length == 128:
			return res, nil
		case length < 128:
			n := int(length) + 1 // 1, ..., 128
			if n > len(data) {
				return res, errTruncated
			}
			res = append(res, data[:n]...)
			data = data[n:]
		default:
			n := 257 - int(length) // 2, ..., 128
			if len(data) == 0 {
				return res, errTruncated
			}
			for range n {
				res = append(res, data[0])
			}
			data = data[1:]
		}
	}
	return res, nil
}

// Encode encodes data using run-length encoding, including the
// end-of-data marker.
func Encode(data []byte) []byte {
	var res []byte
	for len(data) > 0 {
		run := 1
		for run < len(data) && run < 128 && data[run] == data[0] {
			run++
		}
		if run >= 2 {
			res = append(res, byte(257-run), data[0])
			data = data[run:]
			continue
		}

		// collect literal bytes until the next run of at least three
		n := 1
		for n < len(data) && n < 128 {
			if n+2 < len(data) && data[n] == data[n+1] && data[n] == data[n+2] {
				break
			}
			n++
		}
		res = append(res, byte(n-1))
		res = append(res, data[:n]...)
		data = data[n:]
	}
	return append(res, 128)
}

var errTruncated = errors.New("run-length data truncated")
