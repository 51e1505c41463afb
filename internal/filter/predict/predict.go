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

// Package predict implements the TIFF and PNG predictor functions which
// can be combined with the FlateDecode and LZWDecode filters.
package predict

import (
	"errors"
	"fmt"
)

const maxColumns = 1 << 20

// Params holds the /DecodeParms entries relevant for prediction.
type Params struct {
	// Colors is the number of color components per pixel.
	Colors int

	// BitsPerComponent is the number of bits used to represent each color
	// component.  Valid values are 1, 2, 4, 8, and 16.
	BitsPerComponent int

	// Columns is the number of pixels per row.
	Columns int

	// Predictor selects the prediction algorithm:
	// 1 means no prediction, 2 is TIFF predictor 2,
	// and 10 to 15 select PNG prediction.
	Predictor int
}

// Validate checks that the parameters are within the ranges allowed by PDF.
func (p *Params) Validate() error {
	switch p.Predictor {
	case 1:
		return nil
	case 2, 10, 11, 12, 13, 14, 15:
		// pass
	default:
		return fmt.Errorf("unsupported predictor %d", p.Predictor)
	}
	if p.Colors < 1 || p.Colors > 256 {
		return errors.New("invalid /Colors value")
	}
	switch p.BitsPerComponent {
	case 1, 2, 4, 8, 16:
		// pass
	default:
		return fmt.Errorf("invalid /BitsPerComponent %d", p.BitsPerComponent)
	}
	maxCols := min(maxColumns, (1<<31-1)/(p.Colors*p.BitsPerComponent))
	if p.Columns < 1 || p.Columns > maxCols {
		return errors.New("invalid /Columns value")
	}
	return nil
}

func (p *Params) bytesPerRow() int {
	return (p.Colors*p.BitsPerComponent*p.Columns + 7) / 8
}

func (p *Params) bytesPerPixel() int {
	return (p.Colors*p.BitsPerComponent + 7) / 8
}

// Decode reverses the prediction step on decompressed data.
// A final incomplete row is decoded as far as it goes.
func Decode(data []byte, p *Params) ([]byte, error) {
	err := p.Validate()
	if err != nil {
		return nil, err
	}

	switch p.Predictor {
	case 1:
		return data, nil
	case 2:
		return decodeTIFF(data, p), nil
	default:
		return decodePNG(data, p)
	}
}

func decodeTIFF(data []byte, p *Params) []byte {
	res := make([]byte, len(data))
	copy(res, data)

	rowLen := p.bytesPerRow()
	for start := 0; start < len(res); start += rowLen {
		row := res[start:min(start+rowLen, len(res))]
		switch p.BitsPerComponent {
		case 8:
			for i := p.Colors; i < len(row); i++ {
				row[i] += row[i-p.Colors]
			}
		case 16:
			step := 2 * p.Colors
			for i := step; i+1 < len(row); i += 2 {
				prev := uint16(row[i-step])<<8 | uint16(row[i-step+1])
				cur := uint16(row[i])<<8 | uint16(row[i+1])
				cur += prev
				row[i] = byte(cur >> 8)
				row[i+1] = byte(cur)
			}
		default:
			decodeTIFFBits(row, p)
		}
	}
	return res
}

// decodeTIFFBits handles components of 1, 2 or 4 bits.
func decodeTIFFBits(row []byte, p *Params) {
	bpc := p.BitsPerComponent
	mask := byte(1<<bpc - 1)
	perByte := 8 / bpc
	numComponents := p.Colors * p.Columns
	prev := make([]byte, p.Colors)

	for idx := 0; idx < numComponents && idx/perByte < len(row); idx++ {
		byteIdx := idx / perByte
		shift := uint(8 - bpc*(idx%perByte+1))
		val := (row[byteIdx] >> shift) & mask
		color := idx % p.Colors
		if idx >= p.Colors {
			val = (val + prev[color]) & mask
		}
		prev[color] = val
		row[byteIdx] = row[byteIdx]&^(mask<<shift) | val<<shift
	}
}

func decodePNG(data []byte, p *Params) ([]byte, error) {
	rowLen := p.bytesPerRow()
	bpp := p.bytesPerPixel()

	res := make([]byte, 0, len(data)/(rowLen+1)*rowLen+rowLen)
	prev := make([]byte, rowLen)
	cur := make([]byte, rowLen)
	for len(data) > 0 {
		tag := data[0]
		n := min(rowLen, len(data)-1)
		in := data[1 : 1+n]
		data = data[1+n:]

		for i := range n {
			var left, up, upLeft byte
			if i >= bpp {
				left = cur[i-bpp]
				upLeft = prev[i-bpp]
			}
			up = prev[i]

			var pred byte
			switch tag {
			case 0:
				// pass
			case 1:
				pred = left
			case 2:
				pred = up
			case 3:
				pred = byte((int(left) + int(up)) / 2)
			case 4:
				pred = paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("invalid PNG row tag %d", tag)
			}
			cur[i] = in[i] + pred
		}
		res = append(res, cur[:n]...)
		prev, cur = cur, prev
	}
	return res, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))
	if pa <= pb && pa <= pc {
		return a
	} else if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
