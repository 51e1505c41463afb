// seehuhn.de/go/invoice - compose invoice summaries and merge PDF files
// Copyright (C) 2020  Jochen Voss <voss@seehuhn.de>
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
	"compress/lzw"
	"compress/zlib"
	"encoding/ascii85"
	"errors"
	"fmt"
	"io"

	tifflzw "golang.org/x/image/tiff/lzw"

	"seehuhn.de/go/invoice/internal/filter/predict"
	"seehuhn.de/go/invoice/internal/filter/runlength"
)

// Filter represents a PDF stream filter.
//
// Currently, the following filter types are implemented by this library:
// [FilterASCII85], [FilterASCIIHex], [FilterFlate], [FilterLZW],
// [FilterRunLength].
type Filter interface {
	// Info returns the filter name and the decode parameters
	// to be stored in the stream dictionary.
	Info(Version) (Name, Dict, error)

	// Encode applies the filter to the data.
	Encode(data []byte) ([]byte, error)

	// Decode reverses the effect of Encode.
	Decode(data []byte) ([]byte, error)
}

// FilterFlate is the FlateDecode filter.
// The dictionary holds the optional decode parameters.
type FilterFlate Dict

// Info implements the [Filter] interface.
func (f FilterFlate) Info(Version) (Name, Dict, error) {
	return "FlateDecode", nonEmpty(Dict(f)), nil
}

// Encode implements the [Filter] interface.
// Predictors are not applied when encoding.
func (f FilterFlate) Encode(data []byte) ([]byte, error) {
	if p, err := predictorParams(Dict(f)); err != nil || p.Predictor != 1 {
		return nil, errors.New("encoding with predictors not supported")
	}
	buf := &bytes.Buffer{}
	zw, err := zlib.NewWriterLevel(buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	_, err = zw.Write(data)
	if err != nil {
		return nil, err
	}
	err = zw.Close()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode implements the [Filter] interface.
func (f FilterFlate) Decode(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	res, err := io.ReadAll(zr)
	if err != nil && !(errors.Is(err, io.ErrUnexpectedEOF) && len(res) > 0) {
		return nil, err
	}
	return applyPredictor(res, Dict(f))
}

// FilterLZW is the LZWDecode filter.
// The dictionary holds the optional decode parameters.
type FilterLZW Dict

// Info implements the [Filter] interface.
// Data is always encoded with EarlyChange set to 0.
func (f FilterLZW) Info(Version) (Name, Dict, error) {
	parms := Dict{}
	for key, val := range f {
		parms[key] = val
	}
	parms["EarlyChange"] = Integer(0)
	return "LZWDecode", parms, nil
}

// Encode implements the [Filter] interface.
func (f FilterLZW) Encode(data []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	lw := lzw.NewWriter(buf, lzw.MSB, 8)
	_, err := lw.Write(data)
	if err != nil {
		return nil, err
	}
	err = lw.Close()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode implements the [Filter] interface.
func (f FilterLZW) Decode(data []byte) ([]byte, error) {
	earlyChange := true
	if x, ok := f["EarlyChange"].(Integer); ok && x == 0 {
		earlyChange = false
	}

	var lr io.ReadCloser
	if earlyChange {
		lr = tifflzw.NewReader(bytes.NewReader(data), tifflzw.MSB, 8)
	} else {
		lr = lzw.NewReader(bytes.NewReader(data), lzw.MSB, 8)
	}
	defer lr.Close()
	res, err := io.ReadAll(lr)
	if err != nil && len(res) == 0 {
		return nil, err
	}
	return applyPredictor(res, Dict(f))
}

// FilterASCIIHex is the ASCIIHexDecode filter.
type FilterASCIIHex struct{}

// Info implements the [Filter] interface.
func (FilterASCIIHex) Info(Version) (Name, Dict, error) {
	return "ASCIIHexDecode", nil, nil
}

// Encode implements the [Filter] interface.
func (FilterASCIIHex) Encode(data []byte) ([]byte, error) {
	res := make([]byte, 0, 2*len(data)+len(data)/32+1)
	for i, c := range data {
		if i > 0 && i%32 == 0 {
			res = append(res, '\n')
		}
		res = fmt.Appendf(res, "%02x", c)
	}
	return append(res, '>'), nil
}

// Decode implements the [Filter] interface.
func (FilterASCIIHex) Decode(data []byte) ([]byte, error) {
	res := make([]byte, 0, len(data)/2)
	var hi byte
	haveHi := false
	for _, c := range data {
		if c == '>' {
			break
		}
		if isSpace[c] {
			continue
		}
		d, ok := hexDigit(c)
		if !ok {
			return nil, fmt.Errorf("ASCIIHexDecode: invalid character %q", c)
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
	return res, nil
}

// FilterASCII85 is the ASCII85Decode filter.
type FilterASCII85 struct{}

// Info implements the [Filter] interface.
func (FilterASCII85) Info(Version) (Name, Dict, error) {
	return "ASCII85Decode", nil, nil
}

// Encode implements the [Filter] interface.
func (FilterASCII85) Encode(data []byte) ([]byte, error) {
	res := make([]byte, ascii85.MaxEncodedLen(len(data)))
	n := ascii85.Encode(res, data)
	return append(res[:n], '~', '>'), nil
}

// Decode implements the [Filter] interface.
func (FilterASCII85) Decode(data []byte) ([]byte, error) {
	if idx := bytes.Index(data, []byte("~>")); idx >= 0 {
		data = data[:idx]
	}
	data = bytes.TrimPrefix(bytes.TrimLeft(data, " \t\r\n\f"), []byte("<~"))
	res := make([]byte, 4*len(data)/5+4)
	n, _, err := ascii85.Decode(res, data, true)
	if err != nil {
		return nil, err
	}
	return res[:n], nil
}

// FilterRunLength is the RunLengthDecode filter.
type FilterRunLength struct{}

// Info implements the [Filter] interface.
func (FilterRunLength) Info(Version) (Name, Dict, error) {
	return "RunLengthDecode", nil, nil
}

// Encode implements the [Filter] interface.
func (FilterRunLength) Encode(data []byte) ([]byte, error) {
	return runlength.Encode(data), nil
}

// Decode implements the [Filter] interface.
func (FilterRunLength) Decode(data []byte) ([]byte, error) {
	return runlength.Decode(data)
}

// makeFilter returns the filter for the given name and decode parameters.
func makeFilter(name Name, parms Dict) (Filter, error) {
	switch name {
	case "FlateDecode", "Fl":
		return FilterFlate(parms), nil
	case "LZWDecode", "LZW":
		return FilterLZW(parms), nil
	case "ASCIIHexDecode", "AHx":
		return FilterASCIIHex{}, nil
	case "ASCII85Decode", "A85":
		return FilterASCII85{}, nil
	case "RunLengthDecode", "RL":
		return FilterRunLength{}, nil
	}
	return nil, &UnsupportedFilterError{Name: name}
}

// UnsupportedFilterError is returned by [DecodeStream] when a stream uses
// a filter which cannot be decoded by this library, for example DCTDecode.
type UnsupportedFilterError struct {
	Name Name
}

func (err *UnsupportedFilterError) Error() string {
	return "unsupported filter " + string(err.Name)
}

// GetFilters returns the list of filters of a stream, in the order in which
// they need to be applied for decoding.
func GetFilters(r Getter, dict Dict) ([]Filter, error) {
	filterObj, err := Resolve(r, dict["Filter"])
	if err != nil {
		return nil, err
	}
	parmsObj, err := Resolve(r, dict["DecodeParms"])
	if err != nil {
		return nil, err
	}

	var res []Filter
	switch filter := filterObj.(type) {
	case nil:
		// pass
	case Name:
		parms, _ := parmsObj.(Dict)
		f, err := makeFilter(filter, parms)
		if err != nil {
			return nil, err
		}
		res = append(res, f)
	case Array:
		parmsArray, _ := parmsObj.(Array)
		for i, nameObj := range filter {
			name, err := GetName(r, nameObj)
			if err != nil {
				return nil, err
			}
			var parms Dict
			if i < len(parmsArray) {
				parms, _ = GetDict(r, parmsArray[i])
			}
			f, err := makeFilter(name, parms)
			if err != nil {
				return nil, err
			}
			res = append(res, f)
		}
	default:
		return nil, &MalformedFileError{
			Err: fmt.Errorf("invalid /Filter value %s", Format(filterObj)),
		}
	}
	return res, nil
}

// DecodeStream reads the data of a stream and undoes all filters.
// The stream's reader is consumed.
func DecodeStream(r Getter, x *Stream) ([]byte, error) {
	filters, err := GetFilters(r, x.Dict)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(x.R)
	if err != nil {
		return nil, err
	}
	for _, f := range filters {
		data, err = f.Decode(data)
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

func predictorParams(parms Dict) (*predict.Params, error) {
	p := &predict.Params{
		Colors:           1,
		BitsPerComponent: 8,
		Columns:          1,
		Predictor:        1,
	}
	for key, ptr := range map[Name]*int{
		"Colors":           &p.Colors,
		"BitsPerComponent": &p.BitsPerComponent,
		"Columns":          &p.Columns,
		"Predictor":        &p.Predictor,
	} {
		if val, ok := parms[key].(Integer); ok {
			*ptr = int(val)
		}
	}
	return p, p.Validate()
}

func applyPredictor(data []byte, parms Dict) ([]byte, error) {
	p, err := predictorParams(parms)
	if err != nil {
		return nil, err
	}
	return predict.Decode(data, p)
}

func nonEmpty(d Dict) Dict {
	if len(d) == 0 {
		return nil
	}
	return d
}
