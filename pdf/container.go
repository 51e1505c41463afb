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
	"fmt"
	"io"
)

// Getter is implemented by objects which give access to the objects of a PDF
// file, for example [*Reader] and [*Data].
type Getter interface {
	GetMeta() *MetaInfo
	Get(Reference) (Object, error)
}

// Resolve resolves references to indirect objects.
//
// If obj is a [Reference], the function reads the corresponding object from
// the file and returns the result.  If obj is not a [Reference], it is
// returned unchanged.  The function recursively follows chains of references
// until it resolves to a non-reference object.
//
// If a reference loop is encountered, the function returns an error of type
// [MalformedFileError].
func Resolve(r Getter, obj Object) (Object, error) {
	count := 0
	for {
		ref, isReference := obj.(Reference)
		if !isReference {
			break
		}
		if r == nil {
			return nil, &MalformedFileError{
				Err: fmt.Errorf("cannot resolve %s", ref),
			}
		}
		count++
		if count > 16 {
			return nil, &MalformedFileError{
				Err: fmt.Errorf("too many levels of indirection for %s", ref),
			}
		}

		var err error
		obj, err = r.Get(ref)
		if err != nil {
			return nil, err
		}
	}

	return obj, nil
}

func resolveAndCast[T Object](r Getter, obj Object) (x T, err error) {
	obj, err = Resolve(r, obj)
	if err != nil {
		return x, err
	}

	if obj == nil {
		return x, nil
	}

	var isCorrectType bool
	x, isCorrectType = obj.(T)
	if isCorrectType {
		return x, nil
	}

	return x, &MalformedFileError{
		Err: fmt.Errorf("expected %T but got %T", x, obj),
	}
}

// Helper functions for getting objects of a specific type.  Each of these
// functions calls Resolve on the object before attempting to convert it to the
// desired type.  If the object is `null`, a zero object is returned without
// error.  If the object is of the wrong type, an error is returned.
//
// The signature of these functions is
//
//	func GetT(r Getter, obj Object) (x T, err error)
//
// where T is the type of the object to be returned.
var (
	GetArray  = resolveAndCast[Array]
	GetBool   = resolveAndCast[Bool]
	GetDict   = resolveAndCast[Dict]
	GetInt    = resolveAndCast[Integer]
	GetName   = resolveAndCast[Name]
	GetReal   = resolveAndCast[Real]
	GetStream = resolveAndCast[*Stream]
	GetString = resolveAndCast[String]
)

// GetNumber resolves obj and converts Integer and Real values to float64.
func GetNumber(r Getter, obj Object) (float64, error) {
	obj, err := Resolve(r, obj)
	if err != nil {
		return 0, err
	}
	switch x := obj.(type) {
	case Integer:
		return float64(x), nil
	case Real:
		return float64(x), nil
	case nil:
		return 0, nil
	default:
		return 0, &MalformedFileError{
			Err: fmt.Errorf("expected a number but got %T", obj),
		}
	}
}

// Putter is implemented by objects which PDF objects can be written to,
// for example [*Writer] and [*Data].
type Putter interface {
	GetMeta() *MetaInfo
	Alloc() Reference
	Put(ref Reference, obj Object) error
	OpenStream(ref Reference, dict Dict, filters ...Filter) (io.WriteCloser, error)
	Close() error
}
