// seehuhn.de/go/invoice - compose invoice summaries and merge PDF files
// Copyright (C) 2024  Jochen Voss <voss@seehuhn.de>
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
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// A Copier is used to copy objects from one PDF file to another. The Copier
// keeps track of the objects that have already been copied and ensures that
// each object is copied only once.
//
// Indirect objects are allocated in the target file as needed, and references
// are translated accordingly.  Stream data is copied without decoding.
type Copier struct {
	trans map[Reference]Reference
	r     Getter
	w     Putter
}

// NewCopier creates a new Copier.
func NewCopier(w Putter, r Getter) *Copier {
	return &Copier{
		trans: make(map[Reference]Reference),
		w:     w,
		r:     r,
	}
}

// Copy copies an object from the source file to the target file, recursively.
//
// The returned object has the same type as the input object.
func (c *Copier) Copy(obj Object) (Object, error) {
	switch x := obj.(type) {
	case Dict:
		return c.CopyDict(x)
	case Array:
		return c.CopyArray(x)
	case *Stream:
		dict, err := c.CopyDict(x.Dict)
		if err != nil {
			return nil, err
		}
		return &Stream{Dict: dict, R: x.R}, nil
	case Reference:
		newRef, err := c.CopyReference(x)
		if err != nil || newRef == 0 {
			return nil, err
		}
		return newRef, nil
	default:
		return obj, nil
	}
}

// CopyDict copies a dictionary from the source file to the target file.
// Entries are visited in sorted order, so that the allocation of new
// object numbers is deterministic.
func (c *Copier) CopyDict(obj Dict) (Dict, error) {
	res := Dict{}
	keys := maps.Keys(obj)
	slices.Sort(keys)
	for _, key := range keys {
		repl, err := c.Copy(obj[key])
		if err != nil {
			return nil, err
		}
		res[key] = repl
	}
	return res, nil
}

// CopyArray copies an array from the source file to the target file.
func (c *Copier) CopyArray(obj Array) (Array, error) {
	res := make(Array, 0, len(obj))
	for _, val := range obj {
		repl, err := c.Copy(val)
		if err != nil {
			return nil, err
		}
		res = append(res, repl)
	}
	return res, nil
}

// CopyReference copies an indirect object from the source file to the
// target file and returns the new reference.
//
// References to missing objects, or to the null object, are references to
// null.  For these no object is allocated in the target file and 0 is
// returned.
func (c *Copier) CopyReference(obj Reference) (Reference, error) {
	newRef, ok := c.trans[obj]
	if ok {
		return newRef, nil
	}

	val, err := Resolve(c.r, obj)
	if err != nil {
		return 0, err
	}
	if val == nil {
		c.trans[obj] = 0
		return 0, nil
	}

	newRef = c.w.Alloc()
	c.trans[obj] = newRef

	trans, err := c.Copy(val)
	if err != nil {
		return 0, err
	}
	err = c.w.Put(newRef, trans)
	if err != nil {
		return 0, err
	}

	return newRef, nil
}

// Redirect arranges for references to origRef in the source file to be
// replaced by newRef.  The object origRef itself is not copied.
func (c *Copier) Redirect(origRef, newRef Reference) {
	c.trans[origRef] = newRef
}
