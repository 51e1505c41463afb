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

package pagetree

import (
	"errors"
	"math"

	"seehuhn.de/go/invoice/pdf"
)

// inheritable lists the page attributes which can be inherited from
// ancestor nodes in the page tree.
var inheritable = []pdf.Name{"Resources", "MediaBox", "CropBox", "Rotate"}

// NumPages returns the number of pages in the document, as given by the
// /Count entry of the root node.
func NumPages(r pdf.Getter) (int, error) {
	catalog := r.GetMeta().Catalog
	root, err := pdf.GetDict(r, catalog.Pages)
	if err != nil {
		return 0, err
	}
	count, err := pdf.GetInt(r, root["Count"])
	if err != nil {
		return 0, err
	}
	if count < 0 || count > math.MaxInt32 {
		return 0, errInvalidPageTree
	}
	return int(count), nil
}

// ForEachPage calls fn for every page of the document, in page order.
//
// The page dictionaries passed to fn are copies, with all inherited
// attributes made explicit.  Page tree loops and nodes of unknown type
// cause an error.
func ForEachPage(r pdf.Getter, fn func(ref pdf.Reference, dict pdf.Dict) error) error {
	root := r.GetMeta().Catalog.Pages
	if root == 0 {
		return errInvalidPageTree
	}
	seen := map[pdf.Reference]bool{}
	return walk(r, root, pdf.Dict{}, seen, fn)
}

func walk(r pdf.Getter, ref pdf.Reference, inherited pdf.Dict, seen map[pdf.Reference]bool, fn func(pdf.Reference, pdf.Dict) error) error {
	if seen[ref] {
		return errInvalidPageTree
	}
	seen[ref] = true

	node, err := pdf.GetDict(r, ref)
	if err != nil {
		return err
	}
	if node == nil {
		return errInvalidPageTree
	}

	tp, err := pdf.GetName(r, node["Type"])
	if err != nil {
		return err
	}
	// Some files omit the /Type entry of page tree nodes.
	if tp == "" {
		if node["Kids"] != nil {
			tp = "Pages"
		} else {
			tp = "Page"
		}
	}

	switch tp {
	case "Page":
		page := pdf.Dict{}
		for key, val := range node {
			page[key] = val
		}
		for _, name := range inheritable {
			if _, ok := page[name]; !ok {
				if val, ok := inherited[name]; ok {
					page[name] = val
				}
			}
		}
		page["Type"] = pdf.Name("Page")
		return fn(ref, page)

	case "Pages":
		inh := pdf.Dict{}
		for key, val := range inherited {
			inh[key] = val
		}
		for _, name := range inheritable {
			if val, ok := node[name]; ok {
				inh[name] = val
			}
		}
		kids, err := pdf.GetArray(r, node["Kids"])
		if err != nil {
			return err
		}
		for _, kid := range kids {
			kidRef, ok := kid.(pdf.Reference)
			if !ok {
				return errInvalidPageTree
			}
			err = walk(r, kidRef, inh, seen, fn)
			if err != nil {
				return err
			}
		}
		return nil

	default:
		return errInvalidPageTree
	}
}

// GetPage returns the page dictionary of the given page, with all
// inherited attributes made explicit.  Pages are numbered starting at 0.
func GetPage(r pdf.Getter, pageNo int) (pdf.Reference, pdf.Dict, error) {
	if pageNo < 0 {
		return 0, nil, errors.New("invalid page number")
	}

	var resRef pdf.Reference
	var resDict pdf.Dict
	count := 0
	err := ForEachPage(r, func(ref pdf.Reference, dict pdf.Dict) error {
		if count == pageNo {
			resRef, resDict = ref, dict
			return errFound
		}
		count++
		return nil
	})
	if err == errFound {
		return resRef, resDict, nil
	} else if err != nil {
		return 0, nil, err
	}
	return 0, nil, errors.New("page not found")
}

var (
	errInvalidPageTree = &pdf.MalformedFileError{Err: errors.New("invalid page tree")}
	errFound           = errors.New("found")
)
