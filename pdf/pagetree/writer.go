// seehuhn.de/go/invoice - compose invoice summaries and merge PDF files
// Copyright (C) 2022  Jochen Voss <voss@seehuhn.de>
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

// Package pagetree implements PDF page trees.
package pagetree

import (
	"errors"

	"seehuhn.de/go/invoice/pdf"
)

// Writer writes a balanced page tree to a PDF file.
// Every inner node of the tree has at most 16 children.
type Writer struct {
	Out pdf.Putter

	isClosed bool

	// Tail contains completed subtrees, in page order.  The depth of the
	// subtrees is weakly decreasing, and for every depth there are at most
	// maxDegree-1 subtrees of this depth.
	tail []*nodeInfo
}

type nodeInfo struct {
	dict      pdf.Dict // a /Page or /Pages object
	ref       pdf.Reference
	pageCount pdf.Integer
	depth     int
}

// NewWriter creates a new page tree which adds pages to the PDF document w.
func NewWriter(w pdf.Putter) *Writer {
	return &Writer{Out: w}
}

// AppendPageDict adds a page to the tree.  The page object ref is written
// once the parent node is known, and the /Parent entry of dict is set
// accordingly.  The caller must not modify dict afterwards.
func (w *Writer) AppendPageDict(ref pdf.Reference, dict pdf.Dict) error {
	if w.isClosed {
		return errTreeClosed
	}
	if dict["Type"] != pdf.Name("Page") {
		return errors.New("not a page dictionary")
	}

	w.tail = append(w.tail, &nodeInfo{
		dict:      dict,
		ref:       ref,
		pageCount: 1,
	})

	for {
		n := len(w.tail)
		if n < maxDegree || w.tail[n-1].depth != w.tail[n-maxDegree].depth {
			break
		}
		var err error
		w.tail, err = w.mergeNodes(w.tail, n-maxDegree, n)
		if err != nil {
			return err
		}
	}
	return nil
}

// Close writes the remaining nodes of the page tree to the file and
// returns the reference of the root node.
func (w *Writer) Close() (pdf.Reference, error) {
	if w.isClosed {
		return 0, errTreeClosed
	}
	w.isClosed = true

	if len(w.tail) == 0 {
		return 0, errors.New("no pages in document")
	}

	// reduce the tail to a single node
	for len(w.tail) > 1 {
		start := max(len(w.tail)-maxDegree, 0)
		for start > 0 && w.tail[start-1].depth == w.tail[start].depth {
			start++
		}
		var err error
		w.tail, err = w.mergeNodes(w.tail, start, len(w.tail))
		if err != nil {
			return 0, err
		}
	}

	root := w.tail[0]
	w.tail = nil

	// the root node cannot be a leaf
	if root.depth == 0 {
		nodes, err := w.mergeNodes([]*nodeInfo{root}, 0, 1)
		if err != nil {
			return 0, err
		}
		root = nodes[0]
	}

	err := w.Out.Put(root.ref, root.dict)
	if err != nil {
		return 0, err
	}
	return root.ref, nil
}

// mergeNodes replaces nodes[a:b] with a new /Pages node and writes the
// children to the file.
func (w *Writer) mergeNodes(nodes []*nodeInfo, a, b int) ([]*nodeInfo, error) {
	childNodes := nodes[a:b]

	kids := make(pdf.Array, len(childNodes))
	parentRef := w.Out.Alloc()
	var pageCount pdf.Integer
	maxDepth := 0
	for i, node := range childNodes {
		node.dict["Parent"] = parentRef
		kids[i] = node.ref
		err := w.Out.Put(node.ref, node.dict)
		if err != nil {
			return nil, err
		}
		pageCount += node.pageCount
		maxDepth = max(maxDepth, node.depth)
	}

	nodes[a] = &nodeInfo{
		dict: pdf.Dict{
			"Type":  pdf.Name("Pages"),
			"Kids":  kids,
			"Count": pageCount,
		},
		ref:       parentRef,
		pageCount: pageCount,
		depth:     maxDepth + 1,
	}
	return append(nodes[:a+1], nodes[b:]...), nil
}

const maxDegree = 16

var errTreeClosed = errors.New("page tree is closed")
