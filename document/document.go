// seehuhn.de/go/pdf-watermark - add watermarks to the pages of PDF files
// Copyright (C) 2026  Jochen Voss <voss@seehuhn.de>
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

// Package document holds a PDF file open for modification.
//
// Objects are read from the file on demand.  Page tree nodes, and all
// dictionaries obtained through [Document.Dict], are held by the Document:
// looking up the same reference twice gives the same map, and changes made
// to these maps are included when the document is written using
// [Document.WriteFile].  A resource dictionary stored in a page tree node is
// thus shared by all pages below that node, and a change made via one page
// is seen by all of them.
package document

import (
	"errors"
	"fmt"

	"seehuhn.de/go/pdf"
)

var (
	// ErrNoPages is returned if a file has no page tree.
	ErrNoPages = errors.New("no pages")

	// ErrCycle indicates a page tree, or a chain of references, which leads
	// back to its own start.
	ErrCycle = errors.New("cycle in object graph")
)

// Document is a PDF file opened for modification.
type Document struct {
	// Pages lists the pages of the document, in order.
	Pages []*Page

	r       *pdf.Reader
	objects map[pdf.Reference]pdf.Object
}

// Open opens the PDF file with the given name and reads the page tree.
// The caller must call Close when the document is no longer needed.
func Open(fname string) (*Document, error) {
	r, err := pdf.Open(fname, nil)
	if err != nil {
		return nil, err
	}

	d := &Document{
		r:       r,
		objects: make(map[pdf.Reference]pdf.Object),
	}
	err = d.readPageTree()
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	return d, nil
}

// Close closes the underlying file.
func (d *Document) Close() error {
	return d.r.Close()
}

// Version returns the PDF version of the file.
func (d *Document) Version() pdf.Version {
	return d.r.GetMeta().Version
}

// Dict resolves obj to a dictionary held by the document.
//
// If obj is a reference, the first call reads the dictionary from the file
// and later calls return the same map.  A direct dictionary is returned
// unchanged.  If obj is null, Dict returns nil without error.
func (d *Document) Dict(obj pdf.Object) (pdf.Dict, error) {
	ref, isRef := obj.(pdf.Reference)
	if !isRef {
		return pdf.GetDict(d.r, obj)
	}

	if held, ok := d.objects[ref]; ok {
		dict, ok := held.(pdf.Dict)
		if !ok {
			return nil, fmt.Errorf("object %v: expected dictionary, got %T", ref, held)
		}
		return dict, nil
	}

	dict, err := pdf.GetDict(d.r, ref)
	if err != nil {
		return nil, err
	}
	if dict != nil {
		d.objects[ref] = dict
	}
	return dict, nil
}

// SubDict returns the dictionary stored under key in parent.  If there is
// no such dictionary, an empty one is created and stored in parent.
func (d *Document) SubDict(parent pdf.Dict, key pdf.Name) (pdf.Dict, error) {
	sub, err := d.Dict(parent[key])
	if err != nil {
		return nil, fmt.Errorf("/%s: %w", key, err)
	}
	if sub == nil {
		sub = pdf.Dict{}
		parent[key] = sub
	}
	return sub, nil
}

// get returns the object for ref, taking changes into account.
func (d *Document) get(ref pdf.Reference) (pdf.Object, error) {
	if obj, ok := d.objects[ref]; ok {
		return obj, nil
	}
	obj, err := pdf.Resolve(d.r, ref)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (d *Document) readPageTree() error {
	root := d.r.GetMeta().Catalog.Pages
	if root == 0 {
		return ErrNoPages
	}
	return d.walk(root, nil, make(map[pdf.Reference]bool))
}

func (d *Document) walk(ref pdf.Reference, parent *node, seen map[pdf.Reference]bool) error {
	if seen[ref] {
		return fmt.Errorf("page tree node %v: %w", ref, ErrCycle)
	}
	seen[ref] = true

	dict, err := d.Dict(ref)
	if err != nil {
		return fmt.Errorf("page tree node %v: %w", ref, err)
	} else if dict == nil {
		return nil
	}

	tp, _ := pdf.GetName(d.r, dict["Type"])
	kidsObj, hasKids := dict["Kids"]
	if tp == "Page" || (tp != "Pages" && !hasKids) {
		d.Pages = append(d.Pages, &Page{
			Ref:    ref,
			Dict:   dict,
			parent: parent,
			doc:    d,
		})
		return nil
	}

	kids, err := pdf.GetArray(d.r, kidsObj)
	if err != nil {
		return fmt.Errorf("page tree node %v: %w", ref, err)
	}
	n := &node{ref: ref, dict: dict, parent: parent}
	for _, kid := range kids {
		kidRef, ok := kid.(pdf.Reference)
		if !ok {
			if kid == nil {
				continue
			}
			return fmt.Errorf("page tree node %v: invalid kid %v", ref, kid)
		}
		err := d.walk(kidRef, n, seen)
		if err != nil {
			return err
		}
	}
	return nil
}

// node is an intermediate node of the page tree.
type node struct {
	ref    pdf.Reference
	dict   pdf.Dict
	parent *node
}
