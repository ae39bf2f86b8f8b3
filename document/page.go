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

package document

import (
	"fmt"
	"io"
	"math"

	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/pagetree"
)

// Page is a page of a [Document].
type Page struct {
	// Ref is the reference of the page dictionary in the original file.
	Ref pdf.Reference

	// Dict is the page dictionary.  Changes to Dict are included when the
	// document is written.
	Dict pdf.Dict

	parent *node
	doc    *Document
}

// Doc returns the document the page belongs to.
func (p *Page) Doc() *Document {
	return p.doc
}

// Inherited returns the value of the page attribute key.  If the page
// dictionary has no such entry, the ancestors of the page in the page tree
// are searched.  The second return value is the dictionary in which the
// value was found.  If no value is found, both return values are nil.
func (p *Page) Inherited(key pdf.Name) (pdf.Object, pdf.Dict) {
	if val := p.Dict[key]; val != nil {
		return val, p.Dict
	}
	for n := p.parent; n != nil; n = n.parent {
		if val := n.dict[key]; val != nil {
			return val, n.dict
		}
	}
	return nil, nil
}

// Resources returns the resource dictionary of the page.
//
// If the page has no resource dictionary of its own, the dictionary
// inherited from the page tree is returned.  This dictionary is shared with
// all other pages inheriting it.  If no resource dictionary is found, an
// empty one is created and stored in the page dictionary.
func (p *Page) Resources() (pdf.Dict, error) {
	obj, _ := p.Inherited("Resources")
	res, err := p.doc.Dict(obj)
	if err != nil {
		return nil, fmt.Errorf("page %v: resources: %w", p.Ref, err)
	}
	if res == nil {
		res = pdf.Dict{}
		p.Dict["Resources"] = res
	}
	return res, nil
}

// ContentArray returns the content streams of the page.
//
// The /Contents entry of the page dictionary is replaced by a direct array
// holding the same streams: a single stream is wrapped into a one-element
// array, an indirect array is replaced by a copy, and a missing entry
// becomes an empty array.  Null entries are dropped.
func (p *Page) ContentArray() (pdf.Array, error) {
	obj := p.Dict["Contents"]

	var elems pdf.Array
	switch x := obj.(type) {
	case nil:
		// no content
	case pdf.Array:
		elems = x
	case pdf.Reference:
		val, err := p.doc.get(x)
		if err != nil {
			return nil, fmt.Errorf("page %v: contents: %w", p.Ref, err)
		}
		switch val := val.(type) {
		case pdf.Array:
			elems = val
		case nil:
			// dangling reference
		default:
			elems = pdf.Array{x}
		}
	default:
		elems = pdf.Array{x}
	}

	res := make(pdf.Array, 0, len(elems)+2)
	for _, elem := range elems {
		if elem != nil {
			res = append(res, elem)
		}
	}
	p.Dict["Contents"] = res
	return res, nil
}

// SetContents replaces the content streams of the page.
func (p *Page) SetContents(contents pdf.Array) {
	p.Dict["Contents"] = contents
}

// ReadContent returns the decoded content of the page.  If the page has
// more than one content stream, the streams are joined by newlines.
func (p *Page) ReadContent() ([]byte, error) {
	r, err := pagetree.ContentStream(p.doc.r, p.Dict)
	if err != nil {
		return nil, fmt.Errorf("page %v: %w", p.Ref, err)
	}
	return io.ReadAll(r)
}

// Box returns the page boundary rectangle stored under key (for example
// /MediaBox or /CropBox), taking inheritance into account.  If the page has
// no such box, nil is returned.
func (p *Page) Box(key pdf.Name) (*pdf.Rectangle, error) {
	obj, _ := p.Inherited(key)
	if obj == nil {
		return nil, nil
	}
	rect, err := pdf.GetRectangle(p.doc.r, obj)
	if err != nil {
		return nil, fmt.Errorf("page %v: /%s: %w", p.Ref, key, err)
	}
	return rect, nil
}

// Rotation returns the clockwise rotation of the page in degrees, as one of
// 0, 90, 180 or 270.
func (p *Page) Rotation() (int, error) {
	obj, _ := p.Inherited("Rotate")
	val, err := pdf.Resolve(p.doc.r, obj)
	if err != nil {
		return 0, fmt.Errorf("page %v: /Rotate: %w", p.Ref, err)
	}

	var deg int
	switch x := val.(type) {
	case pdf.Integer:
		deg = int(x)
	case pdf.Real:
		deg = int(math.Round(float64(x)))
	}
	deg = (deg/90*90%360 + 360) % 360
	return deg, nil
}
