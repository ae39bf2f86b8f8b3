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
	"bytes"
	"fmt"
	"reflect"
	"unsafe"

	"seehuhn.de/go/pdf"
)

// WriteFile writes the document, including all changes, to a new PDF file.
//
// The page tree is written with all modifications.  The remaining parts of
// the document catalog (outlines, name trees, and so on), the document
// information dictionary and the file identifier are copied from the
// original file.
func (d *Document) WriteFile(fname string) error {
	meta := d.r.GetMeta()

	// form XObjects require PDF 1.2
	v := meta.Version
	if v < pdf.V1_2 {
		v = pdf.V1_2
	}

	w, err := pdf.Create(fname, v, nil)
	if err != nil {
		return err
	}

	err = d.copyTo(w)
	if err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (d *Document) copyTo(w *pdf.Writer) error {
	meta := d.r.GetMeta()

	c := &copier{
		w:       w,
		d:       d,
		trans:   make(map[pdf.Reference]pdf.Reference),
		streams: make(map[*pdf.Stream]pdf.Reference),
		active:  make(map[unsafe.Pointer]bool),
		shared:  make(map[unsafe.Pointer]pdf.Reference),
	}
	pages, err := c.copyReference(meta.Catalog.Pages)
	if err != nil {
		return fmt.Errorf("page tree: %w", err)
	}

	// Everything reachable from the page tree has been written by now.
	// Objects outside the page tree refer to pages (outlines, named
	// destinations) and to shared resources through the old references;
	// these are mapped to the objects just written.
	trans := pdf.NewCopier(w, d.r)
	for orig, repl := range c.trans {
		trans.Redirect(orig, repl)
	}

	catalog, err := pdf.CopierCopyStruct(trans, meta.Catalog)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	catalog.Pages = pages
	w.GetMeta().Catalog = catalog

	if meta.Info != nil {
		info, err := pdf.CopierCopyStruct(trans, meta.Info)
		if err != nil {
			return fmt.Errorf("document information: %w", err)
		}
		w.GetMeta().Info = info
	}
	w.GetMeta().ID = meta.ID

	return nil
}

// A copier copies the page tree of a document to a new file.  Objects
// changed in the document are taken from the document, all other objects
// are read from the original file.  Each object is copied only once.
type copier struct {
	w *pdf.Writer
	d *Document

	trans   map[pdf.Reference]pdf.Reference
	streams map[*pdf.Stream]pdf.Reference

	// active holds the direct dictionaries and arrays being copied.  If
	// one of these is reached again from inside itself, it is written as an
	// indirect object, and shared records the reference used.
	active map[unsafe.Pointer]bool
	shared map[unsafe.Pointer]pdf.Reference
}

func (c *copier) copy(obj pdf.Object) (pdf.Object, error) {
	switch x := obj.(type) {
	case pdf.Dict:
		if len(x) == 0 {
			return c.copyDict(x)
		}
		return c.copyDirect(reflect.ValueOf(x).UnsafePointer(), func() (pdf.Object, error) {
			return c.copyDict(x)
		})
	case pdf.Array:
		if len(x) == 0 {
			return c.copyArray(x)
		}
		return c.copyDirect(reflect.ValueOf(x).UnsafePointer(), func() (pdf.Object, error) {
			return c.copyArray(x)
		})
	case *pdf.Stream:
		// Streams found in direct position were added in memory.  They
		// become indirect objects in the output.
		return c.copyMemStream(x)
	case pdf.Reference:
		return c.copyReference(x)
	default:
		return obj, nil
	}
}

// copyDirect copies a direct dictionary or array, identified by key.
// Loops in the object graph are broken by turning the object into an
// indirect object.
func (c *copier) copyDirect(key unsafe.Pointer, copyObj func() (pdf.Object, error)) (pdf.Object, error) {
	if ref, ok := c.shared[key]; ok {
		return ref, nil
	}
	if c.active[key] {
		ref := c.w.Alloc()
		c.shared[key] = ref
		return ref, nil
	}

	c.active[key] = true
	res, err := copyObj()
	delete(c.active, key)
	if err != nil {
		return nil, err
	}

	ref, ok := c.shared[key]
	if !ok {
		return res, nil
	}
	err = c.w.Put(ref, res)
	if err != nil {
		return nil, err
	}
	return ref, nil
}

func (c *copier) copyDict(obj pdf.Dict) (pdf.Dict, error) {
	res := make(pdf.Dict, len(obj))
	for key, val := range obj {
		repl, err := c.copy(val)
		if err != nil {
			return nil, err
		}
		res[key] = repl
	}
	return res, nil
}

func (c *copier) copyArray(obj pdf.Array) (pdf.Array, error) {
	res := make(pdf.Array, len(obj))
	for i, val := range obj {
		if val == nil {
			continue
		}
		repl, err := c.copy(val)
		if err != nil {
			return nil, err
		}
		res[i] = repl
	}
	return res, nil
}

// copyReference copies an indirect object.  The returned reference always
// points to a direct object.
func (c *copier) copyReference(ref pdf.Reference) (pdf.Reference, error) {
	newRef, ok := c.trans[ref]
	if ok {
		return newRef, nil
	}
	newRef = c.w.Alloc()
	c.trans[ref] = newRef

	val, err := c.d.get(ref)
	if err != nil {
		return 0, err
	}

	var repl pdf.Object
	if stm, isStream := val.(*pdf.Stream); isStream {
		repl, err = c.stream(stm)
	} else {
		repl, err = c.copy(val)
	}
	if err != nil {
		return 0, err
	}

	err = c.w.Put(newRef, repl)
	if err != nil {
		return 0, err
	}
	return newRef, nil
}

func (c *copier) copyMemStream(stm *pdf.Stream) (pdf.Reference, error) {
	newRef, ok := c.streams[stm]
	if ok {
		return newRef, nil
	}
	newRef = c.w.Alloc()
	c.streams[stm] = newRef

	repl, err := c.stream(stm)
	if err != nil {
		return 0, err
	}
	err = c.w.Put(newRef, repl)
	if err != nil {
		return 0, err
	}
	return newRef, nil
}

func (c *copier) stream(stm *pdf.Stream) (*pdf.Stream, error) {
	dict, err := c.copyDict(stm.Dict)
	if err != nil {
		return nil, err
	}
	res := &pdf.Stream{
		Dict: dict,
		R:    stm.R,
	}
	if data, isMem := MemData(stm); isMem {
		dict["Length"] = pdf.Integer(len(data))
		res.R = bytes.NewReader(data)
	}
	return res, nil
}
