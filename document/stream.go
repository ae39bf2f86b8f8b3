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
	"io"

	"seehuhn.de/go/pdf"
)

// memData is the stream data of an in-memory stream.  Writers never read
// from the embedded reader but use a fresh reader over data, so that the
// same stream can be written any number of times.
type memData struct {
	*bytes.Reader
	data []byte
}

// NewStream returns a stream which keeps its data in memory.
//
// The stream can be placed anywhere in the object graph of a document, for
// example as an element of a /Contents array.  When the document is written,
// the stream is stored as an indirect object; a stream which is reachable
// in several places is stored only once.  The data must already be encoded
// as described by the /Filter entry of dict, if any.
func NewStream(dict pdf.Dict, data []byte) *pdf.Stream {
	if dict == nil {
		dict = pdf.Dict{}
	}
	return &pdf.Stream{
		Dict: dict,
		R:    newMemData(data),
	}
}

func newMemData(data []byte) *memData {
	return &memData{
		Reader: bytes.NewReader(data),
		data:   data,
	}
}

// MemData returns the data of a stream created by [NewStream] or
// [Document.Detach].  The second return value is false for streams which
// read their data from a file.
func MemData(stm *pdf.Stream) ([]byte, bool) {
	m, ok := stm.R.(*memData)
	if !ok {
		return nil, false
	}
	return m.data, true
}

// Detach returns a copy of obj which no longer depends on the file.
//
// References are replaced by the objects they point to and stream data is
// read into memory, so that the result remains valid after the document has
// been closed.  Objects reached through the same reference are shared in the
// result.  If the graph refers back to an object, the copy refers back to
// the copy of that object in the same way.  [Document.WriteFile] stores such
// objects as indirect objects.
func (d *Document) Detach(obj pdf.Object) (pdf.Object, error) {
	dt := &detacher{
		d:      d,
		done:   make(map[pdf.Reference]pdf.Object),
		active: make(map[pdf.Reference]bool),
	}
	return dt.detach(obj)
}

type detacher struct {
	d    *Document
	done map[pdf.Reference]pdf.Object

	// active holds references which are being resolved.  This is only used
	// to catch chains of references pointing to references.
	active map[pdf.Reference]bool
}

func (dt *detacher) detach(obj pdf.Object) (pdf.Object, error) {
	switch x := obj.(type) {
	case pdf.Reference:
		return dt.detachReference(x)

	case pdf.Dict:
		res := make(pdf.Dict, len(x))
		err := dt.fillDict(res, x)
		if err != nil {
			return nil, err
		}
		return res, nil

	case pdf.Array:
		res := make(pdf.Array, len(x))
		err := dt.fillArray(res, x)
		if err != nil {
			return nil, err
		}
		return res, nil

	case *pdf.Stream:
		res := &pdf.Stream{}
		err := dt.fillStream(res, x)
		if err != nil {
			return nil, err
		}
		return res, nil

	default:
		return obj, nil
	}
}

// detachReference copies the object ref points to.  Dictionaries, arrays
// and streams are registered before their contents are copied, so that
// references back to them resolve to the copy.
func (dt *detacher) detachReference(ref pdf.Reference) (pdf.Object, error) {
	if res, ok := dt.done[ref]; ok {
		return res, nil
	}
	if dt.active[ref] {
		return nil, fmt.Errorf("object %v: %w", ref, ErrCycle)
	}
	dt.active[ref] = true
	defer delete(dt.active, ref)

	val, err := dt.d.get(ref)
	if err != nil {
		return nil, err
	}

	switch x := val.(type) {
	case pdf.Dict:
		res := make(pdf.Dict, len(x))
		dt.done[ref] = res
		err = dt.fillDict(res, x)
		return res, err

	case pdf.Array:
		res := make(pdf.Array, len(x))
		dt.done[ref] = res
		err = dt.fillArray(res, x)
		return res, err

	case *pdf.Stream:
		res := &pdf.Stream{}
		dt.done[ref] = res
		err = dt.fillStream(res, x)
		return res, err

	default:
		res, err := dt.detach(val)
		if err != nil {
			return nil, err
		}
		dt.done[ref] = res
		return res, nil
	}
}

func (dt *detacher) fillDict(res, dict pdf.Dict) error {
	for key, val := range dict {
		repl, err := dt.detach(val)
		if err != nil {
			return err
		}
		if repl != nil {
			res[key] = repl
		}
	}
	return nil
}

func (dt *detacher) fillArray(res, arr pdf.Array) error {
	for i, elem := range arr {
		repl, err := dt.detach(elem)
		if err != nil {
			return err
		}
		res[i] = repl
	}
	return nil
}

func (dt *detacher) fillStream(res, stm *pdf.Stream) error {
	dict := make(pdf.Dict, len(stm.Dict))
	res.Dict = dict
	err := dt.fillDict(dict, stm.Dict)
	if err != nil {
		return err
	}
	delete(dict, "Length")

	data, ok := MemData(stm)
	if !ok {
		data, err = io.ReadAll(stm.R)
		if err != nil {
			return err
		}
	}
	res.R = newMemData(data)
	return nil
}
