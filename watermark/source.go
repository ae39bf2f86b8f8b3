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

package watermark

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"math"

	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/pdf"

	"seehuhn.de/go/pdf-watermark/document"
)

// letter is the page size used if the watermark page has no media box.
var letter = pdf.Rectangle{URx: 612, URy: 792}

// A Source is a watermark, ready to be placed on pages.
//
// The Source holds a form XObject with the appearance of the first page of
// the watermark file.  All data is held in memory; a Source is not modified
// after it has been created and can be used for any number of documents,
// also concurrently.
type Source struct {
	// Path is the name of the file the watermark was read from.
	Path string

	// BBox is the visible area of the watermark page.
	BBox pdf.Rectangle

	// Rotate is the clockwise rotation of the watermark page, in degrees.
	Rotate int

	form *pdf.Stream
}

// Load reads the first page of a PDF file as a watermark.
func Load(fname string) (*Source, error) {
	doc, err := document.Open(fname)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("%s: %w", fname, document.ErrNoPages)
	}
	src, err := FromPage(doc.Pages[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	src.Path = fname
	return src, nil
}

// FromPage converts a page into a watermark.
//
// The bounding box of the watermark is the crop box of the page, or the
// media box if no crop box is set.  The page resources and content are
// copied into memory, so the page's document can be closed afterwards.
func FromPage(page *document.Page) (*Source, error) {
	bbox, err := page.Box("CropBox")
	if err != nil {
		return nil, err
	}
	if bbox == nil {
		bbox, err = page.Box("MediaBox")
		if err != nil {
			return nil, err
		}
	}
	if bbox == nil {
		bbox = &letter
	}

	rotate, err := page.Rotation()
	if err != nil {
		return nil, err
	}

	resObj, _ := page.Inherited("Resources")
	res, err := page.Doc().Detach(resObj)
	if err != nil {
		return nil, fmt.Errorf("resources: %w", err)
	}
	if res == nil {
		res = pdf.Dict{}
	}

	content, err := page.ReadContent()
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	zw := zlib.NewWriter(buf)
	_, err = zw.Write(content)
	if err != nil {
		return nil, err
	}
	err = zw.Close()
	if err != nil {
		return nil, err
	}

	dict := pdf.Dict{
		"Type":      pdf.Name("XObject"),
		"Subtype":   pdf.Name("Form"),
		"FormType":  pdf.Integer(1),
		"BBox":      rectArray(bbox),
		"Resources": res,
		"Filter":    pdf.Name("FlateDecode"),
	}
	if rotate != 0 {
		dict["Matrix"] = matrixArray(formMatrix(bbox, rotate))
	}

	src := &Source{
		BBox:   *bbox,
		Rotate: rotate,
		form:   document.NewStream(dict, buf.Bytes()),
	}
	return src, nil
}

// Form returns the form XObject of the watermark.
func (s *Source) Form() *pdf.Stream {
	return s.form
}

// formMatrix returns the form matrix which shows the watermark in the
// orientation in which its page is displayed.  The rotated box is moved
// back to the lower left corner of the original box.
func formMatrix(box *pdf.Rectangle, rotate int) matrix.Matrix {
	var M matrix.Matrix
	switch rotate {
	case 90:
		M = matrix.Matrix{0, -1, 1, 0, 0, 0}
	case 180:
		M = matrix.Matrix{-1, 0, 0, -1, 0, 0}
	case 270:
		M = matrix.Matrix{0, 1, -1, 0, 0, 0}
	default:
		return matrix.Identity
	}

	xMin := math.Inf(+1)
	yMin := math.Inf(+1)
	corners := [][2]float64{
		{box.LLx, box.LLy},
		{box.LLx, box.URy},
		{box.URx, box.LLy},
		{box.URx, box.URy},
	}
	for _, c := range corners {
		x := M[0]*c[0] + M[2]*c[1] + M[4]
		y := M[1]*c[0] + M[3]*c[1] + M[5]
		xMin = min(xMin, x)
		yMin = min(yMin, y)
	}
	return M.Mul(matrix.Translate(box.LLx-xMin, box.LLy-yMin))
}

func rectArray(r *pdf.Rectangle) pdf.Array {
	return pdf.Array{
		pdf.Number(r.LLx), pdf.Number(r.LLy),
		pdf.Number(r.URx), pdf.Number(r.URy),
	}
}

func matrixArray(M matrix.Matrix) pdf.Array {
	res := make(pdf.Array, len(M))
	for i, x := range M {
		res[i] = pdf.Number(x)
	}
	return res
}
