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

// Package testpdf writes small PDF files for use in tests.
package testpdf

import (
	"os"
	"testing"

	"seehuhn.de/go/pdf"
)

// Page describes one page of a test file.
type Page struct {
	// Content is the content stream of the page.  If Content is empty, the
	// page has no /Contents entry.
	Content string

	// Resources, if non-nil, is stored as the resource dictionary of the
	// page.
	Resources pdf.Dict

	// Rotate is stored as /Rotate, if non-zero.
	Rotate int
}

// File describes a test file.
type File struct {
	Pages []Page

	// MediaBox is stored in the root node of the page tree.
	// If MediaBox is nil, A4 paper is used.
	MediaBox *pdf.Rectangle

	// CropBox, if non-nil, is stored in the root node of the page tree.
	CropBox *pdf.Rectangle

	// Resources, if non-nil, is stored in the root node of the page tree,
	// to be inherited by all pages.
	Resources pdf.Dict

	// Fanout, if larger than one, is the maximal number of pages in each
	// intermediate page tree node.  Otherwise all pages are direct
	// children of the root node.
	Fanout int
}

// Write writes a PDF file with the given pages.
func Write(t testing.TB, fname string, f *File) {
	t.Helper()

	w, err := pdf.Create(fname, pdf.V1_7, nil)
	if err != nil {
		t.Fatal(err)
	}

	root := w.Alloc()
	parent := root
	var nodes []pdf.Reference
	var nodeKids []pdf.Array
	var kids pdf.Array
	for i, p := range f.Pages {
		if f.Fanout > 1 && i%f.Fanout == 0 {
			parent = w.Alloc()
			nodes = append(nodes, parent)
			nodeKids = append(nodeKids, nil)
		}

		dict := pdf.Dict{
			"Type":   pdf.Name("Page"),
			"Parent": parent,
		}
		if p.Content != "" {
			ref := w.Alloc()
			stm, err := w.OpenStream(ref, nil)
			if err != nil {
				t.Fatal(err)
			}
			_, err = stm.Write([]byte(p.Content))
			if err != nil {
				t.Fatal(err)
			}
			err = stm.Close()
			if err != nil {
				t.Fatal(err)
			}
			dict["Contents"] = ref
		}
		if p.Resources != nil {
			dict["Resources"] = p.Resources
		}
		if p.Rotate != 0 {
			dict["Rotate"] = pdf.Integer(p.Rotate)
		}

		ref := w.Alloc()
		err = w.Put(ref, dict)
		if err != nil {
			t.Fatal(err)
		}
		if len(nodes) > 0 {
			nodeKids[len(nodes)-1] = append(nodeKids[len(nodes)-1], ref)
		} else {
			kids = append(kids, ref)
		}
	}

	for i, node := range nodes {
		err = w.Put(node, pdf.Dict{
			"Type":   pdf.Name("Pages"),
			"Parent": root,
			"Kids":   nodeKids[i],
			"Count":  pdf.Integer(len(nodeKids[i])),
		})
		if err != nil {
			t.Fatal(err)
		}
		kids = append(kids, node)
	}

	mediaBox := f.MediaBox
	if mediaBox == nil {
		mediaBox = &pdf.Rectangle{URx: 595.276, URy: 841.89}
	}
	rootDict := pdf.Dict{
		"Type":     pdf.Name("Pages"),
		"Kids":     kids,
		"Count":    pdf.Integer(len(f.Pages)),
		"MediaBox": rect(mediaBox),
	}
	if f.CropBox != nil {
		rootDict["CropBox"] = rect(f.CropBox)
	}
	if f.Resources != nil {
		rootDict["Resources"] = f.Resources
	}
	err = w.Put(root, rootDict)
	if err != nil {
		t.Fatal(err)
	}

	w.GetMeta().Catalog.Pages = root
	err = w.Close()
	if err != nil {
		t.Fatal(err)
	}
}

// WriteCorrupt writes a file which cannot be read as a PDF file.
func WriteCorrupt(t testing.TB, fname string) {
	t.Helper()

	err := os.WriteFile(fname, []byte("this is not a PDF file\n"), 0o644)
	if err != nil {
		t.Fatal(err)
	}
}

func rect(r *pdf.Rectangle) pdf.Array {
	return pdf.Array{
		pdf.Number(r.LLx), pdf.Number(r.LLy),
		pdf.Number(r.URx), pdf.Number(r.URy),
	}
}
