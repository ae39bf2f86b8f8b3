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

// Package watermark draws the first page of one PDF file on top of the pages
// of other PDF files.
//
// The watermark is stored as a form XObject in the resources of each page,
// under a name of the form "Watermark.N".  The existing page content is
// enclosed in q/Q, and the XObject is drawn afterwards.  This way the
// watermark is unaffected by changes to the graphics state made by the
// page content, and it appears on top of the page content.
//
// Watermarking a page more than once is allowed: every call uses a new name,
// and the watermarks are stacked.
package watermark

import (
	"fmt"
	"strconv"

	"seehuhn.de/go/pdf"

	"seehuhn.de/go/pdf-watermark/document"
)

// NamePrefix is the prefix of the resource names used for watermarks.
const NamePrefix = "Watermark."

// Apply adds the watermark src to the page and returns the resource name
// under which the watermark is stored.
//
// If the page inherits its resource dictionary, the inherited dictionary
// is modified, and thus all pages sharing the dictionary see the new
// XObject.
func Apply(page *document.Page, src *Source) (pdf.Name, error) {
	res, err := page.Resources()
	if err != nil {
		return "", err
	}
	xObjects, err := page.Doc().SubDict(res, "XObject")
	if err != nil {
		return "", fmt.Errorf("page %v: resources: %w", page.Ref, err)
	}

	name := FreeName(xObjects)
	xObjects[name] = src.form

	contents, err := page.ContentArray()
	if err != nil {
		return "", err
	}
	pre := document.NewStream(nil, []byte("q\n"))
	post := document.NewStream(nil, []byte("Q /"+string(name)+" Do\n"))

	wrapped := make(pdf.Array, 0, len(contents)+2)
	wrapped = append(wrapped, pre)
	wrapped = append(wrapped, contents...)
	wrapped = append(wrapped, post)
	page.SetContents(wrapped)

	return name, nil
}

// ApplyAll adds the watermark src to every page of doc.  The return value
// is the number of pages.
func ApplyAll(doc *document.Document, src *Source) (int, error) {
	for i, page := range doc.Pages {
		_, err := Apply(page, src)
		if err != nil {
			return 0, fmt.Errorf("page %d: %w", i+1, err)
		}
	}
	return len(doc.Pages), nil
}

// FreeName returns the name "Watermark.N", where N is the smallest
// non-negative integer for which the name is not yet used in xObjects.
func FreeName(xObjects pdf.Dict) pdf.Name {
	for i := 0; ; i++ {
		name := pdf.Name(NamePrefix + strconv.Itoa(i))
		if _, used := xObjects[name]; !used {
			return name
		}
	}
}
