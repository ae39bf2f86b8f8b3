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
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/pagetree"

	"seehuhn.de/go/pdf-watermark/internal/testpdf"
)

func openTestFile(t *testing.T, f *testpdf.File) *Document {
	t.Helper()

	fname := filepath.Join(t.TempDir(), "in.pdf")
	testpdf.Write(t, fname, f)
	doc, err := Open(fname)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { doc.Close() })
	return doc
}

func TestPageOrder(t *testing.T) {
	for _, fanout := range []int{0, 2, 3} {
		f := &testpdf.File{Fanout: fanout}
		var expected []string
		for _, c := range []string{"1 w", "2 w", "3 w", "4 w", "5 w"} {
			f.Pages = append(f.Pages, testpdf.Page{Content: c})
			expected = append(expected, c)
		}
		doc := openTestFile(t, f)

		var got []string
		for _, p := range doc.Pages {
			body, err := p.ReadContent()
			if err != nil {
				t.Fatal(err)
			}
			got = append(got, string(body))
		}
		if d := cmp.Diff(expected, got); d != "" {
			t.Errorf("fanout %d: page order (-want +got):\n%s", fanout, d)
		}
	}
}

func TestSharedResources(t *testing.T) {
	doc := openTestFile(t, &testpdf.File{
		Pages:     []testpdf.Page{{Content: "A"}, {Content: "B"}, {Content: "C"}},
		Resources: pdf.Dict{"ProcSet": pdf.Array{pdf.Name("PDF")}},
		Fanout:    2,
	})

	res0, err := doc.Pages[0].Resources()
	if err != nil {
		t.Fatal(err)
	}
	res0["Test"] = pdf.Integer(1)

	for i, p := range doc.Pages {
		res, err := p.Resources()
		if err != nil {
			t.Fatal(err)
		}
		if res["Test"] != pdf.Integer(1) {
			t.Errorf("page %d does not share the inherited resources", i)
		}
		if _, own := p.Dict["Resources"]; own {
			t.Errorf("page %d: unexpected local resource dictionary", i)
		}
	}
}

func TestSharedIndirectResources(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "in.pdf")
	w, err := pdf.Create(fname, pdf.V1_7, nil)
	if err != nil {
		t.Fatal(err)
	}
	root := w.Alloc()
	resRef := w.Alloc()
	p1 := w.Alloc()
	p2 := w.Alloc()
	for _, ref := range []pdf.Reference{p1, p2} {
		err = w.Put(ref, pdf.Dict{
			"Type":      pdf.Name("Page"),
			"Parent":    root,
			"Resources": resRef,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	err = w.Put(resRef, pdf.Dict{})
	if err != nil {
		t.Fatal(err)
	}
	err = w.Put(root, pdf.Dict{
		"Type":     pdf.Name("Pages"),
		"Kids":     pdf.Array{p1, p2},
		"Count":    pdf.Integer(2),
		"MediaBox": pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(100), pdf.Integer(100)},
	})
	if err != nil {
		t.Fatal(err)
	}
	w.GetMeta().Catalog.Pages = root
	err = w.Close()
	if err != nil {
		t.Fatal(err)
	}

	doc, err := Open(fname)
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Close()

	res1, err := doc.Pages[0].Resources()
	if err != nil {
		t.Fatal(err)
	}
	res1["Test"] = pdf.Name("X")
	res2, err := doc.Pages[1].Resources()
	if err != nil {
		t.Fatal(err)
	}
	if res2["Test"] != pdf.Name("X") {
		t.Error("resource dictionary reached through the same reference is not shared")
	}
}

func TestCreateResources(t *testing.T) {
	doc := openTestFile(t, &testpdf.File{
		Pages: []testpdf.Page{{Content: "A"}},
	})

	p := doc.Pages[0]
	res, err := p.Resources()
	if err != nil {
		t.Fatal(err)
	}
	if res == nil {
		t.Fatal("no resource dictionary")
	}
	res["Test"] = pdf.Integer(7)
	local, ok := p.Dict["Resources"].(pdf.Dict)
	if !ok || local["Test"] != pdf.Integer(7) {
		t.Errorf("new resource dictionary not stored in page: %v", p.Dict["Resources"])
	}
}

func TestSubDict(t *testing.T) {
	doc := openTestFile(t, &testpdf.File{
		Pages: []testpdf.Page{{
			Resources: pdf.Dict{"XObject": pdf.Dict{"A": pdf.Integer(1)}},
		}},
	})

	res, err := doc.Pages[0].Resources()
	if err != nil {
		t.Fatal(err)
	}

	existing, err := doc.SubDict(res, "XObject")
	if err != nil {
		t.Fatal(err)
	}
	if existing["A"] != pdf.Integer(1) {
		t.Errorf("wrong XObject dictionary: %v", existing)
	}

	created, err := doc.SubDict(res, "Font")
	if err != nil {
		t.Fatal(err)
	}
	created["F1"] = pdf.Integer(2)
	again, err := doc.SubDict(res, "Font")
	if err != nil {
		t.Fatal(err)
	}
	if again["F1"] != pdf.Integer(2) {
		t.Error("created dictionary not stored in parent")
	}
}

func TestContentArray(t *testing.T) {
	doc := openTestFile(t, &testpdf.File{
		Pages: []testpdf.Page{{Content: "0 0 m"}, {}},
	})

	a, err := doc.Pages[0].ContentArray()
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 1 {
		t.Fatalf("expected one content stream, got %d", len(a))
	}
	if _, isRef := a[0].(pdf.Reference); !isRef {
		t.Errorf("expected a reference, got %T", a[0])
	}
	if _, isArray := doc.Pages[0].Dict["Contents"].(pdf.Array); !isArray {
		t.Error("/Contents not replaced by an array")
	}

	a, err = doc.Pages[1].ContentArray()
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 0 {
		t.Errorf("expected no content streams, got %d", len(a))
	}
}

func TestRotation(t *testing.T) {
	doc := openTestFile(t, &testpdf.File{
		Pages: []testpdf.Page{
			{},
			{Rotate: 90},
			{Rotate: -90},
			{Rotate: 540},
		},
	})

	expected := []int{0, 90, 270, 180}
	for i, p := range doc.Pages {
		rot, err := p.Rotation()
		if err != nil {
			t.Fatal(err)
		}
		if rot != expected[i] {
			t.Errorf("page %d: expected rotation %d, got %d", i, expected[i], rot)
		}
	}
}

func TestBox(t *testing.T) {
	doc := openTestFile(t, &testpdf.File{
		Pages:    []testpdf.Page{{}},
		MediaBox: &pdf.Rectangle{URx: 200, URy: 100},
	})

	p := doc.Pages[0]
	mediaBox, err := p.Box("MediaBox")
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(&pdf.Rectangle{URx: 200, URy: 100}, mediaBox); d != "" {
		t.Errorf("inherited media box (-want +got):\n%s", d)
	}
	cropBox, err := p.Box("CropBox")
	if err != nil {
		t.Fatal(err)
	}
	if cropBox != nil {
		t.Errorf("unexpected crop box %v", cropBox)
	}
}

func TestDetach(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "in.pdf")
	w, err := pdf.Create(fname, pdf.V1_7, nil)
	if err != nil {
		t.Fatal(err)
	}
	formRef := w.Alloc()
	stm, err := w.OpenStream(formRef, pdf.Dict{
		"Type":    pdf.Name("XObject"),
		"Subtype": pdf.Name("Form"),
		"BBox":    pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(10), pdf.Integer(10)},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = stm.Write([]byte("0 0 10 10 re f"))
	if err != nil {
		t.Fatal(err)
	}
	err = stm.Close()
	if err != nil {
		t.Fatal(err)
	}
	root := w.Alloc()
	page := w.Alloc()
	err = w.Put(page, pdf.Dict{
		"Type":   pdf.Name("Page"),
		"Parent": root,
		"Resources": pdf.Dict{
			"XObject": pdf.Dict{"F1": formRef, "F2": formRef},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	err = w.Put(root, pdf.Dict{
		"Type":     pdf.Name("Pages"),
		"Kids":     pdf.Array{page},
		"Count":    pdf.Integer(1),
		"MediaBox": pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(10), pdf.Integer(10)},
	})
	if err != nil {
		t.Fatal(err)
	}
	w.GetMeta().Catalog.Pages = root
	err = w.Close()
	if err != nil {
		t.Fatal(err)
	}

	doc, err := Open(fname)
	if err != nil {
		t.Fatal(err)
	}
	resObj, _ := doc.Pages[0].Inherited("Resources")
	detached, err := doc.Detach(resObj)
	if err != nil {
		t.Fatal(err)
	}
	err = doc.Close()
	if err != nil {
		t.Fatal(err)
	}

	xObjects := detached.(pdf.Dict)["XObject"].(pdf.Dict)
	f1, ok := xObjects["F1"].(*pdf.Stream)
	if !ok {
		t.Fatalf("expected a stream, got %T", xObjects["F1"])
	}
	if f1 != xObjects["F2"] {
		t.Error("object reached twice through one reference was duplicated")
	}
	data, ok := MemData(f1)
	if !ok {
		t.Fatal("detached stream is not held in memory")
	}
	if string(data) != "0 0 10 10 re f" {
		t.Errorf("wrong stream data %q", data)
	}
	if f1.Dict["Subtype"] != pdf.Name("Form") {
		t.Errorf("wrong stream dictionary %v", f1.Dict)
	}
}

// writeLoopFile writes a file where the resources of the only page refer
// back to themselves, via a second dictionary.  The reference of the
// resource dictionary is returned.
func writeLoopFile(t *testing.T, fname string) pdf.Reference {
	t.Helper()

	w, err := pdf.Create(fname, pdf.V1_7, nil)
	if err != nil {
		t.Fatal(err)
	}
	a := w.Alloc()
	b := w.Alloc()
	root := w.Alloc()
	page := w.Alloc()
	err = w.Put(a, pdf.Dict{"Next": b})
	if err != nil {
		t.Fatal(err)
	}
	err = w.Put(b, pdf.Dict{"Next": a})
	if err != nil {
		t.Fatal(err)
	}
	err = w.Put(page, pdf.Dict{"Type": pdf.Name("Page"), "Parent": root, "Resources": a})
	if err != nil {
		t.Fatal(err)
	}
	err = w.Put(root, pdf.Dict{
		"Type":     pdf.Name("Pages"),
		"Kids":     pdf.Array{page},
		"Count":    pdf.Integer(1),
		"MediaBox": pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Integer(100), pdf.Integer(100)},
	})
	if err != nil {
		t.Fatal(err)
	}
	w.GetMeta().Catalog.Pages = root
	err = w.Close()
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func sameMap(a, b pdf.Dict) bool {
	return reflect.ValueOf(a).UnsafePointer() == reflect.ValueOf(b).UnsafePointer()
}

func TestDetachLoop(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "in.pdf")
	a := writeLoopFile(t, fname)

	doc, err := Open(fname)
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Close()

	obj, err := doc.Detach(a)
	if err != nil {
		t.Fatal(err)
	}
	res, ok := obj.(pdf.Dict)
	if !ok {
		t.Fatalf("expected a dictionary, got %T", obj)
	}
	next, ok := res["Next"].(pdf.Dict)
	if !ok {
		t.Fatalf("Next: expected a dictionary, got %T", res["Next"])
	}
	back, ok := next["Next"].(pdf.Dict)
	if !ok {
		t.Fatalf("Next.Next: expected a dictionary, got %T", next["Next"])
	}
	if !sameMap(res, back) {
		t.Error("loop is not preserved in the copy")
	}
}

func TestWriteLoop(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "in.pdf")
	a := writeLoopFile(t, fname)

	doc, err := Open(fname)
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Close()
	obj, err := doc.Detach(a)
	if err != nil {
		t.Fatal(err)
	}
	doc.Pages[0].Dict["Extra"] = obj

	out := filepath.Join(dir, "out.pdf")
	err = doc.WriteFile(out)
	if err != nil {
		t.Fatal(err)
	}

	check, err := Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer check.Close()

	extraRef, ok := check.Pages[0].Dict["Extra"].(pdf.Reference)
	if !ok {
		t.Fatalf("loop not written as indirect object: %v", check.Pages[0].Dict["Extra"])
	}
	extra, err := check.Dict(extraRef)
	if err != nil {
		t.Fatal(err)
	}
	next, err := check.Dict(extra["Next"])
	if err != nil {
		t.Fatal(err)
	}
	if next["Next"] != extraRef {
		t.Errorf("expected Next.Next = %v, got %v", extraRef, next["Next"])
	}
}

func TestPageTreeCycle(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "in.pdf")
	w, err := pdf.Create(fname, pdf.V1_7, nil)
	if err != nil {
		t.Fatal(err)
	}
	root := w.Alloc()
	page := w.Alloc()
	err = w.Put(page, pdf.Dict{"Type": pdf.Name("Page"), "Parent": root})
	if err != nil {
		t.Fatal(err)
	}
	err = w.Put(root, pdf.Dict{
		"Type":  pdf.Name("Pages"),
		"Kids":  pdf.Array{page, root},
		"Count": pdf.Integer(1),
	})
	if err != nil {
		t.Fatal(err)
	}
	w.GetMeta().Catalog.Pages = root
	err = w.Close()
	if err != nil {
		t.Fatal(err)
	}

	doc, err := Open(fname)
	if !errors.Is(err, ErrCycle) {
		if doc != nil {
			doc.Close()
		}
		t.Errorf("expected ErrCycle, got %v", err)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	doc := openTestFile(t, &testpdf.File{
		Pages:     []testpdf.Page{{Content: "A"}, {Content: "B"}, {}},
		Resources: pdf.Dict{},
		Fanout:    2,
	})

	// add the same in-memory stream to every page
	extra := NewStream(nil, []byte("% extra"))
	for _, p := range doc.Pages {
		contents, err := p.ContentArray()
		if err != nil {
			t.Fatal(err)
		}
		p.SetContents(append(contents, extra))
	}
	res, err := doc.Pages[0].Resources()
	if err != nil {
		t.Fatal(err)
	}
	res["Test"] = pdf.Integer(42)

	out := filepath.Join(dir, "out.pdf")
	err = doc.WriteFile(out)
	if err != nil {
		t.Fatal(err)
	}

	r, err := pdf.Open(out, nil)
	if err != nil {
		t.Fatal(err)
	}
	numPages, err := pagetree.NumPages(r)
	r.Close()
	if err != nil {
		t.Fatal(err)
	}
	if numPages != 3 {
		t.Errorf("expected 3 pages, got %d", numPages)
	}

	check, err := Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer check.Close()

	expected := []string{"A\n% extra", "B\n% extra", "% extra"}
	for i, p := range check.Pages {
		body, err := p.ReadContent()
		if err != nil {
			t.Fatal(err)
		}
		if string(body) != expected[i] {
			t.Errorf("page %d: expected content %q, got %q", i, expected[i], body)
		}

		res, err := p.Resources()
		if err != nil {
			t.Fatal(err)
		}
		if res["Test"] != pdf.Integer(42) {
			t.Errorf("page %d: modified resources not written", i)
		}
	}

	// The shared stream is written only once.
	c0 := check.Pages[0].Dict["Contents"].(pdf.Array)
	c1 := check.Pages[1].Dict["Contents"].(pdf.Array)
	if c0[len(c0)-1] != c1[len(c1)-1] {
		t.Error("shared in-memory stream was written more than once")
	}
}
