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

package batch

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"seehuhn.de/go/pdf-watermark/document"
	"seehuhn.de/go/pdf-watermark/watermark"
)

// MaxTraceLen is the maximal length, in characters, of an error message
// shown for a failed file, unless verbose output is requested.
const MaxTraceLen = 2000

// Status describes the outcome of a [Task].
type Status int

// These are the possible outcomes of a [Task].
const (
	Succeeded Status = iota
	Skipped
	Failed
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is the outcome of processing one [Task].
type Result struct {
	Task   Task
	Status Status

	// Overwritten is set if an existing output file was replaced.
	Overwritten bool

	// Pages is the number of pages watermarked.
	Pages int

	// Err is the reason for a failure.
	Err error
}

// Report summarises a batch run.
type Report struct {
	// Results has one entry per task, in task order.
	Results []Result

	// Pages is the total number of pages watermarked.
	Pages int
}

// Count returns the number of tasks with the given status.
func (r *Report) Count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// Run processes the tasks in order and writes one status line per task to w.
// The report lists the outcome of every task; a failed task does not stop
// the run.
func Run(tasks []Task, opt *Options, w io.Writer) *Report {
	r := &runner{opt: opt, w: w}

	report := &Report{}
	for _, task := range tasks {
		res := r.runTask(task)
		report.Results = append(report.Results, res)
		report.Pages += res.Pages
	}

	p := message.NewPrinter(language.English)
	p.Fprintf(w, "\nSuccessfully watermarked %d pages\n", report.Pages)

	return report
}

type runner struct {
	opt *Options
	w   io.Writer

	// src is loaded when the first file is processed.
	src *watermark.Source
}

// runTask processes a single task.  All errors, including panics inside the
// PDF library, are turned into a failed Result.
func (r *runner) runTask(task Task) (res Result) {
	res.Task = task

	exists, err := fileExists(task.Output)
	if err != nil {
		return r.fail(res, err)
	}
	if exists {
		if !r.opt.Overwrite {
			fmt.Fprintf(r.w, "Skipping %s\n", task.Output)
			res.Status = Skipped
			return res
		}
		fmt.Fprintf(r.w, "Overwriting %s\n", task.Output)
		res.Overwritten = true
	}

	defer func() {
		if p := recover(); p != nil {
			res.Pages = 0
			res = r.fail(res, fmt.Errorf("panic: %v\n%s", p, debug.Stack()))
		}
	}()

	n, err := r.process(task)
	if err != nil {
		return r.fail(res, err)
	}
	res.Status = Succeeded
	res.Pages = n
	fmt.Fprintf(r.w, "Watermarked %s and wrote %s\n", task.Input, task.Output)
	return res
}

func (r *runner) fail(res Result, err error) Result {
	res.Status = Failed
	res.Err = err

	msg := err.Error()
	if !r.opt.Verbose {
		msg = truncate(msg, MaxTraceLen)
	}
	fmt.Fprintf(r.w, "Failed processing %s\n%s\n", res.Task.Input, msg)
	return res
}

// process watermarks every page of the input file and writes the result.
// The output file is only created if all steps succeed.
func (r *runner) process(task Task) (int, error) {
	src, err := r.source()
	if err != nil {
		return 0, err
	}

	doc, err := document.Open(task.Input)
	if err != nil {
		return 0, err
	}
	defer doc.Close()

	n, err := watermark.ApplyAll(doc, src)
	if err != nil {
		return 0, err
	}

	err = writeAtomic(doc, task.Output)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *runner) source() (*watermark.Source, error) {
	if r.src != nil {
		return r.src, nil
	}
	src, err := watermark.Load(r.opt.Watermark)
	if err != nil {
		return nil, fmt.Errorf("watermark %s: %w", r.opt.Watermark, err)
	}
	r.src = src
	return src, nil
}

// writeAtomic writes doc to a temporary file next to fname and then renames
// the temporary file to fname.
func writeAtomic(doc *document.Document, fname string) error {
	tmp, err := os.CreateTemp(filepath.Dir(fname), ".pdf-watermark-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	tmp.Close()

	renamed := false
	defer func() {
		if !renamed {
			os.Remove(tmpName)
		}
	}()

	err = doc.WriteFile(tmpName)
	if err != nil {
		return err
	}
	err = os.Chmod(tmpName, 0o644)
	if err != nil {
		return err
	}
	err = os.Rename(tmpName, fname)
	if err != nil {
		return err
	}
	renamed = true
	return nil
}

func fileExists(fname string) (bool, error) {
	_, err := os.Stat(fname)
	if err == nil {
		return true, nil
	} else if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// truncate shortens msg to at most n characters.
func truncate(msg string, n int) string {
	if utf8.RuneCountInString(msg) <= n {
		return msg
	}
	i := 0
	for pos := range msg {
		if i == n {
			return msg[:pos]
		}
		i++
	}
	return msg
}
