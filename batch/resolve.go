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
	"strings"
)

// pdfExt is the file name extension of the files picked up from input
// directories.  The comparison is case-sensitive.
const pdfExt = ".pdf"

// ErrNoWatermark is returned by [Resolve] if the watermark file does not
// exist or is not a regular file.
var ErrNoWatermark = errors.New("could not locate watermark file")

// A Task describes the processing of one input file.
type Task struct {
	// Input is the absolute path of the input file.
	Input string

	// Output is the absolute path of the output file.
	Output string
}

// Resolve checks the watermark file, creates the output directory if
// needed, and returns the list of files to process.
//
// Input candidates which are not regular files are reported to w and are
// skipped.  An error is returned only if the watermark file is missing or
// the output directory cannot be used; in this case no file must be
// processed.
func Resolve(opt *Options, w io.Writer) ([]Task, error) {
	if !isRegular(opt.Watermark) {
		return nil, fmt.Errorf("%w %s", ErrNoWatermark, opt.Watermark)
	}

	err := makeOutputDir(opt.OutputDir)
	if err != nil {
		return nil, err
	}
	outDir, err := filepath.Abs(opt.OutputDir)
	if err != nil {
		return nil, err
	}

	var candidates []string
	for _, entry := range opt.Inputs {
		if !isDir(entry) {
			candidates = append(candidates, entry)
			continue
		}

		files, err := os.ReadDir(entry)
		if err != nil {
			fmt.Fprintf(w, "cannot read directory %s: %v\n", entry, err)
			continue
		}
		for _, file := range files {
			if strings.HasSuffix(file.Name(), pdfExt) {
				candidates = append(candidates, filepath.Join(entry, file.Name()))
			}
		}
	}

	var tasks []Task
	for _, fname := range candidates {
		if !isRegular(fname) {
			fmt.Fprintf(w, "%s is not a valid input file\n", fname)
			continue
		}
		in, err := filepath.Abs(fname)
		if err != nil {
			fmt.Fprintf(w, "%s is not a valid input file: %v\n", fname, err)
			continue
		}
		tasks = append(tasks, Task{
			Input:  in,
			Output: filepath.Join(outDir, OutputName(fname, opt.Prefix, opt.Suffix)),
		})
	}
	return tasks, nil
}

// OutputName returns the name of the output file for the given input file.
// The name is formed from prefix, the base name of the input file without a
// trailing ".pdf", suffix, and ".pdf".
func OutputName(input, prefix, suffix string) string {
	stem := strings.TrimSuffix(filepath.Base(input), pdfExt)
	return prefix + stem + suffix + pdfExt
}

// makeOutputDir creates the output directory, if needed.  Missing parent
// directories are not created.
func makeOutputDir(dir string) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("output %s is not a directory", dir)
		}
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Mkdir(dir, 0o755)
}

func isRegular(fname string) bool {
	info, err := os.Stat(fname)
	return err == nil && info.Mode().IsRegular()
}

func isDir(fname string) bool {
	info, err := os.Stat(fname)
	return err == nil && info.IsDir()
}
