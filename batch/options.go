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

// Package batch applies a watermark to a set of PDF files.
//
// [Resolve] turns the input arguments into a list of tasks, and [Run]
// processes these tasks one by one.  A failure to process one file is
// reported, but does not stop the processing of the remaining files.
package batch

import "errors"

// Options holds the settings for a batch run.  An Options value is not
// changed after it has been set up.
type Options struct {
	// Watermark is the name of the PDF file containing the watermark.
	// Only the first page of this file is used.
	Watermark string

	// Inputs lists the input files and directories.  Directories stand
	// for all files in the directory with a name ending in ".pdf".
	Inputs []string

	// OutputDir is the directory where output files are written.
	// It is created if it does not exist.
	OutputDir string

	// Prefix and Suffix are added before and after the base name of the
	// input file to form the output file name.
	Prefix, Suffix string

	// Overwrite allows to replace existing output files.
	Overwrite bool

	// Verbose causes the complete error message to be shown for files
	// which could not be processed.
	Verbose bool
}

// Check reports an error if a required setting is missing.
func (o *Options) Check() error {
	switch {
	case o.Watermark == "":
		return errors.New("no watermark file given")
	case len(o.Inputs) == 0:
		return errors.New("no input files given")
	case o.OutputDir == "":
		return errors.New("no output directory given")
	}
	return nil
}
