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

// Pdf-watermark adds a watermark to every page of a set of PDF files.
//
// The first page of the watermark file is drawn on top of each page of the
// input files.  The results are written to an output directory; the output
// file names are formed from the input file names, an optional prefix and
// an optional suffix.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"seehuhn.de/go/pdf-watermark/batch"
	"seehuhn.de/go/pdf-watermark/tools/internal/buildinfo"
	"seehuhn.de/go/pdf-watermark/tools/internal/profile"
)

const toolName = "pdf-watermark"

func main() {
	a := &cliArgs{}
	fs := newFlagSet(toolName, a)
	fs.Usage = func() { usage(fs) }

	err := parseArgs(fs, a, os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	} else if err != nil {
		os.Exit(1)
	}

	if a.version {
		fmt.Println(buildinfo.Short(toolName))
		return
	}

	if err := a.opt.Check(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		fs.Usage()
		os.Exit(1)
	}

	if err := run(a, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintf(out, "%s \u2014 add a watermark to the pages of PDF files\n", toolName)
	fmt.Fprintf(out, "%s\n\n", buildinfo.Short(toolName))
	fmt.Fprintf(out, "Usage:\n")
	fmt.Fprintf(out, "  %s -w <watermark.pdf> -i <input>... -o <output_dir> [options]\n\n", toolName)
	fmt.Fprintf(out, "Several inputs can follow a single -i.  Inputs after \"--\" may start\n")
	fmt.Fprintf(out, "with a dash.  Bare arguments before the first -i are not accepted.\n\n")
	fmt.Fprintf(out, "Options:\n")
	fs.PrintDefaults()
	fmt.Fprintf(out, "\nExamples:\n")
	fmt.Fprintf(out, "  %s -w draft.pdf -i report.pdf -o out\n", toolName)
	fmt.Fprintf(out, "  %s -w draft.pdf -i in/ extra.pdf -o out -p wm_ -f\n", toolName)
}

// run processes all input files.  Only problems which prevent the batch from
// starting are returned as errors; failures for individual files are
// reported on w.
func run(a *cliArgs, w io.Writer) error {
	prof, err := profile.Start(a.cpuprofile, a.memprofile)
	if err != nil {
		return err
	}
	defer func() {
		if err := prof.Stop(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}()

	tasks, err := batch.Resolve(&a.opt, w)
	if err != nil {
		return err
	}
	batch.Run(tasks, &a.opt, w)
	return nil
}
