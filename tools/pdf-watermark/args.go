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

package main

import (
	"flag"
	"fmt"
	"slices"
	"strings"

	"seehuhn.de/go/pdf-watermark/batch"
)

// inputList collects the values of a repeated -i flag.
type inputList []string

func (l *inputList) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, " ")
}

func (l *inputList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// cliArgs holds the parsed command line.
type cliArgs struct {
	opt        batch.Options
	cpuprofile string
	memprofile string
	version    bool
}

func newFlagSet(name string, a *cliArgs) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&a.opt.Watermark, "w", "", "watermark `file`; only the first page is used")
	fs.Var((*inputList)(&a.opt.Inputs), "i", "input `file` or directory (can be repeated)")
	fs.StringVar(&a.opt.OutputDir, "o", "", "output `directory`, created if needed")
	fs.BoolVar(&a.opt.Overwrite, "f", false, "overwrite existing output files")
	fs.StringVar(&a.opt.Prefix, "p", "", "`prefix` for output file names")
	fs.StringVar(&a.opt.Suffix, "s", "", "`suffix` for output file names")
	fs.BoolVar(&a.opt.Verbose, "v", false, "show complete error messages")
	fs.StringVar(&a.cpuprofile, "cpuprofile", "", "write cpu profile to `file`")
	fs.StringVar(&a.memprofile, "memprofile", "", "write memory profile to `file`")
	fs.BoolVar(&a.version, "version", false, "print version information and exit")
	return fs
}

// parseArgs parses the command line arguments into a.
//
// Arguments which are not flags are taken as additional inputs, so that
// "-i a.pdf b.pdf -o out" lists two input files.  All arguments after a
// "--" are inputs.  In both cases, -i must have been given before.
// Errors are reported on the output of fs, followed by the usage message.
func parseArgs(fs *flag.FlagSet, a *cliArgs, args []string) error {
	var tail []string
	if i := slices.Index(args, "--"); i >= 0 {
		tail = args[i+1:]
		args = args[:i]
	}

	for {
		err := fs.Parse(args)
		if err != nil {
			return err
		}
		args = fs.Args()
		if len(args) > 0 && len(a.opt.Inputs) == 0 {
			return usageError(fs, fmt.Errorf("unexpected argument %q: input files must follow -i", args[0]))
		}
		for len(args) > 0 && !isFlag(args[0]) {
			a.opt.Inputs = append(a.opt.Inputs, args[0])
			args = args[1:]
		}
		if len(args) == 0 {
			break
		}
	}

	if len(tail) > 0 && len(a.opt.Inputs) == 0 {
		return usageError(fs, fmt.Errorf("unexpected argument %q: input files must follow -i", tail[0]))
	}
	a.opt.Inputs = append(a.opt.Inputs, tail...)
	return nil
}

func usageError(fs *flag.FlagSet, err error) error {
	fmt.Fprintln(fs.Output(), err)
	fs.Usage()
	return err
}

func isFlag(arg string) bool {
	return len(arg) > 1 && arg[0] == '-'
}
