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

// Package profile writes Go CPU and memory profiles for a program run.
package profile

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
)

// A Session records the profiles requested in [Start].
type Session struct {
	cpu     *os.File
	memFile string
}

// Start starts CPU profiling into cpuFile and arranges for a memory
// profile to be written to memFile when the session is stopped.  Empty
// file names disable the corresponding profile.
func Start(cpuFile, memFile string) (*Session, error) {
	s := &Session{memFile: memFile}
	if cpuFile == "" {
		return s, nil
	}

	f, err := os.Create(cpuFile)
	if err != nil {
		return nil, fmt.Errorf("cpu profile: %w", err)
	}
	err = pprof.StartCPUProfile(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("cpu profile: %w", err)
	}
	s.cpu = f
	return s, nil
}

// Stop ends CPU profiling and writes the memory profile.
// Stop can be called more than once.
func (s *Session) Stop() error {
	var errs []error
	if s.cpu != nil {
		pprof.StopCPUProfile()
		errs = append(errs, s.cpu.Close())
		s.cpu = nil
	}
	if s.memFile != "" {
		errs = append(errs, writeHeap(s.memFile))
		s.memFile = ""
	}
	return errors.Join(errs...)
}

func writeHeap(fname string) error {
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("memory profile: %w", err)
	}
	runtime.GC()
	err = pprof.Lookup("allocs").WriteTo(f, 0)
	err2 := f.Close()
	if err != nil {
		return fmt.Errorf("memory profile: %w", err)
	}
	return err2
}
