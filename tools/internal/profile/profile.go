// seehuhn.de/go/invoice - compose invoice summaries and merge PDF files
// Copyright (C) 2026  Jochen Voss <voss@seehuhn.de>
// Copyright (C) 2026  The seehuhn.de/go/invoice authors
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

// Package profile enables CPU and memory profiling for command line tools.
package profile

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"go.uber.org/zap"
)

// Start starts CPU profiling, if cpuprofile is not empty.  The returned
// function stops CPU profiling and writes a heap profile to memprofile, if
// this is not empty.  Problems writing the profiles are reported to log.
func Start(cpuprofile, memprofile string, log *zap.Logger) (stop func(), err error) {
	if log == nil {
		log = zap.NewNop()
	}

	var cpuFile *os.File
	if cpuprofile != "" {
		cpuFile, err = os.Create(cpuprofile)
		if err != nil {
			return nil, fmt.Errorf("could not create CPU profile: %w", err)
		}
		if err = pprof.StartCPUProfile(cpuFile); err != nil {
			cpuFile.Close()
			return nil, fmt.Errorf("could not start CPU profile: %w", err)
		}
	}

	stop = func() {
		if cpuFile != nil {
			pprof.StopCPUProfile()
			err := cpuFile.Close()
			if err != nil {
				log.Error("cannot close CPU profile", zap.Error(err))
			}
		}
		if memprofile != "" {
			err := writeHeapProfile(memprofile)
			if err != nil {
				log.Error("cannot write memory profile",
					zap.String("file", memprofile), zap.Error(err))
			}
		}
	}
	return stop, nil
}

func writeHeapProfile(fname string) error {
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	runtime.GC()
	allocs := pprof.Lookup("allocs")
	if allocs == nil {
		f.Close()
		return fmt.Errorf("allocs profile not available")
	}
	err = allocs.WriteTo(f, 0)
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
