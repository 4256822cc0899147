// Package profiling starts and stops the profilers of the bft command.
package profiling

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/felixge/fgprof"
	"go.uber.org/multierr"
)

// StartProfilers starts the profilers whose output path is not empty.
// The returned function stops them and writes the memory profile.
func StartProfilers(cpuProfilePath, memProfilePath, fgprofPath string) (stopProfile func() error, err error) {
	var (
		cpuProfile    *os.File
		fgprofProfile *os.File
		fgprofStop    func() error
	)

	if cpuProfilePath != "" {
		cpuProfile, err = os.Create(cpuProfilePath)
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(cpuProfile); err != nil {
			return nil, multierr.Append(err, cpuProfile.Close())
		}
	}

	if fgprofPath != "" {
		fgprofProfile, err = os.Create(fgprofPath)
		if err != nil {
			return nil, err
		}
		fgprofStop = fgprof.Start(fgprofProfile, fgprof.FormatPprof)
	}

	return func() (err error) {
		if memProfilePath != "" {
			f, createErr := os.Create(memProfilePath)
			if createErr != nil {
				return createErr
			}
			runtime.GC() // get up-to-date statistics
			err = multierr.Append(err, pprof.WriteHeapProfile(f))
			err = multierr.Append(err, f.Close())
		}

		if cpuProfile != nil {
			pprof.StopCPUProfile()
			err = multierr.Append(err, cpuProfile.Close())
		}

		if fgprofProfile != nil {
			err = multierr.Append(err, fgprofStop())
			err = multierr.Append(err, fgprofProfile.Close())
		}
		return err
	}, nil
}
