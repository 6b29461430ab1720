package services

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/shirou/gopsutil/v4/process"
)

// MemoryGuard samples resident memory against a hard ceiling. A single
// forced collection pass is attempted before giving up; breaching the
// ceiling after that aborts the current job, not the worker.
type MemoryGuard struct {
	limitMB uint64
	sample  func() (uint64, error)
}

func NewMemoryGuard(limitMB int) *MemoryGuard {
	return &MemoryGuard{
		limitMB: uint64(limitMB),
		sample:  sampleRSS,
	}
}

// NewMemoryGuardWithSampler allows tests to inject a fake memory reading.
func NewMemoryGuardWithSampler(limitMB int, sample func() (uint64, error)) *MemoryGuard {
	return &MemoryGuard{limitMB: uint64(limitMB), sample: sample}
}

func sampleRSS() (uint64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return info.RSS / 1024 / 1024, nil
}

// Check returns ErrOutOfMemory if resident memory is still above the
// ceiling after one forced GC pass. Sampling errors are logged and
// ignored so a broken proc reader never fails a job.
func (g *MemoryGuard) Check() error {
	usedMB, err := g.sample()
	if err != nil {
		log.Printf("Memory sample failed: %v", err)
		return nil
	}

	if usedMB <= g.limitMB {
		return nil
	}

	runtime.GC()
	debug.FreeOSMemory()

	usedMB, err = g.sample()
	if err != nil {
		log.Printf("Memory re-sample failed: %v", err)
		return nil
	}

	if usedMB > g.limitMB {
		return fmt.Errorf("%w: %dMB > %dMB", ErrOutOfMemory, usedMB, g.limitMB)
	}

	return nil
}

// Release forces a collection pass after an expensive stage finishes.
func (g *MemoryGuard) Release() {
	runtime.GC()
	debug.FreeOSMemory()
}

// CleanupScratch removes the job-scoped scratch directory and runs a
// final collection pass. Safe to call on every exit path.
func (g *MemoryGuard) CleanupScratch(dir string) {
	if dir != "" {
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("Failed to remove scratch directory %s: %v", dir, err)
		} else {
			log.Printf("Scratch directory cleaned: %s", dir)
		}
	}
	g.Release()
}
