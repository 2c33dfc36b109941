// Package runner drives the time-stepping loop: it launches the CPU
// and accelerator interior updates concurrently, joins them at the
// seam barrier, applies boundary conditions, swaps time levels and
// accumulates per-phase timings.
package runner

import (
	"sync"
	"time"
)

// Phase names one timed section of an iteration.
type Phase string

const (
	// PhaseInterior covers both executors' interior updates,
	// launch to barrier
	PhaseInterior Phase = "interior"

	// PhaseSeam covers the ghost-plane exchange across the split
	PhaseSeam Phase = "seam"

	// PhaseBoundary covers the outer-domain boundary application
	PhaseBoundary Phase = "boundary"
)

// Profiler accumulates wall-clock time per phase. One instance is
// owned by the scheduler and passed to component calls; there is no
// process-wide timing state.
type Profiler struct {
	mu      sync.Mutex
	buckets map[Phase]time.Duration
}

// NewProfiler returns an empty accumulator.
func NewProfiler() *Profiler {
	return &Profiler{buckets: make(map[Phase]time.Duration)}
}

// Reset clears every bucket.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buckets = make(map[Phase]time.Duration)
}

// Time runs fn, adds its elapsed wall-clock time to the named bucket,
// and propagates fn's error unchanged. The elapsed time is recorded
// even when fn fails, so a flushed report covers the aborting phase.
func (p *Profiler) Time(phase Phase, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	p.mu.Lock()
	p.buckets[phase] += elapsed
	p.mu.Unlock()
	return err
}

// Report returns an immutable snapshot mapping phase to accumulated
// seconds.
func (p *Profiler) Report() map[Phase]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[Phase]float64, len(p.buckets))
	for phase, d := range p.buckets {
		out[phase] = d.Seconds()
	}
	return out
}
