package runner

import (
	"errors"
	"testing"
	"time"
)

func TestProfiler_AccumulatesPerPhase(t *testing.T) {
	p := NewProfiler()

	for n := 0; n < 3; n++ {
		if err := p.Time(PhaseInterior, func() error {
			time.Sleep(time.Millisecond)
			return nil
		}); err != nil {
			t.Fatal(err)
		}
	}
	if err := p.Time(PhaseSeam, func() error { return nil }); err != nil {
		t.Fatal(err)
	}

	rep := p.Report()
	if rep[PhaseInterior] < 0.003 {
		t.Errorf("interior bucket = %g s, expected at least 3ms accumulated", rep[PhaseInterior])
	}
	if _, ok := rep[PhaseSeam]; !ok {
		t.Error("seam bucket missing from report")
	}
}

func TestProfiler_PropagatesErrorUnchanged(t *testing.T) {
	p := NewProfiler()
	sentinel := errors.New("kernel blew up")

	err := p.Time(PhaseBoundary, func() error {
		time.Sleep(time.Millisecond)
		return sentinel
	})
	if err != sentinel {
		t.Errorf("Time must return fn's error unchanged, got %v", err)
	}

	// the aborting phase still shows up in the flushed report
	if rep := p.Report(); rep[PhaseBoundary] <= 0 {
		t.Error("elapsed time must be recorded even when fn fails")
	}
}

func TestProfiler_ReportIsSnapshot(t *testing.T) {
	p := NewProfiler()
	_ = p.Time(PhaseInterior, func() error { return nil })

	rep := p.Report()
	rep[PhaseInterior] = 1e9

	if fresh := p.Report(); fresh[PhaseInterior] >= 1e9 {
		t.Error("mutating a report must not touch the accumulator")
	}
}

func TestProfiler_Reset(t *testing.T) {
	p := NewProfiler()
	_ = p.Time(PhaseInterior, func() error { time.Sleep(time.Millisecond); return nil })
	p.Reset()
	if rep := p.Report(); len(rep) != 0 {
		t.Errorf("reset must clear every bucket, got %v", rep)
	}
}
