package runner

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/veni-vidi-vici-dormivi/HPC4WC/grid"
	"github.com/veni-vidi-vici-dormivi/HPC4WC/halo"
	"github.com/veni-vidi-vici-dormivi/HPC4WC/kernel"
	"github.com/veni-vidi-vici-dormivi/HPC4WC/partitions"
)

// Scheduler owns the slabs, the seam exchange and the profiler, and
// advances the field through the per-iteration state machine
// InteriorCompute -> SeamExchange -> OuterBoundary -> Swap.
type Scheduler struct {
	cfg Config

	// slabs in ascending z order; one for the single-executor modes,
	// two for hybrid
	slabs []kernel.Slab

	exchange *halo.Exchange
	prof     *Profiler
}

// slabEdge adapts one slab at a fixed time level to the halo exchange
// surface.
type slabEdge struct {
	s     kernel.Slab
	level kernel.Level
}

func (e slabEdge) EdgeLen() int { return e.s.EdgeLen() }
func (e slabEdge) EdgePlanes(side halo.Side, dst []float64) error {
	return e.s.EdgePlanes(e.level, side, dst)
}
func (e slabEdge) SetGhost(side halo.Side, src []float64) error {
	return e.s.SetGhost(e.level, side, src)
}

// New validates the configuration, partitions the domain and
// constructs the executor slabs. Setup failures (invalid partition,
// exhausted device memory) surface here, before any iteration runs.
func New(cfg Config) (*Scheduler, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Scheduler{cfg: cfg, prof: NewProfiler()}

	switch cfg.Mode {
	case ModeCPUOnly:
		region := partitions.SubRegion{ZLo: 0, ZHi: cfg.Grid.Nz, Executor: partitions.ExecutorCPU}
		slab, err := kernel.NewCPUSlab(cfg.Grid, region, cfg.Boundary, cfg.Params, cfg.Workers)
		if err != nil {
			return nil, err
		}
		s.slabs = []kernel.Slab{slab}

	case ModeDeviceOnly:
		region := partitions.SubRegion{ZLo: 0, ZHi: cfg.Grid.Nz, Executor: partitions.ExecutorDevice}
		slab, err := kernel.NewDeviceSlab(cfg.Device, cfg.Grid, region, cfg.Boundary, cfg.Params)
		if err != nil {
			return nil, err
		}
		s.slabs = []kernel.Slab{slab}

	case ModeHybrid:
		cpuRegion, devRegion, err := partitions.Split(cfg.Grid.Nz, cfg.CPUPlanes)
		if err != nil {
			return nil, err
		}
		cpuSlab, err := kernel.NewCPUSlab(cfg.Grid, cpuRegion, cfg.Boundary, cfg.Params, cfg.Workers)
		if err != nil {
			return nil, err
		}
		devSlab, err := kernel.NewDeviceSlab(cfg.Device, cfg.Grid, devRegion, cfg.Boundary, cfg.Params)
		if err != nil {
			cpuSlab.Free()
			return nil, err
		}
		s.slabs = []kernel.Slab{cpuSlab, devSlab}
		s.exchange = halo.NewExchange(cpuSlab.EdgeLen())

	default:
		return nil, fmt.Errorf("runner: unknown mode %v", cfg.Mode)
	}

	log.WithFields(log.Fields{
		"mode":  cfg.Mode.String(),
		"grid":  fmt.Sprintf("%dx%dx%d", cfg.Grid.Nx, cfg.Grid.Ny, cfg.Grid.Nz),
		"halo":  cfg.Grid.Halo,
		"iters": cfg.Params.Iterations,
	}).Info("scheduler ready")
	return s, nil
}

// Profiler exposes the timing accumulator; read it after Run returns.
// On an aborted run it holds the flushed partial timings.
func (s *Scheduler) Profiler() *Profiler { return s.prof }

// Free releases the slabs' resources.
func (s *Scheduler) Free() {
	for _, sl := range s.slabs {
		sl.Free()
	}
}

// Run seeds the field, settles the initial halos and advances
// Iterations time steps. The context is checked only at iteration
// boundaries: a stop request never interrupts a kernel in flight, and
// the returned field is the state after the last completed iteration.
func (s *Scheduler) Run(ctx context.Context) (*Result, error) {
	s.prof.Reset()

	for _, sl := range s.slabs {
		if err := sl.Seed(s.cfg.Init); err != nil {
			return nil, fmt.Errorf("runner: seeding %v: %w", sl.Region(), err)
		}
	}
	// The first interior update reads Cur, so its ghosts and faces
	// must be settled before the loop starts. Next needs the same
	// treatment: the first seam exchange gathers its edge planes
	// before the boundary pass has run, and at an extreme split those
	// planes include a pinned boundary plane the interior sweep never
	// writes.
	for _, level := range []kernel.Level{kernel.Cur, kernel.Next} {
		if err := s.settle(level); err != nil {
			return nil, fmt.Errorf("runner: initial settle: %w", err)
		}
	}

	completed := 0
	for iter := 1; iter <= s.cfg.Params.Iterations; iter++ {
		select {
		case <-ctx.Done():
			log.WithField("iteration", completed).Info("stop requested, halting at iteration boundary")
			return s.finish(completed)
		default:
		}

		if err := s.iterate(iter); err != nil {
			log.WithFields(log.Fields{
				"iteration": iter,
				"timings":   s.prof.Report(),
			}).Error("run aborted")
			return nil, err
		}
		completed = iter

		if s.cfg.OnIteration != nil {
			s.cfg.OnIteration(iter, s.prof.Report())
		}
	}
	return s.finish(completed)
}

// iterate advances one time step. Any failure is fatal for the run:
// each iteration depends on the fully settled previous state, so
// there is no partial-failure recovery.
func (s *Scheduler) iterate(iter int) error {
	// InteriorCompute: both executors progress concurrently on
	// disjoint output planes; the WaitGroup is the seam barrier.
	err := s.prof.Time(PhaseInterior, func() error {
		errs := make([]error, len(s.slabs))
		var wg sync.WaitGroup
		for i, sl := range s.slabs {
			wg.Add(1)
			go func(i int, sl kernel.Slab) {
				defer wg.Done()
				errs[i] = sl.Step()
			}(i, sl)
		}
		wg.Wait()
		for _, e := range errs {
			if e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("iteration %d interior: %w", iter, err)
	}

	if n := s.cfg.CheckInterval; n > 0 && iter%n == 0 {
		for _, sl := range s.slabs {
			if err := sl.CheckFinite(); err != nil {
				return fmt.Errorf("iteration %d: %w", iter, err)
			}
		}
	}

	// SeamExchange: runs only after the barrier above; the ghost
	// planes are guarded by ordering alone, never by a lock.
	if err := s.prof.Time(PhaseSeam, func() error {
		return s.exchangeGhosts(kernel.Next)
	}); err != nil {
		return fmt.Errorf("iteration %d seam: %w", iter, err)
	}

	// OuterBoundary on the freshly written level
	if err := s.prof.Time(PhaseBoundary, func() error {
		return s.applyBoundaries(kernel.Next)
	}); err != nil {
		return fmt.Errorf("iteration %d boundary: %w", iter, err)
	}

	// Swap: O(1) role exchange; iteration n+1 may not start before
	// this completes
	for _, sl := range s.slabs {
		sl.Swap()
	}
	return nil
}

// exchangeGhosts refreshes the seam ghosts and, for a periodic split
// axis, the wrap between the outermost slabs.
func (s *Scheduler) exchangeGhosts(level kernel.Level) error {
	if len(s.slabs) < 2 {
		return nil
	}
	lo := slabEdge{s.slabs[0], level}
	hi := slabEdge{s.slabs[1], level}
	if err := s.exchange.Seam(lo, hi); err != nil {
		return err
	}
	if s.cfg.Boundary.Z.Kind == halo.Periodic {
		return s.exchange.Wrap(lo, hi)
	}
	return nil
}

func (s *Scheduler) applyBoundaries(level kernel.Level) error {
	for _, sl := range s.slabs {
		if err := sl.ApplyBoundary(level); err != nil {
			return err
		}
	}
	return nil
}

// settle makes one level fully consistent: seam ghosts, wrap, outer
// faces.
func (s *Scheduler) settle(level kernel.Level) error {
	if err := s.exchangeGhosts(level); err != nil {
		return err
	}
	return s.applyBoundaries(level)
}

// finish performs the terminal settle on the current level and
// reassembles the owned interiors into one dense field. Assembly is
// deterministic in the split: slabs write disjoint plane ranges fixed
// at partition time.
func (s *Scheduler) finish(completed int) (*Result, error) {
	if err := s.settle(kernel.Cur); err != nil {
		return nil, fmt.Errorf("runner: final settle: %w", err)
	}

	assembled := grid.NewField(s.cfg.Grid, 0, s.cfg.Grid.Nz)
	for _, sl := range s.slabs {
		if err := sl.Gather(assembled); err != nil {
			return nil, fmt.Errorf("runner: gathering %v: %w", sl.Region(), err)
		}
	}

	res := &Result{
		Nx:         s.cfg.Grid.Nx,
		Ny:         s.cfg.Grid.Ny,
		Nz:         s.cfg.Grid.Nz,
		Data:       make([]float64, s.cfg.Grid.Nx*s.cfg.Grid.Ny*s.cfg.Grid.Nz),
		Iterations: completed,
		Timings:    s.prof.Report(),
	}
	n := 0
	for k := 0; k < res.Nz; k++ {
		for j := 0; j < res.Ny; j++ {
			src := assembled.Data()
			base := assembled.Idx(0, j, k)
			copy(res.Data[n:n+res.Nx], src[base:base+res.Nx])
			n += res.Nx
		}
	}

	mn, mx := res.MinMax()
	log.WithFields(log.Fields{
		"iterations": completed,
		"min":        mn,
		"max":        mx,
		"timings":    res.Timings,
	}).Info("run complete")
	return res, nil
}
