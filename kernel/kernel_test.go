package kernel

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/veni-vidi-vici-dormivi/HPC4WC/grid"
	"github.com/veni-vidi-vici-dormivi/HPC4WC/halo"
	"github.com/veni-vidi-vici-dormivi/HPC4WC/partitions"
)

// dt is a power of two so steady-state checks hold exactly.
const dtExact = 0.125

func unitParams(t *testing.T) grid.StencilParams {
	t.Helper()
	p, err := grid.NewStencilParams(dtExact, 1, 1, 1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func cpuRegion(zLo, zHi int) partitions.SubRegion {
	return partitions.SubRegion{ZLo: zLo, ZHi: zHi, Executor: partitions.ExecutorCPU}
}

// ============================================================================
// Section 1: Sweep bounds
// ============================================================================

func TestInteriorBounds(t *testing.T) {
	spec := grid.Spec{Nx: 8, Ny: 8, Nz: 8, Halo: 2, Hx: 1, Hy: 1, Hz: 1}
	full := cpuRegion(0, 8)

	t.Run("PeriodicSweepsEverything", func(t *testing.T) {
		b := InteriorBounds(spec, full, halo.AllPeriodic(2))
		want := Bounds{0, 8, 0, 8, 0, 8}
		if b != want {
			t.Errorf("bounds = %+v, want %+v", b, want)
		}
	})

	t.Run("DirichletExcludesPinnedLayer", func(t *testing.T) {
		b := InteriorBounds(spec, full, halo.FixedValue(2, 1))
		want := Bounds{1, 7, 1, 7, 1, 7}
		if b != want {
			t.Errorf("bounds = %+v, want %+v", b, want)
		}
	})

	t.Run("SeamSideKeepsFullZRange", func(t *testing.T) {
		lower := cpuRegion(0, 5)
		b := InteriorBounds(spec, lower, halo.FixedValue(2, 1))
		if b.KLo != 1 || b.KHi != 5 {
			t.Errorf("lower slab k-range = [%d,%d), want [1,5)", b.KLo, b.KHi)
		}
		upper := cpuRegion(5, 8)
		b = InteriorBounds(spec, upper, halo.FixedValue(2, 1))
		if b.KLo != 0 || b.KHi != 2 {
			t.Errorf("upper slab k-range = [%d,%d), want [0,2)", b.KLo, b.KHi)
		}
	})
}

// ============================================================================
// Section 2: Interior update numerics
// ============================================================================

func TestApplyInterior_UniformFieldIsSteady(t *testing.T) {
	spec := grid.Spec{Nx: 6, Ny: 6, Nz: 6, Halo: 1, Hx: 1, Hy: 1, Hz: 1}
	in := grid.NewField(spec, 0, 6)
	out := grid.NewField(spec, 0, 6)
	p := unitParams(t)

	// uniform everywhere, halo included
	data := in.Data()
	for i := range data {
		data[i] = 3.0
	}

	b := Bounds{0, 6, 0, 6, 0, 6}
	ApplyInterior(in, out, b, p)

	for k := 0; k < 6; k++ {
		for j := 0; j < 6; j++ {
			for i := 0; i < 6; i++ {
				if v, _ := out.At(i, j, k); v != 3.0 {
					t.Fatalf("uniform field must be steady, got %g at (%d,%d,%d)", v, i, j, k)
				}
			}
		}
	}
}

func TestApplyInterior_SingleHotCell(t *testing.T) {
	spec := grid.Spec{Nx: 5, Ny: 5, Nz: 5, Halo: 1, Hx: 1, Hy: 1, Hz: 1}
	in := grid.NewField(spec, 0, 5)
	out := grid.NewField(spec, 0, 5)
	p := unitParams(t)

	if err := in.Set(2, 2, 2, 8.0); err != nil {
		t.Fatal(err)
	}
	ApplyInterior(in, out, Bounds{0, 5, 0, 5, 0, 5}, p)

	// center loses 6*dt*cx*u, each face neighbour gains dt*cx*u
	if v, _ := out.At(2, 2, 2); v != 2.0 {
		t.Errorf("center = %g, want 2", v)
	}
	neighbours := [][3]int{
		{1, 2, 2}, {3, 2, 2}, {2, 1, 2}, {2, 3, 2}, {2, 2, 1}, {2, 2, 3},
	}
	for _, n := range neighbours {
		if v, _ := out.At(n[0], n[1], n[2]); v != 1.0 {
			t.Errorf("neighbour %v = %g, want 1", n, v)
		}
	}
	if v, _ := out.At(1, 1, 2); v != 0.0 {
		t.Errorf("diagonal cell = %g, want 0", v)
	}
}

// ============================================================================
// Section 3: Host slab
// ============================================================================

func hostSpec() grid.Spec {
	return grid.Spec{Nx: 12, Ny: 12, Nz: 12, Halo: 2, Hx: 1, Hy: 1, Hz: 1}
}

func randomInit(seed int64) func(i, j, k int) float64 {
	rng := rand.New(rand.NewSource(seed))
	vals := make(map[[3]int]float64)
	return func(i, j, k int) float64 {
		key := [3]int{i, j, k}
		if v, ok := vals[key]; ok {
			return v
		}
		v := rng.Float64()
		vals[key] = v
		return v
	}
}

func TestCPUSlab_StepMatchesSerialSweep(t *testing.T) {
	spec := hostSpec()
	region := cpuRegion(0, spec.Nz)
	bc := halo.FixedValue(2, 1.0)
	p := unitParams(t)

	slab, err := NewCPUSlab(spec, region, bc, p, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer slab.Free()

	init := randomInit(7)
	if err := slab.Seed(init); err != nil {
		t.Fatal(err)
	}
	if err := slab.ApplyBoundary(Cur); err != nil {
		t.Fatal(err)
	}

	// serial reference over an identical field
	ref := grid.NewField(spec, 0, spec.Nz)
	refOut := grid.NewField(spec, 0, spec.Nz)
	copy(ref.Data(), slab.buf.Cur.Data())
	ApplyInterior(ref, refOut, slab.bounds, p)

	if err := slab.Step(); err != nil {
		t.Fatal(err)
	}

	b := slab.bounds
	for k := b.KLo; k < b.KHi; k++ {
		for j := b.JLo; j < b.JHi; j++ {
			for i := b.ILo; i < b.IHi; i++ {
				got, _ := slab.buf.Next.At(i, j, k)
				want, _ := refOut.At(i, j, k)
				if got != want {
					t.Fatalf("worker team diverged from serial sweep at (%d,%d,%d): %g vs %g",
						i, j, k, got, want)
				}
			}
		}
	}
}

func TestCPUSlab_WorkerCountDoesNotChangeResults(t *testing.T) {
	spec := hostSpec()
	bc := halo.AllPeriodic(2)
	p := unitParams(t)
	init := randomInit(11)

	run := func(workers int) []float64 {
		slab, err := NewCPUSlab(spec, cpuRegion(0, spec.Nz), bc, p, workers)
		if err != nil {
			t.Fatal(err)
		}
		defer slab.Free()
		if err := slab.Seed(init); err != nil {
			t.Fatal(err)
		}
		if err := slab.ApplyBoundary(Cur); err != nil {
			t.Fatal(err)
		}
		if err := slab.Step(); err != nil {
			t.Fatal(err)
		}
		out := make([]float64, len(slab.buf.Next.Data()))
		copy(out, slab.buf.Next.Data())
		return out
	}

	one := run(1)
	eight := run(8)
	for i := range one {
		if one[i] != eight[i] {
			t.Fatal("results must not depend on worker count")
		}
	}
}

// levelEdge adapts one time level of a slab to the halo exchange surface.
type levelEdge struct {
	s Slab
	l Level
}

func (e levelEdge) EdgeLen() int { return e.s.EdgeLen() }
func (e levelEdge) EdgePlanes(side halo.Side, dst []float64) error {
	return e.s.EdgePlanes(e.l, side, dst)
}
func (e levelEdge) SetGhost(side halo.Side, src []float64) error {
	return e.s.SetGhost(e.l, side, src)
}

func TestCPUSlab_SeamGhostsMatchOppositeInterior(t *testing.T) {
	spec := hostSpec()
	bc := halo.FixedValue(2, 1.0)
	p := unitParams(t)

	lo, err := NewCPUSlab(spec, cpuRegion(0, 7), bc, p, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer lo.Free()
	hi, err := NewCPUSlab(spec, cpuRegion(7, 12), bc, p, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer hi.Free()

	init := randomInit(13)
	if err := lo.Seed(init); err != nil {
		t.Fatal(err)
	}
	if err := hi.Seed(init); err != nil {
		t.Fatal(err)
	}

	ex := halo.NewExchange(lo.EdgeLen())
	if err := ex.Seam(levelEdge{lo, Cur}, levelEdge{hi, Cur}); err != nil {
		t.Fatal(err)
	}

	h := spec.Halo
	for g := 0; g < h; g++ {
		loGhost, err := lo.buf.Cur.Plane(lo.buf.Cur.NzLoc + g)
		if err != nil {
			t.Fatal(err)
		}
		hiEdge, err := hi.buf.Cur.Plane(g)
		if err != nil {
			t.Fatal(err)
		}
		for n := range loGhost {
			if loGhost[n] != hiEdge[n] {
				t.Fatalf("lower top ghost plane %d differs from upper interior at %d", g, n)
			}
		}

		hiGhost, err := hi.buf.Cur.Plane(-h + g)
		if err != nil {
			t.Fatal(err)
		}
		loEdge, err := lo.buf.Cur.Plane(lo.buf.Cur.NzLoc - h + g)
		if err != nil {
			t.Fatal(err)
		}
		for n := range hiGhost {
			if hiGhost[n] != loEdge[n] {
				t.Fatalf("upper bottom ghost plane %d differs from lower interior at %d", g, n)
			}
		}
	}
}

func TestCPUSlab_CheckFinite(t *testing.T) {
	spec := hostSpec()
	slab, err := NewCPUSlab(spec, cpuRegion(0, spec.Nz), halo.AllPeriodic(2), unitParams(t), 2)
	if err != nil {
		t.Fatal(err)
	}
	defer slab.Free()

	if err := slab.CheckFinite(); err != nil {
		t.Fatalf("clean interior reported a fault: %v", err)
	}

	if err := slab.buf.Next.Set(3, 4, 5, math.NaN()); err != nil {
		t.Fatal(err)
	}
	if err := slab.CheckFinite(); !errors.Is(err, ErrNumericalFault) {
		t.Errorf("want ErrNumericalFault, got %v", err)
	}

	if err := slab.buf.Next.Set(3, 4, 5, math.Inf(1)); err != nil {
		t.Fatal(err)
	}
	if err := slab.CheckFinite(); !errors.Is(err, ErrNumericalFault) {
		t.Errorf("want ErrNumericalFault for Inf, got %v", err)
	}
}

func TestCPUSlab_GatherReassemblesGlobalField(t *testing.T) {
	spec := hostSpec()
	init := func(i, j, k int) float64 { return float64(1000*k + 10*j + i) }
	p := unitParams(t)
	bc := halo.AllPeriodic(2)

	lo, err := NewCPUSlab(spec, cpuRegion(0, 5), bc, p, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer lo.Free()
	hi, err := NewCPUSlab(spec, cpuRegion(5, 12), bc, p, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer hi.Free()

	if err := lo.Seed(init); err != nil {
		t.Fatal(err)
	}
	if err := hi.Seed(init); err != nil {
		t.Fatal(err)
	}

	dst := grid.NewField(spec, 0, spec.Nz)
	if err := lo.Gather(dst); err != nil {
		t.Fatal(err)
	}
	if err := hi.Gather(dst); err != nil {
		t.Fatal(err)
	}

	for k := 0; k < spec.Nz; k++ {
		for j := 0; j < spec.Ny; j++ {
			for i := 0; i < spec.Nx; i++ {
				if v, _ := dst.At(i, j, k); v != init(i, j, k) {
					t.Fatalf("reassembled field wrong at (%d,%d,%d): %g", i, j, k, v)
				}
			}
		}
	}
}

func TestNewCPUSlab_RejectsWrongExecutor(t *testing.T) {
	region := partitions.SubRegion{ZLo: 0, ZHi: 4, Executor: partitions.ExecutorDevice}
	if _, err := NewCPUSlab(hostSpec(), region, halo.AllPeriodic(2), unitParams(t), 1); err == nil {
		t.Error("expected executor mismatch error")
	}
}
