package kernel

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/veni-vidi-vici-dormivi/HPC4WC/grid"
	"github.com/veni-vidi-vici-dormivi/HPC4WC/halo"
	"github.com/veni-vidi-vici-dormivi/HPC4WC/partitions"
)

// jBlock is the y-tile width of the host sweep. One tile of x-rows
// stays resident in cache while the three j-neighbour rows are hot.
const jBlock = 16

// CPUSlab runs the interior update on a team of host workers, each
// assigned a contiguous bucket of z-planes.
type CPUSlab struct {
	spec   grid.Spec
	region partitions.SubRegion
	bc     halo.Spec
	params grid.StencilParams
	bounds Bounds

	buf      *grid.Buffer
	planeMap *partitions.PlaneMap

	atBottom, atTop bool
}

// NewCPUSlab allocates the double-buffered slab for region and sizes
// the worker team. workers <= 0 selects GOMAXPROCS.
func NewCPUSlab(spec grid.Spec, region partitions.SubRegion, bc halo.Spec,
	params grid.StencilParams, workers int) (*CPUSlab, error) {
	if region.Executor != partitions.ExecutorCPU {
		return nil, fmt.Errorf("kernel: region %v is not tagged for the cpu executor", region)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	s := &CPUSlab{
		spec:     spec,
		region:   region,
		bc:       bc,
		params:   params,
		bounds:   InteriorBounds(spec, region, bc),
		buf:      grid.Allocate(spec, region.ZLo, region.Planes()),
		atBottom: region.ZLo == 0,
		atTop:    region.ZHi == spec.Nz,
	}
	s.planeMap = partitions.NewPlaneMap(workers, s.bounds.KHi-s.bounds.KLo)
	return s, nil
}

func (s *CPUSlab) Region() partitions.SubRegion { return s.region }

func (s *CPUSlab) field(level Level) *grid.Field {
	if level == Cur {
		return s.buf.Cur
	}
	return s.buf.Next
}

// Seed evaluates init over the owned cells of the current level.
func (s *CPUSlab) Seed(init func(i, j, k int) float64) error {
	s.buf.Cur.Fill(init)
	return nil
}

// Step sweeps the interior box, one plane bucket per worker. The
// buckets write disjoint planes of Next, so the team needs no locks.
func (s *CPUSlab) Step() error {
	var wg sync.WaitGroup
	for w := 0; w < s.planeMap.ParallelDegree; w++ {
		lo, hi := s.planeMap.GetBucketRange(w)
		wg.Add(1)
		go func(kLo, kHi int) {
			defer wg.Done()
			b := s.bounds
			b.KLo, b.KHi = kLo, kHi
			for jb := b.JLo; jb < b.JHi; jb += jBlock {
				tb := b
				tb.JLo = jb
				tb.JHi = min(jb+jBlock, b.JHi)
				ApplyInterior(s.buf.Cur, s.buf.Next, tb, s.params)
			}
		}(s.bounds.KLo+lo, s.bounds.KLo+hi)
	}
	wg.Wait()
	return nil
}

// ApplyBoundary enforces the outer faces this slab owns.
func (s *CPUSlab) ApplyBoundary(level Level) error {
	return halo.ApplyBoundary(s.field(level), s.bc, s.atBottom, s.atTop)
}

// EdgeLen returns the seam transfer size in values.
func (s *CPUSlab) EdgeLen() int { return s.spec.Halo * s.buf.Cur.PlaneSize() }

// EdgePlanes copies the halo-width interior planes adjacent to side
// out of the chosen level, in increasing-z order.
func (s *CPUSlab) EdgePlanes(level Level, side halo.Side, dst []float64) error {
	f := s.field(level)
	return copyPlanes(f, edgeRangeStart(f, side, false), s.spec.Halo, dst, false)
}

// SetGhost writes the ghost planes at side of the chosen level.
func (s *CPUSlab) SetGhost(level Level, side halo.Side, src []float64) error {
	f := s.field(level)
	return copyPlanes(f, edgeRangeStart(f, side, true), s.spec.Halo, src, true)
}

// edgeRangeStart returns the first local plane of an edge or ghost
// run at the given side.
func edgeRangeStart(f *grid.Field, side halo.Side, ghost bool) int {
	switch {
	case side == halo.Bottom && ghost:
		return -f.Halo
	case side == halo.Bottom:
		return 0
	case ghost: // top ghost
		return f.NzLoc
	default: // top edge
		return f.NzLoc - f.Halo
	}
}

// copyPlanes moves count whole padded planes between a field and a
// staging buffer. write selects the direction.
func copyPlanes(f *grid.Field, kStart, count int, buf []float64, write bool) error {
	ps := f.PlaneSize()
	if len(buf) != count*ps {
		return fmt.Errorf("kernel: staging buffer holds %d values, need %d", len(buf), count*ps)
	}
	for n := 0; n < count; n++ {
		p, err := f.Plane(kStart + n)
		if err != nil {
			return err
		}
		if write {
			copy(p, buf[n*ps:(n+1)*ps])
		} else {
			copy(buf[n*ps:(n+1)*ps], p)
		}
	}
	return nil
}

// Swap exchanges the time levels.
func (s *CPUSlab) Swap() { s.buf.Swap() }

// CheckFinite scans the interior just written to Next.
func (s *CPUSlab) CheckFinite() error {
	return scanFinite(s.buf.Next, s.bounds, s.region.ZLo)
}

// Gather copies the owned interior of Cur into the assembled field.
func (s *CPUSlab) Gather(dst *grid.Field) error {
	return gatherHost(s.buf.Cur, s.region, dst)
}

// gatherHost writes a slab's owned interior into the global field at
// its region's planes. Shared with the device slab's readback path.
func gatherHost(src *grid.Field, region partitions.SubRegion, dst *grid.Field) error {
	if dst.Nx != src.Nx || dst.Ny != src.Ny {
		return fmt.Errorf("kernel: gather into %dx%d field from %dx%d slab",
			dst.Nx, dst.Ny, src.Nx, src.Ny)
	}
	sd := src.Data()
	dd := dst.Data()
	for k := 0; k < src.NzLoc; k++ {
		for j := 0; j < src.Ny; j++ {
			si := src.Idx(0, j, k)
			di := dst.Idx(0, j, k+region.ZLo-dst.Z0)
			copy(dd[di:di+src.Nx], sd[si:si+src.Nx])
		}
	}
	return nil
}

// Free releases nothing for the host slab; present to satisfy Slab.
func (s *CPUSlab) Free() {}
