// Package kernel provides the interior stencil update behind one slab
// interface with two interchangeable executors: a multi-threaded host
// kernel and an OCCA accelerator kernel. Both satisfy the same
// numerical contract; the scheduler never branches on executor kind
// inside the loop.
package kernel

import (
	"errors"
	"fmt"
	"math"

	"github.com/veni-vidi-vici-dormivi/HPC4WC/grid"
	"github.com/veni-vidi-vici-dormivi/HPC4WC/halo"
	"github.com/veni-vidi-vici-dormivi/HPC4WC/partitions"
)

// ErrResourceExhausted reports a failed host or device allocation at
// setup. It surfaces before any iteration runs.
var ErrResourceExhausted = errors.New("kernel: resource allocation failed")

// ErrNumericalFault reports a NaN or Inf found in a freshly computed
// interior. Time stepping has no partial-failure recovery, so the run
// aborts.
var ErrNumericalFault = errors.New("kernel: non-finite value in interior update")

// Level selects one of the two time levels of a slab.
type Level uint8

const (
	// Cur is the settled state read by the interior update
	Cur Level = iota

	// Next receives the interior update's writes
	Next
)

// Slab is one executor's share of the domain: a sub-region of z-planes
// with its own double-buffered storage. The scheduler drives both
// variants through this interface only.
type Slab interface {
	Region() partitions.SubRegion

	// Seed evaluates init over the owned cells of the current level,
	// in global coordinates.
	Seed(init func(i, j, k int) float64) error

	// Step applies the interior update, reading Cur and writing the
	// owned interior of Next. Domain-edge cells under a Dirichlet face
	// are excluded; ApplyBoundary sets them afterwards.
	Step() error

	// ApplyBoundary enforces the outer-domain boundary conditions on
	// the chosen level's faces owned by this slab.
	ApplyBoundary(level Level) error

	// EdgeLen, EdgePlanes and SetGhost are the seam-transfer surface;
	// see halo.Exchanger for the plane ordering.
	EdgeLen() int
	EdgePlanes(level Level, side halo.Side, dst []float64) error
	SetGhost(level Level, side halo.Side, src []float64) error

	// Swap exchanges the Cur/Next roles in O(1).
	Swap()

	// CheckFinite scans the owned interior of Next for NaN/Inf,
	// returning ErrNumericalFault on the first hit.
	CheckFinite() error

	// Gather copies the owned interior of Cur into the assembled
	// global field.
	Gather(dst *grid.Field) error

	Free()
}

// Bounds is the half-open local index box the interior update sweeps.
// Dirichlet faces shrink it by one cell so the pinned edge layer is
// never written by the stencil.
type Bounds struct {
	ILo, IHi int
	JLo, JHi int
	KLo, KHi int
}

// InteriorBounds derives the sweep box for a slab from the boundary
// spec and the slab's position in the global domain. Exclusions in z
// apply only at the global edges; the seam is interior by definition.
func InteriorBounds(spec grid.Spec, region partitions.SubRegion, bc halo.Spec) Bounds {
	b := Bounds{IHi: spec.Nx, JHi: spec.Ny, KHi: region.Planes()}
	if bc.X.Kind == halo.Dirichlet {
		b.ILo, b.IHi = 1, spec.Nx-1
	}
	if bc.Y.Kind == halo.Dirichlet {
		b.JLo, b.JHi = 1, spec.Ny-1
	}
	if bc.Z.Kind == halo.Dirichlet {
		if region.ZLo == 0 {
			b.KLo = 1
		}
		if region.ZHi == spec.Nz {
			b.KHi = region.Planes() - 1
		}
	}
	return b
}

// scanFinite walks the interior box of f looking for NaN/Inf. z0
// converts the local plane index to global coordinates for the report.
func scanFinite(f *grid.Field, b Bounds, z0 int) error {
	data := f.Data()
	for k := b.KLo; k < b.KHi; k++ {
		for j := b.JLo; j < b.JHi; j++ {
			c := f.Idx(b.ILo, j, k)
			for i := b.ILo; i < b.IHi; i++ {
				if v := data[c]; math.IsNaN(v) || math.IsInf(v, 0) {
					return fmt.Errorf("%w: %g at (%d,%d,%d)", ErrNumericalFault, v, i, j, k+z0)
				}
				c++
			}
		}
	}
	return nil
}

// ApplyInterior computes the forward-Euler diffusion update
//
//	out = dt*((-2u+u[k-1]+u[k+1])*cz + (-2u+u[j-1]+u[j+1])*cy +
//	          (-2u+u[i-1]+u[i+1])*cx + u/dt)
//
// for every cell inside b, reading in and writing only out. The term
// order is fixed; the accelerator kernel mirrors it exactly so the two
// variants agree bit for bit.
func ApplyInterior(in, out *grid.Field, b Bounds, p grid.StencilParams) {
	src := in.Data()
	dst := out.Data()
	for k := b.KLo; k < b.KHi; k++ {
		for j := b.JLo; j < b.JHi; j++ {
			c := in.Idx(b.ILo, j, k)
			down := in.Idx(b.ILo, j, k-1)
			up := in.Idx(b.ILo, j, k+1)
			south := in.Idx(b.ILo, j-1, k)
			north := in.Idx(b.ILo, j+1, k)
			for i := b.ILo; i < b.IHi; i++ {
				u := src[c]
				r := -2.0 * u
				dst[c] = p.Dt * ((r+(src[down]+src[up]))*p.Cz +
					(r+(src[south]+src[north]))*p.Cy +
					(r+(src[c-1]+src[c+1]))*p.Cx +
					u/p.Dt)
				c++
				down++
				up++
				south++
				north++
			}
		}
	}
}
