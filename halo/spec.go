// Package halo owns the ghost-cell bookkeeping: boundary-condition
// specs, outer-face application, and the plane exchange across the
// CPU/accelerator seam.
package halo

import "fmt"

// BCKind selects the boundary condition applied to a pair of faces.
type BCKind uint8

const (
	// Periodic wraps values from the opposite face into the halo
	Periodic BCKind = iota

	// Dirichlet pins the domain-edge cells to a fixed value
	Dirichlet
)

func (k BCKind) String() string {
	switch k {
	case Periodic:
		return "periodic"
	case Dirichlet:
		return "dirichlet"
	}
	return fmt.Sprintf("bc(%d)", uint8(k))
}

// BC is the boundary condition for the two faces normal to one axis.
// Value is used only by Dirichlet.
type BC struct {
	Kind  BCKind
	Value float64
}

// Spec fixes the halo width and the per-axis boundary conditions for
// a run.
type Spec struct {
	Width   int
	X, Y, Z BC
}

// FixedValue returns a spec with all six faces pinned to v, the
// convention of the reference diffusion setup.
func FixedValue(width int, v float64) Spec {
	bc := BC{Kind: Dirichlet, Value: v}
	return Spec{Width: width, X: bc, Y: bc, Z: bc}
}

// AllPeriodic returns a spec with every axis periodic.
func AllPeriodic(width int) Spec {
	return Spec{Width: width}
}

// Side names one end of the split axis in slab-local terms.
type Side uint8

const (
	// Bottom is the low-z end of a slab
	Bottom Side = iota

	// Top is the high-z end
	Top
)

func (s Side) String() string {
	if s == Bottom {
		return "bottom"
	}
	return "top"
}
