package grid

import (
	"errors"
	"fmt"
)

// ErrOutOfRange reports an access outside the padded extent of a field.
// It always indicates an integration defect, not a recoverable condition.
var ErrOutOfRange = errors.New("grid: index outside padded extent")

// Spec describes the logical grid: interior extents, halo width and
// physical spacing. The halo width is fixed for a run and is the same
// on every axis.
type Spec struct {
	Nx, Ny, Nz int
	Halo       int

	// Physical spacing along each axis
	Hx, Hy, Hz float64
}

// Validate checks extents and halo for basic sanity.
func (s Spec) Validate() error {
	if s.Nx <= 0 || s.Ny <= 0 || s.Nz <= 0 {
		return fmt.Errorf("grid extents must be positive, got (%d,%d,%d)", s.Nx, s.Ny, s.Nz)
	}
	if s.Halo <= 0 {
		return fmt.Errorf("halo width must be positive, got %d", s.Halo)
	}
	if s.Hx <= 0 || s.Hy <= 0 || s.Hz <= 0 {
		return fmt.Errorf("grid spacing must be positive, got (%g,%g,%g)", s.Hx, s.Hy, s.Hz)
	}
	return nil
}

// Field is one time level of the scalar field over a slab of z-planes.
// Storage is a flat array with halo padding on every axis, x fastest and
// z slowest so that one z-plane is a contiguous block of PlaneSize values.
//
// Logical index (i,j,k) maps to storage ((k+h)*pny+(j+h))*pnx+(i+h),
// with k local to the slab: owned planes are [0,NzLoc), ghost planes
// [-h,0) and [NzLoc,NzLoc+h). Z0 records the global plane index of
// local plane 0 so slabs can be reassembled deterministically.
type Field struct {
	Nx, Ny int // interior x/y extents
	Z0     int // global index of the first owned plane
	NzLoc  int // owned z-planes in this slab
	Halo   int

	pnx, pny, pnz int // padded extents
	data          []float64
}

// NewField allocates a zero-initialized slab of nzLoc planes whose first
// owned plane sits at global index z0. Panics on non-positive extents:
// slab shapes are fixed at setup and a bad shape is a programming error.
func NewField(spec Spec, z0, nzLoc int) *Field {
	if nzLoc <= 0 {
		panic(fmt.Sprintf("grid: slab must own at least one plane, got %d", nzLoc))
	}
	if err := spec.Validate(); err != nil {
		panic("grid: " + err.Error())
	}
	h := spec.Halo
	f := &Field{
		Nx:    spec.Nx,
		Ny:    spec.Ny,
		Z0:    z0,
		NzLoc: nzLoc,
		Halo:  h,
		pnx:   spec.Nx + 2*h,
		pny:   spec.Ny + 2*h,
		pnz:   nzLoc + 2*h,
	}
	f.data = make([]float64, f.pnx*f.pny*f.pnz)
	return f
}

// PlaneSize returns the number of values in one padded z-plane.
func (f *Field) PlaneSize() int { return f.pnx * f.pny }

// PaddedLen returns the total number of stored values.
func (f *Field) PaddedLen() int { return len(f.data) }

// Idx maps a logical index to its storage position. No bounds check:
// this is the single addressing rule shared by every kernel variant,
// and the checked accessors below are built on it.
func (f *Field) Idx(i, j, k int) int {
	h := f.Halo
	return ((k+h)*f.pny+(j+h))*f.pnx + (i + h)
}

// InRange reports whether (i,j,k) lies inside the padded extent,
// ghost cells included.
func (f *Field) InRange(i, j, k int) bool {
	h := f.Halo
	return i >= -h && i < f.Nx+h &&
		j >= -h && j < f.Ny+h &&
		k >= -h && k < f.NzLoc+h
}

// At returns the value at (i,j,k), failing with ErrOutOfRange when the
// index leaves the padded extent.
func (f *Field) At(i, j, k int) (float64, error) {
	if !f.InRange(i, j, k) {
		return 0, fmt.Errorf("%w: (%d,%d,%d) in slab %dx%dx%d halo %d",
			ErrOutOfRange, i, j, k, f.Nx, f.Ny, f.NzLoc, f.Halo)
	}
	return f.data[f.Idx(i, j, k)], nil
}

// Set writes the value at (i,j,k) with the same bounds policy as At.
func (f *Field) Set(i, j, k int, v float64) error {
	if !f.InRange(i, j, k) {
		return fmt.Errorf("%w: (%d,%d,%d) in slab %dx%dx%d halo %d",
			ErrOutOfRange, i, j, k, f.Nx, f.Ny, f.NzLoc, f.Halo)
	}
	f.data[f.Idx(i, j, k)] = v
	return nil
}

// Data exposes the flat padded storage for kernel loops and staging
// copies. Layout is fixed by Idx.
func (f *Field) Data() []float64 { return f.data }

// Plane returns the contiguous storage of local plane k, ghost planes
// included (k in [-halo, NzLoc+halo)). Halo exchange works in whole
// planes, so this is its unit of transfer.
func (f *Field) Plane(k int) ([]float64, error) {
	h := f.Halo
	if k < -h || k >= f.NzLoc+h {
		return nil, fmt.Errorf("%w: plane %d in slab of %d planes halo %d",
			ErrOutOfRange, k, f.NzLoc, h)
	}
	ps := f.PlaneSize()
	lo := (k + h) * ps
	return f.data[lo : lo+ps], nil
}

// Fill evaluates init at every owned cell of the slab, in global
// coordinates. Ghost cells are left untouched.
func (f *Field) Fill(init func(i, j, k int) float64) {
	if init == nil {
		return
	}
	for k := 0; k < f.NzLoc; k++ {
		for j := 0; j < f.Ny; j++ {
			for i := 0; i < f.Nx; i++ {
				f.data[f.Idx(i, j, k)] = init(i, j, k+f.Z0)
			}
		}
	}
}

// Buffer owns the two time levels of a slab. Cur holds the settled
// state read by the interior update, Next receives its writes. The
// roles trade places at each iteration boundary by pointer swap only.
type Buffer struct {
	Cur, Next *Field
}

// Allocate produces the double-buffered slab for one sub-region. Both
// levels are zero-initialized and have identical shape.
func Allocate(spec Spec, z0, nzLoc int) *Buffer {
	return &Buffer{
		Cur:  NewField(spec, z0, nzLoc),
		Next: NewField(spec, z0, nzLoc),
	}
}

// Swap exchanges the current/next roles in O(1). No data moves.
func (b *Buffer) Swap() {
	b.Cur, b.Next = b.Next, b.Cur
}
