package grid

import "fmt"

// View is a bounds-checked accessor restricted to a contiguous range of
// owned planes plus the halo those planes are allowed to read. Kernels
// address their assigned slice through a view so a stray index cannot
// reach another region's storage.
type View struct {
	f        *Field
	zLo, zHi int // owned plane range, local coordinates, half-open
}

// View restricts the field to local planes [zLo, zHi). The range must
// lie within the slab's owned planes.
func (f *Field) View(zLo, zHi int) (*View, error) {
	if zLo < 0 || zHi > f.NzLoc || zLo >= zHi {
		return nil, fmt.Errorf("%w: view planes [%d,%d) in slab of %d planes",
			ErrOutOfRange, zLo, zHi, f.NzLoc)
	}
	return &View{f: f, zLo: zLo, zHi: zHi}, nil
}

// ZRange returns the view's owned plane range in local coordinates.
func (v *View) ZRange() (int, int) { return v.zLo, v.zHi }

func (v *View) inRange(i, j, k int) bool {
	h := v.f.Halo
	return i >= -h && i < v.f.Nx+h &&
		j >= -h && j < v.f.Ny+h &&
		k >= v.zLo-h && k < v.zHi+h
}

// At reads (i,j,k), failing with ErrOutOfRange when the index leaves
// the view's planes plus halo.
func (v *View) At(i, j, k int) (float64, error) {
	if !v.inRange(i, j, k) {
		return 0, fmt.Errorf("%w: (%d,%d,%d) in view planes [%d,%d) halo %d",
			ErrOutOfRange, i, j, k, v.zLo, v.zHi, v.f.Halo)
	}
	return v.f.data[v.f.Idx(i, j, k)], nil
}

// Set writes (i,j,k) with the same bounds policy as At. Writes to ghost
// planes are permitted only through the halo updater, so Set restricts
// to the owned plane range.
func (v *View) Set(i, j, k int, x float64) error {
	h := v.f.Halo
	if i < -h || i >= v.f.Nx+h || j < -h || j >= v.f.Ny+h || k < v.zLo || k >= v.zHi {
		return fmt.Errorf("%w: write (%d,%d,%d) in view planes [%d,%d)",
			ErrOutOfRange, i, j, k, v.zLo, v.zHi)
	}
	v.f.data[v.f.Idx(i, j, k)] = x
	return nil
}
