package halo

import (
	"fmt"

	"github.com/veni-vidi-vici-dormivi/HPC4WC/grid"
)

// ApplyBoundary enforces the outer-domain boundary conditions on one
// slab. Periodic faces receive wrapped values in the halo layer;
// Dirichlet faces have their domain-edge cells pinned and their halo
// filled with the same constant. atBottom/atTop say whether the slab
// touches the global z edges: z faces between slabs belong to the seam
// exchange, not to this pass.
//
// Order matters at the corners: y faces are filled from the interior
// first, then x faces sweep the padded j range so the corner halo
// holds consistently wrapped values.
func ApplyBoundary(f *grid.Field, spec Spec, atBottom, atTop bool) error {
	if spec.Width != f.Halo {
		return fmt.Errorf("halo: spec width %d does not match field halo %d", spec.Width, f.Halo)
	}
	h := f.Halo
	data := f.Data()

	// Faces normal to y
	for k := 0; k < f.NzLoc; k++ {
		switch spec.Y.Kind {
		case Periodic:
			for g := 1; g <= h; g++ {
				for i := 0; i < f.Nx; i++ {
					data[f.Idx(i, -g, k)] = data[f.Idx(i, f.Ny-g, k)]
					data[f.Idx(i, f.Ny-1+g, k)] = data[f.Idx(i, g-1, k)]
				}
			}
		case Dirichlet:
			v := spec.Y.Value
			for i := 0; i < f.Nx; i++ {
				data[f.Idx(i, 0, k)] = v
				data[f.Idx(i, f.Ny-1, k)] = v
			}
			for g := 1; g <= h; g++ {
				for i := 0; i < f.Nx; i++ {
					data[f.Idx(i, -g, k)] = v
					data[f.Idx(i, f.Ny-1+g, k)] = v
				}
			}
		}
	}

	// Faces normal to x, sweeping the padded j range to cover corners
	for k := 0; k < f.NzLoc; k++ {
		switch spec.X.Kind {
		case Periodic:
			for j := -h; j < f.Ny+h; j++ {
				for g := 1; g <= h; g++ {
					data[f.Idx(-g, j, k)] = data[f.Idx(f.Nx-g, j, k)]
					data[f.Idx(f.Nx-1+g, j, k)] = data[f.Idx(g-1, j, k)]
				}
			}
		case Dirichlet:
			v := spec.X.Value
			for j := 0; j < f.Ny; j++ {
				data[f.Idx(0, j, k)] = v
				data[f.Idx(f.Nx-1, j, k)] = v
			}
			for j := -h; j < f.Ny+h; j++ {
				for g := 1; g <= h; g++ {
					data[f.Idx(-g, j, k)] = v
					data[f.Idx(f.Nx-1+g, j, k)] = v
				}
			}
		}
	}

	// Faces normal to z, only where this slab owns the domain edge
	switch spec.Z.Kind {
	case Dirichlet:
		v := spec.Z.Value
		if atBottom {
			for j := 0; j < f.Ny; j++ {
				for i := 0; i < f.Nx; i++ {
					data[f.Idx(i, j, 0)] = v
				}
			}
			for g := 1; g <= h; g++ {
				fillPlane(f, -g, v)
			}
		}
		if atTop {
			for j := 0; j < f.Ny; j++ {
				for i := 0; i < f.Nx; i++ {
					data[f.Idx(i, j, f.NzLoc-1)] = v
				}
			}
			for g := 1; g <= h; g++ {
				fillPlane(f, f.NzLoc-1+g, v)
			}
		}
	case Periodic:
		// When one slab spans the whole z extent the wrap closes on
		// itself; split slabs close it through the wrap exchange.
		if atBottom && atTop {
			for g := 1; g <= h; g++ {
				src, _ := f.Plane(f.NzLoc - g)
				dst, _ := f.Plane(-g)
				copy(dst, src)
				src, _ = f.Plane(g - 1)
				dst, _ = f.Plane(f.NzLoc - 1 + g)
				copy(dst, src)
			}
		}
	}
	return nil
}

func fillPlane(f *grid.Field, k int, v float64) {
	p, err := f.Plane(k)
	if err != nil {
		return
	}
	for i := range p {
		p[i] = v
	}
}
