package kernel

import (
	"fmt"

	"github.com/veni-vidi-vici-dormivi/HPC4WC/grid"
)

// oklPreamble emits the compile-time geometry of one slab: padded
// extents, halo width and the flat addressing rule. Embedding these as
// defines keeps the device kernels on the same single addressing
// scheme as grid.Field.Idx.
func oklPreamble(spec grid.Spec, nzLoc int) string {
	return fmt.Sprintf(`
#define NX %d
#define NY %d
#define NZLOC %d
#define HALO %d
#define PNX (NX + 2*HALO)
#define PNY (NY + 2*HALO)
#define PLANE (PNX*PNY)
#define IDX(i, j, k) ((((k) + HALO)*PNY + ((j) + HALO))*PNX + ((i) + HALO))
`, spec.Nx, spec.Ny, nzLoc, spec.Halo)
}

// oklInterior is the accelerator rendition of ApplyInterior: one
// @outer lane per z-plane, @inner lanes across y, serial x rows. The
// update expression matches the host kernel term for term so the two
// variants agree bit for bit.
const oklInterior = `
@kernel void applyInterior(const double dt,
                           const double cx, const double cy, const double cz,
                           const int iLo, const int iHi,
                           const int jLo, const int jHi,
                           const int kLo, const int kHi,
                           const double *ucur, double *unext) {
	for (int k = 0; k < NZLOC; ++k; @outer) {
		for (int j = 0; j < NY; ++j; @inner) {
			if (k >= kLo && k < kHi && j >= jLo && j < jHi) {
				for (int i = iLo; i < iHi; ++i) {
					const int c = IDX(i, j, k);
					const double u = ucur[c];
					const double r = -2.0 * u;
					unext[c] = dt*((r + (ucur[c - PLANE] + ucur[c + PLANE]))*cz +
					               (r + (ucur[c - PNX] + ucur[c + PNX]))*cy +
					               (r + (ucur[c - 1] + ucur[c + 1]))*cx +
					               u/dt);
				}
			}
		}
	}
}`

// oklBoundaryY fills the halo of the faces normal to y, or pins them
// for Dirichlet. kind: 0 periodic, 1 Dirichlet.
const oklBoundaryY = `
@kernel void boundaryY(const int kind, const double v, double *u) {
	for (int k = 0; k < NZLOC; ++k; @outer) {
		for (int i = 0; i < NX; ++i; @inner) {
			if (kind == 0) {
				for (int g = 1; g <= HALO; ++g) {
					u[IDX(i, -g, k)] = u[IDX(i, NY - g, k)];
					u[IDX(i, NY - 1 + g, k)] = u[IDX(i, g - 1, k)];
				}
			} else {
				u[IDX(i, 0, k)] = v;
				u[IDX(i, NY - 1, k)] = v;
				for (int g = 1; g <= HALO; ++g) {
					u[IDX(i, -g, k)] = v;
					u[IDX(i, NY - 1 + g, k)] = v;
				}
			}
		}
	}
}`

// oklBoundaryX sweeps the padded j range so the corner halo picks up
// the values boundaryY just wrote. Must run after boundaryY.
const oklBoundaryX = `
@kernel void boundaryX(const int kind, const double v, double *u) {
	for (int k = 0; k < NZLOC; ++k; @outer) {
		for (int jj = 0; jj < PNY; ++jj; @inner) {
			const int j = jj - HALO;
			if (kind == 0) {
				for (int g = 1; g <= HALO; ++g) {
					u[IDX(-g, j, k)] = u[IDX(NX - g, j, k)];
					u[IDX(NX - 1 + g, j, k)] = u[IDX(g - 1, j, k)];
				}
			} else {
				if (j >= 0 && j < NY) {
					u[IDX(0, j, k)] = v;
					u[IDX(NX - 1, j, k)] = v;
				}
				for (int g = 1; g <= HALO; ++g) {
					u[IDX(-g, j, k)] = v;
					u[IDX(NX - 1 + g, j, k)] = v;
				}
			}
		}
	}
}`

// oklBoundaryZ handles the z faces this slab owns: Dirichlet pins the
// edge planes and fills the ghost planes; selfWrap closes a periodic
// axis when one slab spans the whole extent. Runs after boundaryX so
// wrapped planes carry fresh x/y halo values.
const oklBoundaryZ = `
@kernel void boundaryZ(const int botDirichlet, const int topDirichlet,
                       const int selfWrap, const double v, double *u) {
	for (int g = 0; g <= HALO; ++g; @outer) {
		for (int jj = 0; jj < PNY; ++jj; @inner) {
			const int j = jj - HALO;
			if (g == 0) {
				if (j >= 0 && j < NY) {
					for (int i = 0; i < NX; ++i) {
						if (botDirichlet) { u[IDX(i, j, 0)] = v; }
						if (topDirichlet) { u[IDX(i, j, NZLOC - 1)] = v; }
					}
				}
			} else {
				for (int i = -HALO; i < NX + HALO; ++i) {
					if (botDirichlet) { u[IDX(i, j, -g)] = v; }
					if (topDirichlet) { u[IDX(i, j, NZLOC - 1 + g)] = v; }
					if (selfWrap) {
						u[IDX(i, j, -g)] = u[IDX(i, j, NZLOC - g)];
						u[IDX(i, j, NZLOC - 1 + g)] = u[IDX(i, j, g - 1)];
					}
				}
			}
		}
	}
}`

// oklSeamGather copies HALO whole padded planes starting at local
// plane kStart into the staging buffer, increasing-z order.
const oklSeamGather = `
@kernel void seamGather(const int kStart, const double *u, double *stage) {
	for (int n = 0; n < HALO; ++n; @outer) {
		for (int jj = 0; jj < PNY; ++jj; @inner) {
			for (int ii = 0; ii < PNX; ++ii) {
				stage[(n*PNY + jj)*PNX + ii] = u[((kStart + n + HALO)*PNY + jj)*PNX + ii];
			}
		}
	}
}`

// oklSeamScatter is the inverse of seamGather.
const oklSeamScatter = `
@kernel void seamScatter(const int kStart, const double *stage, double *u) {
	for (int n = 0; n < HALO; ++n; @outer) {
		for (int jj = 0; jj < PNY; ++jj; @inner) {
			for (int ii = 0; ii < PNX; ++ii) {
				u[((kStart + n + HALO)*PNY + jj)*PNX + ii] = stage[(n*PNY + jj)*PNX + ii];
			}
		}
	}
}`

// deviceKernelSource assembles the full OKL translation unit for one
// slab shape.
func deviceKernelSource(spec grid.Spec, nzLoc int) string {
	return oklPreamble(spec, nzLoc) +
		oklInterior +
		oklBoundaryY +
		oklBoundaryX +
		oklBoundaryZ +
		oklSeamGather +
		oklSeamScatter
}
