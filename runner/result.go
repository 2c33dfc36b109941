package runner

import (
	"gonum.org/v1/gonum/floats"
)

// Result is the finished run: the settled field in dense physical
// indices with the halo stripped, plus the phase timing table.
type Result struct {
	Nx, Ny, Nz int

	// Data holds Nx*Ny*Nz values, x fastest, z slowest
	Data []float64

	// Iterations actually completed; smaller than the configured
	// count only when the run was stopped cooperatively
	Iterations int

	Timings map[Phase]float64
}

// At reads the value at physical index (i,j,k). No bounds check; the
// result is a plain dense array for the reporting layer.
func (r *Result) At(i, j, k int) float64 {
	return r.Data[(k*r.Ny+j)*r.Nx+i]
}

// Sum returns the field total, the quantity conserved by the periodic
// diffusion operator.
func (r *Result) Sum() float64 { return floats.Sum(r.Data) }

// MinMax returns the field extrema.
func (r *Result) MinMax() (float64, float64) {
	return floats.Min(r.Data), floats.Max(r.Data)
}
