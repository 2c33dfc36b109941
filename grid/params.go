package grid

import "fmt"

// StencilParams carries the time step, physical spacing and diffusion
// coefficient for the forward-Euler update, plus the coefficients
// derived from them. Derived values are computed once at construction
// and shared verbatim by every kernel variant so the variants stay
// arithmetically identical.
type StencilParams struct {
	Dt         float64
	Hx, Hy, Hz float64
	Alpha      float64 // diffusion coefficient
	Iterations int

	// Derived: Alpha/h² per axis
	Cx, Cy, Cz float64
}

// NewStencilParams validates the inputs and computes the derived
// coefficients.
func NewStencilParams(dt, hx, hy, hz, alpha float64, iterations int) (StencilParams, error) {
	if dt <= 0 {
		return StencilParams{}, fmt.Errorf("time step must be positive, got %g", dt)
	}
	if hx <= 0 || hy <= 0 || hz <= 0 {
		return StencilParams{}, fmt.Errorf("grid spacing must be positive, got (%g,%g,%g)", hx, hy, hz)
	}
	if alpha <= 0 {
		return StencilParams{}, fmt.Errorf("diffusion coefficient must be positive, got %g", alpha)
	}
	if iterations < 0 {
		return StencilParams{}, fmt.Errorf("iteration count must be non-negative, got %d", iterations)
	}
	return StencilParams{
		Dt:         dt,
		Hx:         hx,
		Hy:         hy,
		Hz:         hz,
		Alpha:      alpha,
		Iterations: iterations,
		Cx:         alpha / (hx * hx),
		Cy:         alpha / (hy * hy),
		Cz:         alpha / (hz * hz),
	}, nil
}

// StableDt returns the largest forward-Euler time step stable for the
// given spacing and diffusion coefficient.
func StableDt(hx, hy, hz, alpha float64) float64 {
	return 1.0 / (2.0 * alpha * (1.0/(hx*hx) + 1.0/(hy*hy) + 1.0/(hz*hz)))
}
