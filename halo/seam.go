package halo

import "fmt"

// Exchanger is the plane-transfer surface a slab exposes for ghost
// updates. EdgePlanes copies the halo-width interior planes adjacent
// to a side out of the slab's next buffer; SetGhost writes the ghost
// planes at a side. Planes travel in increasing-z order and are exact
// copies, padding included.
type Exchanger interface {
	// EdgeLen returns the transfer size in values: width * plane size.
	EdgeLen() int

	EdgePlanes(side Side, dst []float64) error
	SetGhost(side Side, src []float64) error
}

// Exchange moves edge planes between the two slabs of a split run. It
// owns the staging buffers so per-iteration exchanges allocate nothing.
type Exchange struct {
	up, down []float64
}

// NewExchange sizes the staging buffers for slabs whose Exchanger
// reports edgeLen values per transfer.
func NewExchange(edgeLen int) *Exchange {
	return &Exchange{
		up:   make([]float64, edgeLen),
		down: make([]float64, edgeLen),
	}
}

// Seam makes the two slabs mutually consistent across the split: the
// top edge of the lower slab becomes the bottom ghost of the upper
// slab and vice versa. Must run only after both interior updates of
// the iteration have completed; exchanging earlier publishes stale
// planes, which is a correctness bug rather than a performance one.
func (e *Exchange) Seam(lo, hi Exchanger) error {
	if lo.EdgeLen() != len(e.up) || hi.EdgeLen() != len(e.down) {
		return fmt.Errorf("halo: edge length mismatch (%d, %d vs staging %d)",
			lo.EdgeLen(), hi.EdgeLen(), len(e.up))
	}
	if err := lo.EdgePlanes(Top, e.up); err != nil {
		return fmt.Errorf("halo: seam gather from lower slab: %w", err)
	}
	if err := hi.EdgePlanes(Bottom, e.down); err != nil {
		return fmt.Errorf("halo: seam gather from upper slab: %w", err)
	}
	if err := hi.SetGhost(Bottom, e.up); err != nil {
		return fmt.Errorf("halo: seam scatter to upper slab: %w", err)
	}
	if err := lo.SetGhost(Top, e.down); err != nil {
		return fmt.Errorf("halo: seam scatter to lower slab: %w", err)
	}
	return nil
}

// Wrap closes a periodic z axis across the split: the bottom edge of
// the lower slab feeds the top ghost of the upper slab and vice versa.
func (e *Exchange) Wrap(lo, hi Exchanger) error {
	if err := lo.EdgePlanes(Bottom, e.up); err != nil {
		return fmt.Errorf("halo: wrap gather from lower slab: %w", err)
	}
	if err := hi.EdgePlanes(Top, e.down); err != nil {
		return fmt.Errorf("halo: wrap gather from upper slab: %w", err)
	}
	if err := hi.SetGhost(Top, e.up); err != nil {
		return fmt.Errorf("halo: wrap scatter to upper slab: %w", err)
	}
	if err := lo.SetGhost(Bottom, e.down); err != nil {
		return fmt.Errorf("halo: wrap scatter to lower slab: %w", err)
	}
	return nil
}
