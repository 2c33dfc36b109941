package runner

import (
	"fmt"

	"github.com/notargets/gocca"
	"github.com/veni-vidi-vici-dormivi/HPC4WC/grid"
	"github.com/veni-vidi-vici-dormivi/HPC4WC/halo"
)

// Mode selects how the domain is executed.
type Mode uint8

const (
	// ModeHybrid splits the domain between the CPU and the accelerator
	ModeHybrid Mode = iota

	// ModeCPUOnly runs the whole domain on the host team
	ModeCPUOnly

	// ModeDeviceOnly runs the whole domain on the accelerator
	ModeDeviceOnly
)

func (m Mode) String() string {
	switch m {
	case ModeHybrid:
		return "hybrid"
	case ModeCPUOnly:
		return "cpu-only"
	case ModeDeviceOnly:
		return "device-only"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Config describes one run. The caller owns field initialization and
// result consumption; the engine owns everything between.
type Config struct {
	Grid     grid.Spec
	Params   grid.StencilParams
	Boundary halo.Spec

	// CPUPlanes is the number of z-planes assigned to the host team
	// in ModeHybrid. Must lie strictly inside (0, Nz); degenerate
	// assignments are selected through Mode instead.
	CPUPlanes int

	Mode Mode

	// Workers sizes the host team; <= 0 selects GOMAXPROCS
	Workers int

	// Device executes the accelerator sub-region. Required unless
	// Mode is ModeCPUOnly.
	Device *gocca.OCCADevice

	// Init is evaluated at every interior cell to seed the field;
	// nil leaves the field zero
	Init func(i, j, k int) float64

	// CheckInterval scans freshly computed interiors for NaN/Inf
	// every n iterations; 0 disables the scan
	CheckInterval int

	// OnIteration, when set, is called after each completed iteration
	// with the iteration index and a timing snapshot. Used by the
	// progress monitor; failures there must not touch the loop.
	OnIteration func(iter int, timings map[Phase]float64)
}

func (c Config) validate() error {
	if err := c.Grid.Validate(); err != nil {
		return err
	}
	if c.Boundary.Width != c.Grid.Halo {
		return fmt.Errorf("runner: boundary width %d does not match grid halo %d",
			c.Boundary.Width, c.Grid.Halo)
	}
	if c.Mode != ModeCPUOnly && c.Device == nil {
		return fmt.Errorf("runner: mode %v requires a device", c.Mode)
	}
	return nil
}
