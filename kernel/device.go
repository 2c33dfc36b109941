package kernel

import (
	"fmt"
	"unsafe"

	"github.com/notargets/gocca"
	"github.com/veni-vidi-vici-dormivi/HPC4WC/grid"
	"github.com/veni-vidi-vici-dormivi/HPC4WC/halo"
	"github.com/veni-vidi-vici-dormivi/HPC4WC/partitions"
)

// DeviceSlab runs the interior update on an OCCA device. The slab's
// two time levels live in device memory for the whole run; only seam
// planes and the final readback cross the host boundary, through a
// staging buffer moved by the seamGather/seamScatter kernels.
type DeviceSlab struct {
	spec   grid.Spec
	region partitions.SubRegion
	bc     halo.Spec
	params grid.StencilParams
	bounds Bounds

	device *gocca.OCCADevice

	dCur, dNext *gocca.OCCAMemory
	dStage      *gocca.OCCAMemory

	kInterior  *gocca.OCCAKernel
	kBoundaryY *gocca.OCCAKernel
	kBoundaryX *gocca.OCCAKernel
	kBoundaryZ *gocca.OCCAKernel
	kGather    *gocca.OCCAKernel
	kScatter   *gocca.OCCAKernel

	// Host mirror used for seeding, readback and finiteness scans
	scratch *grid.Field

	atBottom, atTop bool
}

// NewDeviceSlab allocates device storage for region and compiles the
// slab's kernels. Allocation failures surface as ErrResourceExhausted
// before any iteration runs.
func NewDeviceSlab(device *gocca.OCCADevice, spec grid.Spec, region partitions.SubRegion,
	bc halo.Spec, params grid.StencilParams) (s *DeviceSlab, err error) {
	if device == nil {
		panic("kernel: nil device")
	}
	if region.Executor != partitions.ExecutorDevice {
		return nil, fmt.Errorf("kernel: region %v is not tagged for the device executor", region)
	}

	// The OCCA allocator aborts through the bindings on exhaustion.
	defer func() {
		if r := recover(); r != nil {
			s = nil
			err = fmt.Errorf("%w: %v", ErrResourceExhausted, r)
		}
	}()

	s = &DeviceSlab{
		spec:     spec,
		region:   region,
		bc:       bc,
		params:   params,
		bounds:   InteriorBounds(spec, region, bc),
		device:   device,
		scratch:  grid.NewField(spec, region.ZLo, region.Planes()),
		atBottom: region.ZLo == 0,
		atTop:    region.ZHi == spec.Nz,
	}

	// Zero-initialized time levels, matching the host slab
	zero := s.scratch.Data()
	bytes := int64(len(zero) * 8)
	s.dCur = device.Malloc(bytes, unsafe.Pointer(&zero[0]), nil)
	s.dNext = device.Malloc(bytes, unsafe.Pointer(&zero[0]), nil)
	s.dStage = device.Malloc(int64(s.EdgeLen()*8), nil, nil)
	if s.dCur == nil || s.dNext == nil || s.dStage == nil {
		s.Free()
		return nil, fmt.Errorf("%w: device slab of %d planes", ErrResourceExhausted, region.Planes())
	}

	if err := s.buildKernels(); err != nil {
		s.Free()
		return nil, err
	}
	return s, nil
}

// buildKernels compiles the slab's translation unit once per run.
func (s *DeviceSlab) buildKernels() error {
	source := deviceKernelSource(s.spec, s.region.Planes())
	for _, k := range []struct {
		name string
		dst  **gocca.OCCAKernel
	}{
		{"applyInterior", &s.kInterior},
		{"boundaryY", &s.kBoundaryY},
		{"boundaryX", &s.kBoundaryX},
		{"boundaryZ", &s.kBoundaryZ},
		{"seamGather", &s.kGather},
		{"seamScatter", &s.kScatter},
	} {
		kernel, err := s.buildKernel(source, k.name)
		if err != nil {
			return err
		}
		*k.dst = kernel
	}
	return nil
}

// buildKernel compiles one entry point, working around the OCCA bug
// where the OpenMP backend misses the default -O3 flag.
func (s *DeviceSlab) buildKernel(source, name string) (*gocca.OCCAKernel, error) {
	var kernel *gocca.OCCAKernel
	var err error
	if s.device.Mode() == "OpenMP" {
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		kernel, err = s.device.BuildKernelFromString(source, name, props)
	} else {
		kernel, err = s.device.BuildKernelFromString(source, name, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("kernel: failed to build %s: %w", name, err)
	}
	if kernel == nil {
		return nil, fmt.Errorf("kernel: build returned nil for %s", name)
	}
	return kernel, nil
}

func (s *DeviceSlab) Region() partitions.SubRegion { return s.region }

func (s *DeviceSlab) level(l Level) *gocca.OCCAMemory {
	if l == Cur {
		return s.dCur
	}
	return s.dNext
}

// Seed evaluates init on the host mirror and uploads it to Cur.
func (s *DeviceSlab) Seed(init func(i, j, k int) float64) error {
	s.scratch.Fill(init)
	data := s.scratch.Data()
	s.dCur.CopyFrom(unsafe.Pointer(&data[0]), int64(len(data)*8))
	return nil
}

// Step launches the interior kernel over the slab and waits for the
// device queue to drain, so the scheduler's barrier semantics hold.
func (s *DeviceSlab) Step() error {
	b := s.bounds
	err := s.kInterior.RunWithArgs(
		s.params.Dt, s.params.Cx, s.params.Cy, s.params.Cz,
		b.ILo, b.IHi, b.JLo, b.JHi, b.KLo, b.KHi,
		s.dCur, s.dNext,
	)
	if err != nil {
		return fmt.Errorf("kernel: interior launch on %v: %w", s.region, err)
	}
	s.device.Finish()
	return nil
}

// ApplyBoundary runs the three face kernels in queue order: y, then x
// over the padded j range, then the owned z faces.
func (s *DeviceSlab) ApplyBoundary(level Level) error {
	mem := s.level(level)

	if err := s.kBoundaryY.RunWithArgs(bcKind(s.bc.Y), s.bc.Y.Value, mem); err != nil {
		return fmt.Errorf("kernel: boundaryY on %v: %w", s.region, err)
	}
	if err := s.kBoundaryX.RunWithArgs(bcKind(s.bc.X), s.bc.X.Value, mem); err != nil {
		return fmt.Errorf("kernel: boundaryX on %v: %w", s.region, err)
	}

	botD, topD, selfWrap := 0, 0, 0
	if s.bc.Z.Kind == halo.Dirichlet {
		if s.atBottom {
			botD = 1
		}
		if s.atTop {
			topD = 1
		}
	} else if s.atBottom && s.atTop {
		selfWrap = 1
	}
	if botD != 0 || topD != 0 || selfWrap != 0 {
		if err := s.kBoundaryZ.RunWithArgs(botD, topD, selfWrap, s.bc.Z.Value, mem); err != nil {
			return fmt.Errorf("kernel: boundaryZ on %v: %w", s.region, err)
		}
	}
	s.device.Finish()
	return nil
}

func bcKind(bc halo.BC) int {
	if bc.Kind == halo.Dirichlet {
		return 1
	}
	return 0
}

// EdgeLen returns the seam transfer size in values.
func (s *DeviceSlab) EdgeLen() int { return s.spec.Halo * s.scratch.PlaneSize() }

// EdgePlanes gathers the edge planes into the staging buffer on the
// device, then copies the staging buffer out whole; no offset
// arithmetic crosses the host boundary.
func (s *DeviceSlab) EdgePlanes(level Level, side halo.Side, dst []float64) error {
	if len(dst) != s.EdgeLen() {
		return fmt.Errorf("kernel: staging buffer holds %d values, need %d", len(dst), s.EdgeLen())
	}
	kStart := edgeRangeStart(s.scratch, side, false)
	if err := s.kGather.RunWithArgs(kStart, s.level(level), s.dStage); err != nil {
		return fmt.Errorf("kernel: seam gather on %v: %w", s.region, err)
	}
	s.device.Finish()
	s.dStage.CopyTo(unsafe.Pointer(&dst[0]), int64(len(dst)*8))
	return nil
}

// SetGhost uploads the staged planes and scatters them into the ghost
// range at side.
func (s *DeviceSlab) SetGhost(level Level, side halo.Side, src []float64) error {
	if len(src) != s.EdgeLen() {
		return fmt.Errorf("kernel: staging buffer holds %d values, need %d", len(src), s.EdgeLen())
	}
	s.dStage.CopyFrom(unsafe.Pointer(&src[0]), int64(len(src)*8))
	kStart := edgeRangeStart(s.scratch, side, true)
	if err := s.kScatter.RunWithArgs(kStart, s.dStage, s.level(level)); err != nil {
		return fmt.Errorf("kernel: seam scatter on %v: %w", s.region, err)
	}
	s.device.Finish()
	return nil
}

// Swap exchanges the device-side time levels by handle only.
func (s *DeviceSlab) Swap() {
	s.dCur, s.dNext = s.dNext, s.dCur
}

// CheckFinite reads Next back into the host mirror and scans the
// owned interior. Readback makes this the expensive diagnostic; the
// scheduler only calls it when a check interval is configured.
func (s *DeviceSlab) CheckFinite() error {
	data := s.scratch.Data()
	s.dNext.CopyTo(unsafe.Pointer(&data[0]), int64(len(data)*8))
	return scanFinite(s.scratch, s.bounds, s.region.ZLo)
}

// Gather reads Cur back and writes the owned interior into the
// assembled field.
func (s *DeviceSlab) Gather(dst *grid.Field) error {
	data := s.scratch.Data()
	s.dCur.CopyTo(unsafe.Pointer(&data[0]), int64(len(data)*8))
	return gatherHost(s.scratch, s.region, dst)
}

// Free releases device memory and kernels. Safe on a partially
// constructed slab.
func (s *DeviceSlab) Free() {
	for _, m := range []*gocca.OCCAMemory{s.dCur, s.dNext, s.dStage} {
		if m != nil {
			m.Free()
		}
	}
	s.dCur, s.dNext, s.dStage = nil, nil, nil
	for _, k := range []*gocca.OCCAKernel{
		s.kInterior, s.kBoundaryY, s.kBoundaryX, s.kBoundaryZ, s.kGather, s.kScatter,
	} {
		if k != nil {
			k.Free()
		}
	}
	s.kInterior, s.kBoundaryY, s.kBoundaryX, s.kBoundaryZ, s.kGather, s.kScatter = nil, nil, nil, nil, nil, nil
}
