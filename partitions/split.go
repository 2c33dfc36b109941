package partitions

import (
	"errors"
	"fmt"
)

// Executor identifies which compute resource owns a sub-region.
type Executor uint8

const (
	// ExecutorCPU runs the multi-threaded host kernel
	ExecutorCPU Executor = iota

	// ExecutorDevice runs the OCCA accelerator kernel
	ExecutorDevice
)

func (e Executor) String() string {
	switch e {
	case ExecutorCPU:
		return "cpu"
	case ExecutorDevice:
		return "device"
	}
	return fmt.Sprintf("executor(%d)", uint8(e))
}

// ErrInvalidPartition reports a split point that leaves one executor
// with no planes. The caller should select a single-device run mode
// instead of a degenerate partition.
var ErrInvalidPartition = errors.New("partitions: split point outside (0, nz)")

// SubRegion is a contiguous half-open range of z-planes [ZLo, ZHi)
// assigned to one executor. The two regions produced by Split are
// disjoint and cover the full interior.
type SubRegion struct {
	ZLo, ZHi int
	Executor Executor
}

// Planes returns the number of planes owned by the region.
func (r SubRegion) Planes() int { return r.ZHi - r.ZLo }

func (r SubRegion) String() string {
	return fmt.Sprintf("%s[%d,%d)", r.Executor, r.ZLo, r.ZHi)
}

// Split assigns the first cpuPlanes z-planes to the CPU executor and
// the rest to the accelerator. Fails with ErrInvalidPartition when
// either side would be empty.
func Split(nz, cpuPlanes int) (cpu, dev SubRegion, err error) {
	if cpuPlanes <= 0 || cpuPlanes >= nz {
		return SubRegion{}, SubRegion{},
			fmt.Errorf("%w: %d of %d planes to cpu", ErrInvalidPartition, cpuPlanes, nz)
	}
	cpu = SubRegion{ZLo: 0, ZHi: cpuPlanes, Executor: ExecutorCPU}
	dev = SubRegion{ZLo: cpuPlanes, ZHi: nz, Executor: ExecutorDevice}
	return cpu, dev, nil
}

// PlaneMap distributes a region's planes over a team of workers in
// near-equal buckets, the remainder spread one plane at a time over
// the leading buckets.
type PlaneMap struct {
	ParallelDegree int
	nPlanes        int
}

// NewPlaneMap builds a map of nPlanes over at most parallelDegree
// workers. The degree is clamped so no bucket is empty.
func NewPlaneMap(parallelDegree, nPlanes int) *PlaneMap {
	if parallelDegree > nPlanes {
		parallelDegree = nPlanes
	}
	if parallelDegree < 1 {
		parallelDegree = 1
	}
	return &PlaneMap{ParallelDegree: parallelDegree, nPlanes: nPlanes}
}

// GetBucketRange returns the half-open plane range of one bucket.
func (pm *PlaneMap) GetBucketRange(bucket int) (lo, hi int) {
	base := pm.nPlanes / pm.ParallelDegree
	rem := pm.nPlanes % pm.ParallelDegree
	lo = bucket*base + min(bucket, rem)
	hi = lo + base
	if bucket < rem {
		hi++
	}
	return lo, hi
}
