package particle

import (
	"github.com/Carmen-Shannon/oxy-swarm/common"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer"
)

const (
	// WorkgroupSize is the invocation count of one compute workgroup.
	WorkgroupSize = 256

	// ElementSize is the byte size of one particle attribute, a vec2<f32>.
	ElementSize = common.Vec2Size
)

// Batch is a contiguous range of a particle set sized to fit one dispatch.
type Batch struct {
	// Offset is the index of the first particle of the batch in the full set.
	Offset uint32
	// ParticlesCount is the number of particles in the batch.
	ParticlesCount uint32
	// DispatchSize is the number of workgroups that cover the batch.
	DispatchSize uint32
}

// MaxDispatch returns the largest workgroup count a single batch may use and whether any limit
// applies at all. A zero limit means the device imposes no such constraint.
func MaxDispatch(elementSize uint32, maxBindableBytes uint64, maxDispatchUnits, workgroupSize uint32) (uint64, bool) {
	var limit uint64
	constrained := false
	if maxBindableBytes > 0 {
		limit = maxBindableBytes / uint64(elementSize) / uint64(workgroupSize)
		constrained = true
	}
	if maxDispatchUnits > 0 {
		if !constrained || uint64(maxDispatchUnits) < limit {
			limit = uint64(maxDispatchUnits)
		}
		constrained = true
	}
	return limit, constrained
}

// Partition greedily splits count particles into batches. Each batch but the last covers exactly
// the maximum dispatch size, so its particle count is a multiple of workgroupSize; the last batch
// takes the remainder. The result depends only on the arguments.
//
// Parameters:
//   - count: the number of particles
//   - elementSize: the byte size of one element of the largest per-particle buffer
//   - maxBindableBytes: the largest byte range a single binding may cover, 0 for no limit
//   - maxDispatchUnits: the largest workgroup count per dispatch, 0 for no limit
//   - workgroupSize: invocations per workgroup, 0 or 1 when the model needs no alignment
//
// Returns:
//   - []Batch: the batches in particle order, empty when count is 0
//   - error: a *renderer.AllocationError when the limits cannot fit even one workgroup
func Partition(count, elementSize uint32, maxBindableBytes uint64, maxDispatchUnits, workgroupSize uint32) ([]Batch, error) {
	workgroupSize = max(workgroupSize, 1)
	elementSize = max(elementSize, 1)

	maxDispatch, constrained := MaxDispatch(elementSize, maxBindableBytes, maxDispatchUnits, workgroupSize)
	if constrained && maxDispatch == 0 {
		return nil, &renderer.AllocationError{
			Label: "particle batch",
			Size:  uint64(elementSize) * uint64(workgroupSize),
			Limit: maxBindableBytes,
		}
	}

	var batches []Batch
	var offset uint32
	left := uint64(count)
	for left > 0 {
		dispatch := common.CeilDiv(left, uint64(workgroupSize))
		if constrained {
			dispatch = min(dispatch, maxDispatch)
		}
		n := min(left, dispatch*uint64(workgroupSize))
		batches = append(batches, Batch{
			Offset:         offset,
			ParticlesCount: uint32(n),
			DispatchSize:   uint32(dispatch),
		})
		offset += uint32(n)
		left -= n
	}
	return batches, nil
}
