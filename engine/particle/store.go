package particle

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-swarm/common"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// bufferUsage lets the same buffers feed stream-out capture, vertex fetch, storage access and readback.
var bufferUsage = wgpu.BufferUsageVertex | wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc

// BatchBuffers is one batch with its device storage, one buffer per attribute and role.
type BatchBuffers struct {
	Batch
	Positions  [Roles]resource.Buffer
	Velocities [Roles]resource.Buffer
}

// store is the implementation of the Store interface.
type store struct {
	label   string
	count   uint32
	batches []BatchBuffers
	// owned is the release stack, freed in reverse allocation order.
	owned     []resource.Buffer
	destroyed bool
	logger    *zap.Logger
}

// Store owns the double-buffered device state of a particle set, split into batches.
// Every buffer is allocated at construction and freed by Destroy.
type Store interface {
	// Count returns the number of particles across all batches.
	//
	// Returns:
	//   - uint32: the particle count
	Count() uint32

	// Batches returns the batches in particle order.
	//
	// Returns:
	//   - []BatchBuffers: the batches with their role buffers
	Batches() []BatchBuffers

	// Snapshot reads one role of every batch back from the device and joins it into a Set.
	//
	// Parameters:
	//   - r: the renderer that owns the buffers
	//   - role: the role to read, 0 or 1
	//
	// Returns:
	//   - Set: the particles in order
	//   - error: an error if the store is destroyed or a readback fails
	Snapshot(r renderer.Renderer, role int) (Set, error)

	// Destroy releases every buffer in reverse allocation order. Calling Destroy more than once is a no-op.
	Destroy()
}

var _ Store = &store{}

// StoreOption is a functional option applied to a store during construction via NewStore.
type StoreOption func(*store)

// WithLabel sets the label prefix of the store buffers.
func WithLabel(label string) StoreOption {
	return func(s *store) {
		s.label = label
	}
}

// WithLogger sets the logger used for allocation events.
func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore allocates the role buffers of every batch and seeds both roles of each with the
// matching slice of set. If any allocation fails, the buffers already allocated are released
// and the error is returned.
//
// Parameters:
//   - r: the renderer to allocate on
//   - set: the initial particles; its length must equal the sum of the batch counts
//   - batches: the partition of set
//   - options: variadic list of StoreOption functions
//
// Returns:
//   - Store: the new store
//   - error: a *renderer.AllocationError if the device refuses a buffer
func NewStore(r renderer.Renderer, set Set, batches []Batch, options ...StoreOption) (Store, error) {
	s := &store{
		label:  "particles",
		count:  uint32(set.Len()),
		logger: zap.NewNop(),
	}
	for _, opt := range options {
		opt(s)
	}

	var total uint32
	for _, b := range batches {
		total += b.ParticlesCount
	}
	if total != s.count {
		return nil, fmt.Errorf("store %s: batches cover %d particles, set has %d", s.label, total, s.count)
	}

	for i, b := range batches {
		part := set.Slice(b.Offset, b.ParticlesCount)
		positions := common.Vec2Bytes(part.Positions)
		velocities := common.Vec2Bytes(part.Velocities)

		bb := BatchBuffers{Batch: b}
		for role := 0; role < Roles; role++ {
			var err error
			if bb.Positions[role], err = s.alloc(r, fmt.Sprintf("%s %d position %d", s.label, i, role), positions); err != nil {
				s.Destroy()
				return nil, err
			}
			if bb.Velocities[role], err = s.alloc(r, fmt.Sprintf("%s %d velocity %d", s.label, i, role), velocities); err != nil {
				s.Destroy()
				return nil, err
			}
		}
		s.batches = append(s.batches, bb)
	}

	s.logger.Debug("particle store allocated",
		zap.String("label", s.label),
		zap.Uint32("particles", s.count),
		zap.Int("batches", len(s.batches)),
	)
	return s, nil
}

func (s *store) alloc(r renderer.Renderer, label string, contents []byte) (resource.Buffer, error) {
	buf, err := r.CreateBuffer(resource.BufferDescriptor{
		Label:    label,
		Size:     uint64(len(contents)),
		Usage:    bufferUsage,
		Contents: contents,
	})
	if err != nil {
		return nil, err
	}
	s.owned = append(s.owned, buf)
	return buf, nil
}

func (s *store) Count() uint32 {
	return s.count
}

func (s *store) Batches() []BatchBuffers {
	return s.batches
}

func (s *store) Snapshot(r renderer.Renderer, role int) (Set, error) {
	if s.destroyed {
		return Set{}, fmt.Errorf("store %s: destroyed", s.label)
	}
	if role < 0 || role >= Roles {
		return Set{}, fmt.Errorf("store %s: role %d out of range", s.label, role)
	}
	out := Set{
		Positions:  make([]common.Vec2, 0, s.count),
		Velocities: make([]common.Vec2, 0, s.count),
	}
	for _, b := range s.batches {
		size := uint64(b.ParticlesCount) * ElementSize
		pos, err := r.ReadBuffer(b.Positions[role], 0, size)
		if err != nil {
			return Set{}, err
		}
		vel, err := r.ReadBuffer(b.Velocities[role], 0, size)
		if err != nil {
			return Set{}, err
		}
		out.Positions = append(out.Positions, common.BytesVec2(pos)...)
		out.Velocities = append(out.Velocities, common.BytesVec2(vel)...)
	}
	return out, nil
}

func (s *store) Destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true
	for i := len(s.owned) - 1; i >= 0; i-- {
		s.owned[i].Release()
	}
	s.owned = nil
	s.batches = nil
}
