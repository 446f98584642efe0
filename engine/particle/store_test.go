package particle

import (
	"errors"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newSoftware(t *testing.T, opts ...renderer.SoftwareOption) renderer.Renderer {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, nil,
		renderer.WithLogger(zaptest.NewLogger(t)),
		renderer.WithSoftwareOptions(opts...),
	)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func stats(r renderer.Renderer) renderer.SoftwareStats {
	return r.Backend().(renderer.SoftwareBackend).Stats()
}

func TestStoreSeedsBothRoles(t *testing.T) {
	r := newSoftware(t)
	set := Seed(700, 0.01, NewRand(11))
	batches, err := Partition(700, ElementSize, 8*256*1, 0, WorkgroupSize)
	require.NoError(t, err)
	require.Len(t, batches, 3)

	s, err := NewStore(r, set, batches, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer s.Destroy()

	assert.Equal(t, uint32(700), s.Count())
	assert.Len(t, s.Batches(), 3)
	assert.Equal(t, 3*Roles*2, stats(r).Live())

	for role := 0; role < Roles; role++ {
		snap, err := s.Snapshot(r, role)
		require.NoError(t, err)
		assert.Equal(t, set, snap, "role %d", role)
	}
}

func TestStoreDestroyIsIdempotent(t *testing.T) {
	r := newSoftware(t)
	set := Seed(300, 0.01, NewRand(2))
	batches, err := Partition(300, ElementSize, 0, 0, WorkgroupSize)
	require.NoError(t, err)

	s, err := NewStore(r, set, batches)
	require.NoError(t, err)

	s.Destroy()
	s.Destroy()

	st := stats(r)
	assert.Equal(t, 0, st.Live())
	assert.Zero(t, st.DoubleReleases)

	_, err = s.Snapshot(r, 0)
	assert.Error(t, err)
}

func TestStoreReleasesPartialAllocation(t *testing.T) {
	r := newSoftware(t, renderer.WithSoftwareAllocator(func(desc resource.BufferDescriptor) error {
		if strings.HasPrefix(desc.Label, "particles 1 velocity") {
			return errors.New("out of memory")
		}
		return nil
	}))
	set := Seed(600, 0.01, NewRand(5))
	batches, err := Partition(600, ElementSize, 8*256*1, 0, WorkgroupSize)
	require.NoError(t, err)

	_, err = NewStore(r, set, batches)

	require.ErrorIs(t, err, renderer.ErrAllocation)
	st := stats(r)
	assert.Positive(t, st.BuffersCreated)
	assert.Equal(t, 0, st.Live())
}

func TestStoreRejectsMismatchedBatches(t *testing.T) {
	r := newSoftware(t)
	set := Seed(10, 0.01, NewRand(5))

	_, err := NewStore(r, set, []Batch{{Offset: 0, ParticlesCount: 5, DispatchSize: 1}})
	assert.Error(t, err)
	assert.Equal(t, 0, stats(r).Live())
}

func TestStoreSnapshotRoleRange(t *testing.T) {
	r := newSoftware(t)
	set := Seed(4, 0.01, NewRand(5))
	batches, err := Partition(4, ElementSize, 0, 0, WorkgroupSize)
	require.NoError(t, err)
	s, err := NewStore(r, set, batches)
	require.NoError(t, err)
	defer s.Destroy()

	_, err = s.Snapshot(r, 2)
	assert.Error(t, err)
}
