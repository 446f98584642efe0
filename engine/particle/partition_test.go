package particle

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertPartition(t *testing.T, count uint32, batches []Batch, workgroupSize uint32) {
	t.Helper()
	var offset uint32
	for i, b := range batches {
		assert.Equal(t, offset, b.Offset, "batch %d offset", i)
		assert.Positive(t, b.ParticlesCount, "batch %d empty", i)
		assert.GreaterOrEqual(t, uint64(b.DispatchSize)*uint64(workgroupSize), uint64(b.ParticlesCount), "batch %d dispatch", i)
		if i < len(batches)-1 {
			assert.Zero(t, b.ParticlesCount%workgroupSize, "batch %d alignment", i)
		}
		offset += b.ParticlesCount
	}
	assert.Equal(t, count, offset)
}

func TestPartitionCoversCount(t *testing.T) {
	cases := []struct {
		name        string
		count       uint32
		maxBindable uint64
		maxDispatch uint32
		batches     int
	}{
		{name: "unconstrained", count: 1_000_000, batches: 1},
		{name: "binding limited", count: 10_000, maxBindable: 8 * 256 * 4, batches: 10},
		{name: "dispatch limited", count: 10_000, maxDispatch: 3, batches: 14},
		{name: "both limits", count: 5_000, maxBindable: 8 * 256 * 8, maxDispatch: 2, batches: 10},
		{name: "exact fit", count: 2048, maxBindable: 8 * 256 * 4, batches: 2},
		{name: "tail", count: 1, maxDispatch: 1, batches: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			batches, err := Partition(tc.count, ElementSize, tc.maxBindable, tc.maxDispatch, WorkgroupSize)
			require.NoError(t, err)
			assert.Len(t, batches, tc.batches)
			assertPartition(t, tc.count, batches, WorkgroupSize)
		})
	}
}

func TestPartitionLastBatchTakesRemainder(t *testing.T) {
	batches, err := Partition(1000, ElementSize, 8*256*2, 0, WorkgroupSize)
	require.NoError(t, err)
	require.Len(t, batches, 2)

	assert.Equal(t, Batch{Offset: 0, ParticlesCount: 512, DispatchSize: 2}, batches[0])
	assert.Equal(t, Batch{Offset: 512, ParticlesCount: 488, DispatchSize: 2}, batches[1])
}

func TestPartitionIsDeterministic(t *testing.T) {
	a, err := Partition(123_457, ElementSize, 1<<16, 7, WorkgroupSize)
	require.NoError(t, err)
	b, err := Partition(123_457, ElementSize, 1<<16, 7, WorkgroupSize)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPartitionZeroCount(t *testing.T) {
	batches, err := Partition(0, ElementSize, 1024, 4, WorkgroupSize)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestPartitionWithoutAlignment(t *testing.T) {
	batches, err := Partition(10, ElementSize, 32, 0, 1)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Equal(t, uint32(2), batches[2].ParticlesCount)
	assertPartition(t, 10, batches, 1)
}

func TestPartitionLimitTooSmall(t *testing.T) {
	_, err := Partition(1000, ElementSize, 1024, 0, WorkgroupSize)

	require.ErrorIs(t, err, renderer.ErrAllocation)
	var ae *renderer.AllocationError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, uint64(1024), ae.Limit)
	assert.Equal(t, uint64(ElementSize*WorkgroupSize), ae.Size)
}

func TestMaxDispatch(t *testing.T) {
	limit, constrained := MaxDispatch(ElementSize, 0, 0, WorkgroupSize)
	assert.False(t, constrained)
	assert.Zero(t, limit)

	limit, constrained = MaxDispatch(ElementSize, 8*256*100, 65535, WorkgroupSize)
	assert.True(t, constrained)
	assert.Equal(t, uint64(100), limit)

	limit, _ = MaxDispatch(ElementSize, 8*256*100, 16, WorkgroupSize)
	assert.Equal(t, uint64(16), limit)
}
