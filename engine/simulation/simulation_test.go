package simulation

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-swarm/engine/particle"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	r     renderer.Renderer
	store particle.Store
	set   particle.Set
}

func newFixture(t *testing.T, count uint32, limits resource.Limits, workgroupSize uint32) fixture {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, nil,
		renderer.WithLogger(zaptest.NewLogger(t)),
		renderer.WithSoftwareOptions(renderer.WithSoftwareLimits(limits)),
	)
	require.NoError(t, err)
	t.Cleanup(r.Release)

	set := particle.Seed(count, 0.02, particle.NewRand(99))
	batches, err := particle.Partition(count, particle.ElementSize, limits.MaxStorageBufferBindingSize, limits.MaxComputeWorkgroupsPerDimension, workgroupSize)
	require.NoError(t, err)
	store, err := particle.NewStore(r, set, batches)
	require.NoError(t, err)
	t.Cleanup(store.Destroy)
	return fixture{r: r, store: store, set: set}
}

func strategies(t *testing.T) map[string]func() (Strategy, uint32) {
	logger := zaptest.NewLogger(t)
	return map[string]func() (Strategy, uint32){
		"stream-out": func() (Strategy, uint32) { return NewStreamOut(WithLogger(logger)), 1 },
		"compute":    func() (Strategy, uint32) { return NewComputeDispatch(WithLogger(logger)), particle.WorkgroupSize },
	}
}

func TestStepMatchesHostIntegrator(t *testing.T) {
	limits := resource.Limits{MaxStorageBufferBindingSize: 8 * 256 * 2}
	for name, build := range strategies(t) {
		t.Run(name, func(t *testing.T) {
			sim, wg := build()
			f := newFixture(t, 1500, limits, wg)
			require.NoError(t, sim.Setup(f.r, f.store))
			defer sim.Release()

			want := f.set.Clone()
			scratch := f.set.Clone()
			for tt := 0; tt < 50; tt++ {
				require.NoError(t, sim.Step(tt%2))
				particle.Step(scratch, want)
				want, scratch = scratch, want
			}

			got, err := f.store.Snapshot(f.r, 0)
			require.NoError(t, err)
			for i := range want.Positions {
				assert.InDelta(t, want.Positions[i].X, got.Positions[i].X, 1e-5, "particle %d", i)
				assert.InDelta(t, want.Positions[i].Y, got.Positions[i].Y, 1e-5, "particle %d", i)
				assert.InDelta(t, want.Velocities[i].X, got.Velocities[i].X, 1e-5, "particle %d", i)
				assert.InDelta(t, want.Velocities[i].Y, got.Velocities[i].Y, 1e-5, "particle %d", i)
			}
		})
	}
}

func TestStepWritesOnlyNextRole(t *testing.T) {
	for name, build := range strategies(t) {
		t.Run(name, func(t *testing.T) {
			sim, wg := build()
			f := newFixture(t, 300, resource.Limits{}, wg)
			require.NoError(t, sim.Setup(f.r, f.store))
			defer sim.Release()

			require.NoError(t, sim.Step(0))

			current, err := f.store.Snapshot(f.r, 0)
			require.NoError(t, err)
			assert.Equal(t, f.set, current, "the read role must be untouched")

			want := f.set.Clone()
			particle.Step(want, f.set)
			next, err := f.store.Snapshot(f.r, 1)
			require.NoError(t, err)
			assert.Equal(t, want, next)

			require.NoError(t, sim.Step(1))
			after, err := f.store.Snapshot(f.r, 1)
			require.NoError(t, err)
			assert.Equal(t, want, after, "stepping role 1 must not write role 1")
		})
	}
}

func TestComputeDispatchPerBatch(t *testing.T) {
	limits := resource.Limits{MaxStorageBufferBindingSize: 8 * 256, MaxComputeWorkgroupsPerDimension: 65535}
	f := newFixture(t, 1000, limits, particle.WorkgroupSize)
	require.Len(t, f.store.Batches(), 4)

	sim := NewComputeDispatch()
	require.NoError(t, sim.Setup(f.r, f.store))
	defer sim.Release()
	require.NoError(t, sim.Step(0))

	stats := f.r.Backend().(renderer.SoftwareBackend).Stats()
	assert.Equal(t, 4, stats.Dispatches)
	assert.Equal(t, 4*particle.WorkgroupSize, stats.Invocations)
}

func TestStepRequiresSetup(t *testing.T) {
	for name, build := range strategies(t) {
		t.Run(name, func(t *testing.T) {
			sim, _ := build()
			assert.Error(t, sim.Step(0))
		})
	}
}

func TestStepRejectsBadRole(t *testing.T) {
	f := newFixture(t, 10, resource.Limits{}, 1)
	sim := NewStreamOut()
	require.NoError(t, sim.Setup(f.r, f.store))
	defer sim.Release()

	assert.Error(t, sim.Step(2))
	assert.Error(t, sim.Step(-1))
}

func TestReleaseIsIdempotent(t *testing.T) {
	for name, build := range strategies(t) {
		t.Run(name, func(t *testing.T) {
			sim, wg := build()
			f := newFixture(t, 100, resource.Limits{}, wg)
			require.NoError(t, sim.Setup(f.r, f.store))

			sim.Release()
			sim.Release()

			assert.Empty(t, f.r.Pipelines())
			assert.Error(t, sim.Step(0))
		})
	}
}

func TestSetupOnce(t *testing.T) {
	f := newFixture(t, 10, resource.Limits{}, 1)
	sim := NewComputeDispatch(WithPipelineKey("custom"))
	require.NoError(t, sim.Setup(f.r, f.store))
	defer sim.Release()

	assert.NotNil(t, f.r.Pipeline("custom"))
	assert.Equal(t, renderer.ExecutionModelComputeDispatch, sim.Model())
	assert.Error(t, sim.Setup(f.r, f.store), "a strategy is set up once")
}
