package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer"
	"github.com/Carmen-Shannon/oxy-swarm/engine/style"
	"github.com/Carmen-Shannon/oxy-swarm/engine/swarm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// manualDisplay refreshes only when the test calls refresh.
type manualDisplay struct {
	frames  FrameQueue
	resizes ResizeNotifier
	width   int
	height  int
	now     time.Duration
}

func (d *manualDisplay) Size() (int, int) { return d.width, d.height }

func (d *manualDisplay) RequestFrame(fn func(time.Duration)) func() { return d.frames.Request(fn) }

func (d *manualDisplay) OnResize(fn func(int, int)) func() { return d.resizes.Subscribe(fn) }

func (d *manualDisplay) refresh(n int) {
	for range n {
		d.now += time.Second / 60
		d.frames.Flush(d.now)
	}
}

type fakeTarget struct {
	mu          sync.Mutex
	initialized bool
	frames      []time.Duration
	resizes     [][2]int
	failAt      int
	panicAt     int
}

func (f *fakeTarget) Initialized() bool { return f.initialized }

func (f *fakeTarget) OnResize(width, height int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes = append(f.resizes, [2]int{width, height})
}

func (f *fakeTarget) OnFrame(timestamp time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, timestamp)
	n := len(f.frames)
	if f.panicAt > 0 && n == f.panicAt {
		panic("device lost")
	}
	if f.failAt > 0 && n == f.failAt {
		return errors.New("device lost")
	}
	return nil
}

func (f *fakeTarget) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func newManual(t *testing.T, target *fakeTarget, options ...FrameSchedulerBuilderOption) (*manualDisplay, FrameScheduler) {
	d := &manualDisplay{width: 800, height: 600}
	opts := append([]FrameSchedulerBuilderOption{WithLogger(zaptest.NewLogger(t))}, options...)
	return d, NewFrameScheduler(d, target, opts...)
}

func TestStartRequiresInitializedTarget(t *testing.T) {
	target := &fakeTarget{}
	d, s := newManual(t, target)

	assert.ErrorIs(t, s.Start(), ErrNotInitialized)
	assert.Equal(t, StateIdle, s.State())
	d.refresh(3)
	assert.Zero(t, target.frameCount())
	assert.Zero(t, d.frames.Pending())
}

func TestStartResizesAndRunsOneFramePerRefresh(t *testing.T) {
	target := &fakeTarget{initialized: true}
	d, s := newManual(t, target)

	require.NoError(t, s.Start())
	assert.Equal(t, StateRunning, s.State())
	assert.Equal(t, [][2]int{{800, 600}}, target.resizes)
	assert.ErrorIs(t, s.Start(), ErrAlreadyRunning)

	d.refresh(5)
	assert.Equal(t, 5, target.frameCount())
	assert.EqualValues(t, 5, s.Frames())
	assert.Equal(t, 1, d.frames.Pending())
	assert.Equal(t, time.Second/60*5, target.frames[4])
}

func TestStopCancelsPendingFrame(t *testing.T) {
	target := &fakeTarget{initialized: true}
	d, s := newManual(t, target)

	require.NoError(t, s.Start())
	d.refresh(2)
	s.Stop()
	s.Stop()

	assert.Equal(t, StateIdle, s.State())
	assert.Zero(t, d.frames.Pending())
	d.refresh(3)
	assert.Equal(t, 2, target.frameCount())
	assert.NoError(t, s.Err())

	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
}

// leakyDisplay hands out callbacks whose cancel does nothing.
type leakyDisplay struct {
	manualDisplay
	callbacks []func(time.Duration)
}

func (d *leakyDisplay) RequestFrame(fn func(time.Duration)) func() {
	d.callbacks = append(d.callbacks, fn)
	return func() {}
}

func TestDispatchedCallbackAfterStopIsNoop(t *testing.T) {
	target := &fakeTarget{initialized: true}
	d := &leakyDisplay{manualDisplay: manualDisplay{width: 10, height: 10}}
	s := NewFrameScheduler(d, target)

	require.NoError(t, s.Start())
	require.Len(t, d.callbacks, 1)
	s.Stop()
	d.callbacks[0](0)
	assert.Zero(t, target.frameCount())

	require.NoError(t, s.Start())
	d.callbacks[0](0)
	assert.Zero(t, target.frameCount(), "a callback of an earlier run must not drive the new run")
	d.callbacks[1](0)
	assert.Equal(t, 1, target.frameCount())
}

func TestResize(t *testing.T) {
	target := &fakeTarget{initialized: true}
	d, s := newManual(t, target)

	assert.ErrorIs(t, s.Resize(1, 1), ErrResizeIgnored)
	d.resizes.Notify(2, 2)
	assert.Empty(t, target.resizes)

	require.NoError(t, s.Start())
	d.resizes.Notify(1024, 768)
	require.NoError(t, s.Resize(640, 480))
	assert.Equal(t, [][2]int{{800, 600}, {1024, 768}, {640, 480}}, target.resizes)

	s.Stop()
	d.resizes.Notify(3, 3)
	assert.Len(t, target.resizes, 3)
}

func TestFrameErrorStopsScheduler(t *testing.T) {
	for name, target := range map[string]*fakeTarget{
		"error": {initialized: true, failAt: 3},
		"panic": {initialized: true, panicAt: 3},
	} {
		t.Run(name, func(t *testing.T) {
			d, s := newManual(t, target)
			require.NoError(t, s.Start())
			d.refresh(10)

			assert.Equal(t, 3, target.frameCount())
			assert.Equal(t, StateIdle, s.State())
			assert.ErrorContains(t, s.Err(), "device lost")
			assert.Zero(t, d.frames.Pending())
		})
	}
}

func TestMaxFrames(t *testing.T) {
	target := &fakeTarget{initialized: true}
	d, s := newManual(t, target, WithMaxFrames(4))

	require.NoError(t, s.Start())
	d.refresh(10)
	assert.Equal(t, 4, target.frameCount())
	assert.Equal(t, StateIdle, s.State())

	require.NoError(t, s.Start())
	d.refresh(10)
	assert.Equal(t, 8, target.frameCount())
}

func TestFrameQueue(t *testing.T) {
	var q FrameQueue
	var got []int
	q.Request(func(time.Duration) { got = append(got, 1) })
	cancel := q.Request(func(time.Duration) { got = append(got, 2) })
	q.Request(func(time.Duration) {
		got = append(got, 3)
		q.Request(func(time.Duration) { got = append(got, 4) })
	})
	cancel()

	assert.Equal(t, 2, q.Flush(0))
	assert.Equal(t, []int{1, 3}, got)
	assert.Equal(t, 1, q.Pending())
	assert.Equal(t, 1, q.Flush(0))
	assert.Equal(t, []int{1, 3, 4}, got)
	assert.Zero(t, q.Flush(0))
}

func TestTickerDisplayDrivesPipeline(t *testing.T) {
	cfg := swarm.Config{
		Model:         renderer.ExecutionModelComputeDispatch,
		Style:         style.VisualStyleQuad,
		ParticleCount: 256,
		ParticleSpeed: 0.01,
		ParticleSize:  3,
		Background:    swarm.DefaultConfig().Background,
	}
	p := swarm.NewPipeline(cfg, nil,
		swarm.WithLogger(zaptest.NewLogger(t)),
		swarm.WithBackend(renderer.BackendTypeSoftware),
	)
	defer p.Dispose()

	d := NewTickerDisplay(48, 32, time.Millisecond)
	defer d.Close()
	s := NewFrameScheduler(d, p, WithMaxFrames(20), WithLogger(zaptest.NewLogger(t)))

	require.ErrorIs(t, s.Start(), ErrNotInitialized)
	require.NoError(t, p.Init(context.Background()))
	require.NoError(t, s.Start())

	w, h := p.Renderer().SurfaceSize()
	assert.Equal(t, 48, w)
	assert.Equal(t, 32, h)

	select {
	case <-s.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("scheduler did not finish")
	}
	require.NoError(t, s.Err())
	assert.EqualValues(t, 20, p.FrameCount())
}
