// Package swarm binds a particle store, a simulation strategy and a render strategy to one
// acquired device, and exposes the init, resize, frame and dispose calls a frame scheduler drives.
package swarm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-swarm/engine/particle"
	"github.com/Carmen-Shannon/oxy-swarm/engine/profiler"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer"
	"github.com/Carmen-Shannon/oxy-swarm/engine/simulation"
	"github.com/Carmen-Shannon/oxy-swarm/engine/style"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotInitialized is returned by frame operations on a pipeline whose Init has not succeeded.
var ErrNotInitialized = errors.New("pipeline not initialized")

// ErrDisposed is returned by Init on a pipeline that has been disposed.
var ErrDisposed = errors.New("pipeline disposed")

// Pipeline owns one device, one particle store and one strategy of each kind for a fixed Config.
type Pipeline interface {
	// ID returns the instance id attached to every log entry of this pipeline.
	//
	// Returns:
	//   - uuid.UUID: the id
	ID() uuid.UUID

	// Config returns the configuration the pipeline was built with.
	//
	// Returns:
	//   - Config: the configuration
	Config() Config

	// Init acquires the device, seeds and uploads the particles, and sets up both strategies.
	// The frame counter starts at 0. On failure everything acquired so far is released and the
	// pipeline stays uninitialized.
	//
	// Parameters:
	//   - ctx: cancels initialization between stages
	//
	// Returns:
	//   - error: wraps a *renderer.DeviceUnavailableError, *renderer.AllocationError or
	//     *renderer.ShaderCompileError for device failures, ErrInvalidConfig for a bad config
	Init(ctx context.Context) error

	// Initialized reports whether Init succeeded and Dispose has not been called since.
	//
	// Returns:
	//   - bool: true if frames may be issued
	Initialized() bool

	// OnResize resizes the drawable surface. Particle buffers are untouched. Ignored before Init
	// and for a zero-area size, such as a minimized window, which keeps the last size.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	OnResize(width, height int)

	// OnFrame runs one simulation step on role tt%2, draws role 1-tt%2, presents and then
	// increments the frame counter. The counter does not advance when the frame fails.
	//
	// Parameters:
	//   - timestamp: the display time of the frame; the simulation is frame-stepped and does not use it
	//
	// Returns:
	//   - error: ErrNotInitialized before Init, or the device error of the failed step
	OnFrame(timestamp time.Duration) error

	// FrameCount returns the frame counter tt.
	//
	// Returns:
	//   - uint64: the number of completed frames
	FrameCount() uint64

	// Snapshot reads back the role written by the last frame, the seed before any frame.
	//
	// Returns:
	//   - particle.Set: a host copy of every particle
	//   - error: ErrNotInitialized before Init, or a readback error
	Snapshot() (particle.Set, error)

	// Renderer returns the acquired renderer, nil before Init and after Dispose.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// Dispose releases every resource in reverse acquisition order. It is safe after a failed
	// Init and calling it more than once is a no-op.
	Dispose()
}

type swarmPipeline struct {
	mu sync.Mutex

	id  uuid.UUID
	cfg Config

	surface         renderer.Surface
	backend         *renderer.BackendType
	rendererOptions []renderer.RendererBuilderOption
	styleOptions    []style.StrategyBuilderOption
	seed            uint64

	logger   *zap.Logger
	profiler *profiler.Profiler

	r     renderer.Renderer
	store particle.Store
	sim   simulation.Strategy
	style style.Strategy

	// releases holds the release of every acquired resource in acquisition order.
	releases []func()

	tt          uint64
	width       int
	height      int
	initialized bool
	disposed    bool
}

var _ Pipeline = &swarmPipeline{}

// NewPipeline creates an uninitialized Pipeline for cfg drawing into surface.
//
// Parameters:
//   - cfg: the pipeline configuration
//   - surface: the drawable surface, nil for the software backend
//   - options: variadic list of PipelineBuilderOption functions
//
// Returns:
//   - Pipeline: the pipeline, ready for Init
func NewPipeline(cfg Config, surface renderer.Surface, options ...PipelineBuilderOption) Pipeline {
	p := &swarmPipeline{
		id:      uuid.New(),
		cfg:     cfg,
		surface: surface,
		seed:    uint64(time.Now().UnixNano()),
		logger:  zap.NewNop(),
	}
	for _, opt := range options {
		opt(p)
	}
	if p.profiler == nil {
		p.profiler = profiler.NewProfiler(profiler.WithLogger(p.logger))
	}
	p.logger = p.logger.With(
		zap.Stringer("pipeline", p.id),
		zap.Stringer("model", cfg.Model),
		zap.Stringer("style", cfg.Style),
	)
	return p
}

func (p *swarmPipeline) ID() uuid.UUID {
	return p.id
}

func (p *swarmPipeline) Config() Config {
	return p.cfg
}

func (p *swarmPipeline) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.disposed:
		return ErrDisposed
	case p.initialized:
		return fmt.Errorf("pipeline %s: already initialized", p.id)
	}

	start := time.Now()
	err := p.init(ctx)
	elapsed := time.Since(start)
	p.profiler.PipelineInit(p.cfg.Model.String(), p.cfg.Style.String(), p.cfg.ParticleCount, elapsed, err)
	if err != nil {
		p.releaseAll()
		p.logger.Error("pipeline init failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		return fmt.Errorf("init %s %s pipeline: %w", p.cfg.Model, p.cfg.Style, err)
	}

	p.tt = 0
	p.initialized = true
	p.logger.Info("pipeline initialized",
		zap.Uint32("particles", p.cfg.ParticleCount),
		zap.Int("batches", len(p.store.Batches())),
		zap.Stringer("backend", p.r.BackendType()),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

func (p *swarmPipeline) init(ctx context.Context) error {
	if err := p.cfg.Validate(); err != nil {
		return err
	}

	sim, st, err := strategies(p.cfg, p.logger, p.styleOptions)
	if err != nil {
		return err
	}

	opts := append([]renderer.RendererBuilderOption{renderer.WithLogger(p.logger)}, p.rendererOptions...)
	r, err := renderer.Acquire(p.cfg.Model, p.surface, p.backend, opts...)
	if err != nil {
		return err
	}
	p.r = r
	p.acquired(func() {
		r.Release()
		p.r = nil
	})
	if err := ctx.Err(); err != nil {
		return err
	}

	batches, err := p.partition(r)
	if err != nil {
		return err
	}
	set := particle.Seed(p.cfg.ParticleCount, p.cfg.ParticleSpeed, particle.NewRand(p.seed))
	store, err := particle.NewStore(r, set, batches, particle.WithLogger(p.logger))
	if err != nil {
		return err
	}
	p.store = store
	p.acquired(func() {
		store.Destroy()
		p.store = nil
	})
	if err := ctx.Err(); err != nil {
		return err
	}

	p.sim = sim
	p.acquired(func() {
		sim.Release()
		p.sim = nil
	})
	if err := sim.Setup(r, store); err != nil {
		return err
	}

	p.style = st
	p.acquired(func() {
		st.Release()
		p.style = nil
	})
	if err := st.Setup(r, store); err != nil {
		return err
	}

	p.width, p.height = r.SurfaceSize()
	return nil
}

// partition splits the particles by the device limits that bind the execution model. Compute
// batches are workgroup aligned and bounded by the storage binding and dispatch limits; stream-out
// batches are bounded only by the buffer size.
func (p *swarmPipeline) partition(r renderer.Renderer) ([]particle.Batch, error) {
	limits := r.Limits()
	if p.cfg.Model == renderer.ExecutionModelComputeDispatch {
		return particle.Partition(p.cfg.ParticleCount, particle.ElementSize,
			limits.MaxStorageBufferBindingSize, limits.MaxComputeWorkgroupsPerDimension, particle.WorkgroupSize)
	}
	return particle.Partition(p.cfg.ParticleCount, particle.ElementSize, limits.MaxBufferSize, 0, 1)
}

func (p *swarmPipeline) acquired(release func()) {
	p.releases = append(p.releases, release)
}

func (p *swarmPipeline) releaseAll() {
	for i := len(p.releases) - 1; i >= 0; i-- {
		p.releases[i]()
	}
	p.releases = nil
	p.initialized = false
}

func (p *swarmPipeline) Initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}

func (p *swarmPipeline) OnResize(width, height int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return
	}
	if width <= 0 || height <= 0 {
		p.logger.Debug("zero-area resize ignored", zap.Int("width", width), zap.Int("height", height))
		return
	}
	p.r.Resize(width, height)
	p.width, p.height = p.r.SurfaceSize()
}

func (p *swarmPipeline) OnFrame(_ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return ErrNotInitialized
	}

	start := time.Now()
	role := int(p.tt % particle.Roles)
	if err := p.sim.Step(role); err != nil {
		return fmt.Errorf("frame %d simulate: %w", p.tt, err)
	}

	if err := p.r.BeginFrame(p.cfg.Background); err != nil {
		return fmt.Errorf("frame %d begin: %w", p.tt, err)
	}
	drawErr := p.style.Draw(1-role, p.width, p.height)
	if err := errors.Join(drawErr, p.r.EndFrame()); err != nil {
		return fmt.Errorf("frame %d draw: %w", p.tt, err)
	}
	p.r.Present()

	p.tt++
	p.profiler.FrameDone(p.cfg.Model.String(), p.cfg.Style.String(), time.Since(start))
	p.profiler.Tick()
	return nil
}

func (p *swarmPipeline) FrameCount() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tt
}

func (p *swarmPipeline) Snapshot() (particle.Set, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return particle.Set{}, ErrNotInitialized
	}
	return p.store.Snapshot(p.r, int(p.tt%particle.Roles))
}

func (p *swarmPipeline) Renderer() renderer.Renderer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.r
}

func (p *swarmPipeline) Dispose() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return
	}
	p.disposed = true
	p.releaseAll()
	p.profiler.PipelineDisposed()
	p.logger.Info("pipeline disposed", zap.Uint64("frames", p.tt))
}
