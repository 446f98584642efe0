package profiler

import (
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Profiler tracks frame rate and memory statistics for performance monitoring and exports the
// swarm's frame and pipeline metrics to prometheus.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	mu sync.Mutex

	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	lastFPS        float64

	now      func() time.Time
	logger   *zap.Logger
	registry prometheus.Registerer
	gatherer prometheus.Gatherer

	frames       *prometheus.CounterVec
	frameSeconds prometheus.Histogram
	initSeconds  *prometheus.HistogramVec
	initFailures *prometheus.CounterVec
	particles    prometheus.Gauge
}

// ProfilerOption is a functional option applied to a Profiler during construction.
type ProfilerOption func(*Profiler)

// WithLogger sets the logger the periodic stats are written to.
func WithLogger(logger *zap.Logger) ProfilerOption {
	return func(p *Profiler) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithInterval sets how often Tick logs. Defaults to 1 second.
func WithInterval(d time.Duration) ProfilerOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithRegistry registers the collectors with reg instead of a private registry.
// reg is used as the Gatherer too when it implements prometheus.Gatherer.
func WithRegistry(reg prometheus.Registerer) ProfilerOption {
	return func(p *Profiler) {
		if reg == nil {
			return
		}
		p.registry = reg
		if g, ok := reg.(prometheus.Gatherer); ok {
			p.gatherer = g
		} else {
			p.gatherer = nil
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ProfilerOption {
	return func(p *Profiler) {
		if now != nil {
			p.now = now
		}
	}
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second and collectors go to a private registry.
//
// Parameters:
//   - options: variadic list of ProfilerOption functions
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerOption) *Profiler {
	reg := prometheus.NewRegistry()
	p := &Profiler{
		updateInterval: time.Second,
		now:            time.Now,
		logger:         zap.NewNop(),
		registry:       reg,
		gatherer:       reg,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()

	factory := promauto.With(p.registry)
	p.frames = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "swarm_frames_total",
		Help: "Frames simulated and drawn",
	}, []string{"model", "style"})
	p.frameSeconds = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "swarm_frame_seconds",
		Help:    "Host time spent issuing one frame",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})
	p.initSeconds = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swarm_pipeline_init_seconds",
		Help:    "Time spent initializing a pipeline",
		Buckets: prometheus.DefBuckets,
	}, []string{"model", "style"})
	p.initFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "swarm_pipeline_init_failures_total",
		Help: "Pipeline initializations that failed, by cause",
	}, []string{"reason"})
	p.particles = factory.NewGauge(prometheus.GaugeOpts{
		Name: "swarm_particles",
		Help: "Particles in the active pipeline",
	})
	return p
}

// Gatherer returns the registry the collectors were registered with, or nil when a
// Registerer without gathering support was supplied.
func (p *Profiler) Gatherer() prometheus.Gatherer {
	return p.gatherer
}

// FrameDone records one completed frame.
//
// Parameters:
//   - model: the execution model label
//   - style: the visual style label
//   - d: the host time spent on the frame
func (p *Profiler) FrameDone(model, style string, d time.Duration) {
	p.frames.WithLabelValues(model, style).Inc()
	p.frameSeconds.Observe(d.Seconds())
}

// PipelineInit records the outcome of a pipeline initialization.
//
// Parameters:
//   - model: the execution model label
//   - style: the visual style label
//   - particles: the particle count of the pipeline
//   - d: the initialization time
//   - err: the initialization error, nil on success
func (p *Profiler) PipelineInit(model, style string, particles uint32, d time.Duration, err error) {
	if err != nil {
		p.initFailures.WithLabelValues(FailureReason(err)).Inc()
		return
	}
	p.initSeconds.WithLabelValues(model, style).Observe(d.Seconds())
	p.particles.Set(float64(particles))
}

// PipelineDisposed clears the particle gauge.
func (p *Profiler) PipelineDisposed() {
	p.particles.Set(0)
}

// FailureReason classifies an initialization error into a metric label.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, renderer.ErrAllocation):
		return "allocation"
	case errors.Is(err, renderer.ErrDeviceUnavailable):
		return "device_unavailable"
	case errors.Is(err, renderer.ErrShaderCompile):
		return "shader_compile"
	default:
		return "other"
	}
}

// FPS returns the frame rate computed at the last logged interval.
func (p *Profiler) FPS() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFPS
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, heap usage, allocation rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024

	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 GC pauses
	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			pause := p.memStats.PauseNs[i%256] / 1000
			if pause > maxPauseUs {
				maxPauseUs = pause
			}
		}
	}

	p.logger.Info("frame stats",
		zap.Float64("fps", fps),
		zap.Float64("heap_mb", allocMB),
		zap.Float64("alloc_rate_mb_s", allocRateMB),
		zap.Uint32("gc_count", gcCount),
		zap.Uint64("gc_last_pause_us", lastPauseUs),
		zap.Uint64("gc_max_pause_us", maxPauseUs),
		zap.Float64("sys_mb", sysMB),
	)

	p.lastFPS = fps
	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
