package swarm

import (
	"github.com/Carmen-Shannon/oxy-swarm/engine/profiler"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer"
	"github.com/Carmen-Shannon/oxy-swarm/engine/style"
	"go.uber.org/zap"
)

// PipelineBuilderOption is a functional option for configuring a Pipeline.
type PipelineBuilderOption func(*swarmPipeline)

// WithLogger sets the logger of the pipeline and of everything it builds.
//
// Parameters:
//   - logger: the zap logger
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithLogger(logger *zap.Logger) PipelineBuilderOption {
	return func(p *swarmPipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithProfiler sets the profiler frames and initialization are recorded on. Pipelines built in
// sequence should share one profiler so their metrics accumulate.
//
// Parameters:
//   - prof: the profiler
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithProfiler(prof *profiler.Profiler) PipelineBuilderOption {
	return func(p *swarmPipeline) {
		p.profiler = prof
	}
}

// WithBackend overrides the default backend of the execution model.
//
// Parameters:
//   - bt: the backend type
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithBackend(bt renderer.BackendType) PipelineBuilderOption {
	return func(p *swarmPipeline) {
		p.backend = &bt
	}
}

// WithRendererOptions appends options passed to the backend factory.
//
// Parameters:
//   - options: the renderer options
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithRendererOptions(options ...renderer.RendererBuilderOption) PipelineBuilderOption {
	return func(p *swarmPipeline) {
		p.rendererOptions = append(p.rendererOptions, options...)
	}
}

// WithStyleOptions appends options passed to the render strategy, e.g. style.WithGlyph.
//
// Parameters:
//   - options: the style options
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithStyleOptions(options ...style.StrategyBuilderOption) PipelineBuilderOption {
	return func(p *swarmPipeline) {
		p.styleOptions = append(p.styleOptions, options...)
	}
}

// WithSeed fixes the random seed of the initial particle state. Pipelines with the same seed
// and config start from identical particles.
//
// Parameters:
//   - seed: the seed
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithSeed(seed uint64) PipelineBuilderOption {
	return func(p *swarmPipeline) {
		p.seed = seed
	}
}
