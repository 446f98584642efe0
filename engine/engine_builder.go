package engine

import (
	"github.com/Carmen-Shannon/oxy-swarm/engine/profiler"
	"github.com/Carmen-Shannon/oxy-swarm/engine/swarm"
	"github.com/Carmen-Shannon/oxy-swarm/engine/window"
	"go.uber.org/zap"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithLogger sets the logger of the engine and of every pipeline it builds.
//
// Parameters:
//   - logger: the zap logger
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLogger(logger *zap.Logger) EngineBuilderOption {
	return func(e *engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithProfiler sets the profiler shared by every pipeline.
//
// Parameters:
//   - p: the profiler
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = p
	}
}

// WithWindowOptions sets the options every window is opened with.
//
// Parameters:
//   - options: the window options
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindowOptions(options ...window.WindowBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.windowOptions = append(e.windowOptions, options...)
	}
}

// WithWindowFactory replaces how windows are opened.
//
// Parameters:
//   - factory: the window factory
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindowFactory(factory WindowFactory) EngineBuilderOption {
	return func(e *engine) {
		if factory != nil {
			e.newWindow = factory
		}
	}
}

// WithPipelineOptions sets the options every pipeline is built with.
//
// Parameters:
//   - options: the pipeline options
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithPipelineOptions(options ...swarm.PipelineBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.pipelineOptions = append(e.pipelineOptions, options...)
	}
}

// WithKeyBindings enables or disables the keyboard shortcuts of control.ApplyKey. Enabled by default.
//
// Parameters:
//   - enabled: true to bind the keys
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithKeyBindings(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.keyBindings = enabled
	}
}
