// Package simulation advances the particle store by one frame under one of the two execution
// models. Both strategies read role r of every batch and write role 1-r, and both produce the
// same result as particle.Step.
package simulation

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-swarm/engine/particle"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer"
	"go.uber.org/zap"
)

// Strategy advances particle state under one execution model.
//
// Setup is called once after the store is allocated. Step is called once per frame with the
// current role; it must finish writing the next role before the frame's draw reads it.
type Strategy interface {
	// Model returns the execution model this strategy runs under.
	//
	// Returns:
	//   - renderer.ExecutionModel: the execution model
	Model() renderer.ExecutionModel

	// Setup registers the simulation program with the renderer and binds the store's batches.
	//
	// Parameters:
	//   - r: the renderer to register with
	//   - store: the particle store to advance
	//
	// Returns:
	//   - error: a *renderer.ShaderCompileError if the program does not build, or a binding error
	Setup(r renderer.Renderer, store particle.Store) error

	// Step advances every particle of every batch from role to 1-role.
	//
	// Parameters:
	//   - role: the current role, tt % 2
	//
	// Returns:
	//   - error: an error if the strategy is not set up or the device rejects the work
	Step(role int) error

	// Release frees the bind groups and the program. Calling Release more than once is a no-op.
	Release()
}

// StrategyBuilderOption is a functional option applied to a strategy during construction.
type StrategyBuilderOption func(*strategyBase)

// WithLogger sets the logger of the strategy.
//
// Parameters:
//   - logger: the logger; nil keeps the no-op default
//
// Returns:
//   - StrategyBuilderOption: the option
func WithLogger(logger *zap.Logger) StrategyBuilderOption {
	return func(s *strategyBase) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPipelineKey overrides the key the simulation program is registered under.
//
// Parameters:
//   - key: the pipeline key
//
// Returns:
//   - StrategyBuilderOption: the option
func WithPipelineKey(key string) StrategyBuilderOption {
	return func(s *strategyBase) {
		if key != "" {
			s.key = key
		}
	}
}

// strategyBase holds the state shared by both strategies.
type strategyBase struct {
	key      string
	logger   *zap.Logger
	r        renderer.Renderer
	store    particle.Store
	released bool
}

func newStrategyBase(key string, options ...StrategyBuilderOption) strategyBase {
	s := strategyBase{
		key:    key,
		logger: zap.NewNop(),
	}
	for _, opt := range options {
		opt(&s)
	}
	return s
}

func (s *strategyBase) ready(role int) error {
	if s.r == nil || s.store == nil {
		return fmt.Errorf("simulation %s: not set up", s.key)
	}
	if s.released {
		return fmt.Errorf("simulation %s: released", s.key)
	}
	if role < 0 || role >= particle.Roles {
		return fmt.Errorf("simulation %s: role %d out of range", s.key, role)
	}
	return nil
}

// releasePipeline drops the registered program. It reports whether this call did the release.
func (s *strategyBase) releasePipeline() bool {
	if s.released {
		return false
	}
	s.released = true
	if s.r != nil {
		s.r.ReleasePipelines(s.key)
	}
	return true
}
