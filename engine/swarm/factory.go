package swarm

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer"
	"github.com/Carmen-Shannon/oxy-swarm/engine/simulation"
	"github.com/Carmen-Shannon/oxy-swarm/engine/style"
	"go.uber.org/zap"
)

// SimulationFactory builds the simulation strategy of one execution model.
type SimulationFactory func(options ...simulation.StrategyBuilderOption) simulation.Strategy

// StyleFactory builds the render strategy of one visual style.
type StyleFactory func(options ...style.StrategyBuilderOption) style.Strategy

var (
	factoryMu           sync.RWMutex
	simulationFactories = map[renderer.ExecutionModel]SimulationFactory{
		renderer.ExecutionModelRasterStreamOut: simulation.NewStreamOut,
		renderer.ExecutionModelComputeDispatch: simulation.NewComputeDispatch,
	}
	styleFactories = map[style.VisualStyle]StyleFactory{
		style.VisualStylePoint:        style.NewPoint,
		style.VisualStyleQuad:         style.NewQuad,
		style.VisualStyleTexturedQuad: style.NewTexturedQuad,
	}
)

// RegisterSimulation replaces the simulation factory of a model.
func RegisterSimulation(model renderer.ExecutionModel, factory SimulationFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	simulationFactories[model] = factory
}

// RegisterStyle replaces the render factory of a style.
func RegisterStyle(vs style.VisualStyle, factory StyleFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	styleFactories[vs] = factory
}

// strategies builds the simulation and render strategies for cfg.
func strategies(cfg Config, logger *zap.Logger, styleOptions []style.StrategyBuilderOption) (simulation.Strategy, style.Strategy, error) {
	factoryMu.RLock()
	simFactory, simOK := simulationFactories[cfg.Model]
	styleFactory, styleOK := styleFactories[cfg.Style]
	factoryMu.RUnlock()

	if !simOK {
		return nil, nil, fmt.Errorf("no simulation registered for %s", cfg.Model)
	}
	if !styleOK {
		return nil, nil, fmt.Errorf("no style registered for %s", cfg.Style)
	}

	sim := simFactory(simulation.WithLogger(logger))
	opts := append([]style.StrategyBuilderOption{
		style.WithLogger(logger),
		style.WithParticleSize(cfg.ParticleSize),
	}, styleOptions...)
	return sim, styleFactory(opts...), nil
}
