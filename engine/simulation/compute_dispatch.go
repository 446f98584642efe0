package simulation

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-swarm/common"
	"github.com/Carmen-Shannon/oxy-swarm/engine/particle"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/shader"
	"go.uber.org/zap"
)

// ComputePipelineKey is the default key of the compute-dispatch program.
const ComputePipelineKey = "particle_compute"

// reflectBindings are the binding indices of the compute program's four particle buffers.
type reflectBindings struct {
	positionsIn, velocitiesIn, positionsOut, velocitiesOut int
}

func findReflectBindings(s shader.Shader) (reflectBindings, error) {
	var b reflectBindings
	roles := []struct {
		role shader.AnnotationArg
		dst  *int
	}{
		{shader.AnnotationArgPositionsIn, &b.positionsIn},
		{shader.AnnotationArgVelocitiesIn, &b.velocitiesIn},
		{shader.AnnotationArgPositionsOut, &b.positionsOut},
		{shader.AnnotationArgVelocitiesOut, &b.velocitiesOut},
	}
	for _, r := range roles {
		group, binding, ok := shader.FindBinding(s.Declarations(), shader.AnnotationArgParticles, r.role)
		if !ok {
			return b, fmt.Errorf("shader %s: no particles %s binding", s.Key(), r.role)
		}
		if group != 0 {
			return b, fmt.Errorf("shader %s: particles %s must be in group 0, found group %d", s.Key(), r.role, group)
		}
		*r.dst = binding
	}
	return b, nil
}

// kernel is the CPU rendition of the compute program for the software backend.
func (b reflectBindings) kernel(id uint32, bindings map[int][]byte) {
	posIn := bindings[b.positionsIn]
	if uint64(id+1)*particle.ElementSize > uint64(len(posIn)) {
		return
	}
	p, v := particle.Advance(common.Vec2At(posIn, id), common.Vec2At(bindings[b.velocitiesIn], id))
	common.PutVec2(bindings[b.positionsOut], id, p)
	common.PutVec2(bindings[b.velocitiesOut], id, v)
}

// computeDispatchStrategy runs one dispatch per batch, swapping bind groups by role.
type computeDispatchStrategy struct {
	strategyBase

	// providers holds one bind group per batch and role; providers[i][r] reads role r of batch i.
	providers [][particle.Roles]bind_group_provider.BindGroupProvider
}

var _ Strategy = &computeDispatchStrategy{}

// NewComputeDispatch creates the compute-dispatch strategy.
//
// Parameters:
//   - options: variadic list of StrategyBuilderOption functions
//
// Returns:
//   - Strategy: the strategy, ready for Setup
func NewComputeDispatch(options ...StrategyBuilderOption) Strategy {
	return &computeDispatchStrategy{strategyBase: newStrategyBase(ComputePipelineKey, options...)}
}

func (s *computeDispatchStrategy) Model() renderer.ExecutionModel {
	return renderer.ExecutionModelComputeDispatch
}

func (s *computeDispatchStrategy) Setup(r renderer.Renderer, store particle.Store) error {
	if s.r != nil {
		return fmt.Errorf("simulation %s: already set up", s.key)
	}
	cs, err := shader.NewShader(s.key, shader.ShaderTypeCompute, shader.LanguageWGSL, reflectComputeSource)
	if err != nil {
		return &renderer.ShaderCompileError{Pipeline: s.key, Stage: shader.ShaderTypeCompute, Log: err.Error()}
	}
	bindings, err := findReflectBindings(cs)
	if err != nil {
		return err
	}
	if ws := cs.WorkgroupSize(); ws[0] != particle.WorkgroupSize {
		return fmt.Errorf("simulation %s: workgroup size %d does not match batch alignment %d", s.key, ws[0], particle.WorkgroupSize)
	}

	p := pipeline.NewPipeline(s.key, pipeline.PipelineTypeCompute,
		pipeline.WithShader(cs),
		pipeline.WithComputeKernel(bindings.kernel),
	)
	if err := r.RegisterPipelines(p); err != nil {
		return err
	}
	s.r, s.store = r, store

	for i, b := range store.Batches() {
		var roles [particle.Roles]bind_group_provider.BindGroupProvider
		for role := range particle.Roles {
			next := 1 - role
			provider := bind_group_provider.NewBindGroupProvider(
				fmt.Sprintf("%s batch %d role %d", s.key, i, role),
				bind_group_provider.WithBuffers(map[int]resource.Buffer{
					bindings.positionsIn:   b.Positions[role],
					bindings.velocitiesIn:  b.Velocities[role],
					bindings.positionsOut:  b.Positions[next],
					bindings.velocitiesOut: b.Velocities[next],
				}),
			)
			roles[role] = provider
			if err := r.InitBindGroup(s.key, 0, provider); err != nil {
				s.providers = append(s.providers, roles)
				return fmt.Errorf("simulation %s batch %d: %w", s.key, i, err)
			}
		}
		s.providers = append(s.providers, roles)
	}

	s.logger.Debug("compute simulation ready",
		zap.String("pipeline", s.key),
		zap.Int("batches", len(s.providers)),
	)
	return nil
}

func (s *computeDispatchStrategy) Step(role int) error {
	if err := s.ready(role); err != nil {
		return err
	}
	if err := s.r.BeginComputeFrame(); err != nil {
		return err
	}
	var errs []error
	for i, b := range s.store.Batches() {
		if b.DispatchSize == 0 {
			continue
		}
		if err := s.r.DispatchCompute(s.key, s.providers[i][role], [3]uint32{b.DispatchSize, 1, 1}); err != nil {
			errs = append(errs, fmt.Errorf("batch %d: %w", i, err))
			break
		}
	}
	errs = append(errs, s.r.EndComputeFrame())
	return errors.Join(errs...)
}

func (s *computeDispatchStrategy) Release() {
	if !s.releasePipeline() {
		return
	}
	for i := len(s.providers) - 1; i >= 0; i-- {
		for role := particle.Roles - 1; role >= 0; role-- {
			if p := s.providers[i][role]; p != nil {
				p.Release()
			}
		}
	}
	s.providers = nil
}
