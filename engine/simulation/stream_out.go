package simulation

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-swarm/common"
	"github.com/Carmen-Shannon/oxy-swarm/engine/particle"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// StreamOutPipelineKey is the default key of the stream-out program.
const StreamOutPipelineKey = "particle_stream_out"

// Varyings captured by the stream-out program, in output buffer order.
const (
	varyingPosition = "outPosition"
	varyingVelocity = "outVelocity"
)

// streamOutLayouts feeds positions from slot 0 to location 0 and velocities from slot 1 to location 1.
var streamOutLayouts = []wgpu.VertexBufferLayout{
	{
		ArrayStride: particle.ElementSize,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  []wgpu.VertexAttribute{{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0}},
	},
	{
		ArrayStride: particle.ElementSize,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  []wgpu.VertexAttribute{{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 1}},
	},
}

// streamOutKernel is the CPU rendition of the stream-out vertex program.
func streamOutKernel(vertex uint32, inputs, outputs [][]byte) {
	p, v := particle.Advance(common.Vec2At(inputs[0], vertex), common.Vec2At(inputs[1], vertex))
	common.PutVec2(outputs[0], vertex, p)
	common.PutVec2(outputs[1], vertex, v)
}

// streamOutStrategy runs the physics as a vertex program whose outputs are captured into the
// next role with rasterization discarded.
type streamOutStrategy struct {
	strategyBase
}

var _ Strategy = &streamOutStrategy{}

// NewStreamOut creates the stream-out strategy.
//
// Parameters:
//   - options: variadic list of StrategyBuilderOption functions
//
// Returns:
//   - Strategy: the strategy, ready for Setup
func NewStreamOut(options ...StrategyBuilderOption) Strategy {
	return &streamOutStrategy{strategyBase: newStrategyBase(StreamOutPipelineKey, options...)}
}

func (s *streamOutStrategy) Model() renderer.ExecutionModel {
	return renderer.ExecutionModelRasterStreamOut
}

func (s *streamOutStrategy) Setup(r renderer.Renderer, store particle.Store) error {
	if s.r != nil {
		return fmt.Errorf("simulation %s: already set up", s.key)
	}
	vs, err := shader.NewShader(s.key+"_vs", shader.ShaderTypeVertex, shader.LanguageGLSL, reflectVertexSource)
	if err != nil {
		return &renderer.ShaderCompileError{Pipeline: s.key, Stage: shader.ShaderTypeVertex, Log: err.Error()}
	}
	fs, err := shader.NewShader(s.key+"_fs", shader.ShaderTypeFragment, shader.LanguageGLSL, discardFragmentSource)
	if err != nil {
		return &renderer.ShaderCompileError{Pipeline: s.key, Stage: shader.ShaderTypeFragment, Log: err.Error()}
	}

	p := pipeline.NewPipeline(s.key, pipeline.PipelineTypeStreamOut,
		pipeline.WithShader(vs),
		pipeline.WithShader(fs),
		pipeline.WithTopology(wgpu.PrimitiveTopologyPointList),
		pipeline.WithWriteMask(wgpu.ColorWriteMaskNone),
		pipeline.WithVertexLayouts(streamOutLayouts...),
		pipeline.WithStreamOutVaryings(varyingPosition, varyingVelocity),
		pipeline.WithStreamOutKernel(streamOutKernel),
	)
	if err := r.RegisterPipelines(p); err != nil {
		return err
	}
	s.r, s.store = r, store

	s.logger.Debug("stream-out simulation ready",
		zap.String("pipeline", s.key),
		zap.Int("batches", len(store.Batches())),
	)
	return nil
}

func (s *streamOutStrategy) Step(role int) error {
	if err := s.ready(role); err != nil {
		return err
	}
	next := 1 - role
	for i, b := range s.store.Batches() {
		err := s.r.StreamOut(s.key, renderer.StreamOutPass{
			Inputs:  []resource.Buffer{b.Positions[role], b.Velocities[role]},
			Outputs: []resource.Buffer{b.Positions[next], b.Velocities[next]},
			Count:   b.ParticlesCount,
		})
		if err != nil {
			return fmt.Errorf("simulation %s batch %d: %w", s.key, i, err)
		}
	}
	return nil
}

func (s *streamOutStrategy) Release() {
	s.releasePipeline()
}
