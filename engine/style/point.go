package style

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-swarm/engine/particle"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// PointPipelineKey is the default key of the point program.
const PointPipelineKey = "particle_point"

// shaderSource is one stage of a program in one language.
type shaderSource struct {
	stage  shader.ShaderType
	lang   shader.Language
	source string
	opts   []shader.ShaderBuilderOption
}

// compileShaders builds the shaders of a program, reporting parse failures as compile errors.
func compileShaders(key string, sources ...shaderSource) ([]shader.Shader, error) {
	out := make([]shader.Shader, 0, len(sources))
	for _, src := range sources {
		name := fmt.Sprintf("%s_%s", key, src.stage)
		if src.lang == shader.LanguageGLSL {
			name += "_glsl"
		}
		s, err := shader.NewShader(name, src.stage, src.lang, src.source, src.opts...)
		if err != nil {
			return nil, &renderer.ShaderCompileError{Pipeline: key, Stage: src.stage, Log: err.Error()}
		}
		out = append(out, s)
	}
	return out, nil
}

func withShaders(shaders []shader.Shader) []pipeline.PipelineBuilderOption {
	opts := make([]pipeline.PipelineBuilderOption, 0, len(shaders))
	for _, s := range shaders {
		opts = append(opts, pipeline.WithShader(s))
	}
	return opts
}

// pointStrategy draws every particle of a batch with one non-indexed point-list draw.
type pointStrategy struct {
	strategyBase
}

var _ Strategy = &pointStrategy{}

// NewPoint creates the point style.
//
// Parameters:
//   - options: variadic list of StrategyBuilderOption functions
//
// Returns:
//   - Strategy: the strategy, ready for Setup
func NewPoint(options ...StrategyBuilderOption) Strategy {
	return &pointStrategy{strategyBase: newStrategyBase(PointPipelineKey, options...)}
}

func (s *pointStrategy) Style() VisualStyle {
	return VisualStylePoint
}

func (s *pointStrategy) Setup(r renderer.Renderer, store particle.Store) error {
	if s.r != nil {
		return fmt.Errorf("style %s: already set up", s.key)
	}
	shaders, err := compileShaders(s.key,
		shaderSource{stage: shader.ShaderTypeVertex, lang: shader.LanguageWGSL, source: pointVertexSource},
		shaderSource{stage: shader.ShaderTypeFragment, lang: shader.LanguageWGSL, source: solidFragmentSource},
		shaderSource{stage: shader.ShaderTypeVertex, lang: shader.LanguageGLSL, source: pointVertexGLSL},
		shaderSource{stage: shader.ShaderTypeFragment, lang: shader.LanguageGLSL, source: solidFragmentGLSL},
	)
	if err != nil {
		return err
	}

	opts := append(withShaders(shaders),
		pipeline.WithTopology(wgpu.PrimitiveTopologyPointList),
		pipeline.WithRasterKernel(rasterPoints),
	)
	if err := r.RegisterPipelines(pipeline.NewPipeline(s.key, pipeline.PipelineTypeRender, opts...)); err != nil {
		return err
	}
	s.r, s.store = r, store

	s.logger.Debug("point style ready", zap.String("pipeline", s.key))
	return nil
}

func (s *pointStrategy) Draw(role, width, height int) error {
	if err := s.ready(role); err != nil {
		return err
	}
	for i, b := range s.store.Batches() {
		err := s.r.DrawCall(s.key, renderer.DrawCall{
			VertexBuffers: []resource.Buffer{b.Positions[role]},
			VertexCount:   b.ParticlesCount,
			InstanceCount: 1,
		})
		if err != nil {
			return fmt.Errorf("style %s batch %d: %w", s.key, i, err)
		}
	}
	return nil
}

func (s *pointStrategy) UniformUploads() int {
	return 0
}

func (s *pointStrategy) Release() {
	s.releasePipeline()
}
