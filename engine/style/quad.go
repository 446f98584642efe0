package style

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-swarm/common"
	"github.com/Carmen-Shannon/oxy-swarm/engine/glyph"
	"github.com/Carmen-Shannon/oxy-swarm/engine/particle"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

const (
	// QuadPipelineKey is the default key of the quad program.
	QuadPipelineKey = "particle_quad"

	// TexturedQuadPipelineKey is the default key of the textured quad program.
	TexturedQuadPipelineKey = "particle_textured_quad"
)

// GLSL block and sampler names, bound by index after linking.
const (
	quadUniformsBlock = "QuadUniforms"
	glyphTextureName  = "glyphTexture"
)

var (
	// quadVertices is the unit quad shared by every instance.
	quadVertices = common.Float32Bytes(
		-1, -1,
		1, -1,
		1, 1,
		-1, 1,
	)
	quadIndices    = common.Uint32Bytes(0, 1, 2, 2, 3, 0)
	quadIndexCount = 6

	// alphaOver is src*src.a + dst*(1-src.a) for color and alpha.
	alphaOver = &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorSrcAlpha,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			Operation: wgpu.BlendOperationAdd,
		},
		Alpha: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorSrcAlpha,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			Operation: wgpu.BlendOperationAdd,
		},
	}

	glyphSampler = common.SamplerStagingData{
		AddressModeU: wgpu.AddressModeClampToEdge,
		AddressModeV: wgpu.AddressModeClampToEdge,
		AddressModeW: wgpu.AddressModeClampToEdge,
		MagFilter:    wgpu.FilterModeLinear,
		MinFilter:    wgpu.FilterModeLinear,
	}
)

// quadStrategy draws one instanced quad per particle, optionally textured with a glyph.
type quadStrategy struct {
	strategyBase

	textured bool

	// provider owns the mesh, the uniform buffer and, when textured, the texture and sampler.
	provider bind_group_provider.BindGroupProvider

	uniformBinding, textureBinding, samplerBinding int

	// uniforms mirrors the last values written to the uniform buffer.
	uniforms GPUQuadUniforms
	uploads  int
}

var _ Strategy = &quadStrategy{}

// NewQuad creates the solid quad style.
//
// Parameters:
//   - options: variadic list of StrategyBuilderOption functions
//
// Returns:
//   - Strategy: the strategy, ready for Setup
func NewQuad(options ...StrategyBuilderOption) Strategy {
	return &quadStrategy{strategyBase: newStrategyBase(QuadPipelineKey, options...)}
}

// NewTexturedQuad creates the textured quad style. Without WithTexture, the texture is the glyph
// configured with WithGlyph rendered at glyph.DefaultSize.
//
// Parameters:
//   - options: variadic list of StrategyBuilderOption functions
//
// Returns:
//   - Strategy: the strategy, ready for Setup
func NewTexturedQuad(options ...StrategyBuilderOption) Strategy {
	return &quadStrategy{
		strategyBase: newStrategyBase(TexturedQuadPipelineKey, options...),
		textured:     true,
	}
}

func (s *quadStrategy) Style() VisualStyle {
	if s.textured {
		return VisualStyleTexturedQuad
	}
	return VisualStyleQuad
}

func (s *quadStrategy) program() (pipeline.Pipeline, error) {
	fragment, fragmentGLSL := solidFragmentSource, solidFragmentGLSL
	if s.textured {
		fragment, fragmentGLSL = texturedFragmentSource, texturedFragmentGLSL
	}
	shaders, err := compileShaders(s.key,
		shaderSource{stage: shader.ShaderTypeVertex, lang: shader.LanguageWGSL, source: quadVertexSource,
			opts: []shader.ShaderBuilderOption{shader.WithPreProcessor(newPreProcessor())}},
		shaderSource{stage: shader.ShaderTypeFragment, lang: shader.LanguageWGSL, source: fragment},
		shaderSource{stage: shader.ShaderTypeVertex, lang: shader.LanguageGLSL, source: quadVertexGLSL},
		shaderSource{stage: shader.ShaderTypeFragment, lang: shader.LanguageGLSL, source: fragmentGLSL},
	)
	if err != nil {
		return nil, err
	}
	vs, fs := shaders[0], shaders[1]

	binding, ok := vs.BindGroupFromVarName(0, "uniforms")
	if !ok {
		return nil, fmt.Errorf("style %s: vertex program declares no uniforms", s.key)
	}
	s.uniformBinding = binding

	opts := append(withShaders(shaders),
		pipeline.WithTopology(wgpu.PrimitiveTopologyTriangleList),
		pipeline.WithBindingName(quadUniformsBlock, s.uniformBinding),
	)
	if s.textured {
		_, tex, okTex := shader.FindBinding(fs.Declarations(), shader.AnnotationArgGlyph, shader.AnnotationArgGlyphTexture)
		_, smp, okSmp := shader.FindBinding(fs.Declarations(), shader.AnnotationArgGlyph, shader.AnnotationArgGlyphSampler)
		if !okTex || !okSmp {
			return nil, fmt.Errorf("style %s: fragment program declares no glyph texture and sampler", s.key)
		}
		s.textureBinding, s.samplerBinding = tex, smp
		opts = append(opts,
			pipeline.WithBlendEnabled(true),
			pipeline.WithBlendState(alphaOver),
			pipeline.WithBindingName(glyphTextureName, s.textureBinding),
		)
	}
	opts = append(opts, pipeline.WithRasterKernel(rasterQuads(s.textured, s.uniformBinding, s.textureBinding)))
	return pipeline.NewPipeline(s.key, pipeline.PipelineTypeRender, opts...), nil
}

func (s *quadStrategy) textureData() (common.TextureStagingData, error) {
	if s.strategyBase.texture != nil {
		return *s.strategyBase.texture, nil
	}
	return glyph.Render(s.glyph, glyph.DefaultSize)
}

func (s *quadStrategy) Setup(r renderer.Renderer, store particle.Store) error {
	if s.r != nil {
		return fmt.Errorf("style %s: already set up", s.key)
	}
	p, err := s.program()
	if err != nil {
		return err
	}
	if err := r.RegisterPipelines(p); err != nil {
		return err
	}
	s.r, s.store = r, store

	s.provider = bind_group_provider.NewBindGroupProvider(s.key)
	if err := r.InitMeshBuffers(s.provider, quadVertices, quadIndices, quadIndexCount); err != nil {
		return err
	}

	width, height := r.SurfaceSize()
	s.uniforms = GPUQuadUniforms{
		Resolution: [2]float32{float32(width), float32(height)},
		Scale:      s.size,
	}
	buf, err := r.CreateBuffer(resource.BufferDescriptor{
		Label:    s.key + " Uniforms",
		Size:     uint64(s.uniforms.Size()),
		Usage:    wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Contents: s.uniforms.Marshal(),
	})
	if err != nil {
		return err
	}
	s.provider.Own(buf)
	s.provider.SetBuffer(s.uniformBinding, buf)

	if s.textured {
		tex, err := s.textureData()
		if err != nil {
			return err
		}
		if err := r.InitTextureView(s.provider, s.textureBinding, tex); err != nil {
			return err
		}
		if err := r.InitSampler(s.provider, s.samplerBinding, glyphSampler); err != nil {
			return err
		}
	}

	if err := r.InitBindGroup(s.key, 0, s.provider); err != nil {
		return err
	}

	s.logger.Debug("quad style ready",
		zap.String("pipeline", s.key),
		zap.Bool("textured", s.textured),
		zap.Float32("size", s.size),
	)
	return nil
}

func (s *quadStrategy) Draw(role, width, height int) error {
	if err := s.ready(role); err != nil {
		return err
	}

	// scale/resolution in the vertex program needs a non-zero resolution
	resolution := [2]float32{float32(max(width, 1)), float32(max(height, 1))}
	if resolution != s.uniforms.Resolution {
		s.uniforms.Resolution = resolution
		s.r.WriteBuffers([]bind_group_provider.BufferWrite{{
			Provider: s.provider,
			Binding:  s.uniformBinding,
			Data:     s.uniforms.Marshal(),
		}})
		s.uploads++
	}

	for i, b := range s.store.Batches() {
		err := s.r.DrawCall(s.key, renderer.DrawCall{
			VertexBuffers: []resource.Buffer{b.Positions[role], s.provider.VertexBuffer()},
			IndexBuffer:   s.provider.IndexBuffer(),
			IndexCount:    uint32(s.provider.IndexCount()),
			InstanceCount: b.ParticlesCount,
			BindGroups:    []bind_group_provider.BindGroupProvider{s.provider},
		})
		if err != nil {
			return fmt.Errorf("style %s batch %d: %w", s.key, i, err)
		}
	}
	return nil
}

func (s *quadStrategy) UniformUploads() int {
	return s.uploads
}

func (s *quadStrategy) Release() {
	if !s.releasePipeline() {
		return
	}
	if s.provider != nil {
		s.provider.Release()
	}
}
