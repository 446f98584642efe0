package renderer

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/Carmen-Shannon/oxy-swarm/common"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testDoubleCompute = `@group(0) @binding(0) var<storage, read_write> values: array<u32>;

@compute @workgroup_size(4)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x >= arrayLength(&values)) {
        return;
    }
    values[id.x] = values[id.x] * 2u;
}
`

func doubleKernel(id uint32, bindings map[int][]byte) {
	values := bindings[0]
	if int(id)*4 >= len(values) {
		return
	}
	v := uint32(values[id*4]) * 2
	values[id*4] = byte(v)
}

func newSoftware(t *testing.T, opts ...SoftwareOption) Renderer {
	t.Helper()
	r, err := NewRenderer(BackendTypeSoftware, nil, WithLogger(zaptest.NewLogger(t)), WithSoftwareOptions(opts...))
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func TestParseExecutionModel(t *testing.T) {
	for _, name := range []string{"gl", "WebGL2", "rasterStreamOut", "stream-out"} {
		m, err := ParseExecutionModel(name)
		require.NoError(t, err, name)
		assert.Equal(t, ExecutionModelRasterStreamOut, m, name)
	}
	for _, name := range []string{"wgpu", "webgpu", "computeDispatch", "compute"} {
		m, err := ParseExecutionModel(name)
		require.NoError(t, err, name)
		assert.Equal(t, ExecutionModelComputeDispatch, m, name)
	}
	_, err := ParseExecutionModel("vulkan")
	assert.Error(t, err)

	assert.Equal(t, BackendTypeGL, ExecutionModelRasterStreamOut.DefaultBackend())
	assert.Equal(t, BackendTypeWGPU, ExecutionModelComputeDispatch.DefaultBackend())
}

func TestAcquireWithoutCapableSurface(t *testing.T) {
	_, err := Acquire(ExecutionModelComputeDispatch, nil, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeviceUnavailable))
	var due *DeviceUnavailableError
	require.ErrorAs(t, err, &due)
	assert.Equal(t, ExecutionModelComputeDispatch, due.Model)
	assert.Equal(t, BackendTypeWGPU, due.Backend)
}

func TestAcquireRejectsUnsupportedModel(t *testing.T) {
	bt := BackendTypeSoftware
	_, err := Acquire(ExecutionModelComputeDispatch, nil, &bt, WithSoftwareOptions(WithSoftwareModels(ExecutionModelRasterStreamOut)))
	assert.ErrorIs(t, err, ErrDeviceUnavailable)

	r, err := Acquire(ExecutionModelRasterStreamOut, nil, &bt)
	require.NoError(t, err)
	defer r.Release()
	assert.Equal(t, BackendTypeSoftware, r.BackendType())
}

func TestAcquireUnregisteredBackend(t *testing.T) {
	require.True(t, IsRegistered(BackendTypeSoftware))
	Unregister(BackendTypeSoftware)
	defer Register(BackendTypeSoftware, func(surface Surface, options ...RendererBuilderOption) (Renderer, error) {
		return NewRenderer(BackendTypeSoftware, surface, options...)
	})

	assert.NotContains(t, Available(), BackendTypeSoftware)
	bt := BackendTypeSoftware
	_, err := Acquire(ExecutionModelRasterStreamOut, nil, &bt)
	var due *DeviceUnavailableError
	require.ErrorAs(t, err, &due)
	assert.Contains(t, due.Reason, "not registered")
}

func TestSoftwareDispatchCoversWorkgroupTail(t *testing.T) {
	r := newSoftware(t)
	cs, err := shader.NewShader("double", shader.ShaderTypeCompute, shader.LanguageWGSL, testDoubleCompute)
	require.NoError(t, err)
	require.NoError(t, r.RegisterPipelines(pipeline.NewPipeline("double", pipeline.PipelineTypeCompute,
		pipeline.WithShader(cs), pipeline.WithComputeKernel(doubleKernel))))

	contents := common.Uint32Bytes(1, 2, 3, 4, 5, 6)
	buf, err := r.CreateBuffer(resource.BufferDescriptor{Label: "values", Usage: wgpu.BufferUsageStorage, Contents: contents})
	require.NoError(t, err)
	defer buf.Release()

	provider := bind_group_provider.NewBindGroupProvider("values", bind_group_provider.WithBuffer(0, buf))
	defer provider.Release()
	require.NoError(t, r.InitBindGroup("double", 0, provider))

	require.NoError(t, r.BeginComputeFrame())
	require.NoError(t, r.DispatchCompute("double", provider, [3]uint32{2, 1, 1}))
	require.NoError(t, r.EndComputeFrame())

	out, err := r.ReadBuffer(buf, 0, buf.Size())
	require.NoError(t, err)
	assert.Equal(t, common.Uint32Bytes(2, 4, 6, 8, 10, 12), out)

	stats := r.Backend().(SoftwareBackend).Stats()
	assert.Equal(t, 1, stats.Dispatches)
	assert.Equal(t, 8, stats.Invocations)
}

func TestSoftwareWorkersSplitDispatch(t *testing.T) {
	r := newSoftware(t, WithSoftwareWorkers(4))
	cs, err := shader.NewShader("double", shader.ShaderTypeCompute, shader.LanguageWGSL, testDoubleCompute)
	require.NoError(t, err)
	require.NoError(t, r.RegisterPipelines(pipeline.NewPipeline("double", pipeline.PipelineTypeCompute,
		pipeline.WithShader(cs), pipeline.WithComputeKernel(doubleKernel))))

	values := make([]uint32, 1001)
	want := make([]uint32, len(values))
	for i := range values {
		values[i] = uint32(i % 100)
		want[i] = values[i] * 2
	}
	buf, err := r.CreateBuffer(resource.BufferDescriptor{Label: "values", Usage: wgpu.BufferUsageStorage, Contents: common.Uint32Bytes(values...)})
	require.NoError(t, err)
	defer buf.Release()

	provider := bind_group_provider.NewBindGroupProvider("values", bind_group_provider.WithBuffer(0, buf))
	defer provider.Release()
	require.NoError(t, r.InitBindGroup("double", 0, provider))

	require.NoError(t, r.BeginComputeFrame())
	require.NoError(t, r.DispatchCompute("double", provider, [3]uint32{251, 1, 1}))
	require.NoError(t, r.EndComputeFrame())

	out, err := r.ReadBuffer(buf, 0, buf.Size())
	require.NoError(t, err)
	assert.Equal(t, common.Uint32Bytes(want...), out)

	stats := r.Backend().(SoftwareBackend).Stats()
	assert.Equal(t, 251, stats.PoolTasks)
	assert.Equal(t, 1004, stats.Invocations)
}

func TestSoftwareWorkersSplitStreamOut(t *testing.T) {
	r := newSoftware(t, WithSoftwareWorkers(3))
	p := pipeline.NewPipeline("copy", pipeline.PipelineTypeStreamOut,
		pipeline.WithStreamOutVaryings("outValue"),
		pipeline.WithStreamOutKernel(func(v uint32, inputs, outputs [][]byte) {
			outputs[0][v] = inputs[0][v] + 1
		}),
	)
	require.NoError(t, r.RegisterPipelines(p))

	count := 3*softwareStreamOutChunk + 17
	contents := make([]byte, count)
	want := make([]byte, count)
	for i := range contents {
		contents[i] = byte(i)
		want[i] = byte(i) + 1
	}
	in, err := r.CreateBuffer(resource.BufferDescriptor{Label: "in", Contents: contents})
	require.NoError(t, err)
	out, err := r.CreateBuffer(resource.BufferDescriptor{Label: "out", Size: uint64(count)})
	require.NoError(t, err)

	require.NoError(t, r.StreamOut("copy", StreamOutPass{Inputs: []resource.Buffer{in}, Outputs: []resource.Buffer{out}, Count: uint32(count)}))
	got, err := r.ReadBuffer(out, 0, uint64(count))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 4, r.Backend().(SoftwareBackend).Stats().PoolTasks)
}

func TestSoftwareSingleWorkerRunsInline(t *testing.T) {
	r := newSoftware(t, WithSoftwareWorkers(1))
	p := pipeline.NewPipeline("copy", pipeline.PipelineTypeStreamOut,
		pipeline.WithStreamOutVaryings("outValue"),
		pipeline.WithStreamOutKernel(func(v uint32, inputs, outputs [][]byte) {
			outputs[0][v] = inputs[0][v]
		}),
	)
	require.NoError(t, r.RegisterPipelines(p))

	count := 2 * softwareStreamOutChunk
	in, err := r.CreateBuffer(resource.BufferDescriptor{Label: "in", Size: uint64(count)})
	require.NoError(t, err)
	out, err := r.CreateBuffer(resource.BufferDescriptor{Label: "out", Size: uint64(count)})
	require.NoError(t, err)

	require.NoError(t, r.StreamOut("copy", StreamOutPass{Inputs: []resource.Buffer{in}, Outputs: []resource.Buffer{out}, Count: uint32(count)}))
	assert.Zero(t, r.Backend().(SoftwareBackend).Stats().PoolTasks)
}

func TestDispatchOutsideComputeFrame(t *testing.T) {
	r := newSoftware(t)
	cs, err := shader.NewShader("double", shader.ShaderTypeCompute, shader.LanguageWGSL, testDoubleCompute)
	require.NoError(t, err)
	require.NoError(t, r.RegisterPipelines(pipeline.NewPipeline("double", pipeline.PipelineTypeCompute,
		pipeline.WithShader(cs), pipeline.WithComputeKernel(doubleKernel))))

	assert.Error(t, r.DispatchCompute("double", bind_group_provider.NewBindGroupProvider("x"), [3]uint32{1, 1, 1}))
	assert.Error(t, r.DispatchCompute("missing", bind_group_provider.NewBindGroupProvider("x"), [3]uint32{1, 1, 1}))
}

func TestInitBindGroupRequiresResources(t *testing.T) {
	r := newSoftware(t)
	cs, err := shader.NewShader("double", shader.ShaderTypeCompute, shader.LanguageWGSL, testDoubleCompute)
	require.NoError(t, err)
	require.NoError(t, r.RegisterPipelines(pipeline.NewPipeline("double", pipeline.PipelineTypeCompute,
		pipeline.WithShader(cs), pipeline.WithComputeKernel(doubleKernel))))

	err = r.InitBindGroup("double", 0, bind_group_provider.NewBindGroupProvider("empty"))
	assert.ErrorContains(t, err, "buffer binding 0")
}

func TestSoftwareStreamOut(t *testing.T) {
	r := newSoftware(t)
	p := pipeline.NewPipeline("copy", pipeline.PipelineTypeStreamOut,
		pipeline.WithStreamOutVaryings("outValue"),
		pipeline.WithStreamOutKernel(func(v uint32, inputs, outputs [][]byte) {
			outputs[0][v] = inputs[0][v] + 1
		}),
	)
	require.NoError(t, r.RegisterPipelines(p))

	in, err := r.CreateBuffer(resource.BufferDescriptor{Label: "in", Contents: []byte{1, 2, 3}})
	require.NoError(t, err)
	out, err := r.CreateBuffer(resource.BufferDescriptor{Label: "out", Size: 3})
	require.NoError(t, err)

	require.NoError(t, r.StreamOut("copy", StreamOutPass{Inputs: []resource.Buffer{in}, Outputs: []resource.Buffer{out}, Count: 3}))
	got, err := r.ReadBuffer(out, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3, 4}, got)

	assert.Error(t, r.StreamOut("copy", StreamOutPass{Inputs: []resource.Buffer{in}, Count: 3}))
}

func TestSoftwareFrameClearsAndDraws(t *testing.T) {
	r := newSoftware(t, WithSoftwareSize(4, 2))
	w, h := r.SurfaceSize()
	assert.Equal(t, 4, w)
	assert.Equal(t, 2, h)

	p := pipeline.NewPipeline("dot", pipeline.PipelineTypeRender,
		pipeline.WithRasterKernel(func(target draw.Image, in pipeline.RasterInput) {
			target.Set(int(in.InstanceCount), 0, color.White)
		}),
	)
	require.NoError(t, r.RegisterPipelines(p))

	require.NoError(t, r.BeginFrame(common.RGBA{R: 1, A: 1}))
	require.NoError(t, r.DrawCall("dot", DrawCall{InstanceCount: 2}))
	require.NoError(t, r.EndFrame())
	r.Present()

	frame := r.Backend().(SoftwareBackend).Frame()
	require.NotNil(t, frame)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, frame.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, frame.RGBAAt(2, 0))

	assert.Error(t, r.DrawCall("dot", DrawCall{}))
	assert.Error(t, r.EndFrame())
}

func TestSoftwareRequiresKernels(t *testing.T) {
	r := newSoftware(t)
	err := r.RegisterPipelines(pipeline.NewPipeline("bare", pipeline.PipelineTypeRender))
	assert.ErrorIs(t, err, ErrShaderCompile)
	assert.Nil(t, r.Pipeline("bare"))
}

func TestAllocationErrors(t *testing.T) {
	r := newSoftware(t,
		WithSoftwareLimits(resource.Limits{MaxBufferSize: 16}),
		WithSoftwareAllocator(func(desc resource.BufferDescriptor) error {
			if desc.Label == "refused" {
				return errors.New("out of memory")
			}
			return nil
		}),
	)

	_, err := r.CreateBuffer(resource.BufferDescriptor{Label: "big", Size: 32})
	var ae *AllocationError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, uint64(32), ae.Size)
	assert.Equal(t, uint64(16), ae.Limit)

	_, err = r.CreateBuffer(resource.BufferDescriptor{Label: "refused", Size: 8})
	assert.ErrorIs(t, err, ErrAllocation)
	assert.ErrorContains(t, err, "out of memory")
}

func TestBufferReleaseCounting(t *testing.T) {
	r := newSoftware(t)
	buf, err := r.CreateBuffer(resource.BufferDescriptor{Label: "b", Size: 8})
	require.NoError(t, err)

	buf.Release()
	buf.Release()

	stats := r.Backend().(SoftwareBackend).Stats()
	assert.Equal(t, 0, stats.Live())
	assert.Equal(t, 1, stats.DoubleReleases)
}

func TestCompileHookFailsRegistration(t *testing.T) {
	r := newSoftware(t, WithSoftwareCompiler(func(p pipeline.Pipeline) error {
		return errors.New("syntax error at 1:1")
	}))
	err := r.RegisterPipelines(pipeline.NewPipeline("dot", pipeline.PipelineTypeRender,
		pipeline.WithRasterKernel(func(draw.Image, pipeline.RasterInput) {})))

	var sce *ShaderCompileError
	require.ErrorAs(t, err, &sce)
	assert.Equal(t, "dot", sce.Pipeline)
	assert.Contains(t, sce.Log, "syntax error")
}

func TestInitTextureViewOwnsTexture(t *testing.T) {
	r := newSoftware(t)
	provider := bind_group_provider.NewBindGroupProvider("glyph")

	err := r.InitTextureView(provider, 0, common.TextureStagingData{Pixels: []byte{255, 255, 255, 128}, Width: 1, Height: 1})
	require.NoError(t, err)
	img, ok := provider.Texture(0).Native().(*image.RGBA)
	require.True(t, ok)
	assert.Equal(t, uint8(128), img.Pix[0])

	assert.Error(t, r.InitTextureView(provider, 1, common.TextureStagingData{Pixels: []byte{1}, Width: 1, Height: 1}))
	provider.Release()
}

func TestMergeBindGroupLayouts(t *testing.T) {
	a := map[int]wgpu.BindGroupLayoutDescriptor{0: {Entries: []wgpu.BindGroupLayoutEntry{{Binding: 1, Visibility: wgpu.ShaderStageVertex}}}}
	b := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Entries: []wgpu.BindGroupLayoutEntry{{Binding: 1, Visibility: wgpu.ShaderStageFragment}, {Binding: 0, Visibility: wgpu.ShaderStageFragment}}},
		1: {Entries: []wgpu.BindGroupLayoutEntry{{Binding: 0}}},
	}

	merged := mergeBindGroupLayouts(a, b)

	require.Len(t, merged, 2)
	require.Len(t, merged[0].Entries, 2)
	assert.Equal(t, uint32(0), merged[0].Entries[0].Binding)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, merged[0].Entries[1].Visibility)
}
