package renderer

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/Carmen-Shannon/oxy-lpv/engine/camera"
	"github.com/Carmen-Shannon/oxy-lpv/engine/gi"
	"github.com/Carmen-Shannon/oxy-lpv/engine/light"
	"github.com/Carmen-Shannon/oxy-lpv/engine/lpv"
	"github.com/Carmen-Shannon/oxy-lpv/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-lpv/engine/renderer/shader"
	"github.com/gogpu/naga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLPVKernelsReflect(t *testing.T) {
	want := map[string]struct {
		workgroup [3]uint32
		entries   int
	}{
		PipelineKeyLpvInject:           {[3]uint32{64, 1, 1}, 4},
		PipelineKeyLpvInjectAccumulate: {[3]uint32{64, 1, 1}, 2},
		PipelineKeyLpvGeometryInject:   {[3]uint32{64, 1, 1}, 4},
		PipelineKeyLpvPropagate:        {[3]uint32{4, 4, 4}, 5},
		PipelineKeyLpvResolve:          {[3]uint32{8, 8, 1}, 7},
	}
	sources := LPVShaderSources()
	require.Len(t, sources, len(want))

	for key, src := range sources {
		s, err := shader.ParseShader(key, src)
		require.NoError(t, err, key)
		assert.Equal(t, "main", s.EntryPoint(), key)
		assert.Equal(t, want[key].workgroup, s.WorkgroupSize(), key)
		assert.Len(t, s.BindGroupLayoutDescriptor(0).Entries, want[key].entries, key)
		assert.Len(t, s.BindGroupLayoutDescriptors(), 1, key)
	}
}

// Every binding the backend resolves at dispatch time must be declared by its kernel.
func TestLPVKernelBindings(t *testing.T) {
	roles := map[string][][2]shader.AnnotationArg{
		PipelineKeyLpvInject: {
			{shader.AnnotationArgLpvGridConfig, ""},
			{shader.AnnotationArgLpvLightConfig, ""},
			{shader.AnnotationArgRsmTexel, ""},
			{shader.AnnotationArgVolume, shader.AnnotationArgScratch},
		},
		PipelineKeyLpvInjectAccumulate: {
			{shader.AnnotationArgVolume, shader.AnnotationArgScratch},
			{shader.AnnotationArgVolume, shader.AnnotationArgTarget},
		},
		PipelineKeyLpvPropagate: {
			{shader.AnnotationArgPropagationParams, ""},
			{shader.AnnotationArgVolume, shader.AnnotationArgSource},
			{shader.AnnotationArgVolume, shader.AnnotationArgNext},
			{shader.AnnotationArgVolume, shader.AnnotationArgAccumulator},
			{shader.AnnotationArgVolume, shader.AnnotationArgGeometry},
		},
		PipelineKeyLpvResolve: {
			{shader.AnnotationArgCamera, ""},
			{shader.AnnotationArgLayeredLpvGridConfig, ""},
			{shader.AnnotationArgGBufferInfo, ""},
			{shader.AnnotationArgGBuffer, shader.AnnotationArgDepth},
			{shader.AnnotationArgGBuffer, shader.AnnotationArgNormals},
			{shader.AnnotationArgVolume, ""},
			{shader.AnnotationArgOutput, ""},
		},
	}
	roles[PipelineKeyLpvGeometryInject] = roles[PipelineKeyLpvInject]

	sources := LPVShaderSources()
	for key, ids := range roles {
		s := shader.NewShader(key, sources[key])
		seen := make(map[int]bool)
		for _, id := range ids {
			bnd, err := binding(s, id[0], id[1])
			require.NoError(t, err, "%s %s %s", key, id[0], id[1])
			assert.False(t, seen[bnd], "%s binds %d twice", key, bnd)
			seen[bnd] = true
		}
	}
}

func TestLPVKernelsCompile(t *testing.T) {
	for key, src := range LPVShaderSources() {
		t.Run(key, func(t *testing.T) {
			s, err := shader.ParseShader(key, src)
			require.NoError(t, err)

			spirv, err := naga.Compile(s.Source())
			require.NoError(t, err, "failed to compile %s", key)
			require.GreaterOrEqual(t, len(spirv), 4, "SPIR-V too short")
			assert.Equal(t, uint32(0x07230203), binary.LittleEndian.Uint32(spirv), "SPIR-V magic")
		})
	}
}

func TestLinearGroups(t *testing.T) {
	s, err := shader.ParseShader(PipelineKeyLpvInject, LPVShaderSources()[PipelineKeyLpvInject])
	require.NoError(t, err)
	p := pipeline.NewPipeline(PipelineKeyLpvInject, pipeline.WithComputeShader(s))

	assert.Equal(t, [3]uint32{1, 1, 1}, linearGroups(p, 1))
	assert.Equal(t, [3]uint32{2, 1, 1}, linearGroups(p, 65))
	assert.Equal(t, [3]uint32{65535, 1, 1}, linearGroups(p, 64*65535))
	assert.Equal(t, [3]uint32{35000, 2, 1}, linearGroups(p, 64*70000))

	// the spread dispatch always covers every invocation
	for _, n := range []uint32{64*65535 + 1, 64 * 200000, 64*131071 + 17} {
		g := linearGroups(p, n)
		assert.LessOrEqual(t, g[0], uint32(maxWorkgroupsPerDimension))
		assert.GreaterOrEqual(t, uint64(g[0])*uint64(g[1])*64, uint64(n))
	}
}

func TestSelectBackendCPU(t *testing.T) {
	cfg := gi.DefaultConfig()
	cfg.Backend = "cpu"
	b := SelectBackend(cfg, nil)
	defer b.Release()
	assert.Equal(t, "cpu", b.Name())

	scenario := runParityScenario(t, b)
	assert.Len(t, scenario.output, 16)
}

func TestLPVBackendMatchesCPUBackend(t *testing.T) {
	gpu := newTestLPVBackend(t)
	assert.Equal(t, "wgpu", gpu.Name())
	cpu := lpv.NewCPUBackend()
	defer cpu.Release()

	want := runParityScenario(t, cpu)
	got := runParityScenario(t, gpu)

	for name, w := range want.volumes {
		g := got.volumes[name]
		require.Len(t, g, len(w), name)
		for c := range w {
			wt, gt := w[c].Texels(), g[c].Texels()
			require.Len(t, gt, len(wt))
			for i := range wt {
				for k := range 4 {
					require.InDelta(t, wt[i][k], gt[i][k], 1e-4, "%s channel %d texel %d coefficient %d", name, c, i, k)
				}
			}
		}
	}
	for i := range want.output {
		for c := range 3 {
			require.InDelta(t, want.output[i][c], got.output[i][c], 1e-4, "pixel %d channel %d", i, c)
		}
	}
}

func TestLPVBackendValidation(t *testing.T) {
	b := newTestLPVBackend(t)

	_, err := b.CreateVolume("empty", 0, lpv.ChannelCount)
	assert.Error(t, err)
	_, err = b.CreateUniform("empty", 0)
	assert.Error(t, err)

	small, err := b.CreateUniform("small", 8)
	require.NoError(t, err)
	assert.Error(t, b.WriteUniform(small, make([]byte, 16)))
	assert.ErrorIs(t, b.WriteUniform(999, nil), lpv.ErrUnknownResource)

	vol, err := b.CreateVolume("v", 4, lpv.ChannelCount)
	require.NoError(t, err)
	assert.Error(t, b.Propagate(lpv.PropagationJob{Grid: small, Source: vol, Next: vol, Accumulator: vol}))

	b.ReleaseVolume(vol)
	_, err = b.ReadVolume(vol)
	assert.ErrorIs(t, err, lpv.ErrUnknownResource)

	b.Release()
	_, err = b.CreateVolume("late", 4, 1)
	assert.ErrorIs(t, err, lpv.ErrBackendReleased)
}

func newTestLPVBackend(t *testing.T) lpv.Backend {
	t.Helper()
	if os.Getenv("OXY_LPV_GPU") == "" {
		t.Skip("set OXY_LPV_GPU=1 to run against a GPU device")
	}
	r, err := NewRenderer(BackendTypeWGPU)
	if err != nil {
		t.Skipf("no GPU device: %v", err)
	}
	b, err := NewLPVBackend(r, WithOwnedRenderer(true))
	require.NoError(t, err)
	t.Cleanup(b.Release)
	return b
}

type parityResult struct {
	volumes map[string][]*lpv.Volume
	output  [][3]float32
}

// runParityScenario injects a small directional RSM, propagates twice with occlusion
// (the second step blending), then resolves a 4x4 G-Buffer through an identity camera.
func runParityScenario(t *testing.T, b lpv.Backend) parityResult {
	t.Helper()
	const size = 8

	grid := lpv.GPULpvGridConfig{MinCornerCellSize: [4]float32{-2, -2, -2, 0.5}, GridSize: size, IndirectAttenuation: 1}
	gridID, err := b.CreateUniform("grid", grid.Size())
	require.NoError(t, err)
	require.NoError(t, b.WriteUniform(gridID, grid.Marshal()))

	lc := lpv.GPULpvLightConfig{
		LightType:         uint32(light.LightTypeDirectional),
		Direction:         [3]float32{0, -1, 0},
		RsmSize:           4,
		ShadowHalfExtent:  2,
		TexelAreaModifier: 1,
		Intensity:         1.5,
	}
	lightID, err := b.CreateUniform("light", lc.Size())
	require.NoError(t, err)
	require.NoError(t, b.WriteUniform(lightID, lc.Marshal()))

	cam := camera.GPUCameraUniform{}
	for i := range 4 {
		cam.ViewProj[i*5] = 1
		cam.InvViewProj[i*5] = 1
	}
	camID, err := b.CreateUniform("camera", cam.Size())
	require.NoError(t, err)
	require.NoError(t, b.WriteUniform(camID, cam.Marshal()))

	rsm := lpv.NewRSM(4)
	rsm.Add([3]float32{0.1, -0.6, 0.2}, [3]float32{0, 1, 0}, [3]float32{1, 0.8, 0.6})
	rsm.Add([3]float32{-0.9, -0.6, 0.7}, [3]float32{0, 1, 0}, [3]float32{0.2, 0.4, 1})
	rsm.Add([3]float32{0.7, 0.3, -1.1}, [3]float32{-1, 0, 0}, [3]float32{0.5, 0.5, 0.5})
	rsm.Add([3]float32{5, 5, 5}, [3]float32{0, 1, 0}, [3]float32{9, 9, 9})

	vol := func(label string, channels int) lpv.VolumeID {
		id, err := b.CreateVolume(label, size, channels)
		require.NoError(t, err)
		return id
	}
	a, next, acc, geometry := vol("a", lpv.ChannelCount), vol("b", lpv.ChannelCount), vol("acc", lpv.ChannelCount), vol("geometry", 1)

	require.NoError(t, b.InjectLight(lpv.InjectionJob{RSM: rsm, Light: lightID, Grid: gridID, Target: a}))
	require.NoError(t, b.InjectGeometry(lpv.GeometryInjectionJob{RSM: rsm, Light: lightID, Grid: gridID, Target: geometry}))
	require.NoError(t, b.Propagate(lpv.PropagationJob{Grid: gridID, Source: a, Next: next, Accumulator: acc, Geometry: geometry}))
	require.NoError(t, b.Propagate(lpv.PropagationJob{Grid: gridID, Source: next, Next: a, Accumulator: acc, Geometry: geometry, Blend: true}))

	gb := lpv.NewGBuffer(4, 4)
	for y := range 4 {
		for x := range 4 {
			if x == 3 && y == 3 {
				continue
			}
			gb.Set(x, y, 0.25+0.1*float32(x), [3]float32{0, 1, 0})
		}
	}
	out := make([][3]float32, gb.Len())
	out[0] = [3]float32{0.5, 0.5, 0.5}
	require.NoError(t, b.Resolve(lpv.ResolveJob{GBuffer: gb, Camera: camID, Grid: gridID, Accumulators: []lpv.VolumeID{acc}, Output: out}))

	res := parityResult{volumes: make(map[string][]*lpv.Volume), output: out}
	for name, id := range map[string]lpv.VolumeID{"injected": a, "geometry": geometry, "accumulated": acc} {
		v, err := b.ReadVolume(id)
		require.NoError(t, err)
		res.volumes[name] = v
	}
	return res
}

func TestLPVPipelines(t *testing.T) {
	ps, err := lpvPipelines(PipelineKeyLpvPropagate, PipelineKeyLpvResolve)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, PipelineKeyLpvPropagate, ps[0].PipelineKey())
	assert.Nil(t, ps[0].Pipeline(), "GPU objects are created on registration")
	assert.Equal(t, [3]uint32{2, 2, 2}, ps[0].WorkgroupCount(8, 8, 8))
	assert.Equal(t, [3]uint32{20, 15, 1}, ps[1].WorkgroupCount(160, 120, 1))

	_, err = lpvPipelines("lpv_unknown")
	assert.Error(t, err)
}
