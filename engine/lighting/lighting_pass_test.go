package lighting

import (
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-lpv/common"
	"github.com/Carmen-Shannon/oxy-lpv/engine/camera"
	"github.com/Carmen-Shannon/oxy-lpv/engine/framegraph"
	"github.com/Carmen-Shannon/oxy-lpv/engine/gi"
	"github.com/Carmen-Shannon/oxy-lpv/engine/light"
	"github.com/Carmen-Shannon/oxy-lpv/engine/lpv"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testScene looks down +Z from the origin at a single surface one unit away, facing the
// camera. Every light sees one white surfel at the origin.
type testScene struct {
	cam          camera.Camera
	lights       []light.Light
	rsm          *lpv.RSM
	gbuffer      *lpv.GBuffer
	noShadowMaps bool
	visibility   float32
}

func newTestScene(t *testing.T, lights ...light.Light) *testScene {
	t.Helper()
	cam := camera.NewCamera(camera.WithController(camera.NewCameraController(
		camera.WithPosition(0, 0, 0),
		camera.WithTarget(0, 0, 1),
	)))
	vp := cam.ViewProjectionMatrix()
	clip := common.TransformPoint(vp[:], [4]float32{0, 0, 1, 1})
	gb := lpv.NewGBuffer(4, 4)
	gb.Set(2, 2, clip[2]/clip[3], [3]float32{0, 0, -1})

	rsm := lpv.NewRSM(1)
	rsm.Add([3]float32{}, [3]float32{0, 0, 1}, [3]float32{1, 1, 1})
	return &testScene{cam: cam, lights: lights, rsm: rsm, gbuffer: gb, visibility: 1}
}

func (s *testScene) BoundingBox() common.AABB {
	return common.NewAABB([3]float32{-5, -5, -5}, [3]float32{5, 5, 5})
}
func (s *testScene) CameraPosition() [3]float32                     { return s.cam.Position() }
func (s *testScene) CameraDirection() [3]float32                    { return s.cam.Forward() }
func (s *testScene) CameraUniform() camera.GPUCameraUniform         { return s.cam.Uniform() }
func (s *testScene) NeedsGlobalIllumination() bool                  { return true }
func (s *testScene) ReflectiveShadowMap(light.Light, int) *lpv.RSM  { return s.rsm }
func (s *testScene) GBuffer() *lpv.GBuffer                          { return s.gbuffer }
func (s *testScene) Lights() []light.Light                          { return s.lights }
func (s *testScene) HasShadowMap(light.Light) bool                  { return !s.noShadowMaps }
func (s *testScene) ShadowVisibility(light.Light, [3]float32) float32 { return s.visibility }

// fakePass records what the orchestrator asks of it.
type fakePass struct {
	kind    PassType
	lights  []light.Light
	visible []light.Light
	waited  []framegraph.Semaphore
	renders int
	out     [][3]float32
	cleaned bool
}

func (p *fakePass) Kind() PassType { return p.kind }

func (p *fakePass) RegisterLight(l light.Light) error {
	p.lights = append(p.lights, l)
	return nil
}

func (p *fakePass) UnregisterLight(l light.Light) {
	p.lights = slices.DeleteFunc(p.lights, func(o light.Light) bool { return o == l })
}

func (p *fakePass) Lights() []light.Light { return p.lights }

func (p *fakePass) Update(_ SceneQuery, visible []light.Light) error {
	p.visible = slices.Clone(visible)
	return nil
}

func (p *fakePass) Render(toWait []framegraph.Semaphore, _ *framegraph.Queue) ([]framegraph.Semaphore, error) {
	p.waited = toWait
	p.renders++
	return []framegraph.Semaphore{{Label: p.kind.String(), Value: uint64(p.renders)}}, nil
}

func (p *fakePass) Output() [][3]float32 { return p.out }
func (p *fakePass) Cleanup()             { p.cleaned = true }

type fakePasses map[PassType]*fakePass

func (f fakePasses) factory(_ lpv.RenderContext, kind PassType) LightPass {
	p := &fakePass{kind: kind, out: [][3]float32{{float32(kind), 0, 0}}}
	f[kind] = p
	return p
}

func newFakeLightingPass(opts ...LightingPassBuilderOption) (LightingPass, fakePasses) {
	passes := fakePasses{}
	opts = append(opts, WithPassFactory(passes.factory))
	return NewLightingPass(lpv.RenderContext{Config: gi.DefaultConfig()}, opts...), passes
}

func TestLightingPassAssignsPasses(t *testing.T) {
	sun := light.NewLight(light.LightTypeDirectional, light.WithCastsShadows(true), light.WithGIType(gi.TypeLayeredLpv))
	spot := light.NewLight(light.LightTypeSpot, light.WithCastsShadows(true), light.WithGIType(gi.TypeLayeredLpvG))
	point := light.NewLight(light.LightTypePoint, light.WithCastsShadows(true), light.WithGIType(gi.TypeLayeredLpv))
	unshadowed := light.NewLight(light.LightTypePoint, light.WithGIType(gi.TypeLpv))

	lp, passes := newFakeLightingPass()
	require.NoError(t, lp.Update(newTestScene(t, sun, spot, point, unshadowed)))

	want := map[light.Light]PassType{
		sun:        PassTypeShadowLayeredLpvGI,
		spot:       PassTypeShadowLpvGGI,
		point:      PassTypeShadowNoGI,
		unshadowed: PassTypeNoShadow,
	}
	for l, pt := range want {
		got, ok := lp.PassTypeOf(l)
		require.True(t, ok, l.Name())
		assert.Equal(t, pt, got, l.Name())
		assert.Contains(t, passes[pt].lights, l)
	}
	assert.Len(t, passes, 4)
	assert.Nil(t, lp.Pass(PassTypeShadowLpvGI))
}

func TestLightingPassMovesLights(t *testing.T) {
	sun := light.NewLight(light.LightTypeDirectional, light.WithCastsShadows(true), light.WithGIType(gi.TypeLpv))
	scene := newTestScene(t, sun)
	lp, passes := newFakeLightingPass()

	require.NoError(t, lp.Update(scene))
	assert.Equal(t, []light.Light{sun}, passes[PassTypeShadowLpvGI].lights)

	scene.noShadowMaps = true
	require.NoError(t, lp.Update(scene))
	assert.Empty(t, passes[PassTypeShadowLpvGI].lights)
	assert.Equal(t, []light.Light{sun}, passes[PassTypeNoShadow].lights)

	sun.SetGIType(gi.TypeLpvG)
	scene.noShadowMaps = false
	require.NoError(t, lp.Update(scene))
	assert.Empty(t, passes[PassTypeNoShadow].lights)
	assert.Equal(t, []light.Light{sun}, passes[PassTypeShadowLpvGGI].lights)

	scene.lights = nil
	require.NoError(t, lp.Update(scene))
	assert.Empty(t, passes[PassTypeShadowLpvGGI].lights)
	_, ok := lp.PassTypeOf(sun)
	assert.False(t, ok)
}

func TestLightingPassCullsLights(t *testing.T) {
	sun := light.NewLight(light.LightTypeDirectional, light.WithDirection(0, 0, 1))
	ahead := light.NewLight(light.LightTypePoint, light.WithPosition(0, 0, 5), light.WithRange(2))
	behind := light.NewLight(light.LightTypePoint, light.WithPosition(0, 0, -50), light.WithRange(10))
	spotBehind := light.NewLight(light.LightTypeSpot, light.WithPosition(0, 0, -50), light.WithRange(10))
	off := light.NewLight(light.LightTypePoint, light.WithPosition(0, 0, 5), light.WithEnabled(false))
	scene := newTestScene(t, sun, ahead, behind, spotBehind, off)

	lp, passes := newFakeLightingPass()
	require.NoError(t, lp.Update(scene))
	assert.ElementsMatch(t, []light.Light{sun, ahead}, lp.Visible())
	assert.ElementsMatch(t, []light.Light{sun, ahead}, passes[PassTypeNoShadow].visible)
	assert.Len(t, passes[PassTypeNoShadow].lights, 5)

	unculled, passes := newFakeLightingPass(WithCulling(false))
	require.NoError(t, unculled.Update(scene))
	assert.ElementsMatch(t, []light.Light{sun, ahead, behind, spotBehind}, passes[PassTypeNoShadow].visible)
}

func TestLightingPassRenderChainsPasses(t *testing.T) {
	plain := light.NewLight(light.LightTypeDirectional)
	shadowed := light.NewLight(light.LightTypeDirectional, light.WithCastsShadows(true))
	lp, passes := newFakeLightingPass()
	require.NoError(t, lp.Update(newTestScene(t, plain, shadowed)))

	toWait := []framegraph.Semaphore{{Label: "Shadows", Value: 7}}
	sems, err := lp.Render(toWait, nil)
	require.NoError(t, err)

	assert.Equal(t, toWait, passes[PassTypeNoShadow].waited)
	assert.Equal(t, []framegraph.Semaphore{{Label: "NoShadow", Value: 1}}, passes[PassTypeShadowNoGI].waited)
	assert.Equal(t, []framegraph.Semaphore{{Label: "ShadowNoGI", Value: 1}}, sems)
	assert.Equal(t, [][3]float32{{1, 0, 0}}, lp.Output())

	lp.Cleanup()
	assert.True(t, passes[PassTypeNoShadow].cleaned)
	assert.True(t, passes[PassTypeShadowNoGI].cleaned)
	assert.ErrorIs(t, lp.Update(newTestScene(t)), lpv.ErrNotInitialised)
}

func TestLightingPassWithoutLights(t *testing.T) {
	lp, passes := newFakeLightingPass()
	require.NoError(t, lp.Update(newTestScene(t)))
	toWait := []framegraph.Semaphore{{Label: "Shadows", Value: 1}}
	sems, err := lp.Render(toWait, nil)
	require.NoError(t, err)
	assert.Equal(t, toWait, sems)
	assert.Empty(t, passes)
	assert.Empty(t, lp.Output())
}

func newTestContext() lpv.RenderContext {
	return lpv.RenderContext{Backend: lpv.NewCPUBackend(lpv.WithWorkers(2)), Config: gi.DefaultConfig()}
}

func TestLightingPassDirectAndIndirect(t *testing.T) {
	ctx := newTestContext()
	defer ctx.Backend.Release()
	sun := light.NewLight(light.LightTypeDirectional,
		light.WithDirection(0, 0, 1),
		light.WithCastsShadows(true),
		light.WithGIType(gi.TypeLpv),
	)
	scene := newTestScene(t, sun)
	lp := NewLightingPass(ctx)
	defer lp.Cleanup()

	queue := framegraph.NewQueue("graphics")
	require.NoError(t, lp.Update(scene))
	sems, err := lp.Render(nil, queue)
	require.NoError(t, err)
	require.Len(t, sems, 1)
	assert.Equal(t, "Lighting ShadowLpvGI", sems[0].Label)
	assert.True(t, queue.Signaled(framegraph.Semaphore{Label: "LPV", Value: 1}))

	out := lp.Output()
	require.Len(t, out, 16)
	lit := out[2*4+2][0]
	assert.Greater(t, lit, float32(1/math32.Pi))
	for i, px := range out {
		if i != 2*4+2 {
			assert.Equal(t, [3]float32{}, px, "sky pixel %d", i)
		}
	}

	// Fully shadowed: only the indirect term remains.
	scene.visibility = 0
	require.NoError(t, lp.Update(scene))
	_, err = lp.Render(sems, queue)
	require.NoError(t, err)
	indirect := lp.Output()[2*4+2][0]
	assert.Positive(t, indirect)
	assert.InDelta(t, 1/math32.Pi, lit-indirect, 1e-5)

	pass, ok := lp.Pass(PassTypeShadowLpvGI).(IndirectLightPass)
	require.True(t, ok)
	assert.Equal(t, "LPV", pass.Feature().Name())
	assert.Equal(t, []light.Light{sun}, pass.Feature().Lights())

	var names []string
	require.NoError(t, lp.Accept(lpv.VisitorFunc(func(info lpv.VolumeInfo, _ *lpv.Volume) {
		names = append(names, info.Name)
	})))
	assert.Contains(t, names, "LPV Injection R")
	assert.Contains(t, names, "LPV Accumulation B")
}

func TestLightingPassIndirectAttenuation(t *testing.T) {
	ctx := newTestContext()
	defer ctx.Backend.Release()
	sun := light.NewLight(light.LightTypeDirectional,
		light.WithDirection(0, 0, 1),
		light.WithCastsShadows(true),
		light.WithGIType(gi.TypeLpv),
	)
	scene := newTestScene(t, sun)
	scene.visibility = 0
	lp := NewLightingPass(ctx)
	defer lp.Cleanup()

	require.NoError(t, lp.Update(scene))
	_, err := lp.Render(nil, nil)
	require.NoError(t, err)
	base := lp.Output()[2*4+2][0]
	require.Positive(t, base)

	lp.SetIndirectAttenuation(3)
	require.NoError(t, lp.Update(scene))
	_, err = lp.Render(nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 3*base, lp.Output()[2*4+2][0], float64(base)*1e-4)
}

func TestLightingPassUnshadowedIgnoresVisibility(t *testing.T) {
	ctx := newTestContext()
	defer ctx.Backend.Release()
	sun := light.NewLight(light.LightTypeDirectional, light.WithDirection(0, 0, 1), light.WithGIType(gi.TypeLpv))
	scene := newTestScene(t, sun)
	scene.visibility = 0
	lp := NewLightingPass(ctx)
	defer lp.Cleanup()

	require.NoError(t, lp.Update(scene))
	_, err := lp.Render(nil, nil)
	require.NoError(t, err)

	pt, _ := lp.PassTypeOf(sun)
	assert.Equal(t, PassTypeNoShadow, pt)
	assert.InDelta(t, 1/math32.Pi, lp.Output()[2*4+2][0], 1e-6)
}

func TestRadiance(t *testing.T) {
	facing := [3]float32{0, 0, -1}
	sun := light.ToGPULight(light.NewLight(light.LightTypeDirectional, light.WithDirection(0, 0, 1), light.WithIntensity(2)))
	assert.InDelta(t, 2/math32.Pi, Radiance(&sun, [3]float32{3, 4, 5}, facing), 1e-6)
	assert.Zero(t, Radiance(&sun, [3]float32{}, [3]float32{0, 0, 1}))

	point := light.ToGPULight(light.NewLight(light.LightTypePoint, light.WithRange(10)))
	assert.InDelta(t, 0.5625/math32.Pi, Radiance(&point, [3]float32{0, 0, 5}, facing), 1e-6)
	assert.Zero(t, Radiance(&point, [3]float32{0, 0, 10}, facing))
	assert.Zero(t, Radiance(&point, [3]float32{}, facing))

	spot := light.ToGPULight(light.NewLight(light.LightTypeSpot, light.WithDirection(0, 0, 1), light.WithRange(10)))
	assert.InDelta(t, 0.5625/math32.Pi, Radiance(&spot, [3]float32{0, 0, 5}, facing), 1e-6)
	side := common.Normalize3([3]float32{-1, 0, -1})
	assert.Zero(t, Radiance(&spot, [3]float32{5, 0, 5}, side))
}
