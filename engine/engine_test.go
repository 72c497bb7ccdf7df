package engine

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-lpv/engine/camera"
	"github.com/Carmen-Shannon/oxy-lpv/engine/event"
	"github.com/Carmen-Shannon/oxy-lpv/engine/framegraph"
	"github.com/Carmen-Shannon/oxy-lpv/engine/game_object"
	"github.com/Carmen-Shannon/oxy-lpv/engine/gi"
	"github.com/Carmen-Shannon/oxy-lpv/engine/light"
	"github.com/Carmen-Shannon/oxy-lpv/engine/lighting"
	"github.com/Carmen-Shannon/oxy-lpv/engine/lpv"
	"github.com/Carmen-Shannon/oxy-lpv/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNeedsGI = errors.New("gi failed")

// failingPass fails its Update whenever the scene asks for global illumination, or always.
type failingPass struct {
	kind   lighting.PassType
	always bool
	lights []light.Light
}

func (p *failingPass) Kind() lighting.PassType { return p.kind }
func (p *failingPass) RegisterLight(l light.Light) error {
	p.lights = append(p.lights, l)
	return nil
}
func (p *failingPass) UnregisterLight(light.Light) {}
func (p *failingPass) Lights() []light.Light        { return p.lights }
func (p *failingPass) Update(s lighting.SceneQuery, _ []light.Light) error {
	if p.always || s.NeedsGlobalIllumination() {
		return errNeedsGI
	}
	return nil
}
func (p *failingPass) Render(toWait []framegraph.Semaphore, _ *framegraph.Queue) ([]framegraph.Semaphore, error) {
	return toWait, nil
}
func (p *failingPass) Output() [][3]float32 { return nil }
func (p *failingPass) Cleanup()             {}

func newTestScene(t *testing.T, e Engine, opts ...scene.SceneBuilderOption) scene.Scene {
	t.Helper()
	cam := camera.NewCamera(camera.WithController(camera.NewCameraController(
		camera.WithPosition(0, 4, -4),
		camera.WithTarget(0, 0, 0),
	)))
	ctx := e.RenderContext(lpv.NewCPUBackend(lpv.WithWorkers(2)), gi.DefaultConfig())
	opts = append([]scene.SceneBuilderOption{
		scene.WithActive(true),
		scene.WithResolution(8, 8),
		scene.WithRSMResolution(8),
		scene.WithComputeWorkers(2),
		scene.WithObjects(game_object.NewGameObject(game_object.WithScale(6, 1, 6))),
	}, opts...)
	s := scene.NewScene("test", cam, ctx, opts...)
	t.Cleanup(s.Cleanup)
	return s
}

func TestRenderFrameWithoutScenes(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.RenderFrame(0.016))
	assert.Equal(t, uint64(1), e.Frames())
	assert.Empty(t, e.Semaphores())
}

func TestRenderFrameChainsFrames(t *testing.T) {
	e := NewEngine()
	s := newTestScene(t, e)
	s.AddLight(light.NewLight(light.LightTypeDirectional))
	e.AddScene(0, s)

	require.NoError(t, e.RenderFrame(0.016))
	assert.Equal(t, []framegraph.Semaphore{{Label: "Lighting NoShadow", Value: 1}}, e.Semaphores())

	require.NoError(t, e.RenderFrame(0.016))
	assert.Equal(t, []framegraph.Semaphore{{Label: "Lighting NoShadow", Value: 2}}, e.Semaphores())
	assert.True(t, e.Queue().Signaled(framegraph.Semaphore{Label: "Lighting NoShadow", Value: 2}))
	assert.NotEmpty(t, s.Output())

	s.SetActive(false)
	require.NoError(t, e.RenderFrame(0.016))
	assert.Equal(t, uint64(2), e.Semaphores()[0].Value)
	assert.Equal(t, uint64(3), e.Frames())
}

func TestRenderFrameRunsEvents(t *testing.T) {
	e := NewEngine()
	var order []string
	e.Events().Post(event.NewFunctorEvent(event.TypePostRender, func() { order = append(order, "post") }))
	e.Events().Post(event.NewFunctorEvent(event.TypePreRender, func() { order = append(order, "pre") }))
	skipped := e.Events().Post(event.NewFunctorEvent(event.TypePreRender, func() { order = append(order, "skipped") }))
	skipped.Skip()

	require.NoError(t, e.RenderFrame(0))
	assert.Equal(t, []string{"pre", "post"}, order)
	assert.Equal(t, 0, e.Events().Pending(event.TypePreRender))
}

func TestRenderFrameDisablesGlobalIllumination(t *testing.T) {
	e := NewEngine()
	factory := func(_ lpv.RenderContext, kind lighting.PassType) lighting.LightPass {
		return &failingPass{kind: kind}
	}
	s := newTestScene(t, e, scene.WithLightingOptions(lighting.WithPassFactory(factory)))
	s.AddLight(light.NewLight(light.LightTypeDirectional, light.WithGIType(gi.TypeLpv), light.WithCastsShadows(true)))
	e.AddScene(0, s)

	require.NoError(t, e.RenderFrame(0.016))
	assert.True(t, s.GlobalIllumination(), "re-enabled after the frame")
	assert.Equal(t, uint64(1), e.Frames())
}

func TestRenderFrameReportsPersistentFailures(t *testing.T) {
	e := NewEngine()
	factory := func(_ lpv.RenderContext, kind lighting.PassType) lighting.LightPass {
		return &failingPass{kind: kind, always: true}
	}
	s := newTestScene(t, e, scene.WithLightingOptions(lighting.WithPassFactory(factory)))
	s.AddLight(light.NewLight(light.LightTypeDirectional, light.WithGIType(gi.TypeLpv)))
	e.AddScene(0, s)

	err := e.RenderFrame(0.016)
	require.Error(t, err)
	assert.ErrorIs(t, err, errNeedsGI)
	assert.True(t, s.GlobalIllumination())
	assert.Equal(t, uint64(1), e.Frames())
}

func TestSceneRegistry(t *testing.T) {
	e := NewEngine()
	a := newTestScene(t, e)
	b := newTestScene(t, e)
	e.AddScene(2, b)
	e.AddScene(1, a)

	assert.Same(t, a, e.Scene(1))
	assert.Len(t, e.Scenes(), 2)
	e.RemoveScene(1)
	assert.Nil(t, e.Scene(1))
	assert.Len(t, e.Scenes(), 1)
}

func TestRenderContext(t *testing.T) {
	e := NewEngine()
	backend := lpv.NewCPUBackend()
	ctx := e.RenderContext(backend, gi.DefaultConfig())

	assert.Same(t, e.Events(), ctx.Events)
	assert.Same(t, e.Profiler(), ctx.Profiler)
	assert.NotNil(t, ctx.Executor)
	assert.Equal(t, "cpu", ctx.Backend.Name())
}

func TestRunUntilQuit(t *testing.T) {
	e := NewEngine(WithTickRate(1000))
	e.SetRenderCallback(func(float32) {
		if e.Frames() >= 3 {
			e.Quit()
		}
	})
	e.Run()
	assert.GreaterOrEqual(t, e.Frames(), uint64(3))
	e.Quit()
}

func TestRunRecoversPanics(t *testing.T) {
	e := NewEngine()
	e.SetRenderCallback(func(float32) { panic("boom") })
	assert.NotPanics(t, e.Run)
	assert.Equal(t, uint64(1), e.Frames())
}

func TestWatchConfigMissingDirectory(t *testing.T) {
	e := NewEngine()
	err := e.WatchConfig(filepath.Join(t.TempDir(), "missing", "gi.toml"))
	assert.Error(t, err)
}

// recordingScene logs the calls the engine makes on a scene.
type recordingScene struct {
	scene.Scene
	calls []string
}

func (r *recordingScene) SetIndirectAttenuation(attenuation float32) {
	r.calls = append(r.calls, fmt.Sprintf("attenuation %g", attenuation))
	r.Scene.SetIndirectAttenuation(attenuation)
}

func (r *recordingScene) Update(deltaTime float32) error {
	r.calls = append(r.calls, "update")
	return r.Scene.Update(deltaTime)
}

func TestReloadedConfigAppliesBeforeUpdate(t *testing.T) {
	e := NewEngine()
	s := &recordingScene{Scene: newTestScene(t, e)}
	e.AddScene(0, s)

	cfg := gi.DefaultConfig()
	cfg.IndirectAttenuation = 3
	e.(*engine).queueConfig(gi.DefaultConfig())
	e.(*engine).queueConfig(cfg)

	require.NoError(t, e.RenderFrame(0.016))
	assert.Equal(t, []string{"attenuation 3", "update"}, s.calls)

	require.NoError(t, e.RenderFrame(0.016))
	assert.Equal(t, []string{"attenuation 3", "update", "update"}, s.calls)
}
