package scene

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-lpv/engine/camera"
	"github.com/Carmen-Shannon/oxy-lpv/engine/framegraph"
	"github.com/Carmen-Shannon/oxy-lpv/engine/game_object"
	"github.com/Carmen-Shannon/oxy-lpv/engine/gi"
	"github.com/Carmen-Shannon/oxy-lpv/engine/light"
	"github.com/Carmen-Shannon/oxy-lpv/engine/lighting"
	"github.com/Carmen-Shannon/oxy-lpv/engine/lpv"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext() lpv.RenderContext {
	return lpv.RenderContext{Backend: lpv.NewCPUBackend(lpv.WithWorkers(2)), Config: gi.DefaultConfig()}
}

func newTestCamera() camera.Camera {
	return camera.NewCamera(camera.WithController(camera.NewCameraController(
		camera.WithPosition(0, 4, -4),
		camera.WithTarget(0, 0, 0),
	)))
}

// newFloor is a 6x6 quad at y = 0.
func newFloor() game_object.GameObject {
	return game_object.NewGameObject(
		game_object.WithScale(6, 1, 6),
		game_object.WithAlbedo(0.5, 0.5, 0.5),
	)
}

func newTestScene(t *testing.T, opts ...SceneBuilderOption) Scene {
	t.Helper()
	opts = append([]SceneBuilderOption{WithResolution(16, 16), WithRSMResolution(16), WithComputeWorkers(2)}, opts...)
	s := NewScene("test", newTestCamera(), newTestContext(), opts...)
	t.Cleanup(s.Cleanup)
	return s
}

func TestNewSceneRequiresCameraAndBackend(t *testing.T) {
	assert.Panics(t, func() { NewScene("x", nil, newTestContext()) })
	assert.Panics(t, func() { NewScene("x", newTestCamera(), lpv.RenderContext{}) })
}

func TestSceneRegistry(t *testing.T) {
	s := newTestScene(t)
	lamp := light.NewLight(light.LightTypePoint)
	sun := light.NewLight(light.LightTypeDirectional)
	s.AddLight(sun)
	s.AddLight(sun)

	floor := newFloor()
	id := s.Add(floor)
	lampObj := game_object.NewGameObject(game_object.WithLight(lamp), game_object.WithID(10))
	s.Add(lampObj)
	tmp := game_object.NewGameObject(game_object.WithEphemeral(true))
	s.Add(tmp)

	assert.Equal(t, uint64(1), id)
	assert.Equal(t, uint64(11), tmp.ID())
	assert.Equal(t, 2, s.Count())
	assert.Equal(t, 1, s.CountEphemeral())
	assert.Same(t, floor, s.Get(id))
	assert.Nil(t, s.Get(tmp.ID()))
	assert.ElementsMatch(t, []light.Light{sun, lamp}, s.Lights())

	s.Remove(10)
	assert.Nil(t, s.Get(10))
	assert.ElementsMatch(t, []light.Light{sun}, s.Lights())

	s.Add(lampObj)
	s.DetachLight(lampObj)
	assert.ElementsMatch(t, []light.Light{sun}, s.Lights())
	assert.NotNil(t, s.Get(10))

	s.Add(lampObj)
	s.Clear()
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, 0, s.CountEphemeral())
	assert.ElementsMatch(t, []light.Light{sun}, s.Lights())

	s.RemoveLight(sun)
	assert.Empty(t, s.Lights())
}

func TestSceneSettings(t *testing.T) {
	s := newTestScene(t, WithActive(true), WithAmbientColor([3]float32{0.1, 0.1, 0.1}))

	assert.True(t, s.Active())
	s.SetActive(false)
	assert.False(t, s.Active())
	s.SetName("other")
	assert.Equal(t, "other", s.Name())
	assert.Equal(t, [3]float32{0.1, 0.1, 0.1}, s.AmbientColor())

	s.SetResolution(32, 16)
	w, h := s.Resolution()
	assert.Equal(t, uint32(32), w)
	assert.Equal(t, uint32(16), h)
	assert.Equal(t, float32(2), s.Camera().Aspect())
	s.SetResolution(0, 8)
	w, _ = s.Resolution()
	assert.Equal(t, uint32(32), w)

	cam := newTestCamera()
	s.SetCamera(cam)
	s.SetCamera(nil)
	assert.Same(t, cam, s.Camera())
	assert.Equal(t, float32(2), cam.Aspect())
}

func TestSceneNeedsGlobalIllumination(t *testing.T) {
	s := newTestScene(t)
	assert.False(t, s.NeedsGlobalIllumination())

	s.AddLight(light.NewLight(light.LightTypeDirectional))
	assert.False(t, s.NeedsGlobalIllumination())

	gl := light.NewLight(light.LightTypeDirectional, light.WithGIType(gi.TypeLpv))
	s.AddLight(gl)
	assert.True(t, s.NeedsGlobalIllumination())

	s.SetGlobalIllumination(false)
	assert.False(t, s.GlobalIllumination())
	assert.False(t, s.NeedsGlobalIllumination())
	s.SetGlobalIllumination(true)

	gl.SetEnabled(false)
	assert.False(t, s.NeedsGlobalIllumination())
}

func TestSceneGBuffer(t *testing.T) {
	s := newTestScene(t, WithObjects(newFloor()))
	require.NoError(t, s.Update(0))

	gb := s.GBuffer()
	require.NotNil(t, gb)
	assert.Equal(t, uint32(16), gb.Width)

	inv := s.CameraUniform().InvViewProj
	center := 8*16 + 8
	require.Less(t, gb.Depth[center], float32(1))
	assert.InDelta(t, 1, gb.Normals[center][1], 1e-5)
	pos := gb.WorldPosition(8, 8, inv)
	assert.InDelta(t, 0, pos[1], 1e-3)
	assert.Less(t, math32.Abs(pos[0]), float32(1))
	assert.Less(t, math32.Abs(pos[2]), float32(1))

	assert.Equal(t, float32(1), gb.Depth[8], "the top row looks past the floor")

	box := s.BoundingBox()
	assert.InDelta(t, -3, box.Min[0], 1e-5)
	assert.InDelta(t, 3, box.Max[2], 1e-5)
	assert.Equal(t, [3]float32{0, 4, -4}, s.CameraPosition())
}

func TestSceneReflectiveShadowMaps(t *testing.T) {
	sun := light.NewLight(light.LightTypeDirectional,
		light.WithGIType(gi.TypeLpv),
		light.WithCastsShadows(true),
		light.WithShadowHalfExtent(4),
		light.WithColor(1, 0.5, 1),
	)
	lamp := light.NewLight(light.LightTypePoint,
		light.WithPosition(0, 2, 0),
		light.WithRange(10),
		light.WithCastsShadows(true),
		light.WithGIType(gi.TypeLpvG),
	)
	unshadowed := light.NewLight(light.LightTypeDirectional, light.WithGIType(gi.TypeLpv))
	plain := light.NewLight(light.LightTypeDirectional, light.WithCastsShadows(true))
	s := newTestScene(t, WithObjects(newFloor()))
	s.AddLight(sun)
	s.AddLight(lamp)
	s.AddLight(plain)
	s.AddLight(unshadowed)
	require.NoError(t, s.Update(0))

	rsm := s.ReflectiveShadowMap(sun, 0)
	require.NotNil(t, rsm)
	assert.Equal(t, uint32(16), rsm.Size)
	// texels are 0.5 apart; 12 of 16 per axis land on the floor
	assert.Len(t, rsm.Samples, 144)
	for _, smp := range rsm.Samples {
		assert.InDelta(t, 0, smp.Position[1], 1e-4)
		assert.InDelta(t, 1, smp.Normal[1], 1e-5)
		assert.InDelta(t, 0.5, smp.Flux[0], 1e-5)
		assert.InDelta(t, 0.25, smp.Flux[1], 1e-5)
	}

	down := s.ReflectiveShadowMap(lamp, 3)
	require.NotNil(t, down)
	assert.Len(t, down.Samples, 256, "the floor covers the whole downward face")
	up := s.ReflectiveShadowMap(lamp, 2)
	require.NotNil(t, up)
	assert.Empty(t, up.Samples)

	assert.Nil(t, s.ReflectiveShadowMap(plain, 0))
	assert.Nil(t, s.ReflectiveShadowMap(unshadowed, 0))

	s.SetGlobalIllumination(false)
	require.NoError(t, s.Update(0))
	assert.Nil(t, s.ReflectiveShadowMap(sun, 0))
}

func TestSceneShadowVisibility(t *testing.T) {
	blocker := game_object.NewGameObject(game_object.WithShape(game_object.ShapeBox), game_object.WithPosition(0, 1, 0))
	s := newTestScene(t, WithObjects(newFloor(), blocker))
	require.NoError(t, s.Update(0))

	lamp := light.NewLight(light.LightTypePoint, light.WithPosition(0, 3, 0), light.WithCastsShadows(true))
	assert.Equal(t, float32(0), s.ShadowVisibility(lamp, [3]float32{0, 0, 0}))
	assert.Equal(t, float32(1), s.ShadowVisibility(lamp, [3]float32{2.5, 0, 2.5}))

	sun := light.NewLight(light.LightTypeDirectional, light.WithCastsShadows(true))
	assert.Equal(t, float32(0), s.ShadowVisibility(sun, [3]float32{0, 0, 0}))
	assert.Equal(t, float32(1), s.ShadowVisibility(sun, [3]float32{2, 0, 2}))

	assert.True(t, s.HasShadowMap(sun))
	assert.False(t, s.HasShadowMap(light.NewLight(light.LightTypeDirectional)))

	unshadowed := newTestScene(t, WithShadows(false))
	assert.False(t, unshadowed.HasShadowMap(sun))
}

func TestSceneUpdateAdvancesObjects(t *testing.T) {
	lamp := light.NewLight(light.LightTypePoint)
	obj := game_object.NewGameObject(game_object.WithPosition(1, 2, 3), game_object.WithLight(lamp),
		game_object.WithRotationSpeed(0, 1, 0))
	s := newTestScene(t, WithObjects(obj))

	require.NoError(t, s.Update(0.25))

	assert.Equal(t, [3]float32{1, 2, 3}, lamp.Position())
	_, ry, _ := obj.Rotation()
	assert.InDelta(t, 0.25, ry, 1e-6)
}

func TestSceneRenderDirectOnly(t *testing.T) {
	sun := light.NewLight(light.LightTypeDirectional)
	s := newTestScene(t, WithObjects(newFloor()), WithAmbientColor([3]float32{0.2, 0.2, 0.2}))
	s.AddLight(sun)

	require.NoError(t, s.Update(0))
	sems, err := s.Render(nil, framegraph.NewQueue("graphics"))
	require.NoError(t, err)
	require.Len(t, sems, 1)
	assert.Equal(t, "Lighting NoShadow", sems[0].Label)

	out := s.Output()
	require.Len(t, out, 256)
	center := 8*16 + 8
	assert.InDelta(t, 0.5*(1/math32.Pi+0.2), out[center][0], 1e-4)
	assert.Equal(t, [3]float32{}, out[8])
}

func TestSceneRenderWithIndirect(t *testing.T) {
	sun := light.NewLight(light.LightTypeDirectional,
		light.WithCastsShadows(true),
		light.WithGIType(gi.TypeLpv),
		light.WithShadowHalfExtent(4),
	)
	wall := game_object.NewGameObject(
		game_object.WithPosition(0, 1, 2),
		game_object.WithRotation(math32.Pi/2, 0, 0),
		game_object.WithScale(4, 1, 2),
	)
	s := newTestScene(t, WithObjects(newFloor(), wall))
	s.AddLight(sun)

	require.NoError(t, s.Update(0))
	queue := framegraph.NewQueue("graphics")
	sems, err := s.Render(nil, queue)
	require.NoError(t, err)
	require.Len(t, sems, 1)
	assert.Equal(t, "Lighting ShadowLpvGI", sems[0].Label)
	assert.True(t, queue.Signaled(framegraph.Semaphore{Label: "LPV", Value: 1}))

	pt, ok := s.Lighting().PassTypeOf(sun)
	require.True(t, ok)
	assert.Equal(t, lighting.PassTypeShadowLpvGI, pt)

	out := s.Output()
	center := 8*16 + 8
	assert.GreaterOrEqual(t, out[center][0], float32(0.5/math32.Pi)-1e-4)

	var names []string
	require.NoError(t, s.Accept(lpv.VisitorFunc(func(info lpv.VolumeInfo, _ *lpv.Volume) {
		names = append(names, info.Name)
	})))
	assert.NotEmpty(t, names)

	s.SetIndirectAttenuation(0)
	require.NoError(t, s.Update(0))
	_, err = s.Render(sems, queue)
	require.NoError(t, err)
	assert.InDelta(t, 0.5/math32.Pi, s.Output()[center][0], 1e-4)
}

func TestSceneCleanup(t *testing.T) {
	s := newTestScene(t)
	s.Cleanup()
	s.Cleanup()

	assert.ErrorIs(t, s.Update(0), ErrSceneClosed)
	_, err := s.Render(nil, framegraph.NewQueue("graphics"))
	assert.ErrorIs(t, err, ErrSceneClosed)
	assert.Nil(t, s.GBuffer())
}
