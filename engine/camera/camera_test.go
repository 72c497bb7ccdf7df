package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-lpv/common"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCameraLooksAtTarget(t *testing.T) {
	c := NewCamera(WithController(NewCameraController(WithPosition(0, 0, 0), WithTarget(0, 0, 1))))

	assert.Equal(t, [3]float32{0, 0, 0}, c.Position())
	assert.Equal(t, [3]float32{0, 0, 1}, c.Forward())

	vp := c.ViewProjectionMatrix()
	clip := common.TransformPoint(vp[:], [4]float32{0, 0, 5, 1})
	require.Positive(t, clip[3])
	assert.InDelta(t, 0, clip[0]/clip[3], 1e-5)
	assert.InDelta(t, 0, clip[1]/clip[3], 1e-5)
	depth := clip[2] / clip[3]
	assert.Greater(t, depth, float32(0))
	assert.Less(t, depth, float32(1))

	behind := common.TransformPoint(vp[:], [4]float32{0, 0, -5, 1})
	assert.Negative(t, behind[3])
}

func TestCameraInverseViewProjection(t *testing.T) {
	c := NewCamera(WithAspect(16.0/9.0), WithFov(math32.Pi/3))
	vp, inv := c.ViewProjectionMatrix(), c.InverseViewProjectionMatrix()

	world := [4]float32{1.5, -2, 3, 1}
	clip := common.TransformPoint(vp[:], world)
	back := common.TransformPoint(inv[:], clip)
	for i := range 3 {
		assert.InDelta(t, world[i], back[i]/back[3], 1e-3)
	}

	u := c.Uniform()
	assert.Equal(t, vp, u.ViewProj)
	assert.Equal(t, inv, u.InvViewProj)
	assert.Equal(t, c.Position(), u.CameraPosition)
}

func TestCameraUniformRoundTrip(t *testing.T) {
	u := NewCamera().Uniform()
	buf := u.Marshal()
	require.Len(t, buf, u.Size())

	got, err := UnmarshalGPUCameraUniform(buf)
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestCameraFollowsController(t *testing.T) {
	ctrl := NewCameraController(WithOrbit(10, 0, 0))
	c := NewCamera(WithController(ctrl))
	assert.InDelta(t, 10, common.Length3(c.Position()), 1e-4)

	ctrl.Zoom(5)
	assert.InDelta(t, 10, common.Length3(c.Position()), 1e-4)
	c.Update()
	assert.InDelta(t, 5, common.Length3(c.Position()), 1e-4)
}

func TestCameraControllerOrbitClampsElevation(t *testing.T) {
	ctrl := NewCameraController(WithSpeeds(1, 1, 1))
	ctrl.Orbit(0, 100)
	assert.InDelta(t, math32.Pi/2-0.1, ctrl.Elevation(), 1e-6)
	ctrl.Orbit(0, -200)
	assert.InDelta(t, -math32.Pi/2+0.1, ctrl.Elevation(), 1e-6)
}

func TestCameraControllerPanMovesTargetAndPosition(t *testing.T) {
	ctrl := NewCameraController(WithPosition(0, 0, -5), WithTarget(0, 0, 0), WithSpeeds(0.03, 1, 1))
	ctrl.Pan(0, 0, 2)

	assert.InDeltaSlice(t, []float32{0, 0, 2}, func() []float32 { v := ctrl.Target(); return v[:] }(), 1e-6)
	assert.InDeltaSlice(t, []float32{0, 0, -3}, func() []float32 { v := ctrl.Position(); return v[:] }(), 1e-6)
}

func TestCameraBuilderOptions(t *testing.T) {
	c := NewCamera(WithFov(90), WithAspect(2), WithClipPlanes(0.5, 50))
	assert.InDelta(t, math32.Pi/2, c.Fov(), 1e-6)
	assert.Equal(t, float32(2), c.Aspect())
	assert.Equal(t, float32(0.5), c.Near())
	assert.Equal(t, float32(50), c.Far())

	d := NewCamera(WithFov(0), WithAspect(-1), WithClipPlanes(10, 1))
	assert.InDelta(t, 45*math32.Pi/180, d.Fov(), 1e-6)
	assert.Equal(t, float32(1), d.Aspect())
	assert.Equal(t, float32(0.1), d.Near())
	assert.Equal(t, float32(100), d.Far())
}

func TestCameraControllerLimits(t *testing.T) {
	ctrl := NewCameraController(WithOrbit(50, 0, 0), WithLimits(2, 20, -0.5, 0.5), WithSpeeds(1, 1, 1))
	ctrl.Orbit(0, 10)
	assert.InDelta(t, 0.5, ctrl.Elevation(), 1e-6)

	ctrl.Zoom(100)
	c := NewCamera(WithController(ctrl))
	assert.InDelta(t, 2, common.Length3(common.Sub3(c.Position(), c.Target())), 1e-4)

	ignored := NewCameraController(WithLimits(5, 1, 1, -1), WithSpeeds(1, 1, 1))
	ignored.Orbit(0, 100)
	assert.InDelta(t, math32.Pi/2-0.1, ignored.Elevation(), 1e-6)
}
