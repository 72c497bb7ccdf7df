package light

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-lpv/engine/gi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLightDefaults(t *testing.T) {
	l := NewLight(LightTypeSpot)

	assert.True(t, strings.HasPrefix(l.Name(), "Spot"))
	assert.Equal(t, LightTypeSpot, l.Type())
	assert.True(t, l.Enabled())
	assert.Equal(t, gi.TypeNone, l.GIType())
	assert.Equal(t, float32(1), l.IndirectAttenuation())
	assert.Equal(t, float32(DefaultShadowHalfExtent), l.ShadowHalfExtent())
	assert.True(t, l.HasChanged())
	assert.NotEqual(t, l.Name(), NewLight(LightTypeSpot).Name())
}

func TestLightOptions(t *testing.T) {
	l := NewLight(LightTypeDirectional,
		WithName("sun"),
		WithDirection(0, -2, 0),
		WithColor(1, 0.5, 0.25),
		WithIntensity(3),
		WithGIType(gi.TypeLayeredLpvG),
		WithIndirectAttenuation(0.75),
		WithTexelAreaModifier(2),
		WithShadowHalfExtent(10),
		WithCastsShadows(true),
	)

	assert.Equal(t, "sun", l.Name())
	assert.Equal(t, [3]float32{0, -1, 0}, l.Direction())
	assert.Equal(t, [3]float32{1, 0.5, 0.25}, l.Color())
	assert.Equal(t, float32(3), l.Intensity())
	assert.Equal(t, gi.TypeLayeredLpvG, l.GIType())
	assert.Equal(t, float32(0.75), l.IndirectAttenuation())
	assert.Equal(t, float32(2), l.TexelAreaModifier())
	assert.Equal(t, float32(10), l.ShadowHalfExtent())
	assert.True(t, l.CastsShadows())
}

func TestLightChangeTracking(t *testing.T) {
	l := NewLight(LightTypePoint)
	l.ResetChanged()
	assert.False(t, l.HasChanged())

	setters := []func(){
		func() { l.SetPosition(1, 2, 3) },
		func() { l.SetDirection(1, 0, 0) },
		func() { l.SetColor(1, 1, 0) },
		func() { l.SetIntensity(2) },
		func() { l.SetRange(5) },
		func() { l.SetSpotCone(10, 20) },
		func() { l.SetEnabled(false) },
		func() { l.SetCastsShadows(true) },
		func() { l.SetGIType(gi.TypeLpv) },
		func() { l.SetIndirectAttenuation(0.5) },
	}
	for i, set := range setters {
		set()
		assert.True(t, l.HasChanged(), "setter %d", i)
		l.ResetChanged()
	}
}

func TestTanHalfFov(t *testing.T) {
	assert.Equal(t, float32(1), NewLight(LightTypePoint).TanHalfFov())
	assert.Zero(t, NewLight(LightTypeDirectional).TanHalfFov())

	spot := NewLight(LightTypeSpot, WithSpotCone(30, 45))
	assert.InDelta(t, 1.0, spot.TanHalfFov(), 1e-5)
}

func TestFaceCount(t *testing.T) {
	assert.Equal(t, 6, LightTypePoint.FaceCount())
	assert.Equal(t, 1, LightTypeSpot.FaceCount())
	assert.Equal(t, 1, LightTypeDirectional.FaceCount())

	var sum [3]float32
	for face := range CubeFaceCount {
		d := CubeFaceDirection(face)
		for i := range 3 {
			sum[i] += d[i]
		}
	}
	assert.Equal(t, [3]float32{}, sum)
}

func TestMarshalLightBuffer(t *testing.T) {
	a := NewLight(LightTypeSpot, WithPosition(1, 2, 3), WithGIType(gi.TypeLpvG), WithCastsShadows(true))
	b := NewLight(LightTypePoint, WithEnabled(false))
	c := NewLight(LightTypeDirectional, WithIntensity(4))

	buf, n := MarshalLightBuffer([]Light{a, b, c})
	require.Equal(t, 2, n)
	size := (&GPULight{}).Size()
	require.Len(t, buf, 2*size)

	first, err := UnmarshalGPULight(buf[:size])
	require.NoError(t, err)
	assert.Equal(t, ToGPULight(a), first)
	assert.Equal(t, uint32(gi.TypeLpvG), first.GIType)
	assert.Equal(t, uint32(1), first.CastsShadows)

	second, err := UnmarshalGPULight(buf[size:])
	require.NoError(t, err)
	assert.Equal(t, float32(4), second.Intensity)
	assert.Equal(t, uint32(LightTypeDirectional), second.LightType)

	_, err = UnmarshalGPULight(buf[:4])
	assert.Error(t, err)
}
