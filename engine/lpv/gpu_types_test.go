package lpv

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-lpv/engine/light"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGPUStructSizes(t *testing.T) {
	assert.Equal(t, 32, (&GPULpvGridConfig{}).Size())
	assert.Equal(t, 80, (&GPULayeredLpvGridConfig{}).Size())
	assert.Equal(t, 64, (&GPULpvLightConfig{}).Size())
	assert.Equal(t, 48, (&GPURsmTexel{}).Size())
	assert.Equal(t, 16, (&GPUPropagationParams{}).Size())
	assert.Equal(t, 16, (&GPUGBufferInfo{}).Size())
	assert.Len(t, (&GPULpvLightConfig{}).Marshal(), 64)
	assert.Equal(t, []byte{32, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, (&GPUPropagationParams{GridSize: 32, Blend: 1}).Marshal())
	assert.Contains(t, SHFunctionsSource, "fn sh_eval")
	assert.Contains(t, GPULpvGridConfigSource, "struct LpvGridConfig")
}

func TestLightConfigFromLight(t *testing.T) {
	l := light.NewLight(light.LightTypePoint, light.WithPosition(1, 2, 3), light.WithIndirectAttenuation(0.5))
	cfg := NewLightConfig(l, 3, 256)

	assert.Equal(t, light.CubeFaceDirection(3), cfg.Direction)
	assert.Equal(t, [3]float32{1, 2, 3}, cfg.Position)
	assert.Equal(t, uint32(3), cfg.Face)
	assert.Equal(t, uint32(256), cfg.RsmSize)
	assert.Equal(t, float32(0.5), cfg.Intensity)

	got, err := UnmarshalGPULpvLightConfig(cfg.Marshal())
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	l.SetEnabled(false)
	assert.Zero(t, NewLightConfig(l, 3, 256).Intensity)

	_, err = UnmarshalGPULpvLightConfig(make([]byte, 8))
	assert.Error(t, err)
}

func TestVolumeBufferLayout(t *testing.T) {
	r, g := NewVolume(2), NewVolume(2)
	r.Set(1, 0, 0, SH{1, 2, 3, 4})
	g.Set(1, 1, 1, SH{-1, 0, 0, 0.5})

	buf := MarshalVolume(r, g)
	require.Len(t, buf, 2*8*16)

	vols, err := UnmarshalVolume(buf, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, r.Texels(), vols[0].Texels())
	assert.Equal(t, g.Texels(), vols[1].Texels())

	_, err = UnmarshalVolume(buf[:16], 2, 2)
	assert.Error(t, err)
}

func TestMarshalGBuffer(t *testing.T) {
	g := NewGBuffer(2, 1)
	g.Set(1, 0, 0.5, [3]float32{0, 1, 0})

	depth, normals := MarshalGBuffer(g)
	require.Len(t, depth, 8)
	require.Len(t, normals, 32)
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f}, depth[0:4], "cleared pixel has depth 1")
	assert.Equal(t, []byte{0, 0, 0, 0x3f}, depth[4:8])
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f}, normals[20:24], "y of the second normal")
	assert.Equal(t, make([]byte, 4), normals[28:32], "w is unused")
}
