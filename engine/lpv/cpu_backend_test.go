package lpv

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-lpv/common"
	"github.com/Carmen-Shannon/oxy-lpv/engine/light"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testGrid is the grid of a 10 unit box seen from the origin looking down +Z:
// cell size 0.3125, min corner (-5, -5, -2.5).
func testGrid() VoxelGrid {
	bounds := common.NewAABB([3]float32{-5, -5, -5}, [3]float32{5, 5, 5})
	return ComputeGrid(bounds, [3]float32{}, [3]float32{0, 0, 1}, 1, 32, DefaultForwardBias)
}

func testRSM(samples ...RSMSample) *RSM {
	r := NewRSM(uint32(len(samples)))
	r.Samples = append(r.Samples[:0], samples...)
	return r
}

func requireVolumesInDelta(t *testing.T, want, got []*Volume, delta float64) {
	t.Helper()
	for c := range want {
		w, g := want[c].Texels(), got[c].Texels()
		require.Len(t, g, len(w))
		for i := range w {
			for k := range 4 {
				require.InDelta(t, w[i][k], g[i][k], delta, "channel %d texel %d coefficient %d", c, i, k)
			}
		}
	}
}

func TestInjectLightPlacesLobeAlongNormal(t *testing.T) {
	grid := testGrid()
	target := newChannels(32)
	lc := GPULpvLightConfig{Intensity: 2}

	injectLight(testRSM(RSMSample{Normal: [3]float32{0, 0, 1}, Flux: [3]float32{1, 0.5, 0}}), lc, grid, target)

	want := CosLobe([3]float32{0, 0, 1}).Scale(2 / math32.Pi)
	assert.Equal(t, want, target[ChannelR].At(16, 16, 8))
	assert.Equal(t, want.Scale(0.5), target[ChannelG].At(16, 16, 8))
	assert.Zero(t, target[ChannelB].Energy())
	assert.InDelta(t, want[0]+want[0]*0.5, target[ChannelR].Energy()+target[ChannelG].Energy(), 1e-6)
}

func TestInjectLightIsAdditiveAndOrderIndependent(t *testing.T) {
	grid := testGrid()
	lc := GPULpvLightConfig{Intensity: 1}
	a := []RSMSample{
		{Position: [3]float32{0, 0, 0}, Normal: [3]float32{0, 0, 1}, Flux: [3]float32{1, 1, 1}},
		{Position: [3]float32{1, -1, 2}, Normal: [3]float32{0, 1, 0}, Flux: [3]float32{0.2, 0.4, 0.6}},
		{Position: [3]float32{0.05, 0.02, 0.01}, Normal: [3]float32{1, 0, 0}, Flux: [3]float32{3, 0, 1}},
	}
	b := []RSMSample{
		{Position: [3]float32{0, 0, 0}, Normal: [3]float32{0, 0, 1}, Flux: [3]float32{0.5, 0.5, 0.5}},
		{Position: [3]float32{-2, 3, 1}, Normal: [3]float32{0, -1, 0}, Flux: [3]float32{1, 0, 0}},
	}

	separate := newChannels(32)
	injectLight(testRSM(a...), lc, grid, separate)
	injectLight(testRSM(b...), lc, grid, separate)

	combined := newChannels(32)
	injectLight(testRSM(append(append([]RSMSample(nil), a...), b...)...), lc, grid, combined)

	reversed := append(append([]RSMSample(nil), b...), a...)
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	shuffled := newChannels(32)
	injectLight(testRSM(reversed...), lc, grid, shuffled)

	requireVolumesInDelta(t, separate, combined, 1e-6)
	requireVolumesInDelta(t, combined, shuffled, 1e-6)
}

func TestInjectLightSkipsSamplesOutsideTheGrid(t *testing.T) {
	target := newChannels(32)
	injectLight(testRSM(
		RSMSample{Position: [3]float32{0, 0, -4}, Normal: [3]float32{0, 0, 1}, Flux: [3]float32{1, 1, 1}},
		RSMSample{Position: [3]float32{0, 0, 0}, Normal: [3]float32{0, 0, 1}},
	), GPULpvLightConfig{Intensity: 1}, testGrid(), target)

	for _, v := range target {
		assert.Zero(t, v.Energy())
	}
}

func TestInjectGeometryDirectional(t *testing.T) {
	grid := testGrid()
	lc := GPULpvLightConfig{
		LightType:         uint32(light.LightTypeDirectional),
		Direction:         [3]float32{0, 0, -1},
		RsmSize:           4,
		ShadowHalfExtent:  0.25,
		TexelAreaModifier: 1,
	}
	center := grid.CellCenter(16, 16, 8)

	target := NewVolume(32)
	injectGeometry(testRSM(
		RSMSample{Position: center, Normal: [3]float32{0, 0, 1}},
		RSMSample{Position: center, Normal: [3]float32{0, 0, -1}},
	), lc, grid, target)

	texel := 2 * lc.ShadowHalfExtent / float32(lc.RsmSize)
	blocking := saturate(texel * texel / (grid.CellSize * grid.CellSize))
	require.Positive(t, blocking)
	assert.Equal(t, CosLobe([3]float32{0, 0, 1}).Scale(blocking), target.At(16, 16, 8))
	assert.InDelta(t, SHCosLobeC0*blocking, target.Energy(), 1e-6)
}

func TestInjectGeometrySpotAreaGrowsWithDistance(t *testing.T) {
	grid := testGrid()
	lc := GPULpvLightConfig{
		LightType:         uint32(light.LightTypeSpot),
		Position:          [3]float32{0, 0, 4},
		Direction:         [3]float32{0, 0, -1},
		RsmSize:           16,
		TanHalfFovX:       1,
		TanHalfFovY:       1,
		TexelAreaModifier: 1,
	}
	near, far := NewVolume(32), NewVolume(32)
	injectGeometry(testRSM(RSMSample{Position: grid.CellCenter(16, 16, 20), Normal: [3]float32{0, 0, 1}}), lc, grid, near)
	injectGeometry(testRSM(RSMSample{Position: grid.CellCenter(16, 16, 10), Normal: [3]float32{0, 0, 1}}), lc, grid, far)

	assert.Positive(t, near.Energy())
	assert.Greater(t, far.Energy(), near.Energy())
}

func TestCPUBackendResources(t *testing.T) {
	b := NewCPUBackend(WithWorkers(1))
	assert.Equal(t, "cpu", b.Name())

	vol, err := b.CreateVolume("test", 4, ChannelCount)
	require.NoError(t, err)
	uni, err := b.CreateUniform("grid", (&GPULpvGridConfig{}).Size())
	require.NoError(t, err)
	assert.NotEqual(t, uint32(vol), uint32(uni))

	_, err = b.CreateVolume("empty", 0, 1)
	assert.Error(t, err)

	vols, err := b.ReadVolume(vol)
	require.NoError(t, err)
	assert.Len(t, vols, ChannelCount)

	err = b.WriteUniform(uni, make([]byte, 64))
	assert.Error(t, err)

	b.ReleaseVolume(vol)
	_, err = b.ReadVolume(vol)
	assert.ErrorIs(t, err, ErrUnknownResource)

	b.Release()
	_, err = b.CreateUniform("late", 16)
	assert.ErrorIs(t, err, ErrBackendReleased)
	assert.ErrorIs(t, b.ClearVolume(vol), ErrBackendReleased)
}

func TestCPUBackendPropagateMatchesHostKernel(t *testing.T) {
	grid := testGrid()
	for _, workers := range []int{1, 4} {
		b := NewCPUBackend(WithWorkers(workers))
		gridID, err := b.CreateUniform("grid", (&GPULpvGridConfig{}).Size())
		require.NoError(t, err)
		cfg := GPULpvGridConfig{
			MinCornerCellSize: [4]float32{grid.MinCorner[0], grid.MinCorner[1], grid.MinCorner[2], grid.CellSize},
			GridSize:          grid.Dimensions,
		}
		require.NoError(t, b.WriteUniform(gridID, cfg.Marshal()))
		lightID, err := b.CreateUniform("light", (&GPULpvLightConfig{}).Size())
		require.NoError(t, err)
		lc := GPULpvLightConfig{Intensity: 1}
		require.NoError(t, b.WriteUniform(lightID, lc.Marshal()))

		var ids [4]VolumeID
		for i := range ids {
			ids[i], err = b.CreateVolume("v", 32, ChannelCount)
			require.NoError(t, err)
		}
		rsm := testRSM(RSMSample{Normal: [3]float32{0, 0, 1}, Flux: [3]float32{1, 1, 1}})
		require.NoError(t, b.InjectLight(InjectionJob{RSM: rsm, Light: lightID, Grid: gridID, Target: ids[0]}))
		require.NoError(t, b.Propagate(PropagationJob{Grid: gridID, Source: ids[0], Next: ids[1], Accumulator: ids[2]}))

		src := newChannels(32)
		injectLight(rsm, lc, grid, src)
		wantNext, _ := propagateAll(src, nil)

		next, err := b.ReadVolume(ids[1])
		require.NoError(t, err)
		requireVolumesInDelta(t, wantNext, next, 1e-7)

		assert.ErrorIs(t, b.Propagate(PropagationJob{Grid: gridID, Source: ids[0], Next: ids[1], Accumulator: 999}), ErrUnknownResource)
		b.Release()
	}
}
