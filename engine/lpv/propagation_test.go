package lpv

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-lpv/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChannels(size uint32) []*Volume {
	return []*Volume{NewVolume(size), NewVolume(size), NewVolume(size)}
}

func propagateAll(src []*Volume, geometry *Volume) (next, acc []*Volume) {
	size := src[0].Size()
	next, acc = newChannels(size), newChannels(size)
	for z := range int(size) {
		propagateSlice(z, src, next, acc, geometry, false)
	}
	return next, acc
}

func TestPropagationConservesBandZero(t *testing.T) {
	src := newChannels(32)
	src[ChannelR].Set(16, 16, 16, SH{1, 0, 0, 0})

	next, acc := propagateAll(src, nil)

	assert.InDelta(t, 1.0, next[ChannelR].Energy(), 1e-4)
	assert.Zero(t, next[ChannelG].Energy())
	assert.Equal(t, next[ChannelR].Texels(), acc[ChannelR].Texels())

	nonZero := 0
	for _, sh := range next[ChannelR].Texels() {
		if !sh.IsZero() {
			nonZero++
		}
	}
	assert.Equal(t, 6, nonZero)
	assert.True(t, next[ChannelR].At(16, 16, 16).IsZero())
}

func TestPropagationIsSymmetricForIsotropicSource(t *testing.T) {
	src := newChannels(32)
	src[ChannelG].Set(10, 10, 10, SH{1, 0, 0, 0})

	next, _ := propagateAll(src, nil)
	g := next[ChannelG]

	want := g.At(10, 10, 11)[0]
	require.Positive(t, want)
	for _, c := range [][3]int{{10, 10, 9}, {11, 10, 10}, {9, 10, 10}, {10, 11, 10}, {10, 9, 10}} {
		assert.InDelta(t, want, g.At(c[0], c[1], c[2])[0], 1e-6, "cell %v", c)
	}
}

func TestPropagationDropsLightLeavingTheGrid(t *testing.T) {
	src := newChannels(8)
	src[ChannelB].Set(0, 0, 0, CosLobe([3]float32{-1, 0, 0}))

	next, _ := propagateAll(src, nil)

	assert.Less(t, next[ChannelB].Energy(), src[ChannelB].Energy())
}

func TestPropagationBlendAccumulates(t *testing.T) {
	src := newChannels(8)
	src[ChannelR].Set(4, 4, 4, SH{1, 0, 0, 0})
	next, acc := newChannels(8), newChannels(8)
	acc[ChannelR].Set(4, 4, 5, SH{2, 0, 0, 0})

	for z := range 8 {
		propagateSlice(z, src, next, acc, nil, true)
	}

	assert.InDelta(t, 2+next[ChannelR].At(4, 4, 5)[0], acc[ChannelR].At(4, 4, 5)[0], 1e-6)
}

func TestGeometryOccludesPropagation(t *testing.T) {
	src := newChannels(32)
	src[ChannelR].Set(16, 16, 16, SH{1, 0, 0, 0})
	open, _ := propagateAll(src, nil)

	// Occluders facing the source on the face between z=16 and z=17.
	geometry := NewVolume(32)
	for y := 15; y <= 16; y++ {
		for x := 15; x <= 16; x++ {
			geometry.Set(x, y, 16, CosLobe([3]float32{0, 0, -1}).Scale(4))
		}
	}
	blocked, _ := propagateAll(src, geometry)

	assert.True(t, blocked[ChannelR].At(16, 16, 17).IsZero())
	assert.Equal(t, open[ChannelR].At(16, 16, 15), blocked[ChannelR].At(16, 16, 15))
	assert.Less(t, blocked[ChannelR].At(17, 16, 16)[0], open[ChannelR].At(17, 16, 16)[0])
	assert.Positive(t, blocked[ChannelR].At(17, 16, 16)[0])
}

// A lobe tilted away from the +Z shared face still blocks the +X side face.
func TestGeometryOccludesSideFaces(t *testing.T) {
	src := newChannels(32)
	src[ChannelR].Set(16, 16, 16, SH{1, 0, 0, 0})
	open, _ := propagateAll(src, nil)

	geometry := NewVolume(32)
	lobe := CosLobe(common.Normalize3([3]float32{-1, 0, 3})).Scale(100)
	for z := 15; z <= 16; z++ {
		for y := 15; y <= 16; y++ {
			for x := 15; x <= 16; x++ {
				geometry.Set(x, y, z, lobe)
			}
		}
	}

	up := &mainDirections[0]
	require.Equal(t, [3]int{0, 0, 1}, up.offset)
	require.Positive(t, up.evalDir[0][0], "side 0 leans towards +X")
	n := [3]float32{16, 16, 16}
	assert.Equal(t, float32(1), occlusion(geometry, n, up.dir, up.occEval), "shared face stays open")
	assert.Zero(t, occlusion(geometry, n, up.evalDir[0], up.occSide[0]), "+X side face is blocked")
	assert.Equal(t, float32(1), occlusion(geometry, n, up.evalDir[2], up.occSide[2]), "-X side face stays open")

	blocked, _ := propagateAll(src, geometry)
	got, want := blocked[ChannelR].At(16, 16, 17), open[ChannelR].At(16, 16, 17)
	assert.Less(t, got[0], want[0])
	assert.Positive(t, got[0])
}

func TestOcclusionOutsideGeometryIsOpen(t *testing.T) {
	geometry := NewVolume(4)
	for i := range geometry.Texels() {
		geometry.Texels()[i] = CosLobe([3]float32{1, 0, 0}).Scale(10)
	}
	d := &mainDirections[3]
	require.Equal(t, [3]int{-1, 0, 0}, d.offset)
	assert.Equal(t, float32(1), occlusion(geometry, [3]float32{0, 1, 1}, d.dir, d.occEval))
	assert.Zero(t, occlusion(geometry, [3]float32{1, 1, 1}, d.dir, d.occEval))
}
