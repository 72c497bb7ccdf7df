package lpv

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-lpv/common"
	"github.com/Carmen-Shannon/oxy-lpv/engine/gi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBounds = common.NewAABB([3]float32{-5, -5, -5}, [3]float32{5, 5, 5})

func TestComputeGrid(t *testing.T) {
	g := testGrid()

	assert.Equal(t, uint32(32), g.Dimensions)
	assert.InDelta(t, 0.3125, g.CellSize, 1e-6)
	assert.InDelta(t, 10, g.Extent(), 1e-5)
	assert.InDeltaSlice(t, []float32{0, 0, 2.5}, g.Center[:], 1e-5)
	assert.InDeltaSlice(t, []float32{-5, -5, -2.5}, g.MinCorner[:], 1e-5)
	assert.InDeltaSlice(t, []float32{5, 5, 7.5}, func() []float32 { c := g.MaxCorner(); return c[:] }(), 1e-5)
	assert.True(t, g.Contains([3]float32{0, 0, 0}))
	assert.False(t, g.Contains([3]float32{0, 0, -3}))
}

func TestComputeGridSnapsToCells(t *testing.T) {
	a := ComputeGrid(testBounds, [3]float32{}, [3]float32{0, 0, 1}, 1, 32, DefaultForwardBias)
	b := ComputeGrid(testBounds, [3]float32{0.1, 0, 0.1}, [3]float32{0, 0, 1}, 1, 32, DefaultForwardBias)
	c := ComputeGrid(testBounds, [3]float32{1, 0, 0}, [3]float32{0, 0, 1}, 1, 32, DefaultForwardBias)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a.MinCorner, c.MinCorner)
}

func TestComputeGridPanics(t *testing.T) {
	assert.Panics(t, func() { ComputeGrid(testBounds, [3]float32{}, [3]float32{0, 0, 1}, 0, 32, 0) })
	assert.Panics(t, func() { ComputeGrid(testBounds, [3]float32{}, [3]float32{0, 0, 1}, 1, 0, 0) })
	assert.Panics(t, func() { ComputeGrid(common.AABB{}, [3]float32{}, [3]float32{0, 0, 1}, 1, 32, 0) })
}

func TestCascadesGrowCoarser(t *testing.T) {
	var prev VoxelGrid
	cam := [3]float32{1, 2, 3}
	base := testBounds.MaxDimension() / 32
	for i, scale := range gi.DefaultCascadeScales {
		g := ComputeGrid(testBounds, cam, [3]float32{0, 0, 1}, scale, 32, DefaultForwardBias)
		assert.InDelta(t, base, g.CellSize*scale, 1e-6, "cascade %d", i)
		assert.True(t, g.Contains(cam), "cascade %d must contain the camera", i)
		if i > 0 {
			assert.Greater(t, g.CellSize, prev.CellSize, "cascade %d", i)
			assert.Greater(t, g.Extent(), prev.Extent(), "cascade %d", i)
		}
		prev = g
	}
}

func TestGridConfigUboUploadsOnlyOnChange(t *testing.T) {
	b := NewCPUBackend(WithWorkers(1))
	defer b.Release()
	u, err := NewGridConfigUbo(b, "grid", 1, 32, DefaultForwardBias, 0, 1)
	require.NoError(t, err)
	assert.False(t, u.Valid())

	cam, dir := [3]float32{}, [3]float32{0, 0, 1}
	for range 3 {
		_, err := u.Update(testBounds, cam, dir)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, u.Uploads())
	assert.True(t, u.Valid())

	buf, err := b.(*cpuBackend).uniform(u.ID())
	require.NoError(t, err)
	cfg, err := UnmarshalGPULpvGridConfig(buf)
	require.NoError(t, err)
	assert.Equal(t, u.Grid().MinCorner, cfg.Grid().MinCorner)
	assert.Equal(t, u.Grid().CellSize, cfg.Grid().CellSize)
	assert.Equal(t, float32(1), cfg.IndirectAttenuation)

	changed, err := u.Update(testBounds, [3]float32{0, 0, 0.001}, dir)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2, u.Uploads())

	u.SetIndirectAttenuation(1)
	changed, _ = u.Update(testBounds, [3]float32{0, 0, 0.001}, dir)
	assert.False(t, changed)

	u.SetIndirectAttenuation(0.5)
	changed, _ = u.Update(testBounds, [3]float32{0, 0, 0.001}, dir)
	assert.True(t, changed)

	u.Invalidate()
	changed, _ = u.Update(testBounds, [3]float32{0, 0, 0.001}, dir)
	assert.True(t, changed)
	assert.Equal(t, 4, u.Uploads())
}

func TestGridConfigUboTolerance(t *testing.T) {
	b := NewCPUBackend(WithWorkers(1))
	defer b.Release()
	u, err := NewGridConfigUbo(b, "grid", 1, 32, DefaultForwardBias, 0.01, 1)
	require.NoError(t, err)

	dir := [3]float32{0, 0, 1}
	_, err = u.Update(testBounds, [3]float32{}, dir)
	require.NoError(t, err)
	changed, err := u.Update(testBounds, [3]float32{0.001, 0, 0}, dir)
	require.NoError(t, err)
	assert.False(t, changed)
	changed, err = u.Update(testBounds, [3]float32{0.5, 0, 0}, dir)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2, u.Uploads())
}

func TestLayeredGridConfigUbo(t *testing.T) {
	b := NewCPUBackend(WithWorkers(1))
	defer b.Release()

	var cascades []*GridConfigUbo
	for _, s := range gi.DefaultCascadeScales {
		u, err := NewGridConfigUbo(b, "cascade", s, 32, DefaultForwardBias, 0, 1)
		require.NoError(t, err)
		cascades = append(cascades, u)
	}
	l, err := NewLayeredGridConfigUbo(b, "layered", cascades, 1)
	require.NoError(t, err)

	dir := [3]float32{0, 0, 1}
	for range 2 {
		_, err := l.Update(testBounds, [3]float32{}, dir)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, l.Uploads())

	buf, err := b.(*cpuBackend).uniform(l.ID())
	require.NoError(t, err)
	cfg, err := UnmarshalGPULayeredLpvGridConfig(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(cascades)), cfg.CascadeCount)
	for i, c := range cascades {
		assert.Equal(t, c.Grid().MinCorner, cfg.Grid(i).MinCorner)
		assert.Equal(t, c.Grid().CellSize, cfg.Grid(i).CellSize)
	}

	l.SetIndirectAttenuation(2)
	changed, err := l.Update(testBounds, [3]float32{}, dir)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Panics(t, func() { _, _ = NewLayeredGridConfigUbo(b, "none", nil, 1) })
}
