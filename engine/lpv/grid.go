package lpv

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-lpv/common"
	"github.com/chewxy/math32"
)

// DefaultForwardBias is the fraction of the grid extent the grid centre is pushed ahead of the camera.
const DefaultForwardBias float32 = 0.25

// VoxelGrid describes the axis-aligned voxel volume of one cascade.
type VoxelGrid struct {
	Dimensions uint32
	CellSize   float32
	MinCorner  [3]float32
	Center     [3]float32
}

// ComputeGrid derives the voxel grid of a cascade from the scene bounds and the camera.
// The base cell size spans the largest scene dimension with gridSize cells; the cascade
// cell size is the base size divided by the scale, so coarser cascades cover more space.
// The grid centre is pushed ahead of the camera and snapped to whole cells, so a camera
// moving by less than a cell keeps the grid in place.
//
// Parameters:
//   - bounds: the scene bounding box
//   - cameraPos: the camera position
//   - cameraDir: the camera forward unit vector
//   - scale: the cascade scale factor in (0, 1]
//   - gridSize: cells per axis
//   - forwardBias: fraction of the extent the centre is moved along cameraDir
//
// Returns:
//   - VoxelGrid: the cascade grid
func ComputeGrid(bounds common.AABB, cameraPos, cameraDir [3]float32, scale float32, gridSize uint32, forwardBias float32) VoxelGrid {
	if gridSize == 0 {
		panic("lpv: grid size must be positive")
	}
	if !(scale > 0 && scale <= 1) {
		panic(fmt.Sprintf("lpv: cascade scale %v outside (0, 1]", scale))
	}
	maxDim := bounds.MaxDimension()
	if !(maxDim > 0) {
		panic(fmt.Sprintf("lpv: degenerate scene bounds %v", bounds))
	}

	cellSize := maxDim / float32(gridSize) / scale
	extent := cellSize * float32(gridSize)

	center := common.Add3(cameraPos, common.Scale3(cameraDir, extent*forwardBias))
	for i := range 3 {
		center[i] = math32.Floor(center[i]/cellSize+0.5) * cellSize
	}

	return VoxelGrid{
		Dimensions: gridSize,
		CellSize:   cellSize,
		Center:     center,
		MinCorner:  common.Sub3(center, common.Scale3([3]float32{1, 1, 1}, extent*0.5)),
	}
}

// Extent returns the world-space edge length of the grid.
func (g VoxelGrid) Extent() float32 {
	return g.CellSize * float32(g.Dimensions)
}

// MaxCorner returns the corner opposite MinCorner.
func (g VoxelGrid) MaxCorner() [3]float32 {
	e := g.Extent()
	return common.Add3(g.MinCorner, [3]float32{e, e, e})
}

// TexelCoord converts a world position into continuous texel coordinates.
//
// Parameters:
//   - p: the world position
//
// Returns:
//   - [3]float32: (p - MinCorner) / CellSize
func (g VoxelGrid) TexelCoord(p [3]float32) [3]float32 {
	return common.Scale3(common.Sub3(p, g.MinCorner), 1/g.CellSize)
}

// Contains reports whether a world position lies inside the grid.
func (g VoxelGrid) Contains(p [3]float32) bool {
	c := g.TexelCoord(p)
	d := float32(g.Dimensions)
	return c[0] >= 0 && c[1] >= 0 && c[2] >= 0 && c[0] < d && c[1] < d && c[2] < d
}

// CellCenter returns the world position of the centre of a cell.
func (g VoxelGrid) CellCenter(x, y, z int) [3]float32 {
	return [3]float32{
		g.MinCorner[0] + (float32(x)+0.5)*g.CellSize,
		g.MinCorner[1] + (float32(y)+0.5)*g.CellSize,
		g.MinCorner[2] + (float32(z)+0.5)*g.CellSize,
	}
}
