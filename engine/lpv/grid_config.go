package lpv

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-lpv/common"
)

// gridInputs are the values a grid was last computed from.
type gridInputs struct {
	bounds common.AABB
	camPos [3]float32
	camDir [3]float32
}

func (g gridInputs) equal(o gridInputs, tol float32) bool {
	return g.bounds.NearlyEqual(o.bounds, tol) &&
		common.NearlyEqual3(g.camPos, o.camPos, tol) &&
		common.NearlyEqual3(g.camDir, o.camDir, tol)
}

// GridConfigUbo keeps the GPULpvGridConfig uniform of one cascade in sync with the scene.
// The grid is recomputed and uploaded only when the bounding box or the camera moved
// since the last upload, or after Invalidate.
type GridConfigUbo struct {
	backend     Backend
	id          UniformID
	scale       float32
	gridSize    uint32
	forwardBias float32
	tolerance   float32
	attenuation float32

	last    gridInputs
	valid   bool
	grid    VoxelGrid
	uploads int
}

// NewGridConfigUbo allocates the uniform of a cascade.
//
// Parameters:
//   - backend: the backend owning the uniform
//   - label: a debug label
//   - scale: the cascade scale in (0, 1]
//   - gridSize: cells per axis
//   - forwardBias: fraction of the extent the grid is pushed ahead of the camera
//   - tolerance: per-component change tolerance, zero for exact comparison
//   - attenuation: the indirect attenuation written into the uniform
//
// Returns:
//   - *GridConfigUbo: the uniform
//   - error: if the backend could not allocate it
func NewGridConfigUbo(backend Backend, label string, scale float32, gridSize uint32, forwardBias, tolerance, attenuation float32) (*GridConfigUbo, error) {
	id, err := backend.CreateUniform(label, (&GPULpvGridConfig{}).Size())
	if err != nil {
		return nil, fmt.Errorf("failed to create grid config %q: %w", label, err)
	}
	return &GridConfigUbo{
		backend:     backend,
		id:          id,
		scale:       scale,
		gridSize:    gridSize,
		forwardBias: forwardBias,
		tolerance:   tolerance,
		attenuation: attenuation,
	}, nil
}

// Update recomputes and uploads the grid if its inputs changed.
//
// Parameters:
//   - bounds: the scene bounding box
//   - camPos: the camera position
//   - camDir: the camera forward unit vector
//
// Returns:
//   - bool: true if a new grid was uploaded
//   - error: if the upload failed
func (u *GridConfigUbo) Update(bounds common.AABB, camPos, camDir [3]float32) (bool, error) {
	in := gridInputs{bounds: bounds, camPos: camPos, camDir: camDir}
	if u.valid && u.last.equal(in, u.tolerance) {
		return false, nil
	}

	grid := ComputeGrid(bounds, camPos, camDir, u.scale, u.gridSize, u.forwardBias)
	if err := u.backend.WriteUniform(u.id, u.uniform(grid).Marshal()); err != nil {
		return false, fmt.Errorf("failed to upload grid config: %w", err)
	}
	u.grid = grid
	u.last = in
	u.valid = true
	u.uploads++
	return true, nil
}

// Invalidate forces the next Update to upload.
func (u *GridConfigUbo) Invalidate() {
	u.valid = false
}

// SetIndirectAttenuation changes the resolve scale and invalidates the uniform when it differs.
func (u *GridConfigUbo) SetIndirectAttenuation(attenuation float32) {
	if u.attenuation != attenuation {
		u.attenuation = attenuation
		u.valid = false
	}
}

// Grid returns the last uploaded grid.
func (u *GridConfigUbo) Grid() VoxelGrid {
	return u.grid
}

// Valid reports whether a grid has been uploaded since creation or the last Invalidate.
func (u *GridConfigUbo) Valid() bool {
	return u.valid
}

// ID returns the backend handle of the uniform.
func (u *GridConfigUbo) ID() UniformID {
	return u.id
}

// Uploads returns the number of uploads performed so far.
func (u *GridConfigUbo) Uploads() int {
	return u.uploads
}

// Scale returns the cascade scale.
func (u *GridConfigUbo) Scale() float32 {
	return u.scale
}

// Release frees the uniform.
func (u *GridConfigUbo) Release() {
	u.backend.ReleaseUniform(u.id)
	u.id = NoUniform
	u.valid = false
}

func (u *GridConfigUbo) uniform(g VoxelGrid) *GPULpvGridConfig {
	return &GPULpvGridConfig{
		MinCornerCellSize:   [4]float32{g.MinCorner[0], g.MinCorner[1], g.MinCorner[2], g.CellSize},
		GridSize:            g.Dimensions,
		IndirectAttenuation: u.attenuation,
	}
}

// LayeredGridConfigUbo aggregates the grids of every cascade into the
// GPULayeredLpvGridConfig uniform read by the layered resolve. Each cascade keeps its
// own GridConfigUbo for injection and propagation.
type LayeredGridConfigUbo struct {
	backend     Backend
	id          UniformID
	cascades    []*GridConfigUbo
	attenuation float32
	uploads     int
}

// NewLayeredGridConfigUbo allocates the aggregated uniform.
//
// Parameters:
//   - backend: the backend owning the uniform
//   - label: a debug label
//   - cascades: the per-cascade uniforms, finest first, at most LpvMaxCascadesCount
//   - attenuation: the indirect attenuation written into the uniform
//
// Returns:
//   - *LayeredGridConfigUbo: the uniform
//   - error: if the backend could not allocate it
func NewLayeredGridConfigUbo(backend Backend, label string, cascades []*GridConfigUbo, attenuation float32) (*LayeredGridConfigUbo, error) {
	if len(cascades) == 0 || len(cascades) > len(GPULayeredLpvGridConfig{}.Cascades) {
		panic(fmt.Sprintf("lpv: %d cascades do not fit the layered grid config", len(cascades)))
	}
	id, err := backend.CreateUniform(label, (&GPULayeredLpvGridConfig{}).Size())
	if err != nil {
		return nil, fmt.Errorf("failed to create layered grid config %q: %w", label, err)
	}
	return &LayeredGridConfigUbo{backend: backend, id: id, cascades: cascades, attenuation: attenuation}, nil
}

// Update updates every cascade and re-uploads the aggregate if any of them changed.
//
// Parameters:
//   - bounds: the scene bounding box
//   - camPos: the camera position
//   - camDir: the camera forward unit vector
//
// Returns:
//   - bool: true if the aggregate was uploaded
//   - error: if an upload failed
func (l *LayeredGridConfigUbo) Update(bounds common.AABB, camPos, camDir [3]float32) (bool, error) {
	changed := l.uploads == 0
	for i, c := range l.cascades {
		ch, err := c.Update(bounds, camPos, camDir)
		if err != nil {
			return false, fmt.Errorf("cascade %d: %w", i, err)
		}
		changed = changed || ch
	}
	if !changed {
		return false, nil
	}

	cfg := GPULayeredLpvGridConfig{
		GridSize:            l.cascades[0].gridSize,
		IndirectAttenuation: l.attenuation,
		CascadeCount:        uint32(len(l.cascades)),
	}
	for i, c := range l.cascades {
		g := c.Grid()
		cfg.Cascades[i] = [4]float32{g.MinCorner[0], g.MinCorner[1], g.MinCorner[2], g.CellSize}
	}
	if err := l.backend.WriteUniform(l.id, cfg.Marshal()); err != nil {
		return false, fmt.Errorf("failed to upload layered grid config: %w", err)
	}
	l.uploads++
	return true, nil
}

// SetIndirectAttenuation changes the resolve scale of the aggregate and of every cascade.
func (l *LayeredGridConfigUbo) SetIndirectAttenuation(attenuation float32) {
	l.attenuation = attenuation
	for _, c := range l.cascades {
		c.SetIndirectAttenuation(attenuation)
	}
}

// Cascade returns the uniform of one cascade.
func (l *LayeredGridConfigUbo) Cascade(i int) *GridConfigUbo {
	return l.cascades[i]
}

// ID returns the backend handle of the aggregate uniform.
func (l *LayeredGridConfigUbo) ID() UniformID {
	return l.id
}

// Uploads returns the number of aggregate uploads performed so far.
func (l *LayeredGridConfigUbo) Uploads() int {
	return l.uploads
}

// Release frees the aggregate uniform. The cascade uniforms are released by their owner.
func (l *LayeredGridConfigUbo) Release() {
	l.backend.ReleaseUniform(l.id)
	l.id = NoUniform
}
