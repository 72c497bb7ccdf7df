package lpv

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-lpv/common"
	"github.com/Carmen-Shannon/oxy-lpv/engine/camera"
	"github.com/Carmen-Shannon/oxy-lpv/engine/light"
	"github.com/chewxy/math32"
)

// cpuBackend executes the LPV kernels on the host. It decodes the same uniform bytes the
// compute shaders read, so it doubles as the reference for the wgpu backend.
type cpuBackend struct {
	mu       sync.RWMutex
	volumes  map[VolumeID][]*Volume
	uniforms map[UniformID][]byte
	labels   map[uint32]string
	nextID   uint32
	released bool

	workers int
	pool    worker.DynamicWorkerPool
	taskID  atomic.Int64
}

var _ Backend = &cpuBackend{}

// NewCPUBackend creates a host backend. Kernels split their outer loop into slabs that
// run on a dedicated worker pool.
//
// Parameters:
//   - opts: functional options
//
// Returns:
//   - Backend: the CPU backend
func NewCPUBackend(opts ...CPUBackendBuilderOption) Backend {
	b := &cpuBackend{
		volumes:  make(map[VolumeID][]*Volume),
		uniforms: make(map[UniformID][]byte),
		labels:   make(map[uint32]string),
		workers:  4,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.workers > 1 {
		b.pool = worker.NewDynamicWorkerPool(b.workers, 256, time.Second)
	}
	return b
}

func (b *cpuBackend) Name() string {
	return "cpu"
}

func (b *cpuBackend) CreateVolume(label string, size uint32, channels int) (VolumeID, error) {
	if size == 0 || channels <= 0 {
		return NoVolume, fmt.Errorf("lpv: invalid volume %q: size %d, %d channels", label, size, channels)
	}
	vols := make([]*Volume, channels)
	for i := range vols {
		vols[i] = NewVolume(size)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return NoVolume, ErrBackendReleased
	}
	b.nextID++
	id := VolumeID(b.nextID)
	b.volumes[id] = vols
	b.labels[b.nextID] = label
	return id, nil
}

func (b *cpuBackend) ReleaseVolume(id VolumeID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.volumes, id)
	delete(b.labels, uint32(id))
}

func (b *cpuBackend) CreateUniform(label string, size int) (UniformID, error) {
	if size <= 0 {
		return NoUniform, fmt.Errorf("lpv: invalid uniform %q: size %d", label, size)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return NoUniform, ErrBackendReleased
	}
	b.nextID++
	id := UniformID(b.nextID)
	b.uniforms[id] = make([]byte, size)
	b.labels[b.nextID] = label
	return id, nil
}

func (b *cpuBackend) ReleaseUniform(id UniformID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.uniforms, id)
	delete(b.labels, uint32(id))
}

func (b *cpuBackend) WriteUniform(id UniformID, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return ErrBackendReleased
	}
	buf, ok := b.uniforms[id]
	if !ok {
		return fmt.Errorf("%w: uniform %d", ErrUnknownResource, id)
	}
	if len(data) > len(buf) {
		return fmt.Errorf("lpv: write of %d bytes overflows uniform %q (%d bytes)", len(data), b.labels[uint32(id)], len(buf))
	}
	copy(buf, data)
	return nil
}

func (b *cpuBackend) ClearVolume(id VolumeID) error {
	vols, err := b.volume(id, 0)
	if err != nil {
		return err
	}
	for _, v := range vols {
		v.Clear()
	}
	return nil
}

func (b *cpuBackend) InjectLight(job InjectionJob) error {
	grid, err := b.gridConfig(job.Grid)
	if err != nil {
		return err
	}
	lc, err := b.lightConfig(job.Light)
	if err != nil {
		return err
	}
	target, err := b.volume(job.Target, ChannelCount)
	if err != nil {
		return err
	}
	if job.RSM == nil || lc.Intensity == 0 {
		return nil
	}
	injectLight(job.RSM, lc, grid.Grid(), target)
	return nil
}

func (b *cpuBackend) InjectGeometry(job GeometryInjectionJob) error {
	grid, err := b.gridConfig(job.Grid)
	if err != nil {
		return err
	}
	lc, err := b.lightConfig(job.Light)
	if err != nil {
		return err
	}
	target, err := b.volume(job.Target, 1)
	if err != nil {
		return err
	}
	if job.RSM == nil {
		return nil
	}
	injectGeometry(job.RSM, lc, grid.Grid(), target[0])
	return nil
}

func (b *cpuBackend) Propagate(job PropagationJob) error {
	grid, err := b.gridConfig(job.Grid)
	if err != nil {
		return err
	}
	src, err := b.volume(job.Source, ChannelCount)
	if err != nil {
		return err
	}
	next, err := b.volume(job.Next, ChannelCount)
	if err != nil {
		return err
	}
	acc, err := b.volume(job.Accumulator, ChannelCount)
	if err != nil {
		return err
	}
	var geometry *Volume
	if job.Geometry != NoVolume {
		g, err := b.volume(job.Geometry, 1)
		if err != nil {
			return err
		}
		geometry = g[0]
	}

	size := grid.GridSize
	for _, v := range [][]*Volume{src, next, acc} {
		if v[0].Size() != size {
			panic(fmt.Sprintf("lpv: propagation volume of size %d does not match grid size %d", v[0].Size(), size))
		}
	}

	b.parallel(int(size), func(z0, z1 int) {
		for z := z0; z < z1; z++ {
			propagateSlice(z, src, next, acc, geometry, job.Blend)
		}
	})
	return nil
}

func (b *cpuBackend) Resolve(job ResolveJob) error {
	if job.GBuffer == nil {
		return errors.New("lpv: resolve without a G-Buffer")
	}
	if len(job.Output) != job.GBuffer.Len() {
		return fmt.Errorf("lpv: resolve output holds %d pixels, G-Buffer %d", len(job.Output), job.GBuffer.Len())
	}
	camBytes, err := b.uniform(job.Camera)
	if err != nil {
		return err
	}
	cam, err := camera.UnmarshalGPUCameraUniform(camBytes)
	if err != nil {
		return err
	}

	var grids []VoxelGrid
	var attenuation float32
	if job.Layered {
		buf, err := b.uniform(job.Grid)
		if err != nil {
			return err
		}
		lg, err := UnmarshalGPULayeredLpvGridConfig(buf)
		if err != nil {
			return err
		}
		for i := range int(lg.CascadeCount) {
			grids = append(grids, lg.Grid(i))
		}
		attenuation = lg.IndirectAttenuation
	} else {
		g, err := b.gridConfig(job.Grid)
		if err != nil {
			return err
		}
		grids = append(grids, g.Grid())
		attenuation = g.IndirectAttenuation
	}
	if len(job.Accumulators) != len(grids) {
		return fmt.Errorf("lpv: resolve got %d accumulators for %d cascades", len(job.Accumulators), len(grids))
	}

	accs := make([][]*Volume, len(grids))
	for i, id := range job.Accumulators {
		if accs[i], err = b.volume(id, ChannelCount); err != nil {
			return err
		}
	}

	gb := job.GBuffer
	b.parallel(int(gb.Height), func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := range int(gb.Width) {
				i := y*int(gb.Width) + x
				if gb.Depth[i] >= 1 {
					continue
				}
				pos := gb.WorldPosition(x, y, cam.InvViewProj)
				rad := resolvePixel(pos, gb.Normals[i], grids, accs)
				for c := range ChannelCount {
					job.Output[i][c] += math32.Max(rad[c], 0) * attenuation / math32.Pi
				}
			}
		}
	})
	return nil
}

func (b *cpuBackend) ReadVolume(id VolumeID) ([]*Volume, error) {
	vols, err := b.volume(id, 0)
	if err != nil {
		return nil, err
	}
	out := make([]*Volume, len(vols))
	for i, v := range vols {
		out[i] = v.Clone()
	}
	return out, nil
}

func (b *cpuBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return
	}
	b.released = true
	clear(b.volumes)
	clear(b.uniforms)
	clear(b.labels)
}

// volume looks up a volume set, optionally checking its channel count.
func (b *cpuBackend) volume(id VolumeID, channels int) ([]*Volume, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.released {
		return nil, ErrBackendReleased
	}
	vols, ok := b.volumes[id]
	if !ok {
		return nil, fmt.Errorf("%w: volume %d", ErrUnknownResource, id)
	}
	if channels > 0 && len(vols) != channels {
		return nil, fmt.Errorf("lpv: volume %q has %d channels, want %d", b.labels[uint32(id)], len(vols), channels)
	}
	return vols, nil
}

// uniform returns a copy of a uniform buffer.
func (b *cpuBackend) uniform(id UniformID) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.released {
		return nil, ErrBackendReleased
	}
	buf, ok := b.uniforms[id]
	if !ok {
		return nil, fmt.Errorf("%w: uniform %d", ErrUnknownResource, id)
	}
	return append([]byte(nil), buf...), nil
}

func (b *cpuBackend) gridConfig(id UniformID) (GPULpvGridConfig, error) {
	buf, err := b.uniform(id)
	if err != nil {
		return GPULpvGridConfig{}, err
	}
	g, err := UnmarshalGPULpvGridConfig(buf)
	if err != nil {
		return GPULpvGridConfig{}, err
	}
	if g.GridSize == 0 || !(g.MinCornerCellSize[3] > 0) {
		panic(fmt.Sprintf("lpv: malformed grid config %+v", g))
	}
	return g, nil
}

func (b *cpuBackend) lightConfig(id UniformID) (GPULpvLightConfig, error) {
	buf, err := b.uniform(id)
	if err != nil {
		return GPULpvLightConfig{}, err
	}
	return UnmarshalGPULpvLightConfig(buf)
}

// parallel splits [0, n) into one slab per worker and blocks until every slab ran.
func (b *cpuBackend) parallel(n int, fn func(lo, hi int)) {
	if b.pool == nil || n < 2 {
		fn(0, n)
		return
	}
	slabs := min(b.workers, n)
	step := (n + slabs - 1) / slabs

	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += step {
		hi := min(lo+step, n)
		wg.Add(1)
		b.pool.SubmitTask(worker.Task{
			ID: int(b.taskID.Add(1)),
			Do: func() (any, error) {
				defer wg.Done()
				fn(lo, hi)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

// injectLight adds the cosine lobe of every RSM texel, weighted by its flux, to the cell
// the texel lands in after a half-cell shift along its normal.
func injectLight(rsm *RSM, lc GPULpvLightConfig, grid VoxelGrid, target []*Volume) {
	size := int(grid.Dimensions)
	for _, s := range rsm.Samples {
		if s.Flux == [3]float32{} {
			continue
		}
		tc := common.Add3(grid.TexelCoord(s.Position), common.Scale3(s.Normal, 0.5))
		cell, ok := floorCell(tc, size)
		if !ok {
			continue
		}
		lobe := CosLobe(s.Normal).Scale(lc.Intensity / math32.Pi)
		for c := range ChannelCount {
			if s.Flux[c] == 0 {
				continue
			}
			target[c].Add(cell[0], cell[1], cell[2], lobe.Scale(s.Flux[c]))
		}
	}
}

// injectGeometry adds the blocking potential of every RSM surfel to the geometry volume,
// whose texels sit on cell faces.
func injectGeometry(rsm *RSM, lc GPULpvLightConfig, grid VoxelGrid, target *Volume) {
	if lc.RsmSize == 0 {
		return
	}
	rsmSize := float32(lc.RsmSize)
	cellArea := grid.CellSize * grid.CellSize
	directional := light.LightType(lc.LightType) == light.LightTypeDirectional

	for _, s := range rsm.Samples {
		if common.Length3(s.Normal) < 0.01 {
			continue
		}
		tc := common.Sub3(grid.TexelCoord(s.Position), [3]float32{0.5, 0.5, 0.5})
		cell := [3]int{int(tc[0]), int(tc[1]), int(tc[2])}
		if !target.Contains(cell[0], cell[1], cell[2]) {
			continue
		}

		var area float32
		var toLight [3]float32
		if directional {
			texel := 2 * lc.ShadowHalfExtent / rsmSize
			area = texel * texel * lc.TexelAreaModifier
			toLight = common.Scale3(lc.Direction, -1)
		} else {
			z := common.Dot3(common.Sub3(s.Position, lc.Position), lc.Direction)
			area = 4 * z * z * lc.TanHalfFovX * lc.TanHalfFovY / (rsmSize * rsmSize) * lc.TexelAreaModifier
			toLight = common.Normalize3(common.Sub3(lc.Position, s.Position))
		}

		n := common.Normalize3(s.Normal)
		cosTheta := saturate(common.Dot3(n, toLight))
		blocking := saturate(area * cosTheta / cellArea)
		if blocking == 0 {
			continue
		}
		target.Add(cell[0], cell[1], cell[2], CosLobe(n).Scale(blocking))
	}
}

// resolvePixel sums the clamped irradiance of every cascade at a world position.
func resolvePixel(pos, normal [3]float32, grids []VoxelGrid, accs [][]*Volume) [3]float32 {
	sh := EvalSH(common.Scale3(normal, -1))
	var rad [3]float32
	for i, g := range grids {
		tc := g.TexelCoord(pos)
		for c := range ChannelCount {
			rad[c] += math32.Max(0, sh.Dot(accs[i][c].Sample(tc)))
		}
	}
	return rad
}

func floorCell(tc [3]float32, size int) ([3]int, bool) {
	var cell [3]int
	for i := range 3 {
		f := math32.Floor(tc[i])
		if f < 0 || f >= float32(size) {
			return cell, false
		}
		cell[i] = int(f)
	}
	return cell, true
}

func saturate(v float32) float32 {
	return math32.Max(0, math32.Min(1, v))
}
