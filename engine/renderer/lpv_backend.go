package renderer

import (
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-lpv/common"
	"github.com/Carmen-Shannon/oxy-lpv/engine/gi"
	"github.com/Carmen-Shannon/oxy-lpv/engine/lpv"
	"github.com/Carmen-Shannon/oxy-lpv/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-lpv/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-lpv/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	//go:embed assets/lpv_inject.wgsl
	lpvInjectSource string

	//go:embed assets/lpv_inject_accumulate.wgsl
	lpvInjectAccumulateSource string

	//go:embed assets/lpv_geometry_inject.wgsl
	lpvGeometryInjectSource string

	//go:embed assets/lpv_propagate.wgsl
	lpvPropagateSource string

	//go:embed assets/lpv_resolve.wgsl
	lpvResolveSource string
)

// Pipeline keys of the LPV compute kernels.
const (
	PipelineKeyLpvInject           = "lpv_inject"
	PipelineKeyLpvInjectAccumulate = "lpv_inject_accumulate"
	PipelineKeyLpvGeometryInject   = "lpv_geometry_inject"
	PipelineKeyLpvPropagate        = "lpv_propagate"
	PipelineKeyLpvResolve          = "lpv_resolve"
)

// LPVShaderSources returns the raw WGSL of every LPV kernel keyed by pipeline key.
//
// Returns:
//   - map[string]string: the annotated sources
func LPVShaderSources() map[string]string {
	return map[string]string{
		PipelineKeyLpvInject:           lpvInjectSource,
		PipelineKeyLpvInjectAccumulate: lpvInjectAccumulateSource,
		PipelineKeyLpvGeometryInject:   lpvGeometryInjectSource,
		PipelineKeyLpvPropagate:        lpvPropagateSource,
		PipelineKeyLpvResolve:          lpvResolveSource,
	}
}

// volumeTexelSize is the byte size of one vec4<f32> SH texel.
const volumeTexelSize = 16

// maxWorkgroupsPerDimension is the WebGPU default limit on one dispatch dimension.
const maxWorkgroupsPerDimension = 65535

type gpuVolume struct {
	buf      *wgpu.Buffer
	size     uint32
	channels int
	label    string
}

// bytes returns the buffer size: channels * size^3 texels.
func (v *gpuVolume) bytes() uint64 {
	cells := uint64(v.size) * uint64(v.size) * uint64(v.size)
	return uint64(v.channels) * cells * volumeTexelSize
}

// gpuUniform keeps a host copy of the uploaded bytes. The kernels that need a value on
// the host (dispatch size, early outs, the resolve grid) read it from there.
type gpuUniform struct {
	buf   *wgpu.Buffer
	host  []byte
	size  int
	label string
}

// lpvBackend runs the LPV kernels as WebGPU compute shaders. Every job is recorded and
// submitted as its own compute frame, so jobs from several goroutines are serialized.
type lpvBackend struct {
	r            Renderer
	ownsRenderer bool
	logger       *slog.Logger

	mu       sync.RWMutex
	volumes  map[lpv.VolumeID]*gpuVolume
	uniforms map[lpv.UniformID]*gpuUniform
	nextID   uint32
	released bool

	frame sync.Mutex
}

var _ lpv.Backend = &lpvBackend{}

// NewLPVBackend creates an lpv.Backend on top of a Renderer and registers the LPV kernels
// with it.
//
// Parameters:
//   - r: the renderer providing the device
//   - opts: functional options
//
// Returns:
//   - lpv.Backend: the wgpu backend
//   - error: if a kernel failed to parse or compile
func NewLPVBackend(r Renderer, opts ...LPVBackendBuilderOption) (lpv.Backend, error) {
	b := &lpvBackend{
		r:        r,
		logger:   common.Logger(),
		volumes:  make(map[lpv.VolumeID]*gpuVolume),
		uniforms: make(map[lpv.UniformID]*gpuUniform),
	}
	for _, opt := range opts {
		opt(b)
	}

	var missing []string
	for key := range LPVShaderSources() {
		if r.Pipeline(key) == nil {
			missing = append(missing, key)
		}
	}
	pipelines, err := lpvPipelines(missing...)
	if err != nil {
		return nil, err
	}
	if err := r.RegisterPipelines(pipelines...); err != nil {
		return nil, err
	}
	b.logger.Info("lpv compute kernels registered", "pipelines", len(pipelines))
	return b, nil
}

// lpvPipelines parses the named LPV kernels into pipelines without GPU objects.
func lpvPipelines(keys ...string) ([]pipeline.Pipeline, error) {
	sources := LPVShaderSources()
	pipelines := make([]pipeline.Pipeline, 0, len(keys))
	for _, key := range keys {
		src, ok := sources[key]
		if !ok {
			return nil, fmt.Errorf("lpv: unknown kernel %q", key)
		}
		s, err := shader.ParseShader(key, src)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, pipeline.NewPipeline(key, pipeline.WithComputeShader(s)))
	}
	return pipelines, nil
}

// SelectBackend builds the backend named by cfg.Backend. A "wgpu" backend that cannot get
// a device falls back to the CPU backend with a warning.
//
// Parameters:
//   - cfg: the GI configuration
//   - logger: the logger for the fallback warning, nil uses the shared engine logger
//
// Returns:
//   - lpv.Backend: the backend
func SelectBackend(cfg gi.Config, logger *slog.Logger) lpv.Backend {
	if logger == nil {
		logger = common.Logger()
	}
	if cfg.Backend == "wgpu" {
		b, err := newOwnedLPVBackend(cfg.ForceSoftware, logger)
		if err == nil {
			return b
		}
		logger.Warn("wgpu backend unavailable, using cpu", "error", err)
	}
	return lpv.NewCPUBackend(lpv.WithWorkers(cfg.Workers))
}

func newOwnedLPVBackend(software bool, logger *slog.Logger) (lpv.Backend, error) {
	pipelines, err := lpvPipelines(slices.Sorted(maps.Keys(LPVShaderSources()))...)
	if err != nil {
		return nil, err
	}
	r, err := NewRenderer(BackendTypeWGPU,
		WithPowerPreference(PowerPreferenceHighPerformance),
		WithForceSoftwareRenderer(software),
		WithPipelines(pipelines...),
	)
	if err != nil {
		return nil, err
	}
	b, err := NewLPVBackend(r, WithOwnedRenderer(true), WithLogger(logger))
	if err != nil {
		r.Release()
		return nil, err
	}
	return b, nil
}

func (b *lpvBackend) Name() string {
	return "wgpu"
}

func (b *lpvBackend) CreateVolume(label string, size uint32, channels int) (lpv.VolumeID, error) {
	if size == 0 || channels <= 0 {
		return lpv.NoVolume, fmt.Errorf("lpv: invalid volume %q: size %d, %d channels", label, size, channels)
	}
	v := &gpuVolume{size: size, channels: channels, label: label}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return lpv.NoVolume, lpv.ErrBackendReleased
	}
	buf, err := b.r.CreateBuffer(label, v.bytes(), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	if err != nil {
		return lpv.NoVolume, fmt.Errorf("lpv: failed to allocate volume %q: %w", label, err)
	}
	v.buf = buf
	b.nextID++
	id := lpv.VolumeID(b.nextID)
	b.volumes[id] = v
	b.logger.Debug("volume created", "label", label, "size", size, "channels", channels, "bytes", v.bytes())
	return id, nil
}

func (b *lpvBackend) ReleaseVolume(id lpv.VolumeID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.volumes[id]; ok {
		v.buf.Release()
		delete(b.volumes, id)
	}
}

func (b *lpvBackend) CreateUniform(label string, size int) (lpv.UniformID, error) {
	if size <= 0 {
		return lpv.NoUniform, fmt.Errorf("lpv: invalid uniform %q: size %d", label, size)
	}
	// uniform bindings are sized in 16 byte steps
	padded := (size + 15) &^ 15

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return lpv.NoUniform, lpv.ErrBackendReleased
	}
	buf, err := b.r.CreateBuffer(label, uint64(padded), wgpu.BufferUsageUniform)
	if err != nil {
		return lpv.NoUniform, fmt.Errorf("lpv: failed to allocate uniform %q: %w", label, err)
	}
	b.nextID++
	id := lpv.UniformID(b.nextID)
	b.uniforms[id] = &gpuUniform{buf: buf, host: make([]byte, padded), size: size, label: label}
	return id, nil
}

func (b *lpvBackend) ReleaseUniform(id lpv.UniformID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if u, ok := b.uniforms[id]; ok {
		u.buf.Release()
		delete(b.uniforms, id)
	}
}

func (b *lpvBackend) WriteUniform(id lpv.UniformID, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return lpv.ErrBackendReleased
	}
	u, ok := b.uniforms[id]
	if !ok {
		return fmt.Errorf("%w: uniform %d", lpv.ErrUnknownResource, id)
	}
	if len(data) > u.size {
		return fmt.Errorf("lpv: write of %d bytes overflows uniform %q (%d bytes)", len(data), u.label, u.size)
	}
	copy(u.host, data)
	b.r.WriteBuffer(u.buf, 0, u.host)
	return nil
}

func (b *lpvBackend) ClearVolume(id lpv.VolumeID) error {
	v, err := b.volume(id, 0)
	if err != nil {
		return err
	}
	b.frame.Lock()
	defer b.frame.Unlock()
	b.r.WriteBuffer(v.buf, 0, make([]byte, v.bytes()))
	return nil
}

func (b *lpvBackend) InjectLight(job lpv.InjectionJob) error {
	grid, err := b.gridConfig(job.Grid)
	if err != nil {
		return err
	}
	lu, err := b.uniform(job.Light)
	if err != nil {
		return err
	}
	lc, err := lpv.UnmarshalGPULpvLightConfig(lu.host)
	if err != nil {
		return err
	}
	target, err := b.volume(job.Target, lpv.ChannelCount)
	if err != nil {
		return err
	}
	if target.size != grid.GridSize {
		return fmt.Errorf("lpv: volume %q of size %d does not match grid size %d", target.label, target.size, grid.GridSize)
	}
	if job.RSM == nil || len(job.RSM.Samples) == 0 || lc.Intensity == 0 {
		return nil
	}
	gu, _ := b.uniform(job.Grid)
	return b.inject(PipelineKeyLpvInject, gu, lu, target, job.RSM)
}

func (b *lpvBackend) InjectGeometry(job lpv.GeometryInjectionJob) error {
	grid, err := b.gridConfig(job.Grid)
	if err != nil {
		return err
	}
	lu, err := b.uniform(job.Light)
	if err != nil {
		return err
	}
	lc, err := lpv.UnmarshalGPULpvLightConfig(lu.host)
	if err != nil {
		return err
	}
	target, err := b.volume(job.Target, 1)
	if err != nil {
		return err
	}
	if target.size != grid.GridSize {
		return fmt.Errorf("lpv: volume %q of size %d does not match grid size %d", target.label, target.size, grid.GridSize)
	}
	if job.RSM == nil || len(job.RSM.Samples) == 0 || lc.RsmSize == 0 {
		return nil
	}
	gu, _ := b.uniform(job.Grid)
	return b.inject(PipelineKeyLpvGeometryInject, gu, lu, target, job.RSM)
}

// inject dispatches one of the two injection kernels, which share their bindings. The
// kernel runs once per RSM texel and scatters into a zeroed fixed point scratch buffer,
// then lpv_inject_accumulate adds the scratch into the target.
func (b *lpvBackend) inject(key string, grid, light *gpuUniform, target *gpuVolume, rsm *lpv.RSM) error {
	p := b.r.Pipeline(key)
	s := p.Shader()
	gridBinding, err := binding(s, shader.AnnotationArgLpvGridConfig, "")
	if err != nil {
		return err
	}
	lightBinding, err := binding(s, shader.AnnotationArgLpvLightConfig, "")
	if err != nil {
		return err
	}
	rsmBinding, err := binding(s, shader.AnnotationArgRsmTexel, "")
	if err != nil {
		return err
	}
	scratchBinding, err := binding(s, shader.AnnotationArgVolume, shader.AnnotationArgScratch)
	if err != nil {
		return err
	}

	acc := b.r.Pipeline(PipelineKeyLpvInjectAccumulate)
	as := acc.Shader()
	accScratchBinding, err := binding(as, shader.AnnotationArgVolume, shader.AnnotationArgScratch)
	if err != nil {
		return err
	}
	accTargetBinding, err := binding(as, shader.AnnotationArgVolume, shader.AnnotationArgTarget)
	if err != nil {
		return err
	}

	scratch, err := b.r.CreateBuffer(target.label+" scratch", target.bytes(), wgpu.BufferUsageStorage)
	if err != nil {
		return fmt.Errorf("lpv: failed to allocate scratch of %q: %w", target.label, err)
	}
	defer scratch.Release()

	samples := lpv.MarshalRSM(rsm)
	provider := bind_group_provider.NewBindGroupProvider(key+" "+target.label, bind_group_provider.WithSharedBuffers(map[int]*wgpu.Buffer{
		gridBinding:    grid.buf,
		lightBinding:   light.buf,
		scratchBinding: scratch,
	}))
	defer provider.Release()
	accProvider := bind_group_provider.NewBindGroupProvider(PipelineKeyLpvInjectAccumulate+" "+target.label, bind_group_provider.WithSharedBuffers(map[int]*wgpu.Buffer{
		accScratchBinding: scratch,
		accTargetBinding:  target.buf,
	}))
	defer accProvider.Release()

	b.frame.Lock()
	defer b.frame.Unlock()
	if err := b.record(p, provider, map[int]uint64{rsmBinding: uint64(len(samples))},
		[]bind_group_provider.BufferWrite{{Provider: provider, Binding: rsmBinding, Data: samples}},
		nil, linearGroups(p, uint32(len(rsm.Samples)))); err != nil {
		return err
	}
	return b.record(acc, accProvider, nil, nil, nil, linearGroups(acc, uint32(target.bytes()/volumeTexelSize)))
}

// linearGroups covers n invocations of a kernel with a one dimensional workgroup size.
// Counts above the per dimension limit are spread over y; the kernel rebuilds the linear
// index from num_workgroups and ignores the overshoot.
func linearGroups(p pipeline.Pipeline, n uint32) [3]uint32 {
	groups := p.WorkgroupCount(n, 1, 1)[0]
	if groups <= maxWorkgroupsPerDimension {
		return [3]uint32{groups, 1, 1}
	}
	y := (groups + maxWorkgroupsPerDimension - 1) / maxWorkgroupsPerDimension
	return [3]uint32{(groups + y - 1) / y, y, 1}
}

func (b *lpvBackend) Propagate(job lpv.PropagationJob) error {
	grid, err := b.gridConfig(job.Grid)
	if err != nil {
		return err
	}
	if job.Source == job.Next || job.Source == job.Accumulator || job.Next == job.Accumulator {
		return errors.New("lpv: propagation source, next and accumulator must be distinct volumes")
	}
	src, err := b.volume(job.Source, lpv.ChannelCount)
	if err != nil {
		return err
	}
	next, err := b.volume(job.Next, lpv.ChannelCount)
	if err != nil {
		return err
	}
	acc, err := b.volume(job.Accumulator, lpv.ChannelCount)
	if err != nil {
		return err
	}
	var geometry *gpuVolume
	if job.Geometry != lpv.NoVolume {
		if geometry, err = b.volume(job.Geometry, 1); err != nil {
			return err
		}
	}
	for _, v := range []*gpuVolume{src, next, acc} {
		if v.size != grid.GridSize {
			return fmt.Errorf("lpv: propagation volume %q of size %d does not match grid size %d", v.label, v.size, grid.GridSize)
		}
	}

	p := b.r.Pipeline(PipelineKeyLpvPropagate)
	s := p.Shader()
	paramsBinding, err := binding(s, shader.AnnotationArgPropagationParams, "")
	if err != nil {
		return err
	}
	roles := map[shader.AnnotationArg]*gpuVolume{
		shader.AnnotationArgSource:      src,
		shader.AnnotationArgNext:        next,
		shader.AnnotationArgAccumulator: acc,
		shader.AnnotationArgGeometry:    geometry,
	}
	shared := make(map[int]*wgpu.Buffer, len(roles))
	for role, v := range roles {
		bnd, err := binding(s, shader.AnnotationArgVolume, role)
		if err != nil {
			return err
		}
		// a nil geometry gets a zeroed placeholder from InitBindGroup
		if v != nil {
			shared[bnd] = v.buf
		}
	}

	params := lpv.GPUPropagationParams{GridSize: grid.GridSize}
	if job.Blend {
		params.Blend = 1
	}
	if geometry != nil {
		params.Occlusion = 1
	}

	provider := bind_group_provider.NewBindGroupProvider("lpv propagate "+src.label, bind_group_provider.WithSharedBuffers(shared))
	defer provider.Release()

	size := grid.GridSize
	return b.dispatch(p, provider, nil,
		[]bind_group_provider.BufferWrite{{Provider: provider, Binding: paramsBinding, Data: params.Marshal()}},
		nil, p.WorkgroupCount(size, size, size))
}

func (b *lpvBackend) Resolve(job lpv.ResolveJob) error {
	if job.GBuffer == nil {
		return errors.New("lpv: resolve without a G-Buffer")
	}
	if len(job.Output) != job.GBuffer.Len() {
		return fmt.Errorf("lpv: resolve output holds %d pixels, G-Buffer %d", len(job.Output), job.GBuffer.Len())
	}
	cam, err := b.uniform(job.Camera)
	if err != nil {
		return err
	}
	grids, err := b.layeredGridConfig(job.Grid, job.Layered)
	if err != nil {
		return err
	}
	if len(job.Accumulators) != int(grids.CascadeCount) {
		return fmt.Errorf("lpv: resolve got %d accumulators for %d cascades", len(job.Accumulators), grids.CascadeCount)
	}
	accs := make([]*gpuVolume, len(job.Accumulators))
	for i, id := range job.Accumulators {
		if accs[i], err = b.volume(id, lpv.ChannelCount); err != nil {
			return err
		}
		if accs[i].size != grids.GridSize {
			return fmt.Errorf("lpv: accumulator %q of size %d does not match grid size %d", accs[i].label, accs[i].size, grids.GridSize)
		}
	}
	gb := job.GBuffer
	pixels := gb.Len()
	if len(accs) == 0 || pixels == 0 {
		return nil
	}

	p := b.r.Pipeline(PipelineKeyLpvResolve)
	s := p.Shader()
	bindings := make(map[string]int)
	for name, id := range map[string][2]shader.AnnotationArg{
		"camera":  {shader.AnnotationArgCamera, ""},
		"grids":   {shader.AnnotationArgLayeredLpvGridConfig, ""},
		"info":    {shader.AnnotationArgGBufferInfo, ""},
		"depth":   {shader.AnnotationArgGBuffer, shader.AnnotationArgDepth},
		"normals": {shader.AnnotationArgGBuffer, shader.AnnotationArgNormals},
		"volumes": {shader.AnnotationArgVolume, ""},
		"output":  {shader.AnnotationArgOutput, ""},
	} {
		if bindings[name], err = binding(s, id[0], id[1]); err != nil {
			return err
		}
	}

	volBytes := accs[0].bytes()
	outBytes := uint64(pixels) * volumeTexelSize
	sizes := map[int]uint64{
		bindings["depth"]:   uint64(pixels) * 4,
		bindings["normals"]: uint64(pixels) * 16,
		bindings["volumes"]: volBytes * uint64(len(accs)),
		bindings["output"]:  outBytes,
	}

	provider := bind_group_provider.NewBindGroupProvider("lpv resolve", bind_group_provider.WithSharedBuffers(map[int]*wgpu.Buffer{
		bindings["camera"]: cam.buf,
	}))
	defer provider.Release()

	depth, normals := lpv.MarshalGBuffer(gb)
	info := lpv.GPUGBufferInfo{Width: gb.Width, Height: gb.Height}
	writes := []bind_group_provider.BufferWrite{
		{Provider: provider, Binding: bindings["grids"], Data: grids.Marshal()},
		{Provider: provider, Binding: bindings["info"], Data: info.Marshal()},
		{Provider: provider, Binding: bindings["depth"], Data: depth},
		{Provider: provider, Binding: bindings["normals"], Data: normals},
	}
	copies := make([]bufferCopy, len(accs))
	for i, a := range accs {
		copies[i] = bufferCopy{src: a.buf, dstBinding: bindings["volumes"], dstOffset: uint64(i) * volBytes, size: volBytes}
	}

	b.frame.Lock()
	defer b.frame.Unlock()
	if err := b.record(p, provider, sizes, writes, copies, p.WorkgroupCount(gb.Width, gb.Height, 1)); err != nil {
		return err
	}
	out, err := b.r.ReadBuffer(provider.Buffer(bindings["output"]), outBytes)
	if err != nil {
		return fmt.Errorf("lpv: resolve readback failed: %w", err)
	}
	for i := range pixels {
		for c := range lpv.ChannelCount {
			off := i*volumeTexelSize + c*4
			job.Output[i][c] += math.Float32frombits(binary.LittleEndian.Uint32(out[off:]))
		}
	}
	return nil
}

func (b *lpvBackend) ReadVolume(id lpv.VolumeID) ([]*lpv.Volume, error) {
	v, err := b.volume(id, 0)
	if err != nil {
		return nil, err
	}
	b.frame.Lock()
	buf, err := b.r.ReadBuffer(v.buf, v.bytes())
	b.frame.Unlock()
	if err != nil {
		return nil, fmt.Errorf("lpv: readback of %q failed: %w", v.label, err)
	}
	return lpv.UnmarshalVolume(buf, v.size, v.channels)
}

func (b *lpvBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return
	}
	b.released = true
	for id, v := range b.volumes {
		v.buf.Release()
		delete(b.volumes, id)
	}
	for id, u := range b.uniforms {
		u.buf.Release()
		delete(b.uniforms, id)
	}
	if b.ownsRenderer {
		b.r.Release()
	}
}

// bufferCopy copies a persistent buffer into a binding of the dispatch provider.
type bufferCopy struct {
	src        *wgpu.Buffer
	dstBinding int
	dstOffset  uint64
	size       uint64
}

// dispatch records and submits one kernel under the frame lock.
func (b *lpvBackend) dispatch(p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider, sizes map[int]uint64, writes []bind_group_provider.BufferWrite, copies []bufferCopy, groups [3]uint32) error {
	b.frame.Lock()
	defer b.frame.Unlock()
	return b.record(p, provider, sizes, writes, copies, groups)
}

// record builds the bind group of provider, uploads writes, then submits the copies and
// the dispatch as one compute frame. The caller holds the frame lock.
func (b *lpvBackend) record(p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider, sizes map[int]uint64, writes []bind_group_provider.BufferWrite, copies []bufferCopy, groups [3]uint32) error {
	if err := b.r.InitBindGroup(provider, p.Shader().BindGroupLayoutDescriptor(0), nil, sizes); err != nil {
		return fmt.Errorf("lpv: failed to bind %s: %w", p.PipelineKey(), err)
	}
	b.r.WriteBuffers(writes)

	if err := b.r.BeginComputeFrame(); err != nil {
		return err
	}
	var errs []error
	for _, c := range copies {
		errs = append(errs, b.r.CopyBuffer(c.src, 0, provider.Buffer(c.dstBinding), c.dstOffset, c.size))
	}
	errs = append(errs, b.r.DispatchCompute(p.PipelineKey(), provider, groups))
	// the frame is always closed so the next job can open one
	errs = append(errs, b.r.EndComputeFrame())
	return errors.Join(errs...)
}

// binding resolves a declared resource of a kernel.
func binding(s shader.Shader, identity, role shader.AnnotationArg) (int, error) {
	_, bnd, ok := s.Binding(identity, role)
	if !ok {
		return -1, fmt.Errorf("lpv: kernel %s declares no %s %s binding", s.Key(), identity, role)
	}
	return bnd, nil
}

func (b *lpvBackend) volume(id lpv.VolumeID, channels int) (*gpuVolume, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.released {
		return nil, lpv.ErrBackendReleased
	}
	v, ok := b.volumes[id]
	if !ok {
		return nil, fmt.Errorf("%w: volume %d", lpv.ErrUnknownResource, id)
	}
	if channels > 0 && v.channels != channels {
		return nil, fmt.Errorf("lpv: volume %q has %d channels, want %d", v.label, v.channels, channels)
	}
	return v, nil
}

// uniform returns a snapshot of a uniform whose host bytes are safe to read.
func (b *lpvBackend) uniform(id lpv.UniformID) (*gpuUniform, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.released {
		return nil, lpv.ErrBackendReleased
	}
	u, ok := b.uniforms[id]
	if !ok {
		return nil, fmt.Errorf("%w: uniform %d", lpv.ErrUnknownResource, id)
	}
	snap := *u
	snap.host = append([]byte(nil), u.host...)
	return &snap, nil
}

func (b *lpvBackend) gridConfig(id lpv.UniformID) (lpv.GPULpvGridConfig, error) {
	u, err := b.uniform(id)
	if err != nil {
		return lpv.GPULpvGridConfig{}, err
	}
	g, err := lpv.UnmarshalGPULpvGridConfig(u.host)
	if err != nil {
		return lpv.GPULpvGridConfig{}, err
	}
	if g.GridSize == 0 || !(g.MinCornerCellSize[3] > 0) {
		return lpv.GPULpvGridConfig{}, fmt.Errorf("lpv: malformed grid config %q: %+v", u.label, g)
	}
	return g, nil
}

// layeredGridConfig reads a grid uniform as the layered config the resolve kernel binds.
// A single cascade config becomes a layered config with one cascade.
func (b *lpvBackend) layeredGridConfig(id lpv.UniformID, layered bool) (lpv.GPULayeredLpvGridConfig, error) {
	if !layered {
		g, err := b.gridConfig(id)
		if err != nil {
			return lpv.GPULayeredLpvGridConfig{}, err
		}
		return lpv.GPULayeredLpvGridConfig{
			Cascades:            [4][4]float32{g.MinCornerCellSize},
			GridSize:            g.GridSize,
			IndirectAttenuation: g.IndirectAttenuation,
			CascadeCount:        1,
		}, nil
	}
	u, err := b.uniform(id)
	if err != nil {
		return lpv.GPULayeredLpvGridConfig{}, err
	}
	lg, err := lpv.UnmarshalGPULayeredLpvGridConfig(u.host)
	if err != nil {
		return lpv.GPULayeredLpvGridConfig{}, err
	}
	if lg.CascadeCount > uint32(len(lg.Cascades)) {
		return lpv.GPULayeredLpvGridConfig{}, fmt.Errorf("lpv: layered grid config %q has %d cascades, at most %d are supported", u.label, lg.CascadeCount, len(lg.Cascades))
	}
	return lg, nil
}
