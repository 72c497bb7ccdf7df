package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-lpv/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-lpv/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backendType RendererBackendType
	backend     RendererBackend

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	powerPreference      PowerPreference
}

// Renderer is a headless WebGPU compute device.
//
// The Renderer manages a cache of compute pipelines and wraps a backend that owns the device
// and queue. Work is recorded between BeginComputeFrame and EndComputeFrame and submitted as a
// single command buffer; ReadBuffer waits for everything submitted so far.
type Renderer interface {
	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// Pipelines retrieves the entire cache of Pipelines.
	//
	// Returns:
	//   - map[string]pipeline.Pipeline: a map of pipeline keys to their corresponding Pipeline objects
	Pipelines() map[string]pipeline.Pipeline

	// RegisterPipelines creates the GPU compute pipeline of each pipeline via the backend,
	// then caches them by PipelineKey. Pipelines whose keys are already registered are skipped.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if pipeline creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// InitBindGroup creates the missing GPU buffers and the bind group of a provider from a
	// layout descriptor. Buffer usage and size can be overridden per binding.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created bind group on
	//   - descriptor: the layout descriptor defining the bind group entries
	//   - bufferUsageOverrides: additional buffer usage flags, keyed by binding index (nil safe)
	//   - bufferSizeOverrides: custom buffer sizes to use instead of MinBindingSize, keyed by binding index (nil safe)
	//
	// Returns:
	//   - error: an error if bind group creation fails
	InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error

	// CreateBuffer allocates a zeroed buffer.
	//
	// Parameters:
	//   - label: a debug label
	//   - size: the size in bytes
	//   - usage: the usage flags, CopyDst is always added
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer
	//   - error: an error if the allocation failed
	CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error)

	// WriteBuffers writes all staged buffer writes to the GPU queue.
	//
	// Parameters:
	//   - writes: a slice of BufferWrite structs describing the data to write
	WriteBuffers(writes []bind_group_provider.BufferWrite)

	// WriteBuffer writes bytes to a buffer through the GPU queue.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - offset: the byte offset
	//   - data: the bytes
	WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte)

	// BeginComputeFrame opens a batched compute frame.
	//
	// Returns:
	//   - error: an error if a frame is already open
	BeginComputeFrame() error

	// DispatchCompute encodes a dispatch of a cached pipeline.
	//
	// Parameters:
	//   - key: the pipeline key
	//   - provider: the bind group set at group 0
	//   - workGroupCount: the workgroups in x, y and z
	//
	// Returns:
	//   - error: an error if the pipeline is unknown or no frame is open
	DispatchCompute(key string, provider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error

	// CopyBuffer encodes a buffer copy within the open compute frame.
	//
	// Parameters:
	//   - src: the source buffer
	//   - srcOffset: the source byte offset
	//   - dst: the destination buffer
	//   - dstOffset: the destination byte offset
	//   - size: the number of bytes
	//
	// Returns:
	//   - error: an error if no frame is open
	CopyBuffer(src *wgpu.Buffer, srcOffset uint64, dst *wgpu.Buffer, dstOffset uint64, size uint64) error

	// EndComputeFrame submits the open compute frame.
	//
	// Returns:
	//   - error: an error if no frame is open or submission failed
	EndComputeFrame() error

	// ReadBuffer blocks until submitted work completes and returns the buffer contents.
	//
	// Parameters:
	//   - buf: the buffer to read
	//   - size: the number of bytes
	//
	// Returns:
	//   - []byte: the contents
	//   - error: an error if the readback failed
	ReadBuffer(buf *wgpu.Buffer, size uint64) ([]byte, error)

	// BackendType returns the backend implementation in use.
	//
	// Returns:
	//   - RendererBackendType: the backend type
	BackendType() RendererBackendType

	// Backend returns the backend for direct device access.
	//
	// Returns:
	//   - RendererBackend: the backend
	Backend() RendererBackend

	// Release releases every cached pipeline and the device.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a headless Renderer and requests a GPU device for it.
//
// Parameters:
//   - backendType: the backend implementation to use
//   - opts: a variadic list of RendererBuilderOption functions to configure the renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: an error if no adapter or device is available
func NewRenderer(backendType RendererBackendType, opts ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		backendType:   backendType,
	}
	for _, opt := range opts {
		opt(r)
	}

	switch backendType {
	case BackendTypeWGPU:
		b, err := newWGPURendererBackend(r.forceFallbackAdapter, r.powerPreference)
		if err != nil {
			return nil, err
		}
		r.backend = b
	default:
		return nil, fmt.Errorf("renderer: unsupported backend type %d", backendType)
	}

	// pipelines handed to WithPipelines still need their GPU objects
	pending := make([]pipeline.Pipeline, 0, len(r.pipelineCache))
	for key, p := range r.pipelineCache {
		if p.Pipeline() == nil {
			pending = append(pending, p)
			delete(r.pipelineCache, key)
		}
	}
	if err := r.RegisterPipelines(pending...); err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) Pipelines() map[string]pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range pipelines {
		if _, exists := r.pipelineCache[p.PipelineKey()]; exists {
			continue
		}
		if err := r.backend.RegisterComputePipeline(p); err != nil {
			return fmt.Errorf("failed to register compute pipeline %s: %w", p.PipelineKey(), err)
		}
		r.pipelineCache[p.PipelineKey()] = p
	}
	return nil
}

func (r *renderer) InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error {
	return r.backend.InitBindGroup(provider, descriptor, bufferUsageOverrides, bufferSizeOverrides)
}

func (r *renderer) CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	return r.backend.CreateBuffer(label, size, usage|wgpu.BufferUsageCopyDst)
}

func (r *renderer) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	r.backend.WriteBuffers(writes)
}

func (r *renderer) WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte) {
	r.backend.WriteBuffer(buf, offset, data)
}

func (r *renderer) BeginComputeFrame() error {
	return r.backend.BeginComputeFrame()
}

func (r *renderer) DispatchCompute(key string, provider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error {
	p := r.Pipeline(key)
	if p == nil {
		return fmt.Errorf("renderer: unknown pipeline %q", key)
	}
	return r.backend.DispatchCompute(p, provider, workGroupCount)
}

func (r *renderer) CopyBuffer(src *wgpu.Buffer, srcOffset uint64, dst *wgpu.Buffer, dstOffset uint64, size uint64) error {
	return r.backend.CopyBuffer(src, srcOffset, dst, dstOffset, size)
}

func (r *renderer) EndComputeFrame() error {
	return r.backend.EndComputeFrame()
}

func (r *renderer) ReadBuffer(buf *wgpu.Buffer, size uint64) ([]byte, error) {
	return r.backend.ReadBuffer(buf, size)
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backendType
}

func (r *renderer) Backend() RendererBackend {
	return r.backend
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, p := range r.pipelineCache {
		p.Release()
		delete(r.pipelineCache, key)
	}
	if r.backend != nil {
		r.backend.Release()
	}
}
