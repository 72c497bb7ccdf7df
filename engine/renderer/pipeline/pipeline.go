package pipeline

import (
	"github.com/Carmen-Shannon/oxy-lpv/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	// pipelineKey is the unique identifier for this pipeline, used for caching and lookups
	pipelineKey string

	// computeShader is required to be set before registering the pipeline with a Renderer.
	computeShader shader.Shader

	// computePipeline is nil until the pipeline is registered
	computePipeline *wgpu.ComputePipeline
}

// Pipeline wraps a compute shader and the WebGPU compute pipeline created from it.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader returns the compute shader of the pipeline.
	//
	// Returns:
	//   - shader.Shader: the compute shader, or nil if not set
	Shader() shader.Shader

	// Pipeline returns the underlying compute pipeline.
	//
	// Returns:
	//   - *wgpu.ComputePipeline: the compute pipeline, or nil before registration
	Pipeline() *wgpu.ComputePipeline

	// WorkgroupCount returns the workgroups needed to cover a dispatch of the given size
	// with the shader's @workgroup_size.
	//
	// Parameters:
	//   - x, y, z: the number of invocations needed in each dimension
	//
	// Returns:
	//   - [3]uint32: the workgroup count
	WorkgroupCount(x, y, z uint32) [3]uint32

	// SetComputePipeline sets the compute pipeline
	//
	// Parameters:
	//   - p: the WebGPU compute pipeline to set
	SetComputePipeline(p *wgpu.ComputePipeline)

	// Release releases the compute pipeline.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new compute Pipeline.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified configuration
func NewPipeline(pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey: pipelineKey,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Pipeline() *wgpu.ComputePipeline {
	return p.computePipeline
}

func (p *pipeline) Shader() shader.Shader {
	return p.computeShader
}

func (p *pipeline) WorkgroupCount(x, y, z uint32) [3]uint32 {
	size := [3]uint32{1, 1, 1}
	if p.computeShader != nil {
		size = p.computeShader.WorkgroupSize()
	}
	n := [3]uint32{x, y, z}
	var out [3]uint32
	for i := range n {
		s := max(size[i], 1)
		out[i] = max((n[i]+s-1)/s, 1)
	}
	return out
}

func (p *pipeline) SetComputePipeline(cp *wgpu.ComputePipeline) {
	p.computePipeline = cp
}

func (p *pipeline) Release() {
	if p.computePipeline != nil {
		p.computePipeline.Release()
		p.computePipeline = nil
	}
}
