package renderer

import (
	"github.com/Carmen-Shannon/oxy-lpv/engine/renderer/pipeline"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPipelines adds pipelines to the renderer's cache. Pipelines without a GPU pipeline
// are registered once the device exists.
//
// Parameters:
//   - pipelines: the Pipelines to cache
//
// Returns:
//   - RendererBuilderOption: a function that applies the pipelines option to a renderer
func WithPipelines(pipelines ...pipeline.Pipeline) RendererBuilderOption {
	return func(r *renderer) {
		for _, p := range pipelines {
			r.pipelineCache[p.PipelineKey()] = p
		}
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithPowerPreference selects the adapter class requested from the driver.
//
// Parameters:
//   - p: the power preference
//
// Returns:
//   - RendererBuilderOption: a function that applies the power preference to a renderer
func WithPowerPreference(p PowerPreference) RendererBuilderOption {
	return func(r *renderer) {
		r.powerPreference = p
	}
}
