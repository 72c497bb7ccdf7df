package renderer

import "github.com/cogentcore/webgpu/wgpu"

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based compute backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PowerPreference selects which adapter the device is requested from.
type PowerPreference int

const (
	// PowerPreferenceDefault lets the driver pick the adapter.
	PowerPreferenceDefault PowerPreference = iota

	// PowerPreferenceLowPower prefers an integrated adapter.
	PowerPreferenceLowPower

	// PowerPreferenceHighPerformance prefers a discrete adapter.
	PowerPreferenceHighPerformance
)

func (p PowerPreference) wgpu() wgpu.PowerPreference {
	switch p {
	case PowerPreferenceLowPower:
		return wgpu.PowerPreferenceLowPower
	case PowerPreferenceHighPerformance:
		return wgpu.PowerPreferenceHighPerformance
	default:
		return wgpu.PowerPreferenceUndefined
	}
}

// RendererBackend is the top-level backend interface for the Renderer.
// It embeds the concrete backend interface for the selected GPU API.
type RendererBackend interface {
	wgpuRendererBackend
}
