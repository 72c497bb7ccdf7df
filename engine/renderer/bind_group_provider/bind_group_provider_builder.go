package bind_group_provider

import "github.com/cogentcore/webgpu/wgpu"

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithSharedBuffers borrows buffers owned elsewhere, keyed by binding index.
//
// Parameters:
//   - buffers: a map of binding indices to borrowed buffers
//
// Returns:
//   - BindGroupProviderOption: a function that shares the buffers with this provider
func WithSharedBuffers(buffers map[int]*wgpu.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		for binding, buf := range buffers {
			p.buffers[binding] = buf
			p.shared[binding] = true
		}
	}
}
