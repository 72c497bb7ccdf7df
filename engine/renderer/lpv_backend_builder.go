package renderer

import "log/slog"

// LPVBackendBuilderOption is a functional option applied to the wgpu LPV backend during construction.
type LPVBackendBuilderOption func(*lpvBackend)

// WithOwnedRenderer makes the backend release its Renderer when it is released itself.
//
// Parameters:
//   - owned: true to hand the Renderer over to the backend
//
// Returns:
//   - LPVBackendBuilderOption: a function that applies the ownership option to the backend
func WithOwnedRenderer(owned bool) LPVBackendBuilderOption {
	return func(b *lpvBackend) {
		b.ownsRenderer = owned
	}
}

// WithLogger sets the logger used for resource lifecycle messages.
//
// Parameters:
//   - l: the logger, nil keeps the shared engine logger
//
// Returns:
//   - LPVBackendBuilderOption: a function that applies the logger to the backend
func WithLogger(l *slog.Logger) LPVBackendBuilderOption {
	return func(b *lpvBackend) {
		if l != nil {
			b.logger = l
		}
	}
}
