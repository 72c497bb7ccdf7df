package lpv

// CPUBackendBuilderOption is a function that configures the CPU backend during construction.
type CPUBackendBuilderOption func(*cpuBackend)

// WithWorkers sets the number of slabs a kernel is split into. One or less runs every
// kernel on the calling goroutine.
//
// Parameters:
//   - workers: the worker count
//
// Returns:
//   - CPUBackendBuilderOption: a function that applies the worker count to the backend
func WithWorkers(workers int) CPUBackendBuilderOption {
	return func(b *cpuBackend) {
		b.workers = workers
	}
}
