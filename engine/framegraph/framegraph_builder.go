package framegraph

import "github.com/Carmen-Shannon/oxy-lpv/engine/profiler"

// FrameGraphBuilderOption is a functional option for configuring a FrameGraph.
type FrameGraphBuilderOption func(*FrameGraph)

// WithExecutor sets the executor used to run passes of the same level.
// The default executor runs them serially.
//
// Parameters:
//   - e: the executor
//
// Returns:
//   - FrameGraphBuilderOption: a function that applies the executor to a FrameGraph
func WithExecutor(e Executor) FrameGraphBuilderOption {
	return func(g *FrameGraph) {
		if e != nil {
			g.executor = e
		}
	}
}

// WithProfiler registers one timer per pass on the given profiler when the graph is compiled.
//
// Parameters:
//   - p: the profiler
//
// Returns:
//   - FrameGraphBuilderOption: a function that applies the profiler to a FrameGraph
func WithProfiler(p *profiler.Profiler) FrameGraphBuilderOption {
	return func(g *FrameGraph) {
		g.profiler = p
	}
}

// WithTimerGroup sets the suffix of the timer category, "<graph>/<group>". Defaults to "passes".
//
// Parameters:
//   - group: the category suffix
//
// Returns:
//   - FrameGraphBuilderOption: a function that applies the group to a FrameGraph
func WithTimerGroup(group string) FrameGraphBuilderOption {
	return func(g *FrameGraph) {
		if group != "" {
			g.group = group
		}
	}
}
