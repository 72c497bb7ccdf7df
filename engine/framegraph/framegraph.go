// Package framegraph builds a directed acyclic graph of render passes, compiles it into
// dependency levels and runs it, executing independent passes concurrently.
package framegraph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-lpv/engine/profiler"
)

var (
	// ErrCycle is returned by Compile when pass dependencies form a cycle.
	ErrCycle = errors.New("framegraph: dependency cycle")

	// ErrNotRecorded is returned by Run when Record has not been called on the graph.
	ErrNotRecorded = errors.New("framegraph: graph has not been recorded")

	// ErrReleased is returned by Run when the graph has been released.
	ErrReleased = errors.New("framegraph: graph has been released")
)

// RunnablePass is the executable form of a FramePass, produced at compile time.
type RunnablePass interface {
	// Record prepares the pass for execution (pipelines, bind groups, static uploads).
	// It runs once per compilation, before the first Run.
	//
	// Returns:
	//   - error: if the pass could not be prepared
	Record() error

	// Run executes the pass.
	//
	// Returns:
	//   - error: if execution failed
	Run() error
}

// Releaser is implemented by runnable passes owning resources that must be freed when the
// compiled graph is replaced.
type Releaser interface {
	Release()
}

// PassFactory creates the runnable for a pass when the graph is compiled.
type PassFactory func(pass *FramePass) RunnablePass

// FramePass is a node of the graph: a name, a factory and the passes it depends on.
type FramePass struct {
	name    string
	factory PassFactory
	deps    []*FramePass
	index   int
}

// Name returns the unique pass name.
func (p *FramePass) Name() string {
	return p.name
}

// AddDependency declares that p must run after other. Adding the same dependency twice is a no-op.
//
// Parameters:
//   - other: the pass that must complete first
func (p *FramePass) AddDependency(other *FramePass) {
	for _, d := range p.deps {
		if d == other {
			return
		}
	}
	p.deps = append(p.deps, other)
}

// Dependencies returns the passes p depends on, in declaration order.
func (p *FramePass) Dependencies() []*FramePass {
	return append([]*FramePass(nil), p.deps...)
}

// DependsOn reports whether other is a direct dependency of p.
func (p *FramePass) DependsOn(other *FramePass) bool {
	for _, d := range p.deps {
		if d == other {
			return true
		}
	}
	return false
}

// FrameGraph collects passes and their dependencies until it is compiled.
type FrameGraph struct {
	name     string
	passes   []*FramePass
	byName   map[string]*FramePass
	executor Executor
	profiler *profiler.Profiler
	group    string
}

// NewFrameGraph creates an empty graph.
//
// Parameters:
//   - name: the graph name, used in timer categories and logs
//   - opts: functional options
//
// Returns:
//   - *FrameGraph: the new graph
func NewFrameGraph(name string, opts ...FrameGraphBuilderOption) *FrameGraph {
	g := &FrameGraph{
		name:     name,
		byName:   make(map[string]*FramePass),
		executor: NewSerialExecutor(),
		group:    "passes",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the graph name.
func (g *FrameGraph) Name() string {
	return g.name
}

// CreatePass adds a pass to the graph. Pass names must be unique within a graph.
//
// Parameters:
//   - name: the unique pass name
//   - factory: creates the runnable at compile time
//
// Returns:
//   - *FramePass: the new pass
func (g *FrameGraph) CreatePass(name string, factory PassFactory) *FramePass {
	if _, exists := g.byName[name]; exists {
		panic(fmt.Sprintf("framegraph: duplicate pass name %q in graph %q", name, g.name))
	}
	p := &FramePass{name: name, factory: factory, index: len(g.passes)}
	g.passes = append(g.passes, p)
	g.byName[name] = p
	return p
}

// Pass looks a pass up by name.
//
// Parameters:
//   - name: the pass name
//
// Returns:
//   - *FramePass: the pass, or nil if unknown
func (g *FrameGraph) Pass(name string) *FramePass {
	return g.byName[name]
}

// Passes returns every pass in creation order.
func (g *FrameGraph) Passes() []*FramePass {
	return append([]*FramePass(nil), g.passes...)
}

// Compile orders the passes into dependency levels and instantiates their runnables.
// Passes of the same level have no dependency on each other and may run concurrently.
// Each call produces an independent RunnableGraph; the previous one should be released.
//
// Returns:
//   - *RunnableGraph: the compiled graph
//   - error: ErrCycle if the dependencies form a cycle, or a dependency on a foreign pass
func (g *FrameGraph) Compile() (*RunnableGraph, error) {
	indegree := make(map[*FramePass]int, len(g.passes))
	dependents := make(map[*FramePass][]*FramePass, len(g.passes))

	for _, p := range g.passes {
		for _, d := range p.deps {
			if g.byName[d.name] != d {
				return nil, fmt.Errorf("framegraph: pass %q depends on %q which is not part of graph %q", p.name, d.name, g.name)
			}
			indegree[p]++
			dependents[d] = append(dependents[d], p)
		}
	}

	var ready []*FramePass
	for _, p := range g.passes {
		if indegree[p] == 0 {
			ready = append(ready, p)
		}
	}

	var levels [][]*FramePass
	visited := 0
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i].index < ready[j].index })
		levels = append(levels, ready)
		var next []*FramePass
		for _, p := range ready {
			visited++
			for _, dep := range dependents[p] {
				indegree[dep]--
				if indegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		ready = next
	}
	if visited != len(g.passes) {
		return nil, fmt.Errorf("%w in graph %q", ErrCycle, g.name)
	}

	rg := &RunnableGraph{
		name:     g.name,
		executor: g.executor,
	}
	for _, level := range levels {
		nodes := make([]*runnableNode, 0, len(level))
		for _, p := range level {
			node := &runnableNode{pass: p}
			if p.factory != nil {
				node.runnable = p.factory(p)
			}
			if g.profiler != nil {
				node.timer = g.profiler.RegisterTimer(g.name+"/"+g.group, p.name)
			}
			nodes = append(nodes, node)
		}
		rg.levels = append(rg.levels, nodes)
	}
	return rg, nil
}
