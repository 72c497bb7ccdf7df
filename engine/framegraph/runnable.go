package framegraph

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-lpv/engine/profiler"
)

// Semaphore marks the completion of one graph run. Graphs are chained by passing the
// semaphores returned by one Run as the wait list of the next.
type Semaphore struct {
	Label string
	Value uint64
}

// Queue orders graph submissions and remembers the last signalled value per label.
type Queue struct {
	mu       sync.Mutex
	name     string
	signaled map[string]uint64
}

// NewQueue creates a submission queue.
//
// Parameters:
//   - name: the queue name
//
// Returns:
//   - *Queue: the new queue
func NewQueue(name string) *Queue {
	return &Queue{name: name, signaled: make(map[string]uint64)}
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// Signal records that the semaphore has been reached.
func (q *Queue) Signal(s Semaphore) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if s.Value > q.signaled[s.Label] {
		q.signaled[s.Label] = s.Value
	}
}

// Signaled reports whether the semaphore value has been reached on this queue.
func (q *Queue) Signaled(s Semaphore) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.signaled[s.Label] >= s.Value
}

type runnableNode struct {
	pass     *FramePass
	runnable RunnablePass
	timer    *profiler.Timer
}

// RunnableGraph is the compiled, executable form of a FrameGraph. It owns the runnables
// created at compile time; Release frees them, and a released graph cannot run again.
type RunnableGraph struct {
	mu       sync.Mutex
	name     string
	executor Executor
	levels   [][]*runnableNode
	recorded bool
	released bool
	runs     uint64
}

// Name returns the name of the graph it was compiled from.
func (rg *RunnableGraph) Name() string {
	return rg.name
}

// Levels returns the pass names grouped by dependency level.
//
// Returns:
//   - [][]string: one slice of pass names per level, in execution order
func (rg *RunnableGraph) Levels() [][]string {
	out := make([][]string, 0, len(rg.levels))
	for _, level := range rg.levels {
		names := make([]string, 0, len(level))
		for _, n := range level {
			names = append(names, n.pass.name)
		}
		out = append(out, names)
	}
	return out
}

// Runnable returns the runnable created for the named pass, or nil.
func (rg *RunnableGraph) Runnable(name string) RunnablePass {
	for _, level := range rg.levels {
		for _, n := range level {
			if n.pass.name == name {
				return n.runnable
			}
		}
	}
	return nil
}

// Record prepares every pass in dependency order. Passes of one level are recorded
// concurrently through the graph executor.
//
// Returns:
//   - error: the joined record errors, or nil
func (rg *RunnableGraph) Record() error {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	if rg.released {
		return ErrReleased
	}
	for _, level := range rg.levels {
		tasks := make([]func() error, 0, len(level))
		for _, n := range level {
			if n.runnable == nil {
				continue
			}
			tasks = append(tasks, func() error {
				if err := n.runnable.Record(); err != nil {
					return fmt.Errorf("framegraph: failed to record pass %q: %w", n.pass.name, err)
				}
				return nil
			})
		}
		if len(tasks) == 0 {
			continue
		}
		if err := rg.executor.Execute(tasks); err != nil {
			return err
		}
	}
	rg.recorded = true
	return nil
}

// Run executes the graph once. It fails if any of the semaphores to wait on has not been
// signalled on the queue, then runs every level in order and signals its own semaphore.
//
// Parameters:
//   - toWait: semaphores from previous submissions this run depends on
//   - queue: the submission queue, may be nil
//
// Returns:
//   - []Semaphore: the semaphore signalled by this run
//   - error: ErrNotRecorded, ErrReleased, an unsignalled wait or the joined pass errors
func (rg *RunnableGraph) Run(toWait []Semaphore, queue *Queue) ([]Semaphore, error) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	if rg.released {
		return nil, ErrReleased
	}
	if !rg.recorded {
		return nil, ErrNotRecorded
	}
	if queue != nil {
		for _, s := range toWait {
			if !queue.Signaled(s) {
				return nil, fmt.Errorf("framegraph: graph %q waits on unsignalled semaphore %s=%d", rg.name, s.Label, s.Value)
			}
		}
	}

	for _, level := range rg.levels {
		tasks := make([]func() error, 0, len(level))
		for _, n := range level {
			if n.runnable == nil {
				continue
			}
			tasks = append(tasks, func() error {
				if n.timer != nil {
					defer n.timer.Start()()
				}
				if err := n.runnable.Run(); err != nil {
					return fmt.Errorf("framegraph: pass %q failed: %w", n.pass.name, err)
				}
				return nil
			})
		}
		if len(tasks) == 0 {
			continue
		}
		if err := rg.executor.Execute(tasks); err != nil {
			return nil, err
		}
	}

	rg.runs++
	sem := Semaphore{Label: rg.name, Value: rg.runs}
	if queue != nil {
		queue.Signal(sem)
	}
	return []Semaphore{sem}, nil
}

// Release frees every runnable implementing Releaser. Calling it twice is a no-op.
func (rg *RunnableGraph) Release() {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	if rg.released {
		return
	}
	for _, level := range rg.levels {
		for _, n := range level {
			if r, ok := n.runnable.(Releaser); ok {
				r.Release()
			}
		}
	}
	rg.released = true
}

// Released reports whether Release has been called.
func (rg *RunnableGraph) Released() bool {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	return rg.released
}
