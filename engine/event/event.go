// Package event queues deferred work that must run on the render goroutine
// at a given point of the frame.
package event

import (
	"sync"
	"sync/atomic"
)

// Type identifies the frame phase an event runs in.
type Type int

const (
	// TypePreRender events run before any pass of the frame is executed.
	TypePreRender Type = iota

	// TypePostRender events run after the frame has been submitted.
	TypePostRender
)

// Event is a unit of deferred work. A skipped event is dropped by the queue without running.
type Event interface {
	// Type returns the phase the event runs in.
	//
	// Returns:
	//   - Type: the frame phase
	Type() Type

	// Skip cancels the event. Skipping an event that already ran has no effect.
	Skip()

	// Skipped reports whether Skip was called.
	//
	// Returns:
	//   - bool: true if the event was cancelled
	Skipped() bool

	// Run executes the event's work.
	Run()
}

type functorEvent struct {
	eventType Type
	skipped   atomic.Bool
	fn        func()
}

var _ Event = &functorEvent{}

// NewFunctorEvent wraps fn into an Event for the given phase.
//
// Parameters:
//   - eventType: the phase the event runs in
//   - fn: the work to execute
//
// Returns:
//   - Event: the new event
func NewFunctorEvent(eventType Type, fn func()) Event {
	return &functorEvent{eventType: eventType, fn: fn}
}

func (e *functorEvent) Type() Type {
	return e.eventType
}

func (e *functorEvent) Skip() {
	e.skipped.Store(true)
}

func (e *functorEvent) Skipped() bool {
	return e.skipped.Load()
}

func (e *functorEvent) Run() {
	if e.fn != nil {
		e.fn()
	}
}

// Queue collects events posted from any goroutine and runs them on the render goroutine.
type Queue struct {
	mu      sync.Mutex
	pending map[Type][]Event
}

// NewQueue creates an empty event queue.
//
// Returns:
//   - *Queue: the new queue
func NewQueue() *Queue {
	return &Queue{pending: make(map[Type][]Event)}
}

// Post appends an event to its phase and returns it so the caller can keep a handle for Skip.
//
// Parameters:
//   - e: the event to queue
//
// Returns:
//   - Event: the same event
func (q *Queue) Post(e Event) Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[e.Type()] = append(q.pending[e.Type()], e)
	return e
}

// Process runs every pending, non-skipped event of the given phase in posting order.
// Events posted while processing run on the next call.
//
// Parameters:
//   - eventType: the phase to process
//
// Returns:
//   - int: the number of events that ran
func (q *Queue) Process(eventType Type) int {
	q.mu.Lock()
	events := q.pending[eventType]
	delete(q.pending, eventType)
	q.mu.Unlock()

	ran := 0
	for _, e := range events {
		if e.Skipped() {
			continue
		}
		e.Run()
		ran++
	}
	return ran
}

// Pending returns the number of queued events for a phase, skipped ones included.
//
// Parameters:
//   - eventType: the phase to count
//
// Returns:
//   - int: the number of queued events
func (q *Queue) Pending(eventType Type) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[eventType])
}
