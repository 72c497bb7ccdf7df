package framegraph

import (
	"errors"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// Executor runs a batch of independent tasks and returns once all of them have finished.
type Executor interface {
	// Execute runs every task and joins their errors.
	//
	// Parameters:
	//   - tasks: the independent units of work
	//
	// Returns:
	//   - error: the joined task errors, or nil
	Execute(tasks []func() error) error
}

// serialExecutor runs tasks one after another on the calling goroutine.
type serialExecutor struct{}

var _ Executor = serialExecutor{}

// NewSerialExecutor returns an Executor that runs tasks in order on the caller's goroutine.
//
// Returns:
//   - Executor: the serial executor
func NewSerialExecutor() Executor {
	return serialExecutor{}
}

func (serialExecutor) Execute(tasks []func() error) error {
	var errs []error
	for _, task := range tasks {
		if err := task(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// poolExecutor fans tasks out to a worker pool.
type poolExecutor struct {
	pool   worker.DynamicWorkerPool
	nextID int
	mu     sync.Mutex
}

var _ Executor = &poolExecutor{}

// NewPoolExecutor returns an Executor backed by a dynamic worker pool of the given size.
// Workers are reused across frames, so no goroutine is spawned per task.
//
// Parameters:
//   - workers: the maximum number of concurrent workers
//
// Returns:
//   - Executor: the pooled executor
func NewPoolExecutor(workers int) Executor {
	return &poolExecutor{
		pool: worker.NewDynamicWorkerPool(max(workers, 1), 256, 1*time.Second),
	}
}

// Execute submits every task to the pool. A WaitGroup is the per-batch barrier because
// pool.Wait() blocks until workers idle-exit, which is unsuitable for per-frame batches.
func (e *poolExecutor) Execute(tasks []func() error) error {
	if len(tasks) == 1 {
		return tasks[0]()
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, task := range tasks {
		wg.Add(1)
		e.mu.Lock()
		id := e.nextID
		e.nextID++
		e.mu.Unlock()

		e.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				if err := task(); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}
