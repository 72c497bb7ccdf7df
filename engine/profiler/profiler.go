package profiler

import (
	"log"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Timer accumulates the CPU-side execution time of one render pass.
// Timers are safe for concurrent use; passes of one graph may run on different goroutines.
type Timer struct {
	mu       sync.Mutex
	category string
	name     string
	count    int
	total    time.Duration
	last     time.Duration
}

// Start begins a measurement and returns the function that ends it.
//
// Returns:
//   - func(): records the elapsed time when called
func (t *Timer) Start() func() {
	begin := time.Now()
	return func() {
		t.Observe(time.Since(begin))
	}
}

// Observe records one execution of the pass.
//
// Parameters:
//   - d: the measured duration
func (t *Timer) Observe(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count++
	t.total += d
	t.last = d
}

// Name returns the pass name.
func (t *Timer) Name() string {
	return t.name
}

// Category returns the group the timer was registered under, e.g. "LPVGraph/LPV".
func (t *Timer) Category() string {
	return t.category
}

// Stats returns the execution count, the total time and the last measured time.
//
// Returns:
//   - int: number of observations
//   - time.Duration: accumulated time
//   - time.Duration: last observation
func (t *Timer) Stats() (int, time.Duration, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count, t.total, t.last
}

func (t *Timer) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count = 0
	t.total = 0
}

// Profiler tracks frame rate, memory statistics and per-pass timers.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	mu             sync.Mutex
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastTotalAlloc uint64
	timers         map[string]*Timer
}

// NewProfiler creates a new Profiler with a one second update interval.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
		timers:         make(map[string]*Timer),
	}
}

// RegisterTimer returns the timer for a pass, creating it on first use.
// Registering the same category and name twice returns the same timer, so a recompiled
// graph keeps its history.
//
// Parameters:
//   - category: the group of the pass, e.g. "LPVGraph/LPV"
//   - name: the pass name
//
// Returns:
//   - *Timer: the pass timer
func (p *Profiler) RegisterTimer(category, name string) *Timer {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := category + "|" + name
	if t, ok := p.timers[key]; ok {
		return t
	}
	t := &Timer{category: category, name: name}
	p.timers[key] = t
	return t
}

// UnregisterTimer forgets a pass timer.
//
// Parameters:
//   - category: the group of the pass
//   - name: the pass name
func (p *Profiler) UnregisterTimer(category, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.timers, category+"|"+name)
}

// Timers returns the registered timers sorted by category then name.
//
// Returns:
//   - []*Timer: the timers
func (p *Profiler) Timers() []*Timer {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Timer, 0, len(p.timers))
	for _, t := range p.timers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].category != out[j].category {
			return out[i].category < out[j].category
		}
		return out[i].name < out[j].name
	})
	return out
}

// Tick should be called once per frame. When the update interval has elapsed it logs
// FPS, heap usage and allocation rate, followed by one line per timer category with the
// average pass time over the interval.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	now := time.Now()
	elapsed := now.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()
	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	allocRateMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	log.Printf("[Profiler] FPS: %.2f | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d",
		fps, allocMB, allocRateMB, p.memStats.NumGC)

	perCategory := make(map[string]time.Duration)
	var categories []string
	for _, t := range p.Timers() {
		count, total, _ := t.Stats()
		if count == 0 {
			continue
		}
		if _, ok := perCategory[t.category]; !ok {
			categories = append(categories, t.category)
		}
		perCategory[t.category] += total / time.Duration(count)
		t.reset()
	}
	for _, c := range categories {
		log.Printf("[Profiler] %s: %v per frame", c, perCategory[c])
	}

	p.frameCount = 0
	p.lastTime = now
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
