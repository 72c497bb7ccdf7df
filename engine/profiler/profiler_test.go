package profiler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegisterTimerReturnsSameTimer(t *testing.T) {
	p := NewProfiler()
	a := p.RegisterTimer("LPV/LPV", "Propagation0")
	b := p.RegisterTimer("LPV/LPV", "Propagation0")
	c := p.RegisterTimer("LPV/LPV", "Propagation1")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Len(t, p.Timers(), 2)

	p.UnregisterTimer("LPV/LPV", "Propagation1")
	assert.Len(t, p.Timers(), 1)
}

func TestTimerObserveConcurrent(t *testing.T) {
	p := NewProfiler()
	timer := p.RegisterTimer("graph", "pass")

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			timer.Observe(time.Millisecond)
		}()
	}
	wg.Wait()

	count, total, last := timer.Stats()
	assert.Equal(t, 16, count)
	assert.Equal(t, 16*time.Millisecond, total)
	assert.Equal(t, time.Millisecond, last)
}

func TestTimerStart(t *testing.T) {
	timer := NewProfiler().RegisterTimer("graph", "pass")
	stop := timer.Start()
	stop()
	count, _, _ := timer.Stats()
	assert.Equal(t, 1, count)
}

func TestTickResetsAfterInterval(t *testing.T) {
	p := NewProfiler()
	p.updateInterval = 0
	timer := p.RegisterTimer("graph", "pass")
	timer.Observe(time.Millisecond)

	assert.True(t, p.Tick())
	count, _, last := timer.Stats()
	assert.Equal(t, 0, count)
	assert.Equal(t, time.Millisecond, last)
}
