package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueRunsInOrder(t *testing.T) {
	q := NewQueue()
	var order []int
	q.Post(NewFunctorEvent(TypePreRender, func() { order = append(order, 1) }))
	q.Post(NewFunctorEvent(TypePreRender, func() { order = append(order, 2) }))
	q.Post(NewFunctorEvent(TypePostRender, func() { order = append(order, 3) }))

	assert.Equal(t, 2, q.Process(TypePreRender))
	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, 1, q.Pending(TypePostRender))

	assert.Equal(t, 1, q.Process(TypePostRender))
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestSkippedEventDoesNotRun(t *testing.T) {
	q := NewQueue()
	ran := false
	e := q.Post(NewFunctorEvent(TypePreRender, func() { ran = true }))
	e.Skip()

	assert.True(t, e.Skipped())
	assert.Equal(t, 0, q.Process(TypePreRender))
	assert.False(t, ran)
	assert.Equal(t, 0, q.Pending(TypePreRender))
}

func TestEventsPostedDuringProcessRunNextTime(t *testing.T) {
	q := NewQueue()
	count := 0
	q.Post(NewFunctorEvent(TypePreRender, func() {
		count++
		q.Post(NewFunctorEvent(TypePreRender, func() { count++ }))
	}))

	assert.Equal(t, 1, q.Process(TypePreRender))
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, q.Process(TypePreRender))
	assert.Equal(t, 2, count)
}
