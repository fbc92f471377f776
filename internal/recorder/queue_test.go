package recorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/podctl/internal/engine"
	"github.com/roach88/podctl/internal/pod"
)

func transitionEvent(cycle int64) event {
	return event{transition: &engine.Transition{Cycle: cycle}}
}

func TestEventQueue_TakeInOrder(t *testing.T) {
	q := newEventQueue()
	for i := int64(1); i <= 5; i++ {
		require.True(t, q.Put(transitionEvent(i)))
	}
	assert.Equal(t, 5, q.Len())

	first := q.Take(2)
	require.Len(t, first, 2)
	assert.Equal(t, int64(1), first[0].transition.Cycle)
	assert.Equal(t, int64(2), first[1].transition.Cycle)

	rest := q.Take(0)
	require.Len(t, rest, 3)
	assert.Equal(t, int64(3), rest[0].transition.Cycle)
	assert.Equal(t, int64(5), rest[2].transition.Cycle)

	assert.Nil(t, q.Take(0))
	assert.Equal(t, 0, q.Len())
}

func TestEventQueue_TakeDoesNotAlias(t *testing.T) {
	q := newEventQueue()
	q.Put(transitionEvent(1))
	q.Put(transitionEvent(2))

	batch := q.Take(1)
	q.Put(transitionEvent(3))

	assert.Equal(t, int64(1), batch[0].transition.Cycle)
	rest := q.Take(0)
	require.Len(t, rest, 2)
	assert.Equal(t, int64(2), rest[0].transition.Cycle)
	assert.Equal(t, int64(3), rest[1].transition.Cycle)
}

func TestEventQueue_ReadyCoalesces(t *testing.T) {
	q := newEventQueue()
	q.Put(event{change: &engine.StatusChange{Module: pod.ModuleBrakes}})
	q.Put(event{change: &engine.StatusChange{Module: pod.ModuleSensors}})

	select {
	case <-q.Ready():
	default:
		t.Fatal("expected a pending signal")
	}

	select {
	case <-q.Ready():
		t.Fatal("signals should coalesce")
	default:
	}
}

func TestEventQueue_Close(t *testing.T) {
	q := newEventQueue()
	q.Put(event{change: &engine.StatusChange{}})
	q.Close()
	q.Close()

	assert.False(t, q.Put(event{change: &engine.StatusChange{}}))
	assert.False(t, q.Drained())

	assert.Len(t, q.Take(0), 1)
	assert.True(t, q.Drained())

	// Closed signal channel is always ready
	<-q.Ready()
}
