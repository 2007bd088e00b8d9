package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyapx/nekobox/internal/satori"
)

func TestQueue_FIFOAndSequence(t *testing.T) {
	q := NewQueue()
	q.Push(&satori.Event{Type: "a"})
	q.Push(&satori.Event{Type: "b"})
	q.Push(&satori.Event{Type: "c"})

	ctx := context.Background()
	for i, want := range []string{"a", "b", "c"} {
		ev, err := q.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, ev.Type)
		assert.Equal(t, int64(i), ev.ID)
	}
}

func TestQueue_NextBlocksUntilPush(t *testing.T) {
	q := NewQueue()
	done := make(chan *satori.Event, 1)

	go func() {
		ev, err := q.Next(context.Background())
		if err == nil {
			done <- ev
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(&satori.Event{Type: "late"})

	select {
	case ev := <-done:
		assert.Equal(t, "late", ev.Type)
	case <-time.After(time.Second):
		t.Fatal("Next did not observe the push")
	}
}

func TestQueue_NextRespectsContext(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_ConcurrentPushersGetDistinctSequences(t *testing.T) {
	q := NewQueue()
	const n = 100

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Push(&satori.Event{Type: "x"})
		}()
	}
	wg.Wait()

	require.Equal(t, n, q.Len())
	seen := make(map[int64]bool, n)
	last := int64(-1)
	for i := 0; i < n; i++ {
		ev, err := q.Next(context.Background())
		require.NoError(t, err)
		assert.False(t, seen[ev.ID], "duplicate sequence %d", ev.ID)
		seen[ev.ID] = true
		assert.Greater(t, ev.ID, last, "sequence must increase in dequeue order")
		last = ev.ID
	}
}
