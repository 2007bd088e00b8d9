package events

import (
	"context"
	"sync"

	"github.com/wyapx/nekobox/internal/satori"
)

// Queue is the unbounded ordered FIFO between the event dispatcher (sole
// producer side) and the adapter's publication loop (sole consumer).
// Sequence numbers are assigned under the queue lock at enqueue time, so
// publication order is strictly increasing even when multiple event
// subscriptions enqueue near-simultaneously.
type Queue struct {
	mu      sync.Mutex
	items   []*satori.Event
	nextSeq int64
	signal  chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Push stamps the event with the next sequence number and enqueues it.
func (q *Queue) Push(ev *satori.Event) {
	q.mu.Lock()
	ev.ID = q.nextSeq
	q.nextSeq++
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Next blocks until an event is available or ctx is done.
func (q *Queue) Next(ctx context.Context) (*satori.Event, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return ev, nil
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len reports how many events are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
