package queue

import (
	"context"
	"sync"
)

// Item is one observed signature for one tracked wallet.
type Item struct {
	Signature string
	Wallet    string
}

// Queue is an unbounded multi-producer/multi-consumer FIFO.
// Push never blocks; Pop blocks until an item arrives or ctx is done.
// Ordering is preserved per producer; contents are lost on process exit.
type Queue struct {
	mu    sync.Mutex
	items []Item
	wake  chan struct{}
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Push appends it to the queue and wakes one waiting consumer.
func (q *Queue) Push(it Item) {
	q.mu.Lock()
	q.items = append(q.items, it)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest item. It returns ok=false only when
// ctx is cancelled while the queue is empty.
func (q *Queue) Pop(ctx context.Context) (Item, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			it := q.items[0]
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			if remaining > 0 {
				// hand the wake token on so other consumers don't stall
				select {
				case q.wake <- struct{}{}:
				default:
				}
			}
			return it, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Item{}, false
		case <-q.wake:
		}
	}
}

// Len reports the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
