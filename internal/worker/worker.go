package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/0xsamyy/soltrack/internal/analyzer"
	"github.com/0xsamyy/soltrack/internal/queue"
)

// Classifier turns one queued signature into an event (or nothing).
type Classifier interface {
	Classify(ctx context.Context, signature, wallet string) (analyzer.Event, error)
}

// Notifier fans one classified event out to subscribed users.
type Notifier interface {
	Notify(ctx context.Context, ev analyzer.Event)
}

// Pool runs a fixed number of transaction workers, each pulling from the
// shared queue, classifying, and notifying. Workers live for the process
// lifetime; there is no per-worker cancellation.
type Pool struct {
	q        *queue.Queue
	classify Classifier
	notify   Notifier
	timeout  time.Duration
}

// NewPool constructs a worker pool over the shared queue.
func NewPool(q *queue.Queue, c Classifier, n Notifier) *Pool {
	return &Pool{q: q, classify: c, notify: n, timeout: 30 * time.Second}
}

// Run starts count workers and blocks until ctx is done and all workers
// have drained their current item.
func (p *Pool) Run(ctx context.Context, count int) {
	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) loop(ctx context.Context, id int) {
	log.Printf("[worker %d] started", id)
	for {
		it, ok := p.q.Pop(ctx)
		if !ok {
			log.Printf("[worker %d] stopped", id)
			return
		}
		p.process(ctx, id, it)
	}
}

// process handles one queue item. Truly unexpected faults are caught
// here so one bad transaction never takes the worker down; the item is
// considered processed either way.
func (p *Pool) process(ctx context.Context, id int, it queue.Item) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[worker %d] panic on %s: %v", id, it.Signature, rec)
		}
	}()

	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ev, err := p.classify.Classify(cctx, it.Signature, it.Wallet)
	if err != nil {
		log.Printf("[worker %d] classify %s: %v", id, it.Signature, err)
		return
	}
	if ev == nil {
		return
	}
	p.notify.Notify(cctx, ev)
}
