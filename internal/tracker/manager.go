package tracker

import (
	"context"
	"sort"
	"sync"

	"github.com/0xsamyy/soltrack/internal/queue"
)

// Manager owns the set of active Subscribers (one per wallet). It is the
// registry the reconciler mutates; nothing else starts or stops
// subscribers. Concurrency-safe via an internal RWMutex.
type Manager struct {
	wss        string
	commitment string
	maxRetry   int
	q          *queue.Queue

	mu   sync.RWMutex
	subs map[string]*Subscriber // addr -> sub
}

// NewManager constructs a Manager that will spawn subscribers using the
// provided WebSocket endpoint and commitment level, pushing onto q.
func NewManager(wss, commitment string, maxRetry int, q *queue.Queue) *Manager {
	return &Manager{
		wss:        wss,
		commitment: commitment,
		maxRetry:   maxRetry,
		q:          q,
		subs:       make(map[string]*Subscriber),
	}
}

// Track ensures there is a running subscriber for addr. A live subscriber
// makes this a no-op; one that terminated (connection loss, retries
// exhausted) is replaced with a fresh one.
func (m *Manager) Track(ctx context.Context, addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub, exists := m.subs[addr]; exists {
		if !sub.Exited() {
			return nil
		}
		sub.Stop()
	}

	sub := NewSubscriber(m.wss, m.commitment, addr, m.maxRetry, m.q)
	m.subs[addr] = sub
	go sub.Run(ctx)
	return nil
}

// Untrack stops and removes the subscriber for addr, if present.
func (m *Manager) Untrack(_ context.Context, addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub, ok := m.subs[addr]; ok {
		sub.Stop()
		delete(m.subs, addr)
	}
	return nil
}

// List returns a sorted snapshot of currently tracked addresses.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.subs))
	for addr := range m.subs {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// Stats reports:
//
//	tracked = total number of subscribers in memory
//	open    = how many currently report IsOpen()==true
//	dropped = addresses that ShouldBeOpen()==true but IsOpen()==false
//
// Used by the /health command.
func (m *Manager) Stats() (tracked int, open int, dropped []string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tracked = len(m.subs)
	for addr, s := range m.subs {
		if s.IsOpen() {
			open++
			continue
		}
		if s.ShouldBeOpen() {
			dropped = append(dropped, addr)
		}
	}
	sort.Strings(dropped)
	return
}

// StopAll gracefully stops every subscriber; used on shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		s.Stop()
	}
}
