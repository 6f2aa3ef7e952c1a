package health

import (
	"time"

	"github.com/0xsamyy/soltrack/internal/queue"
	"github.com/0xsamyy/soltrack/internal/tracker"
)

// StoreCounter is the minimal interface we need from the store.
type StoreCounter interface {
	Counts() (users int, wallets int, err error)
}

// Health exposes a read-only snapshot of service state for the /health command.
type Health struct {
	tm *tracker.Manager
	st StoreCounter
	q  *queue.Queue
}

// New returns a Health aggregator bound to the tracker manager, store and queue.
func New(tm *tracker.Manager, st StoreCounter, q *queue.Queue) *Health {
	return &Health{tm: tm, st: st, q: q}
}

// Report is the struct returned to the caller (Telegram handler) for formatting.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`

	// From tracker.Manager.Stats()
	Tracked int      `json:"tracked_in_memory"`
	Open    int      `json:"open_subscriptions"`
	Dropped []string `json:"dropped_subscriptions"`

	// From the subscription store
	Users   int `json:"users_in_store"`
	Wallets int `json:"wallets_in_store"`

	// In-flight work
	QueueDepth int `json:"queue_depth"`
}

// Snapshot gathers a point-in-time report. It does not block for long operations.
func (h *Health) Snapshot() Report {
	tracked, open, dropped := h.tm.Stats()

	var users, wallets int
	if h.st != nil {
		if u, w, err := h.st.Counts(); err == nil {
			users, wallets = u, w
		}
	}

	return Report{
		GeneratedAt: time.Now().UTC(),
		Tracked:     tracked,
		Open:        open,
		Dropped:     append([]string(nil), dropped...),
		Users:       users,
		Wallets:     wallets,
		QueueDepth:  h.q.Len(),
	}
}
