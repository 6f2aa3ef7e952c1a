package tracker

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0xsamyy/soltrack/internal/queue"
	"github.com/0xsamyy/soltrack/internal/util"
	"github.com/gorilla/websocket"
)

// logsNotification is the shape of a `logsSubscribe` push from the RPC.
type logsNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Value struct {
				Signature string `json:"signature"`
				Err       any    `json:"err"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// Subscriber maintains a single logsSubscribe connection for one wallet
// and pushes every error-free signature it sees onto the shared queue.
//
// Connection setup retries with backoff up to maxRetry attempts; a read
// error after a successful subscribe terminates the subscriber. The
// reconciler notices terminated subscribers on its next tick and starts
// fresh ones, so the notification gap is bounded by one tick interval.
type Subscriber struct {
	wss        string
	addr       string
	commitment string
	maxRetry   int
	q          *queue.Queue

	open       atomic.Bool
	shouldOpen atomic.Bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewSubscriber creates a new Subscriber. Call Run() to start it.
func NewSubscriber(wss, commitment, addr string, maxRetry int, q *queue.Queue) *Subscriber {
	s := &Subscriber{
		wss:        strings.TrimSpace(wss),
		addr:       strings.TrimSpace(addr),
		commitment: strings.TrimSpace(commitment),
		maxRetry:   maxRetry,
		q:          q,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	s.shouldOpen.Store(true)
	return s
}

func (s *Subscriber) IsOpen() bool       { return s.open.Load() }
func (s *Subscriber) ShouldBeOpen() bool { return s.shouldOpen.Load() }

// Exited reports whether Run has returned (stopped or given up).
func (s *Subscriber) Exited() bool {
	select {
	case <-s.doneCh:
		return true
	default:
		return false
	}
}

// Stop requests a prompt shutdown. The receive loop checks the flag
// before every push, so nothing is enqueued once Stop was observed.
func (s *Subscriber) Stop() {
	s.stopOnce.Do(func() {
		s.shouldOpen.Store(false)
		close(s.stopCh)
	})
}

// Run dials, subscribes and pumps notifications until Stop, ctx
// cancellation, or a connection failure.
func (s *Subscriber) Run(ctx context.Context) {
	defer close(s.doneCh)

	bo := util.NewBackoff(1*time.Second, 30*time.Second, 2.0, 0.2)
	attempts := 0

	for {
		if !s.ShouldBeOpen() || ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.wss, http.Header{})
		if err != nil {
			attempts++
			if s.maxRetry > 0 && attempts >= s.maxRetry {
				log.Printf("[sub %s] dial failed %d times, giving up until next reconcile: %v", s.prettyAddr(), attempts, err)
				return
			}
			wait := bo.Next()
			log.Printf("[sub %s] dial error: %v; retrying in %s", s.prettyAddr(), err, wait)
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-time.After(wait):
			}
			continue
		}

		bo.Reset()
		attempts = 0
		s.listen(ctx, conn)
		return
	}
}

// listen subscribes on conn and pumps notifications until the connection
// breaks or shutdown is requested.
func (s *Subscriber) listen(ctx context.Context, conn *websocket.Conn) {
	connCtx, connCancel := context.WithCancel(ctx)
	defer connCancel()

	go func() {
		select {
		case <-s.stopCh:
		case <-connCtx.Done():
		}
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stopping"), time.Now().Add(2*time.Second))
		_ = conn.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	subMsg := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "logsSubscribe",
		"params": []any{
			map[string]any{"mentions": []string{s.addr}},
			map[string]any{"commitment": s.commitment},
		},
	}
	if err := conn.WriteJSON(subMsg); err != nil {
		log.Printf("[sub %s] subscribe error: %v", s.prettyAddr(), err)
		return
	}

	s.open.Store(true)
	defer s.open.Store(false)

	go func() {
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-connCtx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if s.ShouldBeOpen() && connCtx.Err() == nil {
				log.Printf("[sub %s] read error: %v", s.prettyAddr(), err)
			}
			return
		}

		var notif logsNotification
		if err := json.Unmarshal(msg, &notif); err != nil {
			continue
		}
		if notif.Method != "logsNotification" || notif.Params.Result.Value.Signature == "" || notif.Params.Result.Value.Err != nil {
			continue
		}

		// Never push after cancellation has been requested.
		if !s.ShouldBeOpen() || connCtx.Err() != nil {
			return
		}

		signature := notif.Params.Result.Value.Signature
		log.Printf("[sub %s] new signature detected: %s...", s.prettyAddr(), shortSig(signature))
		s.q.Push(queue.Item{Signature: signature, Wallet: s.addr})
	}
}

func (s *Subscriber) prettyAddr() string {
	if len(s.addr) <= 8 {
		return s.addr
	}
	return s.addr[:4] + "..." + s.addr[len(s.addr)-4:]
}

func shortSig(sig string) string {
	if len(sig) <= 16 {
		return sig
	}
	return sig[:16]
}
