package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xsamyy/soltrack/internal/queue"
)

const subTestAddr = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func notification(sig, errField string) string {
	return fmt.Sprintf(
		`{"jsonrpc":"2.0","method":"logsNotification","params":{"subscription":1,"result":{"context":{"slot":100},"value":{"signature":"%s","err":%s,"logs":[]}}}}`,
		sig, errField,
	)
}

// serveSubscription upgrades, consumes the subscribe request, confirms it,
// then writes each scripted message. It reports the subscribe request on
// subReq and keeps the connection open until the client closes it.
func serveSubscription(subReq chan<- map[string]any, script []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req map[string]any
		if json.Unmarshal(msg, &req) == nil && subReq != nil {
			subReq <- req
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","result":1,"id":1}`))

		for _, m := range script {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

func TestSubscriberPushesOnlyErrorFreeSignatures(t *testing.T) {
	q := queue.New()
	subReq := make(chan map[string]any, 1)
	server := httptest.NewServer(serveSubscription(subReq, []string{
		notification("sigFailed", `{"InstructionError":[2,{"Custom":6001}]}`),
		notification("", "null"),
		notification("sigClean", "null"),
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := NewSubscriber(wsURL(server), "confirmed", subTestAddr, 3, q)
	go sub.Run(ctx)
	defer sub.Stop()

	// the subscribe request is scoped to the wallet address
	select {
	case req := <-subReq:
		assert.Equal(t, "logsSubscribe", req["method"])
		assert.Contains(t, fmt.Sprint(req["params"]), subTestAddr)
	case <-time.After(2 * time.Second):
		t.Fatal("no subscribe request received")
	}

	require.Eventually(t, func() bool { return q.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	it, ok := q.Pop(ctx)
	require.True(t, ok)
	assert.Equal(t, "sigClean", it.Signature)
	assert.Equal(t, subTestAddr, it.Wallet)

	// the errored and empty notifications never make it through
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, q.Len())
}

func TestSubscriberStopsWithoutFurtherPushes(t *testing.T) {
	q := queue.New()
	proceed := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","result":1,"id":1}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(notification("sig1", "null")))

		<-proceed
		_ = conn.WriteMessage(websocket.TextMessage, []byte(notification("sig2", "null")))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	sub := NewSubscriber(wsURL(server), "confirmed", subTestAddr, 3, q)
	go sub.Run(context.Background())

	require.Eventually(t, func() bool { return q.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	sub.Stop()
	require.Eventually(t, sub.Exited, 2*time.Second, 10*time.Millisecond)
	assert.False(t, sub.IsOpen())

	// anything the server emits after shutdown is never enqueued
	close(proceed)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, q.Len())
}

func TestSubscriberGivesUpAfterMaxDialRetries(t *testing.T) {
	q := queue.New()
	// nothing listens here; every dial fails immediately
	sub := NewSubscriber("ws://127.0.0.1:1", "confirmed", subTestAddr, 1, q)

	done := make(chan struct{})
	go func() {
		sub.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not give up after max retries")
	}
	assert.True(t, sub.Exited())
	assert.Zero(t, q.Len())
}
