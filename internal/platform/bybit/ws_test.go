package bybit

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjesko/hyperarb/internal/domain"
	"github.com/zjesko/hyperarb/internal/watch"
)

func newTestListener() (*Listener, *watch.Watch[domain.PriceSample]) {
	out := watch.New[domain.PriceSample]()
	l := NewListener("wss://example.org", "HYPEUSDT", out, slog.New(slog.DiscardHandler))
	return l, out
}

func TestHandleMessageBookUpdate(t *testing.T) {
	l, out := newTestListener()

	l.handleMessage([]byte(`{
		"topic": "orderbook.1.HYPEUSDT",
		"type": "snapshot",
		"data": {"s": "HYPEUSDT", "b": [["25.50", "100"]], "a": [["25.55", "80"]]}
	}`))

	sample, ok := out.Latest()
	require.True(t, ok)
	assert.Equal(t, 25.50, sample.Bid)
	assert.Equal(t, 25.55, sample.Ask)
}

func TestHandleMessageOneSidedBook(t *testing.T) {
	l, out := newTestListener()

	// Delta frames may carry only one side; the missing side parses to 0 and
	// the sample stays invalid for the downstream engine.
	l.handleMessage([]byte(`{
		"topic": "orderbook.1.HYPEUSDT",
		"data": {"b": [["25.50", "100"]], "a": []}
	}`))

	sample, ok := out.Latest()
	require.True(t, ok)
	assert.Equal(t, 25.50, sample.Bid)
	assert.Zero(t, sample.Ask)
	assert.False(t, sample.Valid())
}

func TestHandleMessageSkipsControlFrames(t *testing.T) {
	l, out := newTestListener()

	l.handleMessage([]byte(`{"op": "subscribe", "success": true}`))
	l.handleMessage([]byte(`{"op": "pong"}`))
	l.handleMessage([]byte(`{"topic": "orderbook.1.HYPEUSDT"}`))
	l.handleMessage([]byte(`not json`))

	_, ok := out.Latest()
	assert.False(t, ok)
}

func TestBestLevel(t *testing.T) {
	assert.Equal(t, 25.5, bestLevel([][]string{{"25.5", "100"}}))
	assert.Zero(t, bestLevel(nil))
	assert.Zero(t, bestLevel([][]string{}))
	assert.Zero(t, bestLevel([][]string{{}}))
	assert.Zero(t, bestLevel([][]string{{"garbage", "1"}}))
}

func TestRunStreamsFromServer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// First client frame is the subscription request.
		var sub map[string]any
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		assert.Equal(t, "subscribe", sub["op"])

		frame := map[string]any{
			"topic": "orderbook.1.HYPEUSDT",
			"data": map[string]any{
				"b": [][]string{{"25.50", "100"}},
				"a": [][]string{{"25.55", "80"}},
			},
		}
		if err := conn.WriteJSON(frame); err != nil {
			return
		}
		// Hold the connection open until the client drops it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	out := watch.New[domain.PriceSample]()
	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	l := NewListener(endpoint, "HYPEUSDT", out, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.Eventually(t, func() bool {
		sample, ok := out.Latest()
		return ok && sample.Valid()
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop on cancellation")
	}
}
