package gateio

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
	l := NewListener("wss://example.org", "HYPE_USDT", out, slog.New(slog.DiscardHandler))
	return l, out
}

func TestHandleMessageTickerUpdate(t *testing.T) {
	l, out := newTestListener()

	l.handleMessage([]byte(`{
		"time": 1700000000,
		"channel": "spot.tickers",
		"event": "update",
		"result": {"currency_pair": "HYPE_USDT", "highest_bid": "25.48", "lowest_ask": "25.53"}
	}`))

	sample, ok := out.Latest()
	require.True(t, ok)
	assert.Equal(t, 25.48, sample.Bid)
	assert.Equal(t, 25.53, sample.Ask)
}

func TestHandleMessageSkipsControlFrames(t *testing.T) {
	l, out := newTestListener()

	l.handleMessage([]byte(`{"channel": "spot.tickers", "event": "subscribe", "result": {"status": "success"}}`))
	l.handleMessage([]byte(`{"channel": "spot.pong", "result": {}}`))
	l.handleMessage([]byte(`{"channel": "spot.tickers", "event": "update"}`))
	l.handleMessage([]byte(`not json`))

	_, ok := out.Latest()
	assert.False(t, ok)
}

func TestHandleMessageSuppressesDuplicates(t *testing.T) {
	l, out := newTestListener()

	frame := []byte(`{
		"channel": "spot.tickers",
		"event": "update",
		"result": {"highest_bid": "25.48", "lowest_ask": "25.53"}
	}`)
	l.handleMessage(frame)

	sub := out.Subscribe()
	_, err := sub.AwaitChange(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// The identical frame again must not republish or wake subscribers.
	l.handleMessage(frame)
	_, err = sub.AwaitChange(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// A changed ticker goes through.
	l.handleMessage([]byte(`{
		"channel": "spot.tickers",
		"event": "update",
		"result": {"highest_bid": "25.49", "lowest_ask": "25.53"}
	}`))
	sample, ok := out.Latest()
	require.True(t, ok)
	assert.Equal(t, 25.49, sample.Bid)
}

func TestParsePrice(t *testing.T) {
	assert.Equal(t, 25.5, parsePrice("25.5"))
	assert.Zero(t, parsePrice(""))
	assert.Zero(t, parsePrice("garbage"))
}

func TestRunStreamsFromServer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub map[string]any
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		assert.Equal(t, "spot.tickers", sub["channel"])
		assert.Equal(t, "subscribe", sub["event"])

		frame := map[string]any{
			"channel": "spot.tickers",
			"event":   "update",
			"result": map[string]string{
				"highest_bid": "25.48",
				"lowest_ask":  "25.53",
			},
		}
		if err := conn.WriteJSON(frame); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	out := watch.New[domain.PriceSample]()
	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	l := NewListener(endpoint, "HYPE_USDT", out, slog.New(slog.DiscardHandler))

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
