// Package bybit streams top-of-book prices from the Bybit v5 public
// websocket into a watch channel.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zjesko/hyperarb/internal/domain"
	"github.com/zjesko/hyperarb/internal/watch"
)

const (
	// handshakeTimeout bounds the websocket dial.
	handshakeTimeout = 15 * time.Second

	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pingPeriod sends the Bybit application-level ping at this interval;
	// Bybit drops connections that stay silent for more than 30 seconds.
	pingPeriod = 20 * time.Second

	// reconnectDelay is the fixed pause before re-dialling. Reconnection
	// retries forever: the service must self-heal.
	reconnectDelay = 5 * time.Second
)

// Listener subscribes to the depth-1 orderbook stream of one ticker and
// publishes every book update as a PriceSample.
type Listener struct {
	endpoint string
	ticker   string
	out      *watch.Watch[domain.PriceSample]
	logger   *slog.Logger
}

// NewListener creates a listener for the given websocket endpoint and ticker
// (e.g. "HYPEUSDT").
func NewListener(endpoint, ticker string, out *watch.Watch[domain.PriceSample], logger *slog.Logger) *Listener {
	return &Listener{
		endpoint: endpoint,
		ticker:   ticker,
		out:      out,
		logger:   logger.With(slog.String("component", "bybit_listener"), slog.String("ticker", ticker)),
	}
}

// Run connects, streams, and reconnects with a fixed delay until ctx is
// cancelled. Connection errors never escape the adapter.
func (l *Listener) Run(ctx context.Context) error {
	for {
		err := l.stream(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.Warn("connection lost, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", reconnectDelay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

// stream runs a single connection lifetime: dial, subscribe, keep-alive,
// read until failure.
func (l *Listener) stream(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, l.endpoint, nil)
	if err != nil {
		return fmt.Errorf("bybit: connect %s: %w: %v", l.endpoint, domain.ErrConnection, err)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
			conn.Close()
		}
	}()

	var writeMu sync.Mutex
	writeJSON := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(v)
	}

	sub := map[string]any{
		"op":   "subscribe",
		"args": []string{"orderbook.1." + l.ticker},
	}
	if err := writeJSON(sub); err != nil {
		return fmt.Errorf("bybit: subscribe: %w: %v", domain.ErrConnection, err)
	}
	l.logger.Info("subscribed to orderbook stream")

	go func() {
		t := time.NewTicker(pingPeriod)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				if err := writeJSON(map[string]string{"op": "ping"}); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("bybit: read: %w: %v", domain.ErrConnection, err)
		}
		l.handleMessage(data)
	}
}

// bookMessage is the depth-1 orderbook frame. b and a are [price, size]
// string pairs, best level first.
type bookMessage struct {
	Op    string `json:"op"`
	Topic string `json:"topic"`
	Data  *struct {
		Bids [][]string `json:"b"`
		Asks [][]string `json:"a"`
	} `json:"data"`
}

// handleMessage publishes a sample for each book update. Subscription
// confirmations, pongs, and frames that fail to parse are skipped; the
// stream keeps going.
func (l *Listener) handleMessage(data []byte) {
	var msg bookMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		l.logger.Debug("skipping unparseable frame",
			slog.String("error", fmt.Sprintf("%s: %v", domain.ErrProtocol, err)),
		)
		return
	}
	// Frames carrying an op are control responses, not prices.
	if msg.Op != "" || msg.Data == nil {
		return
	}

	sample := domain.PriceSample{
		Bid: bestLevel(msg.Data.Bids),
		Ask: bestLevel(msg.Data.Asks),
	}
	l.out.Publish(sample)
	l.logger.Debug("published cex sample",
		slog.Float64("bid", sample.Bid),
		slog.Float64("ask", sample.Ask),
	)
}

// bestLevel extracts the price of the first level, or 0 when the side is
// absent from the frame.
func bestLevel(levels [][]string) float64 {
	if len(levels) == 0 || len(levels[0]) == 0 {
		return 0
	}
	p, err := strconv.ParseFloat(levels[0][0], 64)
	if err != nil {
		return 0
	}
	return p
}
