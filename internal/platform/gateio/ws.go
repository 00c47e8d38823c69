// Package gateio streams spot ticker prices from the Gate.io v4 public
// websocket into a watch channel.
package gateio

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
	handshakeTimeout = 15 * time.Second
	writeWait        = 10 * time.Second

	// pingPeriod sends the spot.ping channel message to keep the session
	// alive.
	pingPeriod = 20 * time.Second

	// reconnectDelay is the fixed pause before re-dialling.
	reconnectDelay = 5 * time.Second
)

// Listener subscribes to the spot.tickers channel of one currency pair and
// publishes each ticker update as a PriceSample. Consecutive identical
// samples are suppressed so the downstream engine only wakes on real
// changes.
type Listener struct {
	endpoint string
	ticker   string
	out      *watch.Watch[domain.PriceSample]
	logger   *slog.Logger

	last *domain.PriceSample
}

// NewListener creates a listener for the given websocket endpoint and pair
// (e.g. "HYPE_USDT").
func NewListener(endpoint, ticker string, out *watch.Watch[domain.PriceSample], logger *slog.Logger) *Listener {
	return &Listener{
		endpoint: endpoint,
		ticker:   ticker,
		out:      out,
		logger:   logger.With(slog.String("component", "gateio_listener"), slog.String("ticker", ticker)),
	}
}

// Run connects, streams, and reconnects with a fixed delay until ctx is
// cancelled.
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

func (l *Listener) stream(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, l.endpoint, nil)
	if err != nil {
		return fmt.Errorf("gateio: connect %s: %w: %v", l.endpoint, domain.ErrConnection, err)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		conn.Close()
	}()

	var writeMu sync.Mutex
	writeJSON := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(v)
	}

	sub := map[string]any{
		"time":    time.Now().Unix(),
		"channel": "spot.tickers",
		"event":   "subscribe",
		"payload": []string{l.ticker},
	}
	if err := writeJSON(sub); err != nil {
		return fmt.Errorf("gateio: subscribe: %w: %v", domain.ErrConnection, err)
	}
	l.logger.Info("subscribed to ticker stream")

	go func() {
		t := time.NewTicker(pingPeriod)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				ping := map[string]any{"time": time.Now().Unix(), "channel": "spot.ping"}
				if err := writeJSON(ping); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("gateio: read: %w: %v", domain.ErrConnection, err)
		}
		l.handleMessage(data)
	}
}

// tickerMessage is the spot.tickers update frame.
type tickerMessage struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Result  *struct {
		HighestBid string `json:"highest_bid"`
		LowestAsk  string `json:"lowest_ask"`
	} `json:"result"`
}

// handleMessage publishes a sample for each ticker update, skipping
// subscription acks, pings, and unparseable frames.
func (l *Listener) handleMessage(data []byte) {
	var msg tickerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		l.logger.Debug("skipping unparseable frame",
			slog.String("error", fmt.Sprintf("%s: %v", domain.ErrProtocol, err)),
		)
		return
	}
	if msg.Event == "subscribe" || msg.Event == "unsubscribe" {
		return
	}
	if msg.Channel == "spot.ping" || msg.Channel == "spot.pong" || msg.Result == nil {
		return
	}

	sample := domain.PriceSample{
		Bid: parsePrice(msg.Result.HighestBid),
		Ask: parsePrice(msg.Result.LowestAsk),
	}
	if l.last != nil && *l.last == sample {
		return
	}
	l.last = &sample

	l.out.Publish(sample)
	l.logger.Debug("published cex sample",
		slog.Float64("bid", sample.Bid),
		slog.Float64("ask", sample.Ask),
	)
}

func parsePrice(s string) float64 {
	p, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return p
}
