package arbitrage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjesko/hyperarb/internal/domain"
	"github.com/zjesko/hyperarb/internal/watch"
)

type fakeGas struct {
	priceWei *big.Int
	err      error
	calls    atomic.Int32
}

func (f *fakeGas) GasPrice(context.Context) (*big.Int, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.priceWei, nil
}

// captureSignals records published opportunity payloads.
type captureSignals struct {
	opps []domain.ArbOpportunity
}

func (c *captureSignals) Publish(_ context.Context, _ string, payload []byte) error {
	var opp domain.ArbOpportunity
	if err := json.Unmarshal(payload, &opp); err != nil {
		return err
	}
	c.opps = append(c.opps, opp)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestEngine(gas *fakeGas, sink *captureSignals) (*Engine, *watch.Watch[domain.PriceSample], *watch.Watch[domain.PriceSample]) {
	cex := watch.New[domain.PriceSample]()
	dex := watch.New[domain.PriceSample]()
	e := NewEngine(EngineConfig{
		Pair:          "bybit-hyperswap",
		CEXFeeBps:     10,
		DEXFeeBps:     0,
		GasUnits:      1,
		Logger:        discardLogger(),
		Signals:       sink,
		SignalChannel: "arb.opportunities",
	}, cex, dex, gas)
	return e, cex, dex
}

func TestEvaluateReportsCrossedSpread(t *testing.T) {
	// Gas priced so that the DEX leg costs $0.05: with the native token at
	// the direction's sell price of 100.50, 1 gas unit at
	// 0.05/100.50 * 1e18 wei burns exactly five cents.
	weiPerGas, _ := new(big.Float).Mul(
		big.NewFloat(0.05/100.50),
		big.NewFloat(1e18),
	).Int(nil)
	gas := &fakeGas{priceWei: weiPerGas}
	sink := &captureSignals{}
	e, cex, dex := newTestEngine(gas, sink)

	cex.Publish(domain.PriceSample{Bid: 99.50, Ask: 100.00})
	dex.Publish(domain.PriceSample{Bid: 100.50, Ask: 101.00})

	e.evaluate(context.Background())

	require.Len(t, sink.opps, 1)
	opp := sink.opps[0]
	assert.Equal(t, domain.BuyCEX, opp.Direction)
	assert.Equal(t, "bybit-hyperswap", opp.Pair)
	assert.InDelta(t, 100.00, opp.BuyPrice, 1e-9)
	assert.InDelta(t, 100.50, opp.SellPrice, 1e-9)
	assert.InDelta(t, 35.0, opp.NetProfitBps, 1e-6)
	assert.InDelta(t, 0.35, opp.NetProfitUSD, 1e-6)
	assert.InDelta(t, 0.05, opp.GasCostUSD, 1e-6)
	assert.NotEmpty(t, opp.ID)
	assert.Equal(t, int32(1), gas.calls.Load(), "one gas query per evaluation")
}

func TestEvaluateNoCrossingReportsNothing(t *testing.T) {
	gas := &fakeGas{priceWei: big.NewInt(0)}
	sink := &captureSignals{}
	e, cex, dex := newTestEngine(gas, sink)

	cex.Publish(domain.PriceSample{Bid: 99.00, Ask: 99.50})
	dex.Publish(domain.PriceSample{Bid: 99.20, Ask: 100.00})

	e.evaluate(context.Background())

	assert.Empty(t, sink.opps)
}

func TestEvaluateRequiresBothVenues(t *testing.T) {
	gas := &fakeGas{priceWei: big.NewInt(0)}
	sink := &captureSignals{}
	e, cex, _ := newTestEngine(gas, sink)

	cex.Publish(domain.PriceSample{Bid: 99.00, Ask: 100.00})
	e.evaluate(context.Background())

	assert.Empty(t, sink.opps)
	assert.Zero(t, gas.calls.Load(), "no gas query before both venues have published")
}

func TestEvaluateSkipsMalformedSamples(t *testing.T) {
	gas := &fakeGas{priceWei: big.NewInt(0)}
	sink := &captureSignals{}
	e, cex, dex := newTestEngine(gas, sink)

	cex.Publish(domain.PriceSample{Bid: 0, Ask: 0})
	dex.Publish(domain.PriceSample{Bid: 100.50, Ask: 101.00})

	e.evaluate(context.Background())

	assert.Empty(t, sink.opps)
	assert.Zero(t, gas.calls.Load())
}

func TestGasFailureAbortsSingleEvaluationOnly(t *testing.T) {
	gas := &fakeGas{err: errors.New("rpc down")}
	sink := &captureSignals{}
	e, cex, dex := newTestEngine(gas, sink)

	cex.Publish(domain.PriceSample{Bid: 99.50, Ask: 100.00})
	dex.Publish(domain.PriceSample{Bid: 105.00, Ask: 106.00})

	e.evaluate(context.Background())
	assert.Empty(t, sink.opps, "failed gas query aborts the evaluation")

	// The next evaluation succeeds once the upstream recovers.
	gas.err = nil
	gas.priceWei = big.NewInt(0)
	e.evaluate(context.Background())
	assert.NotEmpty(t, sink.opps)
}

func TestRunWakesOnEitherChannel(t *testing.T) {
	gas := &fakeGas{priceWei: big.NewInt(0)}
	sink := &captureSignals{}
	e, cex, dex := newTestEngine(gas, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = e.Run(ctx)
		close(done)
	}()

	// Only one venue has published: the wake evaluates and bails out before
	// querying gas.
	cex.Publish(domain.PriceSample{Bid: 99.50, Ask: 100.00})
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, gas.calls.Load())

	dex.Publish(domain.PriceSample{Bid: 105.00, Ask: 106.00})
	require.Eventually(t, func() bool { return gas.calls.Load() >= 1 }, time.Second, 5*time.Millisecond,
		"a DEX publish must trigger an evaluation once both venues are present")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine did not stop on cancellation")
	}
}
