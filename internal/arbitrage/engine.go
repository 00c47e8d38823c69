package arbitrage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/zjesko/hyperarb/internal/domain"
	"github.com/zjesko/hyperarb/internal/watch"
)

// nativeDecimalsFactor converts wei amounts of the chain's native token into
// whole tokens.
const nativeDecimalsFactor = 1e18

// GasPricer supplies the current gas price in wei. Failures must wrap
// domain.ErrUpstreamQuery.
type GasPricer interface {
	GasPrice(ctx context.Context) (*big.Int, error)
}

// Alerter delivers a human-readable opportunity alert. *notify.Notifier
// satisfies it.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// SignalPublisher pushes an opportunity payload to an external channel for
// other consumers. *redis.SignalBus satisfies it.
type SignalPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// EngineConfig configures one (CEX, DEX) pairing.
type EngineConfig struct {
	// Pair names the pairing in logs and reports, e.g. "bybit-hyperswap".
	Pair string

	CEXFeeBps float64
	DEXFeeBps float64

	// GasUnits estimates the gas spent by the DEX leg.
	GasUnits uint64

	Logger *slog.Logger

	// Alerter and Signals are optional reporting sinks.
	Alerter       Alerter
	Signals       SignalPublisher
	SignalChannel string
}

// Engine consumes one CEX and one DEX watch channel and re-evaluates both
// trade directions on every change of either. It has two states: idle,
// waiting on a channel, and evaluating; it runs until the process shuts down.
type Engine struct {
	cfg EngineConfig
	cex *watch.Watch[domain.PriceSample]
	dex *watch.Watch[domain.PriceSample]
	gas GasPricer

	logger *slog.Logger
}

// NewEngine creates an engine for the pairing.
func NewEngine(cfg EngineConfig, cex, dex *watch.Watch[domain.PriceSample], gas GasPricer) *Engine {
	return &Engine{
		cfg:    cfg,
		cex:    cex,
		dex:    dex,
		gas:    gas,
		logger: cfg.Logger.With(slog.String("component", "arb_engine"), slog.String("pair", cfg.Pair)),
	}
}

// Run blocks until ctx is cancelled. Wake-ups are edge-triggered per channel
// but each evaluation reads the latest value of both channels, so
// back-to-back publishes collapse into a single evaluation of the newest
// prices.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("arbitrage engine started")
	defer e.logger.Info("arbitrage engine stopped")

	wake := make(chan struct{}, 1)
	go e.forward(ctx, e.cex.Subscribe(), wake)
	go e.forward(ctx, e.dex.Subscribe(), wake)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
			e.evaluate(ctx)
		}
	}
}

// forward turns one channel's changes into wake signals, conflating when the
// engine is mid-evaluation.
func (e *Engine) forward(ctx context.Context, sub *watch.Subscriber[domain.PriceSample], wake chan<- struct{}) {
	for {
		if _, err := sub.AwaitChange(ctx); err != nil {
			return
		}
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

// evaluate runs one full evaluation: both directions against the freshest
// sample of each venue. Errors abort this evaluation only.
func (e *Engine) evaluate(ctx context.Context) {
	cexSample, cexOK := e.cex.Latest()
	dexSample, dexOK := e.dex.Latest()
	if !cexOK || !dexOK {
		return
	}
	if !cexSample.Valid() || !dexSample.Valid() {
		e.logger.Debug("skipping evaluation of malformed sample",
			slog.Float64("cex_bid", cexSample.Bid),
			slog.Float64("cex_ask", cexSample.Ask),
			slog.Float64("dex_bid", dexSample.Bid),
			slog.Float64("dex_ask", dexSample.Ask),
		)
		return
	}

	// One gas price query per evaluation, reused for both directions.
	gasPriceWei, err := e.gas.GasPrice(ctx)
	if err != nil {
		e.logger.Warn("evaluation aborted", slog.String("error", err.Error()))
		return
	}

	e.direction(ctx, domain.BuyCEX, cexSample.Ask, dexSample.Bid, gasPriceWei)
	e.direction(ctx, domain.BuyDEX, dexSample.Ask, cexSample.Bid, gasPriceWei)
}

// direction evaluates a single trade direction and reports it when both
// profitability gates pass.
func (e *Engine) direction(ctx context.Context, dir domain.ArbDirection, buyPrice, sellPrice float64, gasPriceWei *big.Int) {
	// The native token is priced by whichever side is not being spent:
	// the sell side when buying on the CEX, the buy side otherwise.
	nativeUSD := sellPrice
	if dir == domain.BuyDEX {
		nativeUSD = buyPrice
	}
	gasCostUSD := e.gasCostUSD(gasPriceWei, nativeUSD)

	breakdown := Profit(buyPrice, sellPrice, e.cfg.CEXFeeBps+e.cfg.DEXFeeBps, gasCostUSD)
	if !breakdown.Profitable() {
		e.logger.Debug("no opportunity",
			slog.String("direction", string(dir)),
			slog.Float64("buy", buyPrice),
			slog.Float64("sell", sellPrice),
			slog.Float64("net_bps", breakdown.NetBps),
		)
		return
	}

	opp := domain.ArbOpportunity{
		ID:           uuid.NewString(),
		Pair:         e.cfg.Pair,
		Direction:    dir,
		BuyPrice:     buyPrice,
		SellPrice:    sellPrice,
		FeeCostUSD:   breakdown.FeeCostUSD,
		GasCostUSD:   gasCostUSD,
		NetProfitBps: breakdown.NetBps,
		NetProfitUSD: breakdown.NetUSD,
		DetectedAt:   time.Now().UTC(),
	}
	e.report(ctx, opp)
}

// gasCostUSD prices the DEX leg's gas in USD at the given native token price.
func (e *Engine) gasCostUSD(gasPriceWei *big.Int, nativeUSD float64) float64 {
	wei := new(big.Float).SetInt(gasPriceWei)
	wei.Mul(wei, new(big.Float).SetUint64(e.cfg.GasUnits))
	nativeAmount, _ := wei.Float64()
	return nativeAmount / nativeDecimalsFactor * nativeUSD
}

// report logs the opportunity and fans it out to the optional sinks. Sink
// failures are logged and otherwise ignored; reporting never interrupts the
// engine.
func (e *Engine) report(ctx context.Context, opp domain.ArbOpportunity) {
	e.logger.Info("arbitrage opportunity",
		slog.String("id", opp.ID),
		slog.String("direction", string(opp.Direction)),
		slog.Float64("buy", opp.BuyPrice),
		slog.Float64("sell", opp.SellPrice),
		slog.Float64("net_bps", opp.NetProfitBps),
		slog.Float64("net_usd", opp.NetProfitUSD),
		slog.Float64("fee_usd", opp.FeeCostUSD),
		slog.Float64("gas_usd", opp.GasCostUSD),
	)

	if e.cfg.Alerter != nil {
		title := fmt.Sprintf("Arbitrage: %s (%s)", e.cfg.Pair, opp.Direction)
		message := fmt.Sprintf("buy $%.4f, sell $%.4f, net $%.4f (%.2f bps), fees $%.4f, gas $%.4f",
			opp.BuyPrice, opp.SellPrice, opp.NetProfitUSD, opp.NetProfitBps, opp.FeeCostUSD, opp.GasCostUSD)
		if err := e.cfg.Alerter.Notify(ctx, "opportunity", title, message); err != nil {
			e.logger.Warn("alert failed", slog.String("error", err.Error()))
		}
	}

	if e.cfg.Signals != nil {
		payload, err := json.Marshal(opp)
		if err != nil {
			e.logger.Warn("marshal opportunity failed", slog.String("error", err.Error()))
			return
		}
		if err := e.cfg.Signals.Publish(ctx, e.cfg.SignalChannel, payload); err != nil {
			e.logger.Warn("signal publish failed", slog.String("error", err.Error()))
		}
	}
}
