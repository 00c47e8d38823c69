// Package app wires the venue listeners, the quote engine, and the arbitrage
// engines together and supervises them for the process lifetime.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/zjesko/hyperarb/internal/arbitrage"
	"github.com/zjesko/hyperarb/internal/config"
	"github.com/zjesko/hyperarb/internal/domain"
	"github.com/zjesko/hyperarb/internal/evmstate"
	"github.com/zjesko/hyperarb/internal/platform/bybit"
	"github.com/zjesko/hyperarb/internal/platform/gateio"
	"github.com/zjesko/hyperarb/internal/platform/hyperswap"
	"github.com/zjesko/hyperarb/internal/watch"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts every task, and blocks until ctx is
// cancelled. Each task contains its own steady-state failures; none of them
// returns an error before shutdown.
func (a *App) Run(ctx context.Context) error {
	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	cfg := a.cfg
	logger := a.logger

	// One watch channel per venue; the only cross-task communication path.
	dexPrices := watch.New[domain.PriceSample]()

	// The overlay cache belongs to the quote engine task alone.
	cache := evmstate.New(deps.Chain)
	quoteEngine := hyperswap.NewEngine(hyperswap.EngineConfig{
		Caller:        config.Address(cfg.Chain.CallerAddress),
		Quoter:        config.Address(cfg.Chain.QuoterAddress),
		Pool:          config.Address(cfg.Chain.PoolAddress),
		BaseToken:     config.Address(cfg.Chain.BaseToken),
		QuoteToken:    config.Address(cfg.Chain.QuoteToken),
		FeeTier:       cfg.Hyperswap.FeeTier,
		BaseDecimals:  int32(cfg.Chain.BaseDecimals),
		QuoteDecimals: int32(cfg.Chain.QuoteDecimals),
		Notional:      cfg.Hyperswap.Notional,
		Interval:      cfg.Hyperswap.Interval.Duration,
		ERC20Bytecode: deps.ERC20Bytecode,
		Logger:        logger,
	}, cache, deps.Chain.Executor(), dexPrices)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return quoteEngine.Run(ctx) })

	startPairing := func(name string, venue config.VenueConfig, cexPrices *watch.Watch[domain.PriceSample]) {
		engineCfg := arbitrage.EngineConfig{
			Pair:          name + "-hyperswap",
			CEXFeeBps:     venue.FeeBps,
			DEXFeeBps:     cfg.Hyperswap.FeeBps,
			GasUnits:      cfg.Arbitrage.GasUnits,
			Logger:        logger,
			SignalChannel: cfg.Arbitrage.SignalChannel,
		}
		if deps.Notifier != nil {
			engineCfg.Alerter = deps.Notifier
		}
		if deps.SignalBus != nil {
			engineCfg.Signals = deps.SignalBus
		}
		engine := arbitrage.NewEngine(engineCfg, cexPrices, dexPrices, deps.Chain)
		g.Go(func() error { return engine.Run(ctx) })
	}

	if cfg.Bybit.Enabled {
		prices := watch.New[domain.PriceSample]()
		listener := bybit.NewListener(cfg.Bybit.WSEndpoint, cfg.Bybit.Ticker, prices, logger)
		g.Go(func() error { return listener.Run(ctx) })
		startPairing("bybit", cfg.Bybit, prices)
	}
	if cfg.Gateio.Enabled {
		prices := watch.New[domain.PriceSample]()
		listener := gateio.NewListener(cfg.Gateio.WSEndpoint, cfg.Gateio.Ticker, prices, logger)
		g.Go(func() error { return listener.Run(ctx) })
		startPairing("gateio", cfg.Gateio, prices)
	}

	a.logger.InfoContext(ctx, "application started",
		slog.Bool("bybit", cfg.Bybit.Enabled),
		slog.Bool("gateio", cfg.Gateio.Enabled),
		slog.Bool("redis", cfg.Redis.Enabled),
	)

	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
