package hyperswap

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/zjesko/hyperarb/internal/domain"
	"github.com/zjesko/hyperarb/internal/evmstate"
	"github.com/zjesko/hyperarb/internal/watch"
)

// balanceMappingSlot is the base slot of the balance mapping in the generic
// ERC-20 bytecode installed over the pool's tokens (slot 0).
var balanceMappingSlot = common.Hash{}

// poolPriceSlot holds the pool's packed sqrt price and tick (slot 0).
var poolPriceSlot = common.Hash{}

// Executor is the execution primitive the engine drives: run calldata
// against target as caller over the supplied overlay view and return the
// raw response bytes, or an error wrapping domain.ErrExecution on revert.
// It must not mutate the authoritative chain.
type Executor interface {
	Execute(ctx context.Context, caller, target common.Address, calldata []byte, state *evmstate.Cache) ([]byte, error)
}

// EngineConfig carries the addresses and parameters of one quoted pool.
type EngineConfig struct {
	Caller     common.Address
	Quoter     common.Address
	Pool       common.Address
	BaseToken  common.Address
	QuoteToken common.Address
	FeeTier    int64

	BaseDecimals  int32
	QuoteDecimals int32

	// Notional is the fixed trade size in base units that every quote is
	// computed for.
	Notional float64
	Interval time.Duration

	// ERC20Bytecode optionally substitutes the pool tokens' bytecode with a
	// generic ERC-20 implementation, paired with synthetic max-range pool
	// balances so the quoter's transfer checks always succeed.
	ERC20Bytecode []byte

	Logger *slog.Logger
}

// Engine produces a fresh (bid, ask) sample for the pool on a fixed interval
// and publishes it on the DEX watch channel. It is the sole owner of its
// overlay cache; no other task may touch it.
type Engine struct {
	cfg   EngineConfig
	cache *evmstate.Cache
	exec  Executor
	out   *watch.Watch[domain.PriceSample]

	notional    decimal.Decimal
	notionalWei *big.Int
	logger      *slog.Logger
}

// NewEngine creates the engine and installs the synthetic overrides in the
// cache: substituted token bytecode (when configured) and derived-slot pool
// balances large enough for any quote.
func NewEngine(cfg EngineConfig, cache *evmstate.Cache, exec Executor, out *watch.Watch[domain.PriceSample]) *Engine {
	notional := decimal.NewFromFloat(cfg.Notional)

	e := &Engine{
		cfg:         cfg,
		cache:       cache,
		exec:        exec,
		out:         out,
		notional:    notional,
		notionalWei: notional.Shift(cfg.BaseDecimals).BigInt(),
		logger:      cfg.Logger.With(slog.String("component", "hyperswap_engine")),
	}

	if len(cfg.ERC20Bytecode) > 0 {
		cache.SetCodeOverride(cfg.BaseToken, cfg.ERC20Bytecode)
		cache.SetCodeOverride(cfg.QuoteToken, cfg.ERC20Bytecode)
	}

	// Half the word range keeps balance arithmetic inside the quoter from
	// overflowing while still covering any realistic quote size.
	synthetic := new(uint256.Int).SetAllOne()
	synthetic.Rsh(synthetic, 1)
	value := common.Hash(synthetic.Bytes32())
	cache.SetSlotOverride(cfg.BaseToken, evmstate.BalanceSlot(balanceMappingSlot, cfg.Pool), value)
	cache.SetSlotOverride(cfg.QuoteToken, evmstate.BalanceSlot(balanceMappingSlot, cfg.Pool), value)

	return e
}

// Run quotes the pool once immediately and then on every interval tick until
// ctx is cancelled. A failed cycle is logged and skipped; the previous sample
// stays visible to subscribers.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("quote engine started",
		slog.String("pool", e.cfg.Pool.Hex()),
		slog.Duration("interval", e.cfg.Interval),
	)
	defer e.logger.Info("quote engine stopped")

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := e.quoteOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Warn("quote cycle aborted", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// quoteOnce runs one full cycle: refresh the pool's price slot, simulate both
// directions against the overlay view, and publish the decoded sample. Any
// error aborts the cycle before publishing.
func (e *Engine) quoteOnce(ctx context.Context) error {
	// One remote read per cycle. Both quote calls then observe the same
	// pinned pool price instead of racing the chain.
	if err := e.cache.RefreshSlot(ctx, e.cfg.Pool, poolPriceSlot); err != nil {
		return err
	}

	bid, err := e.quoteSellBase(ctx)
	if err != nil {
		return err
	}
	ask, err := e.quoteBuyBase(ctx)
	if err != nil {
		return err
	}

	sample := domain.PriceSample{Bid: bid, Ask: ask}
	e.out.Publish(sample)
	e.logger.Debug("published dex sample",
		slog.Float64("bid", sample.Bid),
		slog.Float64("ask", sample.Ask),
	)
	return nil
}

// quoteSellBase prices the "sell base" direction: an exact-input quote of the
// notional base amount into the quote token. The result is the venue's bid.
func (e *Engine) quoteSellBase(ctx context.Context) (float64, error) {
	calldata, err := QuoteExactInputCalldata(e.cfg.BaseToken, e.cfg.QuoteToken, e.notionalWei, e.cfg.FeeTier)
	if err != nil {
		return 0, err
	}
	ret, err := e.exec.Execute(ctx, e.cfg.Caller, e.cfg.Quoter, calldata, e.cache)
	if err != nil {
		return 0, err
	}
	amountOut, err := DecodeExactInputReturn(ret)
	if err != nil {
		return 0, err
	}
	return e.quotePrice(amountOut), nil
}

// quoteBuyBase prices the "buy base" direction: an exact-output quote asking
// what the notional base amount costs in the quote token. The result is the
// venue's ask.
func (e *Engine) quoteBuyBase(ctx context.Context) (float64, error) {
	calldata, err := QuoteExactOutputCalldata(e.cfg.QuoteToken, e.cfg.BaseToken, e.notionalWei, e.cfg.FeeTier)
	if err != nil {
		return 0, err
	}
	ret, err := e.exec.Execute(ctx, e.cfg.Caller, e.cfg.Quoter, calldata, e.cache)
	if err != nil {
		return 0, err
	}
	amountIn, err := DecodeExactOutputReturn(ret)
	if err != nil {
		return 0, err
	}
	return e.quotePrice(amountIn), nil
}

// quotePrice converts a raw quote-token amount for the whole notional into a
// price per one base unit.
func (e *Engine) quotePrice(raw *big.Int) float64 {
	amount := decimal.NewFromBigInt(raw, -e.cfg.QuoteDecimals)
	if e.notional.IsZero() {
		return 0
	}
	return amount.Div(e.notional).InexactFloat64()
}
