// Package config defines the top-level configuration for the arbitrage
// monitor and provides validation helpers. Configuration is loaded once at
// startup and immutable for the process lifetime.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zjesko/hyperarb/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by HYPERARB_* environment
// variables.
type Config struct {
	Chain     ChainConfig     `toml:"chain"`
	Hyperswap HyperswapConfig `toml:"hyperswap"`
	Bybit     VenueConfig     `toml:"bybit"`
	Gateio    VenueConfig     `toml:"gateio"`
	Arbitrage ArbitrageConfig `toml:"arbitrage"`
	Redis     RedisConfig     `toml:"redis"`
	Notify    NotifyConfig    `toml:"notify"`
	LogLevel  string          `toml:"log_level"`
	LogFile   string          `toml:"log_file"`
}

// ChainConfig holds the remote node endpoint and on-chain addresses.
type ChainConfig struct {
	RPCURL        string `toml:"rpc_url"`
	CallerAddress string `toml:"caller_address"`
	QuoterAddress string `toml:"quoter_address"`
	PoolAddress   string `toml:"pool_address"`
	BaseToken     string `toml:"base_token"`
	QuoteToken    string `toml:"quote_token"`
	BaseDecimals  int    `toml:"base_decimals"`
	QuoteDecimals int    `toml:"quote_decimals"`
}

// HyperswapConfig holds the quote engine parameters.
type HyperswapConfig struct {
	Interval duration `toml:"interval"`
	// Notional is the fixed trade size in base units that quotes are
	// computed for.
	Notional float64 `toml:"notional"`
	FeeTier  int64   `toml:"fee_tier"`
	FeeBps   float64 `toml:"fee_bps"`
	// ERC20BytecodePath optionally points at a hex file with generic ERC-20
	// bytecode to substitute for the pool tokens during simulation.
	ERC20BytecodePath string `toml:"erc20_bytecode_path"`
}

// VenueConfig holds one CEX feed's endpoint, ticker, and taker fee.
type VenueConfig struct {
	Enabled    bool    `toml:"enabled"`
	WSEndpoint string  `toml:"ws_endpoint"`
	Ticker     string  `toml:"ticker"`
	FeeBps     float64 `toml:"fee_bps"`
}

// ArbitrageConfig holds parameters shared by all engine pairings.
type ArbitrageConfig struct {
	// GasUnits estimates the gas spent by the DEX leg of a round trip.
	GasUnits uint64 `toml:"gas_units"`
	// SignalChannel is the pub/sub channel opportunities are published on
	// when Redis is enabled.
	SignalChannel string `toml:"signal_channel"`
}

// RedisConfig holds the optional opportunity signal bus connection.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// NotifyConfig holds the alerting channels.
type NotifyConfig struct {
	// Events lists the event types to forward; empty forwards everything.
	Events   []string       `toml:"events"`
	Telegram TelegramConfig `toml:"telegram"`
	Discord  DiscordConfig  `toml:"discord"`
}

// TelegramConfig holds Telegram Bot API credentials.
type TelegramConfig struct {
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// DiscordConfig holds a Discord webhook.
type DiscordConfig struct {
	WebhookURL string `toml:"webhook_url"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding like "500ms" or "5s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration the TOML file is merged onto.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			BaseDecimals:  18,
			QuoteDecimals: 6,
		},
		Hyperswap: HyperswapConfig{
			Interval: duration{time.Second},
			Notional: 1.0,
			FeeTier:  3000,
			FeeBps:   30,
		},
		Bybit: VenueConfig{
			Enabled:    true,
			WSEndpoint: "wss://stream.bybit.com/v5/public/spot",
			FeeBps:     10,
		},
		Gateio: VenueConfig{
			Enabled:    true,
			WSEndpoint: "wss://api.gateio.ws/ws/v4/",
			FeeBps:     20,
		},
		Arbitrage: ArbitrageConfig{
			GasUnits:      150000,
			SignalChannel: "arb.opportunities",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the Config for missing or invalid values and returns a
// combined error describing every problem found. A validation failure is
// fatal at startup; the process exits before any task starts.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	for name, addr := range map[string]string{
		"caller_address": c.Chain.CallerAddress,
		"quoter_address": c.Chain.QuoterAddress,
		"pool_address":   c.Chain.PoolAddress,
		"base_token":     c.Chain.BaseToken,
		"quote_token":    c.Chain.QuoteToken,
	} {
		if !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Sprintf("chain: %s %q is not a valid address", name, addr))
		}
	}
	if c.Chain.BaseDecimals <= 0 || c.Chain.QuoteDecimals <= 0 {
		errs = append(errs, "chain: token decimals must be positive")
	}

	if c.Hyperswap.Interval.Duration <= 0 {
		errs = append(errs, "hyperswap: interval must be positive")
	}
	if c.Hyperswap.Notional <= 0 {
		errs = append(errs, "hyperswap: notional must be positive")
	}
	if c.Hyperswap.FeeTier <= 0 {
		errs = append(errs, "hyperswap: fee_tier must be positive")
	}
	if c.Hyperswap.FeeBps < 0 {
		errs = append(errs, "hyperswap: fee_bps must not be negative")
	}

	if !c.Bybit.Enabled && !c.Gateio.Enabled {
		errs = append(errs, "at least one CEX venue must be enabled")
	}
	for name, v := range map[string]VenueConfig{"bybit": c.Bybit, "gateio": c.Gateio} {
		if !v.Enabled {
			continue
		}
		if v.WSEndpoint == "" {
			errs = append(errs, name+": ws_endpoint must not be empty")
		}
		if v.Ticker == "" {
			errs = append(errs, name+": ticker must not be empty")
		}
		if v.FeeBps < 0 {
			errs = append(errs, name+": fee_bps must not be negative")
		}
	}

	if c.Arbitrage.GasUnits == 0 {
		errs = append(errs, "arbitrage: gas_units must be positive")
	}
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Arbitrage.SignalChannel == "" {
			errs = append(errs, "arbitrage: signal_channel must not be empty when redis is enabled")
		}
	}
	if (c.Notify.Telegram.BotToken == "") != (c.Notify.Telegram.ChatID == "") {
		errs = append(errs, "notify: telegram bot_token and chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", domain.ErrConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}

// Address parses a validated hex address field.
func Address(s string) common.Address {
	return common.HexToAddress(s)
}
