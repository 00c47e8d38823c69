package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies HYPERARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known HYPERARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject endpoints and secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Chain.RPCURL, "HYPERARB_RPC_URL")
	setStr(&cfg.Chain.CallerAddress, "HYPERARB_CALLER_ADDRESS")
	setStr(&cfg.Chain.QuoterAddress, "HYPERARB_QUOTER_ADDRESS")
	setStr(&cfg.Chain.PoolAddress, "HYPERARB_POOL_ADDRESS")
	setStr(&cfg.Chain.BaseToken, "HYPERARB_BASE_TOKEN")
	setStr(&cfg.Chain.QuoteToken, "HYPERARB_QUOTE_TOKEN")
	setInt(&cfg.Chain.BaseDecimals, "HYPERARB_BASE_DECIMALS")
	setInt(&cfg.Chain.QuoteDecimals, "HYPERARB_QUOTE_DECIMALS")

	setDuration(&cfg.Hyperswap.Interval, "HYPERARB_QUOTE_INTERVAL")
	setFloat64(&cfg.Hyperswap.Notional, "HYPERARB_NOTIONAL")
	setInt64(&cfg.Hyperswap.FeeTier, "HYPERARB_FEE_TIER")
	setFloat64(&cfg.Hyperswap.FeeBps, "HYPERARB_DEX_FEE_BPS")
	setStr(&cfg.Hyperswap.ERC20BytecodePath, "HYPERARB_ERC20_BYTECODE_PATH")

	setBool(&cfg.Bybit.Enabled, "HYPERARB_BYBIT_ENABLED")
	setStr(&cfg.Bybit.WSEndpoint, "HYPERARB_BYBIT_WS_ENDPOINT")
	setStr(&cfg.Bybit.Ticker, "HYPERARB_BYBIT_TICKER")
	setFloat64(&cfg.Bybit.FeeBps, "HYPERARB_BYBIT_FEE_BPS")

	setBool(&cfg.Gateio.Enabled, "HYPERARB_GATEIO_ENABLED")
	setStr(&cfg.Gateio.WSEndpoint, "HYPERARB_GATEIO_WS_ENDPOINT")
	setStr(&cfg.Gateio.Ticker, "HYPERARB_GATEIO_TICKER")
	setFloat64(&cfg.Gateio.FeeBps, "HYPERARB_GATEIO_FEE_BPS")

	setUint64(&cfg.Arbitrage.GasUnits, "HYPERARB_GAS_UNITS")
	setStr(&cfg.Arbitrage.SignalChannel, "HYPERARB_SIGNAL_CHANNEL")

	setBool(&cfg.Redis.Enabled, "HYPERARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "HYPERARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "HYPERARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "HYPERARB_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "HYPERARB_REDIS_TLS_ENABLED")

	setStringSlice(&cfg.Notify.Events, "HYPERARB_NOTIFY_EVENTS")
	setStr(&cfg.Notify.Telegram.BotToken, "HYPERARB_TELEGRAM_BOT_TOKEN")
	setStr(&cfg.Notify.Telegram.ChatID, "HYPERARB_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.Discord.WebhookURL, "HYPERARB_DISCORD_WEBHOOK_URL")

	setStr(&cfg.LogLevel, "HYPERARB_LOG_LEVEL")
	setStr(&cfg.LogFile, "HYPERARB_LOG_FILE")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
