package domain

import "time"

// ArbDirection tells which venue the base asset is bought on.
type ArbDirection string

const (
	// BuyCEX buys at the CEX ask and sells at the DEX bid.
	BuyCEX ArbDirection = "buy_cex"
	// BuyDEX buys at the DEX ask and sells at the CEX bid.
	BuyDEX ArbDirection = "buy_dex"
)

// ArbOpportunity is one profitable evaluation of a trade direction. It is
// observational only: nothing in the system places or simulates the trade.
// Opportunities are created per evaluation and never persisted.
type ArbOpportunity struct {
	ID           string       `json:"id"`
	Pair         string       `json:"pair"`
	Direction    ArbDirection `json:"direction"`
	BuyPrice     float64      `json:"buy_price"`
	SellPrice    float64      `json:"sell_price"`
	FeeCostUSD   float64      `json:"fee_cost_usd"`
	GasCostUSD   float64      `json:"gas_cost_usd"`
	NetProfitBps float64      `json:"net_profit_bps"`
	NetProfitUSD float64      `json:"net_profit_usd"`
	DetectedAt   time.Time    `json:"detected_at"`
}
