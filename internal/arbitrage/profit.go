// Package arbitrage evaluates directional profitability between a CEX order
// book and a DEX pool and reports opportunities. Reporting is observational
// only; nothing here places a trade.
package arbitrage

// Breakdown is the result of the profitability formula for one direction.
// All basis-point figures are relative to the buy price.
type Breakdown struct {
	GrossBps   float64
	GasCostBps float64
	NetBps     float64
	NetUSD     float64
	FeeCostUSD float64
}

// Profit applies the fee- and gas-aware profitability formula. It is a pure
// function of four scalars and therefore direction-agnostic: callers choose
// which venue supplies the buy and sell sides.
//
//	grossBps = (sell - buy) / buy * 10000
//	gasBps   = gasCostUSD / buy * 10000
//	netBps   = grossBps - totalFeeBps - gasBps
//	netUSD   = netBps / 10000 * buy
func Profit(buyPrice, sellPrice, totalFeeBps, gasCostUSD float64) Breakdown {
	grossBps := (sellPrice - buyPrice) / buyPrice * 10000
	gasBps := gasCostUSD / buyPrice * 10000
	netBps := grossBps - totalFeeBps - gasBps
	return Breakdown{
		GrossBps:   grossBps,
		GasCostBps: gasBps,
		NetBps:     netBps,
		NetUSD:     netBps / 10000 * buyPrice,
		FeeCostUSD: totalFeeBps / 10000 * buyPrice,
	}
}

// Profitable reports whether the direction clears both gates: the spread must
// be positive before costs and still positive after fees and gas.
func (b Breakdown) Profitable() bool {
	return b.GrossBps > 0 && b.NetBps > 0
}
