// Package domain defines the shared types that flow between the venue
// adapters, the quote engine, and the arbitrage engine.
package domain

// PriceSample is a single top-of-book observation from one venue. Values are
// quoted in the quote asset per one unit of the base asset. A well-formed
// sample satisfies ask >= bid >= 0, but upstream feeds can and do violate
// this; consumers must guard rather than assume. Samples are immutable once
// published.
type PriceSample struct {
	Bid float64
	Ask float64
}

// Valid reports whether the sample is usable for profitability math. It does
// not enforce ask >= bid: a crossed book is strange but still evaluable.
func (p PriceSample) Valid() bool {
	return p.Bid > 0 && p.Ask > 0
}
