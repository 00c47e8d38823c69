package arbitrage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfitCrossedSpread(t *testing.T) {
	// CEX ask 100.00, DEX bid 100.50, 10 bps total fees, $0.05 gas.
	b := Profit(100.00, 100.50, 10, 0.05)

	assert.InDelta(t, 50.0, b.GrossBps, 1e-9)
	assert.InDelta(t, 5.0, b.GasCostBps, 1e-9)
	assert.InDelta(t, 35.0, b.NetBps, 1e-9)
	assert.InDelta(t, 0.35, b.NetUSD, 1e-9)
	assert.InDelta(t, 0.10, b.FeeCostUSD, 1e-9)
	assert.True(t, b.Profitable())
}

func TestProfitNoCrossing(t *testing.T) {
	// CEX bid 99.00, DEX ask 100.00: neither direction crosses.
	buyCEX := Profit(100.00, 99.50, 10, 0.05)
	assert.False(t, buyCEX.Profitable())

	buyDEX := Profit(100.00, 99.00, 10, 0.05)
	assert.False(t, buyDEX.Profitable())
}

func TestProfitBoundary(t *testing.T) {
	// sell <= buy never reports, regardless of fees and gas.
	for _, tc := range []struct {
		name      string
		buy, sell float64
	}{
		{"equal", 100, 100},
		{"inverted", 100, 99},
		{"slightly inverted", 100, 99.9999},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := Profit(tc.buy, tc.sell, 0, 0)
			assert.False(t, b.Profitable())
		})
	}
}

func TestProfitGrossGateHoldsEvenWithZeroCosts(t *testing.T) {
	// A negative spread cannot be rescued by negative-cost accounting
	// mistakes: gross must be positive on its own.
	b := Profit(100, 100, -50, 0)
	assert.False(t, b.Profitable(), "flat spread with negative fees must not report")
}

func TestProfitMonotonicInFees(t *testing.T) {
	prev := Profit(100, 101, 0, 0.05).NetBps
	for fee := 1.0; fee <= 50; fee++ {
		cur := Profit(100, 101, fee, 0.05).NetBps
		assert.Less(t, cur, prev)
		prev = cur
	}
}

func TestProfitMonotonicInGas(t *testing.T) {
	prev := Profit(100, 101, 10, 0).NetBps
	for gas := 0.01; gas <= 0.5; gas += 0.01 {
		cur := Profit(100, 101, 10, gas).NetBps
		assert.Less(t, cur, prev)
		prev = cur
	}
}

func TestProfitDirectionAgnostic(t *testing.T) {
	// The formula takes four scalars and does not know which venue supplied
	// which side: feeding direction A's and direction B's substitutions
	// through the same function yields identical structure.
	cexBid, cexAsk := 99.0, 100.0
	dexBid, dexAsk := 101.0, 102.0

	a := Profit(cexAsk, dexBid, 10, 0.05) // buy CEX, sell DEX
	b := Profit(dexAsk, cexBid, 10, 0.05) // buy DEX, sell CEX

	assert.InDelta(t, (dexBid-cexAsk)/cexAsk*10000, a.GrossBps, 1e-9)
	assert.InDelta(t, (cexBid-dexAsk)/dexAsk*10000, b.GrossBps, 1e-9)

	// Swapping the arguments of one direction reproduces the other exactly.
	assert.Equal(t, a, Profit(100.0, 101.0, 10, 0.05))
}
