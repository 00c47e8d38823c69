// Package hyperswap produces DEX price samples for one pool by simulating
// QuoterV2 calls against the overlay state cache.
package hyperswap

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// quoterABIJSON covers the two single-hop QuoterV2 entry points. Responses
// are 4-tuples of which only the first field (the quoted amount) is consumed.
const quoterABIJSON = `[
  {
    "name": "quoteExactInputSingle",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "params", "type": "tuple", "components": [
        {"name": "tokenIn", "type": "address"},
        {"name": "tokenOut", "type": "address"},
        {"name": "amountIn", "type": "uint256"},
        {"name": "fee", "type": "uint24"},
        {"name": "sqrtPriceLimitX96", "type": "uint160"}
      ]}
    ],
    "outputs": [
      {"name": "amountOut", "type": "uint256"},
      {"name": "sqrtPriceX96After", "type": "uint160"},
      {"name": "initializedTicksCrossed", "type": "uint32"},
      {"name": "gasEstimate", "type": "uint256"}
    ]
  },
  {
    "name": "quoteExactOutputSingle",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "params", "type": "tuple", "components": [
        {"name": "tokenIn", "type": "address"},
        {"name": "tokenOut", "type": "address"},
        {"name": "amountOut", "type": "uint256"},
        {"name": "fee", "type": "uint24"},
        {"name": "sqrtPriceLimitX96", "type": "uint160"}
      ]}
    ],
    "outputs": [
      {"name": "amountIn", "type": "uint256"},
      {"name": "sqrtPriceX96After", "type": "uint160"},
      {"name": "initializedTicksCrossed", "type": "uint32"},
      {"name": "gasEstimate", "type": "uint256"}
    ]
  }
]`

var quoterABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(quoterABIJSON))
	if err != nil {
		panic(fmt.Sprintf("hyperswap: parse quoter abi: %v", err))
	}
	return parsed
}()

// Price-limit sentinels. These sit just inside the pool's valid sqrt-price
// range and disable price-limit short-circuiting in the quoter; the quoter
// rejects anything outside the range, so the values must match exactly.
var (
	sqrtPriceLimitLow  = mustBig("4295128749")
	sqrtPriceLimitHigh = mustBig("1461446703485210103287273052203988822378723970341")
)

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("hyperswap: bad big integer literal " + s)
	}
	return v
}

// sqrtPriceLimit picks the sentinel for the swap direction: the lower bound
// when tokenIn sorts before tokenOut (a zero-for-one swap pushes the price
// down), the upper bound otherwise.
func sqrtPriceLimit(tokenIn, tokenOut common.Address) *big.Int {
	if bytes.Compare(tokenIn.Bytes(), tokenOut.Bytes()) < 0 {
		return sqrtPriceLimitLow
	}
	return sqrtPriceLimitHigh
}

type exactInputParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

type exactOutputParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountOut         *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

// QuoteExactInputCalldata builds calldata asking how much tokenOut a fixed
// amountIn of tokenIn buys.
func QuoteExactInputCalldata(tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier int64) ([]byte, error) {
	data, err := quoterABI.Pack("quoteExactInputSingle", exactInputParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               big.NewInt(feeTier),
		SqrtPriceLimitX96: sqrtPriceLimit(tokenIn, tokenOut),
	})
	if err != nil {
		return nil, fmt.Errorf("hyperswap: pack exact input: %w", err)
	}
	return data, nil
}

// QuoteExactOutputCalldata builds calldata asking how much tokenIn a fixed
// amountOut of tokenOut costs.
func QuoteExactOutputCalldata(tokenIn, tokenOut common.Address, amountOut *big.Int, feeTier int64) ([]byte, error) {
	data, err := quoterABI.Pack("quoteExactOutputSingle", exactOutputParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountOut:         amountOut,
		Fee:               big.NewInt(feeTier),
		SqrtPriceLimitX96: sqrtPriceLimit(tokenIn, tokenOut),
	})
	if err != nil {
		return nil, fmt.Errorf("hyperswap: pack exact output: %w", err)
	}
	return data, nil
}

// DecodeExactInputReturn extracts the quoted output amount from a
// quoteExactInputSingle response.
func DecodeExactInputReturn(ret []byte) (*big.Int, error) {
	return decodeQuoteAmount("quoteExactInputSingle", ret)
}

// DecodeExactOutputReturn extracts the quoted input amount from a
// quoteExactOutputSingle response.
func DecodeExactOutputReturn(ret []byte) (*big.Int, error) {
	return decodeQuoteAmount("quoteExactOutputSingle", ret)
}

func decodeQuoteAmount(method string, ret []byte) (*big.Int, error) {
	vals, err := quoterABI.Unpack(method, ret)
	if err != nil {
		return nil, fmt.Errorf("hyperswap: unpack %s: %w", method, err)
	}
	amount, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("hyperswap: unpack %s: unexpected amount type %T", method, vals[0])
	}
	return amount, nil
}
