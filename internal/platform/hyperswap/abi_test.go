package hyperswap

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	lowToken  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	highToken = common.HexToAddress("0x9999999999999999999999999999999999999999")
)

func TestQuoteExactInputCalldata(t *testing.T) {
	calldata, err := QuoteExactInputCalldata(lowToken, highToken, big.NewInt(1e18), 3000)
	require.NoError(t, err)

	method := quoterABI.Methods["quoteExactInputSingle"]
	require.GreaterOrEqual(t, len(calldata), 4)
	assert.Equal(t, method.ID, calldata[:4])

	args, err := method.Inputs.Unpack(calldata[4:])
	require.NoError(t, err)
	require.Len(t, args, 1)
}

func TestSqrtPriceLimitSentinels(t *testing.T) {
	// tokenIn < tokenOut selects the lower-bound sentinel; otherwise the
	// upper bound. The exact values disable price-limit short-circuiting in
	// the quoter.
	lowWord := common.LeftPadBytes(sqrtPriceLimitLow.Bytes(), 32)
	highWord := common.LeftPadBytes(sqrtPriceLimitHigh.Bytes(), 32)

	cd, err := QuoteExactInputCalldata(lowToken, highToken, big.NewInt(1), 3000)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(cd, lowWord))
	assert.False(t, bytes.Contains(cd, highWord))

	cd, err = QuoteExactInputCalldata(highToken, lowToken, big.NewInt(1), 3000)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(cd, highWord))

	cd, err = QuoteExactOutputCalldata(highToken, lowToken, big.NewInt(1), 3000)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(cd, highWord))
}

func TestSentinelValues(t *testing.T) {
	assert.Equal(t, "4295128749", sqrtPriceLimitLow.String())
	assert.Equal(t, "1461446703485210103287273052203988822378723970341", sqrtPriceLimitHigh.String())
}

func TestDecodeQuoteReturns(t *testing.T) {
	// Only the first field of the 4-tuple response is consumed.
	outputs := quoterABI.Methods["quoteExactInputSingle"].Outputs
	ret, err := outputs.Pack(big.NewInt(123456), big.NewInt(79), uint32(2), big.NewInt(90000))
	require.NoError(t, err)

	amount, err := DecodeExactInputReturn(ret)
	require.NoError(t, err)
	assert.Equal(t, int64(123456), amount.Int64())

	outputs = quoterABI.Methods["quoteExactOutputSingle"].Outputs
	ret, err = outputs.Pack(big.NewInt(654321), big.NewInt(79), uint32(0), big.NewInt(90000))
	require.NoError(t, err)

	amount, err = DecodeExactOutputReturn(ret)
	require.NoError(t, err)
	assert.Equal(t, int64(654321), amount.Int64())
}

func TestDecodeQuoteGarbage(t *testing.T) {
	_, err := DecodeExactInputReturn([]byte{0x01, 0x02})
	assert.Error(t, err)
}
