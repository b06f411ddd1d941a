package onchain

import (
	"math/big"
	"testing"

	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	donorAddr    = "0xAbCd000000000000000000000000000000000001"
	strangerAddr = "0x9999000000000000000000000000000000000009"
	tokenID      = "123456789"
)

func isDonor(wallet string) bool {
	return wallet == "0xabcd000000000000000000000000000000000001"
}

func usdc(v float64) *big.Int {
	return big.NewInt(int64(v * 1e6))
}

func TestInferFill_DonorMakerBuy(t *testing.T) {
	// Donor is maker paying USDC (asset id 0) for conditional tokens.
	token, _ := new(big.Int).SetString(tokenID, 10)

	fill, ok := InferFill(donorAddr, strangerAddr,
		big.NewInt(0), token,
		usdc(1.10), usdc(2.0), // 1.10 USDC for 2.0 shares
		isDonor)
	require.True(t, ok)

	assert.Equal(t, types.OrderBuy, fill.Side)
	assert.Equal(t, tokenID, fill.TokenID)
	assert.InDelta(t, 0.55, fill.Price, 1e-9)
	assert.Equal(t, "0xabcd000000000000000000000000000000000001", fill.DonorWallet)
}

func TestInferFill_DonorMakerSell(t *testing.T) {
	// Donor is maker handing over conditional tokens for USDC.
	token, _ := new(big.Int).SetString(tokenID, 10)

	fill, ok := InferFill(donorAddr, strangerAddr,
		token, big.NewInt(0),
		usdc(2.0), usdc(1.20), // 2.0 shares for 1.20 USDC
		isDonor)
	require.True(t, ok)

	assert.Equal(t, types.OrderSell, fill.Side)
	assert.Equal(t, tokenID, fill.TokenID)
	assert.InDelta(t, 0.60, fill.Price, 1e-9)
}

func TestInferFill_DonorTaker(t *testing.T) {
	token, _ := new(big.Int).SetString(tokenID, 10)

	// Maker sells tokens; the donor taker pays USDC, so the donor buys.
	fill, ok := InferFill(strangerAddr, donorAddr,
		token, big.NewInt(0),
		usdc(2.0), usdc(0.90),
		isDonor)
	require.True(t, ok)
	assert.Equal(t, types.OrderBuy, fill.Side)
	assert.InDelta(t, 0.45, fill.Price, 1e-9)

	// Maker pays USDC; the donor taker hands over tokens, so the donor sells.
	fill, ok = InferFill(strangerAddr, donorAddr,
		big.NewInt(0), token,
		usdc(0.90), usdc(2.0),
		isDonor)
	require.True(t, ok)
	assert.Equal(t, types.OrderSell, fill.Side)
}

func TestInferFill_NoDonorInvolved(t *testing.T) {
	token, _ := new(big.Int).SetString(tokenID, 10)

	_, ok := InferFill(strangerAddr, strangerAddr,
		big.NewInt(0), token, usdc(1.0), usdc(2.0), isDonor)
	assert.False(t, ok)
}

func TestInferFill_DegenerateAmounts(t *testing.T) {
	token, _ := new(big.Int).SetString(tokenID, 10)

	// Zero share amount.
	_, ok := InferFill(donorAddr, strangerAddr,
		big.NewInt(0), token, usdc(1.0), big.NewInt(0), isDonor)
	assert.False(t, ok)

	// Price at or above 1 fails the sanity check.
	_, ok = InferFill(donorAddr, strangerAddr,
		big.NewInt(0), token, usdc(2.0), usdc(2.0), isDonor)
	assert.False(t, ok)
}
