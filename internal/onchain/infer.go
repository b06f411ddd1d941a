// Package onchain watches OrderFilled logs on the Polymarket exchange
// contracts and pre-executes real copy orders before the venue's own feeds
// index the trade.
package onchain

import (
	"math/big"
	"strings"

	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
)

// Fill is a donor trade inferred from one OrderFilled log.
type Fill struct {
	DonorWallet string // lowercase
	Side        types.OrderSide
	TokenID     string
	Price       float64
}

// InferFill derives the donor's side, the conditional token and the fill
// price from an OrderFilled event. Asset id 0 is USDC collateral, any other
// id is a conditional token; price = USDC amount / share amount (both in
// 1e6 units). Returns false when neither party is a tracked donor or the
// amounts are degenerate.
func InferFill(maker, taker string, makerAssetID, takerAssetID, makerAmount, takerAmount *big.Int, isDonor func(wallet string) bool) (Fill, bool) {
	makerL := strings.ToLower(maker)
	takerL := strings.ToLower(taker)

	donorIsMaker := isDonor(makerL)
	donorIsTaker := isDonor(takerL)
	if !donorIsMaker && !donorIsTaker {
		return Fill{}, false
	}

	makerIsUSDC := makerAssetID.Sign() == 0

	usdcAmount := makerAmount
	shareAmount := takerAmount
	tokenID := takerAssetID
	if !makerIsUSDC {
		usdcAmount = takerAmount
		shareAmount = makerAmount
		tokenID = makerAssetID
	}

	if shareAmount.Sign() == 0 {
		return Fill{}, false
	}

	usdcF, _ := new(big.Float).SetInt(usdcAmount).Float64()
	sharesF, _ := new(big.Float).SetInt(shareAmount).Float64()
	price := usdcF / sharesF
	if price <= 0 || price >= 1 {
		return Fill{}, false
	}

	fill := Fill{
		TokenID: tokenID.String(),
		Price:   price,
	}

	// Side from the donor's perspective: paying USDC means buying shares.
	if donorIsMaker {
		fill.DonorWallet = makerL
		if makerIsUSDC {
			fill.Side = types.OrderBuy
		} else {
			fill.Side = types.OrderSell
		}
	} else {
		fill.DonorWallet = takerL
		if takerAssetID.Sign() == 0 {
			fill.Side = types.OrderBuy
		} else {
			fill.Side = types.OrderSell
		}
	}

	return fill, true
}
