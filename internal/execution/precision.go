package execution

import "math"

// The exchange accepts sizes in 1e-4 share units, but only multiples of a
// price-dependent tick step fill cleanly: at price p the notional of one
// 1e-4 share is p/1e4 USDC, so the smallest size whose notional lands on a
// whole micro-cent is 10000/gcd(p*100, 10000) units.

const minOrderCost = 1.01

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b > 0 {
		a, b = b, a%b
	}
	return a
}

// TickStep returns the share-size step (in 1e-4 units) valid at the given
// price.
func TickStep(price float64) int64 {
	priceInt := int64(math.Round(price * 100))
	return int64(math.Round(10000 / float64(gcd(priceInt, 10000))))
}

// BuyShares returns the smallest tick-aligned share count whose cost at
// price meets both the target notional and the exchange's minimum order
// cost.
func BuyShares(targetUSDC, price float64) float64 {
	step := TickStep(price)
	minCost := math.Max(targetUSDC, minOrderCost)
	minN := int64(math.Ceil(minCost / price * 10000 / float64(step)))
	return float64(minN*step) / 10000
}

// SellShares returns the largest tick-aligned share count not exceeding the
// held balance. When that rounded-down amount is worth less than $1.00 it
// falls back to the minimum viable size if it still fits within the held
// balance, otherwise to the held balance rounded to 1e-4.
func SellShares(held, price float64) float64 {
	step := TickStep(price)
	maxN := int64(math.Floor(held * 10000 / float64(step)))
	if maxN <= 0 {
		return math.Round(held*10000) / 10000
	}

	shares := float64(maxN*step) / 10000
	if shares*price < 1.00 {
		minN := int64(math.Ceil(minOrderCost / price * 10000 / float64(step)))
		minShares := float64(minN*step) / 10000
		if minShares <= held {
			return minShares
		}
		return math.Round(held*10000) / 10000
	}
	return shares
}
