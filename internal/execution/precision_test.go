package execution

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTickStep(t *testing.T) {
	tests := []struct {
		price float64
		step  int64
	}{
		{0.50, 200},  // gcd(50,10000)=50
		{0.55, 2000}, // gcd(55,10000)=5
		{0.25, 400},  // gcd(25,10000)=25
		{0.33, 10000},
		{0.10, 1000},
		{0.99, 10000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.step, TickStep(tt.price), "price %.2f", tt.price)
	}
}

func TestBuyShares_MeetsTargetCost(t *testing.T) {
	// price 0.55 steps in 0.2 shares; 2.0 shares cost 1.10 < 1.15, so the
	// next aligned size up is 2.2.
	shares := BuyShares(1.15, 0.55)
	assert.InDelta(t, 2.2, shares, 1e-9)
	assert.GreaterOrEqual(t, shares*0.55, 1.15)
}

func TestBuyShares_MinimumOrderCost(t *testing.T) {
	// Target below the exchange minimum rounds up to a cost >= 1.01.
	shares := BuyShares(0.50, 0.50)
	assert.InDelta(t, 2.02, shares, 1e-9)
	assert.GreaterOrEqual(t, shares*0.50, 1.01)
}

func TestSellShares(t *testing.T) {
	// Rounds down to the largest aligned size within the held balance.
	assert.InDelta(t, 2.5, SellShares(2.5, 0.50), 1e-9)
	assert.InDelta(t, 2.4, SellShares(2.45, 0.55), 1e-9)

	// Rounded-down value below $1.00 with no viable minimum within the
	// balance falls back to the held amount at 1e-4 precision.
	assert.InDelta(t, 1.5, SellShares(1.5, 0.50), 1e-9)

	// Balance below one step falls back to the held amount.
	assert.InDelta(t, 0.15, SellShares(0.15, 0.55), 1e-9)
}

func TestComputedSizesAreTickAligned(t *testing.T) {
	prices := []float64{0.03, 0.10, 0.25, 0.33, 0.50, 0.55, 0.61, 0.75, 0.99}
	targets := []float64{1.01, 1.15, 1.30, 5.00, 25.0}

	for _, price := range prices {
		step := TickStep(price)
		for _, target := range targets {
			shares := BuyShares(target, price)
			units := int64(math.Round(shares * 10000))
			assert.Zero(t, units%step,
				"buy %.4f shares at %.2f not aligned to step %d", shares, price, step)
			assert.GreaterOrEqual(t, shares*price, math.Max(target, 1.01)-1e-9)

			sold := SellShares(shares, price)
			soldUnits := int64(math.Round(sold * 10000))
			assert.Zero(t, soldUnits%step,
				"sell %.4f shares at %.2f not aligned to step %d", sold, price, step)
			assert.LessOrEqual(t, sold, shares+1e-9)
		}
	}
}
