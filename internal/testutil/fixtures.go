// Package testutil holds mock venue servers and fixtures shared by
// integration-style tests.
package testutil

import (
	"time"

	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
)

// CreateTestActivity creates a donor activity record.
func CreateTestActivity(wallet, side, conditionID string, outcomeIndex int, price float64, ts int64) *types.ActivityRecord {
	return &types.ActivityRecord{
		ProxyWallet:     wallet,
		Type:            "TRADE",
		Side:            side,
		Price:           price,
		Size:            2.0,
		Timestamp:       ts,
		ConditionID:     conditionID,
		OutcomeIndex:    outcomeIndex,
		Outcome:         "Yes",
		TransactionHash: "0xtx" + conditionID[2:6] + side,
		Title:           "Bitcoin Up or Down - Test",
		Slug:            "bitcoin-up-or-down-test",
		EventSlug:       "bitcoin-up-or-down",
	}
}

// CreateTestGammaMarket creates a gamma market row with YES/NO outcomes.
func CreateTestGammaMarket(conditionID string, closed bool, yesPrice, noPrice string) *types.GammaMarket {
	return &types.GammaMarket{
		ID:            "m-" + conditionID[2:6],
		ConditionID:   conditionID,
		Question:      "Bitcoin Up or Down - Test",
		Slug:          "bitcoin-up-or-down-test",
		Closed:        closed,
		Active:        !closed,
		Outcomes:      `["Yes", "No"]`,
		OutcomePrices: `["` + yesPrice + `", "` + noPrice + `"]`,
		ClobTokenIDs:  `["` + conditionID + `-yes", "` + conditionID + `-no"]`,
	}
}

// CreateTestTrade creates an open ledger trade.
func CreateTestTrade(id, agentID, conditionID string, outcomeIndex int) *types.Trade {
	return &types.Trade{
		ID:           id,
		AgentID:      agentID,
		DonorWallet:  "0xabcd000000000000000000000000000000000001",
		Asset:        "BTC",
		Direction:    "UP",
		Side:         "YES",
		EntryPrice:   0.52,
		PositionSize: 1.20,
		Status:       types.StatusOpen,
		Question:     "Bitcoin Up or Down - Test",
		ConditionID:  conditionID,
		OutcomeIndex: outcomeIndex,
		OpenedAt:     time.Unix(1_700_000_000, 0),
	}
}
