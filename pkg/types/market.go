package types

import (
	"encoding/json"
	"strconv"
)

// GammaMarket is a market row from the Gamma API. Outcomes, outcomePrices
// and clobTokenIds arrive as JSON-encoded string arrays.
type GammaMarket struct {
	ID            string `json:"id"`
	ConditionID   string `json:"conditionId"`
	Question      string `json:"question"`
	Slug          string `json:"slug"`
	Closed        bool   `json:"closed"`
	Active        bool   `json:"active"`
	Outcomes      string `json:"outcomes"`      // e.g. "[\"Yes\", \"No\"]"
	OutcomePrices string `json:"outcomePrices"` // e.g. "[\"0.99\", \"0.01\"]"
	ClobTokenIDs  string `json:"clobTokenIds"`  // e.g. "[\"123...\", \"456...\"]"
}

// OutcomePriceList parses the outcomePrices field into floats.
// Unparseable entries come back as 0.
func (m *GammaMarket) OutcomePriceList() []float64 {
	var raw []string
	if err := json.Unmarshal([]byte(m.OutcomePrices), &raw); err != nil {
		return nil
	}
	prices := make([]float64, len(raw))
	for i, s := range raw {
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			continue
		}
		prices[i] = p
	}
	return prices
}

// OutcomeLabels parses the outcomes field.
func (m *GammaMarket) OutcomeLabels() []string {
	var labels []string
	if err := json.Unmarshal([]byte(m.Outcomes), &labels); err != nil {
		return nil
	}
	return labels
}

// TokenIDs parses the clobTokenIds field. The slice index is the outcome
// index, so a reverse token lookup is a linear scan.
func (m *GammaMarket) TokenIDs() []string {
	var ids []string
	if err := json.Unmarshal([]byte(m.ClobTokenIDs), &ids); err != nil {
		return nil
	}
	return ids
}

// WinnerIndex returns the index of the outcome whose settlement price is
// >= 0.99, or -1 when the market has not settled to a definitive winner.
func (m *GammaMarket) WinnerIndex() int {
	for i, p := range m.OutcomePriceList() {
		if p >= 0.99 {
			return i
		}
	}
	return -1
}

// ClobMarket is a market row from the CLOB API (`GET /markets/{conditionId}`),
// used to resolve outcome index -> token id.
type ClobMarket struct {
	ConditionID string      `json:"condition_id"`
	Tokens      []ClobToken `json:"tokens"`
}

// ClobToken is one outcome token of a CLOB market.
type ClobToken struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"`
}

// MarketRef points a conditional token back at its market.
type MarketRef struct {
	ConditionID  string
	OutcomeIndex int
}
