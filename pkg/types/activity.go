package types

import (
	"strconv"
	"time"
)

// ActivityRecord is a single entry from the Polymarket Data API activity
// feed (`GET /activity?user=...`). The same shape is delivered by the
// real-time stream under the "activity" topic.
type ActivityRecord struct {
	ProxyWallet     string  `json:"proxyWallet"`
	Type            string  `json:"type"` // "TRADE"
	Side            string  `json:"side"` // "BUY" or "SELL"
	Price           float64 `json:"price"`
	Size            float64 `json:"size"`
	Timestamp       int64   `json:"timestamp"` // seconds
	ConditionID     string  `json:"conditionId"`
	OutcomeIndex    int     `json:"outcomeIndex"`
	Outcome         string  `json:"outcome"`
	Asset           string  `json:"asset"` // ERC1155 token id, when present
	TransactionHash string  `json:"transactionHash"`
	Title           string  `json:"title"`
	Slug            string  `json:"slug"`
	EventSlug       string  `json:"eventSlug"`
	Icon            string  `json:"icon"`
	Image           string  `json:"image"`
}

// TxRef returns the transaction reference used for trade identity,
// falling back to conditionId+timestamp when the venue omits the hash.
func (a *ActivityRecord) TxRef() string {
	if a.TransactionHash != "" {
		return a.TransactionHash
	}
	return a.ConditionID + "_" + strconv.FormatInt(a.Timestamp, 10)
}

// IntentSource identifies which ingestion channel produced an intent.
type IntentSource string

const (
	SourcePoll   IntentSource = "poll"
	SourceStream IntentSource = "stream"
	SourceChain  IntentSource = "chain"
)

// TradeIntent is the canonical, source-independent form of an observed
// donor (or self) trade, produced by the normalizer and consumed by the
// copy engine.
type TradeIntent struct {
	Wallet       string
	Source       IntentSource
	Side         string // "BUY" or "SELL"
	Outcome      string // "YES" or "NO"
	Direction    string // "UP" or "DOWN"
	Asset        string
	AssetLogo    string
	Price        float64
	ConditionID  string
	OutcomeIndex int
	TokenID      string
	TxRef        string
	Title        string
	MarketURL    string
	ObservedAt   time.Time
	MarketEndAt  time.Time
}
