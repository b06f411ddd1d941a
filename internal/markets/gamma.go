package markets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
	"go.uber.org/zap"
)

// Client fetches market metadata from the Polymarket Gamma API.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	lookupTimeout time.Duration
	logger        *zap.Logger
}

// Config holds Gamma client settings.
type Config struct {
	BaseURL string
	// Timeout bounds resolution queries (condition id lookups).
	Timeout time.Duration
	// LookupTimeout bounds reverse token lookups, which sit on the hot
	// path of on-chain ingestion and need a tighter bound.
	LookupTimeout time.Duration
	Logger        *zap.Logger
}

// NewClient creates a Gamma API client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 6 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		lookupTimeout: cfg.LookupTimeout,
		logger:        cfg.Logger,
	}
}

// MarketByCondition fetches the market row for one condition id.
func (c *Client) MarketByCondition(ctx context.Context, conditionID string) (*types.GammaMarket, error) {
	markets, err := c.MarketsByConditions(ctx, []string{conditionID})
	if err != nil {
		return nil, err
	}
	m, ok := markets[conditionID]
	if !ok {
		return nil, fmt.Errorf("market %s: not found", conditionID)
	}
	return m, nil
}

// MarketsByConditions fetches market rows for a batch of condition ids in
// one request, keyed by condition id. Conditions the API does not know are
// simply absent from the result.
func (c *Client) MarketsByConditions(ctx context.Context, conditionIDs []string) (map[string]*types.GammaMarket, error) {
	if len(conditionIDs) == 0 {
		return map[string]*types.GammaMarket{}, nil
	}

	q := url.Values{}
	for _, id := range conditionIDs {
		q.Add("condition_ids", id)
	}

	rows, err := c.fetchMarkets(ctx, q)
	if err != nil {
		return nil, err
	}

	markets := make(map[string]*types.GammaMarket, len(rows))
	for _, m := range rows {
		markets[m.ConditionID] = m
	}
	return markets, nil
}

// RefByToken resolves a conditional token id back to its market and outcome
// index via the Gamma clob_token_ids filter.
func (c *Client) RefByToken(ctx context.Context, tokenID string) (*types.MarketRef, *types.GammaMarket, error) {
	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("clob_token_ids", tokenID)

	rows, err := c.fetchMarkets(ctx, q)
	if err != nil {
		return nil, nil, err
	}

	for _, m := range rows {
		for i, id := range m.TokenIDs() {
			if id == tokenID {
				return &types.MarketRef{ConditionID: m.ConditionID, OutcomeIndex: i}, m, nil
			}
		}
	}
	return nil, nil, fmt.Errorf("token %s: no market found", tokenID)
}

func (c *Client) fetchMarkets(ctx context.Context, q url.Values) ([]*types.GammaMarket, error) {
	reqURL := fmt.Sprintf("%s/markets?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		FetchErrorsTotal.Inc()
		return nil, fmt.Errorf("gamma request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		FetchErrorsTotal.Inc()
		return nil, fmt.Errorf("gamma request: status %d", resp.StatusCode)
	}

	var rows []*types.GammaMarket
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		FetchErrorsTotal.Inc()
		return nil, fmt.Errorf("gamma decode: %w", err)
	}
	return rows, nil
}
