// Package ingest turns the venue's three event sources (REST polling, the
// real-time stream and the on-chain log feed) into normalized trade
// intents on a single channel.
package ingest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
	"go.uber.org/zap"
)

// ActivityClient fetches recent wallet activity from the Polymarket Data
// API.
type ActivityClient struct {
	baseURL    string
	pageLimit  int
	httpClient *http.Client
	logger     *zap.Logger
}

// ActivityConfig holds Data API client settings.
type ActivityConfig struct {
	BaseURL   string
	Timeout   time.Duration
	PageLimit int
	Logger    *zap.Logger
}

// NewActivityClient creates a Data API activity client.
func NewActivityClient(cfg ActivityConfig) *ActivityClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 12 * time.Second
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &ActivityClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		pageLimit:  cfg.PageLimit,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     cfg.Logger,
	}
}

// Recent fetches the wallet's most recent activity page, newest first as
// delivered by the API.
func (c *ActivityClient) Recent(ctx context.Context, wallet string) ([]*types.ActivityRecord, error) {
	url := fmt.Sprintf("%s/activity?user=%s&limit=%d", c.baseURL, wallet, c.pageLimit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("activity request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("activity request: status %d", resp.StatusCode)
	}

	var records []*types.ActivityRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("activity decode: %w", err)
	}
	return records, nil
}
