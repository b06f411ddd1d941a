package ingest

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pechasssmaxx/polyfive-arena/internal/normalize"
	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// activitySource is the fetch surface the poller needs.
type activitySource interface {
	Recent(ctx context.Context, wallet string) ([]*types.ActivityRecord, error)
}

// walletRoster yields the wallets to poll each cycle.
type walletRoster interface {
	AllWallets() []string
}

// cursorStore tracks the last-processed activity timestamp per wallet.
type cursorStore interface {
	Cursor(wallet string) int64
	AdvanceCursor(wallet string, ts int64)
}

// Poller polls wallet activity on a fixed interval and emits normalized
// intents oldest-first. A wallet's cursor advances only after every event
// up to the newest processed timestamp has been emitted, so a restart
// mid-batch re-delivers rather than skips (dedup absorbs the replay).
type Poller struct {
	client   activitySource
	roster   walletRoster
	cursors  cursorStore
	intents  chan<- types.TradeIntent
	interval time.Duration
	lookback time.Duration
	limiter  *rate.Limiter
	logger   *zap.Logger
	now      func() time.Time
}

// PollerConfig holds poller settings.
type PollerConfig struct {
	Client   activitySource
	Roster   walletRoster
	Cursors  cursorStore
	Intents  chan<- types.TradeIntent
	Interval time.Duration
	Lookback time.Duration
	// RateLimit caps activity requests per second across all wallets.
	RateLimit float64
	Logger    *zap.Logger
}

// NewPoller creates an activity poller.
func NewPoller(cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Poller{
		client:   cfg.Client,
		roster:   cfg.Roster,
		cursors:  cfg.Cursors,
		intents:  cfg.Intents,
		interval: cfg.Interval,
		lookback: cfg.Lookback,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// Run polls until the context is cancelled. The first cycle runs
// immediately.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("activity-poller-starting",
		zap.Duration("interval", p.interval),
		zap.Duration("lookback", p.lookback))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.pollAll(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("activity-poller-stopping")
			return
		case <-ticker.C:
			p.pollAll(ctx)
		}
	}
}

func (p *Poller) pollAll(ctx context.Context) {
	PollCyclesTotal.Inc()

	for _, wallet := range p.roster.AllWallets() {
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}
		if err := p.pollWallet(ctx, wallet); err != nil {
			PollErrorsTotal.Inc()
			p.logger.Warn("wallet-poll-failed",
				zap.String("wallet", wallet),
				zap.Error(err))
		}
	}
}

// pollWallet fetches one wallet's page, emits events newer than the cursor
// oldest-first, then advances the cursor to the newest emitted timestamp.
func (p *Poller) pollWallet(ctx context.Context, wallet string) error {
	since := p.cursors.Cursor(wallet)
	if since == 0 {
		since = p.now().Add(-p.lookback).Unix()
	}

	records, err := p.client.Recent(ctx, wallet)
	if err != nil {
		return err
	}

	fresh := records[:0]
	for _, r := range records {
		if r.Timestamp > since {
			fresh = append(fresh, r)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	sort.Slice(fresh, func(i, j int) bool {
		return fresh[i].Timestamp < fresh[j].Timestamp
	})

	p.logger.Debug("wallet-activity",
		zap.String("wallet", wallet),
		zap.Int("events", len(fresh)))

	maxTs := since
	for _, r := range fresh {
		intent := normalize.Intent(r, types.SourcePoll)
		if intent.Wallet == "" {
			intent.Wallet = strings.ToLower(wallet)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case p.intents <- intent:
			EventsIngestedTotal.WithLabelValues(string(types.SourcePoll)).Inc()
		}
		if r.Timestamp > maxTs {
			maxTs = r.Timestamp
		}
	}

	p.cursors.AdvanceCursor(wallet, maxTs)
	return nil
}
