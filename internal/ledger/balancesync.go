package ledger

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// balanceFetcher reads real on-exchange collateral balances per agent.
type balanceFetcher interface {
	CollateralBalances(ctx context.Context) map[string]float64
}

// balanceRecorder persists a balance snapshot.
type balanceRecorder interface {
	RecordEquity(ctx context.Context, agentID string, balance float64, ts time.Time) error
}

// BalanceSyncer re-reads real collateral balances shortly after an order
// settles. Each Schedule call arms a short and a long timer; scheduling
// again resets both, so bursts of fills collapse into two reads.
type BalanceSyncer struct {
	fetcher  balanceFetcher
	recorder balanceRecorder
	delays   []time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	ctx    context.Context
	timers []*time.Timer
}

// NewBalanceSyncer creates a syncer. A nil fetcher disables syncing;
// non-positive delays fall back to 4s and 15s.
func NewBalanceSyncer(fetcher balanceFetcher, recorder balanceRecorder, fast, settle time.Duration, logger *zap.Logger) *BalanceSyncer {
	if fast <= 0 {
		fast = 4 * time.Second
	}
	if settle <= 0 {
		settle = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BalanceSyncer{
		fetcher:  fetcher,
		recorder: recorder,
		delays:   []time.Duration{fast, settle},
		logger:   logger,
		now:      time.Now,
		ctx:      context.Background(),
	}
}

// Start binds the syncer to a lifecycle context and cancels pending
// timers on shutdown.
func (s *BalanceSyncer) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.stopTimersLocked()
		s.mu.Unlock()
	}()
}

// Schedule arms the sync timers, replacing any already pending.
func (s *BalanceSyncer) Schedule() {
	if s.fetcher == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}

	s.stopTimersLocked()
	for _, d := range s.delays {
		s.timers = append(s.timers, time.AfterFunc(d, s.syncOnce))
	}
}

func (s *BalanceSyncer) stopTimersLocked() {
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = s.timers[:0]
}

func (s *BalanceSyncer) syncOnce() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	balances := s.fetcher.CollateralBalances(ctx)
	ts := s.now()
	for agentID, balance := range balances {
		if balance <= 0 {
			continue
		}
		if err := s.recorder.RecordEquity(ctx, agentID, balance, ts); err != nil {
			s.logger.Warn("balance-sync-record-failed",
				zap.String("agent-id", agentID), zap.Error(err))
			continue
		}
		BalanceSyncsTotal.Inc()
		s.logger.Debug("real-balance-synced",
			zap.String("agent-id", agentID),
			zap.Float64("balance", balance))
	}
}
