// Package dedup owns the in-memory coordination state that keeps the three
// redundant event sources from double-processing one donor fill: per-wallet
// poll cursors, entry/sell position locks, and the set of transaction
// references already executed from the on-chain fast path.
package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Coordinator holds cursor, lock and pre-execution state. Lock and
// pre-execution entries carry a deadline and are purged opportunistically
// on access plus by a periodic sweep; there are no per-entry timers.
type Coordinator struct {
	mu          sync.Mutex
	cursors     map[string]int64     // wallet -> last processed activity timestamp (seconds)
	locks       map[string]time.Time // position lock key -> expiry
	preExecuted map[string]time.Time // tx reference -> expiry

	preExecTTL time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// Config holds coordinator configuration.
type Config struct {
	PreExecutedTTL time.Duration
	Logger         *zap.Logger
}

// New creates a coordinator.
func New(cfg Config) *Coordinator {
	ttl := cfg.PreExecutedTTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coordinator{
		cursors:     make(map[string]int64),
		locks:       make(map[string]time.Time),
		preExecuted: make(map[string]time.Time),
		preExecTTL:  ttl,
		now:         time.Now,
		logger:      logger,
	}
}

// Cursor returns the wallet's poll cursor, or 0 when none has been
// recorded yet.
func (c *Coordinator) Cursor(wallet string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cursors[wallet]
}

// AdvanceCursor moves the wallet cursor forward. Backward moves are
// ignored so a late batch cannot re-widen the window.
func (c *Coordinator) AdvanceCursor(wallet string, ts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.cursors[wallet]; ok && cur >= ts {
		return
	}
	c.cursors[wallet] = ts
}

func entryKey(conditionID string, outcomeIndex int, agentID string) string {
	return fmt.Sprintf("%s_%d_%s", conditionID, outcomeIndex, agentID)
}

func sellKey(conditionID string, outcomeIndex int, agentID string) string {
	return entryKey(conditionID, outcomeIndex, agentID) + "_sell"
}

// TryLockEntry acquires the open-side lock for a position slot. It returns
// false while a prior holder's grace window is still running. The lock is
// never released explicitly; it self-expires after the grace window.
func (c *Coordinator) TryLockEntry(conditionID string, outcomeIndex int, agentID string, grace time.Duration) bool {
	return c.tryLock(entryKey(conditionID, outcomeIndex, agentID), grace)
}

// TryLockSell acquires the close-side lock for a position slot, independent
// of the entry lock so a close may proceed while an open lock lingers.
func (c *Coordinator) TryLockSell(conditionID string, outcomeIndex int, agentID string, grace time.Duration) bool {
	return c.tryLock(sellKey(conditionID, outcomeIndex, agentID), grace)
}

func (c *Coordinator) tryLock(key string, ttl time.Duration) bool {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if expiry, held := c.locks[key]; held && now.Before(expiry) {
		LockRejectionsTotal.Inc()
		return false
	}

	c.locks[key] = now.Add(ttl)
	LocksAcquiredTotal.Inc()
	return true
}

// MarkPreExecuted records that a transaction reference was already executed
// for real by the on-chain fast path.
func (c *Coordinator) MarkPreExecuted(txRef string) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.preExecuted[txRef] = now.Add(c.preExecTTL)
	PreExecutedMarksTotal.Inc()
}

// WasPreExecuted reports whether the transaction reference was executed by
// the on-chain fast path within the TTL window.
func (c *Coordinator) WasPreExecuted(txRef string) bool {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, ok := c.preExecuted[txRef]
	if !ok {
		return false
	}
	if now.After(expiry) {
		delete(c.preExecuted, txRef)
		return false
	}

	PreExecutedHitsTotal.Inc()
	return true
}

// Sweep removes expired lock and pre-execution entries.
func (c *Coordinator) Sweep() {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, expiry := range c.locks {
		if now.After(expiry) {
			delete(c.locks, key)
		}
	}
	for ref, expiry := range c.preExecuted {
		if now.After(expiry) {
			delete(c.preExecuted, ref)
		}
	}

	ActiveLocks.Set(float64(len(c.locks)))
	PreExecutedSetSize.Set(float64(len(c.preExecuted)))
}

// RunSweeper runs Sweep on the given interval until the context ends.
func (c *Coordinator) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
