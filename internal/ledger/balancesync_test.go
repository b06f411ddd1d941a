package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFetcher struct {
	mu       sync.Mutex
	balances map[string]float64
	calls    int
}

func (f *fakeFetcher) CollateralBalances(ctx context.Context) map[string]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.balances
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRecorder struct {
	mu      sync.Mutex
	records map[string]float64
}

func (f *fakeRecorder) RecordEquity(ctx context.Context, agentID string, balance float64, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records == nil {
		f.records = make(map[string]float64)
	}
	f.records[agentID] = balance
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestBalanceSyncer_RecordsFetchedBalances(t *testing.T) {
	fetcher := &fakeFetcher{balances: map[string]float64{"claude": 12.34, "gemini": 0}}
	recorder := &fakeRecorder{}

	s := NewBalanceSyncer(fetcher, recorder, 5*time.Millisecond, time.Hour, zap.NewNop())

	s.Schedule()
	waitFor(t, func() bool { return fetcher.callCount() >= 1 })

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.InDelta(t, 12.34, recorder.records["claude"], 1e-9)
	_, recorded := recorder.records["gemini"]
	assert.False(t, recorded, "zero balances are not recorded")
}

func TestBalanceSyncer_RescheduleCollapsesBursts(t *testing.T) {
	fetcher := &fakeFetcher{balances: map[string]float64{"claude": 5}}
	s := NewBalanceSyncer(fetcher, &fakeRecorder{}, 30*time.Millisecond, time.Hour, zap.NewNop())

	for i := 0; i < 5; i++ {
		s.Schedule()
		time.Sleep(2 * time.Millisecond)
	}

	waitFor(t, func() bool { return fetcher.callCount() >= 1 })
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, fetcher.callCount(), "burst of schedules collapses into one read")
}

func TestBalanceSyncer_CancelledContextStopsTimers(t *testing.T) {
	fetcher := &fakeFetcher{balances: map[string]float64{"claude": 5}}
	s := NewBalanceSyncer(fetcher, &fakeRecorder{}, 10*time.Millisecond, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	s.Schedule()
	cancel()

	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, fetcher.callCount())
	s.Schedule() // after shutdown, scheduling is a no-op
	time.Sleep(25 * time.Millisecond)
	assert.Zero(t, fetcher.callCount())
}

func TestBalanceSyncer_NilFetcherIsNoop(t *testing.T) {
	s := NewBalanceSyncer(nil, &fakeRecorder{}, 0, 0, zap.NewNop())
	require.NotPanics(t, func() { s.Schedule() })
}

func TestBalanceSyncer_ZeroDelaysGetDefaults(t *testing.T) {
	s := NewBalanceSyncer(&fakeFetcher{}, &fakeRecorder{}, 0, 0, zap.NewNop())
	require.Len(t, s.delays, 2)
	assert.Equal(t, 4*time.Second, s.delays[0])
	assert.Equal(t, 15*time.Second, s.delays[1])
}
