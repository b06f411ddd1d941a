package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestReconnectManager_SucceedsAfterFailures(t *testing.T) {
	rm := NewReconnectManager(ReconnectConfig{
		InitialDelay:      time.Millisecond,
		MaxDelay:          10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterPercent:     0.2,
	}, zap.NewNop())

	attempts := 0
	connect := func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	}

	err := rm.Reconnect(context.Background(), connect)
	if err != nil {
		t.Fatalf("Reconnect() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestReconnectManager_ContextCancellation(t *testing.T) {
	rm := NewReconnectManager(ReconnectConfig{
		InitialDelay:      time.Hour, // never fires
		MaxDelay:          time.Hour,
		BackoffMultiplier: 2.0,
		JitterPercent:     0,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- rm.Reconnect(ctx, func(ctx context.Context) error {
			return errors.New("never reached")
		})
	}()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Reconnect() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Reconnect() did not return after cancellation")
	}
}

func TestReconnectManager_BackoffCapsAtMax(t *testing.T) {
	cfg := ReconnectConfig{
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          400 * time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterPercent:     0,
	}
	rm := NewReconnectManager(cfg, zap.NewNop())

	for i := 0; i < 10; i++ {
		rm.incrementBackoff()
	}

	got := rm.nextBackoff()
	if got > cfg.MaxDelay {
		t.Errorf("backoff after many failures = %v, want <= %v", got, cfg.MaxDelay)
	}
}

func TestReconnectManager_ResetRestoresInitialDelay(t *testing.T) {
	cfg := ReconnectConfig{
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2.0,
		JitterPercent:     0,
	}
	rm := NewReconnectManager(cfg, zap.NewNop())

	rm.incrementBackoff()
	rm.incrementBackoff()
	rm.Reset()

	got := rm.nextBackoff()
	if got != cfg.InitialDelay {
		t.Errorf("backoff after Reset() = %v, want %v", got, cfg.InitialDelay)
	}
}
