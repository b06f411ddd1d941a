package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/pechasssmaxx/polyfive-arena/internal/normalize"
	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
	"go.uber.org/zap"
)

// trackedRoster answers whether a wallet belongs to a donor or an agent.
type trackedRoster interface {
	IsTracked(wallet string) bool
}

// StreamListener converts real-time stream messages into trade intents.
// The stream pre-empts the poll cursor: each delivered event advances the
// wallet's cursor so the next poll cycle does not re-fetch it. An event
// the engine never accepted leaves the cursor behind it, keeping the
// event visible to the poller.
type StreamListener struct {
	messages <-chan *types.StreamMessage
	roster   trackedRoster
	cursors  cursorStore
	intents  chan<- types.TradeIntent
	stall    time.Duration
	logger   *zap.Logger
}

// StreamConfig holds stream listener settings.
type StreamConfig struct {
	Messages <-chan *types.StreamMessage
	Roster   trackedRoster
	Cursors  cursorStore
	Intents  chan<- types.TradeIntent
	// StallTimeout bounds how long one event may wait for the engine.
	StallTimeout time.Duration
	Logger       *zap.Logger
}

// NewStreamListener creates a listener over an established stream.
func NewStreamListener(cfg StreamConfig) *StreamListener {
	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &StreamListener{
		messages: cfg.Messages,
		roster:   cfg.Roster,
		cursors:  cfg.Cursors,
		intents:  cfg.Intents,
		stall:    cfg.StallTimeout,
		logger:   cfg.Logger,
	}
}

// Run consumes stream messages until the context is cancelled or the
// message channel closes.
func (l *StreamListener) Run(ctx context.Context) {
	l.logger.Info("stream-listener-starting")

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("stream-listener-stopping")
			return
		case msg, ok := <-l.messages:
			if !ok {
				l.logger.Info("stream-channel-closed")
				return
			}
			l.handle(ctx, msg)
		}
	}
}

func (l *StreamListener) handle(ctx context.Context, msg *types.StreamMessage) {
	if msg.Topic != "activity" {
		return
	}

	var record types.ActivityRecord
	if err := json.Unmarshal(msg.Payload, &record); err != nil {
		l.logger.Warn("stream-payload-malformed", zap.Error(err))
		return
	}

	wallet := strings.ToLower(record.ProxyWallet)
	if wallet == "" || !l.roster.IsTracked(wallet) {
		return
	}

	l.logger.Debug("stream-event",
		zap.String("wallet", wallet),
		zap.String("side", record.Side),
		zap.Int64("timestamp", record.Timestamp))

	intent := normalize.Intent(&record, types.SourceStream)

	select {
	case <-ctx.Done():
	case l.intents <- intent:
		EventsIngestedTotal.WithLabelValues(string(types.SourceStream)).Inc()
		// Only a delivered event moves the cursor; a dropped one must
		// stay fetchable by the poller.
		if record.Timestamp > 0 && record.Timestamp > l.cursors.Cursor(wallet) {
			l.cursors.AdvanceCursor(wallet, record.Timestamp)
		}
	case <-time.After(l.stall):
		l.logger.Warn("intent-channel-stalled", zap.String("wallet", wallet))
	}
}
