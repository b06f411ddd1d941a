// Package notify fans trade lifecycle events out to in-process
// subscribers. Publishing is fire-and-forget: a slow or absent subscriber
// never blocks the ledger engine.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
	"go.uber.org/zap"
)

// EventKind labels a bus event.
type EventKind string

const (
	EventTradeOpen   EventKind = "trade_open"
	EventTradeClose  EventKind = "trade_close"
	EventStatsUpdate EventKind = "stats_update"
)

// Event is one bus message.
type Event struct {
	ID    string
	Kind  EventKind
	Trade *types.Trade // nil for stats updates
	At    time.Time
}

// Notifier is the surface the ledger engine publishes through.
type Notifier interface {
	PushTradeEvent(kind EventKind, trade *types.Trade)
	PushStatsUpdate()
}

// Bus is a non-blocking fan-out notifier.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan Event
	bufferSize  int
	logger      *zap.Logger
}

// NewBus creates a bus. Subscriber channels hold bufferSize events; a zero
// value defaults to 64.
func NewBus(bufferSize int, logger *zap.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Subscribe registers a new subscriber and returns its event channel.
func (b *Bus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// PushTradeEvent publishes a trade open/close event.
func (b *Bus) PushTradeEvent(kind EventKind, trade *types.Trade) {
	event := Event{
		ID:    uuid.NewString(),
		Kind:  kind,
		Trade: trade,
		At:    time.Now().UTC(),
	}

	b.logger.Info("trade-event",
		zap.String("event-id", event.ID),
		zap.String("kind", string(kind)),
		zap.String("trade-id", trade.ID),
		zap.String("agent-id", trade.AgentID),
		zap.String("asset", trade.Asset),
		zap.Float64("entry-price", trade.EntryPrice),
		zap.Float64("position-size", trade.PositionSize))

	b.publish(event)
}

// PushStatsUpdate signals that leaderboard stats changed.
func (b *Bus) PushStatsUpdate() {
	b.publish(Event{
		ID:   uuid.NewString(),
		Kind: EventStatsUpdate,
		At:   time.Now().UTC(),
	})
}

func (b *Bus) publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	EventsPublishedTotal.WithLabelValues(string(event.Kind)).Inc()

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			EventsDroppedTotal.Inc()
		}
	}
}
