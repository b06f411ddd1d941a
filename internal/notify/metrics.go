package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsPublishedTotal counts published bus events by kind.
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyfive_notify_events_published_total",
		Help: "Total events published on the notification bus",
	}, []string{"kind"})

	// EventsDroppedTotal counts events dropped at full subscriber buffers.
	EventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyfive_notify_events_dropped_total",
		Help: "Total events dropped because a subscriber buffer was full",
	})
)
