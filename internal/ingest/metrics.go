package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollCyclesTotal counts completed poll cycles.
	PollCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyfive_ingest_poll_cycles_total",
		Help: "Total activity poll cycles",
	})

	// PollErrorsTotal counts failed per-wallet polls.
	PollErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyfive_ingest_poll_errors_total",
		Help: "Total failed wallet activity polls",
	})

	// EventsIngestedTotal counts intents emitted by source.
	EventsIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyfive_ingest_events_total",
		Help: "Total trade intents emitted into the engine",
	}, []string{"source"})
)
