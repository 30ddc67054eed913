package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leasealert_events_enqueued_total",
		Help: "Total number of events placed on the processing queue.",
	})

	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leasealert_events_processed_total",
		Help: "Total number of events fully handled, labelled by final state.",
	}, []string{"state"})

	EventsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leasealert_events_rejected_total",
		Help: "Total number of events rejected due to a full queue.",
	})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leasealert_events_dropped_total",
		Help: "Total number of events dropped before processing, labelled by reason.",
	}, []string{"reason"})

	DuplicatesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leasealert_duplicates_skipped_total",
		Help: "Total number of events skipped by the idempotency gate.",
	})

	EnrichmentDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leasealert_enrichment_degraded_total",
		Help: "Total number of events notified with partial context.",
	})

	Sends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leasealert_sends_total",
		Help: "Total number of channel send attempts, labelled by channel and status.",
	}, []string{"channel", "status"})

	DeadLetters = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leasealert_dead_letters_total",
		Help: "Total number of events routed to the dead-letter queue.",
	})

	DigestRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leasealert_digest_runs_total",
		Help: "Total number of digest job executions.",
	})

	DigestEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leasealert_digest_entries_total",
		Help: "Total number of dead-letter entries summarized by the digest.",
	})

	EventProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "leasealert_event_processing_duration_ms",
		Help:    "End-to-end event processing latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leasealert_queue_utilization_ratio",
		Help: "Current event queue utilization (0–1).",
	})
)
