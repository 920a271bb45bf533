// Package metrics holds the Prometheus collectors shared by the pipeline and its outputs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Processing outcomes.
const (
	OutcomeStored      = "stored"
	OutcomeStoreFailed = "store_failed"
	OutcomePanic       = "panic"
)

var (
	// EventsSubmitted counts events accepted onto the ingest queue.
	EventsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seclog_events_submitted_total",
		Help: "Total number of events accepted by the ingest gateway",
	})

	// EventsDropped counts submissions rejected because the queue was full or stopped.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seclog_events_dropped_total",
		Help: "Total number of events dropped before processing",
	})

	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seclog_events_processed_total",
		Help: "Total number of events processed by outcome",
	}, []string{"outcome"})

	AlertsTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seclog_alerts_triggered_total",
		Help: "Total number of alerts persisted",
	})

	// SubscriberFailures counts subscriber callbacks that returned an error or panicked.
	SubscriberFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seclog_subscriber_failures_total",
		Help: "Total number of failed subscriber callbacks by kind",
	}, []string{"kind"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "seclog_queue_depth",
		Help: "Current number of items waiting on the ingest queue",
	})

	// ProcessingLatency measures end-to-end handling time of one event on the consumer.
	ProcessingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "seclog_event_processing_seconds",
		Help:    "Event processing latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seclog_store_errors_total",
		Help: "Total number of storage failures by operation",
	}, []string{"op"})

	// WebhookBreakerState is 0 closed, 1 half-open, 2 open.
	WebhookBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "seclog_webhook_breaker_state",
		Help: "Alert webhook circuit breaker state (0 closed, 1 half-open, 2 open)",
	})
)
