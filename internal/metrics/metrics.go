// Package metrics provides Prometheus collectors for sync and feed activity.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "listado"

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeDegraded = "degraded"
	OutcomeSkipped  = "skipped"
)

// Metrics holds the collectors and the registry they are registered on.
type Metrics struct {
	fetches        *prometheus.CounterVec
	fetchDuration  prometheus.Histogram
	batchesWritten prometheus.Counter
	recordsWritten prometheus.Counter
	records        prometheus.Gauge
	loading        prometheus.Gauge
	feedMessages   *prometheus.CounterVec
	feedReconnects prometheus.Counter

	registry *prometheus.Registry
}

// New creates collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_fetches_total",
				Help:      "Remote listing fetches by outcome",
			},
			[]string{"outcome"},
		),
		fetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "remote_fetch_duration_seconds",
				Help:      "Duration of remote listing fetches",
				Buckets:   prometheus.DefBuckets,
			},
		),
		batchesWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_batches_written_total",
				Help:      "Batches committed to the local store",
			},
		),
		recordsWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_records_written_total",
				Help:      "Records written to the local store",
			},
		),
		records: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "store_records",
				Help:      "Records currently in the local store",
			},
		),
		loading: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "loading",
				Help:      "1 while a remote fetch is in progress",
			},
		),
		feedMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_messages_total",
				Help:      "Registration feed messages by outcome",
			},
			[]string{"outcome"},
		),
		feedReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_reconnect_attempts_total",
				Help:      "Registration feed reconnect attempts",
			},
		),
	}

	registry.MustRegister(
		m.fetches,
		m.fetchDuration,
		m.batchesWritten,
		m.recordsWritten,
		m.records,
		m.loading,
		m.feedMessages,
		m.feedReconnects,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveFetch records one remote fetch.
func (m *Metrics) ObserveFetch(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
	m.fetchDuration.Observe(duration.Seconds())
}

// ObserveBatch records a committed batch of n records.
func (m *Metrics) ObserveBatch(n int) {
	if m == nil {
		return
	}
	m.batchesWritten.Inc()
	m.recordsWritten.Add(float64(n))
}

// SetRecords sets the mirrored record count.
func (m *Metrics) SetRecords(n int) {
	if m == nil {
		return
	}
	m.records.Set(float64(n))
}

// SetLoading flips the loading gauge.
func (m *Metrics) SetLoading(loading bool) {
	if m == nil {
		return
	}
	if loading {
		m.loading.Set(1)
		return
	}
	m.loading.Set(0)
}

// ObserveFeedMessage records a message received on the registrations feed.
func (m *Metrics) ObserveFeedMessage(outcome string) {
	if m == nil {
		return
	}
	m.feedMessages.WithLabelValues(outcome).Inc()
}

// ObserveReconnect records a reconnect attempt.
func (m *Metrics) ObserveReconnect() {
	if m == nil {
		return
	}
	m.feedReconnects.Inc()
}
