// Package metrics exposes Prometheus instruments for bucket scrubs.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bucketscrubber"

// Metrics holds the scrub instruments.
type Metrics struct {
	pages           prometheus.Counter
	recordsSeen     prometheus.Counter
	versionsDeleted prometheus.Counter
	deleteErrors    *prometheus.CounterVec
	mismatches      prometheus.Counter
	unconfirmed     prometheus.Counter
	scrubs          *prometheus.CounterVec
	deleteLatency   prometheus.Histogram
}

// New registers the scrub instruments with reg. A nil reg returns nil.
// Clients sharing a registerer share its instruments.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	return &Metrics{
		pages: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Listing pages processed",
		})),
		recordsSeen: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_seen_total",
			Help:      "Object versions and delete markers listed",
		})),
		versionsDeleted: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "versions_deleted_total",
			Help:      "Object versions and delete markers confirmed deleted",
		})),
		deleteErrors: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delete_errors_total",
			Help:      "Per-target delete failures by S3 error code",
		}, []string{"code"})),
		mismatches: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_mismatches_total",
			Help:      "Delete calls whose report did not match the request",
		})),
		unconfirmed: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unconfirmed_targets_total",
			Help:      "Requested targets missing from the delete report",
		})),
		scrubs: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrubs_total",
			Help:      "Finished scrubs by status",
		}, []string{"status"})),
		deleteLatency: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delete_call_duration_seconds",
			Help:      "Latency of DeleteObjects calls",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		})),
	}
}

// register adds c to reg, or returns the collector already registered under
// the same descriptor.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
	}
	panic(err)
}

// PageListed records one listed page.
func (m *Metrics) PageListed(records int) {
	if m == nil {
		return
	}
	m.pages.Inc()
	m.recordsSeen.Add(float64(records))
}

// DeleteCall records one DeleteObjects call and its reconciled result.
func (m *Metrics) DeleteCall(d time.Duration, deleted int, errorCodes []string, unconfirmed int) {
	if m == nil {
		return
	}
	m.deleteLatency.Observe(d.Seconds())
	m.versionsDeleted.Add(float64(deleted))
	for _, code := range errorCodes {
		if code == "" {
			code = "unknown"
		}
		m.deleteErrors.WithLabelValues(code).Inc()
	}
	m.unconfirmed.Add(float64(unconfirmed))
}

// Mismatch records a delete report that did not match its request.
func (m *Metrics) Mismatch() {
	if m == nil {
		return
	}
	m.mismatches.Inc()
}

// ScrubFinished records a finished scrub.
func (m *Metrics) ScrubFinished(status string) {
	if m == nil {
		return
	}
	m.scrubs.WithLabelValues(status).Inc()
}
