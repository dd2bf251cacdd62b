// Package stats exposes Prometheus counters for the upload pipeline.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "datauploader"

// Drop reasons recorded by Dropped.
const (
	DropUploadFailed = "upload_failed"
	DropUnregistered = "unregistered_at_close"
	DropClientFailed = "client_failed"
	DropWriteFailed  = "write_failed"
)

// Stats holds the pipeline counters. A nil *Stats is valid and records nothing.
type Stats struct {
	routedBatches  *prometheus.CounterVec
	routedRows     *prometheus.CounterVec
	dispatchErrors *prometheus.CounterVec
	registered     *prometheus.CounterVec
	requeued       *prometheus.CounterVec
	uploaded       *prometheus.CounterVec
	dropped        *prometheus.CounterVec
}

// New creates the pipeline counters and registers them with reg.
func New(reg prometheus.Registerer) (*Stats, error) {
	s := &Stats{
		routedBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routed_batches_total",
			Help:      "Coalesced batches dispatched by the router, per metric type.",
		}, []string{"type"}),
		routedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routed_rows_total",
			Help:      "Rows dispatched by the router, per metric type.",
		}, []string{"type"}),
		dispatchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_errors_total",
			Help:      "Client Put calls that failed during routing.",
		}, []string{"client"}),
		registered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registered_metrics_total",
			Help:      "Metrics that received a public id.",
		}, []string{"client"}),
		requeued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requeued_batches_total",
			Help:      "Batches put back on the delivery queue because their metric was not yet registered.",
		}, []string{"client"}),
		uploaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_batches_total",
			Help:      "Batches delivered to a sink.",
		}, []string{"client"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_batches_total",
			Help:      "Batches abandoned without delivery.",
		}, []string{"client", "reason"}),
	}
	for _, c := range []prometheus.Collector{
		s.routedBatches, s.routedRows, s.dispatchErrors,
		s.registered, s.requeued, s.uploaded, s.dropped,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Routed records one coalesced batch of rows for a metric type.
func (s *Stats) Routed(metricType string, rows int) {
	if s == nil {
		return
	}
	s.routedBatches.WithLabelValues(metricType).Inc()
	s.routedRows.WithLabelValues(metricType).Add(float64(rows))
}

// DispatchError records a failed client Put.
func (s *Stats) DispatchError(client string) {
	if s == nil {
		return
	}
	s.dispatchErrors.WithLabelValues(client).Inc()
}

// Registered records a completed metric registration.
func (s *Stats) Registered(client string) {
	if s == nil {
		return
	}
	s.registered.WithLabelValues(client).Inc()
}

// Requeued records a batch deferred until registration completes.
func (s *Stats) Requeued(client string) {
	if s == nil {
		return
	}
	s.requeued.WithLabelValues(client).Inc()
}

// Uploaded records a delivered batch.
func (s *Stats) Uploaded(client string) {
	if s == nil {
		return
	}
	s.uploaded.WithLabelValues(client).Inc()
}

// Dropped records an abandoned batch.
func (s *Stats) Dropped(client, reason string) {
	if s == nil {
		return
	}
	s.dropped.WithLabelValues(client, reason).Inc()
}
