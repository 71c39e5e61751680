// Package metrics holds the Prometheus collectors for collection operations,
// index maintenance and persistence. A nil *Metrics records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flindb"

// Metrics groups the collectors of one database.
type Metrics struct {
	operations      *prometheus.CounterVec
	indexRebuilds   *prometheus.CounterVec
	documents       *prometheus.GaugeVec
	persistence     *prometheus.CounterVec
	persistDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. Passing prometheus.DefaultRegisterer
// exposes them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Collection operations by collection and operation",
			},
			[]string{"collection", "op"},
		),
		indexRebuilds: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_rebuilds_total",
				Help:      "Indexes rebuilt after failing validation",
			},
			[]string{"collection", "field"},
		),
		documents: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "documents",
				Help:      "Live documents per collection",
			},
			[]string{"collection"},
		),
		persistence: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persistence_total",
				Help:      "Adapter calls by operation and result",
			},
			[]string{"op", "result"},
		),
		persistDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "persistence_duration_seconds",
				Help:      "Duration of adapter calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}
}

// Op counts one operation on a collection.
func (m *Metrics) Op(collection, op string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(collection, op).Inc()
}

// IndexRebuilt counts a rebuild of the index on field.
func (m *Metrics) IndexRebuilt(collection, field string) {
	if m == nil {
		return
	}
	m.indexRebuilds.WithLabelValues(collection, field).Inc()
}

// Documents sets the live document count of a collection.
func (m *Metrics) Documents(collection string, n int) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(collection).Set(float64(n))
}

// Forget drops the series of a removed collection.
func (m *Metrics) Forget(collection string) {
	if m == nil {
		return
	}
	m.documents.DeleteLabelValues(collection)
	m.operations.DeletePartialMatch(prometheus.Labels{"collection": collection})
	m.indexRebuilds.DeletePartialMatch(prometheus.Labels{"collection": collection})
}

// Persist records an adapter call started at start.
func (m *Metrics) Persist(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.persistence.WithLabelValues(op, result).Inc()
	m.persistDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
