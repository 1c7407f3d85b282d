package genericrepo

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the repository collectors. A nil *Metrics records nothing.
type Metrics struct {
	duration  *prometheus.HistogramVec
	rows      *prometheus.CounterVec
	conflicts *prometheus.CounterVec
	timeouts  *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg. A nil reg builds unregistered
// collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "repository",
			Name:      "operation_duration_seconds",
			Help:      "Duration of repository operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table", "op"}),
		rows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repository",
			Name:      "rows_returned_total",
			Help:      "Rows returned by queries.",
		}, []string{"table"}),
		conflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repository",
			Name:      "concurrency_conflicts_total",
			Help:      "Versioned updates that matched no row.",
		}, []string{"table"}),
		timeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repository",
			Name:      "child_mapping_timeouts_total",
			Help:      "Child mappings that exceeded their deadline.",
		}, []string{"table"}),
	}
}

func (m *Metrics) observe(table, op string, start time.Time) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(table, op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) returned(table string, n int) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues(table).Add(float64(n))
}

func (m *Metrics) conflict(table string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(table).Inc()
}

func (m *Metrics) timeout(table string) {
	if m == nil {
		return
	}
	m.timeouts.WithLabelValues(table).Inc()
}
