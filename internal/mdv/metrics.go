package mdv

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultSuccess  = "success"
	resultMismatch = "mismatch"
	resultError    = "error"
)

// Metrics records mdv runs. A nil *Metrics records nothing.
type Metrics struct {
	runs      *prometheus.CounterVec
	duration  prometheus.Histogram
	cacheHits prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "markdb_mdv_runs_total",
			Help: "Number of mdv processes run, by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "markdb_mdv_duration_seconds",
			Help:    "Wall time of mdv processes.",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "markdb_mdv_cache_hits_total",
			Help: "Number of validations answered from the cache.",
		}),
	}
	reg.MustRegister(m.runs, m.duration, m.cacheHits)
	return m
}

func (m *Metrics) observe(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) cacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}
