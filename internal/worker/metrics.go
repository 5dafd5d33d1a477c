package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports scheduler activity. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	grants      *prometheus.CounterVec
	completions *prometheus.CounterVec
	waitSeconds prometheus.Histogram
	cappedWaits prometheus.Counter
}

// NewMetrics registers scheduler collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		grants: f.NewCounterVec(prometheus.CounterOpts{
			Name: "claimcheck_scheduler_grants_total",
			Help: "Resource acquisitions granted, by resource",
		}, []string{"resource"}),
		completions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "claimcheck_scheduler_tasks_total",
			Help: "Tasks completed, by resource and result",
		}, []string{"resource", "result"}),
		waitSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "claimcheck_scheduler_wait_seconds",
			Help:    "Time spent blocked in Acquire",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms to ~43min
		}),
		cappedWaits: f.NewCounter(prometheus.CounterOpts{
			Name: "claimcheck_scheduler_daily_capped_waits_total",
			Help: "Acquire iterations that found every resource at its daily cap",
		}),
	}
}

func (m *Metrics) granted(resource string, waited time.Duration) {
	if m == nil {
		return
	}
	m.grants.WithLabelValues(resource).Inc()
	m.waitSeconds.Observe(waited.Seconds())
}

func (m *Metrics) completed(resource string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.completions.WithLabelValues(resource, result).Inc()
}

func (m *Metrics) capped() {
	if m == nil {
		return
	}
	m.cappedWaits.Inc()
}
