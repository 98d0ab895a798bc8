package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RateLimitDecisions *prometheus.CounterVec
	RateLimitErrors    prometheus.Counter
	RateLimitDegraded  prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RateLimitDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "teamreg_ratelimit_decisions_total",
			Help: "Rate limit decisions by endpoint class and outcome",
		}, []string{"class", "outcome"}),
		RateLimitErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "teamreg_ratelimit_store_errors_total",
			Help: "Bucket store failures while checking rate limits",
		}),
		RateLimitDegraded: f.NewGauge(prometheus.GaugeOpts{
			Name: "teamreg_ratelimit_degraded",
			Help: "1 while the limiter is serving from the in-memory fallback",
		}),
	}
}

func (m *Metrics) RecordDecision(class string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	m.RateLimitDecisions.WithLabelValues(class, outcome).Inc()
}

func (m *Metrics) IncrementErrors() {
	m.RateLimitErrors.Inc()
}

func (m *Metrics) SetDegraded(degraded bool) {
	if degraded {
		m.RateLimitDegraded.Set(1)
		return
	}
	m.RateLimitDegraded.Set(0)
}
