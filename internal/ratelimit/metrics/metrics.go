package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for HTTP edge rate limiting.
type Metrics struct {
	Decisions       *prometheus.CounterVec
	AllowlistBypass prometheus.Counter
	StoreErrors     prometheus.Counter
	Degraded        prometheus.Gauge
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the rate limit metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rechtsbron_ratelimit_decisions_total",
			Help: "Rate limit decisions by endpoint class and outcome",
		}, []string{"class", "outcome"}),
		AllowlistBypass: f.NewCounter(prometheus.CounterOpts{
			Name: "rechtsbron_ratelimit_allowlist_bypass_total",
			Help: "Requests that skipped rate limiting because the client is allowlisted",
		}),
		StoreErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "rechtsbron_ratelimit_store_errors_total",
			Help: "Bucket store failures; requests fail open or use the fallback store",
		}),
		Degraded: f.NewGauge(prometheus.GaugeOpts{
			Name: "rechtsbron_ratelimit_degraded",
			Help: "1 while the in-memory fallback store is serving checks",
		}),
	}
}

func (m *Metrics) IncrementDecision(class, outcome string) {
	if m != nil {
		m.Decisions.WithLabelValues(class, outcome).Inc()
	}
}

func (m *Metrics) RecordAllowlistBypass() {
	if m != nil {
		m.AllowlistBypass.Inc()
	}
}

func (m *Metrics) IncrementStoreErrors() {
	if m != nil {
		m.StoreErrors.Inc()
	}
}

func (m *Metrics) SetDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.Degraded.Set(1)
		return
	}
	m.Degraded.Set(0)
}
