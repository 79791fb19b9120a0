package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for grounding requests.
type Metrics struct {
	// Grounding builds by outcome ("ok", "no_results", "error")
	BuildOutcome *prometheus.CounterVec

	// Matched legal domains
	DomainMatches *prometheus.CounterVec

	// End-to-end build latency
	BuildLatency prometheus.Histogram

	// Size of the rendered block in tokens
	ContextTokens prometheus.Histogram

	// Results dropped to honour the token budget
	ResultsTrimmed prometheus.Counter
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the grounding metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BuildOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rechtsbron_grounding_builds_total",
			Help: "Grounding builds by outcome",
		}, []string{"outcome"}),

		DomainMatches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rechtsbron_grounding_domain_matches_total",
			Help: "Legal domains matched by questions",
		}, []string{"domain"}),

		BuildLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rechtsbron_grounding_build_duration_seconds",
			Help:    "Duration of a grounding build including the search fan-out",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}),

		ContextTokens: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rechtsbron_grounding_context_tokens",
			Help:    "Token size of rendered grounding blocks",
			Buckets: prometheus.ExponentialBuckets(64, 2, 8),
		}),

		ResultsTrimmed: f.NewCounter(prometheus.CounterOpts{
			Name: "rechtsbron_grounding_results_trimmed_total",
			Help: "Search results dropped to fit the token budget",
		}),
	}
}

func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.BuildOutcome.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementDomain(domain string) {
	if m != nil {
		m.DomainMatches.WithLabelValues(domain).Inc()
	}
}

func (m *Metrics) ObserveBuildLatency(d time.Duration) {
	if m != nil {
		m.BuildLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveContextTokens(n int) {
	if m != nil {
		m.ContextTokens.Observe(float64(n))
	}
}

func (m *Metrics) AddTrimmed(n int) {
	if m != nil && n > 0 {
		m.ResultsTrimmed.Add(float64(n))
	}
}
