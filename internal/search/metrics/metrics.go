package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the search aggregation.
type Metrics struct {
	// Per-category branch latency
	BranchLatency *prometheus.HistogramVec

	// Branch outcomes by category and outcome ("ok", "empty", or an error kind)
	BranchOutcome *prometheus.CounterVec

	// Results kept after dedup and capping, by category
	ResultsReturned *prometheus.CounterVec

	// Results dropped as duplicates
	DuplicatesDropped prometheus.Counter

	// Overall aggregation latency
	AggregateLatency prometheus.Histogram
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the search metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BranchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rechtsbron_search_branch_duration_seconds",
			Help:    "Duration of a single category search",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		}, []string{"category"}),

		BranchOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rechtsbron_search_branch_outcomes_total",
			Help: "Category search outcomes",
		}, []string{"category", "outcome"}),

		ResultsReturned: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rechtsbron_search_results_total",
			Help: "Results returned after deduplication and capping",
		}, []string{"category"}),

		DuplicatesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "rechtsbron_search_duplicates_dropped_total",
			Help: "Results dropped because their link was already present",
		}),

		AggregateLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rechtsbron_search_aggregate_duration_seconds",
			Help:    "Duration of a full multi-category aggregation",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}),
	}
}

func (m *Metrics) ObserveBranchLatency(category string, d time.Duration) {
	if m != nil {
		m.BranchLatency.WithLabelValues(category).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementOutcome(category, outcome string) {
	if m != nil {
		m.BranchOutcome.WithLabelValues(category, outcome).Inc()
	}
}

func (m *Metrics) AddResults(category string, n int) {
	if m != nil && n > 0 {
		m.ResultsReturned.WithLabelValues(category).Add(float64(n))
	}
}

func (m *Metrics) AddDuplicates(n int) {
	if m != nil && n > 0 {
		m.DuplicatesDropped.Add(float64(n))
	}
}

func (m *Metrics) ObserveAggregateLatency(d time.Duration) {
	if m != nil {
		m.AggregateLatency.Observe(d.Seconds())
	}
}
