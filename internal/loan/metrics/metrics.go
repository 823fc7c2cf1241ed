package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scoring outcomes.
const (
	OutcomeSuccess       = "success"
	OutcomeConfiguration = "configuration_error"
	OutcomeUnavailable   = "unavailable"
	OutcomeRejected      = "rejected"
	OutcomeInternal      = "internal_error"
)

// Metrics provides observability for the loan module.
type Metrics struct {
	// Scoring call latency by purpose ("submit", "simulate")
	ScoringLatency *prometheus.HistogramVec

	// Scoring outcomes by kind
	ScoringOutcome *prometheus.CounterVec

	ApplicationsSubmitted prometheus.Counter

	// Officer decisions by resulting status
	Decisions *prometheus.CounterVec

	Simulations prometheus.Counter
}

// New registers the loan metrics with reg. Pass prometheus.DefaultRegisterer
// in main and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ScoringLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kilimo_scoring_duration_seconds",
			Help:    "Duration of calls to the scoring model",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"purpose"}),

		ScoringOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kilimo_scoring_outcomes_total",
			Help: "Scoring call outcomes by kind",
		}, []string{"outcome"}),

		ApplicationsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "kilimo_applications_submitted_total",
			Help: "Loan applications scored and stored",
		}),

		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kilimo_application_decisions_total",
			Help: "Officer decisions by resulting status",
		}, []string{"status"}),

		Simulations: f.NewCounter(prometheus.CounterOpts{
			Name: "kilimo_simulations_total",
			Help: "What-if simulations served",
		}),
	}
}

// ObserveScoring records one scoring call.
func (m *Metrics) ObserveScoring(purpose, outcome string, d time.Duration) {
	if m != nil {
		m.ScoringLatency.WithLabelValues(purpose).Observe(d.Seconds())
		m.ScoringOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncrementSubmitted counts a stored application.
func (m *Metrics) IncrementSubmitted() {
	if m != nil {
		m.ApplicationsSubmitted.Inc()
	}
}

// IncrementDecision counts a successful status transition.
func (m *Metrics) IncrementDecision(status string) {
	if m != nil {
		m.Decisions.WithLabelValues(status).Inc()
	}
}

// IncrementSimulations counts a served simulation.
func (m *Metrics) IncrementSimulations() {
	if m != nil {
		m.Simulations.Inc()
	}
}
