package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveScoring("submit", OutcomeSuccess, 120*time.Millisecond)
	m.ObserveScoring("simulate", OutcomeRejected, time.Second)
	m.IncrementSubmitted()
	m.IncrementDecision("Approved")
	m.IncrementSimulations()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScoringOutcome.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScoringOutcome.WithLabelValues(OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ApplicationsSubmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decisions.WithLabelValues("Approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Simulations))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveScoring("submit", OutcomeSuccess, time.Second)
		m.IncrementSubmitted()
		m.IncrementDecision("Rejected")
		m.IncrementSimulations()
	})
}
