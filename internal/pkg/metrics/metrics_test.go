package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-risk-engine/internal/pkg/metrics"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveCheck("allow", 5*time.Millisecond)
	m.ObserveCheck("review", 8*time.Millisecond)
	m.DegradedCheck()
	m.AlertCreated("payment")

	count, err := testutil.GatherAndCount(reg, "fraud_checks_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(reg, "fraud_degraded_checks_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveCheck("allow", time.Millisecond)
		m.AnalyzerFailed("velocity")
		m.AlertCreated("device")
		m.DegradedCheck()
		m.IPRefresh("hit")
	})
}
