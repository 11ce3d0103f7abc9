package config

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveLoad(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "worker")

	m.ObserveLoad([]string{"RECONCILE_SCHEDULE"})

	assert.Greater(t, testutil.ToFloat64(m.LoadTimestamp), float64(0))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FallbacksTotal.WithLabelValues("RECONCILE_SCHEDULE")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FallbackActive))

	m.ObserveLoad(nil)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.FallbackActive))
}

func TestMetrics_ValidationError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "api")

	m.RecordValidationError("JWT_SECRET")
	m.RecordValidationError("JWT_SECRET")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ValidationErrorsTotal.WithLabelValues("JWT_SECRET")))
}

func TestMetrics_ComponentLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg, "api").ObserveLoad(nil)
	NewMetrics(reg, "worker").ObserveLoad(nil)

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "relay_config_load_timestamp_seconds" {
			continue
		}
		assert.Len(t, mf.GetMetric(), 2)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveLoad([]string{"x"})
		m.RecordValidationError("x")
	})
}
