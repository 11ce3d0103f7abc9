package config

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes configuration health for one binary (api, worker).
type Metrics struct {
	LoadTimestamp         prometheus.Gauge
	ValidationErrorsTotal *prometheus.CounterVec
	FallbacksTotal        *prometheus.CounterVec
	FallbackActive        prometheus.Gauge
}

// NewMetrics registers the metrics on reg with a "component" const label.
// A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer, component string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"component": component}, reg))
	return &Metrics{
		LoadTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "relay_config_load_timestamp_seconds",
			Help: "Unix timestamp of the last configuration load.",
		}),
		ValidationErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_config_validation_errors_total",
			Help: "Configuration validation errors by field.",
		}, []string{"field"}),
		FallbacksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_config_fallbacks_total",
			Help: "Settings that fell back to their default value.",
		}, []string{"field"}),
		FallbackActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "relay_config_fallback_active",
			Help: "1 if any setting is currently running on its default after a bad value.",
		}),
	}
}

// ObserveLoad records one load pass. fallbacks lists the fields that fell back.
func (m *Metrics) ObserveLoad(fallbacks []string) {
	if m == nil {
		return
	}
	m.LoadTimestamp.SetToCurrentTime()
	for _, f := range fallbacks {
		m.FallbacksTotal.WithLabelValues(f).Inc()
	}
	if len(fallbacks) > 0 {
		m.FallbackActive.Set(1)
	} else {
		m.FallbackActive.Set(0)
	}
}

func (m *Metrics) RecordValidationError(field string) {
	if m == nil {
		return
	}
	m.ValidationErrorsTotal.WithLabelValues(field).Inc()
}
