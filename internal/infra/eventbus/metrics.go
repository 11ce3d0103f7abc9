package eventbus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts published events and handler outcomes. A nil *Metrics is valid.
type Metrics struct {
	PublishedTotal *prometheus.CounterVec
	HandledTotal   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PublishedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventbus_published_total",
			Help: "Events accepted by the bus",
		}, []string{"event"}),
		HandledTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventbus_handled_total",
			Help: "Handler invocations by subscriber and outcome",
		}, []string{"event", "subscriber", "outcome"}),
	}
}

func (m *Metrics) published(event string) {
	if m == nil {
		return
	}
	m.PublishedTotal.WithLabelValues(event).Inc()
}

func (m *Metrics) handled(event, subscriber string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.HandledTotal.WithLabelValues(event, subscriber, outcome).Inc()
}
