package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts queue traffic by job name. A nil *Metrics is valid.
type Metrics struct {
	JobsTotal *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		JobsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "queue_jobs_total",
			Help: "Queue events by job name and kind (published, collapsed, completed, retried, failed)",
		}, []string{"job", "kind"}),
	}
}

func (m *Metrics) inc(job, kind string) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(job, kind).Inc()
}
