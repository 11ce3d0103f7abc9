package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes per-scheduler queue depth, wait time and task outcomes.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	QueueDepth  *prometheus.GaugeVec
	WaitSeconds *prometheus.HistogramVec
	TasksTotal  *prometheus.CounterVec
}

// NewMetrics registers the scheduler collectors with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scheduler_queue_depth",
			Help: "Tasks waiting in the scheduler queue",
		}, []string{"scheduler"}),
		WaitSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scheduler_wait_seconds",
			Help:    "Time between submission and start of a scheduled task",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"scheduler"}),
		TasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_tasks_total",
			Help: "Scheduled tasks by outcome (success, error)",
		}, []string{"scheduler", "outcome"}),
	}
}

func (m *Metrics) queued(name string, depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(name).Set(float64(depth))
}

func (m *Metrics) observeWait(name string, d time.Duration) {
	if m == nil {
		return
	}
	m.WaitSeconds.WithLabelValues(name).Observe(d.Seconds())
}

func (m *Metrics) finished(name string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.TasksTotal.WithLabelValues(name, outcome).Inc()
}
