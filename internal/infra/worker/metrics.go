package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// JobMetrics tracks scheduled job runs, labelled by job name.
//
// Exposed series:
//   - relay_cron_job_runs_total{job,status}: status is started, success or failure
//   - relay_cron_job_duration_seconds{job}
//   - relay_cron_job_last_success_timestamp_seconds{job}
//
// A nil *JobMetrics is valid and records nothing.
type JobMetrics struct {
	RunsTotal            *prometheus.CounterVec
	DurationSeconds      *prometheus.HistogramVec
	LastSuccessTimestamp *prometheus.GaugeVec
}

// NewJobMetrics registers the job metrics on reg (default registerer when nil).
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &JobMetrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_cron_job_runs_total",
			Help: "Scheduled job runs by job and status.",
		}, []string{"job", "status"}),
		DurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name: "relay_cron_job_duration_seconds",
			Help: "Duration of scheduled job runs.",
			// 再取り込みは数秒、設定再読込はミリ秒単位
			Buckets: []float64{0.01, 0.05, 0.25, 1, 5, 30, 120, 600},
		}, []string{"job"}),
		LastSuccessTimestamp: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relay_cron_job_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful run per job.",
		}, []string{"job"}),
	}
}

func (m *JobMetrics) RecordJobRun(job, status string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(job, status).Inc()
}

func (m *JobMetrics) RecordJobDuration(job string, seconds float64) {
	if m == nil {
		return
	}
	m.DurationSeconds.WithLabelValues(job).Observe(seconds)
}

func (m *JobMetrics) RecordLastSuccess(job string) {
	if m == nil {
		return
	}
	m.LastSuccessTimestamp.WithLabelValues(job).SetToCurrentTime()
}
