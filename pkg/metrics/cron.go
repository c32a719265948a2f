package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cron job run results.
const (
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// CronJobMetrics tracks the scheduled jobs run by the cron worker. The last
// success timestamp lets alerts catch a sweeper that silently stopped.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	lockSkips   prometheus.Counter
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockhold_cron_job_runs_total",
			Help: "Cron job executions by job and result.",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockhold_cron_job_duration_seconds",
			Help:    "Wall time of one cron job execution.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stockhold_cron_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per job.",
		}, []string{"job"}),
		lockSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockhold_cron_lock_skips_total",
			Help: "Cycles skipped because another worker held the cron lock.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.duration, m.lastSuccess, m.lockSkips)
	}
	return m
}

// ObserveRun records one execution of job that finished at end.
func (m *CronJobMetrics) ObserveRun(job string, took time.Duration, end time.Time, err error) {
	if m == nil {
		return
	}
	job = normalizeLabel(job)
	m.duration.WithLabelValues(job).Observe(took.Seconds())
	if err != nil {
		m.runs.WithLabelValues(job, JobFailed).Inc()
		return
	}
	m.runs.WithLabelValues(job, JobSucceeded).Inc()
	m.lastSuccess.WithLabelValues(job).Set(float64(end.Unix()))
}

func (m *CronJobMetrics) IncLockSkipped() {
	if m == nil {
		return
	}
	m.lockSkips.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
