package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsRecordsRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	end := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m.ObserveRun("reservation_expiry_sweeper", 250*time.Millisecond, end, nil)
	m.ObserveRun("reservation_expiry_sweeper", time.Second, end.Add(time.Minute), errors.New("db down"))
	m.IncLockSkipped()

	mfs, err := reg.Gather()
	require.NoError(t, err)

	failed, err := findSample(mfs, "stockhold_cron_job_runs_total", "result", JobFailed)
	require.NoError(t, err)
	require.Equal(t, float64(1), failed.GetCounter().GetValue())

	last, err := findSample(mfs, "stockhold_cron_job_last_success_timestamp_seconds", "job", "reservation_expiry_sweeper")
	require.NoError(t, err)
	require.Equal(t, float64(end.Unix()), last.GetGauge().GetValue(), "a failed run must not move the success timestamp")

	duration, err := findSample(mfs, "stockhold_cron_job_duration_seconds", "job", "reservation_expiry_sweeper")
	require.NoError(t, err)
	require.Equal(t, uint64(2), duration.GetHistogram().GetSampleCount())

	skips := findMetricFamily(mfs, "stockhold_cron_lock_skips_total")
	require.NotNil(t, skips)
	require.Equal(t, float64(1), skips.GetMetric()[0].GetCounter().GetValue())
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveRun("job", time.Second, time.Now(), nil)
	m.IncLockSkipped()
	NewCronJobMetrics(nil).ObserveRun("", time.Second, time.Now(), nil)
}

func TestCronJobMetricsLabelsUnnamedJobs(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveRun("", time.Second, time.Now(), errors.New("boom"))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	sample, err := findSample(mfs, "stockhold_cron_job_runs_total", "job", "unknown")
	require.NoError(t, err)
	require.Equal(t, float64(1), sample.GetCounter().GetValue())
	require.Equal(t, "unknown", normalizeLabel(""))
	require.Equal(t, "erp", normalizeLabel("erp"))
}
