// Package metrics exposes prometheus instruments for the sync pipeline.
package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Record outcomes, one per canonical upsert result.
const (
	RecordOutcomeCreated = "created"
	RecordOutcomeUpdated = "updated"
	RecordOutcomeSkipped = "skipped"
)

// Config carries the constant labels stamped onto every series.
type Config struct {
	ServiceName string
	Environment string
}

// SyncMetrics captures sync run health signals per source.
type SyncMetrics struct {
	runs        *prometheus.CounterVec
	runErrors   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	records     *prometheus.CounterVec
	orderJobs   *prometheus.CounterVec
}

var (
	syncMetricsOnce sync.Once
	syncMetrics     *SyncMetrics
)

// Sync returns the singleton sync metrics registry.
func Sync() *SyncMetrics {
	return SyncWithConfig(Config{})
}

// SyncWithConfig returns the singleton sync metrics registry using config labels.
func SyncWithConfig(cfg Config) *SyncMetrics {
	syncMetricsOnce.Do(func() {
		syncMetrics = newSyncMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return syncMetrics
}

// ResetSyncMetricsForTest resets the sync metrics singleton for tests.
func ResetSyncMetricsForTest() {
	syncMetricsOnce = sync.Once{}
	syncMetrics = nil
}

func newSyncMetrics(registerer prometheus.Registerer, cfg Config) *SyncMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "membersync"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "membersync_sync_runs_total",
		Help:        "Sync runs started, by source.",
		ConstLabels: constLabels,
	}, []string{"source"})
	runErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "membersync_sync_run_errors_total",
		Help:        "Sync runs that failed before advancing their watermark.",
		ConstLabels: constLabels,
	}, []string{"source"})
	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "membersync_sync_run_duration_seconds",
		Help:        "Sync run latency to keep membership freshness within SLOs.",
		Buckets:     []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
		ConstLabels: constLabels,
	}, []string{"source"})
	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "membersync_sync_records_total",
		Help:        "Records processed per run, by upsert outcome.",
		ConstLabels: constLabels,
	}, []string{"source", "outcome"})
	orderJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "membersync_order_sync_jobs_total",
		Help:        "Webhook-triggered single-order sync jobs processed.",
		ConstLabels: constLabels,
	}, []string{"source"})

	registerer.MustRegister(
		runs,
		runErrors,
		runDuration,
		records,
		orderJobs,
	)

	return &SyncMetrics{
		runs:        runs,
		runErrors:   runErrors,
		runDuration: runDuration,
		records:     records,
		orderJobs:   orderJobs,
	}
}

// IncRun increments the run counter for a source.
func (m *SyncMetrics) IncRun(source string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(source).Inc()
}

// IncRunError increments the failed-run counter for a source.
func (m *SyncMetrics) IncRunError(source string) {
	if m == nil || m.runErrors == nil {
		return
	}
	m.runErrors.WithLabelValues(source).Inc()
}

// ObserveRunDuration records sync run latency in seconds.
func (m *SyncMetrics) ObserveRunDuration(source string, duration time.Duration) {
	if m == nil || m.runDuration == nil {
		return
	}
	m.runDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// AddRecords increments the processed-record counter for an outcome by count.
func (m *SyncMetrics) AddRecords(source, outcome string, count int) {
	if m == nil || m.records == nil || count <= 0 {
		return
	}
	m.records.WithLabelValues(source, outcome).Add(float64(count))
}

// IncOrderSyncJob increments the webhook-triggered job counter for a source.
func (m *SyncMetrics) IncOrderSyncJob(source string) {
	if m == nil || m.orderJobs == nil {
		return
	}
	m.orderJobs.WithLabelValues(source).Inc()
}
