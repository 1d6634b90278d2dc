// Package metrics collects per-run Prometheus metrics and writes them for the
// node_exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run holds the collectors for a single invocation.
type Run struct {
	registry *prometheus.Registry

	phrasesTotal       *prometheus.CounterVec
	rowsTotal          *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	newRecords         prometheus.Gauge
	lastRunTimestamp   prometheus.Gauge
	lastRunStatus      prometheus.Gauge
	lastRunDuration    prometheus.Gauge
}

// NewRun registers the run collectors on a private registry.
func NewRun() *Run {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Run{
		registry: reg,
		phrasesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenderwatch_phrases_total",
				Help: "Search phrases processed, labeled by outcome.",
			},
			[]string{"outcome"},
		),
		rowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenderwatch_rows_total",
				Help: "Result rows read from the portal, labeled by dedup result.",
			},
			[]string{"result"},
		),
		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenderwatch_notifications_total",
				Help: "Notification attempts, labeled by notifier and outcome.",
			},
			[]string{"notifier", "outcome"},
		),
		newRecords: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tenderwatch_new_records",
			Help: "New tender records reported by the last run.",
		}),
		lastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tenderwatch_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
		lastRunStatus: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tenderwatch_last_run_status",
			Help: "Health status of the last run (1 ok, 0 warnings or errors).",
		}),
		lastRunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tenderwatch_last_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
	}
}

// ObservePhrase counts a processed phrase.
func (r *Run) ObservePhrase(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	r.phrasesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRows counts rows that were new or already known.
func (r *Run) ObserveRows(added, skipped int) {
	r.rowsTotal.WithLabelValues("new").Add(float64(added))
	r.rowsTotal.WithLabelValues("skipped").Add(float64(skipped))
}

// ObserveNotification counts a notifier attempt.
func (r *Run) ObserveNotification(name string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	r.notificationsTotal.WithLabelValues(name, outcome).Inc()
}

// ObserveRun records the outcome of the whole run.
func (r *Run) ObserveRun(status int, records int, finished time.Time, took time.Duration) {
	r.newRecords.Set(float64(records))
	r.lastRunStatus.Set(float64(status))
	r.lastRunTimestamp.Set(float64(finished.Unix()))
	r.lastRunDuration.Set(took.Seconds())
}

// WriteTextfile atomically writes the registry in text exposition format.
func (r *Run) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
