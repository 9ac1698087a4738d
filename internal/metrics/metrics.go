// Package metrics exposes the Prometheus counters and histograms emitted by
// a pipeline run (spec.md §4, §7).
//
// Grounded on tinoosan-ledger's internal/httpapi/v1/metrics.go: the same
// promauto.NewCounterVec/NewHistogramVec registration shape, relabeled from
// HTTP routes to pipeline stages.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageRuns counts completed pipeline stages by stage name and outcome
	// ("ok" or "error").
	StageRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "akahu_firefly",
			Name:      "stage_runs_total",
			Help:      "Total number of pipeline stage completions",
		},
		[]string{"stage", "outcome"},
	)

	// StageDuration observes how long each pipeline stage took.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "akahu_firefly",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// AccountsImported counts ledger account rows imported, by outcome
	// ("created", "merged", "conflict").
	AccountsImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "akahu_firefly",
			Name:      "accounts_imported_total",
			Help:      "Total number of ledger account rows processed by the importer",
		},
		[]string{"outcome"},
	)

	// TransactionsWritten is labelled by entity ("account", "transaction")
	// and operation ("create", "update") for remote writes against the
	// ledger. It is registered and exported, but no code in this repository
	// increments it; the exporter does not record its writes here.
	TransactionsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "akahu_firefly",
			Name:      "ledger_writes_total",
			Help:      "Total number of create/update calls made against the ledger's write API",
		},
		[]string{"entity", "operation"},
	)

	// RemoteWriteFailures is labelled like TransactionsWritten, for failed
	// ledger write API calls. Like TransactionsWritten, it is registered but
	// never incremented; the exporter only logs failed writes.
	RemoteWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "akahu_firefly",
			Name:      "ledger_write_failures_total",
			Help:      "Total number of failed create/update calls against the ledger's write API",
		},
		[]string{"entity", "operation"},
	)
)

// ObserveStage runs fn, recording its duration and outcome under stage.
func ObserveStage(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	StageRuns.WithLabelValues(stage, outcome).Inc()
	return err
}
