// Package metrics provides Prometheus metrics for the acquisition pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// No per-release or per-title labels: cardinality stays bounded by the
// closed reason and component enumerations.

var (
	// DecisionsTotal counts evaluated candidates by outcome.
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamearr_decisions_total",
		Help: "Total number of candidate decisions, by result (accepted/rejected).",
	}, []string{"result"})

	// RejectionsTotal counts individual rejections by reason and type.
	RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamearr_rejections_total",
		Help: "Total number of rejections, by reason and type.",
	}, []string{"reason", "type"})

	// RulePanicsTotal counts decision rules that panicked and were skipped.
	RulePanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamearr_rule_panics_total",
		Help: "Total number of decision rule panics, by rule.",
	}, []string{"rule"})

	// AugmenterErrorsTotal counts augmenters that failed and were skipped.
	AugmenterErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamearr_augmenter_errors_total",
		Help: "Total number of augmenter failures, by augmenter.",
	}, []string{"augmenter"})

	// AdapterFailuresTotal counts indexer and download client call failures.
	AdapterFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamearr_adapter_failures_total",
		Help: "Total number of adapter call failures, by kind (indexer/client).",
	}, []string{"kind"})

	// GrabsTotal counts candidates handed to a download client.
	GrabsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamearr_grabs_total",
		Help: "Total number of grabs, by outcome (submitted/failed/pending).",
	}, []string{"outcome"})

	// QueueEntries tracks the current queue projection size by source.
	QueueEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gamearr_queue_entries",
		Help: "Current number of queue entries, by source (live/pending).",
	}, []string{"source"})

	// TrackedDownloadTransitionsTotal counts state machine transitions.
	TrackedDownloadTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamearr_tracked_download_transitions_total",
		Help: "Total number of tracked download state transitions, by target state.",
	}, []string{"state"})
)

// Adapter kinds for AdapterFailuresTotal.
const (
	KindIndexer = "indexer"
	KindClient  = "client"
)

// RecordDecision records one decision outcome.
func RecordDecision(accepted bool) {
	if accepted {
		DecisionsTotal.WithLabelValues("accepted").Inc()
		return
	}
	DecisionsTotal.WithLabelValues("rejected").Inc()
}
