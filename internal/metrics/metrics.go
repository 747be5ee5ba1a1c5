// Package metrics provides Prometheus collectors for the proctoring pipeline.
//
// Labels stay low-cardinality: analyzer kind, severity, drop reason. Session and
// interview identifiers never become labels.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesSubmittedTotal counts frames accepted by an analyzer worker.
	FramesSubmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proctor_frames_submitted_total",
		Help: "Total number of frames queued for analysis, by analyzer.",
	}, []string{"analyzer"})

	// FramesDroppedTotal counts frames that never reached an analyzer.
	FramesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proctor_frames_dropped_total",
		Help: "Total number of frames dropped before analysis, by analyzer and reason.",
	}, []string{"analyzer", "reason"})

	// BadFramesTotal counts frames that failed to decode.
	BadFramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proctor_bad_frames_total",
		Help: "Total number of submitted frames that could not be decoded.",
	})

	// ResultsEmittedTotal counts analysis results pushed to the result channel.
	ResultsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proctor_results_emitted_total",
		Help: "Total number of analysis results emitted, by analyzer.",
	}, []string{"analyzer"})

	// ResultsDroppedTotal counts results discarded because the result channel was full.
	ResultsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proctor_results_dropped_total",
		Help: "Total number of analysis results dropped on a full channel, by analyzer.",
	}, []string{"analyzer"})

	// DegradedResultsTotal counts frames that failed inside an analyzer.
	DegradedResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proctor_degraded_results_total",
		Help: "Total number of degraded results produced after analyzer faults, by analyzer.",
	}, []string{"analyzer"})

	// WorkerRestartsTotal counts dead workers replaced by the coordinator.
	WorkerRestartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proctor_worker_restarts_total",
		Help: "Total number of analyzer worker replacements, by analyzer and outcome.",
	}, []string{"analyzer", "outcome"})

	// ViolationsTotal counts persisted violation events.
	ViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proctor_violations_total",
		Help: "Total number of recorded violation events, by severity.",
	}, []string{"severity"})

	// SuspensionsTotal counts sessions moved into the suspended state.
	SuspensionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proctor_suspensions_total",
		Help: "Total number of interview suspensions, by trigger.",
	}, []string{"trigger"})

	// BroadcastFailuresTotal counts fan-out messages that could not be delivered.
	BroadcastFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proctor_broadcast_failures_total",
		Help: "Total number of failed broadcast deliveries, by message type.",
	}, []string{"type"})

	// ActiveSessions tracks sessions currently known to the coordinator.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "proctor_active_sessions",
		Help: "Current number of sessions with analysis state.",
	})
)

// Drop reasons.
const (
	DropQueueFull  = "queue_full"
	DropWorkerDown = "worker_down"
)

// Suspension triggers.
const (
	TriggerCritical    = "critical"
	TriggerMaxWarnings = "max_warnings"
	TriggerManual      = "manual"
)

// RecordSubmitted increments the accepted frame counter.
func RecordSubmitted(analyzer string) {
	FramesSubmittedTotal.WithLabelValues(analyzer).Inc()
}

// RecordFrameDropped increments the frame drop counter.
func RecordFrameDropped(analyzer, reason string) {
	FramesDroppedTotal.WithLabelValues(analyzer, reason).Inc()
}

// RecordBadFrame increments the undecodable frame counter.
func RecordBadFrame() {
	BadFramesTotal.Inc()
}

// RecordResult increments the emitted or dropped result counter.
func RecordResult(analyzer string, delivered bool) {
	if delivered {
		ResultsEmittedTotal.WithLabelValues(analyzer).Inc()
		return
	}
	ResultsDroppedTotal.WithLabelValues(analyzer).Inc()
}

// RecordDegraded increments the degraded result counter.
func RecordDegraded(analyzer string) {
	DegradedResultsTotal.WithLabelValues(analyzer).Inc()
}

// RecordRestart increments the worker replacement counter.
func RecordRestart(analyzer string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	WorkerRestartsTotal.WithLabelValues(analyzer, outcome).Inc()
}

// RecordViolation increments the violation counter.
func RecordViolation(severity string) {
	ViolationsTotal.WithLabelValues(severity).Inc()
}

// RecordSuspension increments the suspension counter.
func RecordSuspension(trigger string) {
	SuspensionsTotal.WithLabelValues(trigger).Inc()
}

// RecordBroadcastFailure increments the failed delivery counter.
func RecordBroadcastFailure(messageType string) {
	BroadcastFailuresTotal.WithLabelValues(messageType).Inc()
}

// SetActiveSessions updates the active session gauge.
func SetActiveSessions(n int) {
	ActiveSessions.Set(float64(n))
}
