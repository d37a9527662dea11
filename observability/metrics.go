// Package observability exposes the Coordinator's Prometheus metrics and
// wires crash/invariant-violation reporting to Sentry.
package observability

import (
	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GateDecisions tracks the number of Decision Gate verdicts, labeled by
	// kind (NoAction/StartQuickTask/StartIntervention) and NoAction reason.
	GateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decisioncore_gate_decisions_total",
		Help: "Total number of Decision Gate verdicts",
	}, []string{"kind", "reason"})

	// QuotaRemaining tracks the current Quick Task quota remaining.
	QuotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "decisioncore_quota_remaining",
		Help: "Current Quick Task quota remaining in the active 15-minute window",
	})

	// ActiveSurfaces tracks whether a UI surface is currently live (0 or 1).
	ActiveSurfaces = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "decisioncore_surface_active",
		Help: "Whether a UI surface is currently live",
	})

	// TimerScheduled tracks timer scheduling activity by kind
	// (quick_task, intention).
	TimerScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decisioncore_timers_scheduled_total",
		Help: "Total number of timers scheduled",
	}, []string{"kind"})

	// TimerFired tracks timer firings by kind and outcome
	// (expired, stale_session, cancelled).
	TimerFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decisioncore_timers_fired_total",
		Help: "Total number of timers that reached their callback",
	}, []string{"kind", "outcome"})

	// ForcedInterventions tracks forced interventions emitted by the
	// Intention Subsystem.
	ForcedInterventions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decisioncore_forced_interventions_total",
		Help: "Total number of forced interventions triggered by intention expiry",
	})

	// SurfaceEmitFailures tracks failed emissions to the UI host.
	SurfaceEmitFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decisioncore_surface_emit_failures_total",
		Help: "Total number of emit failures to the UI host, by wake reason",
	}, []string{"wake_reason"})

	// DurableWriteFailures tracks best-effort durable writes that failed.
	DurableWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decisioncore_durable_write_failures_total",
		Help: "Total number of failed asynchronous durable store writes",
	}, []string{"store"})
)

// ReportInvariantViolation sends an invariant-violation report to Sentry and
// is also counted locally so it shows up in the standard metrics scrape.
var invariantViolations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "decisioncore_invariant_violations_total",
	Help: "Total number of detected invariant violations",
}, []string{"invariant"})

func ReportInvariantViolation(invariant string, err error) {
	invariantViolations.WithLabelValues(invariant).Inc()
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("invariant", invariant)
		sentry.CaptureException(err)
	})
}
