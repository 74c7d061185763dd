// Package metrics defines and registers all custom Prometheus metrics for the
// portal. It is the single source of truth for metric names, labels, and help
// strings.
//
// Metrics are registered with the default Prometheus registry on package init
// via promauto; the /metrics endpoint serves them alongside the HTTP metrics
// collected by echoprometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "portal"

// ── Issuance metrics ──────────────────────────────────────────────────────────

// IssuanceOutcomesTotal counts credential issuance attempts by outcome.
// Labels:
//   - method: "password", "oauth" or "register"
//   - outcome: "success", "needs_approval", "access_denied", "transport", "rejected", "invalid"
var IssuanceOutcomesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "issuance_outcomes_total",
		Help:      "Total number of credential issuance attempts, by method and outcome.",
	},
	[]string{"method", "outcome"},
)

// IssuanceDuration measures upstream issuance calls.
var IssuanceDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "issuance_duration_seconds",
		Help:      "Duration of upstream credential issuance calls.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method"},
)

// InviteVerificationsTotal counts invite-gate verifications.
// Label:
//   - result: "verified", "rejected", "stale", "transport", "empty"
var InviteVerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invite_verifications_total",
		Help:      "Total number of invite code verifications, by result.",
	},
	[]string{"result"},
)

// ── Session metrics ───────────────────────────────────────────────────────────

// SessionMirrorErrorsTotal counts failed writes/reads of the persisted session
// mirror. The in-memory session stays authoritative when these fire.
// Label:
//   - op: "load", "save" or "delete"
var SessionMirrorErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_mirror_errors_total",
		Help:      "Total number of session mirror operations that failed.",
	},
	[]string{"op"},
)

// ActiveVisitors tracks the number of visitor state bundles held in memory.
var ActiveVisitors = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_visitors",
		Help:      "Current number of visitors with in-memory client state.",
	},
)

// ── Guard metrics ─────────────────────────────────────────────────────────────

// GuardDecisionsTotal counts route guard decisions.
// Labels:
//   - view: the guarded view name
//   - decision: "render", "redirect" or "loading"
var GuardDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_decisions_total",
		Help:      "Total number of route guard decisions, by view and decision.",
	},
	[]string{"view", "decision"},
)

// ── Journal metrics ───────────────────────────────────────────────────────────

// JournalQueueDepth tracks pending lifecycle journal entries per worker.
var JournalQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "journal_queue_depth",
		Help:      "Current number of lifecycle events pending in each journal worker channel.",
	},
	[]string{"worker_id"},
)

// JournalErrorsTotal counts journal writes that failed.
var JournalErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "journal_errors_total",
		Help:      "Total number of lifecycle journal writes that failed.",
	},
)
