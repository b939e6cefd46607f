// Package metrics defines and registers all custom Prometheus metrics for the
// NextHire API. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation through promauto; /metrics serves them together with the
// HTTP request metrics from echoprometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nexthire"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthRequestsTotal counts auth flow outcomes.
// Labels:
//   - step: "register", "login" or "verify"
//   - result: "ok", "invalid", "rate_limited", "error", ...
var AuthRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_requests_total",
		Help:      "Total number of authentication requests, by step and result.",
	},
	[]string{"step", "result"},
)

// CodesSentTotal counts verification code deliveries.
// Label:
//   - result: "ok" or "error"
var CodesSentTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verification_codes_sent_total",
		Help:      "Total number of verification codes handed to the notification channel.",
	},
	[]string{"result"},
)

// ── Abuse metrics ─────────────────────────────────────────────────────────────

// MaliciousInputTotal counts sanitizer decisions on flagged requests.
// Label:
//   - result: "rejected" (400) or "blocked" (429)
var MaliciousInputTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "malicious_input_total",
		Help:      "Total number of requests carrying insecure input, by outcome.",
	},
	[]string{"result"},
)

// AuditQueueDepth tracks the number of audit events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// AuditWriteErrorsTotal counts audit events that could not be persisted.
// Label:
//   - kind: the audit kind (e.g. "login_bruteforce")
var AuditWriteErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_write_errors_total",
		Help:      "Total number of audit events that failed to persist.",
	},
	[]string{"kind"},
)

// ── Job metrics ───────────────────────────────────────────────────────────────

// JobsCreatedTotal counts newly created job applications.
var JobsCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_created_total",
		Help:      "Total number of job applications created.",
	},
)
