package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_ingested_total",
			Help: "Total inbound messages ingested",
		},
	)

	CampaignsMatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campaigns_matched_total",
			Help: "Total messages attached to a campaign",
		},
	)

	TriageConfirmed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_confirmed_total",
			Help: "Total messages confirmed by triage",
		},
	)

	TriageDismissed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_dismissed_total",
			Help: "Total messages dismissed by triage",
		},
	)

	OutboxQueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_queued_total",
			Help: "Total outbox entries queued by dispatch planning",
		},
	)

	OutboxSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_sent_total",
			Help: "Total outbox entries sent",
		},
	)

	OutboxFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_failed_total",
			Help: "Total outbox send failures",
		},
	)

	OutboxDead = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_dead_total",
			Help: "Total outbox entries parked after exhausting retries",
		},
	)

	LockContention = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "automation_lock_contention_total",
			Help: "Total refused automation lock acquisitions",
		},
	)

	AuditFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_record_failures_total",
			Help: "Total audit events that could not be recorded",
		},
	)
)

func Init() {
	prometheus.MustRegister(
		MessagesIngested,
		CampaignsMatched,
		TriageConfirmed,
		TriageDismissed,
		OutboxQueued,
		OutboxSent,
		OutboxFailed,
		OutboxDead,
		LockContention,
		AuditFailures,
	)
}
