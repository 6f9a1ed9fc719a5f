// Package metrics holds the Prometheus instruments for committee activity.
//
// A nil *Metrics is valid and records nothing, so services can be built
// without a registry in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "recruithub"

// Metrics is the set of committee instruments.
type Metrics struct {
	committeesCreated   prometheus.Counter
	committeesCompleted prometheus.Counter
	committeesCancelled prometheus.Counter

	feedbackSubmitted prometheus.Counter
	casConflicts      prometheus.Counter

	tokensIssued   prometheus.Counter
	tokensRedeemed prometheus.Counter
	tokensRejected *prometheus.CounterVec

	notifications *prometheus.CounterVec
	sweepRuns     prometheus.Counter
}

// New registers the committee instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.committeesCreated = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "committees_created_total",
		Help:      "committees assigned to applications",
	})
	m.committeesCompleted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "committees_completed_total",
		Help:      "committees that reached quorum",
	})
	m.committeesCancelled = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "committees_cancelled_total",
		Help:      "committees cancelled by an operator",
	})
	m.feedbackSubmitted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feedback_submitted_total",
		Help:      "reviewer feedback submissions recorded",
	})
	m.casConflicts = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "committee_write_conflicts_total",
		Help:      "committee writes retried after a version conflict",
	})
	m.tokensIssued = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feedback_tokens_issued_total",
		Help:      "feedback tokens issued",
	})
	m.tokensRedeemed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feedback_tokens_redeemed_total",
		Help:      "feedback tokens redeemed",
	})
	m.tokensRejected = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feedback_tokens_rejected_total",
		Help:      "feedback token presentations rejected, by reason",
	}, []string{"reason"})
	m.notifications = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "notification attempts, by event and outcome",
	}, []string{"event", "outcome"})
	m.sweepRuns = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reminder_sweeps_total",
		Help:      "reminder sweep passes completed",
	})

	return m
}

func (m *Metrics) CommitteeCreated() {
	if m != nil {
		m.committeesCreated.Inc()
	}
}

func (m *Metrics) CommitteeCompleted() {
	if m != nil {
		m.committeesCompleted.Inc()
	}
}

func (m *Metrics) CommitteeCancelled() {
	if m != nil {
		m.committeesCancelled.Inc()
	}
}

func (m *Metrics) FeedbackSubmitted() {
	if m != nil {
		m.feedbackSubmitted.Inc()
	}
}

func (m *Metrics) WriteConflict() {
	if m != nil {
		m.casConflicts.Inc()
	}
}

func (m *Metrics) TokenIssued() {
	if m != nil {
		m.tokensIssued.Inc()
	}
}

func (m *Metrics) TokenRedeemed() {
	if m != nil {
		m.tokensRedeemed.Inc()
	}
}

// TokenRejected counts a rejected presentation. reason is one of
// "not_found", "expired" or "redeemed".
func (m *Metrics) TokenRejected(reason string) {
	if m != nil {
		m.tokensRejected.WithLabelValues(reason).Inc()
	}
}

// Notification counts one notification attempt. outcome is a dispatch
// reason such as "sent" or "send_error".
func (m *Metrics) Notification(event, outcome string) {
	if m != nil {
		m.notifications.WithLabelValues(event, outcome).Inc()
	}
}

func (m *Metrics) SweepCompleted() {
	if m != nil {
		m.sweepRuns.Inc()
	}
}
