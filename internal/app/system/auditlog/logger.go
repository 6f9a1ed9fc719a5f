// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"strconv"

	"github.com/dalemusser/recruithub/internal/app/store/audit"
	"github.com/dalemusser/recruithub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Committee controls logging for committee lifecycle events (created, completed, cancelled).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Committee string
	// Feedback controls logging for reviewer events (requests, reminders, submissions, rejected tokens).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Feedback string
}

// Logger records audit events to MongoDB (via audit.Store) and zap.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}

	if event.CommitteeID != nil {
		fields = append(fields, zap.String("committee_id", event.CommitteeID.Hex()))
	}
	if event.ApplicationID != nil {
		fields = append(fields, zap.String("application_id", event.ApplicationID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.ReviewerEmail != "" {
		fields = append(fields, zap.String("reviewer_email", event.ReviewerEmail))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// A nil Logger is a no-op.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryCommittee:
		setting = l.config.Committee
	case audit.CategoryFeedback:
		setting = l.config.Feedback
	default:
		setting = "all"
	}
	if setting == "" {
		setting = "all"
	}

	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Committee Events ---

// CommitteeCreated logs a committee assignment.
func (l *Logger) CommitteeCreated(ctx context.Context, c *models.ApplicationCommittee, actorID *primitive.ObjectID) {
	details := map[string]string{
		"members":          strconv.Itoa(len(c.Members)),
		"voting_mechanism": c.Settings.VotingMechanism,
	}
	if c.TemplateID != nil {
		details["template_id"] = c.TemplateID.Hex()
	}
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryCommittee,
		EventType:     audit.EventCommitteeCreated,
		CommitteeID:   &c.ID,
		ApplicationID: &c.ApplicationID,
		ActorID:       actorID,
		Success:       true,
		Details:       details,
	})
}

// CommitteeCompleted logs a committee reaching quorum.
func (l *Logger) CommitteeCompleted(ctx context.Context, c *models.ApplicationCommittee) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryCommittee,
		EventType:     audit.EventCommitteeCompleted,
		CommitteeID:   &c.ID,
		ApplicationID: &c.ApplicationID,
		Success:       true,
		Details: map[string]string{
			"recommendation":  c.VotingResults.Recommendation,
			"average_score":   strconv.FormatFloat(c.VotingResults.AverageScore, 'f', 1, 64),
			"submitted_count": strconv.Itoa(c.VotingResults.SubmittedCount),
		},
	})
}

// CommitteeCancelled logs a cancellation.
func (l *Logger) CommitteeCancelled(ctx context.Context, c *models.ApplicationCommittee, actorID *primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryCommittee,
		EventType:     audit.EventCommitteeCancelled,
		CommitteeID:   &c.ID,
		ApplicationID: &c.ApplicationID,
		ActorID:       actorID,
		Success:       true,
		Details:       map[string]string{"reason": c.CancellationReason},
	})
}

// --- Feedback Events ---

// FeedbackSubmitted logs a recorded submission.
func (l *Logger) FeedbackSubmitted(ctx context.Context, c *models.ApplicationCommittee, reviewerEmail, recommendation string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryFeedback,
		EventType:     audit.EventFeedbackSubmitted,
		CommitteeID:   &c.ID,
		ApplicationID: &c.ApplicationID,
		ReviewerEmail: reviewerEmail,
		Success:       true,
		Details:       map[string]string{"recommendation": recommendation},
	})
}

// FeedbackNotified logs a request or reminder attempt. outcome is the
// dispatch reason; anything other than "sent" is logged as a failure.
func (l *Logger) FeedbackNotified(ctx context.Context, c *models.ApplicationCommittee, reviewerEmail string, reminder bool, outcome string) {
	eventType := audit.EventFeedbackRequestSent
	if reminder {
		eventType = audit.EventFeedbackReminderSent
	}
	ev := audit.Event{
		Category:      audit.CategoryFeedback,
		EventType:     eventType,
		CommitteeID:   &c.ID,
		ApplicationID: &c.ApplicationID,
		ReviewerEmail: reviewerEmail,
		Success:       outcome == "sent",
	}
	if !ev.Success {
		ev.FailureReason = outcome
	}
	l.Log(ctx, ev)
}

// TokenRejected logs a feedback link that could not be used.
func (l *Logger) TokenRejected(ctx context.Context, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryFeedback,
		EventType:     audit.EventFeedbackTokenReject,
		Success:       false,
		FailureReason: reason,
	})
}
