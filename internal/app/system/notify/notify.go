// internal/app/system/notify/notify.go
//
// Package notify delivers committee notifications by email.
//
// Every send is bounded by timeouts.Notify() and failures are returned wrapped
// in committee.ErrNotificationFailed. Callers treat them as best-effort.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/recruithub/internal/app/system/mailer"
	"github.com/dalemusser/recruithub/internal/app/system/timeouts"
	"github.com/dalemusser/recruithub/internal/domain/committee"
	"github.com/dalemusser/recruithub/internal/domain/models"
	"go.uber.org/zap"
)

// Sender delivers a single email. *mailer.Mailer implements it.
type Sender interface {
	Send(ctx context.Context, e mailer.Email) error
}

// FeedbackRequest is a feedback request or reminder for one reviewer.
type FeedbackRequest struct {
	Reviewer    models.CommitteeMember
	Application *models.Application
	Link        string
	TTLDays     int
	Deadline    *time.Time
	Reminder    bool
}

// CompletionNotice announces a completed committee to its recipients.
type CompletionNotice struct {
	Recipients  []models.CommitteeMember
	Committee   *models.ApplicationCommittee
	Application *models.Application
}

// Mail sends notifications through a Sender.
type Mail struct {
	sender   Sender
	siteName string
	log      *zap.Logger
}

// NewMail creates a Mail dispatcher.
func NewMail(sender Sender, siteName string, log *zap.Logger) *Mail {
	if siteName == "" {
		siteName = "RecruitHub"
	}
	return &Mail{sender: sender, siteName: siteName, log: log}
}

// SendFeedbackRequest emails the reviewer their feedback link.
func (m *Mail) SendFeedbackRequest(ctx context.Context, req FeedbackRequest) error {
	data := mailer.FeedbackRequestData{
		SiteName:      m.siteName,
		ReviewerName:  req.Reviewer.Name,
		CommitteeRole: req.Reviewer.Role,
		FeedbackLink:  req.Link,
		ExpiresIn:     expiresIn(req.TTLDays),
		Reminder:      req.Reminder,
	}
	if req.Application != nil {
		data.CandidateName = req.Application.CandidateName
		data.JobTitle = req.Application.JobTitle
	}
	if req.Deadline != nil {
		data.Deadline = req.Deadline.Format("Jan 2, 2006")
	}

	e := mailer.BuildFeedbackRequestEmail(data)
	e.To = req.Reviewer.Email

	op := "send feedback request"
	if req.Reminder {
		op = "send feedback reminder"
	}
	return m.send(ctx, op, e)
}

// SendCompletionNotice emails every recipient. It attempts all of them and
// reports the failures together.
func (m *Mail) SendCompletionNotice(ctx context.Context, n CompletionNotice) error {
	if n.Committee == nil {
		return fmt.Errorf("%w: no committee", committee.ErrNotificationFailed)
	}
	vr := n.Committee.VotingResults
	data := mailer.CompletionNoticeData{
		SiteName:       m.siteName,
		Recommendation: vr.Recommendation,
		AverageScore:   vr.AverageScore,
		Recommend:      vr.RecommendationCounts.Recommend,
		NotRecommend:   vr.RecommendationCounts.NotRecommend,
		SubmittedCount: vr.SubmittedCount,
		TotalMembers:   vr.TotalMembers,
	}
	if n.Application != nil {
		data.CandidateName = n.Application.CandidateName
		data.JobTitle = n.Application.JobTitle
	}

	var errs []error
	for _, r := range n.Recipients {
		e := mailer.BuildCompletionNoticeEmail(data)
		e.To = r.Email
		if err := m.send(ctx, "send completion notice", e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Mail) send(ctx context.Context, op string, e mailer.Email) error {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Notify(), m.log, op)
	defer cancel()

	if err := m.sender.Send(ctx, e); err != nil {
		m.log.Warn("notification failed",
			zap.String("operation", op),
			zap.String("to", e.To),
			zap.Error(err))
		return fmt.Errorf("%w: %s to %s: %w", committee.ErrNotificationFailed, op, e.To, err)
	}
	return nil
}

func expiresIn(days int) string {
	if days <= 1 {
		return "1 day"
	}
	return strconv.Itoa(days) + " days"
}

// LogSender writes emails to the log instead of delivering them. It is used
// when no SMTP host is configured.
type LogSender struct {
	Log *zap.Logger
}

// Send logs e.
func (s LogSender) Send(_ context.Context, e mailer.Email) error {
	if strings.TrimSpace(e.To) == "" {
		return mailer.ErrNoRecipient
	}
	s.Log.Info("email (not sent, mail disabled)",
		zap.String("to", e.To),
		zap.String("subject", e.Subject),
		zap.String("body", e.TextBody))
	return nil
}
