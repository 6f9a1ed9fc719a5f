// Package committee holds the application-committee aggregate: creation,
// the member and committee state machines, completion and reminder rules.
//
// Functions here are pure; callers own persistence and serialization.
package committee

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/recruithub/internal/domain/models"
	"github.com/dalemusser/recruithub/internal/domain/voting"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Default settings for custom committees.
const (
	DefaultMinFeedbackRequired  = 2
	DefaultFeedbackDeadlineDays = 7
	DefaultVotingMechanism      = models.VotingAverage

	// ReminderWindow is how long before the deadline reminders start.
	ReminderWindow = 48 * time.Hour
	// ReminderCooldown is the minimum gap between sweep reminders to one member.
	ReminderCooldown = 24 * time.Hour
)

// MemberInput is a resolved reviewer to seat on a committee.
type MemberInput struct {
	UserID    primitive.ObjectID
	Email     string
	Name      string
	Role      string
	IsPrimary bool
}

// Settings are creation-time settings. Nil pointers take the defaults.
// FeedbackDeadlineDays of 0 means the committee has no deadline, so it is
// never inside a reminder window; use a positive value for now + N days.
type Settings struct {
	MinFeedbackRequired  *int
	RequireAllFeedback   bool
	FeedbackDeadlineDays *int
	VotingMechanism      string
}

// SettingsFromTemplate converts template settings to creation settings.
func SettingsFromTemplate(ts models.TemplateSettings) Settings {
	minFeedback := ts.MinFeedbackRequired
	days := ts.FeedbackDeadlineDays
	return Settings{
		MinFeedbackRequired:  &minFeedback,
		RequireAllFeedback:   ts.RequireAllFeedback,
		FeedbackDeadlineDays: &days,
		VotingMechanism:      ts.VotingMechanism,
	}
}

// New builds an active committee for applicationID with every member pending.
// If hr is non-nil and no member holds the HR-manager role, hr is appended.
func New(applicationID primitive.ObjectID, templateID *primitive.ObjectID, members []MemberInput, s Settings, hr *MemberInput, now time.Time) (models.ApplicationCommittee, error) {
	cs, err := resolveSettings(s, now)
	if err != nil {
		return models.ApplicationCommittee{}, err
	}

	seen := make(map[primitive.ObjectID]struct{}, len(members))
	roster := make([]models.CommitteeMember, 0, len(members)+1)
	for _, m := range members {
		if m.UserID.IsZero() {
			return models.ApplicationCommittee{}, fmt.Errorf("%w: member without user id", ErrInvalidInput)
		}
		if strings.TrimSpace(m.Email) == "" {
			return models.ApplicationCommittee{}, fmt.Errorf("%w: member %s has no email", ErrInvalidInput, m.UserID.Hex())
		}
		if _, dup := seen[m.UserID]; dup {
			return models.ApplicationCommittee{}, fmt.Errorf("%w: duplicate member %s", ErrInvalidInput, m.UserID.Hex())
		}
		seen[m.UserID] = struct{}{}
		roster = append(roster, newMember(m))
	}

	appID := applicationID
	c := models.ApplicationCommittee{
		ApplicationID:         applicationID,
		AssignedApplicationID: &appID,
		TemplateID:            templateID,
		Members:               roster,
		Status:                models.CommitteeActive,
		Settings:              cs,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	EnsureHRManager(&c, hr)
	Recalculate(&c, nil, now)
	return c, nil
}

// EnsureHRManager gives the committee an HR-manager member when it has none.
// If hr already holds a seat under another role that seat is promoted,
// otherwise hr is appended. It reports whether the roster changed.
func EnsureHRManager(c *models.ApplicationCommittee, hr *MemberInput) bool {
	if hr == nil {
		return false
	}
	for _, m := range c.Members {
		if m.Role == models.RoleHRManager {
			return false
		}
	}
	if i := c.MemberIndex(hr.UserID); i >= 0 {
		c.Members[i].Role = models.RoleHRManager
		return true
	}
	in := *hr
	in.Role = models.RoleHRManager
	c.Members = append(c.Members, newMember(in))
	c.VotingResults.TotalMembers = len(c.Members)
	return true
}

// HasHRManager reports whether any member holds the HR-manager role.
func HasHRManager(c *models.ApplicationCommittee) bool {
	for _, m := range c.Members {
		if m.Role == models.RoleHRManager {
			return true
		}
	}
	return false
}

// RecordFeedback marks userID's seat as submitted, recomputes the results from
// records (which must already include the new submission) and completes the
// committee when quorum is reached. It reports whether this call completed it.
func RecordFeedback(c *models.ApplicationCommittee, userID primitive.ObjectID, records []models.ManagerFeedback, now time.Time) (bool, error) {
	if c.Status != models.CommitteeActive {
		return false, ErrInvalidTransition
	}
	i := c.MemberIndex(userID)
	if i < 0 {
		return false, ErrNotAMember
	}
	if c.Members[i].Status == models.MemberSubmitted {
		return false, ErrAlreadySubmitted
	}

	at := now
	c.Members[i].Status = models.MemberSubmitted
	c.Members[i].SubmittedAt = &at

	Recalculate(c, SubmittedRecords(c, records), now)
	if IsComplete(c) {
		c.Status = models.CommitteeCompleted
		c.CompletedAt = &at
		return true, nil
	}
	return false, nil
}

// SubmittedRecords keeps the records of members who have submitted. A record
// written by a concurrent submission whose seat is not yet marked is left out
// until that submission lands.
func SubmittedRecords(c *models.ApplicationCommittee, records []models.ManagerFeedback) []models.ManagerFeedback {
	submitted := make(map[string]struct{}, len(c.Members))
	for _, m := range c.Members {
		if m.Status == models.MemberSubmitted {
			submitted[strings.ToLower(strings.TrimSpace(m.Email))] = struct{}{}
		}
	}
	out := make([]models.ManagerFeedback, 0, len(records))
	for _, r := range records {
		if _, ok := submitted[strings.ToLower(strings.TrimSpace(r.ReviewerEmail))]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Recalculate recomputes voting results. Calling it repeatedly without an
// intervening submission leaves the results unchanged apart from the timestamp.
func Recalculate(c *models.ApplicationCommittee, records []models.ManagerFeedback, now time.Time) {
	res := voting.Calculate(c.Members, records, c.Settings.VotingMechanism)
	at := now
	c.VotingResults = models.VotingResults{
		TotalMembers:         len(c.Members),
		SubmittedCount:       res.SubmittedCount,
		AverageScore:         res.AverageScore,
		Recommendation:       res.Recommendation,
		RecommendationCounts: res.RecommendationCounts,
		LastCalculatedAt:     &at,
	}
}

// IsComplete reports whether the committee has reached its quorum.
func IsComplete(c *models.ApplicationCommittee) bool {
	if c.Status == models.CommitteeCompleted {
		return true
	}
	if c.Settings.RequireAllFeedback {
		return c.VotingResults.SubmittedCount == c.VotingResults.TotalMembers
	}
	return c.VotingResults.SubmittedCount >= c.Settings.MinFeedbackRequired
}

// NeedsReminder reports whether now falls in the reminder window that closes
// at the feedback deadline.
func NeedsReminder(c *models.ApplicationCommittee, now time.Time) bool {
	if c.Status != models.CommitteeActive || c.Settings.FeedbackDeadline == nil {
		return false
	}
	deadline := *c.Settings.FeedbackDeadline
	return !now.Before(deadline.Add(-ReminderWindow)) && !now.After(deadline)
}

// MemberDueReminder reports whether a periodic sweep should remind m.
func MemberDueReminder(m models.CommitteeMember, now time.Time) bool {
	if m.Status != models.MemberPending {
		return false
	}
	return m.ReminderSentAt == nil || !now.Before(m.ReminderSentAt.Add(ReminderCooldown))
}

// Cancel moves an active committee to cancelled.
func Cancel(c *models.ApplicationCommittee, by primitive.ObjectID, reason string, now time.Time) error {
	if c.Status != models.CommitteeActive {
		return ErrInvalidTransition
	}
	at := now
	c.Status = models.CommitteeCancelled
	c.CancelledAt = &at
	if !by.IsZero() {
		cb := by
		c.CancelledBy = &cb
	}
	c.CancellationReason = strings.TrimSpace(reason)
	c.AssignedApplicationID = nil
	return nil
}

// PendingMembers returns the members that have not submitted feedback.
func PendingMembers(c *models.ApplicationCommittee) []models.CommitteeMember {
	var out []models.CommitteeMember
	for _, m := range c.Members {
		if m.Status == models.MemberPending {
			out = append(out, m)
		}
	}
	return out
}

// Progress is a read-only summary of a committee.
type Progress struct {
	CommitteeID    primitive.ObjectID       `json:"committee_id"`
	Status         string                   `json:"status"`
	SubmittedCount int                      `json:"submitted_count"`
	TotalMembers   int                      `json:"total_members"`
	PendingMembers []models.CommitteeMember `json:"pending_members"`
	IsComplete     bool                     `json:"is_complete"`
	Deadline       *time.Time               `json:"deadline,omitempty"`
	VotingResults  models.VotingResults     `json:"voting_results"`
}

// ProgressOf summarizes c.
func ProgressOf(c *models.ApplicationCommittee) Progress {
	pending := PendingMembers(c)
	if pending == nil {
		pending = []models.CommitteeMember{}
	}
	return Progress{
		CommitteeID:    c.ID,
		Status:         c.Status,
		SubmittedCount: c.VotingResults.SubmittedCount,
		TotalMembers:   c.VotingResults.TotalMembers,
		PendingMembers: pending,
		IsComplete:     IsComplete(c),
		Deadline:       c.Settings.FeedbackDeadline,
		VotingResults:  c.VotingResults,
	}
}

func newMember(m MemberInput) models.CommitteeMember {
	return models.CommitteeMember{
		UserID:    m.UserID,
		Email:     strings.ToLower(strings.TrimSpace(m.Email)),
		Name:      strings.TrimSpace(m.Name),
		Role:      m.Role,
		IsPrimary: m.IsPrimary,
		Status:    models.MemberPending,
	}
}

func resolveSettings(s Settings, now time.Time) (models.CommitteeSettings, error) {
	minFeedback := DefaultMinFeedbackRequired
	if s.MinFeedbackRequired != nil {
		minFeedback = *s.MinFeedbackRequired
	}
	if minFeedback < 1 {
		return models.CommitteeSettings{}, fmt.Errorf("%w: min_feedback_required must be at least 1", ErrInvalidInput)
	}

	days := DefaultFeedbackDeadlineDays
	if s.FeedbackDeadlineDays != nil {
		days = *s.FeedbackDeadlineDays
	}
	if days < 0 {
		return models.CommitteeSettings{}, fmt.Errorf("%w: feedback_deadline_days must not be negative", ErrInvalidInput)
	}

	mech := s.VotingMechanism
	if mech == "" {
		mech = DefaultVotingMechanism
	}
	if !voting.IsValidMechanism(mech) {
		return models.CommitteeSettings{}, fmt.Errorf("%w: unknown voting mechanism %q", ErrInvalidInput, mech)
	}

	cs := models.CommitteeSettings{
		MinFeedbackRequired: minFeedback,
		RequireAllFeedback:  s.RequireAllFeedback,
		VotingMechanism:     mech,
	}
	if days > 0 {
		deadline := now.AddDate(0, 0, days)
		cs.FeedbackDeadline = &deadline
	}
	return cs, nil
}
