// internal/app/committees/orchestrator.go
package committees

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/recruithub/internal/app/store/feedbacktokens"
	"github.com/dalemusser/recruithub/internal/app/store/notifyprefs"
	userstore "github.com/dalemusser/recruithub/internal/app/store/users"
	"github.com/dalemusser/recruithub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/recruithub/internal/app/system/normalize"
	"github.com/dalemusser/recruithub/internal/app/system/notify"
	"github.com/dalemusser/recruithub/internal/app/system/txn"
	"github.com/dalemusser/recruithub/internal/domain/committee"
	"github.com/dalemusser/recruithub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Dispatch reasons reported per member.
const (
	ReasonSent               = "sent"
	ReasonPreferenceDisabled = "preference_disabled"
	ReasonSendError          = "send_error"
	ReasonTokenError         = "token_error"
	ReasonAlreadyHasToken    = "already_has_token"
)

// Notification event labels for metrics.
const (
	eventRequest    = "feedback_request"
	eventReminder   = "feedback_reminder"
	eventCompletion = "committee_completed"
)

// Eligibility decides whether a user wants a kind of notification.
// *notifyprefs.Store implements it.
type Eligibility interface {
	ShouldNotify(ctx context.Context, userID primitive.ObjectID, eventType string) (bool, error)
}

// Dispatcher delivers notifications. *notify.Mail implements it.
type Dispatcher interface {
	SendFeedbackRequest(ctx context.Context, req notify.FeedbackRequest) error
	SendCompletionNotice(ctx context.Context, n notify.CompletionNotice) error
}

// Config controls link building and fan-out.
type Config struct {
	// BaseURL is the public site root used to build feedback links.
	BaseURL string
	// TokenTTL is how long a feedback link stays valid.
	TokenTTL time.Duration
	// Concurrency bounds parallel sends within one dispatch.
	Concurrency int
}

// Orchestrator ties token issuance and notifications to committee state.
type Orchestrator struct {
	*Service
	cfg         Config
	dispatcher  Dispatcher
	eligibility Eligibility
}

// NewOrchestrator creates an Orchestrator. A nil Eligibility reads the
// notification_preferences collection.
func NewOrchestrator(svc *Service, dispatcher Dispatcher, eligibility Eligibility, cfg Config) *Orchestrator {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = feedbacktokens.DefaultTTL
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if eligibility == nil {
		eligibility = notifyprefs.New(svc.db)
	}
	return &Orchestrator{Service: svc, cfg: cfg, dispatcher: dispatcher, eligibility: eligibility}
}

// MemberResult is the dispatch outcome for one member.
type MemberResult struct {
	UserID primitive.ObjectID `json:"user_id"`
	Email  string             `json:"email"`
	Reason string             `json:"reason"`
	Error  string             `json:"error,omitempty"`

	tokenID *primitive.ObjectID
}

// DispatchResult summarizes a dispatch or reminder run. Members that opted
// out or already hold a link count as neither sent nor failed.
type DispatchResult struct {
	Sent    int            `json:"sent"`
	Failed  int            `json:"failed"`
	Results []MemberResult `json:"results"`
}

func (r *DispatchResult) tally() {
	for _, m := range r.Results {
		switch m.Reason {
		case ReasonSent:
			r.Sent++
		case ReasonSendError, ReasonTokenError:
			r.Failed++
		}
	}
}

// FeedbackLink returns the public URL for a plain token.
func (o *Orchestrator) FeedbackLink(token string) string {
	return strings.TrimRight(o.cfg.BaseURL, "/") + "/feedback/" + url.PathEscape(token)
}

func (o *Orchestrator) ttlDays() int {
	d := int(o.cfg.TokenTTL / (24 * time.Hour))
	if d < 1 {
		d = 1
	}
	return d
}

// DispatchRequests issues a link to every pending member without one and
// emails it. Per-member failures are reported in the result; members whose
// send failed stay pending without a token.
func (o *Orchestrator) DispatchRequests(ctx context.Context, committeeID primitive.ObjectID, actorID *primitive.ObjectID) (*DispatchResult, error) {
	c, err := o.committees.GetByID(ctx, committeeID)
	if err != nil {
		return nil, err
	}
	if c.IsTerminal() {
		return nil, committee.ErrInvalidTransition
	}
	app, err := o.application(ctx, c.ApplicationID)
	if err != nil {
		return nil, err
	}

	pending := committee.PendingMembers(c)
	res := &DispatchResult{Results: make([]MemberResult, len(pending))}

	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for i, m := range pending {
		g.Go(func() error {
			res.Results[i] = o.request(ctx, c, app, m, actorID, nil)
			return nil
		})
	}
	_ = g.Wait()
	res.tally()

	now := o.clock()
	_, err = o.mutate(ctx, c.ID, func(c *models.ApplicationCommittee) error {
		if c.IsTerminal() {
			return committee.ErrInvalidTransition
		}
		changed := false
		for _, r := range res.Results {
			if r.Reason != ReasonSent {
				continue
			}
			i := c.MemberIndex(r.UserID)
			if i < 0 || c.Members[i].Status != models.MemberPending {
				continue
			}
			c.Members[i].TokenID = r.tokenID
			c.Members[i].NotifiedAt = &now
			changed = true
		}
		if !changed {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		o.abandon(ctx, c.ID, err)
		return res, fmt.Errorf("record dispatch: %w", err)
	}

	o.log.Info("feedback requests dispatched",
		zap.String("committee_id", c.ID.Hex()),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed))
	return res, nil
}

// request issues a link for m and sends it. On send failure the link is
// revoked so the member is left without a live token.
//
// A non-nil rotate makes this a reminder; *rotate is the member's current
// link, or the zero ID when there is none. That link is revoked only once the
// member is eligible, and is reinstated when its replacement cannot be
// delivered. r.tokenID then names the link the member still holds.
func (o *Orchestrator) request(ctx context.Context, c *models.ApplicationCommittee, app *models.Application, m models.CommitteeMember, actorID *primitive.ObjectID, rotate *primitive.ObjectID) (r MemberResult) {
	r = MemberResult{UserID: m.UserID, Email: m.Email}
	reminder := rotate != nil
	event := eventRequest
	prefEvent := models.NotifyFeedbackRequest
	if reminder {
		event = eventReminder
		prefEvent = models.NotifyFeedbackReminder
	}
	defer func() {
		o.metrics.Notification(event, r.Reason)
		o.audit.FeedbackNotified(ctx, c, m.Email, reminder, r.Reason)
	}()

	ok, err := o.eligibility.ShouldNotify(ctx, m.UserID, prefEvent)
	if err != nil {
		// Preferences default to allowed.
		o.log.Warn("notification preference lookup failed",
			zap.String("user_id", m.UserID.Hex()),
			zap.Error(err))
	} else if !ok {
		r.Reason = ReasonPreferenceDisabled
		return r
	}

	if reminder && !rotate.IsZero() {
		if err := o.tokens.Revoke(ctx, *rotate); err != nil {
			o.log.Warn("revoke previous token failed", zap.String("token_id", rotate.Hex()), zap.Error(err))
		}
		defer func() {
			if r.Reason != ReasonSent {
				r.tokenID = o.reinstate(ctx, *rotate)
			}
		}()
	}

	cid := c.ID
	plain, tok, err := o.tokens.Issue(ctx, feedbacktokens.IssueParams{
		ApplicationID: c.ApplicationID,
		CommitteeID:   &cid,
		ReviewerEmail: m.Email,
		ReviewerName:  m.Name,
		CommitteeRole: m.Role,
		TTL:           o.cfg.TokenTTL,
		CreatedBy:     actorID,
	})
	if err != nil {
		if errors.Is(err, committee.ErrDuplicateActiveToken) {
			r.Reason = ReasonAlreadyHasToken
			return r
		}
		r.Reason = ReasonTokenError
		r.Error = err.Error()
		o.log.Error("issue feedback token failed",
			zap.String("committee_id", c.ID.Hex()),
			zap.String("email", m.Email),
			zap.Error(err))
		return r
	}
	o.metrics.TokenIssued()

	err = o.dispatcher.SendFeedbackRequest(ctx, notify.FeedbackRequest{
		Reviewer:    m,
		Application: app,
		Link:        o.FeedbackLink(plain),
		TTLDays:     o.ttlDays(),
		Deadline:    c.Settings.FeedbackDeadline,
		Reminder:    reminder,
	})
	if err != nil {
		if rerr := o.tokens.Revoke(ctx, tok.ID); rerr != nil {
			o.log.Error("revoke unsent token failed", zap.String("token_id", tok.ID.Hex()), zap.Error(rerr))
		}
		r.Reason = ReasonSendError
		r.Error = err.Error()
		return r
	}

	if err := o.tokens.MarkSent(ctx, tok.ID, o.clock()); err != nil {
		o.log.Warn("mark token sent failed", zap.String("token_id", tok.ID.Hex()), zap.Error(err))
	}
	r.Reason = ReasonSent
	r.tokenID = &tok.ID
	return r
}

// reinstate restores a link revoked for a reminder that failed. It returns
// the link's ID when it is live again.
func (o *Orchestrator) reinstate(ctx context.Context, id primitive.ObjectID) *primitive.ObjectID {
	ok, err := o.tokens.Reinstate(ctx, id)
	if err != nil {
		o.log.Error("reinstate previous token failed", zap.String("token_id", id.Hex()), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return &id
}

// FeedbackInput is a reviewer's submission.
type FeedbackInput struct {
	OverallScore   *float64 `json:"overall_score"`
	Recommendation string   `json:"recommendation"`
	Notes          string   `json:"notes"`
	Strengths      []string `json:"strengths"`
	Weaknesses     []string `json:"weaknesses"`
}

func (in FeedbackInput) clean() (FeedbackInput, error) {
	out := FeedbackInput{
		OverallScore:   in.OverallScore,
		Recommendation: normalize.Recommendation(in.Recommendation),
		Notes:          htmlsanitize.StripTags(in.Notes),
		Strengths:      htmlsanitize.StripTagsList(in.Strengths),
		Weaknesses:     htmlsanitize.StripTagsList(in.Weaknesses),
	}
	if out.OverallScore != nil && (*out.OverallScore < 0 || *out.OverallScore > 10) {
		return out, fmt.Errorf("%w: overall_score must be between 0 and 10", committee.ErrInvalidInput)
	}
	switch out.Recommendation {
	case models.FeedbackRecommend, models.FeedbackNotRecommend, models.FeedbackPending:
	case "":
		out.Recommendation = models.FeedbackPending
	default:
		return out, fmt.Errorf("%w: unknown recommendation %q", committee.ErrInvalidInput, in.Recommendation)
	}
	return out, nil
}

// SubmitResult describes a recorded submission.
type SubmitResult struct {
	Feedback  models.ManagerFeedback       `json:"feedback"`
	Committee *models.ApplicationCommittee `json:"committee,omitempty"`
	Completed bool                         `json:"completed"`
}

// SubmitFeedback redeems the link and records the feedback as one unit: the
// link is consumed only if the submission is recorded. When the submission
// completes the committee, the completion notice is handed off once.
func (o *Orchestrator) SubmitFeedback(ctx context.Context, plain string, in FeedbackInput) (*SubmitResult, error) {
	in, err := in.clean()
	if err != nil {
		return nil, err
	}

	var res *SubmitResult
	err = txn.Run(ctx, o.db, o.log, func(ctx context.Context) error {
		res = nil
		tok, err := o.tokens.Redeem(ctx, plain)
		if err != nil {
			return err
		}
		r, err := o.record(ctx, tok, in)
		if err != nil {
			o.compensate(ctx, tok)
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		err = o.closedCommittee(ctx, plain, err)
		o.rejected(ctx, err)
		return nil, err
	}

	o.metrics.TokenRedeemed()
	o.metrics.FeedbackSubmitted()
	if res.Committee != nil {
		o.audit.FeedbackSubmitted(ctx, res.Committee, res.Feedback.ReviewerEmail, res.Feedback.Recommendation)
	}
	if res.Completed {
		o.metrics.CommitteeCompleted()
		o.audit.CommitteeCompleted(ctx, res.Committee)
		o.log.Info("committee completed",
			zap.String("committee_id", res.Committee.ID.Hex()),
			zap.String("recommendation", res.Committee.VotingResults.Recommendation),
			zap.Float64("average_score", res.Committee.VotingResults.AverageScore))
		if _, err := o.tokens.RevokeForCommittee(ctx, res.Committee.ID); err != nil {
			o.log.Warn("revoke outstanding tokens failed", zap.String("committee_id", res.Committee.ID.Hex()), zap.Error(err))
		}
		o.handOff(ctx, res.Committee)
	}
	return res, nil
}

// record writes the feedback for a redeemed token and updates its committee.
func (o *Orchestrator) record(ctx context.Context, tok *models.FeedbackToken, in FeedbackInput) (*SubmitResult, error) {
	rec := models.ManagerFeedback{
		TokenID:        &tok.ID,
		ReviewerEmail:  tok.ReviewerEmail,
		ReviewerName:   tok.ReviewerName,
		Role:           tok.CommitteeRole,
		OverallScore:   in.OverallScore,
		Recommendation: in.Recommendation,
		Notes:          in.Notes,
		Strengths:      in.Strengths,
		Weaknesses:     in.Weaknesses,
		SubmittedAt:    o.clock(),
	}

	if tok.ApplicationCommitteeID == nil {
		stored, err := o.applications.AddFeedback(ctx, tok.ApplicationID, rec)
		if err != nil {
			return nil, err
		}
		return &SubmitResult{Feedback: stored}, nil
	}

	user, err := o.directory.FindUserByEmail(ctx, tok.ReviewerEmail)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return nil, committee.ErrNotAMember
		}
		return nil, err
	}

	// Reject before writing the record when the outcome is already known.
	c, err := o.committees.GetByID(ctx, *tok.ApplicationCommitteeID)
	if err != nil {
		return nil, err
	}
	if err := checkSeat(c, user.ID, tok.ReviewerEmail); err != nil {
		return nil, err
	}

	stored, err := o.applications.AddFeedback(ctx, tok.ApplicationID, rec)
	if err != nil {
		return nil, err
	}

	var completed bool
	c, err = o.mutate(ctx, c.ID, func(c *models.ApplicationCommittee) error {
		records, err := o.applications.ListFeedback(ctx, c.ApplicationID)
		if err != nil {
			return err
		}
		completed, err = committee.RecordFeedback(c, user.ID, records, o.clock())
		return err
	})
	if err != nil {
		return nil, err
	}
	return &SubmitResult{Feedback: stored, Committee: c, Completed: completed}, nil
}

func checkSeat(c *models.ApplicationCommittee, userID primitive.ObjectID, email string) error {
	if c.Status != models.CommitteeActive {
		return committee.ErrInvalidTransition
	}
	i := c.MemberIndex(userID)
	if i < 0 || c.Members[i].Email != email {
		return committee.ErrNotAMember
	}
	if c.Members[i].Status == models.MemberSubmitted {
		return committee.ErrAlreadySubmitted
	}
	return nil
}

// compensate undoes a redeem and its feedback record after a failed
// submission. Inside a transaction these writes are discarded with it.
func (o *Orchestrator) compensate(ctx context.Context, tok *models.FeedbackToken) {
	if err := o.applications.RemoveFeedbackByToken(ctx, tok.ApplicationID, tok.ID); err != nil {
		o.log.Debug("remove feedback record failed", zap.String("token_id", tok.ID.Hex()), zap.Error(err))
	}
	if err := o.tokens.Release(ctx, tok.ID); err != nil {
		o.log.Debug("release token failed", zap.String("token_id", tok.ID.Hex()), zap.Error(err))
	}
}

// handOff sends the completion notice if this caller wins the claim.
func (o *Orchestrator) handOff(ctx context.Context, c *models.ApplicationCommittee) {
	claimed, err := o.committees.ClaimCompletionNotice(ctx, c.ID, o.clock())
	if err != nil {
		o.log.Error("claim completion notice failed", zap.String("committee_id", c.ID.Hex()), zap.Error(err))
		return
	}
	if !claimed {
		return
	}

	app, err := o.application(ctx, c.ApplicationID)
	if err != nil {
		o.log.Error("load application for completion notice failed", zap.Error(err))
		o.metrics.Notification(eventCompletion, ReasonSendError)
		return
	}

	var recipients []models.CommitteeMember
	for _, m := range completionRecipients(c) {
		ok, err := o.eligibility.ShouldNotify(ctx, m.UserID, models.NotifyCommitteeCompleted)
		if err != nil || ok {
			recipients = append(recipients, m)
		}
	}
	if len(recipients) == 0 {
		o.metrics.Notification(eventCompletion, ReasonPreferenceDisabled)
		return
	}

	err = o.dispatcher.SendCompletionNotice(ctx, notify.CompletionNotice{
		Recipients:  recipients,
		Committee:   c,
		Application: app,
	})
	if err != nil {
		o.log.Warn("completion notice failed", zap.String("committee_id", c.ID.Hex()), zap.Error(err))
		o.metrics.Notification(eventCompletion, ReasonSendError)
		return
	}
	o.metrics.Notification(eventCompletion, ReasonSent)
}

// completionRecipients are the HR managers, hiring managers and primary
// reviewers of c.
func completionRecipients(c *models.ApplicationCommittee) []models.CommitteeMember {
	var out []models.CommitteeMember
	for _, m := range c.Members {
		if m.IsPrimary || m.Role == models.RoleHRManager || m.Role == models.RoleHiringManager {
			out = append(out, m)
		}
	}
	return out
}

// SendReminders sends a fresh link to every pending member of an active
// committee whose reminder window is open. Outside the window nothing is sent.
// Unlike SweepReminders it ignores the per-member cooldown.
func (o *Orchestrator) SendReminders(ctx context.Context, committeeID primitive.ObjectID) (*DispatchResult, error) {
	c, err := o.committees.GetByID(ctx, committeeID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.CommitteeActive {
		return nil, committee.ErrInvalidTransition
	}
	if !committee.NeedsReminder(c, o.clock()) {
		return &DispatchResult{Results: []MemberResult{}}, nil
	}
	return o.remind(ctx, c, func(m models.CommitteeMember) bool {
		return m.Status == models.MemberPending
	})
}

// remind replaces the live link of each selected member with a new one and
// sends it as a reminder. Links cannot be re-sent because only their hash is
// stored. Members who opted out of reminders keep their current link.
func (o *Orchestrator) remind(ctx context.Context, c *models.ApplicationCommittee, due func(models.CommitteeMember) bool) (*DispatchResult, error) {
	app, err := o.application(ctx, c.ApplicationID)
	if err != nil {
		return nil, err
	}

	var members []models.CommitteeMember
	for _, m := range c.Members {
		if due(m) {
			members = append(members, m)
		}
	}
	res := &DispatchResult{Results: make([]MemberResult, len(members))}

	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for i, m := range members {
		g.Go(func() error {
			prev := primitive.NilObjectID
			if m.TokenID != nil {
				prev = *m.TokenID
			}
			res.Results[i] = o.request(ctx, c, app, m, nil, &prev)
			return nil
		})
	}
	_ = g.Wait()
	res.tally()

	now := o.clock()
	_, err = o.mutate(ctx, c.ID, func(c *models.ApplicationCommittee) error {
		if c.IsTerminal() {
			return committee.ErrInvalidTransition
		}
		changed := false
		for _, r := range res.Results {
			i := c.MemberIndex(r.UserID)
			if i < 0 || c.Members[i].Status != models.MemberPending {
				continue
			}
			switch r.Reason {
			case ReasonSent:
				m := &c.Members[i]
				m.TokenID = r.tokenID
				m.ReminderSentAt = &now
				m.ReminderCount++
				if m.NotifiedAt == nil {
					m.NotifiedAt = &now
				}
				changed = true
			case ReasonSendError, ReasonTokenError:
				// The previous link is live only if it was reinstated.
				if r.tokenID == nil && c.Members[i].TokenID != nil {
					c.Members[i].TokenID = nil
					changed = true
				}
			}
		}
		if !changed {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		o.abandon(ctx, c.ID, err)
		return res, fmt.Errorf("record reminders: %w", err)
	}
	return res, nil
}

// abandon revokes links issued during a run whose committee finished or was
// cancelled before the run could be recorded.
func (o *Orchestrator) abandon(ctx context.Context, committeeID primitive.ObjectID, err error) {
	if !errors.Is(err, committee.ErrInvalidTransition) {
		return
	}
	if _, rerr := o.tokens.RevokeForCommittee(ctx, committeeID); rerr != nil {
		o.log.Error("revoke tokens of closed committee failed",
			zap.String("committee_id", committeeID.Hex()),
			zap.Error(rerr))
	}
}

// SweepResult summarizes one reminder sweep.
type SweepResult struct {
	Committees int `json:"committees"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}

// SweepReminders reminds pending members of every active committee whose
// deadline window is open. Members are reminded at most once per
// committee.ReminderCooldown. A failing committee does not stop the sweep.
func (o *Orchestrator) SweepReminders(ctx context.Context) (SweepResult, error) {
	var out SweepResult
	now := o.clock()

	candidates, err := o.committees.ListReminderCandidates(ctx, now, committee.ReminderWindow)
	if err != nil {
		return out, err
	}
	for i := range candidates {
		c := &candidates[i]
		if !committee.NeedsReminder(c, now) {
			continue
		}
		res, err := o.remind(ctx, c, func(m models.CommitteeMember) bool {
			return committee.MemberDueReminder(m, now)
		})
		if res != nil {
			out.Sent += res.Sent
			out.Failed += res.Failed
		}
		if err != nil {
			o.log.Warn("reminder sweep failed for committee",
				zap.String("committee_id", c.ID.Hex()),
				zap.Error(err))
			continue
		}
		if len(res.Results) > 0 {
			out.Committees++
		}
	}

	o.metrics.SweepCompleted()
	return out, nil
}
