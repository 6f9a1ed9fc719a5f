// internal/app/committees/service.go
//
// Package committees runs the hiring-committee workflow on top of the stores:
// assigning panels, tracking progress, issuing and redeeming feedback links,
// and handing off completed committees.
package committees

import (
	"context"
	"errors"
	"fmt"
	"time"

	applicationstore "github.com/dalemusser/recruithub/internal/app/store/applications"
	committeestore "github.com/dalemusser/recruithub/internal/app/store/committees"
	templatestore "github.com/dalemusser/recruithub/internal/app/store/committeetemplates"
	"github.com/dalemusser/recruithub/internal/app/store/feedbacktokens"
	userstore "github.com/dalemusser/recruithub/internal/app/store/users"
	"github.com/dalemusser/recruithub/internal/app/system/auditlog"
	"github.com/dalemusser/recruithub/internal/app/system/metrics"
	"github.com/dalemusser/recruithub/internal/app/system/status"
	"github.com/dalemusser/recruithub/internal/domain/committee"
	"github.com/dalemusser/recruithub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// maxWriteAttempts bounds the load-mutate-replace cycle on version conflicts.
const maxWriteAttempts = 5

// Directory resolves portal users. *userstore.Store implements it.
// Lookups that find nothing return userstore.ErrNotFound.
type Directory interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error)
	FindHRManager(ctx context.Context) (*models.User, error)
}

// Deps holds the collaborators of a Service. DB and Log are required.
type Deps struct {
	DB        *mongo.Database
	Log       *zap.Logger
	Audit     *auditlog.Logger
	Metrics   *metrics.Metrics
	Directory Directory
	Now       func() time.Time
}

// Service owns committee state. It does not send notifications; see Orchestrator.
type Service struct {
	db        *mongo.Database
	log       *zap.Logger
	audit     *auditlog.Logger
	metrics   *metrics.Metrics
	directory Directory
	now       func() time.Time

	committees   *committeestore.Store
	templates    *templatestore.Store
	tokens       *feedbacktokens.Store
	applications *applicationstore.Store
}

// NewService creates a Service. A nil Directory uses the users collection.
func NewService(d Deps) *Service {
	s := &Service{
		db:           d.DB,
		log:          d.Log,
		audit:        d.Audit,
		metrics:      d.Metrics,
		directory:    d.Directory,
		now:          d.Now,
		committees:   committeestore.New(d.DB),
		templates:    templatestore.New(d.DB),
		tokens:       feedbacktokens.New(d.DB),
		applications: applicationstore.New(d.DB),
	}
	if s.directory == nil {
		s.directory = userstore.New(d.DB)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.tokens.SetClock(s.clock)
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// Tokens exposes the token store to the sweep worker.
func (s *Service) Tokens() *feedbacktokens.Store {
	return s.tokens
}

// MemberSpec names a reviewer for a custom committee.
type MemberSpec struct {
	UserID    primitive.ObjectID `json:"user_id"`
	Role      string             `json:"role"`
	IsPrimary bool               `json:"is_primary"`
}

// AssignTemplate creates the committee for applicationID from a template.
func (s *Service) AssignTemplate(ctx context.Context, applicationID, templateID primitive.ObjectID, actorID *primitive.ObjectID) (*models.ApplicationCommittee, error) {
	tpl, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, templatestore.ErrNotFound) {
			return nil, fmt.Errorf("template %s: %w", templateID.Hex(), committee.ErrNotFound)
		}
		return nil, err
	}
	if !tpl.IsActive {
		return nil, fmt.Errorf("%w: template %q is inactive", committee.ErrInvalidInput, tpl.Name)
	}

	specs := make([]MemberSpec, 0, len(tpl.Members))
	for _, m := range tpl.Members {
		specs = append(specs, MemberSpec{UserID: m.UserID, Role: m.Role, IsPrimary: m.IsPrimary})
	}
	tid := tpl.ID
	return s.assign(ctx, applicationID, &tid, specs, committee.SettingsFromTemplate(tpl.Settings), actorID)
}

// AssignCustom creates the committee for applicationID from an explicit roster.
// Unset settings take the package defaults.
func (s *Service) AssignCustom(ctx context.Context, applicationID primitive.ObjectID, members []MemberSpec, settings committee.Settings, actorID *primitive.ObjectID) (*models.ApplicationCommittee, error) {
	return s.assign(ctx, applicationID, nil, members, settings, actorID)
}

func (s *Service) assign(ctx context.Context, applicationID primitive.ObjectID, templateID *primitive.ObjectID, specs []MemberSpec, settings committee.Settings, actorID *primitive.ObjectID) (*models.ApplicationCommittee, error) {
	if _, err := s.application(ctx, applicationID); err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: a committee needs at least one member", committee.ErrInvalidInput)
	}

	// Fast path; the unique index on assigned_application_id is the real guard.
	if existing, err := s.committees.GetByApplication(ctx, applicationID); err == nil && existing.Status != models.CommitteeCancelled {
		return nil, committee.ErrAlreadyAssigned
	} else if err != nil && !errors.Is(err, committee.ErrNotFound) {
		return nil, err
	}

	members, err := s.resolveMembers(ctx, specs)
	if err != nil {
		return nil, err
	}
	hr := s.hrManager(ctx)

	c, err := committee.New(applicationID, templateID, members, settings, hr, s.clock())
	if err != nil {
		return nil, err
	}
	c.CreatedBy = actorID
	if !committee.HasHRManager(&c) {
		s.log.Warn("committee has no HR manager",
			zap.String("application_id", applicationID.Hex()))
	}

	if err := s.committees.Create(ctx, &c); err != nil {
		return nil, err
	}

	s.metrics.CommitteeCreated()
	s.audit.CommitteeCreated(ctx, &c, actorID)
	s.log.Info("committee assigned",
		zap.String("committee_id", c.ID.Hex()),
		zap.String("application_id", applicationID.Hex()),
		zap.Int("members", len(c.Members)))
	return &c, nil
}

func (s *Service) resolveMembers(ctx context.Context, specs []MemberSpec) ([]committee.MemberInput, error) {
	ids := make([]primitive.ObjectID, 0, len(specs))
	for _, m := range specs {
		ids = append(ids, m.UserID)
	}
	users, err := s.directory.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]committee.MemberInput, 0, len(specs))
	for _, m := range specs {
		u, ok := users[m.UserID]
		if !ok {
			return nil, fmt.Errorf("%w: user %s not found", committee.ErrInvalidInput, m.UserID.Hex())
		}
		if u.Status == status.Disabled {
			return nil, fmt.Errorf("%w: user %s is disabled", committee.ErrInvalidInput, u.Email)
		}
		role := m.Role
		if role == "" {
			role = u.Role
		}
		out = append(out, committee.MemberInput{
			UserID:    u.ID,
			Email:     u.Email,
			Name:      u.FullName,
			Role:      role,
			IsPrimary: m.IsPrimary,
		})
	}
	return out, nil
}

// hrManager returns the HR manager to seat on new committees, or nil when the
// portal has none.
func (s *Service) hrManager(ctx context.Context) *committee.MemberInput {
	u, err := s.directory.FindHRManager(ctx)
	if err != nil {
		if !errors.Is(err, userstore.ErrNotFound) {
			s.log.Error("HR manager lookup failed", zap.Error(err))
		}
		return nil
	}
	return &committee.MemberInput{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.FullName,
		Role:   models.RoleHRManager,
	}
}

// Get loads a committee.
func (s *Service) Get(ctx context.Context, committeeID primitive.ObjectID) (*models.ApplicationCommittee, error) {
	return s.committees.GetByID(ctx, committeeID)
}

// GetProgress summarizes a committee.
func (s *Service) GetProgress(ctx context.Context, committeeID primitive.ObjectID) (committee.Progress, error) {
	c, err := s.committees.GetByID(ctx, committeeID)
	if err != nil {
		return committee.Progress{}, err
	}
	return committee.ProgressOf(c), nil
}

// Cancel cancels an active committee and revokes its outstanding links.
func (s *Service) Cancel(ctx context.Context, committeeID, by primitive.ObjectID, reason string) (*models.ApplicationCommittee, error) {
	c, err := s.mutate(ctx, committeeID, func(c *models.ApplicationCommittee) error {
		return committee.Cancel(c, by, reason, s.clock())
	})
	if err != nil {
		return nil, err
	}

	n, err := s.tokens.RevokeForCommittee(ctx, c.ID)
	if err != nil {
		s.log.Error("revoke committee tokens failed",
			zap.String("committee_id", c.ID.Hex()),
			zap.Error(err))
	}

	var actor *primitive.ObjectID
	if !by.IsZero() {
		actor = &by
	}
	s.metrics.CommitteeCancelled()
	s.audit.CommitteeCancelled(ctx, c, actor)
	s.log.Info("committee cancelled",
		zap.String("committee_id", c.ID.Hex()),
		zap.Int64("tokens_revoked", n))
	return c, nil
}

// TokenContext is what a reviewer sees when opening a feedback link.
type TokenContext struct {
	Token       *models.FeedbackToken
	Application *models.Application
	Committee   *models.ApplicationCommittee
	Member      *models.CommitteeMember
}

// VerifyToken checks a feedback link without consuming it.
func (s *Service) VerifyToken(ctx context.Context, plain string) (*TokenContext, error) {
	tok, err := s.tokens.Verify(ctx, plain)
	if err != nil {
		err = s.closedCommittee(ctx, plain, err)
		s.rejected(ctx, err)
		return nil, err
	}
	app, err := s.application(ctx, tok.ApplicationID)
	if err != nil {
		return nil, err
	}
	tc := &TokenContext{Token: tok, Application: app}
	if tok.ApplicationCommitteeID == nil {
		return tc, nil
	}

	c, err := s.committees.GetByID(ctx, *tok.ApplicationCommitteeID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.CommitteeActive {
		return nil, committee.ErrInvalidTransition
	}
	for i := range c.Members {
		if c.Members[i].Email == tok.ReviewerEmail {
			if c.Members[i].Status == models.MemberSubmitted {
				return nil, committee.ErrAlreadySubmitted
			}
			tc.Member = &c.Members[i]
			break
		}
	}
	if tc.Member == nil {
		return nil, committee.ErrNotAMember
	}
	tc.Committee = c
	return tc, nil
}

// closedCommittee reports a link revoked by its committee closing as
// ErrInvalidTransition. Any other error is returned unchanged.
func (s *Service) closedCommittee(ctx context.Context, plain string, err error) error {
	if !errors.Is(err, feedbacktokens.ErrRevoked) {
		return err
	}
	tok, lerr := s.tokens.Lookup(ctx, plain)
	if lerr != nil || tok.ApplicationCommitteeID == nil {
		return err
	}
	c, cerr := s.committees.GetByID(ctx, *tok.ApplicationCommitteeID)
	if cerr != nil || !c.IsTerminal() {
		return err
	}
	return committee.ErrInvalidTransition
}

// rejected records a token that could not be used.
func (s *Service) rejected(ctx context.Context, err error) {
	var reason string
	switch {
	case errors.Is(err, committee.ErrTokenExpired):
		reason = "expired"
	case errors.Is(err, committee.ErrTokenAlreadyRedeemed):
		reason = "redeemed"
	case errors.Is(err, feedbacktokens.ErrRevoked):
		reason = "revoked"
	case errors.Is(err, committee.ErrNotFound):
		reason = "not_found"
	case errors.Is(err, committee.ErrInvalidTransition):
		reason = "committee_closed"
	default:
		return
	}
	s.metrics.TokenRejected(reason)
	s.audit.TokenRejected(ctx, reason)
}

func (s *Service) application(ctx context.Context, id primitive.ObjectID) (*models.Application, error) {
	app, err := s.applications.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, applicationstore.ErrNotFound) {
			return nil, fmt.Errorf("application %s: %w", id.Hex(), committee.ErrNotFound)
		}
		return nil, err
	}
	return app, nil
}

// errNoChange lets a mutate callback skip the write.
var errNoChange = errors.New("no change")

// mutate loads the committee, applies fn and writes the result if the stored
// version is unchanged, retrying the whole cycle on conflict.
func (s *Service) mutate(ctx context.Context, id primitive.ObjectID, fn func(c *models.ApplicationCommittee) error) (*models.ApplicationCommittee, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		c, err := s.committees.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(c); err != nil {
			if errors.Is(err, errNoChange) {
				return c, nil
			}
			return nil, err
		}
		err = s.committees.Replace(ctx, c)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, committeestore.ErrVersionConflict) {
			return nil, err
		}
		s.metrics.WriteConflict()
		s.log.Debug("committee write conflict, retrying",
			zap.String("committee_id", id.Hex()),
			zap.Int("attempt", attempt))
	}
	return nil, committee.ErrConcurrentConflict
}
