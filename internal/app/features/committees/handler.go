// internal/app/features/committees/handler.go
package committees

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	committeesvc "github.com/dalemusser/recruithub/internal/app/committees"
	uierrors "github.com/dalemusser/recruithub/internal/app/features/errors"
	metricsstore "github.com/dalemusser/recruithub/internal/app/store/metrics"
	"github.com/dalemusser/recruithub/internal/app/system/limits"
	"github.com/dalemusser/recruithub/internal/app/system/timeouts"
	"github.com/dalemusser/recruithub/internal/domain/committee"
	"github.com/dalemusser/recruithub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Service is the committee workflow used by the operator endpoints.
// *committeesvc.Orchestrator implements it.
type Service interface {
	AssignTemplate(ctx context.Context, applicationID, templateID primitive.ObjectID, actorID *primitive.ObjectID) (*models.ApplicationCommittee, error)
	AssignCustom(ctx context.Context, applicationID primitive.ObjectID, members []committeesvc.MemberSpec, settings committee.Settings, actorID *primitive.ObjectID) (*models.ApplicationCommittee, error)
	GetProgress(ctx context.Context, committeeID primitive.ObjectID) (committee.Progress, error)
	DispatchRequests(ctx context.Context, committeeID primitive.ObjectID, actorID *primitive.ObjectID) (*committeesvc.DispatchResult, error)
	SendReminders(ctx context.Context, committeeID primitive.ObjectID) (*committeesvc.DispatchResult, error)
	Cancel(ctx context.Context, committeeID, by primitive.ObjectID, reason string) (*models.ApplicationCommittee, error)
}

// Handler serves the committee endpoints. Operator authentication is
// expected in front of this router.
type Handler struct {
	Svc    Service
	Counts func(ctx context.Context) metricsstore.Counts
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

// NewHandler constructs a committees Handler. Stats are read from db.
func NewHandler(svc Service, db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Svc: svc,
		Counts: func(ctx context.Context) metricsstore.Counts {
			return metricsstore.FetchCounts(ctx, db)
		},
		ErrLog: errLog,
		Log:    logger,
	}
}

var errBadID = errors.New("malformed id")

func parseID(s string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", errBadID, s)
	}
	return id, nil
}

// parseOptionalID returns nil for an empty string.
func parseOptionalID(s string) (*primitive.ObjectID, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	id, err := parseID(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// decode reads an optional JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxCommitteeBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// committeeID reads the {id} URL parameter, replying 400 when it is malformed.
func (h *Handler) committeeID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad committee id", err, "Invalid committee id.")
		return id, false
	}
	return id, true
}

type memberRequest struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	IsPrimary bool   `json:"is_primary"`
}

type settingsRequest struct {
	MinFeedbackRequired  *int   `json:"min_feedback_required"`
	RequireAllFeedback   bool   `json:"require_all_feedback"`
	FeedbackDeadlineDays *int   `json:"feedback_deadline_days"` // 0 means no deadline
	VotingMechanism      string `json:"voting_mechanism"`
}

type createRequest struct {
	ApplicationID string          `json:"application_id"`
	TemplateID    string          `json:"template_id"`
	Members       []memberRequest `json:"members"`
	Settings      settingsRequest `json:"settings"`
	ActorID       string          `json:"actor_id"`
}

// HandleCreate handles POST /committees. The body names either a template
// or an explicit member list.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decode(w, r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode committee failed", err, "The request body could not be read.")
		return
	}

	appID, err := parseID(req.ApplicationID)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad application id", err, "Invalid application_id.")
		return
	}
	actorID, err := parseOptionalID(req.ActorID)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad actor id", err, "Invalid actor_id.")
		return
	}
	hasTemplate := strings.TrimSpace(req.TemplateID) != ""
	if hasTemplate == (len(req.Members) > 0) {
		uierrors.Write(w, http.StatusBadRequest, "bad_request", "Provide either template_id or members.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var c *models.ApplicationCommittee
	if hasTemplate {
		tplID, perr := parseID(req.TemplateID)
		if perr != nil {
			h.ErrLog.LogBadRequest(w, r, "bad template id", perr, "Invalid template_id.")
			return
		}
		c, err = h.Svc.AssignTemplate(ctx, appID, tplID, actorID)
	} else {
		specs := make([]committeesvc.MemberSpec, 0, len(req.Members))
		for _, m := range req.Members {
			uid, perr := parseID(m.UserID)
			if perr != nil {
				h.ErrLog.LogBadRequest(w, r, "bad member id", perr, "Invalid member user_id.")
				return
			}
			specs = append(specs, committeesvc.MemberSpec{UserID: uid, Role: m.Role, IsPrimary: m.IsPrimary})
		}
		c, err = h.Svc.AssignCustom(ctx, appID, specs, committee.Settings{
			MinFeedbackRequired:  req.Settings.MinFeedbackRequired,
			RequireAllFeedback:   req.Settings.RequireAllFeedback,
			FeedbackDeadlineDays: req.Settings.FeedbackDeadlineDays,
			VotingMechanism:      req.Settings.VotingMechanism,
		}, actorID)
	}
	if err != nil {
		h.ErrLog.LogDomainError(w, r, "assign committee failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusCreated, c)
}

// ServeProgress handles GET /committees/{id}/progress.
func (h *Handler) ServeProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := h.committeeID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, err := h.Svc.GetProgress(ctx, id)
	if err != nil {
		h.ErrLog.LogDomainError(w, r, "load committee progress failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, p)
}

type actorRequest struct {
	ActorID string `json:"actor_id"`
}

// HandleDispatch handles POST /committees/{id}/dispatch.
func (h *Handler) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.committeeID(w, r)
	if !ok {
		return
	}
	var req actorRequest
	if err := decode(w, r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode dispatch failed", err, "The request body could not be read.")
		return
	}
	actorID, err := parseOptionalID(req.ActorID)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad actor id", err, "Invalid actor_id.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	res, err := h.Svc.DispatchRequests(ctx, id, actorID)
	if err != nil {
		h.ErrLog.LogDomainError(w, r, "dispatch feedback requests failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, res)
}

// HandleReminders handles POST /committees/{id}/reminders.
func (h *Handler) HandleReminders(w http.ResponseWriter, r *http.Request) {
	id, ok := h.committeeID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	res, err := h.Svc.SendReminders(ctx, id)
	if err != nil {
		h.ErrLog.LogDomainError(w, r, "send reminders failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, res)
}

type cancelRequest struct {
	CancelledBy string `json:"cancelled_by"`
	Reason      string `json:"reason"`
}

// HandleCancel handles POST /committees/{id}/cancel.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.committeeID(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if err := decode(w, r, &req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode cancel failed", err, "The request body could not be read.")
		return
	}
	by, err := parseOptionalID(req.CancelledBy)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad cancelled_by", err, "Invalid cancelled_by.")
		return
	}
	var byID primitive.ObjectID
	if by != nil {
		byID = *by
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	c, err := h.Svc.Cancel(ctx, id, byID, req.Reason)
	if err != nil {
		h.ErrLog.LogDomainError(w, r, "cancel committee failed", err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, c)
}

// ServeStats handles GET /committees/stats.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	uierrors.WriteJSON(w, http.StatusOK, h.Counts(ctx))
}
