// internal/app/features/feedback/handler.go
package feedback

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/recruithub/internal/app/committees"
	uierrors "github.com/dalemusser/recruithub/internal/app/features/errors"
	"github.com/dalemusser/recruithub/internal/app/system/limits"
	"github.com/dalemusser/recruithub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Service is the part of the committee workflow reviewers reach through
// their feedback link. *committees.Orchestrator implements it.
type Service interface {
	VerifyToken(ctx context.Context, plain string) (*committees.TokenContext, error)
	SubmitFeedback(ctx context.Context, plain string, in committees.FeedbackInput) (*committees.SubmitResult, error)
}

// Handler serves the login-free reviewer endpoints.
type Handler struct {
	Svc    Service
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

// NewHandler constructs a feedback Handler.
func NewHandler(svc Service, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, ErrLog: errLog, Log: logger}
}

// linkView is what a reviewer sees before submitting. Other members and
// their votes are never exposed.
type linkView struct {
	CandidateName string     `json:"candidate_name"`
	JobTitle      string     `json:"job_title"`
	ReviewerName  string     `json:"reviewer_name"`
	ReviewerEmail string     `json:"reviewer_email"`
	CommitteeRole string     `json:"committee_role"`
	ExpiresAt     time.Time  `json:"expires_at"`
	Deadline      *time.Time `json:"deadline,omitempty"`
}

type submitResponse struct {
	ID          string    `json:"id"`
	SubmittedAt time.Time `json:"submitted_at"`
	Message     string    `json:"message"`
}

func token(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "token"))
}

// ServeLink handles GET /feedback/{token}.
func (h *Handler) ServeLink(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	tc, err := h.Svc.VerifyToken(ctx, token(r))
	if err != nil {
		h.ErrLog.LogDomainError(w, r, "verify feedback link failed", err)
		return
	}

	v := linkView{
		CandidateName: tc.Application.CandidateName,
		JobTitle:      tc.Application.JobTitle,
		ReviewerName:  tc.Token.ReviewerName,
		ReviewerEmail: tc.Token.ReviewerEmail,
		CommitteeRole: tc.Token.CommitteeRole,
		ExpiresAt:     tc.Token.ExpiresAt,
	}
	if tc.Committee != nil {
		v.Deadline = tc.Committee.Settings.FeedbackDeadline
	}
	uierrors.WriteJSON(w, http.StatusOK, v)
}

// HandleSubmit handles POST /feedback/{token}.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxFeedbackBodySize)

	var in committees.FeedbackInput
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode feedback failed", err, "The feedback could not be read.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	res, err := h.Svc.SubmitFeedback(ctx, token(r), in)
	if err != nil {
		h.ErrLog.LogDomainError(w, r, "submit feedback failed", err)
		return
	}

	uierrors.WriteJSON(w, http.StatusCreated, submitResponse{
		ID:          res.Feedback.ID,
		SubmittedAt: res.Feedback.SubmittedAt,
		Message:     "Thank you. Your feedback has been recorded.",
	})
}
