// internal/app/features/errors/errors.go
//
// Package errors writes JSON error responses for the HTTP features and maps
// committee errors to status codes.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/recruithub/internal/domain/committee"
	"go.uber.org/zap"
)

// Response is the body of every error reply.
type Response struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON writes v as the JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Write writes an error reply.
func Write(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, Response{Error: code, Message: message})
}

// mapping is one row of the error table. Order matters: ErrNotAMember is
// checked before ErrNotFound.
type mapping struct {
	target  error
	status  int
	code    string
	message string
}

var table = []mapping{
	{committee.ErrInvalidInput, http.StatusBadRequest, "invalid_input", ""},
	{committee.ErrNotAMember, http.StatusForbidden, "not_a_member", "You are not a member of this hiring committee."},
	{committee.ErrNotFound, http.StatusNotFound, "not_found", "Not found."},
	{committee.ErrTokenExpired, http.StatusGone, "link_expired", "This feedback link has expired. Ask the hiring team for a new one."},
	{committee.ErrTokenAlreadyRedeemed, http.StatusConflict, "link_used", "This feedback link has already been used."},
	{committee.ErrAlreadySubmitted, http.StatusConflict, "already_submitted", "You have already submitted feedback for this candidate."},
	{committee.ErrAlreadyAssigned, http.StatusConflict, "already_assigned", "A committee is already assigned to this application."},
	{committee.ErrDuplicateActiveToken, http.StatusConflict, "active_link_exists", "This reviewer already has an active feedback link."},
	{committee.ErrInvalidTransition, http.StatusConflict, "committee_closed", "This committee is no longer accepting changes."},
	{committee.ErrConcurrentConflict, http.StatusServiceUnavailable, "conflict", "The committee is busy. Please try again."},
	{committee.ErrNotificationFailed, http.StatusBadGateway, "notification_failed", "The notification could not be delivered."},
}

// Classify returns the status, code and user-facing message for err.
// Unknown errors classify as 500.
func Classify(err error) (status int, code, message string) {
	for _, m := range table {
		if stderrors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			return m.status, m.code, msg
		}
	}
	return http.StatusInternalServerError, "internal", "Something went wrong. Please try again."
}

// ErrorLogger logs handler failures and writes the matching reply.
type ErrorLogger struct {
	Log *zap.Logger
}

// NewErrorLogger creates an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{Log: logger}
}

// LogBadRequest logs at Warn and replies 400 with userMsg.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.Log.Warn(msg,
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	Write(w, http.StatusBadRequest, "bad_request", userMsg)
}

// LogServerError logs at Error and replies 500 with userMsg.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.Log.Error(msg,
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	Write(w, http.StatusInternalServerError, "internal", userMsg)
}

// LogDomainError classifies err and replies accordingly. Expected outcomes
// such as an expired link are logged at Debug; anything unclassified is a
// server error.
func (e *ErrorLogger) LogDomainError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status, code, message := Classify(err)
	if status >= http.StatusInternalServerError {
		e.Log.Error(msg,
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	} else {
		e.Log.Debug(msg, zap.String("code", code), zap.Error(err))
	}
	Write(w, status, code, message)
}
