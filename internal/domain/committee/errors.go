package committee

import "errors"

var (
	// ErrAlreadyAssigned is returned when an application already has a live committee.
	ErrAlreadyAssigned = errors.New("a committee is already assigned to this application")
	// ErrNotFound is returned when a committee, template, member or token does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotAMember is returned when feedback comes from someone outside the committee.
	ErrNotAMember = errors.New("reviewer is not a member of this committee")
	// ErrAlreadySubmitted is returned when a member submits feedback twice.
	ErrAlreadySubmitted = errors.New("feedback has already been submitted")
	// ErrInvalidTransition is returned when mutating a completed or cancelled committee.
	ErrInvalidTransition = errors.New("committee is no longer active")
	// ErrConcurrentConflict is returned when a write lost a version race too many times.
	ErrConcurrentConflict = errors.New("committee was modified concurrently, try again")
	// ErrTokenExpired is returned for a feedback token past its expiry.
	ErrTokenExpired = errors.New("this feedback link has expired")
	// ErrTokenAlreadyRedeemed is returned for a feedback token that was already used.
	ErrTokenAlreadyRedeemed = errors.New("this feedback link has already been used")
	// ErrDuplicateActiveToken is returned when a reviewer already holds a live token.
	ErrDuplicateActiveToken = errors.New("reviewer already has an active feedback link")
	// ErrNotificationFailed marks a failed notification. It never aborts the primary operation.
	ErrNotificationFailed = errors.New("notification failed")
	// ErrInvalidInput is returned for malformed members or settings.
	ErrInvalidInput = errors.New("invalid committee input")
)
