package services

import "errors"

// Error taxonomy shared by all services. Controllers translate these into
// HTTP statuses; anything not matching is treated as a retryable storage
// failure.
var (
	// ErrNotFound marks a referenced lesson/assignment/submission that does
	// not exist. No side effects have been persisted when it is returned.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks rejected input: content below the minimum length,
	// a grade outside [0,100].
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateSubmission is returned when the storage layer reports a
	// unique-constraint violation on submit, so callers can answer
	// "you already submitted" instead of a generic failure.
	ErrDuplicateSubmission = errors.New("already submitted")

	// ErrUnauthenticated marks a missing caller identity.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrOracleUnavailable marks a failed or timed-out AI oracle call. It is
	// swallowed at the boundary between progression and recommendation: the
	// surrounding operation still succeeds, only the AI-derived field is
	// empty.
	ErrOracleUnavailable = errors.New("oracle unavailable")
)
