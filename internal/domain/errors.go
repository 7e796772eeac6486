package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizExpired is returned when starting a session past the quiz
	// availability window.
	ErrQuizExpired = errors.New("quiz expired")
	// ErrAlreadyCompleted is the benign outcome of reconciling a quiz the
	// user has already banked points for.
	ErrAlreadyCompleted = errors.New("quiz already completed")
	// ErrAlreadyMember is returned when joining a league twice.
	ErrAlreadyMember = errors.New("already a league member")
	// ErrCodeExhausted is returned when join-code generation keeps
	// colliding with existing codes.
	ErrCodeExhausted = errors.New("join code space exhausted")
	// ErrNotFound is the normal miss result for league lookups.
	ErrNotFound = errors.New("not found")
	// ErrSyncFailed is surfaced when remote state could not be updated
	// within the retry budget. The in-memory session is unaffected, so the
	// caller may retry with the same idempotency key.
	ErrSyncFailed = errors.New("remote state sync failed")
)

// IsConflict reports whether err is one of the named conflict outcomes
// that callers present as a result, not a failure.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyCompleted) ||
		errors.Is(err, ErrAlreadyMember) ||
		errors.Is(err, ErrCodeExhausted)
}
