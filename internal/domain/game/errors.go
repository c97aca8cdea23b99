package game

import "github.com/cockroachdb/errors"

// Errors returned by the aggregate. Callers match them with errors.Is; the
// wrapped message carries the detail.
var (
	ErrNotFound               = errors.New("not found")
	ErrAuthorization          = errors.New("not authorized")
	ErrAuthentication         = errors.New("authentication failed")
	ErrConflict               = errors.New("conflict")
	ErrInvariantViolation     = errors.New("invariant violation")
	ErrState                  = errors.New("invalid game state")
	ErrConcurrentModification = errors.New("concurrent modification")
)
