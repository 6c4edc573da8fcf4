package engine

import (
	"errors"

	"github.com/rupeevault/backend/internal/ledger"
	"github.com/rupeevault/backend/internal/registry"
)

// Error kinds. Every failing call leaves state exactly as it was: the
// transaction that would have mutated it is rolled back.
var (
	// ErrValidation covers malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when the attempted transition is not
	// legal from the request's current state. Wrapped messages name the
	// attempted transition for audit.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInsufficientFunds mirrors the ledger's reservation check.
	ErrInsufficientFunds = ledger.ErrInsufficientFunds

	// ErrDuplicateRequest is returned when a second open unhold request
	// exists for the same user.
	ErrDuplicateRequest = errors.New("duplicate open request")

	// ErrAccountOnHold blocks new withdrawal submissions from a held account.
	ErrAccountOnHold = errors.New("account withdrawals are on hold")

	// ErrTimerRace is internal: a fired timer found the request already out
	// of processing. Callers treat it as a no-op.
	ErrTimerRace = errors.New("request already left processing")

	// ErrNotFound mirrors the registry's lookup miss.
	ErrNotFound = registry.ErrNotFound
)
