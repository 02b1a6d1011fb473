// Package model holds the persisted parking entities and the sentinel
// errors shared by the engine layers. Business outcomes (no slot, closed
// session, unknown token) are returned to callers as these values; they
// are expected results, not faults.
package model

import "errors"

var (
	// ErrNoSlotAvailable means no slot matched the constraints. The lot is
	// full for this vehicle; handlers map it to 409.
	ErrNoSlotAvailable = errors.New("no slot available")

	// ErrTokenNotFound is returned for unknown token identifiers.
	ErrTokenNotFound = errors.New("token not found")

	// ErrInvalidStateTransition is returned when a token is not ACTIVE, for
	// example a second completion of the same session.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrInvalidDuration is returned by the fee engine when exit precedes entry.
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrInvalidStatus rejects an operator override target that is not an
	// administrative terminal status.
	ErrInvalidStatus = errors.New("invalid token status")

	// ErrReceiptNotFound is returned for tokens that were never completed.
	ErrReceiptNotFound = errors.New("receipt not found")

	ErrLotNotFound          = errors.New("parking lot not found")
	ErrLotClosed            = errors.New("parking lot closed")
	ErrVehicleAlreadyParked = errors.New("vehicle already has an active session")

	// ErrInvariantViolation marks a state that must never be persisted, such
	// as releasing a slot that is not held. The unit of work aborts.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrTemporarilyUnavailable is returned after transient database faults
	// exhausted the retry budget. Callers may retry the request.
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
)
