package model

import (
	"time"

	"gopkg.in/guregu/null.v4"

	"github.com/iliyamo/smart-parking/internal/id"
)

// TokenStatus is the state of a parking session.
type TokenStatus string

const (
	TokenActive    TokenStatus = "ACTIVE"
	TokenCompleted TokenStatus = "COMPLETED"
	TokenCancelled TokenStatus = "CANCELLED"
	TokenExpired   TokenStatus = "EXPIRED"
	TokenLost      TokenStatus = "LOST"
)

// IsTerminal reports whether no transition may leave s.
func (s TokenStatus) IsTerminal() bool {
	switch s {
	case TokenCompleted, TokenCancelled, TokenExpired, TokenLost:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s TokenStatus) Valid() bool { return s == TokenActive || s.IsTerminal() }

// CanTransitionTo reports whether the state machine permits s -> next.
// Only ACTIVE has outgoing edges, and each of them ends in a terminal state.
func (s TokenStatus) CanTransitionTo(next TokenStatus) bool {
	return s == TokenActive && next.IsTerminal()
}

// Token is one vehicle's stay. Tokens are never deleted; terminal tokens
// remain as history. ExitTime is NULL while the token is ACTIVE.
type Token struct {
	ID           id.ID       // tokens.id
	TokenNumber  string      // tokens.token_number (display identifier)
	LotID        id.ID       // tokens.lot_id
	SlotID       id.ID       // tokens.slot_id
	VehiclePlate string      // tokens.vehicle_plate (may be empty)
	VehicleType  string      // tokens.vehicle_type
	EntryTime    time.Time   // tokens.entry_time
	ExitTime     null.Time   // tokens.exit_time
	Status       TokenStatus // tokens.status
	CreatedAt    time.Time   // tokens.created_at
	UpdatedAt    time.Time   // tokens.updated_at
}

// SlotOccupancy is an append-only interval record. EndTime is set exactly
// once, when the owning token leaves ACTIVE.
type SlotOccupancy struct {
	ID        id.ID     // slot_occupancies.id
	SlotID    id.ID     // slot_occupancies.slot_id
	TokenID   id.ID     // slot_occupancies.token_id
	StartTime time.Time // slot_occupancies.start_time
	EndTime   null.Time // slot_occupancies.end_time
}
