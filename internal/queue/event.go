// Package queue defines the parking events handed to the notification
// collaborator over RabbitMQ, the publisher that sends them and the audit
// consumer that appends them to logs/parking.log.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/smart-parking/internal/model"
)

// Event types.
const (
	EventSessionStarted   = "session.started"
	EventSessionCompleted = "session.completed"
	EventSessionCancelled = "session.cancelled"
	EventSessionClosed    = "session.closed" // operator override to EXPIRED or LOST
)

// ParkingEvent is published after a session unit of work commits. It carries
// enough for downstream consumers to notify or log without querying the
// primary database.
type ParkingEvent struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	TokenID       string    `json:"token_id"`
	TokenNumber   string    `json:"token_number"`
	LotID         string    `json:"lot_id"`
	SlotID        string    `json:"slot_id"`
	SlotLabel     string    `json:"slot_label,omitempty"`
	VehiclePlate  string    `json:"vehicle_plate,omitempty"`
	Status        string    `json:"status"`
	EntryTime     time.Time `json:"entry_time"`
	ExitTime      time.Time `json:"exit_time,omitempty"`
	ReceiptNumber string    `json:"receipt_number,omitempty"`
	NetAmount     int64     `json:"net_amount,omitempty"`
	Currency      string    `json:"currency,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewTokenEvent builds an event describing tok after a state change.
func NewTokenEvent(eventType string, tok *model.Token, at time.Time) ParkingEvent {
	ev := ParkingEvent{
		ID:           uuid.NewString(),
		Type:         eventType,
		TokenID:      tok.ID.String(),
		TokenNumber:  tok.TokenNumber,
		LotID:        tok.LotID.String(),
		SlotID:       tok.SlotID.String(),
		VehiclePlate: tok.VehiclePlate,
		Status:       string(tok.Status),
		EntryTime:    tok.EntryTime,
		OccurredAt:   at.UTC(),
	}
	if tok.ExitTime.Valid {
		ev.ExitTime = tok.ExitTime.Time
	}
	return ev
}
