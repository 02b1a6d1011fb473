package model

import (
	"time"

	"github.com/iliyamo/smart-parking/internal/id"
)

// LotStatus is the operational state of a facility.
type LotStatus string

const (
	LotActive LotStatus = "ACTIVE"
	LotClosed LotStatus = "CLOSED"
)

// ParkingLot is a facility. It owns zones and pricing rules.
//
// Fields:
//  ID       - opaque lot identifier (lot_…).
//  Name     - display name.
//  Address  - free-form postal address.
//  Status   - ACTIVE lots accept entries, CLOSED lots do not.
//  Currency - ISO currency code used on receipts.
type ParkingLot struct {
	ID        id.ID     // parking_lots.id
	Name      string    // parking_lots.name
	Address   string    // parking_lots.address
	Status    LotStatus // parking_lots.status
	Currency  string    // parking_lots.currency
	CreatedAt time.Time // parking_lots.created_at
	UpdatedAt time.Time // parking_lots.updated_at
}

// Zone is a named subdivision of a lot (floor, VIP area, EV bay). Level and
// SortOrder drive allocation preference: lower wins.
type Zone struct {
	ID        id.ID     // zones.id
	LotID     id.ID     // zones.lot_id
	Name      string    // zones.name
	ZoneType  string    // zones.zone_type
	Level     int       // zones.level
	SortOrder int       // zones.sort_order
	CreatedAt time.Time // zones.created_at
}
