package model

import (
	"time"

	"github.com/iliyamo/smart-parking/internal/id"
)

// SlotStatus is the lifecycle status of a slot.
type SlotStatus string

const (
	SlotAvailable   SlotStatus = "AVAILABLE"
	SlotReserved    SlotStatus = "RESERVED"
	SlotOccupied    SlotStatus = "OCCUPIED"
	SlotMaintenance SlotStatus = "MAINTENANCE"
)

// VehicleTypeAny marks a slot that accepts every vehicle type. As a request
// constraint it means "no vehicle type filter".
const VehicleTypeAny = "ANY"

// Slot is the allocatable resource. Status is RESERVED or OCCUPIED exactly
// while an ACTIVE token references the slot. Version is bumped on every
// status change and backs the compare-and-swap claim path.
type Slot struct {
	ID                 id.ID      // slots.id
	LotID              id.ID      // slots.lot_id
	ZoneID             id.ID      // slots.zone_id
	SlotNumber         int        // slots.slot_number
	Label              string     // slots.label, e.g. "A-1"
	VehicleType        string     // slots.vehicle_type (ANY or a specific type)
	IsAccessible       bool       // slots.is_accessible
	HasEVCharger       bool       // slots.has_ev_charger
	Status             SlotStatus // slots.status
	IsOccupied         bool       // slots.is_occupied
	IsUnderMaintenance bool       // slots.is_under_maintenance
	Version            int64      // slots.version
	CreatedAt          time.Time  // slots.created_at
	UpdatedAt          time.Time  // slots.updated_at
}

// SlotCounts summarises a lot's slots by status.
type SlotCounts struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	Reserved    int `json:"reserved"`
	Occupied    int `json:"occupied"`
	Maintenance int `json:"maintenance"`
}
