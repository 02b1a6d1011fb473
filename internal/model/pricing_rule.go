package model

import (
	"time"

	"github.com/iliyamo/smart-parking/internal/id"
)

// PricingModel selects the fee formula of a rule.
type PricingModel string

const (
	PricingFlatRate PricingModel = "FLAT_RATE"
	PricingHourly   PricingModel = "HOURLY"
	PricingSlab     PricingModel = "SLAB"
	PricingFree     PricingModel = "FREE"
)

// Valid reports whether m is a known pricing model.
func (m PricingModel) Valid() bool {
	switch m {
	case PricingFlatRate, PricingHourly, PricingSlab, PricingFree:
		return true
	}
	return false
}

// Slab is one duration tier: up to UptoHours hours billed at RatePerHour.
type Slab struct {
	UptoHours   int   `json:"upto_hours"`
	RatePerHour int64 `json:"rate_per_hour"`
}

// PricingRule is a facility billing policy. Amounts are in the smallest
// currency unit. DailyMaxRate of 0 means no cap is configured. The active
// rule of a lot is the active row with the highest Priority.
type PricingRule struct {
	ID           id.ID        `json:"id"`
	LotID        id.ID        `json:"lot_id"`
	Name         string       `json:"name"`
	Model        PricingModel `json:"model"`
	BaseRate     int64        `json:"base_rate"`
	HourlyRate   int64        `json:"hourly_rate"`
	DailyMaxRate int64        `json:"daily_max_rate"`
	Slabs        []Slab       `json:"slabs,omitempty"`
	Priority     int          `json:"priority"`
	IsActive     bool         `json:"is_active"`
	CreatedAt    time.Time    `json:"created_at"`
}
