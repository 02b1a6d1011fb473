// Package seed loads a facility layout (lot, zones, slots, pricing rules)
// into the database in one unit of work. It backs cmd/seed and the test
// fixtures of the engine packages.
package seed

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iliyamo/smart-parking/internal/database"
	"github.com/iliyamo/smart-parking/internal/id"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/repository"
)

// Facility is the JSON layout of one lot.
type Facility struct {
	Name     string     `json:"name"`
	Address  string     `json:"address"`
	Currency string     `json:"currency"`
	Closed   bool       `json:"closed"`
	Zones    []ZoneSpec `json:"zones"`
	Rules    []RuleSpec `json:"pricing_rules"`
}

// ZoneSpec lists slots explicitly, or generates Count slots numbered from 1
// that accept VehicleType.
type ZoneSpec struct {
	Name        string     `json:"name"`
	ZoneType    string     `json:"zone_type"`
	Level       int        `json:"level"`
	SortOrder   int        `json:"sort_order"`
	Count       int        `json:"count"`
	VehicleType string     `json:"vehicle_type"`
	Slots       []SlotSpec `json:"slots"`
}

// SlotSpec describes one slot. Label defaults to "<zone>-<number>".
type SlotSpec struct {
	Number      int    `json:"number"`
	Label       string `json:"label"`
	VehicleType string `json:"vehicle_type"`
	Accessible  bool   `json:"accessible"`
	EVCharger   bool   `json:"ev_charger"`
	Status      string `json:"status"`
}

// RuleSpec describes a pricing rule. Active defaults to true.
type RuleSpec struct {
	Name         string       `json:"name"`
	Model        string       `json:"model"`
	BaseRate     int64        `json:"base_rate"`
	HourlyRate   int64        `json:"hourly_rate"`
	DailyMaxRate int64        `json:"daily_max_rate"`
	Slabs        []model.Slab `json:"slabs"`
	Priority     int          `json:"priority"`
	Active       *bool        `json:"active"`
}

// Result holds the rows created for a facility. Slots are keyed by label.
type Result struct {
	Lot   model.ParkingLot
	Zones []model.Zone
	Slots map[string]*model.Slot
	Rules []model.PricingRule
}

// Decode reads one Facility from JSON.
func Decode(r io.Reader) (Facility, error) {
	var f Facility
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return Facility{}, fmt.Errorf("decode facility: %w", err)
	}
	return f, nil
}

func (f Facility) validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("facility name is required")
	}
	for _, z := range f.Zones {
		if strings.TrimSpace(z.Name) == "" {
			return fmt.Errorf("zone name is required")
		}
		if z.Count < 0 {
			return fmt.Errorf("zone %s: negative slot count", z.Name)
		}
	}
	for _, r := range f.Rules {
		if !model.PricingModel(strings.ToUpper(r.Model)).Valid() {
			return fmt.Errorf("rule %s: unknown pricing model %q", r.Name, r.Model)
		}
	}
	return nil
}

// Apply creates every row of f in one transaction.
func Apply(ctx context.Context, db *database.DB, f Facility) (*Result, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	lots := repository.NewLotRepo(db)
	slots := repository.NewSlotRepo(db)
	rules := repository.NewPricingRuleRepo(db)

	var out *Result
	err := db.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		now := time.Now().UTC()
		res := &Result{Slots: map[string]*model.Slot{}}

		res.Lot = model.ParkingLot{
			ID:        id.NewLotID(),
			Name:      f.Name,
			Address:   f.Address,
			Status:    model.LotActive,
			Currency:  f.Currency,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if res.Lot.Currency == "" {
			res.Lot.Currency = "inr"
		}
		if f.Closed {
			res.Lot.Status = model.LotClosed
		}
		if err := lots.CreateTx(ctx, tx, &res.Lot); err != nil {
			return fmt.Errorf("create lot: %w", err)
		}

		for _, zs := range f.Zones {
			zone := model.Zone{
				ID:        id.NewZoneID(),
				LotID:     res.Lot.ID,
				Name:      zs.Name,
				ZoneType:  upperOr(zs.ZoneType, "GENERAL"),
				Level:     zs.Level,
				SortOrder: zs.SortOrder,
				CreatedAt: now,
			}
			if err := lots.CreateZoneTx(ctx, tx, &zone); err != nil {
				return fmt.Errorf("create zone %s: %w", zs.Name, err)
			}
			res.Zones = append(res.Zones, zone)

			specs := zs.Slots
			for n := 1; n <= zs.Count; n++ {
				specs = append(specs, SlotSpec{Number: n, VehicleType: zs.VehicleType})
			}
			for _, ss := range specs {
				slot := &model.Slot{
					ID:           id.NewSlotID(),
					LotID:        res.Lot.ID,
					ZoneID:       zone.ID,
					SlotNumber:   ss.Number,
					Label:        ss.Label,
					VehicleType:  upperOr(ss.VehicleType, model.VehicleTypeAny),
					IsAccessible: ss.Accessible,
					HasEVCharger: ss.EVCharger,
					Status:       model.SlotStatus(upperOr(ss.Status, string(model.SlotAvailable))),
					CreatedAt:    now,
					UpdatedAt:    now,
				}
				if slot.Label == "" {
					slot.Label = fmt.Sprintf("%s-%d", zs.Name, ss.Number)
				}
				slot.IsOccupied = slot.Status == model.SlotOccupied
				slot.IsUnderMaintenance = slot.Status == model.SlotMaintenance
				if err := slots.CreateTx(ctx, tx, slot); err != nil {
					return fmt.Errorf("create slot %s: %w", slot.Label, err)
				}
				res.Slots[slot.Label] = slot
			}
		}

		for _, rs := range f.Rules {
			rule := model.PricingRule{
				ID:           id.NewRuleID(),
				LotID:        res.Lot.ID,
				Name:         rs.Name,
				Model:        model.PricingModel(strings.ToUpper(rs.Model)),
				BaseRate:     rs.BaseRate,
				HourlyRate:   rs.HourlyRate,
				DailyMaxRate: rs.DailyMaxRate,
				Slabs:        rs.Slabs,
				Priority:     rs.Priority,
				IsActive:     rs.Active == nil || *rs.Active,
				CreatedAt:    now,
			}
			if err := rules.CreateTx(ctx, tx, &rule); err != nil {
				return fmt.Errorf("create rule %s: %w", rs.Name, err)
			}
			res.Rules = append(res.Rules, rule)
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func upperOr(s, def string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return def
	}
	return s
}
