package seed_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/smart-parking/internal/database/databasetest"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/repository"
	"github.com/iliyamo/smart-parking/internal/seed"
)

const layout = `{
  "name": "Central",
  "address": "1 Main St",
  "zones": [
    {"name": "G", "level": 0, "count": 2, "vehicle_type": "car"},
    {"name": "EV", "zone_type": "ev", "level": 1, "slots": [
      {"number": 1, "label": "EV-1", "ev_charger": true},
      {"number": 2, "status": "maintenance"}
    ]}
  ],
  "pricing_rules": [
    {"name": "standard", "model": "hourly", "base_rate": 50, "hourly_rate": 30, "priority": 1},
    {"name": "tiers", "model": "SLAB", "priority": 5, "active": false,
     "slabs": [{"upto_hours": 2, "rate_per_hour": 40}]}
  ]
}`

func TestDecodeAndApply(t *testing.T) {
	db := databasetest.Open(t)
	ctx := context.Background()

	f, err := seed.Decode(strings.NewReader(layout))
	require.NoError(t, err)
	res, err := seed.Apply(ctx, db, f)
	require.NoError(t, err)

	assert.Equal(t, "inr", res.Lot.Currency)
	assert.Len(t, res.Zones, 2)
	assert.Len(t, res.Slots, 4)
	require.Contains(t, res.Slots, "G-1")
	assert.Equal(t, "CAR", res.Slots["G-1"].VehicleType)
	assert.True(t, res.Slots["EV-1"].HasEVCharger)
	assert.Equal(t, model.SlotMaintenance, res.Slots["EV-2"].Status)
	assert.True(t, res.Slots["EV-2"].IsUnderMaintenance)

	counts, err := repository.NewSlotRepo(db).CountByStatus(ctx, res.Lot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotCounts{Total: 4, Available: 3, Maintenance: 1}, counts)

	// the inactive rule has higher priority but must be ignored
	rule, err := repository.NewPricingRuleRepo(db).ActiveForLotTx(ctx, db, res.Lot.ID)
	require.NoError(t, err)
	assert.Equal(t, "standard", rule.Name)
	assert.Equal(t, model.PricingHourly, rule.Model)

	zones, err := repository.NewLotRepo(db).ListZones(ctx, res.Lot.ID)
	require.NoError(t, err)
	require.Len(t, zones, 2)
	assert.Equal(t, "EV", zones[1].ZoneType)
}

func TestApplyRejectsUnknownModel(t *testing.T) {
	db := databasetest.Open(t)
	_, err := seed.Apply(context.Background(), db, seed.Facility{
		Name:  "X",
		Rules: []seed.RuleSpec{{Name: "surge", Model: "DYNAMIC"}},
	})
	assert.Error(t, err)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := seed.Decode(strings.NewReader(`{"name":"x","floors":3}`))
	assert.Error(t, err)
}
