package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/smart-parking/internal/model"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func hourly(base, rate, max int64) model.PricingRule {
	return model.PricingRule{Model: model.PricingHourly, BaseRate: base, HourlyRate: rate, DailyMaxRate: max}
}

func TestHourlyRoundsUpToWholeHours(t *testing.T) {
	rule := hourly(50, 30, 0)
	cases := []struct {
		stay time.Duration
		want int64
	}{
		{0, 50},
		{time.Minute, 50},
		{59 * time.Minute, 50},
		{60 * time.Minute, 50},
		{61 * time.Minute, 80},
		{90 * time.Minute, 80},
		{60*time.Minute + 30*time.Second, 80},
		{60*time.Minute + time.Nanosecond, 80},
		{3 * time.Hour, 110},
	}
	for _, tc := range cases {
		fee, err := ComputeFee(t0, t0.Add(tc.stay), rule)
		require.NoError(t, err)
		assert.Equal(t, tc.want, fee, "stay %s", tc.stay)
	}
}

func TestHourlyDailyCap(t *testing.T) {
	fee, err := ComputeFee(t0, t0.Add(20*time.Hour), hourly(50, 30, 300))
	require.NoError(t, err)
	assert.Equal(t, int64(300), fee)

	fee, err = ComputeFee(t0, t0.Add(2*time.Hour), hourly(50, 30, 300))
	require.NoError(t, err)
	assert.Equal(t, int64(80), fee)
}

func TestSlab(t *testing.T) {
	rule := model.PricingRule{Model: model.PricingSlab, Slabs: []model.Slab{
		{UptoHours: 2, RatePerHour: 40},
		{UptoHours: 2, RatePerHour: 30},
		{UptoHours: 999, RatePerHour: 20},
	}}
	// 2h at 40 + 2h at 30 + 1h at 20
	fee, err := ComputeFee(t0, t0.Add(5*time.Hour), rule)
	require.NoError(t, err)
	assert.Equal(t, int64(2*40+2*30+1*20), fee)
	assert.Equal(t, int64(160), fee)

	fee, err = ComputeFee(t0, t0.Add(90*time.Minute), rule)
	require.NoError(t, err)
	assert.Equal(t, int64(80), fee)
}

func TestSubMinuteStayBillsAStartedHour(t *testing.T) {
	slab := model.PricingRule{Model: model.PricingSlab, Slabs: []model.Slab{{UptoHours: 2, RatePerHour: 40}}}
	fee, err := ComputeFee(t0, t0.Add(45*time.Second), slab)
	require.NoError(t, err)
	assert.Equal(t, int64(40), fee)

	fee, err = ComputeFee(t0, t0, slab)
	require.NoError(t, err)
	assert.Zero(t, fee)
}

func TestSlabOrderAndOverflow(t *testing.T) {
	rule := model.PricingRule{Model: model.PricingSlab, Slabs: []model.Slab{
		{UptoHours: 3, RatePerHour: 10},
		{UptoHours: 1, RatePerHour: 50},
		{UptoHours: 0, RatePerHour: 999},
	}}
	// 1h at 50, 3h at 10, 2h overflow at 10
	assert.Equal(t, int64(50+30+20), FeeForHours(6, rule))
	assert.Equal(t, int64(0), FeeForHours(0, rule))
	assert.Equal(t, int64(0), FeeForHours(4, model.PricingRule{Model: model.PricingSlab}))
}

func TestFlatAndFree(t *testing.T) {
	flat := model.PricingRule{Model: model.PricingFlatRate, BaseRate: 120, HourlyRate: 999}
	for _, stay := range []time.Duration{0, time.Minute, 30 * time.Hour} {
		fee, err := ComputeFee(t0, t0.Add(stay), flat)
		require.NoError(t, err)
		assert.Equal(t, int64(120), fee)
	}
	fee, err := ComputeFee(t0, t0.Add(10*time.Hour), model.PricingRule{Model: model.PricingFree, BaseRate: 10})
	require.NoError(t, err)
	assert.Zero(t, fee)
}

func TestNegativeDurationRejected(t *testing.T) {
	_, err := ComputeFee(t0, t0.Add(-time.Minute), hourly(50, 30, 0))
	assert.ErrorIs(t, err, model.ErrInvalidDuration)
}

func TestBilledHours(t *testing.T) {
	assert.Equal(t, int64(0), BilledHours(0))
	assert.Equal(t, int64(1), BilledHours(time.Second))
	assert.Equal(t, int64(1), BilledHours(time.Hour))
	assert.Equal(t, int64(2), BilledHours(time.Hour+30*time.Second))
	assert.Equal(t, int64(2), BilledHours(61*time.Minute))
	assert.Equal(t, int64(24), BilledHours(24*time.Hour))

	m, err := DurationMinutes(t0, t0.Add(60*time.Minute+59*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(60), m)
}
