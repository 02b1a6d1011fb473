// Package pricing computes parking fees. ComputeFee is a pure function of
// entry time, exit time and a rule; Engine adds the default-rule fallback
// and tax. Active rules are looked up through a RuleSource.
package pricing

import (
	"sort"
	"time"

	"github.com/iliyamo/smart-parking/internal/model"
)

// DurationMinutes returns the whole minutes between entry and exit, rounded
// down. It is recorded on the transaction only; billing uses BilledHours.
// Exit before entry is ErrInvalidDuration.
func DurationMinutes(entry, exit time.Time) (int64, error) {
	d := exit.Sub(entry)
	if d < 0 {
		return 0, model.ErrInvalidDuration
	}
	return int64(d / time.Minute), nil
}

// BilledHours rounds a stay up to whole hours: any started hour counts, so
// 45s bills 1 hour, 60m bills 1 and 60m30s bills 2.
func BilledHours(stay time.Duration) int64 {
	if stay <= 0 {
		return 0
	}
	return int64((stay + time.Hour - 1) / time.Hour)
}

// ComputeFee returns the gross fee, in the smallest currency unit, for a
// stay from entry to exit under rule.
func ComputeFee(entry, exit time.Time, rule model.PricingRule) (int64, error) {
	stay := exit.Sub(entry)
	if stay < 0 {
		return 0, model.ErrInvalidDuration
	}
	return FeeForHours(BilledHours(stay), rule), nil
}

// FeeForHours applies the rule's formula to a billed hour count.
func FeeForHours(hours int64, rule model.PricingRule) int64 {
	var fee int64
	switch rule.Model {
	case model.PricingFree:
		return 0
	case model.PricingFlatRate:
		fee = rule.BaseRate
	case model.PricingSlab:
		fee = slabFee(hours, rule.Slabs)
	default: // HOURLY
		fee = rule.BaseRate
		if hours > 1 {
			fee += (hours - 1) * rule.HourlyRate
		}
		if rule.DailyMaxRate > 0 && fee > rule.DailyMaxRate {
			fee = rule.DailyMaxRate
		}
	}
	if fee < 0 {
		return 0
	}
	return fee
}

// slabFee consumes hours through the slab table in ascending UptoHours
// order. Each slab covers at most UptoHours hours at its own rate. Hours
// left after the last slab are billed at the last slab's rate.
func slabFee(hours int64, slabs []model.Slab) int64 {
	if hours <= 0 || len(slabs) == 0 {
		return 0
	}
	ordered := make([]model.Slab, 0, len(slabs))
	for _, s := range slabs {
		if s.UptoHours > 0 {
			ordered = append(ordered, s)
		}
	}
	if len(ordered) == 0 {
		return 0
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].UptoHours < ordered[j].UptoHours })

	var fee int64
	remaining := hours
	for _, s := range ordered {
		take := int64(s.UptoHours)
		if take > remaining {
			take = remaining
		}
		fee += take * s.RatePerHour
		remaining -= take
		if remaining == 0 {
			return fee
		}
	}
	return fee + remaining*ordered[len(ordered)-1].RatePerHour
}
