package pricing

import (
	"log"
	"time"

	"github.com/iliyamo/smart-parking/internal/id"
	"github.com/iliyamo/smart-parking/internal/model"
)

const (
	// DefaultTaxBasisPoints is 18%.
	DefaultTaxBasisPoints = 1800
	// DefaultHourlyRate bills 50.00 per hour in minor units when a lot has
	// no active rule.
	DefaultHourlyRate = 5000
)

// Config holds the tax and fallback settings of an Engine.
type Config struct {
	TaxBasisPoints    int64
	DefaultHourlyRate int64
}

// Quote is the itemised result of pricing one stay.
type Quote struct {
	DurationMinutes int64              `json:"duration_minutes"`
	BilledHours     int64              `json:"billed_hours"`
	Model           model.PricingModel `json:"pricing_model"`
	RuleID          id.ID              `json:"rule_id,omitempty"`
	Gross           int64              `json:"gross_amount"`
	Tax             int64              `json:"tax_amount"`
	Net             int64              `json:"net_amount"`
	DefaultApplied  bool               `json:"default_applied"`
}

// Engine prices stays: fee formula, default rule and tax.
type Engine struct {
	taxBP       int64
	defaultRate int64
}

// NewEngine returns an Engine. A negative tax rate or a non-positive default
// rate is replaced by the package default.
func NewEngine(cfg Config) *Engine {
	e := &Engine{taxBP: cfg.TaxBasisPoints, defaultRate: cfg.DefaultHourlyRate}
	if e.taxBP < 0 {
		e.taxBP = DefaultTaxBasisPoints
	}
	if e.defaultRate <= 0 {
		e.defaultRate = DefaultHourlyRate
	}
	return e
}

// DefaultRule is the rule applied when a lot has no active rule: HOURLY with
// the same rate for the first and each further hour.
func (e *Engine) DefaultRule() model.PricingRule {
	return model.PricingRule{
		Name:       "default",
		Model:      model.PricingHourly,
		BaseRate:   e.defaultRate,
		HourlyRate: e.defaultRate,
		IsActive:   true,
	}
}

// Tax returns the tax on gross, rounded half up.
func (e *Engine) Tax(gross int64) int64 {
	if gross <= 0 || e.taxBP == 0 {
		return 0
	}
	return (gross*e.taxBP + 5000) / 10000
}

// Quote prices a stay. A nil rule falls back to DefaultRule and the quote is
// marked DefaultApplied.
func (e *Engine) Quote(entry, exit time.Time, rule *model.PricingRule) (Quote, error) {
	minutes, err := DurationMinutes(entry, exit)
	if err != nil {
		return Quote{}, err
	}
	q := Quote{DurationMinutes: minutes, BilledHours: BilledHours(exit.Sub(entry))}

	applied := rule
	if applied == nil {
		d := e.DefaultRule()
		applied = &d
		q.DefaultApplied = true
	} else if !applied.Model.Valid() {
		log.Printf("pricing: rule %s has unknown model %q, billing as default", applied.ID, applied.Model)
		d := e.DefaultRule()
		applied = &d
		q.DefaultApplied = true
	}

	q.Model = applied.Model
	q.RuleID = applied.ID
	q.Gross = FeeForHours(q.BilledHours, *applied)
	q.Tax = e.Tax(q.Gross)
	q.Net = q.Gross + q.Tax
	return q, nil
}
