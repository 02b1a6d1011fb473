package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iliyamo/smart-parking/internal/database"
	"github.com/iliyamo/smart-parking/internal/id"
	"github.com/iliyamo/smart-parking/internal/model"
)

// PricingRuleRepo reads and seeds pricing_rules. Slab tables are stored as
// JSON text.
type PricingRuleRepo struct {
	db *database.DB
}

// NewPricingRuleRepo returns a PricingRuleRepo bound to db.
func NewPricingRuleRepo(db *database.DB) *PricingRuleRepo { return &PricingRuleRepo{db: db} }

// CreateTx inserts a rule.
func (r *PricingRuleRepo) CreateTx(ctx context.Context, q DBTX, rule *model.PricingRule) error {
	var slabs sql.NullString
	if len(rule.Slabs) > 0 {
		b, err := json.Marshal(rule.Slabs)
		if err != nil {
			return fmt.Errorf("encode slabs: %w", err)
		}
		slabs = sql.NullString{String: string(b), Valid: true}
	}
	_, err := q.ExecContext(ctx, r.db.Dialect.Rebind(
		`INSERT INTO pricing_rules (id, lot_id, name, model, base_rate, hourly_rate, daily_max_rate,
		   slabs, priority, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rule.ID, rule.LotID, rule.Name, string(rule.Model), rule.BaseRate, rule.HourlyRate,
		rule.DailyMaxRate, slabs, rule.Priority, rule.IsActive, rule.CreatedAt)
	return err
}

// ActiveForLotTx returns the highest-priority active rule of a lot, or
// ErrNotFound when the lot has none.
func (r *PricingRuleRepo) ActiveForLotTx(ctx context.Context, q DBTX, lotID id.ID) (*model.PricingRule, error) {
	var (
		rule  model.PricingRule
		mdl   string
		slabs sql.NullString
	)
	err := q.QueryRowContext(ctx, r.db.Dialect.Rebind(
		`SELECT id, lot_id, name, model, base_rate, hourly_rate, daily_max_rate, slabs, priority,
		        is_active, created_at
		   FROM pricing_rules
		  WHERE lot_id = ? AND is_active = ?
		  ORDER BY priority DESC, created_at DESC
		  LIMIT 1`), lotID, true).
		Scan(&rule.ID, &rule.LotID, &rule.Name, &mdl, &rule.BaseRate, &rule.HourlyRate,
			&rule.DailyMaxRate, &slabs, &rule.Priority, &rule.IsActive, &rule.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rule.Model = model.PricingModel(mdl)
	if slabs.Valid && slabs.String != "" {
		if err := json.Unmarshal([]byte(slabs.String), &rule.Slabs); err != nil {
			return nil, fmt.Errorf("decode slabs of rule %s: %w", rule.ID, err)
		}
	}
	return &rule, nil
}
