package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// schema is written once with placeholders for the column types that differ
// between dialects: {ts} timestamp, {bool} boolean, {text} unbounded text.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS parking_lots (
		id         VARCHAR(64)  NOT NULL PRIMARY KEY,
		name       VARCHAR(128) NOT NULL,
		address    VARCHAR(255) NOT NULL DEFAULT '',
		status     VARCHAR(16)  NOT NULL DEFAULT 'ACTIVE',
		currency   VARCHAR(8)   NOT NULL DEFAULT 'inr',
		created_at {ts} NOT NULL,
		updated_at {ts} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS zones (
		id         VARCHAR(64) NOT NULL PRIMARY KEY,
		lot_id     VARCHAR(64) NOT NULL REFERENCES parking_lots(id),
		name       VARCHAR(64) NOT NULL,
		zone_type  VARCHAR(32) NOT NULL DEFAULT 'GENERAL',
		level      INTEGER     NOT NULL DEFAULT 0,
		sort_order INTEGER     NOT NULL DEFAULT 0,
		created_at {ts} NOT NULL,
		CONSTRAINT uq_zones_lot_name UNIQUE (lot_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS slots (
		id                   VARCHAR(64) NOT NULL PRIMARY KEY,
		lot_id               VARCHAR(64) NOT NULL REFERENCES parking_lots(id),
		zone_id              VARCHAR(64) NOT NULL REFERENCES zones(id),
		slot_number          INTEGER     NOT NULL,
		label                VARCHAR(32) NOT NULL,
		vehicle_type         VARCHAR(16) NOT NULL DEFAULT 'ANY',
		is_accessible        {bool} NOT NULL DEFAULT FALSE,
		has_ev_charger       {bool} NOT NULL DEFAULT FALSE,
		status               VARCHAR(16) NOT NULL DEFAULT 'AVAILABLE',
		is_occupied          {bool} NOT NULL DEFAULT FALSE,
		is_under_maintenance {bool} NOT NULL DEFAULT FALSE,
		version              BIGINT      NOT NULL DEFAULT 0,
		created_at {ts} NOT NULL,
		updated_at {ts} NOT NULL,
		CONSTRAINT uq_slots_zone_number UNIQUE (zone_id, slot_number),
		CONSTRAINT uq_slots_lot_label UNIQUE (lot_id, label)
	)`,
	`CREATE TABLE IF NOT EXISTS tokens (
		id            VARCHAR(64) NOT NULL PRIMARY KEY,
		token_number  VARCHAR(32) NOT NULL,
		lot_id        VARCHAR(64) NOT NULL REFERENCES parking_lots(id),
		slot_id       VARCHAR(64) NOT NULL REFERENCES slots(id),
		vehicle_plate VARCHAR(32) NOT NULL DEFAULT '',
		vehicle_type  VARCHAR(16) NOT NULL DEFAULT 'ANY',
		entry_time    {ts} NOT NULL,
		exit_time     {ts} NULL,
		status        VARCHAR(16) NOT NULL,
		created_at    {ts} NOT NULL,
		updated_at    {ts} NOT NULL,
		CONSTRAINT uq_tokens_number UNIQUE (token_number)
	)`,
	`CREATE TABLE IF NOT EXISTS pricing_rules (
		id             VARCHAR(64)  NOT NULL PRIMARY KEY,
		lot_id         VARCHAR(64)  NOT NULL REFERENCES parking_lots(id),
		name           VARCHAR(128) NOT NULL,
		model          VARCHAR(16)  NOT NULL,
		base_rate      BIGINT NOT NULL DEFAULT 0,
		hourly_rate    BIGINT NOT NULL DEFAULT 0,
		daily_max_rate BIGINT NOT NULL DEFAULT 0,
		slabs          {text} NULL,
		priority       INTEGER NOT NULL DEFAULT 0,
		is_active      {bool} NOT NULL DEFAULT TRUE,
		created_at     {ts} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id               VARCHAR(64) NOT NULL PRIMARY KEY,
		token_id         VARCHAR(64) NOT NULL REFERENCES tokens(id),
		lot_id           VARCHAR(64) NOT NULL REFERENCES parking_lots(id),
		receipt_number   VARCHAR(32) NOT NULL,
		entry_time       {ts} NOT NULL,
		exit_time        {ts} NOT NULL,
		duration_minutes BIGINT NOT NULL,
		billed_hours     BIGINT NOT NULL,
		pricing_model    VARCHAR(16) NOT NULL,
		gross_amount     BIGINT NOT NULL,
		tax_amount       BIGINT NOT NULL,
		net_amount       BIGINT NOT NULL,
		currency         VARCHAR(8)  NOT NULL,
		payment_method   VARCHAR(32) NOT NULL DEFAULT '',
		payment_status   VARCHAR(16) NOT NULL,
		created_at       {ts} NOT NULL,
		CONSTRAINT uq_transactions_token UNIQUE (token_id),
		CONSTRAINT uq_transactions_receipt UNIQUE (receipt_number)
	)`,
	`CREATE TABLE IF NOT EXISTS slot_occupancies (
		id         VARCHAR(64) NOT NULL PRIMARY KEY,
		slot_id    VARCHAR(64) NOT NULL REFERENCES slots(id),
		token_id   VARCHAR(64) NOT NULL REFERENCES tokens(id),
		start_time {ts} NOT NULL,
		end_time   {ts} NULL
	)`,
	`CREATE INDEX {ine} idx_slots_claim ON slots (lot_id, status)`,
	`CREATE INDEX {ine} idx_tokens_plate ON tokens (lot_id, vehicle_plate, status)`,
	`CREATE INDEX {ine} idx_pricing_rules_lot ON pricing_rules (lot_id, is_active, priority)`,
	`CREATE INDEX {ine} idx_occupancies_token ON slot_occupancies (token_id)`,
}

func (d Dialect) expand(stmt string) string {
	var ts, boolean, text, ine string
	switch d {
	case MySQL:
		ts, boolean, text, ine = "DATETIME(6)", "BOOLEAN", "TEXT", ""
	case Postgres:
		ts, boolean, text, ine = "TIMESTAMPTZ", "BOOLEAN", "TEXT", "IF NOT EXISTS"
	default:
		ts, boolean, text, ine = "DATETIME", "BOOLEAN", "TEXT", "IF NOT EXISTS"
	}
	r := strings.NewReplacer("{ts}", ts, "{bool}", boolean, "{text}", text, "{ine}", ine)
	return r.Replace(stmt)
}

// Migrate creates the engine tables and indexes if they do not exist.
func Migrate(ctx context.Context, db *DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, db.Dialect.expand(stmt)); err != nil {
			var me *mysql.MySQLError
			if errors.As(err, &me) && me.Number == 1061 { // duplicate key name on re-run
				continue
			}
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
