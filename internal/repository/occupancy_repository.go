package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/smart-parking/internal/database"
	"github.com/iliyamo/smart-parking/internal/id"
	"github.com/iliyamo/smart-parking/internal/model"
)

// OccupancyRepo writes the append-only slot_occupancies history.
type OccupancyRepo struct {
	db *database.DB
}

// NewOccupancyRepo returns an OccupancyRepo bound to db.
func NewOccupancyRepo(db *database.DB) *OccupancyRepo { return &OccupancyRepo{db: db} }

// OpenTx appends an open interval for a freshly reserved slot.
func (r *OccupancyRepo) OpenTx(ctx context.Context, q DBTX, o *model.SlotOccupancy) error {
	_, err := q.ExecContext(ctx, r.db.Dialect.Rebind(
		`INSERT INTO slot_occupancies (id, slot_id, token_id, start_time, end_time) VALUES (?, ?, ?, ?, ?)`),
		o.ID, o.SlotID, o.TokenID, o.StartTime, o.EndTime)
	return err
}

// CloseTx sets the end time of the token's open interval on slotID. Exactly
// one open row must exist; otherwise ErrConflict is returned.
func (r *OccupancyRepo) CloseTx(ctx context.Context, q DBTX, slotID, tokenID id.ID, end time.Time) error {
	res, err := q.ExecContext(ctx, r.db.Dialect.Rebind(
		`UPDATE slot_occupancies SET end_time = ?
		  WHERE slot_id = ? AND token_id = ? AND end_time IS NULL`),
		end, slotID, tokenID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrConflict
	}
	return nil
}

// GetByTokenTx returns the occupancy interval recorded for a token.
func (r *OccupancyRepo) GetByTokenTx(ctx context.Context, q DBTX, tokenID id.ID) (*model.SlotOccupancy, error) {
	var o model.SlotOccupancy
	err := q.QueryRowContext(ctx, r.db.Dialect.Rebind(
		`SELECT id, slot_id, token_id, start_time, end_time FROM slot_occupancies WHERE token_id = ?`), tokenID).
		Scan(&o.ID, &o.SlotID, &o.TokenID, &o.StartTime, &o.EndTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}
