package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/smart-parking/internal/database"
	"github.com/iliyamo/smart-parking/internal/id"
	"github.com/iliyamo/smart-parking/internal/model"
)

// LotRepo provides access to parking_lots and zones. Both are read-mostly
// and need no row locks.
type LotRepo struct {
	db *database.DB
}

// NewLotRepo returns a LotRepo bound to db.
func NewLotRepo(db *database.DB) *LotRepo { return &LotRepo{db: db} }

// CreateTx inserts a lot. ID, CreatedAt and UpdatedAt must be set.
func (r *LotRepo) CreateTx(ctx context.Context, q DBTX, lot *model.ParkingLot) error {
	_, err := q.ExecContext(ctx, r.db.Dialect.Rebind(
		`INSERT INTO parking_lots (id, name, address, status, currency, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		lot.ID, lot.Name, lot.Address, string(lot.Status), lot.Currency, lot.CreatedAt, lot.UpdatedAt)
	return err
}

// GetByIDTx loads a lot. It returns ErrNotFound when absent.
func (r *LotRepo) GetByIDTx(ctx context.Context, q DBTX, lotID id.ID) (*model.ParkingLot, error) {
	var (
		lot    model.ParkingLot
		status string
	)
	err := q.QueryRowContext(ctx, r.db.Dialect.Rebind(
		`SELECT id, name, address, status, currency, created_at, updated_at
		   FROM parking_lots WHERE id = ?`), lotID).
		Scan(&lot.ID, &lot.Name, &lot.Address, &status, &lot.Currency, &lot.CreatedAt, &lot.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	lot.Status = model.LotStatus(status)
	return &lot, nil
}

// GetByID is GetByIDTx on the pool.
func (r *LotRepo) GetByID(ctx context.Context, lotID id.ID) (*model.ParkingLot, error) {
	return r.GetByIDTx(ctx, r.db, lotID)
}

// CreateZoneTx inserts a zone.
func (r *LotRepo) CreateZoneTx(ctx context.Context, q DBTX, z *model.Zone) error {
	_, err := q.ExecContext(ctx, r.db.Dialect.Rebind(
		`INSERT INTO zones (id, lot_id, name, zone_type, level, sort_order, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		z.ID, z.LotID, z.Name, z.ZoneType, z.Level, z.SortOrder, z.CreatedAt)
	return err
}

// ListZones returns a lot's zones in allocation preference order.
func (r *LotRepo) ListZones(ctx context.Context, lotID id.ID) ([]model.Zone, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Dialect.Rebind(
		`SELECT id, lot_id, name, zone_type, level, sort_order, created_at
		   FROM zones WHERE lot_id = ? ORDER BY level, sort_order, name`), lotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var zones []model.Zone
	for rows.Next() {
		var z model.Zone
		if err := rows.Scan(&z.ID, &z.LotID, &z.Name, &z.ZoneType, &z.Level, &z.SortOrder, &z.CreatedAt); err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}
