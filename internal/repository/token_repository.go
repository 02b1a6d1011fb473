package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gopkg.in/guregu/null.v4"

	"github.com/iliyamo/smart-parking/internal/database"
	"github.com/iliyamo/smart-parking/internal/id"
	"github.com/iliyamo/smart-parking/internal/model"
)

// TokenRepo provides access to tokens (parking sessions). Tokens are never
// deleted.
type TokenRepo struct {
	db *database.DB
}

// NewTokenRepo returns a TokenRepo bound to db.
func NewTokenRepo(db *database.DB) *TokenRepo { return &TokenRepo{db: db} }

const tokenColumns = `id, token_number, lot_id, slot_id, vehicle_plate, vehicle_type,
	entry_time, exit_time, status, created_at, updated_at`

func scanToken(sc rowScanner) (*model.Token, error) {
	var (
		t      model.Token
		status string
	)
	err := sc.Scan(&t.ID, &t.TokenNumber, &t.LotID, &t.SlotID, &t.VehiclePlate, &t.VehicleType,
		&t.EntryTime, &t.ExitTime, &status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = model.TokenStatus(status)
	return &t, nil
}

// CreateTx inserts a new token row.
func (r *TokenRepo) CreateTx(ctx context.Context, q DBTX, t *model.Token) error {
	_, err := q.ExecContext(ctx, r.db.Dialect.Rebind(
		`INSERT INTO tokens (id, token_number, lot_id, slot_id, vehicle_plate, vehicle_type,
		   entry_time, exit_time, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.TokenNumber, t.LotID, t.SlotID, t.VehiclePlate, t.VehicleType,
		t.EntryTime, t.ExitTime, string(t.Status), t.CreatedAt, t.UpdatedAt)
	return err
}

// GetByID loads a token outside any unit of work.
func (r *TokenRepo) GetByID(ctx context.Context, tokenID id.ID) (*model.Token, error) {
	t, err := scanToken(r.db.QueryRowContext(ctx, r.db.Dialect.Rebind(
		`SELECT `+tokenColumns+` FROM tokens WHERE id = ?`), tokenID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// GetForUpdateTx loads a token and locks its row until the transaction
// ends, so a completion and a concurrent cancel of the same token serialize.
func (r *TokenRepo) GetForUpdateTx(ctx context.Context, q DBTX, tokenID id.ID) (*model.Token, error) {
	t, err := scanToken(q.QueryRowContext(ctx, r.db.Dialect.Rebind(
		`SELECT `+tokenColumns+` FROM tokens WHERE id = ?`+r.db.Dialect.ForUpdate()), tokenID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// HasActiveForPlateTx reports whether plate already has an ACTIVE token in
// the lot.
func (r *TokenRepo) HasActiveForPlateTx(ctx context.Context, q DBTX, lotID id.ID, plate string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, r.db.Dialect.Rebind(
		`SELECT COUNT(*) FROM tokens WHERE lot_id = ? AND vehicle_plate = ? AND status = ?`),
		lotID, plate, string(model.TokenActive)).Scan(&n)
	return n > 0, err
}

// TransitionTx moves an ACTIVE token to a terminal status and stamps its
// exit time. The update is guarded on status = ACTIVE; ErrConflict means the
// token had already left ACTIVE.
func (r *TokenRepo) TransitionTx(ctx context.Context, q DBTX, t *model.Token, to model.TokenStatus, exit time.Time) error {
	res, err := q.ExecContext(ctx, r.db.Dialect.Rebind(
		`UPDATE tokens SET status = ?, exit_time = ?, updated_at = ?
		  WHERE id = ? AND status = ?`),
		string(to), exit, exit, t.ID, string(model.TokenActive))
	if err != nil {
		return err
	}
	if err := affectedOne(res); err != nil {
		return err
	}
	t.Status = to
	t.ExitTime = null.TimeFrom(exit)
	t.UpdatedAt = exit
	return nil
}
