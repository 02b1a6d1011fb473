package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/smart-parking/internal/database"
	"github.com/iliyamo/smart-parking/internal/id"
	"github.com/iliyamo/smart-parking/internal/model"
)

// SlotFilter narrows the candidate set of an allocation. Empty strings and
// false flags mean "no constraint"; VehicleType ANY also means no filter.
type SlotFilter struct {
	VehicleType       string
	ZoneType          string
	RequireAccessible bool
	RequireEVCharger  bool
}

// SlotRepo provides access to the slots table, the only hot shared
// resource of the engine.
type SlotRepo struct {
	db *database.DB
}

// NewSlotRepo returns a SlotRepo bound to db.
func NewSlotRepo(db *database.DB) *SlotRepo { return &SlotRepo{db: db} }

const slotColumns = `s.id, s.lot_id, s.zone_id, s.slot_number, s.label, s.vehicle_type,
	s.is_accessible, s.has_ev_charger, s.status, s.is_occupied, s.is_under_maintenance,
	s.version, s.created_at, s.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(sc rowScanner) (*model.Slot, error) {
	var (
		s      model.Slot
		status string
	)
	err := sc.Scan(&s.ID, &s.LotID, &s.ZoneID, &s.SlotNumber, &s.Label, &s.VehicleType,
		&s.IsAccessible, &s.HasEVCharger, &status, &s.IsOccupied, &s.IsUnderMaintenance,
		&s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = model.SlotStatus(status)
	return &s, nil
}

// CreateTx inserts a slot at facility setup.
func (r *SlotRepo) CreateTx(ctx context.Context, q DBTX, s *model.Slot) error {
	_, err := q.ExecContext(ctx, r.db.Dialect.Rebind(
		`INSERT INTO slots (id, lot_id, zone_id, slot_number, label, vehicle_type, is_accessible,
		   has_ev_charger, status, is_occupied, is_under_maintenance, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		s.ID, s.LotID, s.ZoneID, s.SlotNumber, s.Label, s.VehicleType, s.IsAccessible,
		s.HasEVCharger, string(s.Status), s.IsOccupied, s.IsUnderMaintenance, s.Version,
		s.CreatedAt, s.UpdatedAt)
	return err
}

// GetByIDTx loads one slot. It returns ErrNotFound when absent.
func (r *SlotRepo) GetByIDTx(ctx context.Context, q DBTX, slotID id.ID) (*model.Slot, error) {
	row := q.QueryRowContext(ctx, r.db.Dialect.Rebind(
		`SELECT `+slotColumns+` FROM slots s WHERE s.id = ?`), slotID)
	s, err := scanSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// candidateQuery builds the ordered candidate SELECT for an allocation:
// lowest zone level, then zone sort order, then slot number.
func candidateQuery(lotID id.ID, f SlotFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT ` + slotColumns + `
		FROM slots s JOIN zones z ON z.id = s.zone_id
		WHERE s.lot_id = ? AND s.status = ? AND s.is_occupied = ? AND s.is_under_maintenance = ?`)
	args := []any{lotID, string(model.SlotAvailable), false, false}

	if vt := strings.ToUpper(strings.TrimSpace(f.VehicleType)); vt != "" && vt != model.VehicleTypeAny {
		b.WriteString(` AND (s.vehicle_type = ? OR s.vehicle_type = ?)`)
		args = append(args, vt, model.VehicleTypeAny)
	}
	if zt := strings.ToUpper(strings.TrimSpace(f.ZoneType)); zt != "" {
		b.WriteString(` AND z.zone_type = ?`)
		args = append(args, zt)
	}
	if f.RequireAccessible {
		b.WriteString(` AND s.is_accessible = ?`)
		args = append(args, true)
	}
	if f.RequireEVCharger {
		b.WriteString(` AND s.has_ev_charger = ?`)
		args = append(args, true)
	}
	b.WriteString(` ORDER BY z.level ASC, z.sort_order ASC, s.slot_number ASC`)
	return b.String(), args
}

// skipLockedQuery is the candidate SELECT with the claim suffix, rebound for
// the dialect. The row lock covers the slot only, never its zone.
func skipLockedQuery(d database.Dialect, lotID id.ID, f SlotFilter) (string, []any) {
	query, args := candidateQuery(lotID, f)
	return d.Rebind(query + ` LIMIT 1 FOR UPDATE OF s SKIP LOCKED`), args
}

// LockFirstCandidateTx locks and returns the best matching AVAILABLE slot,
// skipping rows already locked by concurrent claimers instead of waiting on
// them. It returns nil, nil when nothing matches. The dialect must support
// SKIP LOCKED.
func (r *SlotRepo) LockFirstCandidateTx(ctx context.Context, q DBTX, lotID id.ID, f SlotFilter) (*model.Slot, error) {
	if !r.db.Dialect.SupportsSkipLocked() {
		return nil, fmt.Errorf("slot repo: %s cannot skip locked rows", r.db.Dialect)
	}
	query, args := skipLockedQuery(r.db.Dialect, lotID, f)
	s, err := scanSlot(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// ListCandidatesTx returns up to limit matching slots in preference order
// without locking them.
func (r *SlotRepo) ListCandidatesTx(ctx context.Context, q DBTX, lotID id.ID, f SlotFilter, limit int) ([]*model.Slot, error) {
	query, args := candidateQuery(lotID, f)
	query += ` LIMIT ?`
	args = append(args, limit)
	rows, err := q.QueryContext(ctx, r.db.Dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ReserveTx moves an AVAILABLE slot to RESERVED, guarded on the version the
// caller read. It returns ErrConflict when another claimer changed the slot
// first.
func (r *SlotRepo) ReserveTx(ctx context.Context, q DBTX, s *model.Slot, now time.Time) error {
	res, err := q.ExecContext(ctx, r.db.Dialect.Rebind(
		`UPDATE slots SET status = ?, version = version + 1, updated_at = ?
		  WHERE id = ? AND status = ? AND version = ?`),
		string(model.SlotReserved), now, s.ID, string(model.SlotAvailable), s.Version)
	if err != nil {
		return err
	}
	if err := affectedOne(res); err != nil {
		return err
	}
	s.Status = model.SlotReserved
	s.Version++
	s.UpdatedAt = now
	return nil
}

// ReleaseTx returns a held slot to AVAILABLE and clears its occupied flag.
// Only RESERVED or OCCUPIED slots can be released; anything else yields
// ErrConflict, which callers treat as an invariant violation.
func (r *SlotRepo) ReleaseTx(ctx context.Context, q DBTX, slotID id.ID, now time.Time) error {
	res, err := q.ExecContext(ctx, r.db.Dialect.Rebind(
		`UPDATE slots SET status = ?, is_occupied = ?, version = version + 1, updated_at = ?
		  WHERE id = ? AND status IN (?, ?)`),
		string(model.SlotAvailable), false, now, slotID, string(model.SlotReserved), string(model.SlotOccupied))
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// SetStatusTx forces a slot status. It is used by facility setup and by
// tests; the engine itself only reserves and releases.
func (r *SlotRepo) SetStatusTx(ctx context.Context, q DBTX, slotID id.ID, status model.SlotStatus, now time.Time) error {
	res, err := q.ExecContext(ctx, r.db.Dialect.Rebind(
		`UPDATE slots SET status = ?, is_occupied = ?, is_under_maintenance = ?, version = version + 1, updated_at = ?
		  WHERE id = ?`),
		string(status), status == model.SlotOccupied, status == model.SlotMaintenance, now, slotID)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// CountByStatus summarises the slots of a lot.
func (r *SlotRepo) CountByStatus(ctx context.Context, lotID id.ID) (model.SlotCounts, error) {
	var c model.SlotCounts
	rows, err := r.db.QueryContext(ctx, r.db.Dialect.Rebind(
		`SELECT status, COUNT(*) FROM slots WHERE lot_id = ? GROUP BY status`), lotID)
	if err != nil {
		return c, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return c, err
		}
		c.Total += n
		switch model.SlotStatus(status) {
		case model.SlotAvailable:
			c.Available = n
		case model.SlotReserved:
			c.Reserved = n
		case model.SlotOccupied:
			c.Occupied = n
		case model.SlotMaintenance:
			c.Maintenance = n
		}
	}
	return c, rows.Err()
}
