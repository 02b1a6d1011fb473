// Package allocator claims one free slot for an arriving vehicle without
// double-booking under concurrent demand.
//
// On MySQL 8 and PostgreSQL the best candidate is locked with
// SELECT ... FOR UPDATE SKIP LOCKED, so concurrent claimers pass over rows
// another transaction is already taking and never queue behind them. On
// SQLite, which has no row locks, the claim is a compare-and-swap on the
// slot's (status, version) over a short ordered batch of candidates.
//
// Within one process the SQLite pool holds a single connection, so units of
// work are serialized and a CAS never loses. The conflict branch, and the
// retryable contention error after the last round, only run when several
// processes share the database file.
package allocator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/smart-parking/internal/database"
	"github.com/iliyamo/smart-parking/internal/id"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/repository"
)

const (
	casBatch  = 8
	casRounds = 4
)

var errContended = errors.New("allocator: every candidate was claimed concurrently")

// Constraints describe what the vehicle needs. VehicleType "" or ANY places
// no vehicle restriction; ZoneType "" places no zone restriction.
type Constraints struct {
	VehicleType       string `json:"vehicle_type"`
	ZoneType          string `json:"zone_type,omitempty"`
	RequireAccessible bool   `json:"require_accessible,omitempty"`
	RequireEVCharger  bool   `json:"require_ev_charger,omitempty"`
}

func (c Constraints) filter() repository.SlotFilter {
	return repository.SlotFilter{
		VehicleType:       c.VehicleType,
		ZoneType:          c.ZoneType,
		RequireAccessible: c.RequireAccessible,
		RequireEVCharger:  c.RequireEVCharger,
	}
}

// Allocator reserves slots.
type Allocator struct {
	slots      *repository.SlotRepo
	skipLocked bool
	now        func() time.Time
}

// New returns an Allocator that picks its claim strategy from the dialect.
func New(slots *repository.SlotRepo, dialect database.Dialect) *Allocator {
	return &Allocator{
		slots:      slots,
		skipLocked: dialect.SupportsSkipLocked(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Allocate reserves the best matching AVAILABLE slot of lotID inside the
// caller's unit of work q and returns it with status RESERVED. It returns
// model.ErrNoSlotAvailable when nothing matches. The reservation becomes
// visible to other claimers only when q commits.
func (a *Allocator) Allocate(ctx context.Context, q repository.DBTX, lotID id.ID, c Constraints) (*model.Slot, error) {
	if a.skipLocked {
		return a.claimSkipLocked(ctx, q, lotID, c)
	}
	return a.claimCAS(ctx, q, lotID, c)
}

func (a *Allocator) claimSkipLocked(ctx context.Context, q repository.DBTX, lotID id.ID, c Constraints) (*model.Slot, error) {
	slot, err := a.slots.LockFirstCandidateTx(ctx, q, lotID, c.filter())
	if err != nil {
		return nil, fmt.Errorf("lock candidate: %w", err)
	}
	if slot == nil {
		return nil, model.ErrNoSlotAvailable
	}
	// the row is locked by us; a failed guard means the read lied
	if err := a.slots.ReserveTx(ctx, q, slot, a.now()); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: locked slot %s not reservable", model.ErrInvariantViolation, slot.ID)
		}
		return nil, err
	}
	return slot, nil
}

func (a *Allocator) claimCAS(ctx context.Context, q repository.DBTX, lotID id.ID, c Constraints) (*model.Slot, error) {
	f := c.filter()
	for round := 0; round < casRounds; round++ {
		candidates, err := a.slots.ListCandidatesTx(ctx, q, lotID, f, casBatch)
		if err != nil {
			return nil, fmt.Errorf("list candidates: %w", err)
		}
		if len(candidates) == 0 {
			return nil, model.ErrNoSlotAvailable
		}
		for _, slot := range candidates {
			err := a.slots.ReserveTx(ctx, q, slot, a.now())
			if err == nil {
				return slot, nil
			}
			if !errors.Is(err, repository.ErrConflict) {
				return nil, err
			}
		}
	}
	return nil, database.Retryable(errContended)
}
