// Package session drives parking sessions (tokens) through their lifecycle:
// start on entry, complete with billing on exit, cancel, and operator
// overrides. Every operation is one unit of work; the token status, the
// slot status and the occupancy record always change together.
package session

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/iliyamo/smart-parking/internal/allocator"
	"github.com/iliyamo/smart-parking/internal/database"
	"github.com/iliyamo/smart-parking/internal/id"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/pricing"
	"github.com/iliyamo/smart-parking/internal/queue"
	"github.com/iliyamo/smart-parking/internal/repository"
)

// Options configures an Engine. Zero values select defaults: node 1, rules
// from the database, default pricing config, no event publishing, UTC wall
// clock.
type Options struct {
	NodeID    int64
	Rules     pricing.RuleSource
	Fees      *pricing.Engine
	Publisher queue.Publisher
	Clock     func() time.Time
}

// Engine is the session lifecycle service.
type Engine struct {
	db          *database.DB
	lots        *repository.LotRepo
	slots       *repository.SlotRepo
	tokens      *repository.TokenRepo
	txns        *repository.TransactionRepo
	occupancies *repository.OccupancyRepo
	alloc       *allocator.Allocator
	rules       pricing.RuleSource
	fees        *pricing.Engine
	publisher   queue.Publisher
	numbers     *snowflake.Node
	now         func() time.Time
}

// NewEngine wires an Engine over db.
func NewEngine(db *database.DB, opts Options) (*Engine, error) {
	nodeID := opts.NodeID
	if nodeID == 0 {
		nodeID = 1
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("token number node: %w", err)
	}
	e := &Engine{
		db:          db,
		lots:        repository.NewLotRepo(db),
		slots:       repository.NewSlotRepo(db),
		tokens:      repository.NewTokenRepo(db),
		txns:        repository.NewTransactionRepo(db),
		occupancies: repository.NewOccupancyRepo(db),
		rules:       opts.Rules,
		fees:        opts.Fees,
		publisher:   opts.Publisher,
		numbers:     node,
		now:         opts.Clock,
	}
	e.alloc = allocator.New(e.slots, db.Dialect)
	if e.rules == nil {
		e.rules = pricing.DBRuleSource{Rules: repository.NewPricingRuleRepo(db)}
	}
	if e.fees == nil {
		e.fees = pricing.NewEngine(pricing.Config{TaxBasisPoints: pricing.DefaultTaxBasisPoints})
	}
	if e.publisher == nil {
		e.publisher = queue.NopPublisher{}
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	return e, nil
}

// StartRequest asks for a new session in a lot.
type StartRequest struct {
	LotID        id.ID
	Constraints  allocator.Constraints
	VehiclePlate string
}

// StartResult is the ACTIVE token and the slot reserved for it.
type StartResult struct {
	Token *model.Token
	Slot  *model.Slot
}

// CompleteResult is the closed token, its billing record and the itemised
// quote behind it.
type CompleteResult struct {
	Token       *model.Token
	Transaction *model.Transaction
	Quote       pricing.Quote
}

// Start allocates a slot and opens an ACTIVE token bound to it. No token is
// created when allocation fails.
func (e *Engine) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	plate := NormalizePlate(req.VehiclePlate)
	vehicleType := strings.ToUpper(strings.TrimSpace(req.Constraints.VehicleType))
	if vehicleType == "" {
		vehicleType = model.VehicleTypeAny
	}

	var out *StartResult
	err := e.db.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		lot, err := e.lots.GetByIDTx(ctx, tx, req.LotID)
		if errors.Is(err, repository.ErrNotFound) {
			return model.ErrLotNotFound
		}
		if err != nil {
			return err
		}
		if lot.Status != model.LotActive {
			return model.ErrLotClosed
		}
		if plate != "" {
			parked, err := e.tokens.HasActiveForPlateTx(ctx, tx, lot.ID, plate)
			if err != nil {
				return err
			}
			if parked {
				return model.ErrVehicleAlreadyParked
			}
		}

		slot, err := e.alloc.Allocate(ctx, tx, lot.ID, req.Constraints)
		if err != nil {
			return err
		}

		now := e.now()
		tok := &model.Token{
			ID:           id.NewTokenID(),
			TokenNumber:  e.nextTokenNumber(),
			LotID:        lot.ID,
			SlotID:       slot.ID,
			VehiclePlate: plate,
			VehicleType:  vehicleType,
			EntryTime:    now,
			Status:       model.TokenActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := e.tokens.CreateTx(ctx, tx, tok); err != nil {
			if database.IsUniqueViolation(err) {
				return database.Retryable(err)
			}
			return fmt.Errorf("create token: %w", err)
		}
		occ := &model.SlotOccupancy{
			ID:        id.NewOccupancyID(),
			SlotID:    slot.ID,
			TokenID:   tok.ID,
			StartTime: now,
		}
		if err := e.occupancies.OpenTx(ctx, tx, occ); err != nil {
			return fmt.Errorf("open occupancy: %w", err)
		}
		out = &StartResult{Token: tok, Slot: slot}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev := queue.NewTokenEvent(queue.EventSessionStarted, out.Token, e.now())
	ev.SlotLabel = out.Slot.Label
	e.publish(ctx, ev)
	return out, nil
}

// Complete closes an ACTIVE token with billing: it prices the stay with the
// lot's active rule, writes the transaction, moves the token to COMPLETED
// and releases the slot. Either all of it commits or none of it does.
func (e *Engine) Complete(ctx context.Context, tokenID id.ID, paymentMethod string) (*CompleteResult, error) {
	var out *CompleteResult
	err := e.db.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		tok, err := e.lockActive(ctx, tx, tokenID)
		if err != nil {
			return err
		}
		lot, err := e.lots.GetByIDTx(ctx, tx, tok.LotID)
		if err != nil {
			return fmt.Errorf("load lot of token %s: %w", tok.ID, err)
		}

		exit := e.now()
		rule, err := e.rules.ActiveRule(ctx, tx, tok.LotID)
		if err != nil {
			return fmt.Errorf("resolve pricing rule: %w", err)
		}
		quote, err := e.fees.Quote(tok.EntryTime, exit, rule)
		if err != nil {
			return err
		}
		if quote.DefaultApplied {
			log.Printf("pricing: lot %s has no usable active pricing rule; billed token %s at the default hourly rate", lot.ID, tok.ID)
		}

		receipt, err := newReceiptNumber(exit)
		if err != nil {
			return err
		}
		status := model.PaymentPending
		if quote.Net == 0 {
			status = model.PaymentWaived
		}
		txn := &model.Transaction{
			ID:              id.NewTransactionID(),
			TokenID:         tok.ID,
			LotID:           tok.LotID,
			ReceiptNumber:   receipt,
			EntryTime:       tok.EntryTime,
			ExitTime:        exit,
			DurationMinutes: quote.DurationMinutes,
			BilledHours:     quote.BilledHours,
			PricingModel:    quote.Model,
			GrossAmount:     quote.Gross,
			TaxAmount:       quote.Tax,
			NetAmount:       quote.Net,
			Currency:        lot.Currency,
			PaymentMethod:   strings.ToUpper(strings.TrimSpace(paymentMethod)),
			PaymentStatus:   status,
			CreatedAt:       exit,
		}
		if err := e.txns.CreateTx(ctx, tx, txn); err != nil {
			if database.IsUniqueViolationOf(err, "uq_transactions_token", "transactions.token_id") {
				log.Printf("BUG: token %s was ACTIVE but already has a transaction", tok.ID)
				return fmt.Errorf("%w: token %s already billed", model.ErrInvariantViolation, tok.ID)
			}
			if database.IsUniqueViolation(err) {
				// receipt collision: start over with a fresh suffix
				return database.Retryable(err)
			}
			return fmt.Errorf("create transaction: %w", err)
		}

		if err := e.closeSession(ctx, tx, tok, model.TokenCompleted, exit); err != nil {
			return err
		}
		out = &CompleteResult{Token: tok, Transaction: txn, Quote: quote}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev := queue.NewTokenEvent(queue.EventSessionCompleted, out.Token, e.now())
	ev.ReceiptNumber = out.Transaction.ReceiptNumber
	ev.NetAmount = out.Transaction.NetAmount
	ev.Currency = out.Transaction.Currency
	e.publish(ctx, ev)
	return out, nil
}

// Cancel aborts an ACTIVE session without a fee and frees its slot.
func (e *Engine) Cancel(ctx context.Context, tokenID id.ID) (*model.Token, error) {
	return e.terminate(ctx, tokenID, model.TokenCancelled)
}

// UpdateStatus is the operator override: it moves an ACTIVE token to
// CANCELLED, EXPIRED or LOST and frees its slot. COMPLETED is reachable only
// through Complete.
func (e *Engine) UpdateStatus(ctx context.Context, tokenID id.ID, status model.TokenStatus) (*model.Token, error) {
	switch status {
	case model.TokenCancelled, model.TokenExpired, model.TokenLost:
		return e.terminate(ctx, tokenID, status)
	}
	return nil, fmt.Errorf("%w: %q", model.ErrInvalidStatus, status)
}

func (e *Engine) terminate(ctx context.Context, tokenID id.ID, to model.TokenStatus) (*model.Token, error) {
	var out *model.Token
	err := e.db.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		tok, err := e.lockActive(ctx, tx, tokenID)
		if err != nil {
			return err
		}
		if err := e.closeSession(ctx, tx, tok, to, e.now()); err != nil {
			return err
		}
		out = tok
		return nil
	})
	if err != nil {
		return nil, err
	}

	evType := queue.EventSessionClosed
	if to == model.TokenCancelled {
		evType = queue.EventSessionCancelled
	}
	e.publish(ctx, queue.NewTokenEvent(evType, out, e.now()))
	return out, nil
}

// lockActive loads and row-locks a token that must still be ACTIVE.
func (e *Engine) lockActive(ctx context.Context, q repository.DBTX, tokenID id.ID) (*model.Token, error) {
	tok, err := e.tokens.GetForUpdateTx(ctx, q, tokenID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, model.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	if tok.Status != model.TokenActive {
		return nil, model.ErrInvalidStateTransition
	}
	return tok, nil
}

// closeSession is the only path out of ACTIVE. In the caller's unit of work
// it moves the token to a terminal status, returns its slot to AVAILABLE and
// closes the open occupancy interval. A slot that is not held, or a missing
// open interval, aborts the unit as an invariant violation.
func (e *Engine) closeSession(ctx context.Context, q repository.DBTX, tok *model.Token, to model.TokenStatus, at time.Time) error {
	if !tok.Status.CanTransitionTo(to) {
		return model.ErrInvalidStateTransition
	}
	if err := e.tokens.TransitionTx(ctx, q, tok, to, at); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return model.ErrInvalidStateTransition
		}
		return fmt.Errorf("transition token: %w", err)
	}
	if err := e.slots.ReleaseTx(ctx, q, tok.SlotID, at); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			log.Printf("BUG: session: token %s leaving ACTIVE but slot %s is not held", tok.ID, tok.SlotID)
			return fmt.Errorf("%w: slot %s of token %s is not RESERVED or OCCUPIED", model.ErrInvariantViolation, tok.SlotID, tok.ID)
		}
		return fmt.Errorf("release slot: %w", err)
	}
	if err := e.occupancies.CloseTx(ctx, q, tok.SlotID, tok.ID, at); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			log.Printf("BUG: session: token %s has no single open occupancy on slot %s", tok.ID, tok.SlotID)
			return fmt.Errorf("%w: occupancy of token %s not open", model.ErrInvariantViolation, tok.ID)
		}
		return fmt.Errorf("close occupancy: %w", err)
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, ev queue.ParkingEvent) {
	// the session change is committed; delivery failures are only logged
	if err := e.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		log.Printf("session: publish %s for token %s failed: %v", ev.Type, ev.TokenID, err)
	}
}

func (e *Engine) nextTokenNumber() string {
	return "T" + strings.ToUpper(e.numbers.Generate().Base36())
}

// NormalizePlate upper-cases a licence plate and strips spaces and dashes.
func NormalizePlate(plate string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '\t' {
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(plate)))
}

// newReceiptNumber returns RCP-YYYYMMDD-XXXXXXXX with a random hex suffix.
func newReceiptNumber(at time.Time) (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "RCP-" + at.UTC().Format("20060102") + "-" + strings.ToUpper(hex.EncodeToString(b)), nil
}
