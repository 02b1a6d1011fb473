package session_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/smart-parking/internal/allocator"
	"github.com/iliyamo/smart-parking/internal/database"
	"github.com/iliyamo/smart-parking/internal/database/databasetest"
	"github.com/iliyamo/smart-parking/internal/id"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/pricing"
	"github.com/iliyamo/smart-parking/internal/queue"
	"github.com/iliyamo/smart-parking/internal/repository"
	"github.com/iliyamo/smart-parking/internal/seed"
	"github.com/iliyamo/smart-parking/internal/session"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []queue.ParkingEvent
	err    error
}

func (r *recorder) Publish(_ context.Context, ev queue.ParkingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	db     *database.DB
	engine *session.Engine
	clock  *clock
	events *recorder
	lot    *seed.Result
}

var standardRule = seed.RuleSpec{Name: "standard", Model: "HOURLY", BaseRate: 50, HourlyRate: 30, Priority: 1}

func newFixture(t *testing.T, f seed.Facility) *fixture {
	t.Helper()
	db := databasetest.Open(t)
	res, err := seed.Apply(context.Background(), db, f)
	require.NoError(t, err)

	fx := &fixture{db: db, clock: &clock{now: t0}, events: &recorder{}, lot: res}
	fx.engine, err = session.NewEngine(db, session.Options{
		NodeID:    7,
		Fees:      pricing.NewEngine(pricing.Config{TaxBasisPoints: 1800, DefaultHourlyRate: 100}),
		Publisher: fx.events,
		Clock:     fx.clock.Now,
	})
	require.NoError(t, err)
	return fx
}

func oneSlotLot() seed.Facility {
	return seed.Facility{
		Name:  "Central",
		Zones: []seed.ZoneSpec{{Name: "A", Count: 1}},
		Rules: []seed.RuleSpec{standardRule},
	}
}

func (fx *fixture) slot(t *testing.T, slotID id.ID) *model.Slot {
	t.Helper()
	s, err := repository.NewSlotRepo(fx.db).GetByIDTx(context.Background(), fx.db, slotID)
	require.NoError(t, err)
	return s
}

func (fx *fixture) occupancy(t *testing.T, tokenID id.ID) *model.SlotOccupancy {
	t.Helper()
	o, err := repository.NewOccupancyRepo(fx.db).GetByTokenTx(context.Background(), fx.db, tokenID)
	require.NoError(t, err)
	return o
}

func (fx *fixture) transactions(t *testing.T, tokenID id.ID) int {
	t.Helper()
	n, err := repository.NewTransactionRepo(fx.db).CountByToken(context.Background(), tokenID)
	require.NoError(t, err)
	return n
}

func countTokens(t *testing.T, db *database.DB) int {
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM tokens`).Scan(&n))
	return n
}

func TestEndToEndEntryAndExit(t *testing.T) {
	fx := newFixture(t, oneSlotLot())
	ctx := context.Background()
	lotID := fx.lot.Lot.ID

	started, err := fx.engine.Start(ctx, session.StartRequest{
		LotID:        lotID,
		Constraints:  allocator.Constraints{VehicleType: "CAR"},
		VehiclePlate: "ka-01 ab 1234",
	})
	require.NoError(t, err)
	assert.Equal(t, "A-1", started.Slot.Label)
	assert.Equal(t, model.SlotReserved, fx.slot(t, started.Slot.ID).Status)

	tok := started.Token
	assert.Equal(t, model.TokenActive, tok.Status)
	assert.Equal(t, t0, tok.EntryTime)
	assert.False(t, tok.ExitTime.Valid)
	assert.Equal(t, "KA01AB1234", tok.VehiclePlate)
	assert.Equal(t, "CAR", tok.VehicleType)
	assert.Regexp(t, regexp.MustCompile(`^T[0-9A-Z]+$`), tok.TokenNumber)
	assert.False(t, fx.occupancy(t, tok.ID).EndTime.Valid)

	_, err = fx.engine.Start(ctx, session.StartRequest{LotID: lotID, Constraints: allocator.Constraints{VehicleType: "CAR"}})
	assert.ErrorIs(t, err, model.ErrNoSlotAvailable)
	assert.Equal(t, 1, countTokens(t, fx.db), "a failed allocation creates no token")

	fx.clock.Advance(90 * time.Minute)
	done, err := fx.engine.Complete(ctx, tok.ID, "upi")
	require.NoError(t, err)

	assert.Equal(t, model.TokenCompleted, done.Token.Status)
	require.True(t, done.Token.ExitTime.Valid)
	assert.Equal(t, t0.Add(90*time.Minute), done.Token.ExitTime.Time)

	txn := done.Transaction
	assert.Equal(t, int64(90), txn.DurationMinutes)
	assert.Equal(t, int64(2), txn.BilledHours)
	assert.Equal(t, int64(80), txn.GrossAmount)
	assert.Equal(t, int64(14), txn.TaxAmount)
	assert.Equal(t, int64(94), txn.NetAmount)
	assert.Equal(t, "UPI", txn.PaymentMethod)
	assert.Equal(t, model.PaymentPending, txn.PaymentStatus)
	assert.Equal(t, "inr", txn.Currency)
	assert.Regexp(t, regexp.MustCompile(`^RCP-20260314-[0-9A-F]{8}$`), txn.ReceiptNumber)

	assert.Equal(t, model.SlotAvailable, fx.slot(t, started.Slot.ID).Status)
	occ := fx.occupancy(t, tok.ID)
	require.True(t, occ.EndTime.Valid)
	assert.Equal(t, t0.Add(90*time.Minute), occ.EndTime.Time.UTC())

	stored, err := fx.engine.Get(ctx, tok.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TokenCompleted, stored.Status)

	receipt, err := fx.engine.Receipt(ctx, tok.ID)
	require.NoError(t, err)
	assert.Equal(t, txn.ReceiptNumber, receipt.ReceiptNumber)
	assert.Equal(t, int64(94), receipt.NetAmount)

	assert.Equal(t, []string{queue.EventSessionStarted, queue.EventSessionCompleted}, fx.events.types())
	last := fx.events.events[1]
	assert.Equal(t, txn.ReceiptNumber, last.ReceiptNumber)
	assert.Equal(t, int64(94), last.NetAmount)

	// the freed slot is allocatable again
	again, err := fx.engine.Start(ctx, session.StartRequest{LotID: lotID})
	require.NoError(t, err)
	assert.Equal(t, started.Slot.ID, again.Slot.ID)
}

func TestCompleteTwiceWritesOneTransaction(t *testing.T) {
	fx := newFixture(t, oneSlotLot())
	ctx := context.Background()
	started, err := fx.engine.Start(ctx, session.StartRequest{LotID: fx.lot.Lot.ID})
	require.NoError(t, err)

	fx.clock.Advance(time.Minute)
	first, err := fx.engine.Complete(ctx, started.Token.ID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(50), first.Transaction.GrossAmount)

	_, err = fx.engine.Complete(ctx, started.Token.ID, "")
	assert.ErrorIs(t, err, model.ErrInvalidStateTransition)
	assert.Equal(t, 1, fx.transactions(t, started.Token.ID))
}

func TestCompleteUnknownToken(t *testing.T) {
	fx := newFixture(t, oneSlotLot())
	_, err := fx.engine.Complete(context.Background(), id.NewTokenID(), "")
	assert.ErrorIs(t, err, model.ErrTokenNotFound)
	_, err = fx.engine.Cancel(context.Background(), id.NewTokenID())
	assert.ErrorIs(t, err, model.ErrTokenNotFound)
	_, err = fx.engine.Get(context.Background(), id.NewTokenID())
	assert.ErrorIs(t, err, model.ErrTokenNotFound)
}

func TestCancelReleasesSlotWithoutFee(t *testing.T) {
	fx := newFixture(t, oneSlotLot())
	ctx := context.Background()
	started, err := fx.engine.Start(ctx, session.StartRequest{LotID: fx.lot.Lot.ID})
	require.NoError(t, err)

	fx.clock.Advance(3 * time.Hour)
	tok, err := fx.engine.Cancel(ctx, started.Token.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TokenCancelled, tok.Status)
	assert.True(t, tok.ExitTime.Valid)

	assert.Equal(t, model.SlotAvailable, fx.slot(t, started.Slot.ID).Status)
	assert.True(t, fx.occupancy(t, tok.ID).EndTime.Valid)
	assert.Zero(t, fx.transactions(t, tok.ID))

	_, err = fx.engine.Complete(ctx, tok.ID, "")
	assert.ErrorIs(t, err, model.ErrInvalidStateTransition)
	_, err = fx.engine.Cancel(ctx, tok.ID)
	assert.ErrorIs(t, err, model.ErrInvalidStateTransition)
	_, err = fx.engine.Receipt(ctx, tok.ID)
	assert.ErrorIs(t, err, model.ErrReceiptNotFound)

	assert.Equal(t, []string{queue.EventSessionStarted, queue.EventSessionCancelled}, fx.events.types())
}

func TestOperatorStatusOverride(t *testing.T) {
	fx := newFixture(t, seed.Facility{Name: "Ops", Zones: []seed.ZoneSpec{{Name: "A", Count: 2}}})
	ctx := context.Background()

	for _, target := range []model.TokenStatus{model.TokenExpired, model.TokenLost} {
		started, err := fx.engine.Start(ctx, session.StartRequest{LotID: fx.lot.Lot.ID})
		require.NoError(t, err)

		_, err = fx.engine.UpdateStatus(ctx, started.Token.ID, model.TokenCompleted)
		assert.ErrorIs(t, err, model.ErrInvalidStatus)
		_, err = fx.engine.UpdateStatus(ctx, started.Token.ID, model.TokenActive)
		assert.ErrorIs(t, err, model.ErrInvalidStatus)

		tok, err := fx.engine.UpdateStatus(ctx, started.Token.ID, target)
		require.NoError(t, err)
		assert.Equal(t, target, tok.Status)
		assert.Equal(t, model.SlotAvailable, fx.slot(t, started.Slot.ID).Status)

		_, err = fx.engine.UpdateStatus(ctx, started.Token.ID, model.TokenCancelled)
		assert.ErrorIs(t, err, model.ErrInvalidStateTransition, "%s is terminal", target)
	}
}

func TestCompleteWithoutRuleUsesDefaultRate(t *testing.T) {
	fx := newFixture(t, seed.Facility{Name: "Unpriced", Zones: []seed.ZoneSpec{{Name: "A", Count: 1}}})
	ctx := context.Background()
	started, err := fx.engine.Start(ctx, session.StartRequest{LotID: fx.lot.Lot.ID})
	require.NoError(t, err)

	fx.clock.Advance(150 * time.Minute)
	done, err := fx.engine.Complete(ctx, started.Token.ID, "cash")
	require.NoError(t, err)
	assert.True(t, done.Quote.DefaultApplied)
	assert.Equal(t, model.PricingHourly, done.Transaction.PricingModel)
	assert.Equal(t, int64(300), done.Transaction.GrossAmount)
	assert.Equal(t, int64(354), done.Transaction.NetAmount)
}

func TestFreeRuleWaivesPayment(t *testing.T) {
	fx := newFixture(t, seed.Facility{
		Name:  "Free",
		Zones: []seed.ZoneSpec{{Name: "A", Count: 1}},
		Rules: []seed.RuleSpec{standardRule, {Name: "holiday", Model: "FREE", Priority: 10}},
	})
	ctx := context.Background()
	started, err := fx.engine.Start(ctx, session.StartRequest{LotID: fx.lot.Lot.ID})
	require.NoError(t, err)
	fx.clock.Advance(5 * time.Hour)
	done, err := fx.engine.Complete(ctx, started.Token.ID, "")
	require.NoError(t, err)
	assert.Zero(t, done.Transaction.NetAmount)
	assert.Equal(t, model.PaymentWaived, done.Transaction.PaymentStatus)
	assert.Equal(t, model.PricingFree, done.Transaction.PricingModel)
}

func TestStartGuards(t *testing.T) {
	fx := newFixture(t, seed.Facility{Name: "Guards", Zones: []seed.ZoneSpec{{Name: "A", Count: 3}}})
	ctx := context.Background()

	_, err := fx.engine.Start(ctx, session.StartRequest{LotID: id.NewLotID()})
	assert.ErrorIs(t, err, model.ErrLotNotFound)

	closed, err := seed.Apply(ctx, fx.db, seed.Facility{Name: "Shut", Closed: true, Zones: []seed.ZoneSpec{{Name: "A", Count: 1}}})
	require.NoError(t, err)
	_, err = fx.engine.Start(ctx, session.StartRequest{LotID: closed.Lot.ID})
	assert.ErrorIs(t, err, model.ErrLotClosed)

	first, err := fx.engine.Start(ctx, session.StartRequest{LotID: fx.lot.Lot.ID, VehiclePlate: "MH12 XY 0001"})
	require.NoError(t, err)
	_, err = fx.engine.Start(ctx, session.StartRequest{LotID: fx.lot.Lot.ID, VehiclePlate: "mh12-xy-0001"})
	assert.ErrorIs(t, err, model.ErrVehicleAlreadyParked)

	_, err = fx.engine.Complete(ctx, first.Token.ID, "")
	require.NoError(t, err)
	_, err = fx.engine.Start(ctx, session.StartRequest{LotID: fx.lot.Lot.ID, VehiclePlate: "MH12XY0001"})
	assert.NoError(t, err, "a completed stay does not block re-entry")
}

func TestInvariantViolationAbortsCompletion(t *testing.T) {
	fx := newFixture(t, oneSlotLot())
	ctx := context.Background()
	started, err := fx.engine.Start(ctx, session.StartRequest{LotID: fx.lot.Lot.ID})
	require.NoError(t, err)

	// corrupt the pairing behind the engine's back
	slots := repository.NewSlotRepo(fx.db)
	require.NoError(t, fx.db.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return slots.SetStatusTx(ctx, tx, started.Slot.ID, model.SlotMaintenance, t0)
	}))

	fx.clock.Advance(time.Hour)
	_, err = fx.engine.Complete(ctx, started.Token.ID, "")
	require.ErrorIs(t, err, model.ErrInvariantViolation)

	tok, err := fx.engine.Get(ctx, started.Token.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TokenActive, tok.Status, "the failed unit must leave the token untouched")
	assert.False(t, tok.ExitTime.Valid)
	assert.Zero(t, fx.transactions(t, started.Token.ID))
	assert.False(t, fx.occupancy(t, started.Token.ID).EndTime.Valid)
}

func TestActiveTokenWithExistingTransactionIsAnInvariantViolation(t *testing.T) {
	fx := newFixture(t, oneSlotLot())
	ctx := context.Background()
	started, err := fx.engine.Start(ctx, session.StartRequest{LotID: fx.lot.Lot.ID})
	require.NoError(t, err)

	// a transaction row the token never went through closing for
	txns := repository.NewTransactionRepo(fx.db)
	require.NoError(t, fx.db.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return txns.CreateTx(ctx, tx, &model.Transaction{
			ID:            id.NewTransactionID(),
			TokenID:       started.Token.ID,
			LotID:         fx.lot.Lot.ID,
			ReceiptNumber: "RCPT-STRAY",
			EntryTime:     t0,
			ExitTime:      t0,
			PricingModel:  model.PricingHourly,
			Currency:      "INR",
			PaymentStatus: model.PaymentPending,
			CreatedAt:     t0,
		})
	}))

	fx.clock.Advance(time.Hour)
	_, err = fx.engine.Complete(ctx, started.Token.ID, "")
	require.ErrorIs(t, err, model.ErrInvariantViolation)
	assert.NotErrorIs(t, err, model.ErrTemporarilyUnavailable)

	tok := mustGet(t, fx, started.Token.ID)
	assert.Equal(t, model.TokenActive, tok.Status)
	assert.Equal(t, 1, fx.transactions(t, started.Token.ID))
}

func TestCompleteAndCancelRaceOnSameToken(t *testing.T) {
	fx := newFixture(t, oneSlotLot())
	ctx := context.Background()
	started, err := fx.engine.Start(ctx, session.StartRequest{LotID: fx.lot.Lot.ID})
	require.NoError(t, err)
	fx.clock.Advance(time.Hour)

	var (
		wg         sync.WaitGroup
		completeEr error
		cancelErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, completeEr = fx.engine.Complete(ctx, started.Token.ID, "")
	}()
	go func() {
		defer wg.Done()
		_, cancelErr = fx.engine.Cancel(ctx, started.Token.ID)
	}()
	wg.Wait()

	okCount := 0
	for _, err := range []error{completeEr, cancelErr} {
		if err == nil {
			okCount++
			continue
		}
		assert.ErrorIs(t, err, model.ErrInvalidStateTransition)
	}
	assert.Equal(t, 1, okCount)
	assert.Equal(t, model.SlotAvailable, fx.slot(t, started.Slot.ID).Status)
	assert.LessOrEqual(t, fx.transactions(t, started.Token.ID), 1)
}

func TestConcurrentEntriesAgainstFewerSlots(t *testing.T) {
	const slots, cars = 3, 9
	fx := newFixture(t, seed.Facility{Name: "Rush", Zones: []seed.ZoneSpec{{Name: "R", Count: slots}}, Rules: []seed.RuleSpec{standardRule}})
	ctx := context.Background()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		bySlot = map[string]int{}
		full   int
		other  []error
	)
	for i := 0; i < cars; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := fx.engine.Start(ctx, session.StartRequest{LotID: fx.lot.Lot.ID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				bySlot[res.Slot.ID.String()]++
			case errors.Is(err, model.ErrNoSlotAvailable):
				full++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, other)
	assert.Len(t, bySlot, slots)
	for _, n := range bySlot {
		assert.Equal(t, 1, n)
	}
	assert.Equal(t, cars-slots, full)
	assert.Equal(t, slots, countTokens(t, fx.db))
}

func TestQuoteAndAvailability(t *testing.T) {
	fx := newFixture(t, oneSlotLot())
	ctx := context.Background()

	counts, err := fx.engine.Availability(ctx, fx.lot.Lot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotCounts{Total: 1, Available: 1}, counts)
	_, err = fx.engine.Availability(ctx, id.NewLotID())
	assert.ErrorIs(t, err, model.ErrLotNotFound)

	started, err := fx.engine.Start(ctx, session.StartRequest{LotID: fx.lot.Lot.ID})
	require.NoError(t, err)
	counts, err = fx.engine.Availability(ctx, fx.lot.Lot.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Reserved)

	fx.clock.Advance(61 * time.Minute)
	q, err := fx.engine.Quote(ctx, started.Token.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(80), q.Gross)
	assert.Equal(t, model.TokenActive, mustGet(t, fx, started.Token.ID).Status, "a quote changes nothing")

	_, err = fx.engine.Complete(ctx, started.Token.ID, "")
	require.NoError(t, err)
	_, err = fx.engine.Quote(ctx, started.Token.ID)
	assert.ErrorIs(t, err, model.ErrInvalidStateTransition)
}

func TestPublishFailureDoesNotUndoCommit(t *testing.T) {
	fx := newFixture(t, oneSlotLot())
	fx.events.err = errors.New("broker down")
	started, err := fx.engine.Start(context.Background(), session.StartRequest{LotID: fx.lot.Lot.ID})
	require.NoError(t, err)
	assert.Equal(t, model.TokenActive, mustGet(t, fx, started.Token.ID).Status)
}

func TestNormalizePlate(t *testing.T) {
	assert.Equal(t, "KA01AB1234", session.NormalizePlate(" ka-01 ab\t1234 "))
	assert.Equal(t, "", session.NormalizePlate("   "))
}

func mustGet(t *testing.T, fx *fixture, tokenID id.ID) *model.Token {
	t.Helper()
	tok, err := fx.engine.Get(context.Background(), tokenID)
	require.NoError(t, err)
	return tok
}
