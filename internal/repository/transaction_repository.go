package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/smart-parking/internal/database"
	"github.com/iliyamo/smart-parking/internal/id"
	"github.com/iliyamo/smart-parking/internal/model"
)

// TransactionRepo writes billing records. A record is created once per
// completed token and never updated by the engine.
type TransactionRepo struct {
	db *database.DB
}

// NewTransactionRepo returns a TransactionRepo bound to db.
func NewTransactionRepo(db *database.DB) *TransactionRepo { return &TransactionRepo{db: db} }

// CreateTx inserts a transaction. The schema enforces one row per token and
// unique receipt numbers; a violation surfaces as a unique-key error.
func (r *TransactionRepo) CreateTx(ctx context.Context, q DBTX, t *model.Transaction) error {
	_, err := q.ExecContext(ctx, r.db.Dialect.Rebind(
		`INSERT INTO transactions (id, token_id, lot_id, receipt_number, entry_time, exit_time,
		   duration_minutes, billed_hours, pricing_model, gross_amount, tax_amount, net_amount,
		   currency, payment_method, payment_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.TokenID, t.LotID, t.ReceiptNumber, t.EntryTime, t.ExitTime,
		t.DurationMinutes, t.BilledHours, string(t.PricingModel), t.GrossAmount, t.TaxAmount, t.NetAmount,
		t.Currency, t.PaymentMethod, string(t.PaymentStatus), t.CreatedAt)
	return err
}

// GetByTokenTx returns the transaction of a completed token.
func (r *TransactionRepo) GetByTokenTx(ctx context.Context, q DBTX, tokenID id.ID) (*model.Transaction, error) {
	var (
		t             model.Transaction
		pricingModel  string
		paymentStatus string
	)
	err := q.QueryRowContext(ctx, r.db.Dialect.Rebind(
		`SELECT id, token_id, lot_id, receipt_number, entry_time, exit_time, duration_minutes,
		        billed_hours, pricing_model, gross_amount, tax_amount, net_amount, currency,
		        payment_method, payment_status, created_at
		   FROM transactions WHERE token_id = ?`), tokenID).
		Scan(&t.ID, &t.TokenID, &t.LotID, &t.ReceiptNumber, &t.EntryTime, &t.ExitTime, &t.DurationMinutes,
			&t.BilledHours, &pricingModel, &t.GrossAmount, &t.TaxAmount, &t.NetAmount, &t.Currency,
			&t.PaymentMethod, &paymentStatus, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.PricingModel = model.PricingModel(pricingModel)
	t.PaymentStatus = model.PaymentStatus(paymentStatus)
	return &t, nil
}

// CountByToken returns how many transactions reference a token.
func (r *TransactionRepo) CountByToken(ctx context.Context, tokenID id.ID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, r.db.Dialect.Rebind(
		`SELECT COUNT(*) FROM transactions WHERE token_id = ?`), tokenID).Scan(&n)
	return n, err
}
