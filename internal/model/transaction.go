package model

import (
	"time"

	"github.com/iliyamo/smart-parking/internal/id"
)

// PaymentStatus tracks settlement, which happens outside the engine.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
	PaymentWaived  PaymentStatus = "WAIVED"
)

// Transaction is the billing record written once per completed token.
//
// Fields:
//  ReceiptNumber   - RCP-YYYYMMDD-XXXXXXXX, unique.
//  DurationMinutes - whole minutes between entry and exit.
//  BilledHours     - DurationMinutes rounded up to whole hours.
//  GrossAmount     - fee before tax.
//  TaxAmount       - tax on GrossAmount.
//  NetAmount       - GrossAmount + TaxAmount, handed to settlement.
type Transaction struct {
	ID              id.ID         // transactions.id
	TokenID         id.ID         // transactions.token_id (unique)
	LotID           id.ID         // transactions.lot_id
	ReceiptNumber   string        // transactions.receipt_number
	EntryTime       time.Time     // transactions.entry_time
	ExitTime        time.Time     // transactions.exit_time
	DurationMinutes int64         // transactions.duration_minutes
	BilledHours     int64         // transactions.billed_hours
	PricingModel    PricingModel  // transactions.pricing_model
	GrossAmount     int64         // transactions.gross_amount
	TaxAmount       int64         // transactions.tax_amount
	NetAmount       int64         // transactions.net_amount
	Currency        string        // transactions.currency
	PaymentMethod   string        // transactions.payment_method
	PaymentStatus   PaymentStatus // transactions.payment_status
	CreatedAt       time.Time     // transactions.created_at
}
