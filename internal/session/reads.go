package session

import (
	"context"
	"errors"

	"github.com/iliyamo/smart-parking/internal/id"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/pricing"
	"github.com/iliyamo/smart-parking/internal/repository"
)

// Get returns a token by ID.
func (e *Engine) Get(ctx context.Context, tokenID id.ID) (*model.Token, error) {
	tok, err := e.tokens.GetByID(ctx, tokenID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, model.ErrTokenNotFound
	}
	return tok, err
}

// Quote previews what completing an ACTIVE token now would bill. Nothing is
// written.
func (e *Engine) Quote(ctx context.Context, tokenID id.ID) (pricing.Quote, error) {
	tok, err := e.Get(ctx, tokenID)
	if err != nil {
		return pricing.Quote{}, err
	}
	if tok.Status != model.TokenActive {
		return pricing.Quote{}, model.ErrInvalidStateTransition
	}
	rule, err := e.rules.ActiveRule(ctx, e.db, tok.LotID)
	if err != nil {
		return pricing.Quote{}, err
	}
	return e.fees.Quote(tok.EntryTime, e.now(), rule)
}

// Receipt returns the billing record of a completed token.
func (e *Engine) Receipt(ctx context.Context, tokenID id.ID) (*model.Transaction, error) {
	txn, err := e.txns.GetByTokenTx(ctx, e.db, tokenID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, model.ErrReceiptNotFound
	}
	return txn, err
}

// Availability counts a lot's slots by status.
func (e *Engine) Availability(ctx context.Context, lotID id.ID) (model.SlotCounts, error) {
	if _, err := e.lots.GetByID(ctx, lotID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.SlotCounts{}, model.ErrLotNotFound
		}
		return model.SlotCounts{}, err
	}
	return e.slots.CountByStatus(ctx, lotID)
}
