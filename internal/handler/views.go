package handler

import (
	"time"

	"gopkg.in/guregu/null.v4"

	"github.com/iliyamo/smart-parking/internal/id"
	"github.com/iliyamo/smart-parking/internal/model"
)

// ----- response DTOs -----

type tokenView struct {
	ID           id.ID             `json:"id"`
	TokenNumber  string            `json:"token_number"`
	LotID        id.ID             `json:"lot_id"`
	SlotID       id.ID             `json:"slot_id"`
	VehiclePlate string            `json:"vehicle_plate,omitempty"`
	VehicleType  string            `json:"vehicle_type"`
	EntryTime    time.Time         `json:"entry_time"`
	ExitTime     null.Time         `json:"exit_time"`
	Status       model.TokenStatus `json:"status"`
}

func toTokenView(t *model.Token) tokenView {
	return tokenView{
		ID:           t.ID,
		TokenNumber:  t.TokenNumber,
		LotID:        t.LotID,
		SlotID:       t.SlotID,
		VehiclePlate: t.VehiclePlate,
		VehicleType:  t.VehicleType,
		EntryTime:    t.EntryTime,
		ExitTime:     t.ExitTime,
		Status:       t.Status,
	}
}

type slotView struct {
	ID           id.ID  `json:"id"`
	ZoneID       id.ID  `json:"zone_id"`
	Label        string `json:"label"`
	SlotNumber   int    `json:"slot_number"`
	VehicleType  string `json:"vehicle_type"`
	IsAccessible bool   `json:"is_accessible"`
	HasEVCharger bool   `json:"has_ev_charger"`
}

func toSlotView(s *model.Slot) slotView {
	return slotView{
		ID:           s.ID,
		ZoneID:       s.ZoneID,
		Label:        s.Label,
		SlotNumber:   s.SlotNumber,
		VehicleType:  s.VehicleType,
		IsAccessible: s.IsAccessible,
		HasEVCharger: s.HasEVCharger,
	}
}

type receiptView struct {
	ReceiptNumber   string              `json:"receipt_number"`
	TokenID         id.ID               `json:"token_id"`
	LotID           id.ID               `json:"lot_id"`
	EntryTime       time.Time           `json:"entry_time"`
	ExitTime        time.Time           `json:"exit_time"`
	DurationMinutes int64               `json:"duration_minutes"`
	BilledHours     int64               `json:"billed_hours"`
	PricingModel    model.PricingModel  `json:"pricing_model"`
	GrossAmount     int64               `json:"gross_amount"`
	TaxAmount       int64               `json:"tax_amount"`
	NetAmount       int64               `json:"net_amount"`
	Currency        string              `json:"currency"`
	PaymentMethod   string              `json:"payment_method,omitempty"`
	PaymentStatus   model.PaymentStatus `json:"payment_status"`
}

func toReceiptView(t *model.Transaction) receiptView {
	return receiptView{
		ReceiptNumber:   t.ReceiptNumber,
		TokenID:         t.TokenID,
		LotID:           t.LotID,
		EntryTime:       t.EntryTime,
		ExitTime:        t.ExitTime,
		DurationMinutes: t.DurationMinutes,
		BilledHours:     t.BilledHours,
		PricingModel:    t.PricingModel,
		GrossAmount:     t.GrossAmount,
		TaxAmount:       t.TaxAmount,
		NetAmount:       t.NetAmount,
		Currency:        t.Currency,
		PaymentMethod:   t.PaymentMethod,
		PaymentStatus:   t.PaymentStatus,
	}
}
