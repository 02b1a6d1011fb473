package handler

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/smart-parking/internal/allocator"
	"github.com/iliyamo/smart-parking/internal/id"
	"github.com/iliyamo/smart-parking/internal/middleware"
	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/session"
)

// LotInvalidator drops cached views of a lot after its occupancy changed.
// *middleware.ResponseCache implements it.
type LotInvalidator interface {
	InvalidateLot(ctx context.Context, lotID string)
}

// ParkingHandler exposes the session engine to gate terminals and
// operators. Authentication and role checks are done by middleware; the
// handler only parses input, calls the engine and maps its outcome.
type ParkingHandler struct {
	Sessions *session.Engine
	Cache    LotInvalidator // optional
}

// NewParkingHandler panics on a nil engine.
func NewParkingHandler(sessions *session.Engine, cache LotInvalidator) *ParkingHandler {
	if sessions == nil {
		panic("nil session engine passed to NewParkingHandler")
	}
	return &ParkingHandler{Sessions: sessions, Cache: cache}
}

// ----- request DTOs -----

type entryReq struct {
	VehicleType       string `json:"vehicle_type"`
	ZoneType          string `json:"zone_type"`
	RequireAccessible bool   `json:"require_accessible"`
	RequireEVCharger  bool   `json:"require_ev_charger"`
	VehiclePlate      string `json:"vehicle_plate"`
}

type completeReq struct {
	PaymentMethod string `json:"payment_method"`
}

type statusReq struct {
	Status string `json:"status"`
}

// Entry handles POST /v1/lots/:lotId/entries. It reserves a slot matching
// the vehicle's constraints and returns the new ACTIVE token with 201.
func (h *ParkingHandler) Entry(c echo.Context) error {
	lotID, err := id.ParseLotID(c.Param("lotId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lot id"})
	}
	var req entryReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.Sessions.Start(c.Request().Context(), session.StartRequest{
		LotID: lotID,
		Constraints: allocator.Constraints{
			VehicleType:       req.VehicleType,
			ZoneType:          strings.ToUpper(strings.TrimSpace(req.ZoneType)),
			RequireAccessible: req.RequireAccessible,
			RequireEVCharger:  req.RequireEVCharger,
		},
		VehiclePlate: req.VehiclePlate,
	})
	if err != nil {
		return writeError(c, err)
	}
	h.invalidate(c, res.Token.LotID)
	return c.JSON(http.StatusCreated, echo.Map{
		"token": toTokenView(res.Token),
		"slot":  toSlotView(res.Slot),
	})
}

// Complete handles POST /v1/tokens/:id/complete: bill the stay, close the
// token and free its slot.
func (h *ParkingHandler) Complete(c echo.Context) error {
	tokenID, ok := tokenParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid token id"})
	}
	var req completeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.Sessions.Complete(c.Request().Context(), tokenID, req.PaymentMethod)
	if err != nil {
		return writeError(c, err)
	}
	h.invalidate(c, res.Token.LotID)
	return c.JSON(http.StatusOK, echo.Map{
		"token":   toTokenView(res.Token),
		"receipt": toReceiptView(res.Transaction),
		"quote":   res.Quote,
	})
}

// Cancel handles POST /v1/tokens/:id/cancel (operators only).
func (h *ParkingHandler) Cancel(c echo.Context) error {
	tokenID, ok := tokenParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid token id"})
	}
	tok, err := h.Sessions.Cancel(c.Request().Context(), tokenID)
	if err != nil {
		return writeError(c, err)
	}
	log.Printf("handler: token %s cancelled by %s", tok.ID, middleware.Subject(c))
	h.invalidate(c, tok.LotID)
	return c.JSON(http.StatusOK, echo.Map{"token": toTokenView(tok)})
}

// UpdateStatus handles PATCH /v1/tokens/:id/status, the operator override
// to CANCELLED, EXPIRED or LOST.
func (h *ParkingHandler) UpdateStatus(c echo.Context) error {
	tokenID, ok := tokenParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid token id"})
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	status := model.TokenStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	tok, err := h.Sessions.UpdateStatus(c.Request().Context(), tokenID, status)
	if err != nil {
		return writeError(c, err)
	}
	log.Printf("handler: token %s set to %s by %s", tok.ID, tok.Status, middleware.Subject(c))
	h.invalidate(c, tok.LotID)
	return c.JSON(http.StatusOK, echo.Map{"token": toTokenView(tok)})
}

// GetToken handles GET /v1/tokens/:id.
func (h *ParkingHandler) GetToken(c echo.Context) error {
	tokenID, ok := tokenParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid token id"})
	}
	tok, err := h.Sessions.Get(c.Request().Context(), tokenID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toTokenView(tok))
}

// Quote handles GET /v1/tokens/:id/quote, the fee if the vehicle left now.
func (h *ParkingHandler) Quote(c echo.Context) error {
	tokenID, ok := tokenParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid token id"})
	}
	q, err := h.Sessions.Quote(c.Request().Context(), tokenID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

// Receipt handles GET /v1/tokens/:id/receipt.
func (h *ParkingHandler) Receipt(c echo.Context) error {
	tokenID, ok := tokenParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid token id"})
	}
	txn, err := h.Sessions.Receipt(c.Request().Context(), tokenID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toReceiptView(txn))
}

// Availability handles GET /v1/lots/:lotId/availability.
func (h *ParkingHandler) Availability(c echo.Context) error {
	lotID, err := id.ParseLotID(c.Param("lotId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lot id"})
	}
	counts, err := h.Sessions.Availability(c.Request().Context(), lotID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"lot_id": lotID, "slots": counts})
}

func tokenParam(c echo.Context) (id.ID, bool) {
	tokenID, err := id.ParseTokenID(c.Param("id"))
	return tokenID, err == nil
}

func (h *ParkingHandler) invalidate(c echo.Context, lotID id.ID) {
	if h.Cache != nil {
		h.Cache.InvalidateLot(context.WithoutCancel(c.Request().Context()), lotID.String())
	}
}
