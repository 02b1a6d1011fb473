package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/smart-parking/internal/model"
)

// writeError maps engine outcomes to HTTP responses. Business outcomes carry
// a short message; anything unexpected is logged and reported as a 500
// without internals.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, model.ErrNoSlotAvailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "no slots available"})
	case errors.Is(err, model.ErrInvalidStateTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "session already closed"})
	case errors.Is(err, model.ErrLotClosed):
		return c.JSON(http.StatusConflict, echo.Map{"error": "parking lot closed"})
	case errors.Is(err, model.ErrVehicleAlreadyParked):
		return c.JSON(http.StatusConflict, echo.Map{"error": "vehicle already parked"})
	case errors.Is(err, model.ErrTokenNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "token not found"})
	case errors.Is(err, model.ErrLotNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "parking lot not found"})
	case errors.Is(err, model.ErrReceiptNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "receipt not found"})
	case errors.Is(err, model.ErrInvalidStatus):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	case errors.Is(err, model.ErrInvalidDuration):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid duration"})
	case errors.Is(err, model.ErrTemporarilyUnavailable):
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "please retry"})
	}
	log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
