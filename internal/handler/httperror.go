package handler

import (
    "errors"
    "log"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/travel-package-reservation/internal/service"
    "github.com/iliyamo/travel-package-reservation/internal/store"
)

// respondError maps the service error taxonomy onto HTTP statuses.  The
// sentinel checks are ordered from most to least specific because some
// sentinels wrap others (an expired hold is also an invalid state).
func respondError(c echo.Context, err error) error {
    var verr *service.ValidationError
    switch {
    case errors.As(err, &verr):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Error()})
    case errors.Is(err, store.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
    case errors.Is(err, store.ErrPriceUnavailable):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "no price available for this combination"})
    case errors.Is(err, store.ErrHoldExpired):
        return c.JSON(http.StatusGone, echo.Map{"error": "hold expired; the booking has been cancelled"})
    case errors.Is(err, store.ErrAlreadyCancelled):
        return c.JSON(http.StatusConflict, echo.Map{"error": "booking is already cancelled"})
    case errors.Is(err, store.ErrInvalidState):
        return c.JSON(http.StatusConflict, echo.Map{"error": "booking state does not allow this operation"})
    case errors.Is(err, store.ErrInsufficientInventory):
        return c.JSON(http.StatusConflict, echo.Map{"error": "insufficient availability"})
    case errors.Is(err, store.ErrTxTimeout):
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily overloaded, retry"})
    case errors.Is(err, store.ErrSequenceCorruption):
        // Operator attention required; the allocator refuses to hand out
        // a code that is already in use.
        log.Printf("handler: reservation sequence corruption: %v", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    default:
        log.Printf("handler: %s %s failed: %v", c.Request().Method, c.Path(), err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    }
}
