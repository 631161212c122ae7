package handler

import (
    "context"
    "fmt"
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/travel-package-reservation/internal/service"
)

// QuoteHandler serves price derivations.  Quotes are pure reads over the
// reference price table, so the router puts a response cache in front of
// this handler.
type QuoteHandler struct {
    Pricing *service.PricingService
}

func NewQuoteHandler(p *service.PricingService) *QuoteHandler {
    return &QuoteHandler{Pricing: p}
}

// Quote prices an occupancy on a flight/lodging pair.
//
//	GET /v1/quote?adults=2&children_ages=3,9&flight_option_id=F&lodging_option_id=L
//
// children_ages is a comma-separated list; infants appear as ages 0-1.
func (h *QuoteHandler) Quote(c echo.Context) error {
    adults, err := strconv.Atoi(c.QueryParam("adults"))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "adults must be an integer"})
    }
    ages, err := parseAges(c.QueryParam("children_ages"))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    q, err := h.Pricing.Quote(ctx, adults, ages, c.QueryParam("flight_option_id"), c.QueryParam("lodging_option_id"))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, q)
}

func parseAges(raw string) ([]int, error) {
    raw = strings.TrimSpace(raw)
    if raw == "" {
        return nil, nil
    }
    parts := strings.Split(raw, ",")
    ages := make([]int, 0, len(parts))
    for _, p := range parts {
        age, err := strconv.Atoi(strings.TrimSpace(p))
        if err != nil {
            return nil, fmt.Errorf("children_ages must be a comma-separated list of integers")
        }
        ages = append(ages, age)
    }
    return ages, nil
}
