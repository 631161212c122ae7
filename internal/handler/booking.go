package handler

import (
    "context"
    "fmt"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/travel-package-reservation/internal/model"
    "github.com/iliyamo/travel-package-reservation/internal/service"
)

// requestTimeout bounds each handler's work, including the transaction
// retries underneath it.
const requestTimeout = 15 * time.Second

const dateLayout = "2006-01-02"

// BookingHandler bundles dependencies for the booking endpoints.
type BookingHandler struct {
    Bookings *service.BookingService
}

func NewBookingHandler(b *service.BookingService) *BookingHandler {
    return &BookingHandler{Bookings: b}
}

// ----- DTOs -----

type createBookingReq struct {
    Customer         service.CustomerInput      `json:"customer"`
    Passengers       []service.PassengerInput   `json:"passengers"`
    FlightLines      []service.FlightLineInput  `json:"flight_lines"`
    LodgingLines     []service.LodgingLineInput `json:"lodging_lines"`
    TransferLines    []service.ExtraLineInput   `json:"transfer_lines"`
    ExcursionLines   []service.ExtraLineInput   `json:"excursion_lines"`
    CheckIn          string                     `json:"check_in"`
    CheckOut         string                     `json:"check_out"`
    TotalAmountCents int64                      `json:"total_amount_cents"`
    Currency         string                     `json:"currency"`
}

type paymentReq struct {
    PaymentRef string `json:"payment_ref"`
}

type allocateCodeReq struct {
    Prefix string `json:"prefix"`
}

type linePart struct {
    Kind            model.LineKind `json:"kind"`
    Reference       string         `json:"reference"`
    FlightOptionID  *string        `json:"flight_option_id,omitempty"`
    LodgingOptionID *string        `json:"lodging_option_id,omitempty"`
    Description     string         `json:"description"`
    Passengers      int            `json:"passengers,omitempty"`
    Rooms           int            `json:"rooms,omitempty"`
    PriceCents      int64          `json:"price_cents"`
}

type passengerPart struct {
    Kind     model.PassengerKind `json:"kind"`
    FullName string              `json:"full_name"`
    Age      *int                `json:"age,omitempty"`
}

type bookingResp struct {
    ReservationCode  string                `json:"reservation_code"`
    Status           model.BookingStatus   `json:"status"`
    TotalAmountCents int64                 `json:"total_amount_cents"`
    Currency         string                `json:"currency"`
    Customer         service.CustomerInput `json:"customer"`
    CheckIn          string                `json:"check_in"`
    CheckOut         string                `json:"check_out"`
    ExpiresAt        *time.Time            `json:"expires_at,omitempty"`
    PaymentRef       *string               `json:"payment_ref,omitempty"`
    Lines            []linePart            `json:"lines"`
    Passengers       []passengerPart       `json:"passengers"`
    CreatedAt        time.Time             `json:"created_at"`
    UpdatedAt        time.Time             `json:"updated_at"`
}

func toBookingResp(b *model.Booking) bookingResp {
    resp := bookingResp{
        ReservationCode:  b.ReservationCode,
        Status:           b.Status,
        TotalAmountCents: b.TotalAmountCents,
        Currency:         b.Currency,
        Customer: service.CustomerInput{
            Name:  b.CustomerName,
            Email: b.CustomerEmail,
            Phone: b.CustomerPhone,
        },
        CheckIn:    b.CheckIn.Format(dateLayout),
        CheckOut:   b.CheckOut.Format(dateLayout),
        ExpiresAt:  b.ExpiresAt,
        PaymentRef: b.PaymentRef,
        Lines:      make([]linePart, 0, len(b.Lines)),
        Passengers: make([]passengerPart, 0, len(b.Passengers)),
        CreatedAt:  b.CreatedAt,
        UpdatedAt:  b.UpdatedAt,
    }
    for _, l := range b.Lines {
        resp.Lines = append(resp.Lines, linePart{
            Kind:            l.Kind,
            Reference:       l.Reference,
            FlightOptionID:  l.FlightOptionID,
            LodgingOptionID: l.LodgingOptionID,
            Description:     l.Description,
            Passengers:      l.Passengers,
            Rooms:           l.Rooms,
            PriceCents:      l.PriceCents,
        })
    }
    for _, p := range b.Passengers {
        resp.Passengers = append(resp.Passengers, passengerPart{Kind: p.Kind, FullName: p.FullName, Age: p.Age})
    }
    return resp
}

// ----- storefront endpoints -----

// Create places a hold: the booking, its lines, its passengers and every
// inventory decrement commit together or not at all.
func (h *BookingHandler) Create(c echo.Context) error {
    var req createBookingReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    checkIn, checkOut, err := parseStayDates(req.CheckIn, req.CheckOut, len(req.LodgingLines) > 0)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    b, err := h.Bookings.CreateHold(ctx, service.CreateHoldRequest{
        Customer:         req.Customer,
        Passengers:       req.Passengers,
        FlightLines:      req.FlightLines,
        LodgingLines:     req.LodgingLines,
        TransferLines:    req.TransferLines,
        ExcursionLines:   req.ExcursionLines,
        CheckIn:          checkIn,
        CheckOut:         checkOut,
        TotalAmountCents: req.TotalAmountCents,
        Currency:         req.Currency,
    })
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, toBookingResp(b))
}

// Get returns the booking aggregate.  Reading an expired hold flips it to
// CANCELLED before it is returned, so clients never see a stale hold.
func (h *BookingHandler) Get(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    b, err := h.Bookings.GetByCode(ctx, c.Param("code"))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, toBookingResp(b))
}

// Confirm commits a hold.  If the hold has lapsed the endpoint answers
// 410 and the booking ends up cancelled with its inventory released.
func (h *BookingHandler) Confirm(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    b, err := h.Bookings.Confirm(ctx, c.Param("code"))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, toBookingResp(b))
}

// Cancel releases the booking's inventory and marks it CANCELLED.
func (h *BookingHandler) Cancel(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    b, err := h.Bookings.Cancel(ctx, c.Param("code"))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, toBookingResp(b))
}

// ----- back-office endpoints -----

// RecordPayment stores the gateway's payment reference and moves a
// confirmed booking to PAID.
func (h *BookingHandler) RecordPayment(c echo.Context) error {
    var req paymentReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    b, err := h.Bookings.MarkPaid(ctx, c.Param("code"), req.PaymentRef)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, toBookingResp(b))
}

// Sweep cancels all lapsed holds immediately instead of waiting for the
// periodic sweeper or a read to catch them.
func (h *BookingHandler) Sweep(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    swept, err := h.Bookings.SweepExpired(ctx)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"swept": swept})
}

// AllocateCode hands out the next reservation code for a prefix, for
// bookings entered manually by an agent.
func (h *BookingHandler) AllocateCode(c echo.Context) error {
    var req allocateCodeReq
    _ = c.Bind(&req)

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    code, err := h.Bookings.AllocateCode(ctx, req.Prefix)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservation_code": code})
}

func parseStayDates(checkIn, checkOut string, required bool) (time.Time, time.Time, error) {
    if checkIn == "" && checkOut == "" && !required {
        return time.Time{}, time.Time{}, nil
    }
    in, err := time.Parse(dateLayout, checkIn)
    if err != nil {
        return time.Time{}, time.Time{}, fmt.Errorf("check_in must be YYYY-MM-DD")
    }
    out, err := time.Parse(dateLayout, checkOut)
    if err != nil {
        return time.Time{}, time.Time{}, fmt.Errorf("check_out must be YYYY-MM-DD")
    }
    return in, out, nil
}
