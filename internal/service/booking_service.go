// Package service holds the reservation core: booking creation and
// lifecycle on top of the transactional store, and the price calculation
// engine.  Handlers stay thin; everything that must be atomic lives here.
package service

import (
    "context"
    "errors"
    "fmt"
    "log"
    "strings"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/travel-package-reservation/internal/model"
    "github.com/iliyamo/travel-package-reservation/internal/queue"
    "github.com/iliyamo/travel-package-reservation/internal/store"
)

// DefaultHoldTTL is how long a hold provisionally consumes inventory
// before it lapses.  Extension is not supported; an expired hold is
// cancelled and a new one must be created.
const DefaultHoldTTL = 3 * time.Hour

const (
    maxTxAttempts  = 3
    retryBackoff   = 100 * time.Millisecond
    sweepBatchSize = 100
)

// ValidationError marks malformed input, rejected before any transaction
// opens.  Handlers translate it into an HTTP 400.
type ValidationError struct {
    msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationf(format string, args ...interface{}) error {
    return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// EventPublisher pushes booking status transitions to the message broker.
// A nil publisher disables events; publish failures never affect the
// committed booking.
type EventPublisher interface {
    PublishBookingStatus(ctx context.Context, event queue.BookingStatusEvent) error
}

// BookingService coordinates booking creation and the booking lifecycle.
// All storage access goes through the injected store; the service holds
// no state of its own beyond configuration, so it is safe for concurrent
// use by any number of request goroutines.
type BookingService struct {
    store   store.Store
    events  EventPublisher
    prefix  string
    holdTTL time.Duration
    now     func() time.Time
}

// NewBookingService wires a BookingService.  prefix is the reservation
// code prefix (e.g. "TRV"); holdTTL <= 0 falls back to DefaultHoldTTL.
func NewBookingService(st store.Store, events EventPublisher, prefix string, holdTTL time.Duration) *BookingService {
    if holdTTL <= 0 {
        holdTTL = DefaultHoldTTL
    }
    return &BookingService{
        store:   st,
        events:  events,
        prefix:  prefix,
        holdTTL: holdTTL,
        now:     func() time.Time { return time.Now().UTC() },
    }
}

// ----- request DTOs -----

type CustomerInput struct {
    Name  string `json:"name"`
    Email string `json:"email"`
    Phone string `json:"phone"`
}

type PassengerInput struct {
    Kind     model.PassengerKind `json:"kind"`
    FullName string              `json:"full_name"`
    Age      *int                `json:"age,omitempty"`
}

type FlightLineInput struct {
    FlightOptionID string `json:"flight_option_id"`
    Description    string `json:"description"`
    Passengers     int    `json:"passengers"`
    PriceCents     int64  `json:"price_cents"`
}

type LodgingLineInput struct {
    LodgingOptionID string `json:"lodging_option_id"`
    Description     string `json:"description"`
    Rooms           int    `json:"rooms"`
    PriceCents      int64  `json:"price_cents"`
}

// ExtraLineInput covers transfers and excursions, which carry no
// inventory of their own.
type ExtraLineInput struct {
    Description string `json:"description"`
    PriceCents  int64  `json:"price_cents"`
}

// CreateHoldRequest carries everything needed to create a multi-line
// booking in one shot.  The quote's inputs (flight/lodging option IDs,
// occupancy) are passed through unchanged from the storefront.
type CreateHoldRequest struct {
    Customer         CustomerInput      `json:"customer"`
    Passengers       []PassengerInput   `json:"passengers"`
    FlightLines      []FlightLineInput  `json:"flight_lines"`
    LodgingLines     []LodgingLineInput `json:"lodging_lines"`
    TransferLines    []ExtraLineInput   `json:"transfer_lines"`
    ExcursionLines   []ExtraLineInput   `json:"excursion_lines"`
    CheckIn          time.Time          `json:"check_in"`
    CheckOut         time.Time          `json:"check_out"`
    TotalAmountCents int64              `json:"total_amount_cents"`
    Currency         string             `json:"currency"`
}

func (r *CreateHoldRequest) validate() error {
    if strings.TrimSpace(r.Customer.Name) == "" {
        return validationf("customer name is required")
    }
    if strings.TrimSpace(r.Customer.Email) == "" {
        return validationf("customer email is required")
    }
    if len(r.Passengers) == 0 {
        return validationf("at least one passenger is required")
    }
    adults := 0
    for _, p := range r.Passengers {
        if err := (model.Passenger{Kind: p.Kind, FullName: p.FullName, Age: p.Age}).Validate(); err != nil {
            return validationf("%v", err)
        }
        if p.Kind == model.PassengerAdult {
            adults++
        }
    }
    if adults == 0 {
        return validationf("at least one adult passenger is required")
    }
    if len(r.FlightLines)+len(r.LodgingLines)+len(r.TransferLines)+len(r.ExcursionLines) == 0 {
        return validationf("booking needs at least one line item")
    }
    for _, fl := range r.FlightLines {
        if fl.FlightOptionID == "" {
            return validationf("flight line is missing its flight option")
        }
        if fl.Passengers < 1 {
            return validationf("flight line on %s must reserve at least one seat", fl.FlightOptionID)
        }
        if fl.PriceCents < 0 {
            return validationf("flight line on %s has a negative price", fl.FlightOptionID)
        }
    }
    for _, ll := range r.LodgingLines {
        if ll.LodgingOptionID == "" {
            return validationf("lodging line is missing its lodging option")
        }
        if ll.Rooms < 1 {
            return validationf("lodging line on %s must reserve at least one room", ll.LodgingOptionID)
        }
        if ll.PriceCents < 0 {
            return validationf("lodging line on %s has a negative price", ll.LodgingOptionID)
        }
    }
    if len(r.LodgingLines) > 0 && !dateOnly(r.CheckOut).After(dateOnly(r.CheckIn)) {
        return validationf("check-out must be at least one night after check-in")
    }
    if r.TotalAmountCents < 0 {
        return validationf("total amount must not be negative")
    }
    if len(r.Currency) != 3 {
        return validationf("currency must be a 3-letter code")
    }
    return nil
}

// ----- operations -----

// AllocateCode hands out the next reservation code for a prefix.  Exposed
// for back-office tooling; CreateHold allocates its own code inside the
// booking transaction.
func (s *BookingService) AllocateCode(ctx context.Context, prefix string) (string, error) {
    if prefix == "" {
        prefix = s.prefix
    }
    var code string
    err := s.serializable(ctx, func(ctx context.Context, tx store.Tx) error {
        var err error
        code, err = tx.NextReservationCode(ctx, prefix)
        return err
    })
    return code, err
}

// CreateHold creates a booking and all of its line items, passengers and
// inventory decrements as one atomic unit.  The booking starts in HOLD
// with an expiry of now + hold TTL.  The first flight or lodging line
// that cannot be covered aborts the whole transaction; no partial holds.
func (s *BookingService) CreateHold(ctx context.Context, req CreateHoldRequest) (*model.Booking, error) {
    if err := req.validate(); err != nil {
        return nil, err
    }
    var created *model.Booking
    err := s.serializable(ctx, func(ctx context.Context, tx store.Tx) error {
        code, err := tx.NextReservationCode(ctx, s.prefix)
        if err != nil {
            return err
        }
        for _, fl := range req.FlightLines {
            if err := tx.ReserveFlightSeats(ctx, fl.FlightOptionID, fl.Passengers); err != nil {
                return err
            }
        }
        for _, ll := range req.LodgingLines {
            if err := tx.ReserveRoomNights(ctx, ll.LodgingOptionID, req.CheckIn, req.CheckOut, ll.Rooms); err != nil {
                return err
            }
        }
        expires := s.now().Add(s.holdTTL)
        b := &model.Booking{
            ReservationCode:  code,
            Status:           model.StatusHold,
            TotalAmountCents: req.TotalAmountCents,
            Currency:         strings.ToUpper(req.Currency),
            CustomerName:     strings.TrimSpace(req.Customer.Name),
            CustomerEmail:    strings.ToLower(strings.TrimSpace(req.Customer.Email)),
            CustomerPhone:    strings.TrimSpace(req.Customer.Phone),
            CheckIn:          dateOnly(req.CheckIn),
            CheckOut:         dateOnly(req.CheckOut),
            ExpiresAt:        &expires,
        }
        if err := tx.InsertBooking(ctx, b); err != nil {
            return err
        }
        if err := tx.InsertLines(ctx, b.ID, buildLines(req)); err != nil {
            return err
        }
        if err := tx.InsertPassengers(ctx, b.ID, buildPassengers(req.Passengers)); err != nil {
            return err
        }
        created, err = tx.BookingByCode(ctx, code)
        return err
    })
    if err != nil {
        return nil, err
    }
    s.publish(ctx, created, "")
    return created, nil
}

// Confirm moves a hold to CONFIRMED and clears its expiry.  A hold whose
// expiry has passed is cancelled (inventory released) as a committed side
// effect and the call reports the expiry to the caller.
func (s *BookingService) Confirm(ctx context.Context, code string) (*model.Booking, error) {
    var (
        out     *model.Booking
        expired bool
    )
    err := s.serializable(ctx, func(ctx context.Context, tx store.Tx) error {
        expired = false
        b, err := tx.BookingByCode(ctx, code)
        if err != nil {
            return err
        }
        if b.Status != model.StatusHold {
            return fmt.Errorf("booking %s is %s: %w", code, b.Status, store.ErrInvalidState)
        }
        if b.ExpiresAt != nil && b.ExpiresAt.Before(s.now()) {
            // The cancellation must commit even though the confirm fails,
            // so the expired hold is not left dangling.
            if err := s.cancelLocked(ctx, tx, b); err != nil {
                return err
            }
            expired = true
            out, err = tx.BookingByCode(ctx, code)
            return err
        }
        if err := tx.UpdateBookingStatus(ctx, b.ID, model.StatusConfirmed, nil); err != nil {
            return err
        }
        out, err = tx.BookingByCode(ctx, code)
        return err
    })
    if err != nil {
        return nil, err
    }
    if expired {
        s.publish(ctx, out, model.StatusHold)
        return out, fmt.Errorf("booking %s: %w", code, store.ErrHoldExpired)
    }
    s.publish(ctx, out, model.StatusHold)
    return out, nil
}

// Cancel moves a booking to CANCELLED from any non-terminal state and
// releases the inventory its lines still hold.  Refund handling for paid
// bookings is external; the core only records the transition.
func (s *BookingService) Cancel(ctx context.Context, code string) (*model.Booking, error) {
    var (
        out  *model.Booking
        prev model.BookingStatus
    )
    err := s.serializable(ctx, func(ctx context.Context, tx store.Tx) error {
        b, err := tx.BookingByCode(ctx, code)
        if err != nil {
            return err
        }
        if b.Status == model.StatusCancelled {
            return fmt.Errorf("booking %s: %w", code, store.ErrAlreadyCancelled)
        }
        prev = b.Status
        if err := s.cancelLocked(ctx, tx, b); err != nil {
            return err
        }
        out, err = tx.BookingByCode(ctx, code)
        return err
    })
    if err != nil {
        return nil, err
    }
    s.publish(ctx, out, prev)
    return out, nil
}

// GetByCode reads the full aggregate with passive expiration: a hold
// whose expiry has passed is flipped to CANCELLED (releasing inventory)
// in the same transaction as the read, so no caller ever observes a
// logically expired hold as still active.  Reading an expired hold twice
// yields CANCELLED both times and releases inventory exactly once.
func (s *BookingService) GetByCode(ctx context.Context, code string) (*model.Booking, error) {
    var (
        out     *model.Booking
        swept   bool
    )
    err := s.serializable(ctx, func(ctx context.Context, tx store.Tx) error {
        swept = false
        b, err := tx.BookingByCode(ctx, code)
        if err != nil {
            return err
        }
        if b.Status == model.StatusHold && b.ExpiresAt != nil && b.ExpiresAt.Before(s.now()) {
            if err := s.cancelLocked(ctx, tx, b); err != nil {
                return err
            }
            swept = true
            b, err = tx.BookingByCode(ctx, code)
            if err != nil {
                return err
            }
        }
        out = b
        return nil
    })
    if err != nil {
        return nil, err
    }
    if swept {
        s.publish(ctx, out, model.StatusHold)
    }
    return out, nil
}

// MarkPaid records the external payment reference and moves a confirmed
// booking to PAID.  Gateway integration stays outside the core.
func (s *BookingService) MarkPaid(ctx context.Context, code, paymentRef string) (*model.Booking, error) {
    if strings.TrimSpace(paymentRef) == "" {
        return nil, validationf("payment reference is required")
    }
    var out *model.Booking
    err := s.serializable(ctx, func(ctx context.Context, tx store.Tx) error {
        b, err := tx.BookingByCode(ctx, code)
        if err != nil {
            return err
        }
        if b.Status != model.StatusConfirmed {
            return fmt.Errorf("booking %s is %s, expected %s: %w", code, b.Status, model.StatusConfirmed, store.ErrInvalidState)
        }
        if err := tx.SetPaymentRef(ctx, b.ID, strings.TrimSpace(paymentRef)); err != nil {
            return err
        }
        if err := tx.UpdateBookingStatus(ctx, b.ID, model.StatusPaid, nil); err != nil {
            return err
        }
        out, err = tx.BookingByCode(ctx, code)
        return err
    })
    if err != nil {
        return nil, err
    }
    s.publish(ctx, out, model.StatusConfirmed)
    return out, nil
}

// SweepExpired cancels all lapsed holds in batches of short transactions,
// releasing their inventory the same way a single cancellation does.  It
// returns the number of holds swept.  Correctness never depends on the
// sweep, since passive expiration covers reads, but running it periodically
// keeps inventory from sitting on dead holds for long.
func (s *BookingService) SweepExpired(ctx context.Context) (int, error) {
    total := 0
    for {
        var batchEvents []queue.BookingStatusEvent
        batchSize := 0
        err := s.serializable(ctx, func(ctx context.Context, tx store.Tx) error {
            batchEvents = nil
            codes, err := tx.ExpiredHoldCodes(ctx, s.now(), sweepBatchSize)
            if err != nil {
                return err
            }
            batchSize = len(codes)
            for _, code := range codes {
                b, err := tx.BookingByCode(ctx, code)
                if err != nil {
                    return err
                }
                // Re-check under the lock; a concurrent confirm or cancel
                // may have beaten the sweep to this booking.
                if b.Status != model.StatusHold || b.ExpiresAt == nil || !b.ExpiresAt.Before(s.now()) {
                    continue
                }
                if err := s.cancelLocked(ctx, tx, b); err != nil {
                    return err
                }
                batchEvents = append(batchEvents, s.eventFor(b, model.StatusCancelled, model.StatusHold))
            }
            return nil
        })
        if err != nil {
            return total, err
        }
        total += len(batchEvents)
        for _, ev := range batchEvents {
            s.publishEvent(ctx, ev)
        }
        if batchSize < sweepBatchSize {
            return total, nil
        }
    }
}

// cancelLocked releases the inventory held by a booking's lines and sets
// its status to CANCELLED.  Must run on a booking freshly read in the
// same transaction; callers guarantee the status is not already terminal,
// which makes the release happen exactly once per booking.
func (s *BookingService) cancelLocked(ctx context.Context, tx store.Tx, b *model.Booking) error {
    for _, l := range b.Lines {
        switch l.Kind {
        case model.LineFlight:
            if l.FlightOptionID == nil {
                return fmt.Errorf("booking %s flight line %s has no flight option", b.ReservationCode, l.Reference)
            }
            if err := tx.ReleaseFlightSeats(ctx, *l.FlightOptionID, l.Passengers); err != nil {
                return err
            }
        case model.LineLodging:
            if l.LodgingOptionID == nil {
                return fmt.Errorf("booking %s lodging line %s has no lodging option", b.ReservationCode, l.Reference)
            }
            if err := tx.ReleaseRoomNights(ctx, *l.LodgingOptionID, b.CheckIn, b.CheckOut, l.Rooms); err != nil {
                return err
            }
        }
    }
    return tx.UpdateBookingStatus(ctx, b.ID, model.StatusCancelled, nil)
}

// serializable runs fn through the store with bounded retries on
// serialization failures.  Safe to retry from scratch because a failed
// attempt committed nothing.
func (s *BookingService) serializable(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
    var err error
    for attempt := 0; attempt < maxTxAttempts; attempt++ {
        err = s.store.Serializable(ctx, fn)
        if err == nil || !errors.Is(err, store.ErrSerialization) {
            return err
        }
        if attempt == maxTxAttempts-1 {
            break
        }
        backoff := retryBackoff << attempt
        select {
        case <-ctx.Done():
            return fmt.Errorf("%v: %w", ctx.Err(), store.ErrTxTimeout)
        case <-time.After(backoff):
        }
    }
    return fmt.Errorf("gave up after %d attempts (%v): %w", maxTxAttempts, err, store.ErrTxTimeout)
}

// ----- helpers -----

func buildLines(req CreateHoldRequest) []model.BookingLine {
    lines := make([]model.BookingLine, 0,
        len(req.FlightLines)+len(req.LodgingLines)+len(req.TransferLines)+len(req.ExcursionLines))
    for _, fl := range req.FlightLines {
        optionID := fl.FlightOptionID
        lines = append(lines, model.BookingLine{
            Kind:           model.LineFlight,
            Reference:      lineReference("FL"),
            FlightOptionID: &optionID,
            Description:    fl.Description,
            Passengers:     fl.Passengers,
            PriceCents:     fl.PriceCents,
        })
    }
    for _, ll := range req.LodgingLines {
        optionID := ll.LodgingOptionID
        lines = append(lines, model.BookingLine{
            Kind:            model.LineLodging,
            Reference:       lineReference("LG"),
            LodgingOptionID: &optionID,
            Description:     ll.Description,
            Rooms:           ll.Rooms,
            PriceCents:      ll.PriceCents,
        })
    }
    for _, tl := range req.TransferLines {
        lines = append(lines, model.BookingLine{
            Kind:        model.LineTransfer,
            Reference:   lineReference("TR"),
            Description: tl.Description,
            PriceCents:  tl.PriceCents,
        })
    }
    for _, el := range req.ExcursionLines {
        lines = append(lines, model.BookingLine{
            Kind:        model.LineExcursion,
            Reference:   lineReference("EX"),
            Description: el.Description,
            PriceCents:  el.PriceCents,
        })
    }
    return lines
}

func buildPassengers(inputs []PassengerInput) []model.Passenger {
    out := make([]model.Passenger, 0, len(inputs))
    for _, in := range inputs {
        out = append(out, model.Passenger{Kind: in.Kind, FullName: in.FullName, Age: in.Age})
    }
    return out
}

// lineReference builds a per-line booking number like FL-9F12A3C4.
func lineReference(kind string) string {
    return kind + "-" + strings.ToUpper(uuid.NewString()[:8])
}

func (s *BookingService) eventFor(b *model.Booking, status, prev model.BookingStatus) queue.BookingStatusEvent {
    return queue.BookingStatusEvent{
        ReservationCode:  b.ReservationCode,
        Status:           string(status),
        PreviousStatus:   string(prev),
        TotalAmountCents: b.TotalAmountCents,
        Currency:         b.Currency,
        CustomerName:     b.CustomerName,
        CustomerEmail:    b.CustomerEmail,
        CheckIn:          b.CheckIn.Format("2006-01-02"),
        CheckOut:         b.CheckOut.Format("2006-01-02"),
        LineCount:        len(b.Lines),
        OccurredAt:       s.now().Format(time.RFC3339),
    }
}

func (s *BookingService) publish(ctx context.Context, b *model.Booking, prev model.BookingStatus) {
    if s.events == nil || b == nil {
        return
    }
    s.publishEvent(ctx, s.eventFor(b, b.Status, prev))
}

func (s *BookingService) publishEvent(ctx context.Context, ev queue.BookingStatusEvent) {
    if s.events == nil {
        return
    }
    if err := s.events.PublishBookingStatus(ctx, ev); err != nil {
        log.Printf("booking-service: publish status event for %s failed: %v", ev.ReservationCode, err)
    }
}

// dateOnly truncates a timestamp to its calendar date.
func dateOnly(t time.Time) time.Time {
    return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
