package model

import "time"

// BookingStatus enumerates the lifecycle states of a booking.  A booking
// starts as a time-boxed HOLD, becomes CONFIRMED once the customer commits,
// PAID once a payment reference is recorded, and CANCELLED either explicitly
// or when a hold expires.  CANCELLED is terminal.
type BookingStatus string

const (
    StatusHold      BookingStatus = "HOLD"
    StatusConfirmed BookingStatus = "CONFIRMED"
    StatusPaid      BookingStatus = "PAID"
    StatusCancelled BookingStatus = "CANCELLED"
)

// LineKind enumerates the bookable components a booking may contain.
type LineKind string

const (
    LineFlight    LineKind = "FLIGHT"
    LineLodging   LineKind = "LODGING"
    LineTransfer  LineKind = "TRANSFER"
    LineExcursion LineKind = "EXCURSION"
)

// Booking is the aggregate root of the reservation core.  It groups the
// customer, travel dates, line items and passengers created in a single
// transaction under one human-facing reservation code.
//
// Invariant: ExpiresAt is non-nil if and only if Status is HOLD.  All
// monetary amounts are integer minor units (cents); floating point is
// never used for money.
type Booking struct {
    ID               uint64        // bookings.id
    ReservationCode  string        // bookings.reservation_code (PREFIX-NNNN, unique)
    Status           BookingStatus // bookings.status
    TotalAmountCents int64         // bookings.total_amount_cents
    Currency         string        // bookings.currency (ISO 4217)
    CustomerName     string        // bookings.customer_name
    CustomerEmail    string        // bookings.customer_email
    CustomerPhone    string        // bookings.customer_phone
    CheckIn          time.Time     // bookings.check_in (calendar date)
    CheckOut         time.Time     // bookings.check_out (calendar date)
    ExpiresAt        *time.Time    // bookings.expires_at (nullable; HOLD only)
    PaymentRef       *string       // bookings.payment_ref (nullable)
    Notes            *string       // bookings.notes (nullable, back-office)
    Lines            []BookingLine // owned line items, loaded with the aggregate
    Passengers       []Passenger   // per-traveler records, loaded with the aggregate
    CreatedAt        time.Time     // bookings.created_at
    UpdatedAt        time.Time     // bookings.updated_at
}

// BookingLine is one bookable component attached to a booking.  Lines are
// created atomically with their booking and are never reparented.  Each
// carries its own price and a reference generated at creation time.
type BookingLine struct {
    ID              uint64    // booking_lines.id
    BookingID       uint64    // booking_lines.booking_id
    Kind            LineKind  // booking_lines.kind
    Reference       string    // booking_lines.reference (per-line booking number)
    FlightOptionID  *string   // booking_lines.flight_option_id (FLIGHT lines)
    LodgingOptionID *string   // booking_lines.lodging_option_id (LODGING lines)
    Description     string    // booking_lines.description
    Passengers      int       // booking_lines.passengers (seats for FLIGHT lines)
    Rooms           int       // booking_lines.rooms (LODGING lines)
    PriceCents      int64     // booking_lines.price_cents
    CreatedAt       time.Time // booking_lines.created_at
}
