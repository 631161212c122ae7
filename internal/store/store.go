package store

import (
    "context"
    "time"

    "github.com/iliyamo/travel-package-reservation/internal/model"
)

// Tx is the set of operations available inside one serializable
// transaction.  Every multi-step mutation of the reservation core runs
// against a Tx so that a booking, its line items and its inventory
// decrements commit or roll back together.
type Tx interface {
    // NextReservationCode atomically increments the sequence for prefix and
    // returns the formatted code (PREFIX-NNNN).  A missing or stale counter
    // is resynced from the highest code already issued before incrementing.
    // Returns ErrSequenceCorruption if the new code is already in use.
    NextReservationCode(ctx context.Context, prefix string) (string, error)

    // ReserveFlightSeats decrements available seats for a flight option in
    // a single compare-and-decrement statement.  Returns
    // ErrInsufficientInventory when fewer than seats remain and ErrNotFound
    // when the flight option has no inventory row.
    ReserveFlightSeats(ctx context.Context, flightOptionID string, seats int) error

    // ReleaseFlightSeats is the exact inverse of ReserveFlightSeats.  A
    // release that would exceed total capacity is applied but logged as a
    // coordination bug.
    ReleaseFlightSeats(ctx context.Context, flightOptionID string, seats int) error

    // ReserveRoomNights decrements room capacity for every night in
    // [checkIn, checkOut).  A missing night row counts as zero capacity.
    ReserveRoomNights(ctx context.Context, lodgingOptionID string, checkIn, checkOut time.Time, rooms int) error

    // ReleaseRoomNights is the exact inverse of ReserveRoomNights.
    ReleaseRoomNights(ctx context.Context, lodgingOptionID string, checkIn, checkOut time.Time, rooms int) error

    // InsertBooking persists the booking header and populates its ID and
    // timestamps.
    InsertBooking(ctx context.Context, b *model.Booking) error

    // InsertLines bulk-inserts the line items of a booking.
    InsertLines(ctx context.Context, bookingID uint64, lines []model.BookingLine) error

    // InsertPassengers bulk-inserts the traveler records of a booking.
    InsertPassengers(ctx context.Context, bookingID uint64, passengers []model.Passenger) error

    // BookingByCode loads the full aggregate (header, lines, passengers).
    // Returns ErrNotFound when no booking carries the code.
    BookingByCode(ctx context.Context, code string) (*model.Booking, error)

    // UpdateBookingStatus sets the status and expiry of a booking.
    // expiresAt must be nil for every status except HOLD.
    UpdateBookingStatus(ctx context.Context, bookingID uint64, status model.BookingStatus, expiresAt *time.Time) error

    // SetPaymentRef records the external payment reference on a booking.
    SetPaymentRef(ctx context.Context, bookingID uint64, ref string) error

    // ExpiredHoldCodes returns up to limit reservation codes of holds whose
    // expiry is before now, oldest first.
    ExpiredHoldCodes(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// Store opens serializable transactions against the reservation schema.
// Implementations translate driver errors into the package sentinels;
// in particular lock conflicts surface as ErrSerialization so the service
// layer can retry the whole operation.
type Store interface {
    Serializable(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// PriceSource reads the pre-computed package price table.  Rows are
// produced by an external pricing job and never written by this service,
// so reads need no transaction.
type PriceSource interface {
    // BaselineRow returns the adults-only reference row for the given
    // occupancy and options, or ErrPriceUnavailable.
    BaselineRow(ctx context.Context, adults int, flightOptionID, lodgingOptionID string) (*model.PackagePrice, error)

    // ChildExemplar returns any row with childrenCount > 0 for the given
    // options, or ErrPriceUnavailable.  The row need not match the child
    // count actually being priced; it only anchors the marginal derivation.
    ChildExemplar(ctx context.Context, flightOptionID, lodgingOptionID string) (*model.PackagePrice, error)
}
