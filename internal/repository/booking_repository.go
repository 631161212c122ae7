package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    "github.com/iliyamo/travel-package-reservation/internal/model"
    "github.com/iliyamo/travel-package-reservation/internal/store"
)

// BookingRepo provides persistence for the booking aggregate: the header
// row, its line items and its passenger records.  Aggregate mutations are
// only exposed as ...Tx methods so they share the caller's transaction
// with the inventory decrements they belong to.  All timestamps are UTC.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// CreateTx inserts a new booking header within the scope of an existing
// transaction.  It populates the generated ID and the DB-assigned
// timestamps on the provided record.  The caller must commit or roll back
// the transaction.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
    var expires interface{}
    if b.ExpiresAt != nil {
        expires = b.ExpiresAt.UTC().Format("2006-01-02 15:04:05")
    }
    const q = `INSERT INTO bookings
        (reservation_code, status, total_amount_cents, currency,
         customer_name, customer_email, customer_phone,
         check_in, check_out, expires_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, q,
        b.ReservationCode, b.Status, b.TotalAmountCents, b.Currency,
        b.CustomerName, b.CustomerEmail, b.CustomerPhone,
        b.CheckIn.Format("2006-01-02"), b.CheckOut.Format("2006-01-02"), expires)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    b.ID = uint64(id)
    // Query back timestamps and defaults assigned by the database.
    return tx.QueryRowContext(ctx,
        `SELECT created_at, updated_at FROM bookings WHERE id = ?`, b.ID,
    ).Scan(&b.CreatedAt, &b.UpdatedAt)
}

// CreateLinesBulkTx inserts all line items of a booking in a single
// statement.  Passing an empty slice has no effect and returns nil.
func (r *BookingRepo) CreateLinesBulkTx(ctx context.Context, tx *sql.Tx, bookingID uint64, lines []model.BookingLine) error {
    if len(lines) == 0 {
        return nil
    }
    query := `INSERT INTO booking_lines
        (booking_id, kind, reference, flight_option_id, lodging_option_id, description, passengers, rooms, price_cents) VALUES `
    args := make([]interface{}, 0, len(lines)*9)
    for i, l := range lines {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?, ?, ?, ?, ?, ?)"
        args = append(args, bookingID, l.Kind, l.Reference, l.FlightOptionID, l.LodgingOptionID,
            l.Description, l.Passengers, l.Rooms, l.PriceCents)
    }
    _, err := tx.ExecContext(ctx, query, args...)
    return err
}

// CreatePassengersBulkTx inserts all passenger records of a booking in a
// single statement.  Passing an empty slice has no effect and returns nil.
func (r *BookingRepo) CreatePassengersBulkTx(ctx context.Context, tx *sql.Tx, bookingID uint64, passengers []model.Passenger) error {
    if len(passengers) == 0 {
        return nil
    }
    query := `INSERT INTO booking_passengers (booking_id, kind, full_name, age) VALUES `
    args := make([]interface{}, 0, len(passengers)*4)
    for i, p := range passengers {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?)"
        args = append(args, bookingID, p.Kind, p.FullName, p.Age)
    }
    _, err := tx.ExecContext(ctx, query, args...)
    return err
}

// GetByCodeTx loads the complete aggregate for a reservation code: the
// header row (locked FOR UPDATE so a status flip observed by this read is
// atomic with it), all line items and all passengers.  Returns
// store.ErrNotFound when no booking carries the code.
func (r *BookingRepo) GetByCodeTx(ctx context.Context, tx *sql.Tx, code string) (*model.Booking, error) {
    const q = `SELECT id, reservation_code, status, total_amount_cents, currency,
                      customer_name, customer_email, customer_phone,
                      check_in, check_out, expires_at, payment_ref, notes,
                      created_at, updated_at
               FROM bookings WHERE reservation_code = ? FOR UPDATE`
    var (
        b          model.Booking
        expiresAt  sql.NullTime
        paymentRef sql.NullString
        notes      sql.NullString
    )
    err := tx.QueryRowContext(ctx, q, code).Scan(
        &b.ID, &b.ReservationCode, &b.Status, &b.TotalAmountCents, &b.Currency,
        &b.CustomerName, &b.CustomerEmail, &b.CustomerPhone,
        &b.CheckIn, &b.CheckOut, &expiresAt, &paymentRef, &notes,
        &b.CreatedAt, &b.UpdatedAt,
    )
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, fmt.Errorf("booking %s: %w", code, store.ErrNotFound)
        }
        return nil, err
    }
    if expiresAt.Valid {
        t := expiresAt.Time
        b.ExpiresAt = &t
    }
    if paymentRef.Valid {
        v := paymentRef.String
        b.PaymentRef = &v
    }
    if notes.Valid {
        v := notes.String
        b.Notes = &v
    }

    lines, err := r.linesTx(ctx, tx, b.ID)
    if err != nil {
        return nil, err
    }
    b.Lines = lines

    passengers, err := r.passengersTx(ctx, tx, b.ID)
    if err != nil {
        return nil, err
    }
    b.Passengers = passengers
    return &b, nil
}

func (r *BookingRepo) linesTx(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]model.BookingLine, error) {
    const q = `SELECT id, booking_id, kind, reference, flight_option_id, lodging_option_id,
                      description, passengers, rooms, price_cents, created_at
               FROM booking_lines WHERE booking_id = ? ORDER BY id`
    rows, err := tx.QueryContext(ctx, q, bookingID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    lines := make([]model.BookingLine, 0, 4)
    for rows.Next() {
        var (
            l       model.BookingLine
            flight  sql.NullString
            lodging sql.NullString
        )
        if err := rows.Scan(&l.ID, &l.BookingID, &l.Kind, &l.Reference, &flight, &lodging,
            &l.Description, &l.Passengers, &l.Rooms, &l.PriceCents, &l.CreatedAt); err != nil {
            return nil, err
        }
        if flight.Valid {
            v := flight.String
            l.FlightOptionID = &v
        }
        if lodging.Valid {
            v := lodging.String
            l.LodgingOptionID = &v
        }
        lines = append(lines, l)
    }
    return lines, rows.Err()
}

func (r *BookingRepo) passengersTx(ctx context.Context, tx *sql.Tx, bookingID uint64) ([]model.Passenger, error) {
    const q = `SELECT id, booking_id, kind, full_name, age
               FROM booking_passengers WHERE booking_id = ? ORDER BY id`
    rows, err := tx.QueryContext(ctx, q, bookingID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    passengers := make([]model.Passenger, 0, 4)
    for rows.Next() {
        var (
            p   model.Passenger
            age sql.NullInt64
        )
        if err := rows.Scan(&p.ID, &p.BookingID, &p.Kind, &p.FullName, &age); err != nil {
            return nil, err
        }
        if age.Valid {
            v := int(age.Int64)
            p.Age = &v
        }
        passengers = append(passengers, p)
    }
    return passengers, rows.Err()
}

// UpdateStatusTx sets the status and expiry of a booking.  expiresAt must
// be nil for every status except HOLD, preserving the aggregate invariant.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, bookingID uint64, status model.BookingStatus, expiresAt *time.Time) error {
    var expires interface{}
    if expiresAt != nil {
        expires = expiresAt.UTC().Format("2006-01-02 15:04:05")
    }
    res, err := tx.ExecContext(ctx,
        `UPDATE bookings SET status = ?, expires_at = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
        status, expires, bookingID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return fmt.Errorf("booking id %d: %w", bookingID, store.ErrNotFound)
    }
    return nil
}

// SetPaymentRefTx records the external payment reference on a booking.
func (r *BookingRepo) SetPaymentRefTx(ctx context.Context, tx *sql.Tx, bookingID uint64, ref string) error {
    _, err := tx.ExecContext(ctx,
        `UPDATE bookings SET payment_ref = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
        ref, bookingID)
    return err
}

// ExpiredHoldCodesTx returns up to limit reservation codes of holds whose
// expiry has passed, oldest expiry first, for batched sweep processing.
func (r *BookingRepo) ExpiredHoldCodesTx(ctx context.Context, tx *sql.Tx, now time.Time, limit int) ([]string, error) {
    const q = `SELECT reservation_code FROM bookings
               WHERE status = 'HOLD' AND expires_at < ?
               ORDER BY expires_at LIMIT ?`
    rows, err := tx.QueryContext(ctx, q, now.UTC().Format("2006-01-02 15:04:05"), limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var codes []string
    for rows.Next() {
        var code string
        if err := rows.Scan(&code); err != nil {
            return nil, err
        }
        codes = append(codes, code)
    }
    return codes, rows.Err()
}
