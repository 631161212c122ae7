package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/iliyamo/travel-package-reservation/internal/store"
)

// InventoryRepo mutates the two inventory tables: flight_inventory (a
// seat counter per flight option) and room_nights (a rooms-per-night grid
// per lodging option).  Every mutation is a single compare-and-decrement
// statement so the availability check and the decrement cannot be split
// by a concurrent transaction.  All methods require the caller's
// transaction; inventory is never touched outside one.
type InventoryRepo struct {
    db *sql.DB
}

// NewInventoryRepo returns an InventoryRepo bound to the given database.
func NewInventoryRepo(db *sql.DB) *InventoryRepo { return &InventoryRepo{db: db} }

// ReserveSeatsTx atomically takes seats from a flight option.  The
// predicate `available_seats >= ?` makes the statement a no-op when
// capacity is short, which surfaces as ErrInsufficientInventory; the
// count can therefore never go below zero.
func (r *InventoryRepo) ReserveSeatsTx(ctx context.Context, tx *sql.Tx, flightOptionID string, seats int) error {
    res, err := tx.ExecContext(ctx,
        `UPDATE flight_inventory
         SET available_seats = available_seats - ?, updated_at = UTC_TIMESTAMP()
         WHERE flight_option_id = ? AND available_seats >= ?`,
        seats, flightOptionID, seats)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        var exists bool
        if err := tx.QueryRowContext(ctx,
            `SELECT EXISTS(SELECT 1 FROM flight_inventory WHERE flight_option_id = ?)`,
            flightOptionID).Scan(&exists); err != nil {
            return err
        }
        if !exists {
            return fmt.Errorf("flight option %s: %w", flightOptionID, store.ErrNotFound)
        }
        return fmt.Errorf("flight option %s, %d seats: %w", flightOptionID, seats, store.ErrInsufficientInventory)
    }
    return nil
}

// ReleaseSeatsTx returns seats to a flight option.  It is the exact
// inverse of ReserveSeatsTx and must be called at most once per original
// successful reservation.  A release that pushes availability past
// total_seats is still applied, but logged: it signals a coordination bug
// upstream, not a condition this layer can repair.
func (r *InventoryRepo) ReleaseSeatsTx(ctx context.Context, tx *sql.Tx, flightOptionID string, seats int) error {
    res, err := tx.ExecContext(ctx,
        `UPDATE flight_inventory
         SET available_seats = available_seats + ?, updated_at = UTC_TIMESTAMP()
         WHERE flight_option_id = ?`,
        seats, flightOptionID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return fmt.Errorf("flight option %s: %w", flightOptionID, store.ErrNotFound)
    }
    var available, total int
    if err := tx.QueryRowContext(ctx,
        `SELECT available_seats, total_seats FROM flight_inventory WHERE flight_option_id = ?`,
        flightOptionID).Scan(&available, &total); err != nil {
        return err
    }
    if available > total {
        log.Printf("inventory: release on flight %s left %d/%d seats available; double release suspected",
            flightOptionID, available, total)
    }
    return nil
}

// ReserveRoomNightsTx takes rooms from every night of [checkIn, checkOut).
// Each night is its own compare-and-decrement; the first short night
// aborts with ErrInsufficientInventory and the enclosing transaction
// rolls back the nights already taken.  A night with no grid row counts
// as zero capacity.
func (r *InventoryRepo) ReserveRoomNightsTx(ctx context.Context, tx *sql.Tx, lodgingOptionID string, checkIn, checkOut time.Time, rooms int) error {
    for night := dateOnly(checkIn); night.Before(dateOnly(checkOut)); night = night.AddDate(0, 0, 1) {
        res, err := tx.ExecContext(ctx,
            `UPDATE room_nights
             SET available_rooms = available_rooms - ?, booked_rooms = booked_rooms + ?
             WHERE lodging_option_id = ? AND night = ? AND available_rooms >= ?`,
            rooms, rooms, lodgingOptionID, night.Format("2006-01-02"), rooms)
        if err != nil {
            return err
        }
        n, err := res.RowsAffected()
        if err != nil {
            return err
        }
        if n == 0 {
            return fmt.Errorf("lodging option %s night %s, %d rooms: %w",
                lodgingOptionID, night.Format("2006-01-02"), rooms, store.ErrInsufficientInventory)
        }
    }
    return nil
}

// ReleaseRoomNightsTx is the exact inverse of ReserveRoomNightsTx.  Nights
// whose release would exceed total_rooms are logged the same way as seat
// over-releases.
func (r *InventoryRepo) ReleaseRoomNightsTx(ctx context.Context, tx *sql.Tx, lodgingOptionID string, checkIn, checkOut time.Time, rooms int) error {
    for night := dateOnly(checkIn); night.Before(dateOnly(checkOut)); night = night.AddDate(0, 0, 1) {
        res, err := tx.ExecContext(ctx,
            `UPDATE room_nights
             SET available_rooms = available_rooms + ?, booked_rooms = booked_rooms - ?
             WHERE lodging_option_id = ? AND night = ?`,
            rooms, rooms, lodgingOptionID, night.Format("2006-01-02"))
        if err != nil {
            return err
        }
        n, err := res.RowsAffected()
        if err != nil {
            return err
        }
        if n == 0 {
            return fmt.Errorf("lodging option %s night %s: %w", lodgingOptionID, night.Format("2006-01-02"), store.ErrNotFound)
        }
        var available, total int
        if err := tx.QueryRowContext(ctx,
            `SELECT available_rooms, total_rooms FROM room_nights WHERE lodging_option_id = ? AND night = ?`,
            lodgingOptionID, night.Format("2006-01-02")).Scan(&available, &total); err != nil {
            if errors.Is(err, sql.ErrNoRows) {
                continue
            }
            return err
        }
        if available > total {
            log.Printf("inventory: release on lodging %s night %s left %d/%d rooms available; double release suspected",
                lodgingOptionID, night.Format("2006-01-02"), available, total)
        }
    }
    return nil
}

// dateOnly truncates a timestamp to its calendar date, preserving the
// date parts rather than converting through a timezone.
func dateOnly(t time.Time) time.Time {
    return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
