package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/travel-package-reservation/internal/model"
    "github.com/iliyamo/travel-package-reservation/internal/store"
)

// txTimeout bounds every serializable transaction.  A transaction that
// cannot finish within this budget is rolled back and surfaced as
// store.ErrTxTimeout for the caller to retry with backoff.
const txTimeout = 10 * time.Second

// MySQL error numbers treated as serialization failures.  Both mean the
// transaction lost a race and can be retried from scratch.
const (
    mysqlErrLockDeadlock    = 1213
    mysqlErrLockWaitTimeout = 1205
)

// Store is the MySQL implementation of store.Store.  It owns the
// transaction lifecycle and glues the individual repositories into one
// transactional unit; the service layer above it never sees *sql.Tx or a
// driver error.
type Store struct {
    db        *sql.DB
    sequences *SequenceRepo
    inventory *InventoryRepo
    bookings  *BookingRepo
}

// NewStore returns a Store bound to the given database.
func NewStore(db *sql.DB) *Store {
    return &Store{
        db:        db,
        sequences: NewSequenceRepo(db),
        inventory: NewInventoryRepo(db),
        bookings:  NewBookingRepo(db),
    }
}

// Serializable runs fn inside a single serializable transaction with a
// bounded timeout.  Any error from fn rolls back every write, including
// inventory decrements performed earlier in the same call.  Driver
// errors are translated to the store taxonomy on the way out.
func (s *Store) Serializable(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
    ctx, cancel := context.WithTimeout(ctx, txTimeout)
    defer cancel()

    tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
    if err != nil {
        return translateErr(err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    if err := fn(ctx, &storeTx{s: s, tx: tx}); err != nil {
        return translateErr(err)
    }
    if err := tx.Commit(); err != nil {
        return translateErr(err)
    }
    committed = true
    return nil
}

// translateErr maps driver failures into the store taxonomy.  Errors that
// already belong to the taxonomy pass through unchanged so wrapped
// context (codes, option IDs) survives.
func translateErr(err error) error {
    if err == nil {
        return nil
    }
    var myErr *mysql.MySQLError
    if errors.As(err, &myErr) {
        switch myErr.Number {
        case mysqlErrLockDeadlock, mysqlErrLockWaitTimeout:
            return fmt.Errorf("%v: %w", err, store.ErrSerialization)
        }
    }
    if errors.Is(err, context.DeadlineExceeded) {
        return fmt.Errorf("transaction exceeded %s: %w", txTimeout, store.ErrTxTimeout)
    }
    return err
}

// storeTx adapts one *sql.Tx to the store.Tx port by delegating to the
// Tx-threaded repository methods.
type storeTx struct {
    s  *Store
    tx *sql.Tx
}

func (t *storeTx) NextReservationCode(ctx context.Context, prefix string) (string, error) {
    return t.s.sequences.NextCodeTx(ctx, t.tx, prefix)
}

func (t *storeTx) ReserveFlightSeats(ctx context.Context, flightOptionID string, seats int) error {
    return t.s.inventory.ReserveSeatsTx(ctx, t.tx, flightOptionID, seats)
}

func (t *storeTx) ReleaseFlightSeats(ctx context.Context, flightOptionID string, seats int) error {
    return t.s.inventory.ReleaseSeatsTx(ctx, t.tx, flightOptionID, seats)
}

func (t *storeTx) ReserveRoomNights(ctx context.Context, lodgingOptionID string, checkIn, checkOut time.Time, rooms int) error {
    return t.s.inventory.ReserveRoomNightsTx(ctx, t.tx, lodgingOptionID, checkIn, checkOut, rooms)
}

func (t *storeTx) ReleaseRoomNights(ctx context.Context, lodgingOptionID string, checkIn, checkOut time.Time, rooms int) error {
    return t.s.inventory.ReleaseRoomNightsTx(ctx, t.tx, lodgingOptionID, checkIn, checkOut, rooms)
}

func (t *storeTx) InsertBooking(ctx context.Context, b *model.Booking) error {
    return t.s.bookings.CreateTx(ctx, t.tx, b)
}

func (t *storeTx) InsertLines(ctx context.Context, bookingID uint64, lines []model.BookingLine) error {
    return t.s.bookings.CreateLinesBulkTx(ctx, t.tx, bookingID, lines)
}

func (t *storeTx) InsertPassengers(ctx context.Context, bookingID uint64, passengers []model.Passenger) error {
    return t.s.bookings.CreatePassengersBulkTx(ctx, t.tx, bookingID, passengers)
}

func (t *storeTx) BookingByCode(ctx context.Context, code string) (*model.Booking, error) {
    return t.s.bookings.GetByCodeTx(ctx, t.tx, code)
}

func (t *storeTx) UpdateBookingStatus(ctx context.Context, bookingID uint64, status model.BookingStatus, expiresAt *time.Time) error {
    return t.s.bookings.UpdateStatusTx(ctx, t.tx, bookingID, status, expiresAt)
}

func (t *storeTx) SetPaymentRef(ctx context.Context, bookingID uint64, ref string) error {
    return t.s.bookings.SetPaymentRefTx(ctx, t.tx, bookingID, ref)
}

func (t *storeTx) ExpiredHoldCodes(ctx context.Context, now time.Time, limit int) ([]string, error) {
    return t.s.bookings.ExpiredHoldCodesTx(ctx, t.tx, now, limit)
}
