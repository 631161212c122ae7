package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/iliyamo/travel-package-reservation/internal/store"
)

// SequenceRepo allocates reservation codes from the singleton counter in
// reservation_sequences.  All methods run inside a caller-owned
// transaction so that an allocated number and the booking that uses it
// commit or roll back together.  The counter is monotonic: gaps are
// permitted (a rolled-back allocation burns nothing, an aborted booking
// after commit of a retry burns a number), duplicates are not.
type SequenceRepo struct {
    db *sql.DB
}

// NewSequenceRepo returns a SequenceRepo bound to the given database.
func NewSequenceRepo(db *sql.DB) *SequenceRepo { return &SequenceRepo{db: db} }

// NextCodeTx increments the counter for prefix and returns the formatted
// reservation code.  The row is locked FOR UPDATE for the duration of the
// enclosing transaction, which serializes concurrent allocators.
//
// Recovery: when the counter row is missing, or its value is behind the
// highest number already embedded in an issued code, the counter is reset
// to that maximum before incrementing.  A lost or reinitialized counter
// therefore never reissues a code already in use.
//
// As a final correctness assertion the new code is checked against the
// bookings table; a hit means the sequence is corrupt and the enclosing
// transaction must hard-fail.
func (r *SequenceRepo) NextCodeTx(ctx context.Context, tx *sql.Tx, prefix string) (string, error) {
    var current uint64
    err := tx.QueryRowContext(ctx,
        `SELECT current_number FROM reservation_sequences WHERE prefix = ? FOR UPDATE`,
        prefix).Scan(&current)
    missing := errors.Is(err, sql.ErrNoRows)
    if err != nil && !missing {
        return "", err
    }

    issued, err := r.maxIssuedTx(ctx, tx, prefix)
    if err != nil {
        return "", err
    }
    if current < issued {
        current = issued
    }
    next := current + 1

    if missing {
        _, err = tx.ExecContext(ctx,
            `INSERT INTO reservation_sequences (prefix, current_number) VALUES (?, ?)`,
            prefix, next)
    } else {
        _, err = tx.ExecContext(ctx,
            `UPDATE reservation_sequences SET current_number = ?, updated_at = UTC_TIMESTAMP() WHERE prefix = ?`,
            next, prefix)
    }
    if err != nil {
        return "", err
    }

    code := FormatCode(prefix, next)

    var clash bool
    if err := tx.QueryRowContext(ctx,
        `SELECT EXISTS(SELECT 1 FROM bookings WHERE reservation_code = ?)`,
        code).Scan(&clash); err != nil {
        return "", err
    }
    if clash {
        return "", fmt.Errorf("code %s already issued: %w", code, store.ErrSequenceCorruption)
    }
    return code, nil
}

// maxIssuedTx scans the highest number already embedded in a reservation
// code for the prefix.  Returns 0 when no booking exists yet.
func (r *SequenceRepo) maxIssuedTx(ctx context.Context, tx *sql.Tx, prefix string) (uint64, error) {
    var max sql.NullInt64
    err := tx.QueryRowContext(ctx,
        `SELECT MAX(CAST(SUBSTRING_INDEX(reservation_code, '-', -1) AS UNSIGNED))
         FROM bookings WHERE reservation_code LIKE CONCAT(?, '-%')`,
        prefix).Scan(&max)
    if err != nil {
        return 0, err
    }
    if !max.Valid || max.Int64 < 0 {
        return 0, nil
    }
    return uint64(max.Int64), nil
}

// FormatCode renders a sequence number as a human-facing reservation code,
// zero-padded to four digits.  Numbers beyond 9999 widen naturally.
func FormatCode(prefix string, n uint64) string {
    return fmt.Sprintf("%s-%04d", prefix, n)
}
