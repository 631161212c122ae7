// Package store defines the persistence ports of the reservation core and
// the error taxonomy every storage failure is translated into.  No raw
// driver error ever crosses this boundary; handlers and callers branch on
// these sentinels with errors.Is.
package store

import "errors"

// ErrNotFound is returned when a booking, inventory unit or sequence row
// does not exist.  Handlers should translate this into an HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrInsufficientInventory signals that a compare-and-decrement found less
// capacity than requested.  Recoverable: the caller should re-quote or
// narrow the request.  Handlers should translate this into an HTTP 409.
var ErrInsufficientInventory = errors.New("insufficient inventory")

// ErrPriceUnavailable signals that no reference price row exists for the
// requested combination.  Recoverable: callers fall back to a
// price-on-request flow instead of failing the page.
var ErrPriceUnavailable = errors.New("price unavailable")

// ErrInvalidState is returned when a lifecycle transition is attempted
// from a state that does not permit it.
var ErrInvalidState = errors.New("invalid booking state")

// ErrHoldExpired is the variant of ErrInvalidState raised when a hold has
// lapsed, so callers can distinguish "never existed" from "existed but
// timed out".  errors.Is(err, ErrInvalidState) also matches it.
var ErrHoldExpired = fmtWrap("hold expired", ErrInvalidState)

// ErrAlreadyCancelled is returned when cancelling a booking that is
// already in its terminal state.
var ErrAlreadyCancelled = errors.New("booking already cancelled")

// ErrSequenceCorruption is fatal: the allocator produced a code that a
// booking already holds, which indicates a deeper bug.  It must be
// surfaced loudly and never silently retried.
var ErrSequenceCorruption = errors.New("reservation sequence corruption")

// ErrSerialization marks a transaction that failed due to lock contention
// or a serialization conflict.  Recoverable: the caller retries the whole
// operation from scratch, since no partial state was committed.
var ErrSerialization = errors.New("transaction serialization failure")

// ErrTxTimeout marks a transaction that exceeded its time budget or
// exhausted its retry cap.  Recoverable with backoff.
var ErrTxTimeout = errors.New("transaction timeout")

// wrapped ties a named variant to its base sentinel so that errors.Is
// matches both the variant and the base.
type wrapped struct {
    msg  string
    base error
}

func (w *wrapped) Error() string { return w.msg }
func (w *wrapped) Unwrap() error { return w.base }

func fmtWrap(msg string, base error) error { return &wrapped{msg: msg, base: base} }
