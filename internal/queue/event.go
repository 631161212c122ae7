// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingStatusEvent is published on every booking status transition
// (hold created, confirmed, paid, cancelled, expired-by-sweep).  It
// carries enough information for downstream consumers (the notification
// dispatcher and document generator) to act without querying the
// primary database.
type BookingStatusEvent struct {
    ReservationCode  string `json:"reservation_code"`
    Status           string `json:"status"`
    PreviousStatus   string `json:"previous_status,omitempty"`
    TotalAmountCents int64  `json:"total_amount_cents"`
    Currency         string `json:"currency"`
    CustomerName     string `json:"customer_name"`
    CustomerEmail    string `json:"customer_email"`
    CheckIn          string `json:"check_in"`
    CheckOut         string `json:"check_out"`
    LineCount        int    `json:"line_count"`
    OccurredAt       string `json:"occurred_at"`
}
