// Package queue defines the lifecycle events exchanged over the message
// broker together with their publisher and the audit consumer.
package queue

import "time"

// Routing keys on the seminar.events topic exchange.
const (
    BookingCreated       = "booking.created"
    BookingStatusChanged = "booking.status_changed"
    SessionEstablished   = "session.established"
    SessionEnded         = "session.ended"
)

// Event is the envelope published for every lifecycle change.  Exactly one
// of Booking or Session is set, matching the prefix of Type.
type Event struct {
    Type       string          `json:"type"`
    OccurredAt time.Time       `json:"occurred_at"`
    ActorID    string          `json:"actor_id,omitempty"`
    Booking    *BookingPayload `json:"booking,omitempty"`
    Session    *SessionPayload `json:"session,omitempty"`
}

// BookingPayload carries enough of the booking for consumers to log or
// notify without querying the database.
type BookingPayload struct {
    ID             string `json:"id"`
    HallName       string `json:"hall_name"`
    Department     string `json:"department"`
    Date           string `json:"date"`
    Status         string `json:"status"`
    PreviousStatus string `json:"previous_status,omitempty"`
}

// SessionPayload identifies whose session was established or ended.
type SessionPayload struct {
    UserID string `json:"user_id"`
    Role   string `json:"role"`
}
