package model

import (
    "fmt"
    "time"
)

// BookingStatus is the lifecycle state of a booking request.
type BookingStatus string

const (
    StatusPending  BookingStatus = "pending"
    StatusApproved BookingStatus = "approved"
    StatusRejected BookingStatus = "rejected"
)

// DateLayout is the wire and storage format of Booking.Date.
const DateLayout = "2006-01-02"

// ParseBookingStatus converts raw input into a BookingStatus.
func ParseBookingStatus(s string) (BookingStatus, error) {
    switch BookingStatus(s) {
    case StatusPending, StatusApproved, StatusRejected:
        return BookingStatus(s), nil
    default:
        return "", fmt.Errorf("unknown booking status: %q", s)
    }
}

// Terminal reports whether no transition leaves the status.
func (s BookingStatus) Terminal() bool {
    return s == StatusApproved || s == StatusRejected
}

// Badge maps the status to the badge variant clients render it with.
func (s BookingStatus) Badge() string {
    switch s {
    case StatusApproved:
        return "secondary"
    case StatusRejected:
        return "destructive"
    default:
        return "default"
    }
}

// Booking records a department's request for a hall on a calendar date.
//
// Fields:
//  ID         – primary key identifier (uuid).
//  HallName   – name of the requested hall.
//  Department – department of the requesting identity, fixed at creation.
//  Date       – requested calendar date in DateLayout.
//  Status     – pending, approved or rejected.
//  Purpose    – optional free text.
//  Attendees  – optional expected head count.
//  CreatedAt  – creation timestamp (UTC).
type Booking struct {
    ID         string        `json:"id"`                  // bookings.id
    HallName   string        `json:"hall_name"`           // bookings.hall_name
    Department string        `json:"department"`          // bookings.department
    Date       string        `json:"date"`                // bookings.date
    Status     BookingStatus `json:"status"`              // bookings.status
    Purpose    *string       `json:"purpose,omitempty"`   // bookings.purpose (nullable)
    Attendees  *int          `json:"attendees,omitempty"` // bookings.attendees (nullable)
    CreatedAt  time.Time     `json:"created_at"`          // bookings.created_at
}
