package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seminar-hall-booking/internal/apperr"
	"github.com/iliyamo/seminar-hall-booking/internal/booking"
	"github.com/iliyamo/seminar-hall-booking/internal/middleware"
	"github.com/iliyamo/seminar-hall-booking/internal/model"
)

// Bookings is the booking lifecycle service as seen by the HTTP layer.
type Bookings interface {
	ListBookings(ctx context.Context, caller model.Identity, scope string) ([]model.Booking, error)
	ListHalls(ctx context.Context) ([]model.Hall, error)
	CreateBooking(ctx context.Context, caller model.Identity, in booking.CreateInput) (*model.Booking, error)
	SetBookingStatus(ctx context.Context, caller model.Identity, id string, status model.BookingStatus) (*model.Booking, error)
}

// BookingHandler serves hall listing, department booking requests and the
// administrator's review endpoints.
type BookingHandler struct {
	Bookings Bookings
}

func NewBookingHandler(b Bookings) *BookingHandler { return &BookingHandler{Bookings: b} }

// bookingItem is a booking plus the badge variant its status renders with.
type bookingItem struct {
	model.Booking
	Badge string `json:"badge"`
}

type bookingList struct {
	Items      []bookingItem `json:"items"`
	HasPending bool          `json:"has_pending"`
	Notice     string        `json:"notice,omitempty"`
}

func toBookingList(list []model.Booking) bookingList {
	out := bookingList{Items: make([]bookingItem, 0, len(list))}
	for _, b := range list {
		out.Items = append(out.Items, bookingItem{Booking: b, Badge: b.Status.Badge()})
	}
	if booking.HasPending(list) {
		out.HasPending = true
		out.Notice = booking.PendingNotice
	}
	return out
}

type statusReq struct {
	Status string `json:"status"`
}

// ListHalls returns every hall.
func (h *BookingHandler) ListHalls(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	halls, err := h.Bookings.ListHalls(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": halls})
}

// MyBookings lists the caller's department bookings, newest first.
func (h *BookingHandler) MyBookings(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return respondError(c, apperr.New(apperr.Unauthenticated, "not signed in"))
	}
	return h.list(c, id, id.Department)
}

// AdminBookings lists every booking, or one department's with
// ?department=.
func (h *BookingHandler) AdminBookings(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return respondError(c, apperr.New(apperr.Unauthenticated, "not signed in"))
	}
	scope := strings.TrimSpace(c.QueryParam("department"))
	if scope == "" {
		scope = booking.ScopeAll
	}
	return h.list(c, id, scope)
}

func (h *BookingHandler) list(c echo.Context, id model.Identity, scope string) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	list, err := h.Bookings.ListBookings(ctx, id, scope)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingList(list))
}

// Create records a pending booking for the caller's department.  Any
// department field in the body is ignored.
func (h *BookingHandler) Create(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return respondError(c, apperr.New(apperr.Unauthenticated, "not signed in"))
	}
	var in booking.CreateInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	b, err := h.Bookings.CreateBooking(ctx, id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"booking": bookingItem{Booking: *b, Badge: b.Status.Badge()},
		"notice":  booking.PendingNotice,
	})
}

// SetStatus applies {"status": "approved"|"rejected"} to a booking.
func (h *BookingHandler) SetStatus(c echo.Context) error {
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	status, err := model.ParseBookingStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if err != nil {
		return respondError(c, apperr.Wrap(apperr.Validation, "status must be approved or rejected", err))
	}
	return h.setStatus(c, status)
}

// Approve is SetStatus with approved.
func (h *BookingHandler) Approve(c echo.Context) error {
	return h.setStatus(c, model.StatusApproved)
}

// Reject is SetStatus with rejected.
func (h *BookingHandler) Reject(c echo.Context) error {
	return h.setStatus(c, model.StatusRejected)
}

func (h *BookingHandler) setStatus(c echo.Context, status model.BookingStatus) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return respondError(c, apperr.New(apperr.Unauthenticated, "not signed in"))
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	b, err := h.Bookings.SetBookingStatus(ctx, id, c.Param("id"), status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": bookingItem{Booking: *b, Badge: b.Status.Badge()}})
}
