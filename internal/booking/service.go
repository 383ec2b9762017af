// Package booking implements the hall booking lifecycle: listing, creation
// by departments and approval or rejection by administrators.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/seminar-hall-booking/internal/apperr"
	"github.com/iliyamo/seminar-hall-booking/internal/cache"
	"github.com/iliyamo/seminar-hall-booking/internal/model"
	"github.com/iliyamo/seminar-hall-booking/internal/queue"
	"github.com/iliyamo/seminar-hall-booking/internal/repository"
	"github.com/iliyamo/seminar-hall-booking/internal/storage"
	"github.com/iliyamo/seminar-hall-booking/internal/telemetry"
)

// PendingNotice is shown with any list that still holds a pending booking.
const PendingNotice = "An administrator will confirm your booking within 2-24 hours"

// MaxAttendees is the largest head count a booking may declare.  It fits
// the attendees column of every supported database.
const MaxAttendees = math.MaxInt32

// ScopeAll selects every booking; any other scope is a department name.
const ScopeAll = cache.ScopeAll

// Store is the row store contract the service needs for bookings.
type Store interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListAll(ctx context.Context) ([]model.Booking, error)
	ListByDepartment(ctx context.Context, department string) ([]model.Booking, error)
	UpdateStatus(ctx context.Context, id string, status model.BookingStatus) error
	UpdateStatusIfPending(ctx context.Context, id string, status model.BookingStatus) error
}

// HallStore is the row store contract for halls.
type HallStore interface {
	ListAll(ctx context.Context) ([]model.Hall, error)
	GetByName(ctx context.Context, name string) (*model.Hall, error)
}

// ListCache holds booking lists per scope.  *cache.BookingLists satisfies it.
// Set must refuse to store when scope's generation moved past gen.
type ListCache interface {
	Get(ctx context.Context, scope string) ([]model.Booking, bool, error)
	Generation(ctx context.Context, scope string) (int64, error)
	Set(ctx context.Context, scope string, gen int64, list []model.Booking) (bool, error)
	Invalidate(ctx context.Context, scopes ...string) error
}

// CreateInput is what a department supplies when requesting a hall.
type CreateInput struct {
	HallName  string  `json:"hall_name"`
	Date      string  `json:"date"`
	Purpose   *string `json:"purpose,omitempty"`
	Attendees *int    `json:"attendees,omitempty"`
}

// Service owns the booking lifecycle rules.
type Service struct {
	Bookings Store
	Halls    HallStore
	Cache    ListCache
	Events   queue.Publisher
	Images   storage.ImageResolver
	Metrics  *telemetry.Metrics

	// Strict restricts transitions to pending -> approved|rejected.
	Strict bool
	// Now is the clock used for created_at; defaults to time.Now.
	Now func() time.Time
	// NewID generates booking ids; defaults to uuid.NewString.
	NewID func() string
}

// NewService wires a Service with strict transitions and nop collaborators
// where nil is given.
func NewService(bookings Store, halls HallStore, lists ListCache, events queue.Publisher, images storage.ImageResolver) *Service {
	return &Service{
		Bookings: bookings,
		Halls:    halls,
		Cache:    lists,
		Events:   events,
		Images:   images,
		Strict:   true,
	}
}

// ListBookings returns the bookings visible in scope, newest first.  Admins
// may list any scope; a department identity only its own department.
func (s *Service) ListBookings(ctx context.Context, caller model.Identity, scope string) ([]model.Booking, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return nil, apperr.New(apperr.Validation, "scope is required")
	}
	switch {
	case caller.IsAdmin():
	case caller.Role == model.RoleDepartment && caller.Department != "" && scope == caller.Department:
	default:
		return nil, apperr.New(apperr.Forbidden, "not allowed to list these bookings")
	}

	// gen is taken before the store read; fillable is false when the
	// cache cannot tell whether a write slipped in.
	var (
		gen      int64
		fillable bool
	)
	if s.Cache != nil {
		list, ok, err := s.Cache.Get(ctx, scope)
		if err != nil {
			log.Printf("booking: cache get %s: %v", scope, err)
		}
		if ok {
			s.countLookup("hit")
			return list, nil
		}
		s.countLookup("miss")
		if gen, err = s.Cache.Generation(ctx, scope); err != nil {
			log.Printf("booking: cache generation %s: %v", scope, err)
		} else {
			fillable = true
		}
	}

	var (
		list []model.Booking
		err  error
	)
	if scope == ScopeAll {
		list, err = s.Bookings.ListAll(ctx)
	} else {
		list, err = s.Bookings.ListByDepartment(ctx, scope)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not load bookings", err)
	}
	if list == nil {
		list = []model.Booking{}
	}

	if fillable {
		if _, err := s.Cache.Set(ctx, scope, gen, list); err != nil {
			log.Printf("booking: cache set %s: %v", scope, err)
		}
	}
	return list, nil
}

// ListHalls returns every hall with its image reference resolved to a URL
// clients can fetch.
func (s *Service) ListHalls(ctx context.Context) ([]model.Hall, error) {
	halls, err := s.Halls.ListAll(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not load halls", err)
	}
	if s.Images == nil {
		return halls, nil
	}
	for i := range halls {
		if halls[i].Image == "" {
			continue
		}
		u, err := s.Images.ResolveImage(ctx, halls[i].Image)
		if err != nil {
			log.Printf("booking: resolve image %q: %v", halls[i].Image, err)
			continue
		}
		halls[i].Image = u
	}
	return halls, nil
}

// CreateBooking records a pending request for a hall on behalf of the
// caller's department.
func (s *Service) CreateBooking(ctx context.Context, caller model.Identity, in CreateInput) (*model.Booking, error) {
	if caller.Role != model.RoleDepartment || caller.Department == "" {
		return nil, apperr.New(apperr.Forbidden, "only departments can request halls")
	}
	hallName := strings.TrimSpace(in.HallName)
	date := strings.TrimSpace(in.Date)
	if hallName == "" || date == "" {
		return nil, apperr.New(apperr.Validation, "hall_name and date are required")
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return nil, apperr.New(apperr.Validation, "date must be formatted as YYYY-MM-DD")
	}
	if in.Attendees != nil && (*in.Attendees <= 0 || *in.Attendees > MaxAttendees) {
		return nil, apperr.New(apperr.Validation, fmt.Sprintf("attendees must be between 1 and %d", MaxAttendees))
	}

	if _, err := s.Halls.GetByName(ctx, hallName); err != nil {
		if errors.Is(err, repository.ErrHallNotFound) {
			return nil, apperr.Wrap(apperr.Validation, "unknown hall", err)
		}
		return nil, apperr.Wrap(apperr.Internal, "could not look up hall", err)
	}

	b := &model.Booking{
		ID:         s.newID(),
		HallName:   hallName,
		Department: caller.Department,
		Date:       date,
		Status:     model.StatusPending,
		Purpose:    trimOptional(in.Purpose),
		Attendees:  in.Attendees,
		CreatedAt:  s.now().UTC().Truncate(time.Second),
	}
	if err := s.Bookings.Create(ctx, b); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not create booking", err)
	}

	s.invalidate(ctx, ScopeAll, b.Department)
	s.publish(ctx, queue.Event{
		Type:    queue.BookingCreated,
		ActorID: caller.ID,
		Booking: payload(b, ""),
	})
	if s.Metrics != nil {
		s.Metrics.BookingsCreated.Inc()
	}
	return b, nil
}

// SetBookingStatus approves or rejects a booking.  Re-applying the status a
// booking already holds succeeds without a write.  In strict mode any other
// change to a decided booking is a conflict.
func (s *Service) SetBookingStatus(ctx context.Context, caller model.Identity, id string, status model.BookingStatus) (*model.Booking, error) {
	if !caller.IsAdmin() {
		return nil, apperr.New(apperr.Forbidden, "only administrators can change booking status")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.New(apperr.Validation, "booking id is required")
	}
	if status != model.StatusApproved && status != model.StatusRejected {
		return nil, apperr.New(apperr.Validation, "status must be approved or rejected")
	}

	current, err := s.Bookings.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookupErr(err)
	}
	if current.Status == status {
		return current, nil
	}
	if s.Strict && current.Status != model.StatusPending {
		return nil, s.conflict(current.Status)
	}

	if s.Strict {
		err = s.Bookings.UpdateStatusIfPending(ctx, id, status)
	} else {
		err = s.Bookings.UpdateStatus(ctx, id, status)
	}
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrStaleStatus):
		// Lost a race with another decision; it only counts if it agrees.
		latest, gerr := s.Bookings.GetByID(ctx, id)
		if gerr != nil {
			return nil, s.lookupErr(gerr)
		}
		if latest.Status == status {
			return latest, nil
		}
		return nil, s.conflict(latest.Status)
	default:
		return nil, s.lookupErr(err)
	}

	previous := current.Status
	updated := *current
	updated.Status = status

	s.invalidate(ctx, ScopeAll, updated.Department)
	s.publish(ctx, queue.Event{
		Type:    queue.BookingStatusChanged,
		ActorID: caller.ID,
		Booking: payload(&updated, previous),
	})
	if s.Metrics != nil {
		s.Metrics.StatusChanges.WithLabelValues(string(status)).Inc()
	}
	return &updated, nil
}

// HasPending reports whether any booking in list is still pending.
func HasPending(list []model.Booking) bool {
	for _, b := range list {
		if b.Status == model.StatusPending {
			return true
		}
	}
	return false
}

func (s *Service) lookupErr(err error) error {
	if errors.Is(err, repository.ErrBookingNotFound) {
		return apperr.Wrap(apperr.NotFound, "booking not found", err)
	}
	return apperr.Wrap(apperr.Internal, "could not update booking", err)
}

func (s *Service) conflict(current model.BookingStatus) error {
	if s.Metrics != nil {
		s.Metrics.RejectedChanges.WithLabelValues(string(current)).Inc()
	}
	return apperr.New(apperr.Conflict, "booking is already "+string(current))
}

func (s *Service) invalidate(ctx context.Context, scopes ...string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Invalidate(ctx, scopes...); err != nil {
		log.Printf("booking: cache invalidate %v: %v", scopes, err)
	}
}

func (s *Service) publish(ctx context.Context, ev queue.Event) {
	if s.Events == nil {
		return
	}
	ev.OccurredAt = s.now().UTC()
	if err := s.Events.Publish(ctx, ev); err != nil {
		log.Printf("booking: publish %s: %v", ev.Type, err)
	}
}

func (s *Service) countLookup(result string) {
	if s.Metrics != nil {
		s.Metrics.ListCacheLookups.WithLabelValues(result).Inc()
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func payload(b *model.Booking, previous model.BookingStatus) *queue.BookingPayload {
	return &queue.BookingPayload{
		ID:             b.ID,
		HallName:       b.HallName,
		Department:     b.Department,
		Date:           b.Date,
		Status:         string(b.Status),
		PreviousStatus: string(previous),
	}
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
