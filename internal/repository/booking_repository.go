package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/seminar-hall-booking/internal/model"
)

// BookingRepo provides the query and mutation contract for bookings:
// select-all, select-by-department, select-by-id, insert-one and
// update-status-by-id.  Every mutation touches exactly one row.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, hall_name, department, date, status, purpose, attendees, created_at`

// Create inserts a booking exactly as given.  The caller supplies the id,
// the initial status and the creation time.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (` + bookingColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	var (
		purpose   sql.NullString
		attendees sql.NullInt64
	)
	if b.Purpose != nil {
		purpose = sql.NullString{String: *b.Purpose, Valid: true}
	}
	if b.Attendees != nil {
		attendees = sql.NullInt64{Int64: int64(*b.Attendees), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q,
		b.ID, b.HallName, b.Department, b.Date, string(b.Status), purpose, attendees, b.CreatedAt.UTC())
	return err
}

// GetByID returns the booking with the given id or ErrBookingNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

// ListAll returns every booking, newest first.
func (r *BookingRepo) ListAll(ctx context.Context) ([]model.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY created_at DESC, id DESC`)
}

// ListByDepartment returns the bookings of one department, newest first.
func (r *BookingRepo) ListByDepartment(ctx context.Context, department string) ([]model.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE department = ? ORDER BY created_at DESC, id DESC`, department)
}

func (r *BookingRepo) list(ctx context.Context, q string, args ...any) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatus unconditionally writes the status of one booking.
func (r *BookingRepo) UpdateStatus(ctx context.Context, id string, status model.BookingStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	return r.checkUpdated(ctx, res, id, nil)
}

// UpdateStatusIfPending writes the status only while the booking is still
// pending.  The condition is evaluated by the database, so of two racing
// decisions exactly one succeeds; the other gets ErrStaleStatus.
func (r *BookingRepo) UpdateStatusIfPending(ctx context.Context, id string, status model.BookingStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = ? WHERE id = ? AND status = ?`,
		string(status), id, string(model.StatusPending))
	if err != nil {
		return err
	}
	return r.checkUpdated(ctx, res, id, ErrStaleStatus)
}

// checkUpdated tells apart "no such row" from "row left unchanged".  MySQL
// reports zero affected rows when the new value equals the old one, so a
// zero count alone is not proof of absence.
func (r *BookingRepo) checkUpdated(ctx context.Context, res sql.Result, id string, unchanged error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var one int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBookingNotFound
	}
	if err != nil {
		return err
	}
	return unchanged
}

func scanBooking(s rowScanner) (*model.Booking, error) {
	var (
		b         model.Booking
		status    string
		purpose   sql.NullString
		attendees sql.NullInt64
	)
	err := s.Scan(&b.ID, &b.HallName, &b.Department, calendarDate{&b.Date}, &status, &purpose, &attendees, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	if purpose.Valid {
		p := purpose.String
		b.Purpose = &p
	}
	if attendees.Valid {
		a := int(attendees.Int64)
		b.Attendees = &a
	}
	return &b, nil
}

// calendarDate scans a DATE column into a YYYY-MM-DD string.  MySQL with
// parseTime=true yields time.Time while SQLite stores the text as written.
type calendarDate struct{ dst *string }

func (d calendarDate) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d.dst = v.Format(model.DateLayout)
	case []byte:
		*d.dst = trimDate(string(v))
	case string:
		*d.dst = trimDate(v)
	case nil:
		*d.dst = ""
	default:
		return fmt.Errorf("booking date: unsupported type %T", src)
	}
	return nil
}

func trimDate(s string) string {
	if len(s) > len(model.DateLayout) {
		return s[:len(model.DateLayout)]
	}
	return s
}

var _ sql.Scanner = calendarDate{}
