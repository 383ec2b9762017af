package repository // repository holds data access logic for domain entities

import (
	"context"      // context is used to manage deadlines and cancellation
	"database/sql" // sql provides DB primitives
	"errors"       // errors is used to match sql.ErrNoRows

	"github.com/iliyamo/seminar-hall-booking/internal/model"
)

// HallRepo reads halls.  Halls are seeded by migrations and never written
// through the API, so the repository exposes lookups only.
type HallRepo struct {
	db *sql.DB // db is the underlying database connection
}

// NewHallRepo constructs a HallRepo with the given DB handle.
func NewHallRepo(db *sql.DB) *HallRepo {
	return &HallRepo{db: db}
}

const hallColumns = `id, name, capacity, available, image`

// ListAll returns every hall.  Availability is not filtered; clients decide
// how to present unavailable halls.  Rows are ordered by name for stable
// output.
func (r *HallRepo) ListAll(ctx context.Context) ([]model.Hall, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+hallColumns+` FROM halls ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Hall, 0)
	for rows.Next() {
		var h model.Hall
		if err := rows.Scan(&h.ID, &h.Name, &h.Capacity, &h.Available, &h.Image); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByName retrieves a hall by its unique name.  Bookings reference halls
// by name, so this is the lookup used when validating a new request.
func (r *HallRepo) GetByName(ctx context.Context, name string) (*model.Hall, error) {
	var h model.Hall
	err := r.db.QueryRowContext(ctx, `SELECT `+hallColumns+` FROM halls WHERE name = ?`, name).
		Scan(&h.ID, &h.Name, &h.Capacity, &h.Available, &h.Image)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHallNotFound
		}
		return nil, err
	}
	return &h, nil
}
