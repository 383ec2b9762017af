package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/seminar-hall-booking/internal/model"
)

// ProfileRepo persists identities in the 'profiles' table.
type ProfileRepo struct{ DB *sql.DB }

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{DB: db} }

const profileColumns = "id,email,name,role,department,password_hash,created_at"

// Create inserts a profile.  Email uniqueness is enforced by the database;
// a violation is reported as ErrEmailExists.
func (r *ProfileRepo) Create(ctx context.Context, p *model.Profile) error {
	p.Email = normalizeEmail(p.Email)
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO profiles ("+profileColumns+") VALUES (?,?,?,?,?,?,?)",
		p.ID, p.Email, p.Name, string(p.Role), p.Department, p.PasswordHash, p.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

// GetByEmail fetches a profile by normalized email.
func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (*model.Profile, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE email=? LIMIT 1", normalizeEmail(email))
	return scanProfile(row)
}

// GetByID fetches a profile by id.
func (r *ProfileRepo) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE id=? LIMIT 1", id)
	return scanProfile(row)
}

// ListByRole returns every profile with the given role ordered by name.
func (r *ProfileRepo) ListByRole(ctx context.Context, role model.Role) ([]model.Profile, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE role=? ORDER BY name, id", string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(s rowScanner) (*model.Profile, error) {
	var (
		p    model.Profile
		role string
	)
	err := s.Scan(&p.ID, &p.Email, &p.Name, &role, &p.Department, &p.PasswordHash, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	p.Role = model.Role(role)
	return &p, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
