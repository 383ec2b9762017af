// Package session authenticates profiles and issues, rotates and revokes
// their tokens.  The resolved Identity is passed explicitly to callers; there
// is no process-wide session state.
package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/seminar-hall-booking/internal/apperr"
	"github.com/iliyamo/seminar-hall-booking/internal/model"
	"github.com/iliyamo/seminar-hall-booking/internal/queue"
	"github.com/iliyamo/seminar-hall-booking/internal/repository"
	"github.com/iliyamo/seminar-hall-booking/internal/telemetry"
	"github.com/iliyamo/seminar-hall-booking/internal/utils"
)

// ErrInvalidCredentials is returned by Login for an unknown email or a wrong
// password.  Both cases return this same value.
var ErrInvalidCredentials = apperr.New(apperr.Unauthenticated, "invalid email or password")

// ErrInvalidSession is returned for access or refresh tokens that do not
// verify or have been revoked.
var ErrInvalidSession = apperr.New(apperr.Unauthenticated, "invalid or expired session")

// Profiles is the row store contract for profiles.
type Profiles interface {
	Create(ctx context.Context, p *model.Profile) error
	GetByEmail(ctx context.Context, email string) (*model.Profile, error)
	GetByID(ctx context.Context, id string) (*model.Profile, error)
	ListByRole(ctx context.Context, role model.Role) ([]model.Profile, error)
}

// Tokens is the row store contract for refresh tokens.
type Tokens interface {
	StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// Options tunes token lifetimes and hashing cost.
type Options struct {
	Secret         string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

// Session is an established session: the identity and its token pair.
type Session struct {
	Identity     model.Identity `json:"user"`
	AccessToken  string         `json:"access_token"`
	AccessExp    time.Time      `json:"access_expires_at"`
	RefreshToken string         `json:"refresh_token"`
	RefreshExp   time.Time      `json:"refresh_expires_at"`
}

// RegisterInput carries the fields of a new profile.
type RegisterInput struct {
	Email      string
	Password   string
	Name       string
	Department string
	Role       model.Role
}

// Provider implements login, registration, logout, refresh and token
// resolution.
type Provider struct {
	profiles Profiles
	tokens   Tokens
	events   queue.Publisher
	opts     Options

	Metrics *telemetry.Metrics
	NewID   func() string
}

// NewProvider returns a Provider.  A nil publisher disables session events.
func NewProvider(profiles Profiles, tokens Tokens, events queue.Publisher, opts Options) *Provider {
	if opts.AccessTTLMin <= 0 {
		opts.AccessTTLMin = 15
	}
	if opts.RefreshTTLDays <= 0 {
		opts.RefreshTTLDays = 7
	}
	return &Provider{profiles: profiles, tokens: tokens, events: events, opts: opts}
}

// Login verifies the credentials and opens a session.
func (p *Provider) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.New(apperr.Validation, "email and password are required")
	}
	prof, err := p.profiles.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, apperr.Wrap(apperr.Internal, "could not load profile", err)
	}
	if !utils.VerifyPassword(prof.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	s, err := p.issue(ctx, prof.Identity())
	if err != nil {
		return nil, err
	}
	p.publish(ctx, queue.SessionEstablished, s.Identity)
	if p.Metrics != nil {
		p.Metrics.SessionsOpened.Inc()
	}
	return s, nil
}

// Register creates a profile.  All validation happens before any store
// call.  Registration does not open a session.
func (p *Provider) Register(ctx context.Context, in RegisterInput) (model.Identity, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.Name)
	dept := strings.TrimSpace(in.Department)
	role := in.Role
	if role == "" {
		role = model.RoleDepartment
	}

	if email == "" || name == "" {
		return model.Identity{}, apperr.New(apperr.Validation, "email and name are required")
	}
	if !strings.Contains(email, "@") {
		return model.Identity{}, apperr.New(apperr.Validation, "email is not valid")
	}
	if err := utils.CheckPassword(in.Password); err != nil {
		return model.Identity{}, apperr.Wrap(apperr.Validation, err.Error(), err)
	}
	if !role.Valid() {
		return model.Identity{}, apperr.New(apperr.Validation, "role must be admin or department")
	}
	switch role {
	case model.RoleDepartment:
		if dept == "" {
			return model.Identity{}, apperr.New(apperr.Validation, "department is required")
		}
	case model.RoleAdmin:
		dept = ""
	}

	hash, err := utils.HashPassword(in.Password, p.opts.BcryptCost)
	if err != nil {
		return model.Identity{}, apperr.Wrap(apperr.Internal, "could not hash password", err)
	}
	prof := &model.Profile{
		ID:           p.newID(),
		Email:        email,
		Name:         name,
		Role:         role,
		Department:   dept,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.profiles.Create(ctx, prof); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.Identity{}, apperr.Wrap(apperr.Conflict, "email already registered", err)
		}
		return model.Identity{}, apperr.Wrap(apperr.Internal, "could not create profile", err)
	}
	if p.Metrics != nil {
		p.Metrics.RegistrationsDone.WithLabelValues(string(role)).Inc()
	}
	return prof.Identity(), nil
}

// Refresh rotates a refresh token.  The presented token is revoked before a
// new pair is issued; a token that another refresh already consumed yields
// ErrInvalidSession.  The identity is re-read from the profile so role or
// department changes take effect.
func (p *Provider) Refresh(ctx context.Context, refreshRaw string) (*Session, error) {
	if strings.TrimSpace(refreshRaw) == "" {
		return nil, apperr.New(apperr.Validation, "refresh_token is required")
	}
	hash := utils.HashRefreshRaw(refreshRaw)
	userID, err := p.tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrTokenInvalid) {
			return nil, ErrInvalidSession
		}
		return nil, apperr.Wrap(apperr.Internal, "could not validate refresh token", err)
	}
	if err := p.tokens.RevokeByHash(ctx, hash); err != nil {
		if errors.Is(err, repository.ErrTokenInvalid) {
			return nil, ErrInvalidSession
		}
		return nil, apperr.Wrap(apperr.Internal, "could not revoke refresh token", err)
	}
	prof, err := p.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, apperr.Wrap(apperr.Internal, "could not load profile", err)
	}
	return p.issue(ctx, prof.Identity())
}

// Logout ends a session.  With a non-empty identity every refresh token of
// that profile is revoked; otherwise only refreshRaw is.
func (p *Provider) Logout(ctx context.Context, id *model.Identity, refreshRaw string) error {
	switch {
	case id != nil && id.ID != "":
		if err := p.tokens.RevokeAllForUser(ctx, id.ID); err != nil {
			return apperr.Wrap(apperr.Internal, "could not revoke tokens", err)
		}
		p.publish(ctx, queue.SessionEnded, *id)
		return nil
	case strings.TrimSpace(refreshRaw) != "":
		hash := utils.HashRefreshRaw(refreshRaw)
		userID, err := p.tokens.ValidateRefresh(ctx, hash)
		if err != nil {
			if errors.Is(err, repository.ErrTokenInvalid) {
				// Already unusable; nothing left to end.
				return nil
			}
			return apperr.Wrap(apperr.Internal, "could not validate refresh token", err)
		}
		if err := p.tokens.RevokeByHash(ctx, hash); err != nil {
			if errors.Is(err, repository.ErrTokenInvalid) {
				return nil
			}
			return apperr.Wrap(apperr.Internal, "could not revoke refresh token", err)
		}
		ident := model.Identity{ID: userID}
		if prof, err := p.profiles.GetByID(ctx, userID); err == nil {
			ident = prof.Identity()
		}
		p.publish(ctx, queue.SessionEnded, ident)
		return nil
	default:
		return apperr.New(apperr.Validation, "refresh_token is required")
	}
}

// Resolve verifies an access token and returns the identity it carries.
func (p *Provider) Resolve(_ context.Context, accessRaw string) (model.Identity, error) {
	claims, err := utils.ParseAccessToken(p.opts.Secret, accessRaw)
	if err != nil {
		return model.Identity{}, ErrInvalidSession
	}
	role := model.Role(claims.Role)
	if !role.Valid() {
		return model.Identity{}, ErrInvalidSession
	}
	id := model.Identity{ID: claims.Subject, Name: claims.Name, Role: role}
	if role == model.RoleDepartment {
		id.Department = claims.Department
	}
	return id, nil
}

// ListDepartments returns the department profiles.  Admin only.
func (p *Provider) ListDepartments(ctx context.Context, caller model.Identity) ([]model.Identity, error) {
	if !caller.IsAdmin() {
		return nil, apperr.New(apperr.Forbidden, "only administrators can list departments")
	}
	profs, err := p.profiles.ListByRole(ctx, model.RoleDepartment)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not load departments", err)
	}
	out := make([]model.Identity, 0, len(profs))
	for _, pr := range profs {
		out = append(out, pr.Identity())
	}
	return out, nil
}

func (p *Provider) issue(ctx context.Context, id model.Identity) (*Session, error) {
	claims := utils.AccessClaims{Role: string(id.Role), Department: id.Department, Name: id.Name}
	claims.Subject = id.ID
	at, err := utils.NewAccessToken(p.opts.Secret, claims, p.opts.AccessTTLMin)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not sign access token", err)
	}
	rt, err := utils.NewRefreshToken(p.opts.RefreshTTLDays)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not create refresh token", err)
	}
	if err := p.tokens.StoreRefresh(ctx, id.ID, utils.HashRefreshRaw(rt.Raw), rt.Exp); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not store refresh token", err)
	}
	return &Session{
		Identity:     id,
		AccessToken:  at.Token,
		AccessExp:    at.Exp,
		RefreshToken: rt.Raw,
		RefreshExp:   rt.Exp,
	}, nil
}

func (p *Provider) publish(ctx context.Context, typ string, id model.Identity) {
	if p.events == nil {
		return
	}
	ev := queue.Event{
		Type:       typ,
		OccurredAt: time.Now().UTC(),
		ActorID:    id.ID,
		Session:    &queue.SessionPayload{UserID: id.ID, Role: string(id.Role)},
	}
	if err := p.events.Publish(ctx, ev); err != nil {
		log.Printf("session: publish %s: %v", typ, err)
	}
}

func (p *Provider) newID() string {
	if p.NewID != nil {
		return p.NewID()
	}
	return uuid.NewString()
}
