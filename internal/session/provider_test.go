package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/seminar-hall-booking/internal/apperr"
	"github.com/iliyamo/seminar-hall-booking/internal/model"
	"github.com/iliyamo/seminar-hall-booking/internal/queue"
	"github.com/iliyamo/seminar-hall-booking/internal/repository"
	"github.com/iliyamo/seminar-hall-booking/internal/utils"
)

// fakeProfiles keeps profiles by email and counts every call.
type fakeProfiles struct {
	byEmail map[string]model.Profile
	calls   int
	create  func(p *model.Profile) error
}

func newFakeProfiles() *fakeProfiles { return &fakeProfiles{byEmail: map[string]model.Profile{}} }

func (f *fakeProfiles) Create(_ context.Context, p *model.Profile) error {
	f.calls++
	if f.create != nil {
		if err := f.create(p); err != nil {
			return err
		}
	}
	if _, ok := f.byEmail[p.Email]; ok {
		return repository.ErrEmailExists
	}
	f.byEmail[p.Email] = *p
	return nil
}

func (f *fakeProfiles) GetByEmail(_ context.Context, email string) (*model.Profile, error) {
	f.calls++
	p, ok := f.byEmail[email]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return &p, nil
}

func (f *fakeProfiles) GetByID(_ context.Context, id string) (*model.Profile, error) {
	f.calls++
	for _, p := range f.byEmail {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, repository.ErrProfileNotFound
}

func (f *fakeProfiles) ListByRole(_ context.Context, role model.Role) ([]model.Profile, error) {
	f.calls++
	var out []model.Profile
	for _, p := range f.byEmail {
		if p.Role == role {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeTokens struct {
	owner   map[string]string
	revoked map[string]bool
	// beforeRevoke runs once at the start of the next RevokeByHash.
	beforeRevoke func(hash string)
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{owner: map[string]string{}, revoked: map[string]bool{}}
}

func (f *fakeTokens) StoreRefresh(_ context.Context, userID, hash string, _ time.Time) error {
	f.owner[hash] = userID
	return nil
}

func (f *fakeTokens) ValidateRefresh(_ context.Context, hash string) (string, error) {
	u, ok := f.owner[hash]
	if !ok || f.revoked[hash] {
		return "", repository.ErrTokenInvalid
	}
	return u, nil
}

func (f *fakeTokens) RevokeByHash(_ context.Context, hash string) error {
	if hook := f.beforeRevoke; hook != nil {
		f.beforeRevoke = nil
		hook(hash)
	}
	if _, ok := f.owner[hash]; !ok || f.revoked[hash] {
		return repository.ErrTokenInvalid
	}
	f.revoked[hash] = true
	return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID string) error {
	for h, u := range f.owner {
		if u == userID {
			f.revoked[h] = true
		}
	}
	return nil
}

type recordingPublisher struct{ events []queue.Event }

func (p *recordingPublisher) Publish(_ context.Context, ev queue.Event) error {
	p.events = append(p.events, ev)
	return nil
}

func newTestProvider() (*Provider, *fakeProfiles, *fakeTokens, *recordingPublisher) {
	profiles := newFakeProfiles()
	tokens := newFakeTokens()
	pub := &recordingPublisher{}
	p := NewProvider(profiles, tokens, pub, Options{Secret: "test-secret", BcryptCost: 4})
	n := 0
	p.NewID = func() string { n++; return "user-" + string(rune('0'+n)) }
	return p, profiles, tokens, pub
}

func TestRegisterShortPasswordFailsBeforeIO(t *testing.T) {
	p, profiles, _, _ := newTestProvider()
	_, err := p.Register(context.Background(), RegisterInput{
		Email: "a@x.com", Password: "short", Name: "Jane", Department: "CS",
	})
	if apperr.KindOf(err) != apperr.Validation {
		t.Fatalf("err=%v, want validation", err)
	}
	if !errors.Is(err, utils.ErrPasswordTooShort) {
		t.Fatalf("err=%v, want ErrPasswordTooShort in chain", err)
	}
	if profiles.calls != 0 || len(profiles.byEmail) != 0 {
		t.Fatalf("store touched: calls=%d profiles=%d", profiles.calls, len(profiles.byEmail))
	}
}

func TestRegisterValidation(t *testing.T) {
	cases := []struct {
		name string
		in   RegisterInput
	}{
		{"no email", RegisterInput{Password: "secret1", Name: "Jane", Department: "CS"}},
		{"bad email", RegisterInput{Email: "jane", Password: "secret1", Name: "Jane", Department: "CS"}},
		{"no name", RegisterInput{Email: "a@x.com", Password: "secret1", Department: "CS"}},
		{"no department", RegisterInput{Email: "a@x.com", Password: "secret1", Name: "Jane"}},
		{"unknown role", RegisterInput{Email: "a@x.com", Password: "secret1", Name: "Jane", Role: "owner"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, profiles, _, _ := newTestProvider()
			_, err := p.Register(context.Background(), tc.in)
			if apperr.KindOf(err) != apperr.Validation {
				t.Fatalf("err=%v, want validation", err)
			}
			if profiles.calls != 0 {
				t.Fatalf("store called %d times", profiles.calls)
			}
		})
	}
}

func TestRegisterAdminDropsDepartment(t *testing.T) {
	p, profiles, _, _ := newTestProvider()
	id, err := p.Register(context.Background(), RegisterInput{
		Email: " Boss@X.com ", Password: "secret1", Name: "Boss", Department: "CS", Role: model.RoleAdmin,
	})
	if err != nil {
		t.Fatal(err)
	}
	if id.Role != model.RoleAdmin || id.Department != "" {
		t.Fatalf("identity=%+v", id)
	}
	stored, ok := profiles.byEmail["boss@x.com"]
	if !ok || stored.Department != "" {
		t.Fatalf("stored=%+v ok=%v", stored, ok)
	}
	if stored.PasswordHash == "secret1" || !utils.VerifyPassword(stored.PasswordHash, "secret1") {
		t.Fatal("password not hashed")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	p, _, _, _ := newTestProvider()
	ctx := context.Background()
	in := RegisterInput{Email: "a@x.com", Password: "secret1", Name: "Jane", Department: "CS"}
	if _, err := p.Register(ctx, in); err != nil {
		t.Fatal(err)
	}
	_, err := p.Register(ctx, in)
	if apperr.KindOf(err) != apperr.Conflict || !errors.Is(err, repository.ErrEmailExists) {
		t.Fatalf("err=%v, want conflict wrapping ErrEmailExists", err)
	}
}

func TestLoginResolveRefreshLogout(t *testing.T) {
	p, _, tokens, pub := newTestProvider()
	ctx := context.Background()
	if _, err := p.Register(ctx, RegisterInput{Email: "phy@x.com", Password: "secret1", Name: "Physics Office", Department: "Physics"}); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Login(ctx, "phy@x.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("bad password: %v", err)
	}
	if _, err := p.Login(ctx, "nobody@x.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: %v", err)
	}

	s, err := p.Login(ctx, "PHY@x.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if len(pub.events) != 1 || pub.events[0].Type != queue.SessionEstablished {
		t.Fatalf("events=%+v", pub.events)
	}

	id, err := p.Resolve(ctx, s.AccessToken)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.Role != model.RoleDepartment || id.Department != "Physics" || id.ID != s.Identity.ID {
		t.Fatalf("identity=%+v", id)
	}
	if _, err := p.Resolve(ctx, s.AccessToken+"x"); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("tampered token: %v", err)
	}

	s2, err := p.Refresh(ctx, s.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if s2.RefreshToken == s.RefreshToken {
		t.Fatal("refresh token not rotated")
	}
	if _, err := p.Refresh(ctx, s.RefreshToken); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("reused refresh token: %v", err)
	}

	if err := p.Logout(ctx, &id, ""); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if !tokens.revoked[utils.HashRefreshRaw(s2.RefreshToken)] {
		t.Fatal("rotated token still active after logout")
	}
	last := pub.events[len(pub.events)-1]
	if last.Type != queue.SessionEnded || last.Session.UserID != id.ID {
		t.Fatalf("last event=%+v", last)
	}
}

func TestLogoutByRefreshToken(t *testing.T) {
	p, _, tokens, _ := newTestProvider()
	ctx := context.Background()
	if _, err := p.Register(ctx, RegisterInput{Email: "cs@x.com", Password: "secret1", Name: "CS", Department: "Computer Science"}); err != nil {
		t.Fatal(err)
	}
	s, err := p.Login(ctx, "cs@x.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Logout(ctx, nil, s.RefreshToken); err != nil {
		t.Fatal(err)
	}
	if !tokens.revoked[utils.HashRefreshRaw(s.RefreshToken)] {
		t.Fatal("token not revoked")
	}
	// A second logout with the same token is a no-op.
	if err := p.Logout(ctx, nil, s.RefreshToken); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if err := p.Logout(ctx, nil, ""); apperr.KindOf(err) != apperr.Validation {
		t.Fatalf("empty logout: %v", err)
	}
}

func TestRefreshTokenIsSingleUse(t *testing.T) {
	p, _, tokens, _ := newTestProvider()
	ctx := context.Background()
	if _, err := p.Register(ctx, RegisterInput{Email: "phy@x.com", Password: "secret1", Name: "Physics Office", Department: "Physics"}); err != nil {
		t.Fatal(err)
	}
	s, err := p.Login(ctx, "phy@x.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}

	// Another refresh consumes the token between validation and revocation.
	tokens.beforeRevoke = func(hash string) { tokens.revoked[hash] = true }
	before := len(tokens.owner)
	if _, err := p.Refresh(ctx, s.RefreshToken); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("refresh of consumed token: %v", err)
	}
	if len(tokens.owner) != before {
		t.Fatalf("new refresh token stored for a consumed token: %d -> %d", before, len(tokens.owner))
	}

	// Logout racing a refresh on the same token is still a success.
	s2, err := p.Login(ctx, "phy@x.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	tokens.beforeRevoke = func(hash string) { tokens.revoked[hash] = true }
	if err := p.Logout(ctx, nil, s2.RefreshToken); err != nil {
		t.Fatalf("logout of consumed token: %v", err)
	}
}

func TestListDepartmentsAdminOnly(t *testing.T) {
	p, _, _, _ := newTestProvider()
	ctx := context.Background()
	for _, in := range []RegisterInput{
		{Email: "phy@x.com", Password: "secret1", Name: "Physics Office", Department: "Physics"},
		{Email: "boss@x.com", Password: "secret1", Name: "Boss", Role: model.RoleAdmin},
	} {
		if _, err := p.Register(ctx, in); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := p.ListDepartments(ctx, model.Identity{ID: "d", Role: model.RoleDepartment, Department: "Physics"}); apperr.KindOf(err) != apperr.Forbidden {
		t.Fatalf("department caller: %v", err)
	}
	deps, err := p.ListDepartments(ctx, model.Identity{ID: "a", Role: model.RoleAdmin})
	if err != nil {
		t.Fatal(err)
	}
	if len(deps) != 1 || deps[0].Department != "Physics" {
		t.Fatalf("departments=%+v", deps)
	}
}
