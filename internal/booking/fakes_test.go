package booking

import (
	"context"
	"sort"
	"sync"

	"github.com/iliyamo/seminar-hall-booking/internal/model"
	"github.com/iliyamo/seminar-hall-booking/internal/queue"
	"github.com/iliyamo/seminar-hall-booking/internal/repository"
)

// memStore is an in-memory Store with the same ordering and conditional
// update rules as the SQL repository.
type memStore struct {
	mu     sync.Mutex
	rows   map[string]model.Booking
	writes int
	// beforeUpdate runs inside UpdateStatusIfPending before the status check.
	beforeUpdate func(rows map[string]model.Booking)
	// afterList runs once a list query has read its rows, outside the lock.
	afterList func()
}

func newMemStore(seed ...model.Booking) *memStore {
	s := &memStore{rows: map[string]model.Booking{}}
	for _, b := range seed {
		s.rows[b.ID] = b
	}
	return s
}

func (s *memStore) Create(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[b.ID] = *b
	s.writes++
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return &b, nil
}

func (s *memStore) ListAll(context.Context) ([]model.Booking, error) {
	return s.listed(s.filter(func(model.Booking) bool { return true })), nil
}

func (s *memStore) ListByDepartment(_ context.Context, dept string) ([]model.Booking, error) {
	return s.listed(s.filter(func(b model.Booking) bool { return b.Department == dept })), nil
}

func (s *memStore) listed(out []model.Booking) []model.Booking {
	if hook := s.afterList; hook != nil {
		s.afterList = nil
		hook()
	}
	return out
}

func (s *memStore) filter(keep func(model.Booking) bool) []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Booking{}
	for _, b := range s.rows {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *memStore) UpdateStatus(_ context.Context, id string, status model.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.rows[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	b.Status = status
	s.rows[id] = b
	s.writes++
	return nil
}

func (s *memStore) UpdateStatusIfPending(_ context.Context, id string, status model.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.beforeUpdate != nil {
		s.beforeUpdate(s.rows)
	}
	b, ok := s.rows[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	if b.Status != model.StatusPending {
		return repository.ErrStaleStatus
	}
	b.Status = status
	s.rows[id] = b
	s.writes++
	return nil
}

type fakeHalls struct {
	halls []model.Hall
}

func (f fakeHalls) ListAll(context.Context) ([]model.Hall, error) {
	return append([]model.Hall(nil), f.halls...), nil
}

func (f fakeHalls) GetByName(_ context.Context, name string) (*model.Hall, error) {
	for _, h := range f.halls {
		if h.Name == name {
			h := h
			return &h, nil
		}
	}
	return nil, repository.ErrHallNotFound
}

// mapCache is a ListCache with per-scope generations that records
// invalidations.
type mapCache struct {
	entries     map[string][]model.Booking
	gens        map[string]int64
	invalidated []string
	refused     int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]model.Booking{}, gens: map[string]int64{}}
}

func (c *mapCache) Get(_ context.Context, scope string) ([]model.Booking, bool, error) {
	l, ok := c.entries[scope]
	return l, ok, nil
}

func (c *mapCache) Generation(_ context.Context, scope string) (int64, error) {
	return c.gens[scope], nil
}

func (c *mapCache) Set(_ context.Context, scope string, gen int64, list []model.Booking) (bool, error) {
	if c.gens[scope] != gen {
		c.refused++
		return false, nil
	}
	c.entries[scope] = list
	return true, nil
}

func (c *mapCache) Invalidate(_ context.Context, scopes ...string) error {
	for _, s := range scopes {
		c.gens[s]++
		delete(c.entries, s)
		c.invalidated = append(c.invalidated, s)
	}
	return nil
}

type recordingPublisher struct {
	events []queue.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.Event) error {
	p.events = append(p.events, ev)
	return nil
}

type prefixResolver struct{ prefix string }

func (r prefixResolver) ResolveImage(_ context.Context, ref string) (string, error) {
	return r.prefix + ref, nil
}
