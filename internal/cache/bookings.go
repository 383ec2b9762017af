// Package cache keeps booking list results in Redis, one entry per scope,
// and drops them when a write makes them stale.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seminar-hall-booking/internal/model"
)

// ScopeAll is the scope of the administrator's list of every booking.
const ScopeAll = "all"

// setIfCurrent stores ARGV[2] under KEYS[2] only while the generation in
// KEYS[1] still equals ARGV[1].  A missing generation counts as 0.
var setIfCurrent = redis.NewScript(`
local gen = redis.call('GET', KEYS[1])
if gen == false then gen = '0' end
if gen ~= ARGV[1] then
    return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// BookingLists caches booking lists per scope.  A nil client disables it:
// every Get misses and Set/Invalidate are no-ops.
//
// Each scope has a generation counter that Invalidate bumps.  A reader takes
// the generation before querying the store and passes it to Set, so a list
// read before a concurrent write is never stored after that write's
// invalidation.
type BookingLists struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewBookingLists returns a cache using rdb.  Keys are namespaced by prefix.
func NewBookingLists(rdb *redis.Client, prefix string, ttl time.Duration) *BookingLists {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &BookingLists{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Key returns the Redis key for scope.
func (c *BookingLists) Key(scope string) string {
	if scope == ScopeAll {
		return c.prefix + ":bookings:all"
	}
	return c.prefix + ":bookings:dept:" + scope
}

// GenKey returns the Redis key of scope's generation counter.
func (c *BookingLists) GenKey(scope string) string {
	return c.prefix + ":bookings:gen:" + scope
}

// Get returns the cached list for scope.  ok is false on a miss; err is only
// set for Redis or decoding failures, which callers treat as a miss.
func (c *BookingLists) Get(ctx context.Context, scope string) (list []model.Booking, ok bool, err error) {
	if c == nil || c.rdb == nil {
		return nil, false, nil
	}
	bs, err := c.rdb.Get(ctx, c.Key(scope)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(bs, &list); err != nil {
		return nil, false, err
	}
	return list, true, nil
}

// Generation returns scope's current generation, 0 when never invalidated.
func (c *BookingLists) Generation(ctx context.Context, scope string) (int64, error) {
	if c == nil || c.rdb == nil {
		return 0, nil
	}
	n, err := c.rdb.Get(ctx, c.GenKey(scope)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Set stores list under scope if scope is still at generation gen.  stored
// is false when an invalidation happened in between.
func (c *BookingLists) Set(ctx context.Context, scope string, gen int64, list []model.Booking) (stored bool, err error) {
	if c == nil || c.rdb == nil {
		return false, nil
	}
	bs, err := json.Marshal(list)
	if err != nil {
		return false, err
	}
	n, err := setIfCurrent.Run(ctx, c.rdb,
		[]string{c.GenKey(scope), c.Key(scope)},
		strconv.FormatInt(gen, 10), bs, c.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Invalidate bumps the generation of the given scopes and removes their
// cached lists.
func (c *BookingLists) Invalidate(ctx context.Context, scopes ...string) error {
	if c == nil || c.rdb == nil || len(scopes) == 0 {
		return nil
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, s := range scopes {
			pipe.Incr(ctx, c.GenKey(s))
			pipe.Del(ctx, c.Key(s))
		}
		return nil
	})
	return err
}
