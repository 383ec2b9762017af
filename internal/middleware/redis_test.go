package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seminar-hall-booking/internal/config"
)

func newMiniRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func TestTokenBucketBlocksWhenEmpty(t *testing.T) {
	rdb, _ := newMiniRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            2 * time.Minute,
		KeyStrategy:    "ip",
		Prefix:         "seminar",
	}
	e := echo.New()
	e.GET("/api/halls", func(c echo.Context) error { return c.String(http.StatusOK, "ok") }, NewTokenBucket(cfg, rdb))

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/halls", nil)
		req.RemoteAddr = ip + ":4000"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	for i, want := range []string{"1", "0"} {
		rec := do("10.0.0.1")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != want {
			t.Fatalf("request %d: remaining=%q want %q", i+1, got, want)
		}
	}

	rec := do("10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status %d", rec.Code)
	}
	secs, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil || secs < 1 || secs > 60 {
		t.Fatalf("Retry-After=%q", rec.Header().Get("Retry-After"))
	}
	var body struct {
		Error      string `json:"error"`
		RetryAfter int    `json:"retry_after"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error != "rate limit exceeded" || body.RetryAfter != secs {
		t.Fatalf("body=%+v", body)
	}

	if rec := do("10.0.0.2"); rec.Code != http.StatusOK {
		t.Fatalf("other client blocked: %d", rec.Code)
	}
}

func TestRedisCacheMissThenHit(t *testing.T) {
	rdb, mr := newMiniRedis(t)
	cfg := config.CacheConfig{
		Enabled:     true,
		Methods:     map[string]bool{http.MethodGet: true},
		TTL:         30 * time.Second,
		KeyStrategy: "route_query",
		Prefix:      "seminar",
	}
	calls := 0
	e := echo.New()
	e.GET("/api/halls", func(c echo.Context) error {
		calls++
		c.Response().Header().Set("X-Hall-Count", "3")
		return c.JSON(http.StatusOK, map[string]int{"count": 3})
	}, NewRedisCache(cfg, rdb))
	e.GET("/api/missing", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
	}, NewRedisCache(cfg, rdb))

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	first := get("/api/halls")
	if first.Code != http.StatusOK || first.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("first: %d X-Cache=%q", first.Code, first.Header().Get("X-Cache"))
	}
	if keys := mr.Keys(); len(keys) != 1 || mr.TTL(keys[0]) != 30*time.Second {
		t.Fatalf("stored keys=%v", keys)
	}

	second := get("/api/halls")
	if second.Code != http.StatusOK || second.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("second: %d X-Cache=%q", second.Code, second.Header().Get("X-Cache"))
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times", calls)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("body %q, want %q", second.Body.String(), first.Body.String())
	}
	if ct := second.Header().Get(echo.HeaderContentType); ct != first.Header().Get(echo.HeaderContentType) {
		t.Fatalf("content type %q", ct)
	}
	if second.Header().Get("X-Hall-Count") != "3" {
		t.Fatal("handler header not replayed")
	}

	calls = 0
	get("/api/missing")
	if rec := get("/api/missing"); rec.Code != http.StatusNotFound || rec.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("error response replayed: %d %q", rec.Code, rec.Header().Get("X-Cache"))
	}
	if calls != 2 {
		t.Fatalf("404 handler ran %d times, want 2", calls)
	}
}
