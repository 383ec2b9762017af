package config

import (
    "strings"
    "time"
)

// CacheConfig defines settings for the hall listing response cache and the
// booking list cache.  When Enabled is false or no Redis client is
// configured, both caches are bypassed.  Methods lists the HTTP methods the
// response cache stores (e.g. GET, HEAD).  TTL bounds the lifetime of hall
// responses; ListTTL bounds cached booking lists, which are also
// invalidated explicitly on every booking write.
type CacheConfig struct {
    Enabled      bool
    Methods      map[string]bool
    TTL          time.Duration
    ListTTL      time.Duration
    KeyStrategy  string
    Prefix       string
    MaxBodyBytes int
}

// LoadCacheConfig reads environment variables to build a CacheConfig.  Defaults
// are used when variables are not set.  All methods are upper-cased.
func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        Methods:      parseMethods(envStr("CACHE_METHODS", "GET")),
        TTL:          envDur("CACHE_TTL", 5*time.Minute),
        ListTTL:      envDur("CACHE_LIST_TTL", time.Minute),
        KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
        Prefix:       envStr("CACHE_PREFIX", "seminar"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1048576),
    }
}

// ClampToImageExpiry returns c with TTL capped at half the presigned image
// URL lifetime when hall images are presigned, so a replayed hall listing
// never hands out an expired URL.  Without a bucket c is returned as is.
func (c CacheConfig) ClampToImageExpiry(img ImageConfig) CacheConfig {
    if img.Bucket == "" {
        return c
    }
    expiry := img.Expiry
    if expiry <= 0 {
        expiry = 15 * time.Minute
    }
    limit := expiry / 2
    if c.TTL <= 0 || c.TTL > limit {
        c.TTL = limit
    }
    return c
}

func parseMethods(s string) map[string]bool {
    m := map[string]bool{}
    for _, p := range strings.Split(s, ",") {
        p = strings.TrimSpace(strings.ToUpper(p))
        if p != "" {
            m[p] = true
        }
    }
    return m
}
