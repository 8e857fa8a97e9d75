package config

import (
    "os"
    "strconv"
    "time"
)

// RateLimitConfig drives one Redis token bucket.  Capacity is the burst
// size; RefillTokens are added every RefillInterval.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string
    Prefix         string
    Debug          bool
}

// LoadRateLimitConfig returns the limit applied to public read endpoints
// (RATE_LIMIT_* variables).
func LoadRateLimitConfig() RateLimitConfig {
    return loadRateLimit("RATE_LIMIT", RateLimitConfig{
        Enabled:        true,
        Capacity:       60,
        RefillTokens:   1,
        RefillInterval: time.Second,
        TTL:            10 * time.Minute,
        KeyStrategy:    "ip_user_route",
        Prefix:         "rl",
    })
}

// LoadAuthRateLimitConfig returns the stricter limit for credential
// endpoints (AUTH_RATE_LIMIT_* variables), keyed by client IP.
func LoadAuthRateLimitConfig() RateLimitConfig {
    return loadRateLimit("AUTH_RATE_LIMIT", RateLimitConfig{
        Enabled:        true,
        Capacity:       10,
        RefillTokens:   1,
        RefillInterval: 6 * time.Second,
        TTL:            10 * time.Minute,
        KeyStrategy:    "ip_route",
        Prefix:         "rl:auth",
    })
}

func loadRateLimit(env string, def RateLimitConfig) RateLimitConfig {
    c := RateLimitConfig{
        Enabled:        envBool(env+"_ENABLED", def.Enabled),
        Capacity:       envInt(env+"_CAPACITY", def.Capacity),
        RefillTokens:   envInt(env+"_REFILL_TOKENS", def.RefillTokens),
        RefillInterval: envDur(env+"_REFILL_INTERVAL", def.RefillInterval),
        TTL:            envDur(env+"_TTL", def.TTL),
        KeyStrategy:    envStr(env+"_KEY_STRATEGY", def.KeyStrategy),
        Prefix:         envStr(env+"_PREFIX", def.Prefix),
        Debug:          envBool(env+"_DEBUG", false),
    }
    if b := envInt(env+"_BURST", -1); b > 0 {
        c.Capacity = b
    }
    if every := envDur(env+"_REFILL_EVERY", 0); every > 0 {
        c.RefillTokens = 1
        c.RefillInterval = every
    }
    if c.Capacity < 1 {
        c.Capacity = 1
    }
    if c.RefillTokens < 1 {
        c.RefillTokens = 1
    }
    if c.RefillInterval <= 0 {
        c.RefillInterval = time.Second
    }
    if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
        c.TTL = minTTL
    }
    return c
}

func envStr(k, d string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    switch os.Getenv(k) {
    case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
        return true
    case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
        return n
    }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
        return dur
    }
    return d
}
