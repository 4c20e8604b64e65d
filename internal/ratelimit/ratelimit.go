// File: internal/ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Config holds rate limiting configuration
type Config struct {
	WindowSize    time.Duration // Time window for rate limiting
	MaxAttempts   int           // Maximum attempts per window
	CleanupPeriod time.Duration // How often to clean up old entries
	BanDuration   time.Duration // How long to ban after exceeding limit
}

// DefaultAuthConfig returns sensible defaults for auth endpoints
func DefaultAuthConfig() *Config {
	return &Config{
		WindowSize:    15 * time.Minute,
		MaxAttempts:   5,
		CleanupPeriod: 30 * time.Minute,
		BanDuration:   30 * time.Minute,
	}
}

// ChatConfig returns limits for the send/action endpoints. Streaming turns
// are long-lived, so the window is short and generous rather than punitive.
func ChatConfig() *Config {
	return &Config{
		WindowSize:    time.Minute,
		MaxAttempts:   30,
		CleanupPeriod: 10 * time.Minute,
		BanDuration:   5 * time.Minute,
	}
}

// attemptRecord tracks attempts for an IP/identifier
type attemptRecord struct {
	Count     int
	FirstSeen time.Time
	BannedAt  *time.Time
}

// RateLimitInfo contains information about rate limit status
type RateLimitInfo struct {
	Allowed    bool
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
	Banned     bool
}

// MemoryRateLimiter implements in-memory rate limiting
type MemoryRateLimiter struct {
	config   *Config
	attempts map[string]*attemptRecord
	mu       sync.Mutex
	stopCh   chan struct{}
}

// NewMemoryRateLimiter creates a new in-memory rate limiter
func NewMemoryRateLimiter(config *Config) *MemoryRateLimiter {
	limiter := &MemoryRateLimiter{
		config:   config,
		attempts: make(map[string]*attemptRecord),
		stopCh:   make(chan struct{}),
	}
	go limiter.cleanupLoop()
	return limiter
}

// Allow checks if a request should be allowed
func (rl *MemoryRateLimiter) Allow(identifier string) (bool, *RateLimitInfo) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	record, exists := rl.attempts[identifier]

	if !exists {
		rl.attempts[identifier] = &attemptRecord{Count: 1, FirstSeen: now}
		return true, &RateLimitInfo{
			Allowed:   true,
			Remaining: rl.config.MaxAttempts - 1,
			ResetTime: now.Add(rl.config.WindowSize),
		}
	}

	if record.BannedAt != nil && now.Sub(*record.BannedAt) < rl.config.BanDuration {
		remainingBan := rl.config.BanDuration - now.Sub(*record.BannedAt)
		return false, &RateLimitInfo{
			Allowed:    false,
			ResetTime:  record.BannedAt.Add(rl.config.BanDuration),
			RetryAfter: remainingBan,
			Banned:     true,
		}
	}

	if now.Sub(record.FirstSeen) > rl.config.WindowSize {
		record.Count = 1
		record.FirstSeen = now
		record.BannedAt = nil
		return true, &RateLimitInfo{
			Allowed:   true,
			Remaining: rl.config.MaxAttempts - 1,
			ResetTime: now.Add(rl.config.WindowSize),
		}
	}

	record.Count++

	if record.Count > rl.config.MaxAttempts {
		banTime := now
		record.BannedAt = &banTime
		return false, &RateLimitInfo{
			Allowed:    false,
			ResetTime:  now.Add(rl.config.BanDuration),
			RetryAfter: rl.config.BanDuration,
			Banned:     true,
		}
	}

	return true, &RateLimitInfo{
		Allowed:   true,
		Remaining: rl.config.MaxAttempts - record.Count,
		ResetTime: record.FirstSeen.Add(rl.config.WindowSize),
	}
}

// RecordSuccess records a successful authentication (resets attempts)
func (rl *MemoryRateLimiter) RecordSuccess(identifier string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, identifier)
}

// cleanupLoop periodically removes old records
func (rl *MemoryRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *MemoryRateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for identifier, record := range rl.attempts {
		windowExpired := now.Sub(record.FirstSeen) > rl.config.WindowSize
		banExpired := record.BannedAt != nil && now.Sub(*record.BannedAt) > rl.config.BanDuration
		if (windowExpired && record.BannedAt == nil) || banExpired {
			delete(rl.attempts, identifier)
		}
	}
}

// Close stops the cleanup goroutine
func (rl *MemoryRateLimiter) Close() {
	close(rl.stopCh)
}

// GetClientIP extracts the real client IP from request
func GetClientIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if ip := strings.TrimSpace(ips[0]); ip != "" {
			return ip
		}
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
