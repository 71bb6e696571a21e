// Package ratelimit throttles reservation writes per client address and per
// customer phone number.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config holds rate limit configuration.
type Config struct {
	// MaxPerIP is the number of reservation attempts one address may make per Window.
	MaxPerIP int
	// MaxPerCustomer is the number of attempts one customer phone may make per Window.
	MaxPerCustomer int
	Window         time.Duration

	// Clock for testing (nil uses real time)
	Clock Clock
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxPerIP:       10,
		MaxPerCustomer: 5,
		Window:         time.Minute,
	}
}

// LimitResult contains the result of a rate limit check.
type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     string // For logging
}

type entry struct {
	count   int
	firstAt time.Time
	lastAt  time.Time
}

// Limiter is a fixed-window counter keyed by hashed client address and
// hashed customer identifier.
type Limiter struct {
	config *Config
	clock  Clock
	mu     sync.RWMutex
	byIP   map[string]*entry
	byID   map[string]*entry

	cleanupCtx    context.Context
	cleanupCancel context.CancelFunc
	cleanupOnce   sync.Once
	cleanupWg     sync.WaitGroup
}

// New creates a new rate limiter with the given config.
func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Limiter{
		config:        cfg,
		clock:         clock,
		byIP:          make(map[string]*entry),
		byID:          make(map[string]*entry),
		cleanupCtx:    ctx,
		cleanupCancel: cancel,
	}
}

// Close stops the cleanup goroutine and releases resources.
func (l *Limiter) Close() {
	l.cleanupCancel()
	l.cleanupWg.Wait()
}

// CheckReservation reports whether another reservation attempt is allowed.
// It does not count the attempt; call RecordReservation once the request has
// passed input validation.
func (l *Limiter) CheckReservation(identifier, ip string) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	ipKey := l.hashKey("ip:", ip)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if result := l.check(l.byIP[ipKey], l.config.MaxPerIP, now, "ip_limit"); !result.Allowed {
		return result
	}
	if identifier = normalizeIdentifier(identifier); identifier != "" {
		idKey := l.hashKey("id:", identifier)
		if result := l.check(l.byID[idKey], l.config.MaxPerCustomer, now, "customer_limit"); !result.Allowed {
			return result
		}
	}
	return LimitResult{Allowed: true}
}

// RecordReservation counts one attempt against the address and identifier.
func (l *Limiter) RecordReservation(identifier, ip string) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.record(l.byIP, l.hashKey("ip:", ip), now)
	if identifier = normalizeIdentifier(identifier); identifier != "" {
		l.record(l.byID, l.hashKey("id:", identifier), now)
	}
}

func (l *Limiter) check(e *entry, max int, now time.Time, reason string) LimitResult {
	if e == nil || max <= 0 {
		return LimitResult{Allowed: true}
	}
	elapsed := now.Sub(e.firstAt)
	if elapsed < l.config.Window && e.count >= max {
		return LimitResult{
			Allowed:    false,
			RetryAfter: l.config.Window - elapsed,
			Reason:     reason,
		}
	}
	return LimitResult{Allowed: true}
}

func (l *Limiter) record(entries map[string]*entry, key string, now time.Time) {
	e := entries[key]
	if e == nil || now.Sub(e.firstAt) >= l.config.Window {
		entries[key] = &entry{count: 1, firstAt: now, lastAt: now}
		return
	}
	e.count++
	e.lastAt = now
}

func (l *Limiter) hashKey(prefix, value string) string {
	hash := sha256.Sum256([]byte(value))
	return prefix + hex.EncodeToString(hash[:8])
}

// normalizeIdentifier lowercases the identifier to prevent case-based bypass.
func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func (l *Limiter) startCleanup() {
	l.cleanupOnce.Do(func() {
		l.cleanupWg.Add(1)
		go func() {
			defer l.cleanupWg.Done()
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-l.cleanupCtx.Done():
					return
				case <-ticker.C:
					l.cleanup()
				}
			}
		}()
	})
}

func (l *Limiter) cleanup() {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, entries := range []map[string]*entry{l.byIP, l.byID} {
		for k, e := range entries {
			if now.Sub(e.lastAt) > l.config.Window {
				delete(entries, k)
			}
		}
	}
}

// Middleware rejects requests over the per-address limit with 429 before
// they reach next, and counts the ones it lets through.
func (l *Limiter) Middleware(trustProxy bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := GetClientIP(r, trustProxy)
		result := l.CheckReservation("", ip)
		if !result.Allowed {
			LogRateLimitExceeded(r.Context(), "", ip, result.Reason)
			w.Header().Set("Retry-After", RetryAfterSeconds(result.RetryAfter))
			http.Error(w, "Too many reservation attempts. Please wait and try again.", http.StatusTooManyRequests)
			return
		}
		l.RecordReservation("", ip)
		next.ServeHTTP(w, r)
	})
}

// RetryAfterSeconds formats d for a Retry-After header, rounding up to at
// least one second.
func RetryAfterSeconds(d time.Duration) string {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

// GetClientIP extracts the client IP from a request. With trustProxy, the
// rightmost public address in X-Forwarded-For (the one the proxy appended)
// wins, then X-Real-IP; otherwise only RemoteAddr is used.
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			for i := len(parts) - 1; i >= 0; i-- {
				ip := strings.TrimSpace(parts[i])
				if ip != "" && !isPrivateIP(ip) {
					return ip
				}
			}
			return strings.TrimSpace(parts[len(parts)-1])
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

var privateNetworks []*net.IPNet

func init() {
	for _, cidr := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
	} {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid private CIDR: " + cidr)
		}
		privateNetworks = append(privateNetworks, network)
	}
}

func isPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	if ipv4 := ip.To4(); ipv4 != nil {
		ip = ipv4
	}
	for _, network := range privateNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// SanitizeIdentifier masks a phone number or email for logging.
func SanitizeIdentifier(identifier string) string {
	identifier = normalizeIdentifier(identifier)
	if at := strings.Index(identifier, "@"); at >= 0 {
		if at > 2 {
			return identifier[:2] + "***" + identifier[at:]
		}
		return "***" + identifier[at:]
	}
	if len(identifier) >= 4 {
		return "***" + identifier[len(identifier)-4:]
	}
	return "***"
}

// LogRateLimitExceeded logs a rejected attempt with a masked identifier.
func LogRateLimitExceeded(ctx context.Context, identifier, ip, reason string) {
	log.Ctx(ctx).Warn().
		Str("event", "rate_limit_exceeded").
		Str("identifier", SanitizeIdentifier(identifier)).
		Str("ip", ip).
		Str("reason", reason).
		Msg("Reservation rate limit exceeded")
}
