// Package handlers contains HTTP handler interfaces, implementations, and middleware.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// Principal is an authenticated API client.
type Principal struct {
	// Name is the key name the credential was issued under.
	Name string

	// Admin grants access to administrative endpoints.
	Admin bool
}

// KeyVerifier checks a presented credential against stored keys.
// Implementations must not reveal whether the name or the secret was wrong.
type KeyVerifier interface {
	// VerifyKey returns the principal for a valid name/secret pair.
	VerifyKey(ctx context.Context, name, secret string) (Principal, error)
}

// APIKeyAuth provides API key authentication backed by a KeyVerifier.
type APIKeyAuth struct {
	headerName string
	verifier   KeyVerifier
}

// NewAPIKeyAuth creates a new API key authenticator.
func NewAPIKeyAuth(headerName string, verifier KeyVerifier) *APIKeyAuth {
	if headerName == "" {
		headerName = "X-API-Key"
	}
	return &APIKeyAuth{
		headerName: headerName,
		verifier:   verifier,
	}
}

// Middleware returns an HTTP middleware that authenticates the request.
// Credentials are presented as "name:secret" in the configured header or as
// a Bearer token. When requireAdmin is set, non-admin keys get 403.
func (a *APIKeyAuth) Middleware(requireAdmin bool) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := r.Header.Get(a.headerName)

			// Also accept Authorization header with Bearer scheme.
			if credential == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					credential = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if credential == "" {
				writeAuthError(w, http.StatusUnauthorized, "missing_api_key", "API key is required")
				return
			}

			name, secret, ok := strings.Cut(credential, ":")
			if !ok || name == "" || secret == "" {
				writeAuthError(w, http.StatusUnauthorized, "invalid_api_key", "Invalid API key")
				return
			}

			principal, err := a.verifier.VerifyKey(r.Context(), name, secret)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid_api_key", "Invalid API key")
				return
			}

			if requireAdmin && !principal.Admin {
				writeAuthError(w, http.StatusForbidden, "forbidden", "Admin key required")
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyPrincipal, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKeyPrincipal).(Principal)
	return p, ok
}

type contextKey string

const contextKeyPrincipal contextKey = "principal"

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"success":false,"error":{"code":"` + code + `","message":"` + message + `"}}`))
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITING
// ══════════════════════════════════════════════════════════════════════════════

// RateLimiter decides whether a request identified by key may proceed.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

// MemoryRateLimiter is a sliding-window limiter for single-instance
// deployments. State is per process; replicas each get the full budget.
type MemoryRateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

// NewMemoryRateLimiter creates a limiter allowing limit requests per window.
func NewMemoryRateLimiter(limit int, window time.Duration) *MemoryRateLimiter {
	rl := &MemoryRateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}

	go rl.cleanupLoop()

	return rl
}

// Allow reports whether the request may proceed and records it if so.
func (rl *MemoryRateLimiter) Allow(_ context.Context, key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.window)

	var valid []time.Time
	for _, t := range rl.requests[key] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

func (rl *MemoryRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		windowStart := time.Now().Add(-rl.window)
		for key, requests := range rl.requests {
			var valid []time.Time
			for _, t := range requests {
				if t.After(windowStart) {
					valid = append(valid, t)
				}
			}
			if len(valid) == 0 {
				delete(rl.requests, key)
			} else {
				rl.requests[key] = valid
			}
		}
		rl.mu.Unlock()
	}
}

// Counter is the slice of a cache needed for distributed rate limiting.
type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// RedisRateLimiter shares one request budget across replicas using a counter
// with a TTL window. Fails open: a broken cache must not take reads down
// with it.
type RedisRateLimiter struct {
	counter Counter
	keyFunc func(identifier string) string
	limit   int
	window  time.Duration
}

// NewRedisRateLimiter creates a distributed limiter. keyFunc maps a client
// identifier to a cache key.
func NewRedisRateLimiter(counter Counter, keyFunc func(string) string, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		counter: counter,
		keyFunc: keyFunc,
		limit:   limit,
		window:  window,
	}
}

// Allow reports whether the request may proceed and records it if so.
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	cacheKey := rl.keyFunc(key)

	count, err := rl.counter.Incr(ctx, cacheKey)
	if err != nil {
		return true
	}

	// First hit in the window sets the expiry.
	if count == 1 {
		_ = rl.counter.Expire(ctx, cacheKey, rl.window)
	}

	return count <= int64(rl.limit)
}

// RateLimitMiddleware rejects requests over the limiter's budget with 429.
// Requests are keyed by authenticated key name when present, client IP
// otherwise.
func RateLimitMiddleware(limiter RateLimiter) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)

			if !limiter.Allow(r.Context(), key) {
				w.Header().Set("Retry-After", "60")
				writeAuthError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests, please try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey identifies the caller for rate limiting purposes.
func clientKey(r *http.Request) string {
	if p, ok := PrincipalFromContext(r.Context()); ok {
		return "key:" + p.Name
	}
	return "ip:" + ClientIP(r)
}

// ClientIP extracts the client IP from the request, honoring proxy headers.
func ClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// ══════════════════════════════════════════════════════════════════════════════
// SECURITY HEADERS MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// SecurityHeadersMiddleware adds security-related headers.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// Referrer policy
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// Content security policy for API
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST SIZE LIMIT MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// RequestSizeLimitMiddleware limits the size of request bodies.
func RequestSizeLimitMiddleware(maxBytes int64) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeAuthError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN BUILDER
// ══════════════════════════════════════════════════════════════════════════════

// MiddlewareFunc is a function that wraps an http.Handler.
type MiddlewareFunc func(http.Handler) http.Handler

// Chain chains multiple middleware functions.
func Chain(middlewares ...MiddlewareFunc) MiddlewareFunc {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// ChainHandler chains middleware and wraps a final handler.
func ChainHandler(handler http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	return Chain(middlewares...)(handler)
}
