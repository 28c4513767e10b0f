// Package middleware provides the HTTP middleware chain: logging, panic
// recovery, CORS, authentication and per-surface rate limiting.
package middleware

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/shiva/swiftparcel/internal/auth"
)

// ─── Request logging ────────────────────────────────────────

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs method, path, status and latency for every request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("[http] %s %s → %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// ─── Panic recovery ─────────────────────────────────────────

// Recoverer converts handler panics into 500s instead of dropped
// connections.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[http] PANIC %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				http.Error(w, `{"code":"INTERNAL_ERROR","message":"internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ─── CORS ───────────────────────────────────────────────────

// CORS allows cross-origin requests from the mobile webview and dashboard.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ─── Authentication ─────────────────────────────────────────

type contextKey string

const identityKey contextKey = "identity"

// IdentityFrom extracts the authenticated identity from a request context.
func IdentityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(auth.Identity)
	return id, ok
}

// Auth verifies the bearer token and injects the Identity into the
// request context.
func Auth(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := verifier.Verify(r.Header.Get("Authorization"))
			if err != nil {
				msg := `{"code":"INVALID_TOKEN","message":"invalid token"}`
				switch {
				case errors.Is(err, auth.ErrMissingToken):
					msg = `{"code":"MISSING_TOKEN","message":"missing token"}`
				case errors.Is(err, auth.ErrTokenExpired):
					msg = `{"code":"TOKEN_EXPIRED","message":"token expired"}`
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(msg))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
		})
	}
}

// RequireAdmin gates a subtree to admin identities. Must sit after Auth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFrom(r.Context())
		if !ok || !identity.IsAdmin() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"code":"INSUFFICIENT_PERMISSIONS","message":"admin access required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ─── Rate limiting ──────────────────────────────────────────

// limiterSet keeps one token bucket per caller key with idle eviction.
type limiterSet struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newLimiterSet(requests int, window time.Duration) *limiterSet {
	s := &limiterSet{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    requests,
	}
	go s.evictLoop(window)
	return s
}

func (s *limiterSet) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.limiters[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[key] = e
	}
	e.lastSeen = time.Now()
	return e.lim
}

func (s *limiterSet) evictLoop(window time.Duration) {
	ticker := time.NewTicker(window)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		for key, e := range s.limiters {
			if time.Since(e.lastSeen) > 2*window {
				delete(s.limiters, key)
			}
		}
		s.mu.Unlock()
	}
}

// callerKey picks the limiter key: authenticated user id when present,
// remote IP otherwise.
func callerKey(r *http.Request) string {
	if identity, ok := IdentityFrom(r.Context()); ok {
		return identity.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit allows `requests` per `window` per caller on the wrapped
// subtree. The budgets are advisory ops knobs, not API contracts.
func RateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	set := newLimiterSet(requests, window)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !set.get(callerKey(r)).Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"code":"RATE_LIMIT_EXCEEDED","message":"too many requests"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
