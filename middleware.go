package main

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/pressbridge/internal/logging"
	"github.com/example/pressbridge/internal/wpcompat"
)

const headerRequestID = "X-Request-Id"

// CORS echoes the caller's origin. Publishing clients run from arbitrary
// hosts, so there is no allow-list.
func (a *App) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+wpcompat.HeaderToken)
		w.Header().Set("Access-Control-Expose-Headers", "X-WP-Total, X-WP-TotalPages, Location, "+headerRequestID)
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RateLimiter hands out one token bucket per client IP.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	perMin   int
	mu       sync.RWMutex
}

func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		perMin:   perMinute,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		limiter, exists = rl.limiters[key]
		if !exists {
			limiter = rate.NewLimiter(rate.Limit(rl.perMin)/60, rl.perMin)
			rl.limiters[key] = limiter
		}
		rl.mu.Unlock()
	}

	return limiter
}

// Allow reports whether key may make another request now.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// RateLimit throttles next per client IP. It guards the credential exchange
// against password guessing.
func (a *App) RateLimit(next http.Handler) http.Handler {
	if a.rateLimiter == nil {
		a.rateLimiter = NewRateLimiter(0)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if !a.rateLimiter.Allow(a.clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			wpcompat.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
				"code":    "rate_limit_exceeded",
				"message": "Too many token requests. Try again later.",
				"data":    map[string]int{"status": http.StatusTooManyRequests},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP is the peer address, or the left-most X-Forwarded-For entry when
// the proxy in front is trusted.
func (a *App) clientIP(r *http.Request) string {
	if a.trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			if i := strings.IndexByte(fwd, ','); i >= 0 {
				fwd = fwd[:i]
			}
			if fwd = strings.TrimSpace(fwd); fwd != "" {
				return fwd
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Logging writes one structured line per request. Credential headers are
// redacted before they reach the log.
func (a *App) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		a.Log.Info("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", a.clientIP(r)),
			zap.String("user_agent", r.UserAgent()),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", time.Since(start)),
			logging.Headers("headers", r.Header),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Recover turns a handler panic into a JSON 500.
func (a *App) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				a.Log.Error("panic serving request", zap.Any("panic", p), zap.String("path", r.URL.Path), zap.Stack("stack"))
				wpcompat.WriteJSON(w, http.StatusInternalServerError, map[string]any{
					"code":    "internal_server_error",
					"message": "The server encountered an unexpected error.",
					"data":    map[string]int{"status": http.StatusInternalServerError},
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// SecurityHeaders middleware adds security headers
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}
