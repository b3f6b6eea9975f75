// Package handlers provides HTTP handlers and middleware for the Parley API.
package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/parleyhq/parley/internal/config"
)

// RequireAuth enforces bearer token authentication when the server runs in
// production mode. Development mode passes every request through.
func RequireAuth(next http.Handler, cfg *config.Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.Security.SecurityMode == "development" {
			next.ServeHTTP(w, r)
			return
		}
		if !tokenMatches(r, cfg.Security.APIToken) {
			respondError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// tokenMatches compares the request's bearer token against the configured one
// in constant time. A server without a configured token rejects everything.
func tokenMatches(r *http.Request, expected string) bool {
	if expected == "" {
		return false
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}

// RateLimiter throttles requests across the whole API surface.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a limiter sustaining reqPerSec with the given burst.
func NewRateLimiter(reqPerSec float64, burst int) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(reqPerSec), burst)}
}

// RateLimitMiddleware rejects requests over the limit with 429.
func RateLimitMiddleware(next http.Handler, rl *RateLimiter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter.Allow() {
			respondError(w, http.StatusTooManyRequests, "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
