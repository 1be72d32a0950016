package server

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

const (
	rateLimitExceededJSON = `{"error":"Rate limit exceeded","message":"Too many requests. Please try again later.","retry_after":%d}`
)

// RateLimitMiddleware creates an IP-keyed rate limiting middleware with an
// in-memory store, used on the login endpoint.
func RateLimitMiddleware(limit int, window time.Duration) func(http.Handler) http.Handler {
	store := memory.NewStore()
	rate := limiter.Rate{
		Period: window,
		Limit:  int64(limit),
	}

	instance := limiter.New(store, rate)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := getClientIP(r)

			context, err := instance.Get(r.Context(), key)
			if err != nil {
				// If the limiter fails, allow the request rather than
				// breaking login entirely.
				log.Printf("[Server] Rate limiter error: %v", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(context.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(context.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(context.Reset, 10))

			if context.Reached {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				retryAfter := int(time.Until(time.Unix(context.Reset, 0)).Seconds())
				if retryAfter < 0 {
					retryAfter = 0
				}

				if _, err := fmt.Fprintf(w, rateLimitExceededJSON, retryAfter); err != nil {
					return
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP resolves the client address for rate limit keying
func getClientIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		return forwarded
	}

	realIP := r.Header.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	ip := r.RemoteAddr
	for i := len(ip) - 1; i >= 0; i-- {
		if ip[i] == ':' {
			return ip[:i]
		}
	}

	return ip
}
