package httpx

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sundayezeilo/shortlink/internal/ratelimit"
)

// ClientIP returns the caller address: the first X-Forwarded-For hop, then
// X-Real-IP, then the host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit rejects requests over the client's budget with 429. Limiter
// errors let the request through.
func RateLimit(limiter ratelimit.Limiter, logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := ClientIP(r)

			res, err := limiter.Allow(ctx, ip)
			if err != nil {
				logger.WarnContext(ctx, "rate limiter unavailable, allowing request",
					"request_id", GetRequestID(ctx),
					"client_ip", ip,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

			if !res.Allowed {
				retry := res.RetryAfter(time.Now())
				w.Header().Set("Retry-After", strconv.Itoa(int(retry/time.Second)))

				logger.WarnContext(ctx, "rate limit exceeded",
					"request_id", GetRequestID(ctx),
					"client_ip", ip,
					"path", r.URL.Path,
				)
				WriteError(w, http.StatusTooManyRequests, "rate_limited",
					"too many requests, please slow down",
					map[string]int{"retry_after_seconds": int(retry / time.Second)})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
