package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/openhis/slotkit/internal/web/ratelimit"
	"github.com/openhis/slotkit/internal/web/response"
)

// KeyFunc picks the rate limit key of a request.
type KeyFunc func(r *http.Request) string

// ClientIP keys requests by the remote host.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit rejects requests over the limit with 429. Requests are let
// through when the limiter itself fails.
func RateLimit(limiter ratelimit.Limiter, key KeyFunc, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	if key == nil {
		key = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := limiter.Allow(r.Context(), key(r))
			if err != nil {
				logger.Warn("rate limiter unavailable", zap.String("path", r.URL.Path), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))
			if !info.Allowed {
				retry := max(int(math.Ceil(time.Until(info.ResetAt).Seconds())), 1)
				h.Set("Retry-After", strconv.Itoa(retry))
				response.RenderError(w, response.NewError(http.StatusTooManyRequests, "rate_limited", "Too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
