package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/crowdlend/crowdlend-api/internal/pkg/logger"
	"github.com/crowdlend/crowdlend-api/internal/pkg/metrics"
	"github.com/crowdlend/crowdlend-api/internal/pkg/ratelimit"
	"github.com/crowdlend/crowdlend-api/internal/pkg/response"
)

// RateLimit throttles a route per client IP. A limiter backend error lets
// the request through, the route stays available when Redis is down.
func RateLimit(limiter ratelimit.Limiter, route string, retryAfter time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := limiter.Allow(r.Context(), ClientIP(r))
			if err != nil {
				logger.LogWarn(r.Context(), "Rate limiter unavailable", "route", route, "error", err.Error())
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				metrics.RecordRateLimited(route)
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
				response.TooManyRequests(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
