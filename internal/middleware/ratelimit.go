package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/blog-platform/internal/ratelimit"
	"github.com/iliyamo/blog-platform/internal/service"
)

// RateLimit counts each request against the rule of route, keyed by the
// client IP from the echo IPExtractor (see ClientIP).  A nil limiter
// disables limiting.  Rejections are returned as
// service errors and rendered by the error handler.
func RateLimit(lim *ratelimit.Limiter, route string, log *zap.Logger) echo.MiddlewareFunc {
	if lim == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			d, err := lim.Allow(c.Request().Context(), ip, route)
			if err != nil {
				log.Warn("rate limit backend error",
					zap.String("route", route),
					zap.Bool("permitted", d.Permitted),
					zap.Error(err))
				if !d.Permitted {
					return service.Unavailable("rate limiter unavailable", err)
				}
				return next(c)
			}

			if lim.Debug() {
				log.Debug("rate limit decision",
					zap.String("route", route),
					zap.String("ip", ip),
					zap.Bool("permitted", d.Permitted),
					zap.Int("remaining", d.Remaining))
			}
			if d.Limit > 0 {
				c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
				c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			}
			if !d.Permitted {
				log.Info("rate limited", zap.String("route", route), zap.String("ip", ip), zap.Duration("retry_after", d.RetryAfter))
				return service.RateLimited(d.RetryAfter)
			}
			return next(c)
		}
	}
}

// RetryAfterSeconds rounds d up to whole seconds, never below one.
func RetryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
