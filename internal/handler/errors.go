package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/blog-platform/internal/middleware"
	"github.com/iliyamo/blog-platform/internal/service"
)

func statusOf(k service.Kind) int {
	switch k {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindAuthentication:
		return http.StatusUnauthorized
	case service.KindAuthorization, service.KindAccountState:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindRateLimited:
		return http.StatusTooManyRequests
	case service.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders every error as {"error": "..."}.  Expected failures
// keep their message; anything unexpected is logged and reported as a
// generic internal error.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := echo.Map{"error": "internal server error"}

		var se *service.Error
		var he *echo.HTTPError
		switch {
		case errors.As(err, &se):
			status = statusOf(se.Kind)
			switch se.Kind {
			case service.KindInternal:
				log.Error("internal error",
					zap.String("route", c.Path()),
					zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
					zap.Error(err))
			case service.KindUnavailable:
				log.Warn("dependency unavailable", zap.String("route", c.Path()), zap.Error(err))
				body["error"] = se.Message
			case service.KindRateLimited:
				secs := middleware.RetryAfterSeconds(se.RetryAfter)
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				body["error"] = se.Message
				body["retry_after"] = secs
			default:
				body["error"] = se.Message
			}
		case errors.As(err, &he):
			status = he.Code
			if status >= 500 {
				log.Error("http error", zap.String("route", c.Path()), zap.Error(err))
				break
			}
			if m, ok := he.Message.(string); ok {
				body["error"] = m
			} else {
				body["error"] = http.StatusText(status)
			}
		default:
			log.Error("unhandled error",
				zap.String("route", c.Path()),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Error("write error response", zap.Error(err))
		}
	}
}
