package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/blog-platform/internal/model"
	"github.com/iliyamo/blog-platform/internal/service"
)

// RequireRole admits a request only when its bearer token verifies, the
// account is not blocked and its role is at least minRole.  The verified
// principal is stored on the context for the handler.
func RequireRole(guard *service.Guard, minRole model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, err := guard.Authorize(c.Request().Context(), c.Request().Header.Get(echo.HeaderAuthorization), minRole)
			if err != nil {
				return err
			}
			c.Set(PrincipalKey, p)
			return next(c)
		}
	}
}
