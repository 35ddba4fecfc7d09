package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/blog-platform/internal/service"
)

// PrincipalKey is the context key under which RequireRole stores the
// verified caller.
const PrincipalKey = "principal"

// PrincipalFrom returns the caller stored by RequireRole.  The boolean is
// false on routes that are not guarded.
func PrincipalFrom(c echo.Context) (service.Principal, bool) {
	p, ok := c.Get(PrincipalKey).(service.Principal)
	return p, ok
}
