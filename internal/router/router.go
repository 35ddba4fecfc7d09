// Package router wires handlers, rate limits and role guards onto echo.
package router

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/blog-platform/internal/config"
	"github.com/iliyamo/blog-platform/internal/handler"
	"github.com/iliyamo/blog-platform/internal/middleware"
	"github.com/iliyamo/blog-platform/internal/model"
	"github.com/iliyamo/blog-platform/internal/ratelimit"
	"github.com/iliyamo/blog-platform/internal/service"
)

// RegisterRoutes registers routes that need neither a session nor a rate
// limit.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterAuth registers the session endpoints under /auth, each behind its
// own rate-limit rule, plus GET /me for any signed-in account.  A nil
// limiter disables rate limiting.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, guard *service.Guard, lim *ratelimit.Limiter, log *zap.Logger) {
	rl := func(route string) echo.MiddlewareFunc { return middleware.RateLimit(lim, route, log) }

	g := e.Group("/auth")
	g.POST("/register", a.Register, rl(config.RouteRegister))
	g.POST("/login", a.Login, rl(config.RouteLogin))
	g.POST("/refresh", a.Refresh, rl(config.RouteRefresh))
	g.POST("/forgot-password", a.ForgotPassword, rl(config.RouteForgotPassword))
	g.POST("/reset-password", a.ResetPassword, rl(config.RouteResetPassword))
	g.POST("/verify-email", a.VerifyEmail, rl(config.RouteVerifyEmail))
	g.POST("/resend-verification", a.ResendVerification, rl(config.RouteResendVerification))
	g.POST("/logout", a.Logout)

	e.GET("/me", a.Me, middleware.RequireRole(guard, model.RoleUser))
}

// RegisterAdmin registers account moderation.  Reading and status changes
// need admin; role changes need super_admin.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, guard *service.Guard) {
	g := e.Group("/admin/accounts", middleware.RequireRole(guard, model.RoleAdmin))
	g.GET("/:id", h.GetAccount)
	g.PATCH("/:id/status", h.UpdateStatus)
	e.PATCH("/admin/accounts/:id/role", h.UpdateRole, middleware.RequireRole(guard, model.RoleSuperAdmin))
}
