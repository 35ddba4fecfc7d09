package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/blog-platform/internal/middleware"
	"github.com/iliyamo/blog-platform/internal/model"
	"github.com/iliyamo/blog-platform/internal/service"
)

// AdminHandler serves account moderation endpoints.  Routes are guarded by
// RequireRole; the finer rules live in the status machine.
type AdminHandler struct {
	Accounts *service.AccountService
	Status   *service.StatusMachine
	Timeout  time.Duration
}

type statusReq struct {
	Status string `json:"status" validate:"required"`
}

type roleReq struct {
	Role string `json:"role" validate:"required"`
}

func (h *AdminHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.Timeout)
}

// GetAccount returns any account by id.
func (h *AdminHandler) GetAccount(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	acc, err := h.Accounts.Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, viewOf(acc))
}

// UpdateStatus moves an account through the status machine.
func (h *AdminHandler) UpdateStatus(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return service.Authentication("missing bearer token")
	}
	var req statusReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	acc, err := h.Status.ChangeStatus(ctx, p.Account, c.Param("id"), model.Status(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, viewOf(acc))
}

// UpdateRole changes the role of an account.
func (h *AdminHandler) UpdateRole(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return service.Authentication("missing bearer token")
	}
	var req roleReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	acc, err := h.Status.ChangeRole(ctx, p.Account, c.Param("id"), model.Role(req.Role))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, viewOf(acc))
}
