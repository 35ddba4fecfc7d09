package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/blog-platform/internal/middleware"
	"github.com/iliyamo/blog-platform/internal/model"
	"github.com/iliyamo/blog-platform/internal/service"
	"github.com/iliyamo/blog-platform/internal/utils"
)

// RefreshCookieName is the cookie carrying the refresh token.  The token
// never appears in a response body.
const RefreshCookieName = "refreshToken"

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Accounts     *service.AccountService
	Credentials  *service.CredentialVerifier
	Tokens       *service.TokenService
	CookieSecure bool
	RefreshTTL   time.Duration // Max-Age of the refresh cookie
	Timeout      time.Duration // deadline for the store and mail calls of one request
}

// ----- DTOs -----

type registerReq struct {
	Name        string `json:"name" validate:"required,max=100"`
	Username    string `json:"username" validate:"required,min=3,max=32"`
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,max=72"`
	PhoneNumber string `json:"phoneNumber" validate:"omitempty,max=20"`
}
type loginReq struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Password   string `json:"password" validate:"required,max=72"`
}
type emailReq struct {
	Email string `json:"email" validate:"required,email,max=254"`
}
type verifyEmailReq struct {
	Email string `json:"email" validate:"required,email,max=254"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}
type resetPasswordReq struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,max=72"`
}

type accountView struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Username      string       `json:"username"`
	Email         string       `json:"email"`
	PhoneNumber   string       `json:"phoneNumber,omitempty"`
	Role          model.Role   `json:"role"`
	Status        model.Status `json:"status"`
	EmailVerified bool         `json:"emailVerified"`
	LastLogin     *time.Time   `json:"lastLogin,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
}

func viewOf(a model.Account) accountView {
	return accountView{
		ID:            a.ID,
		Name:          a.Name,
		Username:      a.Username,
		Email:         a.Email,
		PhoneNumber:   a.PhoneNumber,
		Role:          a.Role,
		Status:        a.Status,
		EmailVerified: a.EmailVerified,
		LastLogin:     a.LastLogin,
		CreatedAt:     a.CreatedAt,
	}
}

type tokenResp struct {
	AccessToken string       `json:"accessToken"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	Account     *accountView `json:"account,omitempty"`
}

func (h *AuthHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.Timeout)
}

func (h *AuthHandler) setRefreshCookie(c echo.Context, tok utils.SignedToken) {
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookieName,
		Value:    tok.Token,
		Path:     "/",
		MaxAge:   int(h.RefreshTTL / time.Second),
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Register creates a pending account and mails a verification code.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	acc, err := h.Accounts.Register(ctx, service.RegisterInput{
		Name:        req.Name,
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return err
	}
	v := viewOf(acc)
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "registration successful, check your email for a verification code",
		"account": v,
	})
}

// Login returns an access token in the body and sets the refresh cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	acc, err := h.Credentials.Verify(ctx, req.Identifier, req.Password)
	if err != nil {
		return err
	}
	s, err := h.Tokens.NewSession(acc)
	if err != nil {
		return err
	}
	h.setRefreshCookie(c, s.Refresh)
	v := viewOf(s.Account)
	return c.JSON(http.StatusOK, tokenResp{AccessToken: s.Access.Token, ExpiresAt: s.Access.Exp, Account: &v})
}

// Refresh exchanges the refresh cookie for a new access token and rotates
// the cookie.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := ""
	if ck, err := c.Cookie(RefreshCookieName); err == nil {
		raw = ck.Value
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	s, err := h.Tokens.Refresh(ctx, raw)
	if err != nil {
		if k := service.KindOf(err); k == service.KindAuthentication || k == service.KindAccountState {
			h.clearRefreshCookie(c)
		}
		return err
	}
	h.setRefreshCookie(c, s.Refresh)
	return c.JSON(http.StatusOK, tokenResp{AccessToken: s.Access.Token, ExpiresAt: s.Access.Exp})
}

// Logout drops the refresh cookie.  Tokens are stateless; access tokens
// stay valid until they expire or the password changes.
func (h *AuthHandler) Logout(c echo.Context) error {
	h.clearRefreshCookie(c)
	return c.NoContent(http.StatusNoContent)
}

// VerifyEmail confirms an address with the mailed code.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req verifyEmailReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Accounts.VerifyEmail(ctx, req.Email, req.OTP); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "email verified"})
}

// ResendVerification mails a fresh verification code.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Accounts.ResendVerification(ctx, req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "if the email needs verification, a new code has been sent"})
}

// ForgotPassword mails a reset code.  The answer is the same whether or not
// the address is registered.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Accounts.ForgotPassword(ctx, req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "if the email is registered, a reset code has been sent"})
}

// ResetPassword sets a new password using the mailed code.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Accounts.ResetPassword(ctx, req.Email, req.OTP, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password has been reset"})
}

// Me returns the caller's account.
func (h *AuthHandler) Me(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return service.Authentication("missing bearer token")
	}
	return c.JSON(http.StatusOK, viewOf(p.Account))
}
