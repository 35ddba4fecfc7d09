package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/blog-platform/internal/service"
)

func render(t *testing.T, err error) (*httptest.ResponseRecorder, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/auth/login", nil), rec)
	ErrorHandler(zap.New(core))(err, c)
	return rec, logs
}

func body(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestErrorHandler_Kinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{service.Validation("email is required"), http.StatusBadRequest, "email is required"},
		{service.Authentication("invalid token"), http.StatusUnauthorized, "invalid token"},
		{service.Authorization("insufficient role"), http.StatusForbidden, "insufficient role"},
		{service.AccountState("account suspended"), http.StatusForbidden, "account suspended"},
		{service.NotFound("account not found"), http.StatusNotFound, "account not found"},
		{service.Conflict("email already exists"), http.StatusConflict, "email already exists"},
		{fmt.Errorf("wrapped: %w", service.Conflict("x")), http.StatusConflict, "x"},
		{service.Unavailable("service temporarily unavailable", context.DeadlineExceeded), http.StatusServiceUnavailable, "service temporarily unavailable"},
		{echo.ErrNotFound, http.StatusNotFound, "Not Found"},
	}
	for _, tc := range cases {
		rec, _ := render(t, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.msg)
		assert.Equal(t, tc.msg, body(t, rec)["error"])
	}
}

func TestErrorHandler_InternalDoesNotLeak(t *testing.T) {
	for _, err := range []error{
		service.Internal("load account", errors.New("dial tcp 10.0.0.5:3306: connection refused")),
		errors.New("pq: relation does not exist"),
	} {
		rec, logs := render(t, err)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, map[string]interface{}{"error": "internal server error"}, body(t, rec))
		assert.NotContains(t, rec.Body.String(), "10.0.0.5")
		assert.Equal(t, 1, logs.Len())
	}
}

func TestErrorHandler_RateLimited(t *testing.T) {
	rec, _ := render(t, service.RateLimited(90*time.Second+time.Millisecond))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "91", rec.Header().Get("Retry-After"))
	b := body(t, rec)
	assert.Equal(t, "too many requests", b["error"])
	assert.EqualValues(t, 91, b["retry_after"])
}

func TestValidator(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&resetPasswordReq{Email: "a@x.com", OTP: "123", NewPassword: "x"})
	require.Error(t, err)
	assert.Equal(t, service.KindValidation, service.KindOf(err))
	assert.Contains(t, err.Error(), "otp must be exactly 6 characters")

	assert.NoError(t, v.Validate(&resetPasswordReq{Email: "a@x.com", OTP: "123456", NewPassword: "x"}))
	assert.Error(t, v.Validate(&loginReq{Password: "x"}))
}

func TestHealth(t *testing.T) {
	e := echo.New()
	h := &HealthHandler{Checks: map[string]Pinger{
		"db":    PingFunc(func(context.Context) error { return nil }),
		"redis": PingFunc(func(context.Context) error { return errors.New("down") }),
	}}
	rec := httptest.NewRecorder()
	require.NoError(t, h.Health(e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	b := body(t, rec)
	assert.Equal(t, "degraded", b["status"])
	assert.Equal(t, map[string]interface{}{"db": "ok", "redis": "down"}, b["checks"])
}
