package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/blog-platform/internal/config"
	"github.com/iliyamo/blog-platform/internal/model"
	"github.com/iliyamo/blog-platform/internal/ratelimit"
	"github.com/iliyamo/blog-platform/internal/repository"
	"github.com/iliyamo/blog-platform/internal/service"
	"github.com/iliyamo/blog-platform/internal/utils"
)

func newContext(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.IPExtractor = echo.ExtractIPDirect()
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "203.0.113.7:4000"
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func ok(c echo.Context) error { return c.NoContent(http.StatusOK) }

type downStore struct{}

func (downStore) Increment(context.Context, string, time.Duration) (ratelimit.Counter, error) {
	return ratelimit.Counter{}, ratelimit.ErrBackendUnavailable
}

func TestRateLimit(t *testing.T) {
	lim := ratelimit.NewLimiter(ratelimit.NewMemoryCounterStore(nil), config.RateLimitConfig{
		Rules: map[string]config.RateRule{config.RouteRegister: {MaxRequests: 2, Window: time.Minute}},
	})
	h := RateLimit(lim, config.RouteRegister, zap.NewNop())(ok)

	for i := 0; i < 2; i++ {
		c, rec := newContext(http.MethodPost, "/auth/register")
		require.NoError(t, h(c))
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}
	c, rec := newContext(http.MethodPost, "/auth/register")
	err := h(c)
	assert.Equal(t, service.KindRateLimited, service.KindOf(err))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimit_BackendFailure(t *testing.T) {
	cfg := config.RateLimitConfig{Rules: map[string]config.RateRule{config.RouteLogin: {MaxRequests: 2, Window: time.Minute}}}

	c, _ := newContext(http.MethodPost, "/auth/login")
	err := RateLimit(ratelimit.NewLimiter(downStore{}, cfg), config.RouteLogin, zap.NewNop())(ok)(c)
	assert.Equal(t, service.KindUnavailable, service.KindOf(err))

	cfg.FailOpen = true
	c, rec := newContext(http.MethodPost, "/auth/login")
	require.NoError(t, RateLimit(ratelimit.NewLimiter(downStore{}, cfg), config.RouteLogin, zap.NewNop())(ok)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_NilLimiterPassesThrough(t *testing.T) {
	c, rec := newContext(http.MethodPost, "/auth/login")
	require.NoError(t, RateLimit(nil, config.RouteLogin, zap.NewNop())(ok)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, RetryAfterSeconds(0))
	assert.Equal(t, 1, RetryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 3, RetryAfterSeconds(2001*time.Millisecond))
}

func TestRequireRole(t *testing.T) {
	store := repository.NewMemoryAccountRepo()
	tokens := service.NewTokenService(store, service.TokenConfig{
		Secret: "mw-secret", Issuer: "test", AccessTTL: time.Minute, RefreshTTL: time.Hour,
	}, nil, zap.NewNop())
	guard := service.NewGuard(tokens)

	hash, err := utils.HashPassword("Passw0rd1", bcrypt.MinCost)
	require.NoError(t, err)
	acc := model.Account{ID: uuid.NewString(), Username: "u", Email: "u@x.com", PasswordHash: hash, Role: model.RoleAdmin, Status: model.StatusApproved}
	require.NoError(t, store.Create(context.Background(), &acc))
	tok, err := tokens.IssueAccessToken(acc.ID, acc.PasswordHash)
	require.NoError(t, err)

	var seen service.Principal
	next := func(c echo.Context) error {
		p, ok := PrincipalFrom(c)
		require.True(t, ok)
		seen = p
		return c.NoContent(http.StatusOK)
	}

	c, _ := newContext(http.MethodGet, "/admin/accounts/x")
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	require.NoError(t, RequireRole(guard, model.RoleAdmin)(next)(c))
	assert.Equal(t, acc.ID, seen.ID())

	c, _ = newContext(http.MethodGet, "/admin/accounts/x")
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	err = RequireRole(guard, model.RoleSuperAdmin)(next)(c)
	assert.Equal(t, service.KindAuthorization, service.KindOf(err))

	c, _ = newContext(http.MethodGet, "/admin/accounts/x")
	err = RequireRole(guard, model.RoleUser)(next)(c)
	assert.Equal(t, service.KindAuthentication, service.KindOf(err))

	c, _ = newContext(http.MethodGet, "/me")
	_, found := PrincipalFrom(c)
	assert.False(t, found)
}

func TestRequestLogger_LogsHandledStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if !c.Response().Committed {
			_ = c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
		}
	}
	e.Use(RequestLogger(zap.New(core)))
	e.GET("/me", func(c echo.Context) error { return service.Authentication("missing bearer token") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, http.StatusUnauthorized, entries[0].ContextMap()["status"])
}

func TestRateLimit_ForwardedForDoesNotOpenNewBuckets(t *testing.T) {
	lim := ratelimit.NewLimiter(ratelimit.NewMemoryCounterStore(nil), config.RateLimitConfig{
		Rules: map[string]config.RateRule{config.RouteLogin: {MaxRequests: 2, Window: time.Minute}},
	})
	h := RateLimit(lim, config.RouteLogin, zap.NewNop())(ok)

	rejected := 0
	for i := 0; i < 6; i++ {
		c, _ := newContext(http.MethodPost, "/auth/login")
		c.Request().Header.Set(echo.HeaderXForwardedFor, "10.0.0."+strconv.Itoa(i))
		c.Request().Header.Set(echo.HeaderXRealIP, "10.0.1."+strconv.Itoa(i))
		if service.KindOf(h(c)) == service.KindRateLimited {
			rejected++
		}
	}
	assert.Equal(t, 4, rejected)
}

func TestRateLimit_DebugLogsDecisions(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	lim := ratelimit.NewLimiter(ratelimit.NewMemoryCounterStore(nil), config.RateLimitConfig{
		Rules: map[string]config.RateRule{config.RouteLogin: {MaxRequests: 5, Window: time.Minute}},
		Debug: true,
	})
	c, _ := newContext(http.MethodPost, "/auth/login")
	require.NoError(t, RateLimit(lim, config.RouteLogin, zap.New(core))(ok)(c))

	entries := logs.FilterMessage("rate limit decision").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "203.0.113.7", entries[0].ContextMap()["ip"])
	assert.EqualValues(t, 4, entries[0].ContextMap()["remaining"])
}

func TestClientIP(t *testing.T) {
	spoofed := func(remote, xff string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		req.Header.Set(echo.HeaderXForwardedFor, xff)
		return req
	}

	direct, err := ClientIP(nil)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", direct(spoofed("203.0.113.7:4000", "198.51.100.9")))

	proxied, err := ClientIP([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.9", proxied(spoofed("10.1.1.1:4000", "198.51.100.9, 10.2.2.2")))
	assert.Equal(t, "203.0.113.7", proxied(spoofed("203.0.113.7:4000", "198.51.100.9")),
		"untrusted peers cannot forward an address")

	_, err = ClientIP([]string{"not-a-cidr"})
	assert.Error(t, err)
}
