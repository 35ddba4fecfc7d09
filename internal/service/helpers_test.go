package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/blog-platform/internal/model"
	"github.com/iliyamo/blog-platform/internal/repository"
	"github.com/iliyamo/blog-platform/internal/utils"
)

type sentMail struct {
	To, Subject, HTML, Text string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, html, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, HTML: html, Text: text})
	return nil
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// lastCode returns the passcode of the most recent mail to addr.
func (m *fakeMailer) lastCode(t *testing.T, addr string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].To == addr {
			code := codePattern.FindString(m.sent[i].Text)
			require.NotEmpty(t, code, "no code in mail")
			return code
		}
	}
	t.Fatalf("no mail sent to %s", addr)
	return ""
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingSink struct {
	mu      sync.Mutex
	records []model.AuditRecord
}

func (s *recordingSink) Record(_ context.Context, rec model.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

type harness struct {
	store    *repository.MemoryAccountRepo
	mailer   *fakeMailer
	clock    *testClock
	audit    *recordingSink
	otp      *OTPService
	accounts *AccountService
	creds    *CredentialVerifier
	tokens   *TokenService
	status   *StatusMachine
	guard    *Guard
}

const testOTPTTL = 10 * time.Minute

func newHarness(t *testing.T, allowPending bool) *harness {
	t.Helper()
	h := &harness{
		store:  repository.NewMemoryAccountRepo(),
		mailer: &fakeMailer{},
		clock:  &testClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
		audit:  &recordingSink{},
	}
	log := zap.NewNop()
	now := h.clock.Now

	h.otp = NewOTPService(h.store, h.mailer, testOTPTTL, now, log)
	h.accounts = NewAccountService(h.store, h.otp, bcrypt.MinCost, now, log)
	creds, err := NewCredentialVerifier(h.store, bcrypt.MinCost, allowPending, now, log)
	require.NoError(t, err)
	h.creds = creds
	h.tokens = NewTokenService(h.store, TokenConfig{
		Secret:       "test-secret-0123456789",
		Issuer:       "blog-platform-test",
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   30 * 24 * time.Hour,
		AllowPending: allowPending,
	}, now, log)
	h.status = NewStatusMachine(h.store, h.audit, now, log)
	h.guard = NewGuard(h.tokens)
	return h
}

// seed stores a verified account directly, bypassing registration.
func (h *harness) seed(t *testing.T, username string, role model.Role, status model.Status, password string) model.Account {
	t.Helper()
	hash, err := utils.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	a := model.Account{
		ID:            uuid.NewString(),
		Name:          username,
		Username:      username,
		Email:         username + "@example.com",
		PasswordHash:  hash,
		Role:          role,
		Status:        status,
		EmailVerified: true,
	}
	require.NoError(t, h.store.Create(context.Background(), &a))
	return a
}

func (h *harness) bearer(t *testing.T, a model.Account) string {
	t.Helper()
	tok, err := h.tokens.IssueAccessToken(a.ID, a.PasswordHash)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func requireKind(t *testing.T, err error, kind Kind, msg string) {
	t.Helper()
	require.Error(t, err)
	var se *Error
	require.True(t, errors.As(err, &se), "not a service error: %v", err)
	require.Equal(t, kind, se.Kind, "error: %v", err)
	if msg != "" {
		require.Equal(t, msg, se.Message)
	}
}
