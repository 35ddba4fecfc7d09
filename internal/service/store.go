// Package service implements the authentication and session-integrity
// core: credential verification, token issuance and verification bound to
// password state, one-time passcodes, the account status machine and the
// role guard.  Transport concerns live in the handler and middleware
// packages.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/blog-platform/internal/model"
	"github.com/iliyamo/blog-platform/internal/repository"
)

// AccountStore is the persistence the services need.  ConsumeOTP, UpdateStatus
// and UpdateRole are conditional updates that report whether a row matched.
type AccountStore interface {
	Create(ctx context.Context, a *model.Account) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (model.Account, error)
	GetByUsername(ctx context.Context, username string) (model.Account, error)
	GetByEmail(ctx context.Context, email string) (model.Account, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	SetOTP(ctx context.Context, id, code string, expiry time.Time) error
	ConsumeOTP(ctx context.Context, id, code string, now time.Time, effect repository.OTPEffect) (bool, error)
	UpdateStatus(ctx context.Context, id string, from, to model.Status) (bool, error)
	UpdateRole(ctx context.Context, id string, from, to model.Role) (bool, error)
}

var (
	_ AccountStore = (*repository.AccountRepo)(nil)
	_ AccountStore = (*repository.MemoryAccountRepo)(nil)
)

// Mailer delivers one message.  Implementations must honour ctx.
type Mailer interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

// Clock returns the current time.
type Clock func() time.Time

func orNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}
