package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/blog-platform/internal/model"
	"github.com/iliyamo/blog-platform/internal/repository"
	"github.com/iliyamo/blog-platform/internal/utils"
)

// CredentialVerifier resolves a login identifier to an account and checks
// its password.  It is the only login policy in the service.
type CredentialVerifier struct {
	store        AccountStore
	dummyHash    string
	allowPending bool
	now          Clock
	log          *zap.Logger
}

// NewCredentialVerifier prepares a dummy hash at bcryptCost so that a
// lookup for an unknown account spends as long as a wrong password.
func NewCredentialVerifier(store AccountStore, bcryptCost int, allowPending bool, now Clock, log *zap.Logger) (*CredentialVerifier, error) {
	dummy, err := utils.DummyHash(bcryptCost)
	if err != nil {
		return nil, err
	}
	return &CredentialVerifier{
		store:        store,
		dummyHash:    dummy,
		allowPending: allowPending,
		now:          orNow(now),
		log:          log,
	}, nil
}

// Verify returns the account identified by identifier when password
// matches and the account status permits login.  Unknown identifiers and
// wrong passwords produce the same error.
func (v *CredentialVerifier) Verify(ctx context.Context, identifier, password string) (model.Account, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return model.Account{}, Validation("identifier and password are required")
	}

	acc, err := v.resolve(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.VerifyPassword(v.dummyHash, password)
			return model.Account{}, invalidCredentials(err)
		}
		return model.Account{}, storeError("resolve account", err)
	}
	if !utils.VerifyPassword(acc.PasswordHash, password) {
		return model.Account{}, invalidCredentials(nil)
	}
	if err := loginAllowed(acc.Status, v.allowPending); err != nil {
		return model.Account{}, err
	}

	now := v.now().UTC()
	if err := v.store.UpdateLastLogin(ctx, acc.ID, now); err != nil {
		return model.Account{}, storeError("update last login", err)
	}
	acc.LastLogin = &now
	v.log.Info("login succeeded", zap.String("account_id", acc.ID))
	return acc, nil
}

// resolve looks the identifier up by id, then username, then email.  The
// first match wins; results are never combined.
func (v *CredentialVerifier) resolve(ctx context.Context, identifier string) (model.Account, error) {
	if _, err := uuid.Parse(identifier); err == nil {
		acc, err := v.store.GetByID(ctx, identifier)
		if !errors.Is(err, repository.ErrNotFound) {
			return acc, err
		}
	}
	acc, err := v.store.GetByUsername(ctx, normaliseUsername(identifier))
	if !errors.Is(err, repository.ErrNotFound) {
		return acc, err
	}
	return v.store.GetByEmail(ctx, strings.ToLower(identifier))
}

// loginAllowed is the status gate shared by login and refresh.
func loginAllowed(s model.Status, allowPending bool) error {
	switch s {
	case model.StatusRejected:
		return AccountState("account rejected")
	case model.StatusSuspended:
		return AccountState("account suspended")
	case model.StatusPending:
		if !allowPending {
			return AccountState("account pending approval")
		}
	}
	return nil
}
