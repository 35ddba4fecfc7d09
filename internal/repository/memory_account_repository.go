package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/blog-platform/internal/model"
)

// MemoryAccountRepo is a process-local account store with the same
// semantics as AccountRepo.  Every method holds one mutex, which makes the
// conditional updates atomic.  It backs STORE_DRIVER=memory and tests.
type MemoryAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]model.Account
}

// NewMemoryAccountRepo returns an empty store.
func NewMemoryAccountRepo() *MemoryAccountRepo {
	return &MemoryAccountRepo{accounts: make(map[string]model.Account)}
}

func (r *MemoryAccountRepo) Create(_ context.Context, a *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		switch {
		case existing.ID == a.ID:
			return ErrConflict
		case existing.Email == a.Email:
			return ErrDuplicateEmail
		case strings.EqualFold(existing.Username, a.Username):
			return ErrDuplicateUsername
		case a.PhoneNumber != "" && existing.PhoneNumber == a.PhoneNumber:
			return ErrDuplicatePhone
		}
	}
	now := time.Now().UTC()
	stored := cloneAccount(*a)
	stored.CreatedAt, stored.UpdatedAt = now, now
	r.accounts[a.ID] = stored
	return nil
}

func (r *MemoryAccountRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, id)
	return nil
}

func (r *MemoryAccountRepo) GetByID(_ context.Context, id string) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return model.Account{}, ErrNotFound
	}
	return cloneAccount(a), nil
}

func (r *MemoryAccountRepo) GetByUsername(_ context.Context, username string) (model.Account, error) {
	// matches the case-insensitive collation of the accounts table
	return r.find(func(a model.Account) bool { return strings.EqualFold(a.Username, username) })
}

func (r *MemoryAccountRepo) GetByEmail(_ context.Context, email string) (model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.find(func(a model.Account) bool { return a.Email == email })
}

func (r *MemoryAccountRepo) find(match func(model.Account) bool) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if match(a) {
			return cloneAccount(a), nil
		}
	}
	return model.Account{}, ErrNotFound
}

func (r *MemoryAccountRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	ok := r.update(id, func(a *model.Account) bool {
		at := at.UTC()
		a.LastLogin = &at
		return true
	})
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (r *MemoryAccountRepo) SetOTP(_ context.Context, id, code string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return ErrNotFound
	}
	exp := expiry.UTC()
	a.OTP, a.OTPExpiry = &code, &exp
	a.UpdatedAt = time.Now().UTC()
	r.accounts[id] = a
	return nil
}

func (r *MemoryAccountRepo) ConsumeOTP(_ context.Context, id, code string, now time.Time, effect OTPEffect) (bool, error) {
	return r.update(id, func(a *model.Account) bool {
		if a.OTP == nil || a.OTPExpiry == nil || *a.OTP != code || now.After(*a.OTPExpiry) {
			return false
		}
		a.OTP, a.OTPExpiry = nil, nil
		if effect.MarkEmailVerified {
			a.EmailVerified = true
		}
		if effect.PasswordHash != "" {
			a.PasswordHash = effect.PasswordHash
		}
		return true
	}), nil
}

func (r *MemoryAccountRepo) UpdateStatus(_ context.Context, id string, from, to model.Status) (bool, error) {
	return r.update(id, func(a *model.Account) bool {
		if a.Status != from {
			return false
		}
		a.Status = to
		return true
	}), nil
}

func (r *MemoryAccountRepo) UpdateRole(_ context.Context, id string, from, to model.Role) (bool, error) {
	return r.update(id, func(a *model.Account) bool {
		if a.Role != from {
			return false
		}
		a.Role = to
		return true
	}), nil
}

// update applies fn to the stored account under the lock and keeps the
// result only when fn reports a change.
func (r *MemoryAccountRepo) update(id string, fn func(*model.Account) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return false
	}
	if !fn(&a) {
		return false
	}
	a.UpdatedAt = time.Now().UTC()
	r.accounts[id] = a
	return true
}

func cloneAccount(a model.Account) model.Account {
	if a.OTP != nil {
		otp := *a.OTP
		a.OTP = &otp
	}
	if a.OTPExpiry != nil {
		exp := *a.OTPExpiry
		a.OTPExpiry = &exp
	}
	if a.LastLogin != nil {
		ll := *a.LastLogin
		a.LastLogin = &ll
	}
	return a
}
