package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/blog-platform/internal/model"
	"github.com/iliyamo/blog-platform/internal/repository"
	"github.com/iliyamo/blog-platform/internal/utils"
)

// RegisterInput is the data a visitor supplies to create an account.
type RegisterInput struct {
	Name        string
	Username    string
	Email       string
	Password    string
	PhoneNumber string
}

// AccountService runs the self-service account flows: registration, email
// verification and password reset.
type AccountService struct {
	store      AccountStore
	otp        *OTPService
	bcryptCost int
	now        Clock
	log        *zap.Logger
}

func NewAccountService(store AccountStore, otp *OTPService, bcryptCost int, now Clock, log *zap.Logger) *AccountService {
	return &AccountService{store: store, otp: otp, bcryptCost: bcryptCost, now: orNow(now), log: log}
}

// Register creates a pending, unverified account and mails it a
// verification code.  When the code cannot be delivered the account is
// removed again so the visitor can retry with the same details.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (model.Account, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Username = normaliseUsername(in.Username)
	in.Email = normaliseEmail(in.Email)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)

	if in.Name == "" || in.Username == "" || in.Email == "" {
		return model.Account{}, Validation("name, username and email are required")
	}
	if strings.Contains(in.Username, "@") {
		return model.Account{}, Validation("username may not contain @")
	}
	if _, err := uuid.Parse(in.Username); err == nil {
		return model.Account{}, Validation("username may not look like an account id")
	}
	if err := utils.ValidatePasswordStrength(in.Password); err != nil {
		return model.Account{}, Validation(err.Error())
	}

	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return model.Account{}, Internal("hash password", err)
	}
	now := s.now().UTC()
	acc := model.Account{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Username:     in.Username,
		Email:        in.Email,
		PhoneNumber:  in.PhoneNumber,
		PasswordHash: hash,
		Role:         model.RoleUser,
		Status:       model.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, &acc); err != nil {
		return model.Account{}, storeError("create account", err)
	}

	if _, err := s.otp.Issue(ctx, acc, PurposeVerifyEmail); err != nil {
		s.discard(ctx, acc.ID)
		return model.Account{}, err
	}
	s.log.Info("account registered", zap.String("account_id", acc.ID))
	return acc, nil
}

func (s *AccountService) discard(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.log.Error("discard unverified account failed", zap.String("account_id", id), zap.Error(err))
	}
}

// VerifyEmail confirms the address of the account with the given email.
func (s *AccountService) VerifyEmail(ctx context.Context, email, code string) error {
	acc, err := s.store.GetByEmail(ctx, normaliseEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Validation(msgInvalidCode)
		}
		return storeError("load account", err)
	}
	if acc.EmailVerified {
		return Conflict("email already verified")
	}
	ok, err := s.otp.Verify(ctx, acc.ID, code, repository.OTPEffect{MarkEmailVerified: true})
	if err != nil {
		return err
	}
	if !ok {
		return Validation(msgInvalidCode)
	}
	s.log.Info("email verified", zap.String("account_id", acc.ID))
	return nil
}

// ResendVerification mails a new verification code.  Unknown or already
// verified addresses are accepted silently.
func (s *AccountService) ResendVerification(ctx context.Context, email string) error {
	acc, err := s.store.GetByEmail(ctx, normaliseEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return storeError("load account", err)
	}
	if acc.EmailVerified {
		return nil
	}
	_, err = s.otp.Issue(ctx, acc, PurposeVerifyEmail)
	return err
}

// ForgotPassword mails a reset code.  The result does not reveal whether
// the address belongs to an account.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	acc, err := s.store.GetByEmail(ctx, normaliseEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Debug("password reset for unknown email")
			return nil
		}
		return storeError("load account", err)
	}
	_, err = s.otp.Issue(ctx, acc, PurposeResetPassword)
	return err
}

// ResetPassword replaces the password of the account with the given email
// when code is valid.  The new hash and the cleared code are written in one
// update, and every token issued under the old password stops verifying.
func (s *AccountService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if err := utils.ValidatePasswordStrength(newPassword); err != nil {
		return Validation(err.Error())
	}
	acc, err := s.store.GetByEmail(ctx, normaliseEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Validation(msgInvalidCode)
		}
		return storeError("load account", err)
	}
	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return Internal("hash password", err)
	}
	ok, err := s.otp.Verify(ctx, acc.ID, code, repository.OTPEffect{PasswordHash: hash})
	if err != nil {
		return err
	}
	if !ok {
		return Validation(msgInvalidCode)
	}
	s.log.Info("password reset", zap.String("account_id", acc.ID))
	return nil
}

// Get returns the account with the given id.
func (s *AccountService) Get(ctx context.Context, id string) (model.Account, error) {
	acc, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Account{}, storeError("load account", err)
	}
	return acc, nil
}

func normaliseEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

// Usernames are stored lower-case and compared case-insensitively by both
// stores, so "Alice" and "alice" are the same account.
func normaliseUsername(u string) string { return strings.ToLower(strings.TrimSpace(u)) }
