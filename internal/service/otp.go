package service

import (
	"context"
	"fmt"
	"html"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/blog-platform/internal/model"
	"github.com/iliyamo/blog-platform/internal/repository"
	"github.com/iliyamo/blog-platform/internal/utils"
)

// Purpose selects the message sent with a passcode.
type Purpose int

const (
	PurposeVerifyEmail Purpose = iota
	PurposeResetPassword
)

// OTPService issues and consumes the single outstanding passcode of an
// account.
type OTPService struct {
	store  AccountStore
	mailer Mailer
	ttl    time.Duration
	now    Clock
	log    *zap.Logger
}

func NewOTPService(store AccountStore, mailer Mailer, ttl time.Duration, now Clock, log *zap.Logger) *OTPService {
	return &OTPService{store: store, mailer: mailer, ttl: ttl, now: orNow(now), log: log}
}

// Issue stores a fresh code on a, replacing any earlier one, and mails it.
// If the mail cannot be sent the code is withdrawn again and an
// Unavailable error is returned.
func (s *OTPService) Issue(ctx context.Context, a model.Account, purpose Purpose) (string, error) {
	code, err := utils.NewOTP()
	if err != nil {
		return "", Internal("generate otp", err)
	}
	// stored at second precision so every backend compares the same instant
	expiry := s.now().UTC().Add(s.ttl).Truncate(time.Second)
	if err := s.store.SetOTP(ctx, a.ID, code, expiry); err != nil {
		return "", storeError("store otp", err)
	}

	subject, body, text := otpMessage(a, code, purpose, s.ttl)
	if err := s.mailer.Send(ctx, a.Email, subject, body, text); err != nil {
		s.withdraw(ctx, a.ID, code)
		s.log.Warn("otp mail failed", zap.String("account_id", a.ID), zap.Error(err))
		return "", Unavailable("could not send email, try again later", err)
	}
	return code, nil
}

// Verify consumes code if it matches and has not expired, applying effect
// in the same atomic update.  A false result leaves the account untouched.
func (s *OTPService) Verify(ctx context.Context, accountID, code string, effect repository.OTPEffect) (bool, error) {
	if len(code) != utils.OTPDigits {
		return false, nil
	}
	ok, err := s.store.ConsumeOTP(ctx, accountID, code, s.now().UTC(), effect)
	if err != nil {
		return false, storeError("consume otp", err)
	}
	return ok, nil
}

func (s *OTPService) withdraw(ctx context.Context, accountID, code string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := s.store.ConsumeOTP(ctx, accountID, code, s.now().UTC(), repository.OTPEffect{}); err != nil {
		s.log.Error("withdraw otp failed", zap.String("account_id", accountID), zap.Error(err))
	}
}

func otpMessage(a model.Account, code string, purpose Purpose, ttl time.Duration) (subject, htmlBody, text string) {
	minutes := int(ttl / time.Minute)
	name := html.EscapeString(a.Name)
	switch purpose {
	case PurposeResetPassword:
		subject = "Reset your password"
		text = fmt.Sprintf("Hi %s,\n\nYour password reset code is %s. It expires in %d minutes.\nIf you did not ask for a reset, ignore this message.\n", a.Name, code, minutes)
		htmlBody = fmt.Sprintf("<p>Hi %s,</p><p>Your password reset code is <b>%s</b>. It expires in %d minutes.</p><p>If you did not ask for a reset, ignore this message.</p>", name, code, minutes)
	default:
		subject = "Verify your email"
		text = fmt.Sprintf("Hi %s,\n\nYour verification code is %s. It expires in %d minutes.\n", a.Name, code, minutes)
		htmlBody = fmt.Sprintf("<p>Hi %s,</p><p>Your verification code is <b>%s</b>. It expires in %d minutes.</p>", name, code, minutes)
	}
	return subject, htmlBody, text
}
