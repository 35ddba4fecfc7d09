package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/blog-platform/internal/model"
	"github.com/iliyamo/blog-platform/internal/repository"
	"github.com/iliyamo/blog-platform/internal/utils"
)

// TokenConfig holds the signing parameters of a TokenService.
type TokenConfig struct {
	Secret       string
	Issuer       string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	AllowPending bool // let pending accounts refresh, mirroring the login policy
}

// Principal is the verified caller of a request.  Account is loaded fresh
// from the store during verification.
type Principal struct {
	Account   model.Account
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (p Principal) ID() string       { return p.Account.ID }
func (p Principal) Role() model.Role { return p.Account.Role }

// Session is what a successful login or refresh hands to the client.
type Session struct {
	Account model.Account
	Access  utils.SignedToken
	Refresh utils.SignedToken
}

// TokenService issues and verifies access and refresh tokens.  Both carry
// a fingerprint of the password hash current at issuance; verification
// recomputes it from the stored hash, so changing a password revokes every
// earlier token without any revocation list.  The price is one account read
// per verification.
type TokenService struct {
	store  AccountStore
	secret []byte
	cfg    TokenConfig
	now    Clock
	log    *zap.Logger
}

func NewTokenService(store AccountStore, cfg TokenConfig, now Clock, log *zap.Logger) *TokenService {
	return &TokenService{store: store, secret: []byte(cfg.Secret), cfg: cfg, now: orNow(now), log: log}
}

func (s *TokenService) fingerprint(passwordHash string) string {
	return utils.PasswordFingerprint(s.secret, passwordHash)
}

// IssueAccessToken signs a short-lived access token bound to passwordHash.
func (s *TokenService) IssueAccessToken(accountID, passwordHash string) (utils.SignedToken, error) {
	tok, err := utils.SignToken(s.secret, s.cfg.Issuer, utils.TokenTypeAccess, accountID, s.fingerprint(passwordHash), s.now(), s.cfg.AccessTTL)
	if err != nil {
		return utils.SignedToken{}, Internal("sign access token", err)
	}
	return tok, nil
}

// IssueRefreshToken signs a long-lived refresh token.  It is bound to the
// password hash as well, so a reset also ends refresh sessions.
func (s *TokenService) IssueRefreshToken(accountID, passwordHash string) (utils.SignedToken, error) {
	tok, err := utils.SignToken(s.secret, s.cfg.Issuer, utils.TokenTypeRefresh, accountID, s.fingerprint(passwordHash), s.now(), s.cfg.RefreshTTL)
	if err != nil {
		return utils.SignedToken{}, Internal("sign refresh token", err)
	}
	return tok, nil
}

// NewSession issues an access and a refresh token for a.
func (s *TokenService) NewSession(a model.Account) (Session, error) {
	access, err := s.IssueAccessToken(a.ID, a.PasswordHash)
	if err != nil {
		return Session{}, err
	}
	refresh, err := s.IssueRefreshToken(a.ID, a.PasswordHash)
	if err != nil {
		return Session{}, err
	}
	return Session{Account: a, Access: access, Refresh: refresh}, nil
}

// VerifyAccessToken checks raw and returns the caller.  Every failure,
// including a stale fingerprint or a deleted account, is reported as the
// same invalid-token error.
func (s *TokenService) VerifyAccessToken(ctx context.Context, raw string) (Principal, error) {
	return s.verify(ctx, utils.TokenTypeAccess, raw)
}

// Refresh verifies a refresh token and returns a new session, rotating the
// refresh token.  The status gate of login applies here too.
func (s *TokenService) Refresh(ctx context.Context, raw string) (Session, error) {
	if raw == "" {
		return Session{}, Authentication("missing refresh token")
	}
	p, err := s.verify(ctx, utils.TokenTypeRefresh, raw)
	if err != nil {
		return Session{}, err
	}
	if err := loginAllowed(p.Account.Status, s.cfg.AllowPending); err != nil {
		return Session{}, err
	}
	return s.NewSession(p.Account)
}

func (s *TokenService) verify(ctx context.Context, tokenType, raw string) (Principal, error) {
	claims, err := utils.ParseToken(s.secret, s.cfg.Issuer, tokenType, raw, s.now())
	if err != nil {
		return Principal{}, invalidToken(err)
	}
	acc, err := s.store.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Principal{}, invalidToken(err)
		}
		return Principal{}, storeError("load token subject", err)
	}
	if subtle.ConstantTimeCompare([]byte(s.fingerprint(acc.PasswordHash)), []byte(claims.Fingerprint)) != 1 {
		s.log.Debug("token fingerprint mismatch", zap.String("account_id", acc.ID), zap.String("type", tokenType))
		return Principal{}, invalidToken(errors.New("password fingerprint mismatch"))
	}
	p := Principal{Account: acc}
	if claims.IssuedAt != nil {
		p.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}
