package service

import (
	"context"
	"strings"

	"github.com/iliyamo/blog-platform/internal/model"
)

// Guard is the single authorization path for protected operations.
type Guard struct {
	tokens *TokenService
}

func NewGuard(tokens *TokenService) *Guard { return &Guard{tokens: tokens} }

// Authorize verifies the bearer token in an Authorization header value,
// rejects blocked accounts and checks the caller's role against minRole.
func (g *Guard) Authorize(ctx context.Context, authorization string, minRole model.Role) (Principal, error) {
	raw, ok := bearerToken(authorization)
	if !ok {
		return Principal{}, Authentication("missing bearer token")
	}
	p, err := g.tokens.VerifyAccessToken(ctx, raw)
	if err != nil {
		return Principal{}, err
	}
	if p.Account.Status.Blocked() {
		return Principal{}, AccountState("account " + string(p.Account.Status))
	}
	if !model.CanAccess(minRole, p.Account.Role) {
		return Principal{}, Authorization("insufficient role")
	}
	return p, nil
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(prefix):])
	return raw, raw != ""
}
