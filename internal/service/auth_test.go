package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/blog-platform/internal/model"
)

func TestCredentialVerifier_ResolutionOrder(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	a := h.seed(t, "kate", model.RoleUser, model.StatusApproved, "Passw0rd1")

	for _, ident := range []string{a.ID, "kate", "kate@example.com", "  KATE@example.com "} {
		got, err := h.creds.Verify(ctx, ident, "Passw0rd1")
		require.NoError(t, err, ident)
		assert.Equal(t, a.ID, got.ID)
		require.NotNil(t, got.LastLogin)
	}

	stored, err := h.store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)
	assert.True(t, stored.LastLogin.Equal(h.clock.Now()))
}

func TestCredentialVerifier_UnknownAndWrongPasswordLookAlike(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	h.seed(t, "leo", model.RoleUser, model.StatusApproved, "Passw0rd1")

	_, errUnknown := h.creds.Verify(ctx, "nobody", "Passw0rd1")
	_, errWrong := h.creds.Verify(ctx, "leo", "Wrong0pass")
	requireKind(t, errUnknown, KindAuthentication, "invalid credentials")
	requireKind(t, errWrong, KindAuthentication, "invalid credentials")

	_, err := h.creds.Verify(ctx, "", "x")
	requireKind(t, err, KindValidation, "")
}

func TestCredentialVerifier_StatusGate(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	h.seed(t, "rita", model.RoleUser, model.StatusRejected, "Passw0rd1")
	h.seed(t, "sam", model.RoleUser, model.StatusSuspended, "Passw0rd1")
	h.seed(t, "pat", model.RoleUser, model.StatusPending, "Passw0rd1")

	_, err := h.creds.Verify(ctx, "rita", "Passw0rd1")
	requireKind(t, err, KindAccountState, "account rejected")
	_, err = h.creds.Verify(ctx, "sam", "Passw0rd1")
	requireKind(t, err, KindAccountState, "account suspended")
	_, err = h.creds.Verify(ctx, "pat", "Passw0rd1")
	requireKind(t, err, KindAccountState, "account pending approval")

	// status is only disclosed to callers holding the password
	_, err = h.creds.Verify(ctx, "sam", "Wrong0pass")
	requireKind(t, err, KindAuthentication, "invalid credentials")
}

func TestCredentialVerifier_PendingAllowedByPolicy(t *testing.T) {
	h := newHarness(t, true)
	h.seed(t, "pat", model.RoleUser, model.StatusPending, "Passw0rd1")
	_, err := h.creds.Verify(context.Background(), "pat", "Passw0rd1")
	require.NoError(t, err)
}

func TestTokenService_Expiry(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	a := h.seed(t, "mia", model.RoleUser, model.StatusApproved, "Passw0rd1")

	tok, err := h.tokens.IssueAccessToken(a.ID, a.PasswordHash)
	require.NoError(t, err)
	assert.True(t, h.clock.Now().Add(15*time.Minute).Equal(tok.Exp))

	h.clock.Advance(14 * time.Minute)
	_, err = h.tokens.VerifyAccessToken(ctx, tok.Token)
	require.NoError(t, err)

	h.clock.Advance(2 * time.Minute)
	_, err = h.tokens.VerifyAccessToken(ctx, tok.Token)
	requireKind(t, err, KindAuthentication, "invalid token")
}

func TestTokenService_RejectsTypeConfusion(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	a := h.seed(t, "ned", model.RoleUser, model.StatusApproved, "Passw0rd1")
	s, err := h.tokens.NewSession(a)
	require.NoError(t, err)

	_, err = h.tokens.VerifyAccessToken(ctx, s.Refresh.Token)
	requireKind(t, err, KindAuthentication, "invalid token")
	_, err = h.tokens.Refresh(ctx, s.Access.Token)
	requireKind(t, err, KindAuthentication, "invalid token")
	_, err = h.tokens.VerifyAccessToken(ctx, "garbage")
	requireKind(t, err, KindAuthentication, "invalid token")
}

func TestTokenService_RefreshRotates(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	a := h.seed(t, "olga", model.RoleUser, model.StatusApproved, "Passw0rd1")
	first, err := h.tokens.NewSession(a)
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	next, err := h.tokens.Refresh(ctx, first.Refresh.Token)
	require.NoError(t, err)
	assert.NotEqual(t, first.Refresh.Token, next.Refresh.Token)
	assert.True(t, next.Refresh.Exp.After(first.Refresh.Exp))

	p, err := h.tokens.VerifyAccessToken(ctx, next.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, a.ID, p.ID())
}

func TestTokenService_RefreshHonoursStatusAndDeletion(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	admin := h.seed(t, "boss", model.RoleAdmin, model.StatusApproved, "Passw0rd1")
	a := h.seed(t, "paul", model.RoleUser, model.StatusApproved, "Passw0rd1")
	s, err := h.tokens.NewSession(a)
	require.NoError(t, err)

	_, err = h.status.ChangeStatus(ctx, admin, a.ID, model.StatusSuspended)
	require.NoError(t, err)
	_, err = h.tokens.Refresh(ctx, s.Refresh.Token)
	requireKind(t, err, KindAccountState, "account suspended")

	require.NoError(t, h.store.Delete(ctx, a.ID))
	_, err = h.tokens.VerifyAccessToken(ctx, s.Access.Token)
	requireKind(t, err, KindAuthentication, "invalid token")

	_, err = h.tokens.Refresh(ctx, "")
	requireKind(t, err, KindAuthentication, "missing refresh token")
}

func TestGuard_RoleLattice(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	user := h.seed(t, "u", model.RoleUser, model.StatusApproved, "Passw0rd1")
	admin := h.seed(t, "a", model.RoleAdmin, model.StatusApproved, "Passw0rd1")
	super := h.seed(t, "s", model.RoleSuperAdmin, model.StatusApproved, "Passw0rd1")

	cases := []struct {
		who  model.Account
		need model.Role
		kind Kind
		ok   bool
	}{
		{user, model.RoleUser, 0, true},
		{user, model.RoleAdmin, KindAuthorization, false},
		{admin, model.RoleAdmin, 0, true},
		{admin, model.RoleSuperAdmin, KindAuthorization, false},
		{super, model.RoleAdmin, 0, true},
		{super, model.RoleSuperAdmin, 0, true},
	}
	for _, tc := range cases {
		p, err := h.guard.Authorize(ctx, h.bearer(t, tc.who), tc.need)
		if tc.ok {
			require.NoError(t, err, "%s needs %s", tc.who.Role, tc.need)
			assert.Equal(t, tc.who.ID, p.ID())
			continue
		}
		requireKind(t, err, tc.kind, "insufficient role")
	}
}

func TestGuard_RejectsMissingTokenAndBlockedAccounts(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	admin := h.seed(t, "a", model.RoleAdmin, model.StatusApproved, "Passw0rd1")
	u := h.seed(t, "u", model.RoleUser, model.StatusApproved, "Passw0rd1")
	header := h.bearer(t, u)

	for _, hdr := range []string{"", "Bearer", "Bearer   ", "Basic abc"} {
		_, err := h.guard.Authorize(ctx, hdr, model.RoleUser)
		requireKind(t, err, KindAuthentication, "missing bearer token")
	}
	_, err := h.guard.Authorize(ctx, "bearer "+header[len("Bearer "):], model.RoleUser)
	require.NoError(t, err, "scheme is case-insensitive")

	_, err = h.status.ChangeStatus(ctx, admin, u.ID, model.StatusSuspended)
	require.NoError(t, err)
	_, err = h.guard.Authorize(ctx, header, model.RoleUser)
	requireKind(t, err, KindAccountState, "account suspended")
}

func TestStatusMachine_TransitionsAndAudit(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	admin := h.seed(t, "a", model.RoleAdmin, model.StatusApproved, "Passw0rd1")
	u := h.seed(t, "u", model.RoleUser, model.StatusPending, "Passw0rd1")

	got, err := h.status.ChangeStatus(ctx, admin, u.ID, model.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, got.Status)
	require.Len(t, h.audit.records, 1)
	rec := h.audit.records[0]
	assert.Equal(t, admin.ID, rec.ActorID)
	assert.Equal(t, u.ID, rec.TargetID)
	assert.Equal(t, "status", rec.Field)
	assert.Equal(t, "pending", rec.From)
	assert.Equal(t, "approved", rec.To)
	assert.True(t, h.clock.Now().Equal(rec.At))

	_, err = h.status.ChangeStatus(ctx, admin, u.ID, model.StatusPending)
	requireKind(t, err, KindValidation, "cannot change status from approved to pending")
	_, err = h.status.ChangeStatus(ctx, admin, u.ID, model.StatusApproved)
	requireKind(t, err, KindConflict, "account is already approved")
	_, err = h.status.ChangeStatus(ctx, admin, u.ID, model.Status("banned"))
	requireKind(t, err, KindValidation, "unknown status")
	_, err = h.status.ChangeStatus(ctx, admin, "missing-id", model.StatusSuspended)
	requireKind(t, err, KindNotFound, "")

	for _, to := range []model.Status{model.StatusSuspended, model.StatusRejected, model.StatusApproved} {
		_, err = h.status.ChangeStatus(ctx, admin, u.ID, to)
		require.NoError(t, err, "to %s", to)
	}
	assert.Len(t, h.audit.records, 4)
}

func TestStatusMachine_Guard(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	user := h.seed(t, "u", model.RoleUser, model.StatusApproved, "Passw0rd1")
	admin := h.seed(t, "a", model.RoleAdmin, model.StatusApproved, "Passw0rd1")
	super := h.seed(t, "s", model.RoleSuperAdmin, model.StatusApproved, "Passw0rd1")
	super2 := h.seed(t, "s2", model.RoleSuperAdmin, model.StatusApproved, "Passw0rd1")

	_, err := h.status.ChangeStatus(ctx, user, admin.ID, model.StatusSuspended)
	requireKind(t, err, KindAuthorization, "admin role required")

	_, err = h.status.ChangeStatus(ctx, admin, admin.ID, model.StatusSuspended)
	requireKind(t, err, KindAuthorization, "cannot modify your own account")

	_, err = h.status.ChangeStatus(ctx, admin, super.ID, model.StatusSuspended)
	requireKind(t, err, KindAuthorization, "only a super admin may modify a super admin")

	_, err = h.status.ChangeRole(ctx, admin, user.ID, model.RoleAdmin)
	requireKind(t, err, KindAuthorization, "only a super admin may change roles")

	for _, role := range []model.Role{model.RoleUser, model.RoleAdmin, model.RoleSuperAdmin} {
		_, err = h.status.ChangeRole(ctx, super, super.ID, role)
		requireKind(t, err, KindAuthorization, "cannot modify your own account")
	}

	got, err := h.status.ChangeRole(ctx, super, user.ID, model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, got.Role)

	_, err = h.status.ChangeStatus(ctx, super, super2.ID, model.StatusSuspended)
	require.NoError(t, err)

	_, err = h.status.ChangeRole(ctx, super, user.ID, model.Role("owner"))
	requireKind(t, err, KindValidation, "unknown role")
	assert.Len(t, h.audit.records, 2)
}
