package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/blog-platform/internal/model"
)

// transitions lists the states reachable from each state by an admin.
// Pending is entry-only: accounts start there and never return.
var transitions = map[model.Status][]model.Status{
	model.StatusPending:   {model.StatusApproved, model.StatusRejected, model.StatusSuspended},
	model.StatusApproved:  {model.StatusRejected, model.StatusSuspended},
	model.StatusRejected:  {model.StatusApproved, model.StatusSuspended},
	model.StatusSuspended: {model.StatusApproved, model.StatusRejected},
}

// CanTransition reports whether the table permits from -> to.
func CanTransition(from, to model.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StatusMachine applies administrative status and role changes.  Every
// change passes through guard, is written with compare-and-set against the
// value that was checked, and is then handed to the audit sink.
type StatusMachine struct {
	store AccountStore
	audit AuditSink
	now   Clock
	log   *zap.Logger
}

func NewStatusMachine(store AccountStore, audit AuditSink, now Clock, log *zap.Logger) *StatusMachine {
	return &StatusMachine{store: store, audit: audit, now: orNow(now), log: log}
}

// guard holds the rules shared by every status and role change.
func guard(actor, target model.Account, roleChange bool) error {
	if !model.CanAccess(model.RoleAdmin, actor.Role) {
		return Authorization("admin role required")
	}
	if actor.ID == target.ID {
		return Authorization("cannot modify your own account")
	}
	if target.Role == model.RoleSuperAdmin && actor.Role != model.RoleSuperAdmin {
		return Authorization("only a super admin may modify a super admin")
	}
	if roleChange && actor.Role != model.RoleSuperAdmin {
		return Authorization("only a super admin may change roles")
	}
	return nil
}

// ChangeStatus moves the target account to status to on behalf of actor.
func (m *StatusMachine) ChangeStatus(ctx context.Context, actor model.Account, targetID string, to model.Status) (model.Account, error) {
	if !to.Valid() {
		return model.Account{}, Validation("unknown status")
	}
	target, err := m.store.GetByID(ctx, targetID)
	if err != nil {
		return model.Account{}, storeError("load target account", err)
	}
	if err := guard(actor, target, false); err != nil {
		return model.Account{}, err
	}
	if target.Status == to {
		return model.Account{}, Conflict("account is already " + string(to))
	}
	if !CanTransition(target.Status, to) {
		return model.Account{}, Validation(fmt.Sprintf("cannot change status from %s to %s", target.Status, to))
	}

	ok, err := m.store.UpdateStatus(ctx, target.ID, target.Status, to)
	if err != nil {
		return model.Account{}, storeError("update status", err)
	}
	if !ok {
		return model.Account{}, Conflict("account was modified concurrently, retry")
	}
	from := target.Status
	target.Status = to
	m.record(ctx, actor, target.ID, "status", string(from), string(to))
	return target, nil
}

// ChangeRole sets the role of the target account.  Only super admins may
// do this, and never on their own account.
func (m *StatusMachine) ChangeRole(ctx context.Context, actor model.Account, targetID string, to model.Role) (model.Account, error) {
	if !to.Valid() {
		return model.Account{}, Validation("unknown role")
	}
	target, err := m.store.GetByID(ctx, targetID)
	if err != nil {
		return model.Account{}, storeError("load target account", err)
	}
	if err := guard(actor, target, true); err != nil {
		return model.Account{}, err
	}
	if target.Role == to {
		return model.Account{}, Conflict("account already has role " + string(to))
	}

	ok, err := m.store.UpdateRole(ctx, target.ID, target.Role, to)
	if err != nil {
		return model.Account{}, storeError("update role", err)
	}
	if !ok {
		return model.Account{}, Conflict("account was modified concurrently, retry")
	}
	from := target.Role
	target.Role = to
	m.record(ctx, actor, target.ID, "role", string(from), string(to))
	return target, nil
}

// record failures are logged only; the change itself is already committed.
func (m *StatusMachine) record(ctx context.Context, actor model.Account, targetID, field, from, to string) {
	if m.audit == nil {
		return
	}
	rec := model.AuditRecord{
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		TargetID:  targetID,
		Field:     field,
		From:      from,
		To:        to,
		At:        m.now().UTC(),
	}
	if err := m.audit.Record(ctx, rec); err != nil {
		m.log.Warn("audit record failed", zap.Error(err), zap.String("target_id", targetID), zap.String("field", field))
	}
}
