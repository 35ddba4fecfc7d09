package model

// Role is a capability level.  Roles form the ordered lattice
// user < admin < super_admin; a higher role holds every capability of
// the lower ones.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// rank places each role on the lattice.  Unknown roles rank 0 and can
// access nothing.
func (r Role) rank() int {
	switch r {
	case RoleUser:
		return 1
	case RoleAdmin:
		return 2
	case RoleSuperAdmin:
		return 3
	}
	return 0
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r.rank() > 0 }

// CanAccess reports whether a holder of actual satisfies a requirement of
// required.  It is the only role comparison used by guards.
func CanAccess(required, actual Role) bool {
	if !required.Valid() || !actual.Valid() {
		return false
	}
	return actual.rank() >= required.rank()
}
