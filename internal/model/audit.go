package model

import "time"

// AuditRecord describes one administrative change to an account.  Field
// is either "status" or "role"; From and To carry the old and new values.
type AuditRecord struct {
	ActorID   string    `json:"actor_id"`
	ActorRole Role      `json:"actor_role"`
	TargetID  string    `json:"target_id"`
	Field     string    `json:"field"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	At        time.Time `json:"at"`
}
