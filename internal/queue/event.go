// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/iliyamo/blog-platform/internal/model"
)

// AccountChangedEvent is published when an admin changes the status or
// role of an account.  It carries everything an auditor needs without a
// lookup in the account store.
type AccountChangedEvent struct {
	ActorID   string `json:"actor_id"`
	ActorRole string `json:"actor_role"`
	TargetID  string `json:"target_id"`
	Field     string `json:"field"` // "status" or "role"
	From      string `json:"from"`
	To        string `json:"to"`
	ChangedAt string `json:"changed_at"` // RFC 3339, UTC
}

// EventFromRecord converts an audit record to its wire form.
func EventFromRecord(rec model.AuditRecord) AccountChangedEvent {
	return AccountChangedEvent{
		ActorID:   rec.ActorID,
		ActorRole: string(rec.ActorRole),
		TargetID:  rec.TargetID,
		Field:     rec.Field,
		From:      rec.From,
		To:        rec.To,
		ChangedAt: rec.At.UTC().Format(time.RFC3339),
	}
}
