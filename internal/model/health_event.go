// internal/model/health_event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Health event types. Values are part of the persisted contract.
const (
	EventFloodWait      = "floodwait"
	EventWriteForbidden = "write_forbidden"
	EventPaused         = "paused"
	EventBanned         = "banned"
)

// HealthEvent is an append-only abuse-signal record, kept for audit
// independent of the ephemeral derived health state.
type HealthEvent struct {
	ID        uuid.UUID `db:"id" json:"id"`
	AccountID uuid.UUID `db:"account_id" json:"account_id"`
	EventType string    `db:"event_type" json:"event_type"`
	Details   string    `db:"details" json:"details,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
