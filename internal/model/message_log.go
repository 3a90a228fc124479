// internal/model/message_log.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Message log statuses. Values are part of the persisted contract.
const (
	LogSent    = "sent"
	LogFailed  = "failed"
	LogSkipped = "skipped"
)

// MessageLog is an append-only record of one send attempt. It is the
// source of truth for campaign "last sent" checks and customer-visible
// history; rows are never mutated.
type MessageLog struct {
	ID           uuid.UUID `db:"id" json:"id"`
	CampaignID   uuid.UUID `db:"campaign_id" json:"campaign_id"`
	AccountID    uuid.UUID `db:"account_id" json:"account_id"`
	GroupID      uuid.UUID `db:"group_id" json:"group_id"`
	Target       string    `db:"target" json:"target"`
	MessageText  string    `db:"message_text" json:"message_text"`
	Status       string    `db:"status" json:"status"`
	ErrorCode    string    `db:"error_code" json:"error_code,omitempty"`
	FloodSeconds int       `db:"flood_wait_seconds" json:"flood_wait_seconds,omitempty"`
	SentAt       time.Time `db:"sent_at" json:"sent_at"`
}
