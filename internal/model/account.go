// internal/model/account.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Account statuses. Values are part of the persisted contract.
const (
	AccountWarming    = "warming"
	AccountActive     = "active"
	AccountPaused     = "paused"
	AccountRestricted = "restricted"
	AccountBanned     = "banned"
)

// Account is one automated messaging account on the chat network.
type Account struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	OwnerCustomerID uuid.UUID  `db:"owner_customer_id" json:"owner_customer_id"`
	PhoneNumber     string     `db:"phone_number" json:"phone_number"`
	SessionName     string     `db:"session_name" json:"session_name"`
	APIID           int        `db:"api_id" json:"-"`
	APIHash         string     `db:"api_hash" json:"-"`
	Status          string     `db:"status" json:"status"`
	DailyLimit      int        `db:"daily_limit" json:"daily_limit"`
	WarmupStage     int        `db:"warmup_stage" json:"warmup_stage"`
	WarmupStartedAt *time.Time `db:"warmup_started_at" json:"warmup_started_at,omitempty"`
	LastUsedAt      *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// Sendable reports whether the account's persisted status permits sending.
// Health and quota gates are checked separately.
func (a *Account) Sendable() bool {
	return a.Status == AccountWarming || a.Status == AccountActive
}
