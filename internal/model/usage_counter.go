// internal/model/usage_counter.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// UsageCounter is the durable per-(account, day) send tally. The redis
// counter enforces the limit; this row is the accounting record.
type UsageCounter struct {
	ID           uuid.UUID `db:"id" json:"id"`
	AccountID    uuid.UUID `db:"account_id" json:"account_id"`
	UsageDate    time.Time `db:"usage_date" json:"usage_date"`
	MessagesSent int       `db:"messages_sent" json:"messages_sent"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
