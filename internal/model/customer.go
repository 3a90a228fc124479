// internal/model/customer.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID               uuid.UUID `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	Email            string    `db:"email" json:"email"`
	APIKey           string    `db:"api_key" json:"-"`
	SubscriptionTier string    `db:"subscription_tier" json:"subscription_tier"`
	IsActive         bool      `db:"is_active" json:"is_active"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
