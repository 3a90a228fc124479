// internal/model/market_list.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// MarketList is a named, reusable collection of groups owned by a
// customer. Campaigns can target a list instead of attaching groups one
// by one.
type MarketList struct {
	ID         uuid.UUID `db:"id" json:"id"`
	CustomerID uuid.UUID `db:"customer_id" json:"customer_id"`
	Name       string    `db:"name" json:"name"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
