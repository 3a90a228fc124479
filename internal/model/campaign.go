// internal/model/campaign.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Campaign statuses. Values are part of the persisted contract.
const (
	CampaignDraft     = "draft"
	CampaignActive    = "active"
	CampaignPaused    = "paused"
	CampaignCompleted = "completed"
)

type Campaign struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	CustomerID      uuid.UUID  `db:"customer_id" json:"customer_id"`
	Name            string     `db:"name" json:"name"`
	MessageTemplate string     `db:"message_template" json:"message_template"`
	IntervalMinutes int        `db:"interval_minutes" json:"interval_minutes"`
	StartAt         *time.Time `db:"start_at" json:"start_at,omitempty"`
	EndAt           *time.Time `db:"end_at" json:"end_at,omitempty"`
	Status          string     `db:"status" json:"status"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// Interval returns the configured send interval as a duration.
func (c *Campaign) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// InWindow reports whether now falls inside the campaign's optional
// start/end window. Unset bounds are open-ended.
func (c *Campaign) InWindow(now time.Time) bool {
	if c.StartAt != nil && now.Before(*c.StartAt) {
		return false
	}
	if c.EndAt != nil && now.After(*c.EndAt) {
		return false
	}
	return true
}
