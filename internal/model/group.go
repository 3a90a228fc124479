// internal/model/group.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Group is a chat-network group or channel that campaigns post into.
type Group struct {
	ID              uuid.UUID `db:"id" json:"id"`
	TelegramID      int64     `db:"telegram_id" json:"telegram_id"`
	Username        string    `db:"username" json:"username"`
	InviteLink      string    `db:"invite_link" json:"invite_link,omitempty"`
	Title           string    `db:"title" json:"title"`
	CooldownMinutes int       `db:"cooldown_minutes" json:"cooldown_minutes"`
	AllowAds        bool      `db:"allow_ads" json:"allow_ads"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Cooldown returns the per-group cooldown as a duration.
func (g *Group) Cooldown() time.Duration {
	return time.Duration(g.CooldownMinutes) * time.Minute
}

// Target is the identifier handed to the transport layer: the public
// username when the group has one, otherwise its invite link.
func (g *Group) Target() string {
	if g.Username != "" {
		return g.Username
	}
	return g.InviteLink
}
