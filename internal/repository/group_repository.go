// internal/repository/group_repository.go
package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/tgorbit/tgads-backend/internal/model"
)

type GroupRepositoryInterface interface {
	Create(g *model.Group) error
	GetByID(id uuid.UUID) (*model.Group, error)
	ListActive() ([]*model.Group, error)
}

type GroupRepository struct {
	DB *sql.DB
}

const groupColumns = `id, telegram_id, username, invite_link, title, cooldown_minutes, allow_ads, is_active, created_at`

func scanGroup(row interface{ Scan(...any) error }) (*model.Group, error) {
	var g model.Group
	err := row.Scan(&g.ID, &g.TelegramID, &g.Username, &g.InviteLink, &g.Title, &g.CooldownMinutes, &g.AllowAds, &g.IsActive, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GroupRepository) Create(g *model.Group) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.CooldownMinutes == 0 {
		g.CooldownMinutes = 1440
	}
	g.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO chat_groups (id, telegram_id, username, invite_link, title, cooldown_minutes, allow_ads, is_active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
	_, err := r.DB.Exec(query,
		g.ID, g.TelegramID, g.Username, g.InviteLink, g.Title, g.CooldownMinutes, g.AllowAds, g.IsActive, g.CreatedAt,
	)
	return err
}

func (r *GroupRepository) GetByID(id uuid.UUID) (*model.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM chat_groups WHERE id=$1`
	g, err := scanGroup(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return g, nil
}

func (r *GroupRepository) ListActive() ([]*model.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM chat_groups WHERE is_active=true ORDER BY created_at ASC`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []*model.Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

var _ GroupRepositoryInterface = (*GroupRepository)(nil)
