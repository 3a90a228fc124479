// internal/repository/market_list_repository.go
package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/tgorbit/tgads-backend/internal/model"
)

type MarketListRepositoryInterface interface {
	Create(l *model.MarketList) error
	GetByID(id uuid.UUID) (*model.MarketList, error)
	ListByCustomer(customerID uuid.UUID) ([]*model.MarketList, error)
	ListByIDsForCustomer(customerID uuid.UUID, ids []uuid.UUID) ([]*model.MarketList, error)
	AddGroup(listID, groupID uuid.UUID) error
	RemoveGroup(listID, groupID uuid.UUID) error
	GroupsFor(listID uuid.UUID) ([]*model.Group, error)
}

type MarketListRepository struct {
	DB *sql.DB
}

const marketListColumns = `id, customer_id, name, created_at`

func scanMarketList(row interface{ Scan(...any) error }) (*model.MarketList, error) {
	var l model.MarketList
	err := row.Scan(&l.ID, &l.CustomerID, &l.Name, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *MarketListRepository) Create(l *model.MarketList) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	l.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO market_lists (id, customer_id, name, created_at)
        VALUES ($1, $2, $3, $4)
    `
	_, err := r.DB.Exec(query, l.ID, l.CustomerID, l.Name, l.CreatedAt)
	return err
}

func (r *MarketListRepository) GetByID(id uuid.UUID) (*model.MarketList, error) {
	query := `SELECT ` + marketListColumns + ` FROM market_lists WHERE id=$1`
	l, err := scanMarketList(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}

func (r *MarketListRepository) listMarketLists(query string, args ...any) ([]*model.MarketList, error) {
	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lists := []*model.MarketList{}
	for rows.Next() {
		l, err := scanMarketList(rows)
		if err != nil {
			return nil, err
		}
		lists = append(lists, l)
	}
	return lists, rows.Err()
}

func (r *MarketListRepository) ListByCustomer(customerID uuid.UUID) ([]*model.MarketList, error) {
	query := `SELECT ` + marketListColumns + ` FROM market_lists WHERE customer_id=$1 ORDER BY created_at ASC`
	return r.listMarketLists(query, customerID)
}

// ListByIDsForCustomer resolves the requested ids, silently dropping any
// that belong to another customer.
func (r *MarketListRepository) ListByIDsForCustomer(customerID uuid.UUID, ids []uuid.UUID) ([]*model.MarketList, error) {
	query := `SELECT ` + marketListColumns + ` FROM market_lists WHERE customer_id=$1 AND id = ANY($2) ORDER BY created_at ASC`
	return r.listMarketLists(query, customerID, pq.Array(ids))
}

func (r *MarketListRepository) AddGroup(listID, groupID uuid.UUID) error {
	query := `
        INSERT INTO market_list_groups (market_list_id, group_id)
        VALUES ($1, $2)
        ON CONFLICT DO NOTHING
    `
	_, err := r.DB.Exec(query, listID, groupID)
	return err
}

func (r *MarketListRepository) RemoveGroup(listID, groupID uuid.UUID) error {
	query := `DELETE FROM market_list_groups WHERE market_list_id=$1 AND group_id=$2`
	_, err := r.DB.Exec(query, listID, groupID)
	return err
}

func (r *MarketListRepository) GroupsFor(listID uuid.UUID) ([]*model.Group, error) {
	query := `
        SELECT g.id, g.telegram_id, g.username, g.invite_link, g.title, g.cooldown_minutes, g.allow_ads, g.is_active, g.created_at
        FROM chat_groups g
        JOIN market_list_groups mlg ON mlg.group_id = g.id
        WHERE mlg.market_list_id = $1
        ORDER BY g.created_at ASC
    `
	rows, err := r.DB.Query(query, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []*model.Group{}
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.TelegramID, &g.Username, &g.InviteLink, &g.Title, &g.CooldownMinutes, &g.AllowAds, &g.IsActive, &g.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, &g)
	}
	return groups, rows.Err()
}

var _ MarketListRepositoryInterface = (*MarketListRepository)(nil)
