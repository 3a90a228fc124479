// internal/repository/campaign_repository.go
package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/tgorbit/tgads-backend/internal/apperr"
	"github.com/tgorbit/tgads-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	Update(c *model.Campaign) error
	UpdateStatus(id uuid.UUID, status string) error
	GetByID(id uuid.UUID) (*model.Campaign, error)
	ListByCustomer(customerID uuid.UUID) ([]*model.Campaign, error)
	ListActive() ([]*model.Campaign, error)
	ListActiveByCustomer(customerID uuid.UUID) ([]*model.Campaign, error)
	GroupsFor(campaignID uuid.UUID) ([]*model.Group, error)
	AccountsFor(campaignID uuid.UUID) ([]*model.Account, error)
	AttachGroups(campaignID uuid.UUID, groupIDs []uuid.UUID) error
	AttachAccounts(campaignID uuid.UUID, accountIDs []uuid.UUID) error
	AttachMarketLists(campaignID uuid.UUID, listIDs []uuid.UUID) error
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, customer_id, name, message_template, interval_minutes, start_at, end_at, status, created_at`

func scanCampaign(row interface{ Scan(...any) error }) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(
		&c.ID, &c.CustomerID, &c.Name, &c.MessageTemplate,
		&c.IntervalMinutes, &c.StartAt, &c.EndAt, &c.Status, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) Create(c *model.Campaign) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	c.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO campaigns (id, customer_id, name, message_template, interval_minutes, start_at, end_at, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
	_, err := r.DB.Exec(query,
		c.ID, c.CustomerID, c.Name, c.MessageTemplate,
		c.IntervalMinutes, c.StartAt, c.EndAt, c.Status, c.CreatedAt,
	)
	return err
}

func (r *CampaignRepository) Update(c *model.Campaign) error {
	query := `
        UPDATE campaigns
        SET name=$1, message_template=$2, interval_minutes=$3, start_at=$4, end_at=$5, status=$6
        WHERE id=$7
    `
	_, err := r.DB.Exec(query,
		c.Name, c.MessageTemplate, c.IntervalMinutes, c.StartAt, c.EndAt, c.Status, c.ID,
	)
	return err
}

func (r *CampaignRepository) UpdateStatus(id uuid.UUID, status string) error {
	query := `UPDATE campaigns SET status=$1 WHERE id=$2`
	_, err := r.DB.Exec(query, status, id)
	return err
}

func (r *CampaignRepository) GetByID(id uuid.UUID) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) listCampaigns(query string, args ...any) ([]*model.Campaign, error) {
	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (r *CampaignRepository) ListByCustomer(customerID uuid.UUID) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE customer_id=$1 ORDER BY created_at ASC`
	return r.listCampaigns(query, customerID)
}

func (r *CampaignRepository) ListActive() ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE status=$1 ORDER BY created_at ASC`
	return r.listCampaigns(query, model.CampaignActive)
}

// ListActiveByCustomer orders oldest first so earlier campaigns are
// preferred on each selection pass.
func (r *CampaignRepository) ListActiveByCustomer(customerID uuid.UUID) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE customer_id=$1 AND status=$2 ORDER BY created_at ASC`
	return r.listCampaigns(query, customerID, model.CampaignActive)
}

// GroupsFor returns the campaign's target groups: directly attached
// ones plus the groups of every attached market list, deduplicated.
func (r *CampaignRepository) GroupsFor(campaignID uuid.UUID) ([]*model.Group, error) {
	query := `
        SELECT g.id, g.telegram_id, g.username, g.invite_link, g.title, g.cooldown_minutes, g.allow_ads, g.is_active, g.created_at
        FROM chat_groups g
        WHERE g.id IN (
            SELECT group_id FROM campaign_groups WHERE campaign_id = $1
            UNION
            SELECT mlg.group_id
            FROM campaign_market_lists cml
            JOIN market_list_groups mlg ON mlg.market_list_id = cml.market_list_id
            WHERE cml.campaign_id = $1
        )
        ORDER BY g.created_at ASC
    `
	rows, err := r.DB.Query(query, campaignID)
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

func (r *CampaignRepository) AccountsFor(campaignID uuid.UUID) ([]*model.Account, error) {
	query := `
        SELECT ` + accountColumnList("a") + `
        FROM accounts a
        JOIN campaign_accounts ca ON ca.account_id = a.id
        WHERE ca.campaign_id = $1
        ORDER BY a.last_used_at ASC NULLS FIRST
    `
	return listAccounts(r.DB, query, campaignID)
}

func (r *CampaignRepository) AttachGroups(campaignID uuid.UUID, groupIDs []uuid.UUID) error {
	query := `
        INSERT INTO campaign_groups (campaign_id, group_id, position)
        VALUES ($1, $2, $3)
        ON CONFLICT DO NOTHING
    `
	for i, gid := range groupIDs {
		if _, err := r.DB.Exec(query, campaignID, gid, i); err != nil {
			return err
		}
	}
	return nil
}

func (r *CampaignRepository) AttachAccounts(campaignID uuid.UUID, accountIDs []uuid.UUID) error {
	query := `
        INSERT INTO campaign_accounts (campaign_id, account_id)
        VALUES ($1, $2)
        ON CONFLICT DO NOTHING
    `
	for _, aid := range accountIDs {
		if _, err := r.DB.Exec(query, campaignID, aid); err != nil {
			return err
		}
	}
	return nil
}

func (r *CampaignRepository) AttachMarketLists(campaignID uuid.UUID, listIDs []uuid.UUID) error {
	query := `
        INSERT INTO campaign_market_lists (campaign_id, market_list_id)
        VALUES ($1, $2)
        ON CONFLICT DO NOTHING
    `
	for _, lid := range listIDs {
		if _, err := r.DB.Exec(query, campaignID, lid); err != nil {
			return err
		}
	}
	return nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
