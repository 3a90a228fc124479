// internal/repository/message_log_repository.go
package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/tgorbit/tgads-backend/internal/model"
)

type MessageLogRepositoryInterface interface {
	Insert(l *model.MessageLog) error
	ListByCampaign(campaignID uuid.UUID, offset, limit int) ([]*model.MessageLog, int, error)
	LastSentAt(campaignID uuid.UUID) (*time.Time, error)
}

type MessageLogRepository struct {
	DB *sql.DB
}

// Insert appends one attempt record. Logs are never updated afterwards.
func (r *MessageLogRepository) Insert(l *model.MessageLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.SentAt.IsZero() {
		l.SentAt = time.Now().UTC()
	}

	query := `
        INSERT INTO message_logs (id, campaign_id, account_id, group_id, target, message_text, status, error_code, flood_wait_seconds, sent_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `
	_, err := r.DB.Exec(query,
		l.ID, l.CampaignID, l.AccountID, l.GroupID, l.Target,
		l.MessageText, l.Status, l.ErrorCode, l.FloodSeconds, l.SentAt,
	)
	return err
}

func (r *MessageLogRepository) ListByCampaign(campaignID uuid.UUID, offset, limit int) ([]*model.MessageLog, int, error) {
	query := `
        SELECT id, campaign_id, account_id, group_id, target, message_text, status, error_code, flood_wait_seconds, sent_at
        FROM message_logs
        WHERE campaign_id=$1
        ORDER BY sent_at DESC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.DB.Query(query, campaignID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	logs := []*model.MessageLog{}
	for rows.Next() {
		var l model.MessageLog
		if err := rows.Scan(&l.ID, &l.CampaignID, &l.AccountID, &l.GroupID, &l.Target, &l.MessageText, &l.Status, &l.ErrorCode, &l.FloodSeconds, &l.SentAt); err != nil {
			return nil, 0, err
		}
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.DB.QueryRow(`SELECT COUNT(*) FROM message_logs WHERE campaign_id=$1`, campaignID).Scan(&total); err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

// LastSentAt is the durable fallback for campaign interval checks when the
// ephemeral last-sent marker is missing.
func (r *MessageLogRepository) LastSentAt(campaignID uuid.UUID) (*time.Time, error) {
	query := `
        SELECT sent_at FROM message_logs
        WHERE campaign_id=$1 AND status=$2
        ORDER BY sent_at DESC
        LIMIT 1
    `
	var sentAt time.Time
	err := r.DB.QueryRow(query, campaignID, model.LogSent).Scan(&sentAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &sentAt, nil
}

var _ MessageLogRepositoryInterface = (*MessageLogRepository)(nil)
