// internal/repository/health_event_repository.go
package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/tgorbit/tgads-backend/internal/model"
)

type HealthEventRepositoryInterface interface {
	Insert(accountID uuid.UUID, eventType, details string) error
	ListByAccount(accountID uuid.UUID, limit int) ([]*model.HealthEvent, error)
}

type HealthEventRepository struct {
	DB *sql.DB
}

func (r *HealthEventRepository) Insert(accountID uuid.UUID, eventType, details string) error {
	query := `
        INSERT INTO health_events (id, account_id, event_type, details, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `
	_, err := r.DB.Exec(query, uuid.New(), accountID, eventType, details, time.Now().UTC())
	return err
}

func (r *HealthEventRepository) ListByAccount(accountID uuid.UUID, limit int) ([]*model.HealthEvent, error) {
	query := `
        SELECT id, account_id, event_type, details, created_at
        FROM health_events
        WHERE account_id=$1
        ORDER BY created_at DESC
        LIMIT $2
    `
	rows, err := r.DB.Query(query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*model.HealthEvent{}
	for rows.Next() {
		var e model.HealthEvent
		if err := rows.Scan(&e.ID, &e.AccountID, &e.EventType, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

var _ HealthEventRepositoryInterface = (*HealthEventRepository)(nil)
