// internal/repository/usage_repository.go
package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tgorbit/tgads-backend/internal/model"
)

type UsageRepositoryInterface interface {
	EnsureDay(accountID uuid.UUID, day time.Time) (*model.UsageCounter, error)
	Increment(accountID uuid.UUID, day time.Time) error
}

type UsageRepository struct {
	DB *sql.DB
}

const usageColumns = `id, account_id, usage_date, messages_sent, created_at, updated_at`

// EnsureDay lazily creates the (account, day) counter row. The insert races
// with other workers; a duplicate insert is swallowed by ON CONFLICT and
// resolved by the re-read.
func (r *UsageRepository) EnsureDay(accountID uuid.UUID, day time.Time) (*model.UsageCounter, error) {
	date := day.UTC().Truncate(24 * time.Hour)

	insert := `
        INSERT INTO account_daily_usage (id, account_id, usage_date, messages_sent, created_at, updated_at)
        VALUES ($1, $2, $3, 0, NOW(), NOW())
        ON CONFLICT (account_id, usage_date) DO NOTHING
    `
	if _, err := r.DB.Exec(insert, uuid.New(), accountID, date); err != nil {
		return nil, fmt.Errorf("ensure usage row: %w", err)
	}

	query := `SELECT ` + usageColumns + ` FROM account_daily_usage WHERE account_id=$1 AND usage_date=$2`
	var u model.UsageCounter
	err := r.DB.QueryRow(query, accountID, date).Scan(
		&u.ID, &u.AccountID, &u.UsageDate, &u.MessagesSent, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("usage row missing after insert for account %s", accountID)
		}
		return nil, err
	}
	return &u, nil
}

// Increment bumps the durable tally. Monotonic; never reset in place.
func (r *UsageRepository) Increment(accountID uuid.UUID, day time.Time) error {
	date := day.UTC().Truncate(24 * time.Hour)
	query := `
        UPDATE account_daily_usage
        SET messages_sent = messages_sent + 1, updated_at = NOW()
        WHERE account_id=$1 AND usage_date=$2
    `
	_, err := r.DB.Exec(query, accountID, date)
	return err
}

var _ UsageRepositoryInterface = (*UsageRepository)(nil)
