// internal/repository/account_repository.go
package repository

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tgorbit/tgads-backend/internal/apperr"
	"github.com/tgorbit/tgads-backend/internal/model"
)

type AccountRepositoryInterface interface {
	Create(a *model.Account) error
	GetByID(id uuid.UUID) (*model.Account, error)
	ListAll() ([]*model.Account, error)
	ListByCustomer(customerID uuid.UUID) ([]*model.Account, error)
	ListSendable() ([]*model.Account, error)
	UpdateStatus(id uuid.UUID, status string) error
	UpdateWarmup(a *model.Account) error
	UpdateDailyLimit(id uuid.UUID, limit int) error
	TouchLastUsed(id uuid.UUID, at time.Time) error
}

type AccountRepository struct {
	DB *sql.DB
}

var accountColumns = []string{
	"id", "owner_customer_id", "phone_number", "session_name",
	"api_id", "api_hash", "status", "daily_limit",
	"warmup_stage", "warmup_started_at", "last_used_at", "created_at",
}

func accountColumnList(prefix string) string {
	cols := make([]string, len(accountColumns))
	for i, c := range accountColumns {
		if prefix != "" {
			cols[i] = prefix + "." + c
		} else {
			cols[i] = c
		}
	}
	return strings.Join(cols, ", ")
}

func scanAccount(row interface{ Scan(...any) error }) (*model.Account, error) {
	var a model.Account
	err := row.Scan(
		&a.ID, &a.OwnerCustomerID, &a.PhoneNumber, &a.SessionName,
		&a.APIID, &a.APIHash, &a.Status, &a.DailyLimit,
		&a.WarmupStage, &a.WarmupStartedAt, &a.LastUsedAt, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func listAccounts(db *sql.DB, query string, args ...any) ([]*model.Account, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []*model.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *AccountRepository) Create(a *model.Account) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = model.AccountWarming
	}
	a.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO accounts (id, owner_customer_id, phone_number, session_name, api_id, api_hash, status, daily_limit, warmup_stage, warmup_started_at, last_used_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `
	_, err := r.DB.Exec(query,
		a.ID, a.OwnerCustomerID, a.PhoneNumber, a.SessionName,
		a.APIID, a.APIHash, a.Status, a.DailyLimit,
		a.WarmupStage, a.WarmupStartedAt, a.LastUsedAt, a.CreatedAt,
	)
	return err
}

func (r *AccountRepository) GetByID(id uuid.UUID) (*model.Account, error) {
	query := `SELECT ` + accountColumnList("") + ` FROM accounts WHERE id=$1`
	a, err := scanAccount(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NewAccountNotFound(id)
		}
		return nil, err
	}
	return a, nil
}

func (r *AccountRepository) ListAll() ([]*model.Account, error) {
	query := `SELECT ` + accountColumnList("") + ` FROM accounts ORDER BY created_at ASC`
	return listAccounts(r.DB, query)
}

func (r *AccountRepository) ListByCustomer(customerID uuid.UUID) ([]*model.Account, error) {
	query := `SELECT ` + accountColumnList("") + ` FROM accounts WHERE owner_customer_id=$1 ORDER BY last_used_at ASC NULLS FIRST`
	return listAccounts(r.DB, query, customerID)
}

// ListSendable returns accounts whose persisted status permits sending,
// least-recently-used first.
func (r *AccountRepository) ListSendable() ([]*model.Account, error) {
	query := `SELECT ` + accountColumnList("") + ` FROM accounts WHERE status IN ($1, $2) ORDER BY last_used_at ASC NULLS FIRST`
	return listAccounts(r.DB, query, model.AccountWarming, model.AccountActive)
}

func (r *AccountRepository) UpdateStatus(id uuid.UUID, status string) error {
	query := `UPDATE accounts SET status=$1 WHERE id=$2`
	_, err := r.DB.Exec(query, status, id)
	return err
}

// UpdateWarmup persists the fields the warmup controller mutates.
func (r *AccountRepository) UpdateWarmup(a *model.Account) error {
	query := `
        UPDATE accounts
        SET status=$1, daily_limit=$2, warmup_stage=$3, warmup_started_at=$4
        WHERE id=$5
    `
	_, err := r.DB.Exec(query, a.Status, a.DailyLimit, a.WarmupStage, a.WarmupStartedAt, a.ID)
	return err
}

func (r *AccountRepository) UpdateDailyLimit(id uuid.UUID, limit int) error {
	query := `UPDATE accounts SET daily_limit=$1 WHERE id=$2`
	_, err := r.DB.Exec(query, limit, id)
	return err
}

func (r *AccountRepository) TouchLastUsed(id uuid.UUID, at time.Time) error {
	query := `UPDATE accounts SET last_used_at=$1 WHERE id=$2`
	_, err := r.DB.Exec(query, at, id)
	return err
}

var _ AccountRepositoryInterface = (*AccountRepository)(nil)
