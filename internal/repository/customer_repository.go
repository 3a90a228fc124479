// internal/repository/customer_repository.go
package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/tgorbit/tgads-backend/internal/model"
)

type CustomerRepositoryInterface interface {
	Create(c *model.Customer) error
	GetByID(id uuid.UUID) (*model.Customer, error)
	GetByAPIKey(apiKey string) (*model.Customer, error)
	ListAll() ([]*model.Customer, error)
}

type CustomerRepository struct {
	DB *sql.DB
}

const customerColumns = `id, name, email, api_key, subscription_tier, is_active, created_at`

func scanCustomer(row interface{ Scan(...any) error }) (*model.Customer, error) {
	var c model.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.APIKey, &c.SubscriptionTier, &c.IsActive, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepository) Create(c *model.Customer) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO customers (id, name, email, api_key, subscription_tier, is_active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := r.DB.Exec(query, c.ID, c.Name, c.Email, c.APIKey, c.SubscriptionTier, c.IsActive, c.CreatedAt)
	return err
}

func (r *CustomerRepository) GetByID(id uuid.UUID) (*model.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id=$1`
	c, err := scanCustomer(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (r *CustomerRepository) GetByAPIKey(apiKey string) (*model.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE api_key=$1 AND is_active=true`
	c, err := scanCustomer(r.DB.QueryRow(query, apiKey))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (r *CustomerRepository) ListAll() ([]*model.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers ORDER BY created_at ASC`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := []*model.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

var _ CustomerRepositoryInterface = (*CustomerRepository)(nil)
