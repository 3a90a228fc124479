// internal/service/account_service.go
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tgorbit/tgads-backend/internal/apperr"
	"github.com/tgorbit/tgads-backend/internal/health"
	"github.com/tgorbit/tgads-backend/internal/model"
	"github.com/tgorbit/tgads-backend/internal/repository"
)

type AccountService struct {
	AccountRepo     repository.AccountRepositoryInterface
	CustomerRepo    repository.CustomerRepositoryInterface
	HealthEventRepo repository.HealthEventRepositoryInterface
	Monitor         *health.Monitor
}

// CreateAccountInput carries the session credentials for a new account.
type CreateAccountInput struct {
	OwnerCustomerID uuid.UUID
	PhoneNumber     string
	SessionName     string
	APIID           int
	APIHash         string
}

// CreateAccount registers a new account in the warming state. The warmup
// controller takes over from the first worker iteration.
func (s *AccountService) CreateAccount(in CreateAccountInput) (*model.Account, error) {
	if in.PhoneNumber == "" {
		return nil, &apperr.BusinessRuleError{Rule: "PHONE_REQUIRED", Detail: "phone number must not be empty"}
	}
	if in.SessionName == "" {
		return nil, &apperr.BusinessRuleError{Rule: "SESSION_REQUIRED", Detail: "session name must not be empty"}
	}

	customer, err := s.CustomerRepo.GetByID(in.OwnerCustomerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, fmt.Errorf("customer %s not found", in.OwnerCustomerID)
	}

	account := &model.Account{
		OwnerCustomerID: in.OwnerCustomerID,
		PhoneNumber:     in.PhoneNumber,
		SessionName:     in.SessionName,
		APIID:           in.APIID,
		APIHash:         in.APIHash,
		Status:          model.AccountWarming,
	}
	if err := s.AccountRepo.Create(account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *AccountService) GetAccount(id uuid.UUID) (*model.Account, error) {
	return s.AccountRepo.GetByID(id)
}

func (s *AccountService) ListAccounts(customerID uuid.UUID) ([]*model.Account, error) {
	return s.AccountRepo.ListByCustomer(customerID)
}

// SetStatus updates the persisted status. Reactivating a banned account
// also clears its ephemeral ban marker so health checks stop reporting
// banned; this is the manual-intervention path.
func (s *AccountService) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !validAccountStatus(status) {
		return &apperr.BusinessRuleError{
			Rule:   "INVALID_STATUS",
			Detail: fmt.Sprintf("unknown account status %q", status),
		}
	}

	account, err := s.AccountRepo.GetByID(id)
	if err != nil {
		return err
	}

	if account.Status == model.AccountBanned && status != model.AccountBanned {
		if err := s.Monitor.ClearBan(ctx, id); err != nil {
			return fmt.Errorf("clear ban marker: %w", err)
		}
	}
	return s.AccountRepo.UpdateStatus(id, status)
}

// HealthReport combines the live derived state with recent durable
// events.
type HealthReport struct {
	Status string               `json:"status"`
	Reason string               `json:"reason,omitempty"`
	Events []*model.HealthEvent `json:"events"`
}

func (s *AccountService) AccountHealth(ctx context.Context, id uuid.UUID) (*HealthReport, error) {
	report, err := s.Monitor.CheckHealth(ctx, id)
	if err != nil {
		return nil, err
	}

	events, err := s.HealthEventRepo.ListByAccount(id, 20)
	if err != nil {
		return nil, err
	}

	return &HealthReport{Status: report.Status, Reason: report.Reason, Events: events}, nil
}

func validAccountStatus(status string) bool {
	switch status {
	case model.AccountWarming, model.AccountActive, model.AccountPaused,
		model.AccountRestricted, model.AccountBanned:
		return true
	}
	return false
}
