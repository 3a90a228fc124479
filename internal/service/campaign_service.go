// internal/service/campaign_service.go

// Package service holds the business-rule layer between the HTTP
// controllers and the repositories.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tgorbit/tgads-backend/internal/apperr"
	"github.com/tgorbit/tgads-backend/internal/kv"
	"github.com/tgorbit/tgads-backend/internal/model"
	"github.com/tgorbit/tgads-backend/internal/pricing"
	"github.com/tgorbit/tgads-backend/internal/repository"
)

// runRequestTTL bounds how long a manual run trigger waits for an engine
// to pick it up.
const runRequestTTL = 5 * time.Minute

type CampaignService struct {
	CampaignRepo   repository.CampaignRepositoryInterface
	CustomerRepo   repository.CustomerRepositoryInterface
	LogRepo        repository.MessageLogRepositoryInterface
	MarketListRepo repository.MarketListRepositoryInterface
	Store          kv.Store
}

// CreateCampaignInput carries everything needed to create a campaign and
// wire its targets in one call.
type CreateCampaignInput struct {
	CustomerID      uuid.UUID
	Name            string
	MessageTemplate string
	IntervalMinutes int
	StartAt         *time.Time
	EndAt           *time.Time
	GroupIDs        []uuid.UUID
	AccountIDs      []uuid.UUID
}

// CreateCampaign validates against the owner's plan, persists the
// campaign as a draft and attaches its groups and accounts.
func (s *CampaignService) CreateCampaign(in CreateCampaignInput) (*model.Campaign, error) {
	if in.Name == "" {
		return nil, &apperr.BusinessRuleError{Rule: "NAME_REQUIRED", Detail: "campaign name must not be empty"}
	}
	if in.MessageTemplate == "" {
		return nil, &apperr.BusinessRuleError{Rule: "TEMPLATE_REQUIRED", Detail: "message template must not be empty"}
	}
	if in.IntervalMinutes <= 0 {
		return nil, &apperr.BusinessRuleError{Rule: "INTERVAL_REQUIRED", Detail: "interval must be positive"}
	}

	customer, err := s.CustomerRepo.GetByID(in.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, fmt.Errorf("customer %s not found", in.CustomerID)
	}

	campaign := &model.Campaign{
		CustomerID:      in.CustomerID,
		Name:            in.Name,
		MessageTemplate: in.MessageTemplate,
		IntervalMinutes: in.IntervalMinutes,
		StartAt:         in.StartAt,
		EndAt:           in.EndAt,
		Status:          model.CampaignDraft,
	}

	if err := pricing.ValidateCampaign(campaign, customer.SubscriptionTier); err != nil {
		return nil, err
	}

	if err := s.CampaignRepo.Create(campaign); err != nil {
		return nil, err
	}

	if len(in.GroupIDs) > 0 {
		if err := s.CampaignRepo.AttachGroups(campaign.ID, in.GroupIDs); err != nil {
			return nil, err
		}
	}
	if len(in.AccountIDs) > 0 {
		if err := s.CampaignRepo.AttachAccounts(campaign.ID, in.AccountIDs); err != nil {
			return nil, err
		}
	}

	return campaign, nil
}

// UpdateCampaign re-validates the interval against the owner's plan
// before persisting changes.
func (s *CampaignService) UpdateCampaign(campaign *model.Campaign) error {
	customer, err := s.CustomerRepo.GetByID(campaign.CustomerID)
	if err != nil {
		return err
	}
	if customer == nil {
		return fmt.Errorf("customer %s not found", campaign.CustomerID)
	}

	if err := pricing.ValidateCampaign(campaign, customer.SubscriptionTier); err != nil {
		return err
	}
	return s.CampaignRepo.Update(campaign)
}

// SetStatus enforces the campaign lifecycle: draft → active → paused →
// active, with completed as a terminal state.
func (s *CampaignService) SetStatus(id uuid.UUID, status string) error {
	campaign, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return err
	}

	if !validTransition(campaign.Status, status) {
		return &apperr.BusinessRuleError{
			Rule:   "INVALID_STATUS_TRANSITION",
			Detail: fmt.Sprintf("cannot move campaign from %s to %s", campaign.Status, status),
		}
	}
	return s.CampaignRepo.UpdateStatus(id, status)
}

func validTransition(from, to string) bool {
	switch from {
	case model.CampaignDraft:
		return to == model.CampaignActive
	case model.CampaignActive:
		return to == model.CampaignPaused || to == model.CampaignCompleted
	case model.CampaignPaused:
		return to == model.CampaignActive || to == model.CampaignCompleted
	default:
		return false
	}
}

func (s *CampaignService) GetCampaign(id uuid.UUID) (*model.Campaign, error) {
	return s.CampaignRepo.GetByID(id)
}

func (s *CampaignService) ListCampaigns(customerID uuid.UUID) ([]*model.Campaign, error) {
	return s.CampaignRepo.ListByCustomer(customerID)
}

// AttachMarketLists wires the given market lists to the campaign. Lists
// owned by other customers are dropped; attaching nothing valid is an
// error, matching the behavior of attaching unknown groups.
func (s *CampaignService) AttachMarketLists(campaignID, customerID uuid.UUID, listIDs []uuid.UUID) error {
	lists, err := s.MarketListRepo.ListByIDsForCustomer(customerID, listIDs)
	if err != nil {
		return err
	}
	if len(lists) == 0 {
		return &apperr.BusinessRuleError{
			Rule:   "NO_VALID_MARKET_LISTS",
			Detail: "no valid market lists selected",
		}
	}

	validIDs := make([]uuid.UUID, len(lists))
	for i, l := range lists {
		validIDs[i] = l.ID
	}
	return s.CampaignRepo.AttachMarketLists(campaignID, validIDs)
}

// TriggerRun requests an immediate processing pass for an active
// campaign. The engine consumes the marker on its next scheduler tick and
// runs the campaign under its usual lock, bypassing the interval gate.
func (s *CampaignService) TriggerRun(ctx context.Context, id uuid.UUID) error {
	campaign, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return err
	}
	if campaign.Status != model.CampaignActive {
		return &apperr.BusinessRuleError{
			Rule:   "CAMPAIGN_NOT_ACTIVE",
			Detail: fmt.Sprintf("cannot trigger a %s campaign", campaign.Status),
		}
	}
	return s.Store.Set(ctx, kv.CampaignRunRequestKey(id.String()), "1", runRequestTTL)
}

// CampaignHistory returns a page of the campaign's message log plus the
// total row count for pagination.
func (s *CampaignService) CampaignHistory(id uuid.UUID, page, pageSize int) ([]*model.MessageLog, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	return s.LogRepo.ListByCampaign(id, (page-1)*pageSize, pageSize)
}
