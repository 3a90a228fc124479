// internal/selector/selector.go

// Package selector picks the next safe (campaign, group) pair for an
// account. Campaigns are scanned oldest first so earlier campaigns are
// preferred each pass without starving later ones.
package selector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tgorbit/tgads-backend/internal/model"
	"github.com/tgorbit/tgads-backend/internal/ratelimit"
)

// CampaignSource is the slice of the campaign repository the selector
// needs.
type CampaignSource interface {
	ListActiveByCustomer(customerID uuid.UUID) ([]*model.Campaign, error)
	GroupsFor(campaignID uuid.UUID) ([]*model.Group, error)
}

// LogSource resolves a campaign's durable last-send time, used when the
// ephemeral marker is missing.
type LogSource interface {
	LastSentAt(campaignID uuid.UUID) (*time.Time, error)
}

// Target is one eligible send: a due campaign, a cooldown-clear group and
// the campaign's message template.
type Target struct {
	Campaign *model.Campaign
	Group    *model.Group
	Message  string
}

type Selector struct {
	campaigns CampaignSource
	logs      LogSource
	limiter   *ratelimit.Limiter
	log       zerolog.Logger
	now       func() time.Time
}

func New(campaigns CampaignSource, logs LogSource, limiter *ratelimit.Limiter, log zerolog.Logger) *Selector {
	return &Selector{
		campaigns: campaigns,
		logs:      logs,
		limiter:   limiter,
		log:       log,
		now:       time.Now,
	}
}

// SetClock replaces the selector's time source. Test hook.
func (s *Selector) SetClock(now func() time.Time) {
	s.now = now
}

// NextTarget returns at most one eligible target for the account, or nil
// when nothing is safe to send.
func (s *Selector) NextTarget(ctx context.Context, account *model.Account) (*Target, error) {
	campaigns, err := s.campaigns.ListActiveByCustomer(account.OwnerCustomerID)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}

	for _, campaign := range campaigns {
		due, err := s.CampaignDue(ctx, campaign)
		if err != nil {
			return nil, err
		}
		if !due {
			continue
		}

		groups, err := s.campaigns.GroupsFor(campaign.ID)
		if err != nil {
			return nil, fmt.Errorf("load campaign groups: %w", err)
		}

		for _, group := range groups {
			if !group.AllowAds || !group.IsActive {
				continue
			}

			res, err := s.limiter.CheckGroupCooldown(ctx, account.ID.String(), group.ID.String(), group.Cooldown())
			if err != nil {
				return nil, err
			}
			if !res.Allowed {
				continue
			}

			s.log.Debug().
				Str("campaign_id", campaign.ID.String()).
				Str("group_id", group.ID.String()).
				Str("account_id", account.ID.String()).
				Msg("target selected")

			return &Target{
				Campaign: campaign,
				Group:    group,
				Message:  campaign.MessageTemplate,
			}, nil
		}
		// this campaign has no cooldown-clear group; try the next one
	}

	return nil, nil
}

// CampaignDue evaluates status, window and interval. The interval is
// measured from the ephemeral last-sent marker, falling back to the
// message log when the marker is missing.
func (s *Selector) CampaignDue(ctx context.Context, c *model.Campaign) (bool, error) {
	if c.Status != model.CampaignActive {
		return false, nil
	}
	if !c.InWindow(s.now()) {
		return false, nil
	}

	last, err := s.limiter.CampaignLastSent(ctx, c.ID.String())
	if err != nil {
		return false, err
	}
	if last == nil {
		last, err = s.logs.LastSentAt(c.ID)
		if err != nil {
			return false, fmt.Errorf("last sent from log: %w", err)
		}
	}
	if last == nil {
		return true, nil
	}
	return !s.now().Before(last.Add(c.Interval())), nil
}
