// internal/engine/tick.go
package engine

import (
	"context"
	"fmt"

	"github.com/tgorbit/tgads-backend/internal/health"
	"github.com/tgorbit/tgads-backend/internal/model"
	"github.com/tgorbit/tgads-backend/internal/pricing"
	"github.com/tgorbit/tgads-backend/internal/ratelimit"
	"github.com/tgorbit/tgads-backend/internal/selector"
)

// RunCampaignTick performs one lock-guarded processing pass for a
// campaign: at most one send per eligible account, pacing between sends.
// The caller holds the campaign lock. A forced tick, from a manual run
// trigger, skips the interval gate; every per-account and per-group gate
// still applies.
func (e *Engine) RunCampaignTick(ctx context.Context, c *model.Campaign, forced bool) error {
	customer, err := e.customers.GetByID(c.CustomerID)
	if err != nil {
		return fmt.Errorf("load campaign owner: %w", err)
	}

	plan, err := pricing.GetPlan(customer.SubscriptionTier)
	if err != nil {
		return err
	}

	if !forced {
		due, err := e.limiter.CampaignIntervalPassed(ctx, c.ID.String(), c.Interval())
		if err != nil {
			return err
		}
		if !due {
			// another holder sent while we waited for the lock
			return nil
		}
	}

	accounts, err := e.campaigns.AccountsFor(c.ID)
	if err != nil {
		return fmt.Errorf("load campaign accounts: %w", err)
	}
	accounts = capSendable(accounts, plan.Accounts)
	if len(accounts) == 0 {
		e.log.Warn().Str("campaign_id", c.ID.String()).Msg("campaign has no sendable accounts")
		return nil
	}

	groups, err := e.campaigns.GroupsFor(c.ID)
	if err != nil {
		return fmt.Errorf("load campaign groups: %w", err)
	}
	groups = e.shuffleGroups(activeGroups(groups))
	if len(groups) == 0 {
		e.log.Warn().Str("campaign_id", c.ID.String()).Msg("campaign has no usable groups")
		return nil
	}

	for _, account := range accounts {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		sent, err := e.tickSendForAccount(ctx, c, account, groups)
		if err != nil {
			e.log.Error().Err(err).Str("account_id", account.ID.String()).Msg("tick send failed")
			continue
		}
		if sent {
			if !sleepCtx(ctx, e.humanDelay()) {
				return ctx.Err()
			}
		}
	}
	return nil
}

// tickSendForAccount attempts one send for the account against the first
// group that clears both rate gates. Reports whether a send happened.
func (e *Engine) tickSendForAccount(ctx context.Context, c *model.Campaign, account *model.Account, groups []*model.Group) (bool, error) {
	if err := e.warmup.Apply(account); err != nil {
		return false, fmt.Errorf("apply warmup: %w", err)
	}

	report, err := e.monitor.CheckHealth(ctx, account.ID)
	if err != nil {
		return false, err
	}
	if report.Status == health.StatusBanned || report.Status == health.StatusPaused {
		return false, nil
	}

	for _, group := range groups {
		res, err := e.limiter.CheckAll(ctx, account.ID.String(), account.DailyLimit, group.ID.String(), group.Cooldown())
		if err != nil {
			return false, err
		}
		if !res.Allowed {
			if res.Reason == ratelimit.ReasonAccountDailyLimit {
				// exhausted for the day; no group can help
				return false, nil
			}
			continue
		}

		target := &selector.Target{Campaign: c, Group: group, Message: c.MessageTemplate}
		text := e.variator.Vary(target.Message)

		if sendErr := e.deliver(ctx, account, group.Target(), text); sendErr != nil {
			_, ferr := e.recordFailure(ctx, account, target, text, sendErr)
			return false, ferr
		}
		if _, serr := e.recordSuccess(ctx, account, target, text); serr != nil {
			return true, serr
		}
		return true, nil
	}
	return false, nil
}

// capSendable filters to accounts whose status permits sending and caps
// the result at the plan's account allowance.
func capSendable(accounts []*model.Account, max int) []*model.Account {
	out := make([]*model.Account, 0, len(accounts))
	for _, a := range accounts {
		if !a.Sendable() {
			continue
		}
		out = append(out, a)
		if len(out) == max {
			break
		}
	}
	return out
}

func activeGroups(groups []*model.Group) []*model.Group {
	out := make([]*model.Group, 0, len(groups))
	for _, g := range groups {
		if g.AllowAds && g.IsActive {
			out = append(out, g)
		}
	}
	return out
}
