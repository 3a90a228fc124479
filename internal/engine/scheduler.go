// internal/engine/scheduler.go
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tgorbit/tgads-backend/internal/kv"
	"github.com/tgorbit/tgads-backend/internal/model"
)

// RunScheduler polls active campaigns on a fixed tick and fires a
// lock-guarded processing pass for each due one. Only cancellation stops
// the loop.
func (e *Engine) RunScheduler(ctx context.Context) {
	e.log.Info().Dur("tick", e.tickPeriod).Msg("campaign scheduler started")

	ticker := time.NewTicker(e.tickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("campaign scheduler stopped")
			return
		case <-ticker.C:
			if err := e.scheduleDueCampaigns(ctx); err != nil {
				e.log.Error().Err(err).Msg("scheduler tick failed")
			}
		}
	}
}

func (e *Engine) scheduleDueCampaigns(ctx context.Context) error {
	campaigns, err := e.campaigns.ListActive()
	if err != nil {
		return err
	}

	for _, c := range campaigns {
		forced, err := e.consumeRunRequest(ctx, c.ID)
		if err != nil {
			e.log.Error().Err(err).Str("campaign_id", c.ID.String()).Msg("run-request check failed")
			continue
		}

		if !forced {
			due, err := e.selector.CampaignDue(ctx, c)
			if err != nil {
				e.log.Error().Err(err).Str("campaign_id", c.ID.String()).Msg("due-ness check failed")
				continue
			}
			if !due {
				continue
			}
		}

		acquired, err := e.acquireCampaignLock(ctx, c.ID)
		if err != nil {
			e.log.Error().Err(err).Str("campaign_id", c.ID.String()).Msg("lock acquire failed")
			continue
		}
		if !acquired {
			// another tick already holds this campaign; not an error
			continue
		}

		go e.runLockedTick(ctx, c, forced)
	}
	return nil
}

// consumeRunRequest reports and clears a pending manual-run marker. The
// campaign lock still serializes the actual tick, so a double consume
// across engine instances is harmless.
func (e *Engine) consumeRunRequest(ctx context.Context, campaignID uuid.UUID) (bool, error) {
	key := kv.CampaignRunRequestKey(campaignID.String())
	requested, err := e.store.Exists(ctx, key)
	if err != nil || !requested {
		return false, err
	}
	if err := e.store.Del(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}

// acquireCampaignLock takes the campaign's ephemeral lock. The TTL bounds
// the damage of a crashed holder: the lock self-expires and the campaign
// becomes schedulable again.
func (e *Engine) acquireCampaignLock(ctx context.Context, campaignID uuid.UUID) (bool, error) {
	return e.store.SetNX(ctx, kv.CampaignLockKey(campaignID.String()), "1", e.lockTTL)
}

func (e *Engine) releaseCampaignLock(campaignID uuid.UUID) {
	// release must survive tick-ctx cancellation, so it gets a fresh ctx
	if err := e.store.Del(context.Background(), kv.CampaignLockKey(campaignID.String())); err != nil {
		e.log.Error().Err(err).Str("campaign_id", campaignID.String()).Msg("lock release failed")
	}
}

func (e *Engine) runLockedTick(ctx context.Context, c *model.Campaign, forced bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Str("campaign_id", c.ID.String()).Msg("campaign tick panicked")
		}
		e.releaseCampaignLock(c.ID)
	}()

	if err := e.RunCampaignTick(ctx, c, forced); err != nil {
		e.log.Error().Err(err).Str("campaign_id", c.ID.String()).Msg("campaign tick failed")
	}
}
