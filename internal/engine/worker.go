// internal/engine/worker.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tgorbit/tgads-backend/internal/health"
	"github.com/tgorbit/tgads-backend/internal/model"
	"github.com/tgorbit/tgads-backend/internal/selector"
	"github.com/tgorbit/tgads-backend/internal/transport"
)

// RunWorker runs the send loop for one account until ctx is cancelled.
// Every fault is absorbed at this boundary; only cancellation stops the
// loop.
func (e *Engine) RunWorker(ctx context.Context, account *model.Account) {
	log := e.log.With().Str("account_id", account.ID.String()).Logger()
	log.Info().Str("phone", account.PhoneNumber).Msg("send worker started")

	for {
		delay, err := e.runOnce(ctx, account)
		if err != nil {
			log.Error().Err(err).Msg("worker iteration failed")
			if delay <= 0 {
				delay = protocolBackoff
			}
		}
		if !sleepCtx(ctx, delay) {
			log.Info().Msg("send worker stopped")
			return
		}
	}
}

// runOnce performs a single worker iteration and returns the pause before
// the next one. Factored out of RunWorker so tests can drive iterations
// directly.
func (e *Engine) runOnce(ctx context.Context, account *model.Account) (time.Duration, error) {
	// re-read the row so status changes made through the API are observed
	// by a running worker
	if fresh, err := e.accounts.GetByID(account.ID); err != nil {
		return protocolBackoff, fmt.Errorf("reload account: %w", err)
	} else if fresh != nil {
		*account = *fresh
	}
	if !account.Sendable() {
		if account.Status == model.AccountBanned {
			return bannedRecheck, nil
		}
		return statusRecheck, nil
	}

	if _, err := e.usage.EnsureDay(account.ID, e.now()); err != nil {
		return protocolBackoff, fmt.Errorf("ensure usage day: %w", err)
	}

	if err := e.warmup.Apply(account); err != nil {
		return protocolBackoff, fmt.Errorf("apply warmup: %w", err)
	}

	report, err := e.monitor.CheckHealth(ctx, account.ID)
	if err != nil {
		return protocolBackoff, err
	}
	switch report.Status {
	case health.StatusBanned:
		if account.Status != model.AccountBanned {
			account.Status = model.AccountBanned
			if uerr := e.accounts.UpdateStatus(account.ID, model.AccountBanned); uerr != nil {
				return bannedRecheck, fmt.Errorf("persist banned status: %w", uerr)
			}
		}
		return bannedRecheck, nil
	case health.StatusPaused:
		return report.RetryAfter, nil
	}

	res, err := e.limiter.CheckAccountLimit(ctx, account.ID.String(), account.DailyLimit)
	if err != nil {
		return protocolBackoff, err
	}
	if !res.Allowed {
		return res.RetryAfter, nil
	}

	target, err := e.selector.NextTarget(ctx, account)
	if err != nil {
		return protocolBackoff, err
	}
	if target == nil {
		return idleDelay, nil
	}

	// the selector pre-screens cooldowns, but the daily counter may have
	// moved since; re-check both gates against the chosen target
	res, err = e.limiter.CheckAll(ctx, account.ID.String(), account.DailyLimit, target.Group.ID.String(), target.Group.Cooldown())
	if err != nil {
		return protocolBackoff, err
	}
	if !res.Allowed {
		wait := res.RetryAfter
		if wait > cooldownWaitCap {
			wait = cooldownWaitCap
		}
		return wait, nil
	}

	text := e.variator.Vary(target.Message)

	if sendErr := e.deliver(ctx, account, target.Group.Target(), text); sendErr != nil {
		return e.recordFailure(ctx, account, target, text, sendErr)
	}
	return e.recordSuccess(ctx, account, target, text)
}

// recordSuccess charges quota, stamps cooldown and interval markers and
// appends the durable log entry. Counters are only touched here, after a
// confirmed send.
func (e *Engine) recordSuccess(ctx context.Context, account *model.Account, target *selector.Target, text string) (time.Duration, error) {
	now := e.now()

	if err := e.limiter.IncrementAccount(ctx, account.ID.String()); err != nil {
		e.log.Error().Err(err).Str("account_id", account.ID.String()).Msg("failed to charge daily quota")
	}
	if err := e.limiter.MarkGroupPosted(ctx, account.ID.String(), target.Group.ID.String(), target.Group.Cooldown()); err != nil {
		e.log.Error().Err(err).Str("group_id", target.Group.ID.String()).Msg("failed to stamp group cooldown")
	}
	if err := e.limiter.MarkCampaignSent(ctx, target.Campaign.ID.String()); err != nil {
		e.log.Error().Err(err).Str("campaign_id", target.Campaign.ID.String()).Msg("failed to stamp campaign last-sent")
	}
	if err := e.usage.Increment(account.ID, now); err != nil {
		e.log.Error().Err(err).Str("account_id", account.ID.String()).Msg("failed to increment durable usage")
	}
	if err := e.accounts.TouchLastUsed(account.ID, now); err != nil {
		e.log.Error().Err(err).Str("account_id", account.ID.String()).Msg("failed to touch last used")
	}

	e.appendLog(target.Campaign.ID, account.ID, target.Group.ID, target.Group.Target(), text, model.LogSent, "", 0)

	e.log.Info().
		Str("account_id", account.ID.String()).
		Str("campaign_id", target.Campaign.ID.String()).
		Str("group", target.Group.Target()).
		Msg("message sent")

	return e.humanDelay(), nil
}

// recordFailure maps a transport fault to a health transition, a log
// entry and a recovery delay, per the error taxonomy.
func (e *Engine) recordFailure(ctx context.Context, account *model.Account, target *selector.Target, text string, sendErr error) (time.Duration, error) {
	groupTarget := target.Group.Target()

	if seconds, ok := transport.AsRateControlled(sendErr); ok {
		if herr := e.monitor.RecordFloodWait(ctx, account.ID, seconds); herr != nil {
			e.log.Error().Err(herr).Str("account_id", account.ID.String()).Msg("failed to record floodwait")
		}
		e.appendLog(target.Campaign.ID, account.ID, target.Group.ID, groupTarget, text, model.LogFailed, codeRateControlled, seconds)
		return time.Duration(seconds)*time.Second + floodMargin, nil
	}

	if errors.Is(sendErr, transport.ErrWriteForbidden) {
		if herr := e.monitor.RecordWriteForbidden(ctx, account.ID, sendErr.Error()); herr != nil {
			e.log.Error().Err(herr).Str("account_id", account.ID.String()).Msg("failed to record write-forbidden")
		}
		// the ban marker is set; the next iteration's health check
		// persists the banned status and parks the loop
		e.appendLog(target.Campaign.ID, account.ID, target.Group.ID, groupTarget, text, model.LogFailed, codeWriteForbidden, 0)
		return protocolBackoff, nil
	}

	if errors.Is(sendErr, transport.ErrAuthRequired) {
		account.Status = model.AccountRestricted
		if uerr := e.accounts.UpdateStatus(account.ID, model.AccountRestricted); uerr != nil {
			e.log.Error().Err(uerr).Str("account_id", account.ID.String()).Msg("failed to persist restricted status")
		}
		e.appendLog(target.Campaign.ID, account.ID, target.Group.ID, groupTarget, text, model.LogSkipped, codeAuthRequired, 0)
		return bannedRecheck, nil
	}

	// protocol faults and anything unrecognized: log, back off, carry on
	e.appendLog(target.Campaign.ID, account.ID, target.Group.ID, groupTarget, text, model.LogFailed, codeProtocolError, 0)
	e.log.Warn().Err(sendErr).Str("account_id", account.ID.String()).Msg("send failed, backing off")
	return protocolBackoff, nil
}

// RunWorkers starts a worker per sendable account and rescans for new
// accounts so freshly added ones pick up without a restart.
func (e *Engine) RunWorkers(ctx context.Context, rescanEvery time.Duration) {
	running := make(map[string]bool)

	spawn := func() {
		accounts, err := e.accounts.ListSendable()
		if err != nil {
			e.log.Error().Err(err).Msg("failed to list sendable accounts")
			return
		}
		for _, a := range accounts {
			id := a.ID.String()
			if running[id] {
				continue
			}
			running[id] = true
			go e.RunWorker(ctx, a)
		}
	}

	spawn()

	ticker := time.NewTicker(rescanEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			spawn()
		}
	}
}
