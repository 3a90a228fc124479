// internal/ratelimit/limiter.go

// Package ratelimit enforces per-account daily quotas, per-group cooldowns
// and campaign intervals on top of the ephemeral counter store. Counters
// are only charged after a confirmed successful send.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/tgorbit/tgads-backend/internal/kv"
)

// Denial reasons reported to callers.
const (
	ReasonAccountDailyLimit = "ACCOUNT_DAILY_LIMIT"
	ReasonGroupCooldown     = "GROUP_COOLDOWN"
)

// Result of a limiter check. RetryAfter is the suggested wait before the
// next attempt when Allowed is false.
type Result struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Duration
}

type Limiter struct {
	store kv.Store
	now   func() time.Time
}

func NewLimiter(store kv.Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// SetClock replaces the limiter's time source. Test hook.
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}

// CheckAccountLimit allows while today's recorded sends are strictly below
// the account's daily limit. Exhausted counters self-clear at UTC midnight.
func (l *Limiter) CheckAccountLimit(ctx context.Context, accountID string, dailyLimit int) (Result, error) {
	key := kv.AccountDailyKey(accountID, l.now())

	val, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("check account limit: %w", err)
	}

	// a missing key means zero sends today; a zero or negative limit
	// must still deny
	count := 0
	if ok {
		count, _ = strconv.Atoi(val)
	}
	if count >= dailyLimit {
		return Result{
			Allowed:    false,
			Reason:     ReasonAccountDailyLimit,
			RetryAfter: l.untilMidnight(),
		}, nil
	}
	return Result{Allowed: true}, nil
}

// IncrementAccount charges one send against today's quota. Call only after
// a confirmed successful send.
func (l *Limiter) IncrementAccount(ctx context.Context, accountID string) error {
	now := l.now()
	key := kv.AccountDailyKey(accountID, now)

	if _, err := l.store.Incr(ctx, key); err != nil {
		return fmt.Errorf("increment account counter: %w", err)
	}
	return l.store.ExpireAt(ctx, key, nextUTCMidnight(now))
}

// CheckGroupCooldown allows when the account has no recorded post to the
// group inside the cooldown window.
func (l *Limiter) CheckGroupCooldown(ctx context.Context, accountID, groupID string, cooldown time.Duration) (Result, error) {
	key := kv.GroupCooldownKey(accountID, groupID)

	val, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("check group cooldown: %w", err)
	}
	if ok {
		lastPost, perr := time.Parse(time.RFC3339, val)
		if perr == nil {
			nextAllowed := lastPost.Add(cooldown)
			if l.now().Before(nextAllowed) {
				return Result{
					Allowed:    false,
					Reason:     ReasonGroupCooldown,
					RetryAfter: nextAllowed.Sub(l.now()),
				}, nil
			}
		}
	}
	return Result{Allowed: true}, nil
}

// MarkGroupPosted records a successful post; the marker's TTL equals the
// cooldown so its mere existence implies "still cooling down".
func (l *Limiter) MarkGroupPosted(ctx context.Context, accountID, groupID string, cooldown time.Duration) error {
	key := kv.GroupCooldownKey(accountID, groupID)
	return l.store.Set(ctx, key, l.now().UTC().Format(time.RFC3339), cooldown)
}

// CheckAll runs the account check first so the cheaper failure
// short-circuits the group check.
func (l *Limiter) CheckAll(ctx context.Context, accountID string, dailyLimit int, groupID string, cooldown time.Duration) (Result, error) {
	res, err := l.CheckAccountLimit(ctx, accountID, dailyLimit)
	if err != nil || !res.Allowed {
		return res, err
	}
	return l.CheckGroupCooldown(ctx, accountID, groupID, cooldown)
}

// CampaignIntervalPassed reports whether the campaign's send interval has
// elapsed since its last recorded send. A missing marker means no recorded
// send, which passes.
func (l *Limiter) CampaignIntervalPassed(ctx context.Context, campaignID string, interval time.Duration) (bool, error) {
	last, err := l.CampaignLastSent(ctx, campaignID)
	if err != nil {
		return false, err
	}
	if last == nil {
		return true, nil
	}
	return !l.now().Before(last.Add(interval)), nil
}

// CampaignLastSent returns the ephemeral last-sent marker, or nil when
// absent.
func (l *Limiter) CampaignLastSent(ctx context.Context, campaignID string) (*time.Time, error) {
	val, ok, err := l.store.Get(ctx, kv.CampaignLastSentKey(campaignID))
	if err != nil {
		return nil, fmt.Errorf("campaign last sent: %w", err)
	}
	if !ok {
		return nil, nil
	}
	t, perr := time.Parse(time.RFC3339, val)
	if perr != nil {
		return nil, nil
	}
	return &t, nil
}

// MarkCampaignSent records the campaign's last successful send.
func (l *Limiter) MarkCampaignSent(ctx context.Context, campaignID string) error {
	key := kv.CampaignLastSentKey(campaignID)
	return l.store.Set(ctx, key, l.now().UTC().Format(time.RFC3339), 0)
}

func (l *Limiter) untilMidnight() time.Duration {
	now := l.now()
	return nextUTCMidnight(now).Sub(now)
}

func nextUTCMidnight(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}
