// internal/kv/kv.go
package kv

import (
	"context"
	"fmt"
	"time"
)

// Store is the ephemeral counter store used for locks, rate counters and
// cooldown markers. All operations act on a single key so correctness does
// not depend on store-side transaction support. State held here is derived
// and reconstructable; the database remains authoritative for history.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes value with a TTL. A zero TTL means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX writes value only if the key is absent, returning whether the
	// write happened. Used for distributed locks.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Incr atomically increments an integer key, creating it at 1.
	Incr(ctx context.Context, key string) (int64, error)
	// Expire sets a relative TTL on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// ExpireAt sets an absolute expiry on an existing key.
	ExpireAt(ctx context.Context, key string, at time.Time) error
	// Del removes a key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error
	// Exists reports whether the key is present.
	Exists(ctx context.Context, key string) (bool, error)
}

// Key builders. Shapes match what the workers and the engine agreed on;
// changing them orphans live counters.

func AccountDailyKey(accountID string, day time.Time) string {
	return fmt.Sprintf("acct:%s:sent:%s", accountID, day.UTC().Format("2006-01-02"))
}

func GroupCooldownKey(accountID, groupID string) string {
	return fmt.Sprintf("acct:%s:group:%s:last_post", accountID, groupID)
}

func FloodKey(accountID string) string {
	return fmt.Sprintf("acct:%s:flood", accountID)
}

func PauseKey(accountID string) string {
	return fmt.Sprintf("acct:%s:paused_until", accountID)
}

func BanKey(accountID string) string {
	return fmt.Sprintf("acct:%s:banned", accountID)
}

func CampaignLockKey(campaignID string) string {
	return fmt.Sprintf("lock:campaign:%s", campaignID)
}

func CampaignLastSentKey(campaignID string) string {
	return fmt.Sprintf("campaign:%s:last_sent", campaignID)
}

func CampaignRunRequestKey(campaignID string) string {
	return fmt.Sprintf("campaign:%s:run_request", campaignID)
}
