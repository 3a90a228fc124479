// internal/health/monitor.go

// Package health derives an account's abuse-risk standing from transport
// signals. The derived state lives in the ephemeral store; every signal is
// also appended as a durable health event for audit.
package health

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tgorbit/tgads-backend/internal/kv"
	"github.com/tgorbit/tgads-backend/internal/model"
)

// Health states, from best to worst. Banned is terminal until manually
// cleared.
const (
	StatusHealthy = "healthy"
	StatusWarning = "warning"
	StatusPaused  = "paused"
	StatusBanned  = "banned"
)

// Report is the result of a health check. RetryAfter is set for paused
// accounts.
type Report struct {
	Status     string
	Reason     string
	RetryAfter time.Duration
}

// EventRecorder appends durable health events. Implemented by
// repository.HealthEventRepository.
type EventRecorder interface {
	Insert(accountID uuid.UUID, eventType, details string) error
}

type Monitor struct {
	store  kv.Store
	events EventRecorder
	log    zerolog.Logger
	now    func() time.Time

	floodThreshold int
	floodWindow    time.Duration
	pauseDuration  time.Duration
}

type Option func(*Monitor)

func WithFloodThreshold(n int) Option {
	return func(m *Monitor) { m.floodThreshold = n }
}

func WithFloodWindow(d time.Duration) Option {
	return func(m *Monitor) { m.floodWindow = d }
}

func WithPauseDuration(d time.Duration) Option {
	return func(m *Monitor) { m.pauseDuration = d }
}

func NewMonitor(store kv.Store, events EventRecorder, log zerolog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		store:          store,
		events:         events,
		log:            log,
		now:            time.Now,
		floodThreshold: 3,
		floodWindow:    60 * time.Minute,
		pauseDuration:  120 * time.Minute,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// SetClock replaces the monitor's time source. Test hook.
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
}

// RecordFloodWait counts a rate-control signal against the rolling flood
// window. Reaching the threshold pauses the account.
func (m *Monitor) RecordFloodWait(ctx context.Context, accountID uuid.UUID, seconds int) error {
	key := kv.FloodKey(accountID.String())

	count, err := m.store.Incr(ctx, key)
	if err != nil {
		return fmt.Errorf("record floodwait: %w", err)
	}
	if err := m.store.Expire(ctx, key, m.floodWindow); err != nil {
		return fmt.Errorf("record floodwait: %w", err)
	}

	m.log.Warn().Str("account_id", accountID.String()).Int("seconds", seconds).Int64("flood_count", count).Msg("floodwait recorded")

	if err := m.events.Insert(accountID, model.EventFloodWait, fmt.Sprintf("flood wait %ds", seconds)); err != nil {
		m.log.Error().Err(err).Str("account_id", accountID.String()).Msg("failed to append health event")
	}

	if count >= int64(m.floodThreshold) {
		return m.pauseAccount(ctx, accountID)
	}
	return nil
}

// RecordWriteForbidden marks the account banned. A write restriction is an
// account-level abuse signal; retrying the same send cannot succeed.
func (m *Monitor) RecordWriteForbidden(ctx context.Context, accountID uuid.UUID, details string) error {
	if err := m.events.Insert(accountID, model.EventWriteForbidden, details); err != nil {
		m.log.Error().Err(err).Str("account_id", accountID.String()).Msg("failed to append health event")
	}
	return m.setBanned(ctx, accountID)
}

// RecordBan marks the account banned until manual intervention.
func (m *Monitor) RecordBan(ctx context.Context, accountID uuid.UUID, details string) error {
	if err := m.events.Insert(accountID, model.EventBanned, details); err != nil {
		m.log.Error().Err(err).Str("account_id", accountID.String()).Msg("failed to append health event")
	}
	return m.setBanned(ctx, accountID)
}

func (m *Monitor) setBanned(ctx context.Context, accountID uuid.UUID) error {
	m.log.Error().Str("account_id", accountID.String()).Msg("account marked banned")
	// no expiry: banned is cleared only by manual intervention
	return m.store.Set(ctx, kv.BanKey(accountID.String()), "1", 0)
}

func (m *Monitor) pauseAccount(ctx context.Context, accountID uuid.UUID) error {
	pausedUntil := m.now().UTC().Add(m.pauseDuration)

	if err := m.store.Set(ctx, kv.PauseKey(accountID.String()), pausedUntil.Format(time.RFC3339), 0); err != nil {
		return fmt.Errorf("pause account: %w", err)
	}

	m.log.Warn().Str("account_id", accountID.String()).Time("paused_until", pausedUntil).Msg("account paused after repeated floodwaits")

	if err := m.events.Insert(accountID, model.EventPaused, "paused until "+pausedUntil.Format(time.RFC3339)); err != nil {
		m.log.Error().Err(err).Str("account_id", accountID.String()).Msg("failed to append health event")
	}
	return nil
}

// ClearBan removes the ban marker. Manual-intervention path.
func (m *Monitor) ClearBan(ctx context.Context, accountID uuid.UUID) error {
	return m.store.Del(ctx, kv.BanKey(accountID.String()))
}

// CheckHealth evaluates in priority order: banned, then an active pause
// (cleaning up stale markers), then an outstanding flood counter as a
// warning, otherwise healthy.
func (m *Monitor) CheckHealth(ctx context.Context, accountID uuid.UUID) (Report, error) {
	id := accountID.String()

	banned, err := m.store.Exists(ctx, kv.BanKey(id))
	if err != nil {
		return Report{}, fmt.Errorf("check health: %w", err)
	}
	if banned {
		return Report{Status: StatusBanned, Reason: "ACCOUNT_BANNED"}, nil
	}

	pausedVal, ok, err := m.store.Get(ctx, kv.PauseKey(id))
	if err != nil {
		return Report{}, fmt.Errorf("check health: %w", err)
	}
	if ok {
		pausedUntil, perr := time.Parse(time.RFC3339, pausedVal)
		if perr == nil && m.now().Before(pausedUntil) {
			return Report{
				Status:     StatusPaused,
				Reason:     "TEMPORARY_PAUSE",
				RetryAfter: pausedUntil.Sub(m.now()),
			}, nil
		}
		// stale pause marker: expiry has passed
		if err := m.store.Del(ctx, kv.PauseKey(id)); err != nil {
			return Report{}, fmt.Errorf("check health: %w", err)
		}
	}

	floodVal, ok, err := m.store.Get(ctx, kv.FloodKey(id))
	if err != nil {
		return Report{}, fmt.Errorf("check health: %w", err)
	}
	if ok {
		if count, _ := strconv.Atoi(floodVal); count > 0 {
			return Report{Status: StatusWarning, Reason: "RECENT_FLOODWAIT"}, nil
		}
	}

	return Report{Status: StatusHealthy}, nil
}
