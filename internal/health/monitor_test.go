// internal/health/monitor_test.go
package health

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgorbit/tgads-backend/internal/kv"
	"github.com/tgorbit/tgads-backend/internal/model"
)

type fakeEvents struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEvents) Insert(accountID uuid.UUID, eventType, details string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	return nil
}

func newTestMonitor(start time.Time) (*Monitor, *fakeEvents, *time.Time) {
	now := start
	store := kv.NewMemoryStore()
	store.SetClock(func() time.Time { return now })
	events := &fakeEvents{}
	m := NewMonitor(store, events, zerolog.Nop())
	m.SetClock(func() time.Time { return now })
	return m, events, &now
}

func TestHealthyByDefault(t *testing.T) {
	m, _, _ := newTestMonitor(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	report, err := m.CheckHealth(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, report.Status)
}

func TestFloodWaitBelowThresholdWarns(t *testing.T) {
	ctx := context.Background()
	m, events, _ := newTestMonitor(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	acct := uuid.New()

	require.NoError(t, m.RecordFloodWait(ctx, acct, 30))
	require.NoError(t, m.RecordFloodWait(ctx, acct, 45))

	report, err := m.CheckHealth(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, StatusWarning, report.Status)
	assert.Equal(t, []string{model.EventFloodWait, model.EventFloodWait}, events.events)
}

func TestThreeFloodWaitsPauseAccount(t *testing.T) {
	ctx := context.Background()
	m, events, now := newTestMonitor(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	acct := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, m.RecordFloodWait(ctx, acct, 30))
	}

	report, err := m.CheckHealth(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, report.Status)
	assert.InDelta(t, (120 * time.Minute).Seconds(), report.RetryAfter.Seconds(), 1)
	assert.Contains(t, events.events, model.EventPaused)

	// pause expiry passed: stale marker is cleaned up; flood counter has
	// expired with its window, so the account is healthy again
	*now = now.Add(3 * time.Hour)

	report, err = m.CheckHealth(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, report.Status)
}

func TestPauseExpiryWithOutstandingFloodCounter(t *testing.T) {
	ctx := context.Background()
	m, _, now := newTestMonitor(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	m = withWideFloodWindow(m)
	acct := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, m.RecordFloodWait(ctx, acct, 30))
	}

	// past the pause but inside the (widened) flood window
	*now = now.Add(125 * time.Minute)

	report, err := m.CheckHealth(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, StatusWarning, report.Status)
}

func withWideFloodWindow(m *Monitor) *Monitor {
	m.floodWindow = 6 * time.Hour
	return m
}

func TestWriteForbiddenBans(t *testing.T) {
	ctx := context.Background()
	m, events, _ := newTestMonitor(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	acct := uuid.New()

	require.NoError(t, m.RecordWriteForbidden(ctx, acct, "chat write forbidden"))

	report, err := m.CheckHealth(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, StatusBanned, report.Status)
	assert.Contains(t, events.events, model.EventWriteForbidden)
}

func TestBanWinsOverEverything(t *testing.T) {
	ctx := context.Background()
	m, _, now := newTestMonitor(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	acct := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, m.RecordFloodWait(ctx, acct, 30))
	}
	require.NoError(t, m.RecordBan(ctx, acct, "account deactivated"))

	report, err := m.CheckHealth(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, StatusBanned, report.Status)

	// banned does not decay with time
	*now = now.Add(48 * time.Hour)
	report, err = m.CheckHealth(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, StatusBanned, report.Status)
}

func TestClearBanRestores(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestMonitor(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	acct := uuid.New()

	require.NoError(t, m.RecordBan(ctx, acct, "manual test"))
	require.NoError(t, m.ClearBan(ctx, acct))

	report, err := m.CheckHealth(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, report.Status)
}
