// internal/engine/engine_test.go
package engine

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgorbit/tgads-backend/internal/health"
	"github.com/tgorbit/tgads-backend/internal/kv"
	"github.com/tgorbit/tgads-backend/internal/model"
	"github.com/tgorbit/tgads-backend/internal/ratelimit"
	"github.com/tgorbit/tgads-backend/internal/selector"
	"github.com/tgorbit/tgads-backend/internal/transport"
	"github.com/tgorbit/tgads-backend/internal/variator"
	"github.com/tgorbit/tgads-backend/internal/warmup"
)

type fakeCampaigns struct {
	active   []*model.Campaign
	groups   map[uuid.UUID][]*model.Group
	accounts map[uuid.UUID][]*model.Account
}

func (f *fakeCampaigns) ListActive() ([]*model.Campaign, error) { return f.active, nil }

func (f *fakeCampaigns) ListActiveByCustomer(customerID uuid.UUID) ([]*model.Campaign, error) {
	return f.active, nil
}

func (f *fakeCampaigns) GroupsFor(campaignID uuid.UUID) ([]*model.Group, error) {
	return f.groups[campaignID], nil
}

func (f *fakeCampaigns) AccountsFor(campaignID uuid.UUID) ([]*model.Account, error) {
	return f.accounts[campaignID], nil
}

type fakeAccounts struct {
	mu            sync.Mutex
	byID          map[uuid.UUID]*model.Account
	sendable      []*model.Account
	statusUpdates map[uuid.UUID]string
	touched       map[uuid.UUID]time.Time
	warmupUpdates int
}

func (f *fakeAccounts) GetByID(id uuid.UUID) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id], nil
}

func (f *fakeAccounts) ListSendable() ([]*model.Account, error) { return f.sendable, nil }

func (f *fakeAccounts) UpdateStatus(id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusUpdates[id] = status
	return nil
}

func (f *fakeAccounts) TouchLastUsed(id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[id] = at
	return nil
}

func (f *fakeAccounts) UpdateWarmup(a *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warmupUpdates++
	return nil
}

type fakeCustomers struct {
	customer *model.Customer
}

func (f *fakeCustomers) GetByID(id uuid.UUID) (*model.Customer, error) { return f.customer, nil }

type fakeLogs struct {
	mu       sync.Mutex
	entries  []*model.MessageLog
	lastSent map[uuid.UUID]*time.Time
}

func (f *fakeLogs) Insert(l *model.MessageLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, l)
	return nil
}

func (f *fakeLogs) LastSentAt(campaignID uuid.UUID) (*time.Time, error) {
	return f.lastSent[campaignID], nil
}

func (f *fakeLogs) byStatus(status string) []*model.MessageLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.MessageLog
	for _, e := range f.entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

type fakeUsage struct {
	mu         sync.Mutex
	ensured    int
	increments int
}

func (f *fakeUsage) EnsureDay(accountID uuid.UUID, day time.Time) (*model.UsageCounter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured++
	return &model.UsageCounter{AccountID: accountID}, nil
}

func (f *fakeUsage) Increment(accountID uuid.UUID, day time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.increments++
	return nil
}

type fakeHealthEvents struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeHealthEvents) Insert(accountID uuid.UUID, eventType, details string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	return nil
}

// scriptDialer replays a queue of send outcomes; an empty queue means
// success.
type scriptDialer struct {
	mu       sync.Mutex
	outcomes []error
	sends    []string
}

func (d *scriptDialer) Connect(ctx context.Context, creds transport.Credentials) (transport.Client, error) {
	return &scriptClient{dialer: d}, nil
}

type scriptClient struct {
	dialer *scriptDialer
}

func (c *scriptClient) Send(ctx context.Context, target, text string) error {
	c.dialer.mu.Lock()
	defer c.dialer.mu.Unlock()
	c.dialer.sends = append(c.dialer.sends, target)
	if len(c.dialer.outcomes) == 0 {
		return nil
	}
	out := c.dialer.outcomes[0]
	c.dialer.outcomes = c.dialer.outcomes[1:]
	return out
}

func (c *scriptClient) Disconnect() {}

func (d *scriptDialer) sendCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sends)
}

type engineFixture struct {
	engine    *Engine
	store     *kv.MemoryStore
	limiter   *ratelimit.Limiter
	monitor   *health.Monitor
	campaigns *fakeCampaigns
	accounts  *fakeAccounts
	logs      *fakeLogs
	usage     *fakeUsage
	dialer    *scriptDialer
	now       *time.Time
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := kv.NewMemoryStore()
	store.SetClock(clock)

	limiter := ratelimit.NewLimiter(store)
	limiter.SetClock(clock)

	healthEvents := &fakeHealthEvents{}
	monitor := health.NewMonitor(store, healthEvents, zerolog.Nop())
	monitor.SetClock(clock)

	campaigns := &fakeCampaigns{
		groups:   make(map[uuid.UUID][]*model.Group),
		accounts: make(map[uuid.UUID][]*model.Account),
	}
	accounts := &fakeAccounts{
		byID:          make(map[uuid.UUID]*model.Account),
		statusUpdates: make(map[uuid.UUID]string),
		touched:       make(map[uuid.UUID]time.Time),
	}
	logs := &fakeLogs{lastSent: make(map[uuid.UUID]*time.Time)}
	usage := &fakeUsage{}
	dialer := &scriptDialer{}

	warm := warmup.NewController(accounts)
	warm.SetClock(clock)
	warm.SetRand(rand.New(rand.NewSource(1)))

	sel := selector.New(campaigns, logs, limiter, zerolog.Nop())
	sel.SetClock(clock)

	eng := New(Deps{
		Campaigns: campaigns,
		Accounts:  accounts,
		Customers: &fakeCustomers{customer: &model.Customer{ID: uuid.New(), SubscriptionTier: "starter", IsActive: true}},
		Logs:      logs,
		Usage:     usage,
		Store:     store,
		Limiter:   limiter,
		Monitor:   monitor,
		Warmup:    warm,
		Selector:  sel,
		Variator:  variator.New(variator.WithRand(rand.New(rand.NewSource(1)))),
		Dialer:    dialer,
		Logger:    zerolog.Nop(),
	})
	eng.SetClock(clock)
	eng.SetRand(rand.New(rand.NewSource(1)))

	return &engineFixture{
		engine:    eng,
		store:     store,
		limiter:   limiter,
		monitor:   monitor,
		campaigns: campaigns,
		accounts:  accounts,
		logs:      logs,
		usage:     usage,
		dialer:    dialer,
		now:       &now,
	}
}

func (f *engineFixture) addCampaignWithTargets() (*model.Campaign, *model.Account, *model.Group) {
	campaign := &model.Campaign{
		ID:              uuid.New(),
		CustomerID:      uuid.New(),
		Name:            "spring promo",
		MessageTemplate: "Spring sale! 🔥",
		IntervalMinutes: 30,
		Status:          model.CampaignActive,
		CreatedAt:       f.now.Add(-time.Hour),
	}
	account := newActiveAccount()
	group := &model.Group{
		ID:              uuid.New(),
		Username:        "@springdeals",
		CooldownMinutes: 60,
		AllowAds:        true,
		IsActive:        true,
	}

	f.campaigns.active = append(f.campaigns.active, campaign)
	f.campaigns.groups[campaign.ID] = append(f.campaigns.groups[campaign.ID], group)
	f.campaigns.accounts[campaign.ID] = append(f.campaigns.accounts[campaign.ID], account)
	f.accounts.byID[account.ID] = account
	f.accounts.sendable = append(f.accounts.sendable, account)
	return campaign, account, group
}

func newActiveAccount() *model.Account {
	started := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return &model.Account{
		ID:              uuid.New(),
		OwnerCustomerID: uuid.New(),
		PhoneNumber:     "+10000000001",
		SessionName:     "session-1",
		Status:          model.AccountActive,
		DailyLimit:      40,
		WarmupStage:     warmup.FinalStage,
		WarmupStartedAt: &started,
	}
}

func TestRunOnceSuccessfulSend(t *testing.T) {
	f := newEngineFixture(t)
	campaign, account, group := f.addCampaignWithTargets()
	ctx := context.Background()

	delay, err := f.engine.runOnce(ctx, account)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, delay, humanDelayMin)
	assert.LessOrEqual(t, delay, humanDelayMax)
	assert.Equal(t, 1, f.dialer.sendCount())

	sent := f.logs.byStatus(model.LogSent)
	require.Len(t, sent, 1)
	assert.Equal(t, campaign.ID, sent[0].CampaignID)
	assert.Equal(t, group.ID, sent[0].GroupID)
	assert.NotEmpty(t, sent[0].MessageText)

	// quota charged and cooldown stamped only after the confirmed send
	res, err := f.limiter.CheckGroupCooldown(ctx, account.ID.String(), group.ID.String(), group.Cooldown())
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	assert.Equal(t, 1, f.usage.increments)
	assert.Contains(t, f.accounts.touched, account.ID)
}

func TestRunOnceDailyLimitExhausted(t *testing.T) {
	f := newEngineFixture(t)
	_, account, _ := f.addCampaignWithTargets()
	ctx := context.Background()

	require.NoError(t, f.store.Set(ctx, kv.AccountDailyKey(account.ID.String(), *f.now), "40", 0))

	delay, err := f.engine.runOnce(ctx, account)
	require.NoError(t, err)

	// clock is fixed at 12:00 UTC, so the retry lands at next midnight
	assert.Equal(t, 12*time.Hour, delay)
	assert.Equal(t, 0, f.dialer.sendCount())
}

func TestRunOnceNoEligibleTarget(t *testing.T) {
	f := newEngineFixture(t)
	account := newActiveAccount()
	f.accounts.byID[account.ID] = account
	f.accounts.sendable = append(f.accounts.sendable, account)

	delay, err := f.engine.runOnce(context.Background(), account)
	require.NoError(t, err)

	assert.Equal(t, idleDelay, delay)
	assert.Equal(t, 0, f.dialer.sendCount())
}

func TestRunOnceRateControlled(t *testing.T) {
	f := newEngineFixture(t)
	_, account, _ := f.addCampaignWithTargets()
	ctx := context.Background()
	f.dialer.outcomes = []error{&transport.RateControlledError{Seconds: 60}}

	delay, err := f.engine.runOnce(ctx, account)
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second+floodMargin, delay)

	failed := f.logs.byStatus(model.LogFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, codeRateControlled, failed[0].ErrorCode)
	assert.Equal(t, 60, failed[0].FloodSeconds)

	report, err := f.monitor.CheckHealth(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, health.StatusWarning, report.Status)
}

func TestRunOnceWriteForbiddenBansAccount(t *testing.T) {
	f := newEngineFixture(t)
	_, account, _ := f.addCampaignWithTargets()
	ctx := context.Background()
	f.dialer.outcomes = []error{transport.ErrWriteForbidden}

	delay, err := f.engine.runOnce(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, protocolBackoff, delay)

	report, err := f.monitor.CheckHealth(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, health.StatusBanned, report.Status)

	// the next iteration observes the ban, persists it and parks the loop
	delay, err = f.engine.runOnce(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, bannedRecheck, delay)
	assert.Equal(t, model.AccountBanned, f.accounts.statusUpdates[account.ID])
	assert.Equal(t, 1, f.dialer.sendCount())
}

func TestRunOncePausedAccount(t *testing.T) {
	f := newEngineFixture(t)
	_, account, _ := f.addCampaignWithTargets()
	ctx := context.Background()

	pausedUntil := f.now.Add(90 * time.Minute)
	require.NoError(t, f.store.Set(ctx, kv.PauseKey(account.ID.String()), pausedUntil.Format(time.RFC3339), 0))

	delay, err := f.engine.runOnce(ctx, account)
	require.NoError(t, err)

	assert.Equal(t, 90*time.Minute, delay)
	assert.Equal(t, 0, f.dialer.sendCount())
}

func TestRunOnceParksRestrictedAccount(t *testing.T) {
	f := newEngineFixture(t)
	_, account, _ := f.addCampaignWithTargets()
	account.Status = model.AccountRestricted

	delay, err := f.engine.runOnce(context.Background(), account)
	require.NoError(t, err)

	// neither warmup nor the send path may resurrect a restricted account
	assert.Equal(t, statusRecheck, delay)
	assert.Equal(t, model.AccountRestricted, account.Status)
	assert.Equal(t, 0, f.dialer.sendCount())
	assert.Empty(t, f.accounts.statusUpdates)
}

func TestRunOnceObservesStatusChangedViaAPI(t *testing.T) {
	f := newEngineFixture(t)
	_, account, _ := f.addCampaignWithTargets()
	ctx := context.Background()

	delay, err := f.engine.runOnce(ctx, account)
	require.NoError(t, err)
	require.Equal(t, 1, f.dialer.sendCount())
	require.Greater(t, delay, time.Duration(0))

	// an operator pauses the account between iterations; the worker holds
	// a stale copy and must pick the change up from the row
	updated := *account
	updated.Status = model.AccountPaused
	f.accounts.mu.Lock()
	f.accounts.byID[account.ID] = &updated
	f.accounts.mu.Unlock()

	delay, err = f.engine.runOnce(ctx, account)
	require.NoError(t, err)

	assert.Equal(t, statusRecheck, delay)
	assert.Equal(t, model.AccountPaused, account.Status)
	assert.Equal(t, 1, f.dialer.sendCount())
}

func TestCampaignLockExclusive(t *testing.T) {
	f := newEngineFixture(t)
	campaignID := uuid.New()
	ctx := context.Background()

	const ticks = 16
	var wg sync.WaitGroup
	results := make(chan bool, ticks)

	for i := 0; i < ticks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := f.engine.acquireCampaignLock(ctx, campaignID)
			assert.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	acquired := 0
	for ok := range results {
		if ok {
			acquired++
		}
	}
	assert.Equal(t, 1, acquired, "exactly one concurrent tick may hold the lock")
}

func TestScheduleSkipsLockedCampaign(t *testing.T) {
	f := newEngineFixture(t)
	campaign, _, _ := f.addCampaignWithTargets()
	ctx := context.Background()

	acquired, err := f.engine.acquireCampaignLock(ctx, campaign.ID)
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, f.engine.scheduleDueCampaigns(ctx))

	// the lock holder owns this campaign's tick; no send happens here
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, f.dialer.sendCount())
}

func TestRunCampaignTickCapsAccountsAtPlan(t *testing.T) {
	f := newEngineFixture(t)
	campaign, _, _ := f.addCampaignWithTargets()
	ctx := context.Background()
	f.engine.SetPacing(0, 0)

	// three attached accounts, but the starter plan allows two
	extraA := newActiveAccount()
	extraB := newActiveAccount()
	f.campaigns.accounts[campaign.ID] = append(f.campaigns.accounts[campaign.ID], extraA, extraB)
	second := &model.Group{ID: uuid.New(), Username: "@more", CooldownMinutes: 60, AllowAds: true, IsActive: true}
	f.campaigns.groups[campaign.ID] = append(f.campaigns.groups[campaign.ID], second)

	require.NoError(t, f.engine.RunCampaignTick(ctx, campaign, false))

	assert.Equal(t, 2, f.dialer.sendCount())
	assert.Len(t, f.logs.byStatus(model.LogSent), 2)

	// the tick stamps the campaign marker, so an immediate rerun is a no-op
	require.NoError(t, f.engine.RunCampaignTick(ctx, campaign, false))
	assert.Equal(t, 2, f.dialer.sendCount())
}

func TestRunCampaignTickSkipsUnsendableAccounts(t *testing.T) {
	f := newEngineFixture(t)
	campaign, account, _ := f.addCampaignWithTargets()
	ctx := context.Background()
	f.engine.SetPacing(0, 0)
	account.Status = model.AccountBanned

	require.NoError(t, f.engine.RunCampaignTick(ctx, campaign, false))
	assert.Equal(t, 0, f.dialer.sendCount())
}

func TestForcedTickBypassesIntervalOnly(t *testing.T) {
	f := newEngineFixture(t)
	campaign, account, group := f.addCampaignWithTargets()
	ctx := context.Background()
	f.engine.SetPacing(0, 0)

	require.NoError(t, f.limiter.MarkCampaignSent(ctx, campaign.ID.String()))

	// inside the interval a regular tick is a no-op
	require.NoError(t, f.engine.RunCampaignTick(ctx, campaign, false))
	require.Equal(t, 0, f.dialer.sendCount())

	// a manual trigger runs anyway
	require.NoError(t, f.engine.RunCampaignTick(ctx, campaign, true))
	assert.Equal(t, 1, f.dialer.sendCount())

	// the group cooldown gate still holds on a second forced run
	require.NoError(t, f.engine.RunCampaignTick(ctx, campaign, true))
	assert.Equal(t, 1, f.dialer.sendCount())

	res, err := f.limiter.CheckGroupCooldown(ctx, account.ID.String(), group.ID.String(), group.Cooldown())
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestSchedulerConsumesRunRequest(t *testing.T) {
	f := newEngineFixture(t)
	campaign, _, _ := f.addCampaignWithTargets()
	ctx := context.Background()
	f.engine.SetPacing(0, 0)

	// inside the interval, so only the run request can make it fire
	require.NoError(t, f.limiter.MarkCampaignSent(ctx, campaign.ID.String()))
	require.NoError(t, f.store.Set(ctx, kv.CampaignRunRequestKey(campaign.ID.String()), "1", 0))

	require.NoError(t, f.engine.scheduleDueCampaigns(ctx))

	assert.Eventually(t, func() bool {
		return f.dialer.sendCount() == 1
	}, time.Second, 10*time.Millisecond)

	// the marker is consumed; the next pass is quiet again
	exists, err := f.store.Exists(ctx, kv.CampaignRunRequestKey(campaign.ID.String()))
	require.NoError(t, err)
	assert.False(t, exists)
}
