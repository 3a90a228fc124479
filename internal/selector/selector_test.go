// internal/selector/selector_test.go
package selector

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgorbit/tgads-backend/internal/kv"
	"github.com/tgorbit/tgads-backend/internal/model"
	"github.com/tgorbit/tgads-backend/internal/ratelimit"
)

type fakeCampaignSource struct {
	campaigns []*model.Campaign
	groups    map[uuid.UUID][]*model.Group
}

func (f *fakeCampaignSource) ListActiveByCustomer(customerID uuid.UUID) ([]*model.Campaign, error) {
	return f.campaigns, nil
}

func (f *fakeCampaignSource) GroupsFor(campaignID uuid.UUID) ([]*model.Group, error) {
	return f.groups[campaignID], nil
}

type fakeLogSource struct {
	lastSent map[uuid.UUID]*time.Time
}

func (f *fakeLogSource) LastSentAt(campaignID uuid.UUID) (*time.Time, error) {
	return f.lastSent[campaignID], nil
}

type fixture struct {
	selector *Selector
	store    *kv.MemoryStore
	limiter  *ratelimit.Limiter
	source   *fakeCampaignSource
	logs     *fakeLogSource
	now      *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := kv.NewMemoryStore()
	store.SetClock(clock)

	limiter := ratelimit.NewLimiter(store)
	limiter.SetClock(clock)

	source := &fakeCampaignSource{groups: make(map[uuid.UUID][]*model.Group)}
	logs := &fakeLogSource{lastSent: make(map[uuid.UUID]*time.Time)}

	sel := New(source, logs, limiter, zerolog.Nop())
	sel.SetClock(clock)

	return &fixture{
		selector: sel,
		store:    store,
		limiter:  limiter,
		source:   source,
		logs:     logs,
		now:      &now,
	}
}

func newCampaign(intervalMinutes int, createdAt time.Time) *model.Campaign {
	return &model.Campaign{
		ID:              uuid.New(),
		CustomerID:      uuid.New(),
		Name:            "promo",
		MessageTemplate: "Big sale! 🔥",
		IntervalMinutes: intervalMinutes,
		Status:          model.CampaignActive,
		CreatedAt:       createdAt,
	}
}

func newGroup(cooldownMinutes int) *model.Group {
	return &model.Group{
		ID:              uuid.New(),
		Username:        "@deals",
		CooldownMinutes: cooldownMinutes,
		AllowAds:        true,
		IsActive:        true,
	}
}

func TestNextTargetPicksFirstDueCampaignWithClearGroup(t *testing.T) {
	f := newFixture(t)
	account := &model.Account{ID: uuid.New(), Status: model.AccountActive}

	c := newCampaign(30, f.now.Add(-time.Hour))
	g := newGroup(60)
	f.source.campaigns = []*model.Campaign{c}
	f.source.groups[c.ID] = []*model.Group{g}

	target, err := f.selector.NextTarget(context.Background(), account)
	require.NoError(t, err)
	require.NotNil(t, target)
	assert.Equal(t, c.ID, target.Campaign.ID)
	assert.Equal(t, g.ID, target.Group.ID)
	assert.Equal(t, c.MessageTemplate, target.Message)
}

func TestNextTargetSkipsCampaignInsideInterval(t *testing.T) {
	f := newFixture(t)
	account := &model.Account{ID: uuid.New(), Status: model.AccountActive}

	c := newCampaign(30, f.now.Add(-time.Hour))
	f.source.campaigns = []*model.Campaign{c}
	f.source.groups[c.ID] = []*model.Group{newGroup(60)}

	// a send 10 minutes ago means the 30-minute interval has not elapsed
	sent := f.now.Add(-10 * time.Minute)
	*f.now = sent
	require.NoError(t, f.limiter.MarkCampaignSent(context.Background(), c.ID.String()))
	*f.now = sent.Add(10 * time.Minute)

	target, err := f.selector.NextTarget(context.Background(), account)
	require.NoError(t, err)
	assert.Nil(t, target)

	// after the interval the campaign becomes eligible again
	*f.now = sent.Add(30 * time.Minute)
	target, err = f.selector.NextTarget(context.Background(), account)
	require.NoError(t, err)
	assert.NotNil(t, target)
}

func TestNextTargetFallsBackToMessageLog(t *testing.T) {
	f := newFixture(t)
	account := &model.Account{ID: uuid.New(), Status: model.AccountActive}

	c := newCampaign(30, f.now.Add(-time.Hour))
	f.source.campaigns = []*model.Campaign{c}
	f.source.groups[c.ID] = []*model.Group{newGroup(60)}

	// no ephemeral marker, but the durable log has a recent send
	recent := f.now.Add(-5 * time.Minute)
	f.logs.lastSent[c.ID] = &recent

	target, err := f.selector.NextTarget(context.Background(), account)
	require.NoError(t, err)
	assert.Nil(t, target)
}

func TestNextTargetSkipsGroupsOnCooldown(t *testing.T) {
	f := newFixture(t)
	account := &model.Account{ID: uuid.New(), Status: model.AccountActive}

	c := newCampaign(30, f.now.Add(-time.Hour))
	cooling := newGroup(60)
	clear := newGroup(60)
	f.source.campaigns = []*model.Campaign{c}
	f.source.groups[c.ID] = []*model.Group{cooling, clear}

	require.NoError(t, f.limiter.MarkGroupPosted(context.Background(), account.ID.String(), cooling.ID.String(), cooling.Cooldown()))

	target, err := f.selector.NextTarget(context.Background(), account)
	require.NoError(t, err)
	require.NotNil(t, target)
	assert.Equal(t, clear.ID, target.Group.ID)
}

func TestNextTargetSkipsAdAverseAndInactiveGroups(t *testing.T) {
	f := newFixture(t)
	account := &model.Account{ID: uuid.New(), Status: model.AccountActive}

	c := newCampaign(30, f.now.Add(-time.Hour))
	noAds := newGroup(60)
	noAds.AllowAds = false
	inactive := newGroup(60)
	inactive.IsActive = false
	f.source.campaigns = []*model.Campaign{c}
	f.source.groups[c.ID] = []*model.Group{noAds, inactive}

	target, err := f.selector.NextTarget(context.Background(), account)
	require.NoError(t, err)
	assert.Nil(t, target)
}

func TestNextTargetRespectsCampaignWindow(t *testing.T) {
	f := newFixture(t)
	account := &model.Account{ID: uuid.New(), Status: model.AccountActive}

	c := newCampaign(30, f.now.Add(-time.Hour))
	start := f.now.Add(2 * time.Hour)
	c.StartAt = &start
	f.source.campaigns = []*model.Campaign{c}
	f.source.groups[c.ID] = []*model.Group{newGroup(60)}

	target, err := f.selector.NextTarget(context.Background(), account)
	require.NoError(t, err)
	assert.Nil(t, target)

	*f.now = start.Add(time.Minute)
	target, err = f.selector.NextTarget(context.Background(), account)
	require.NoError(t, err)
	assert.NotNil(t, target)
}

func TestNextTargetFallsThroughToLaterCampaign(t *testing.T) {
	f := newFixture(t)
	account := &model.Account{ID: uuid.New(), Status: model.AccountActive}

	first := newCampaign(30, f.now.Add(-2*time.Hour))
	second := newCampaign(30, f.now.Add(-time.Hour))
	blocked := newGroup(60)
	open := newGroup(60)
	f.source.campaigns = []*model.Campaign{first, second}
	f.source.groups[first.ID] = []*model.Group{blocked}
	f.source.groups[second.ID] = []*model.Group{open}

	require.NoError(t, f.limiter.MarkGroupPosted(context.Background(), account.ID.String(), blocked.ID.String(), blocked.Cooldown()))

	target, err := f.selector.NextTarget(context.Background(), account)
	require.NoError(t, err)
	require.NotNil(t, target)
	assert.Equal(t, second.ID, target.Campaign.ID)
}

func TestNextTargetNoCampaigns(t *testing.T) {
	f := newFixture(t)
	account := &model.Account{ID: uuid.New(), Status: model.AccountActive}

	target, err := f.selector.NextTarget(context.Background(), account)
	require.NoError(t, err)
	assert.Nil(t, target)
}
