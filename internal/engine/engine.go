// internal/engine/engine.go

// Package engine runs the sending side of the system: the campaign
// scheduler's tick loop and the per-account send workers. All loops are
// cancellation-aware and never exit on per-send faults.
package engine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tgorbit/tgads-backend/internal/events"
	"github.com/tgorbit/tgads-backend/internal/health"
	"github.com/tgorbit/tgads-backend/internal/kv"
	"github.com/tgorbit/tgads-backend/internal/model"
	"github.com/tgorbit/tgads-backend/internal/ratelimit"
	"github.com/tgorbit/tgads-backend/internal/selector"
	"github.com/tgorbit/tgads-backend/internal/transport"
	"github.com/tgorbit/tgads-backend/internal/variator"
	"github.com/tgorbit/tgads-backend/internal/warmup"
)

const (
	defaultTickPeriod = 30 * time.Second
	campaignLockTTL   = 120 * time.Second

	// worker pacing
	idleDelay       = 60 * time.Second
	humanDelayMin   = 45 * time.Second
	humanDelayMax   = 120 * time.Second
	floodMargin     = 10 * time.Second
	protocolBackoff = 300 * time.Second
	cooldownWaitCap = 15 * time.Minute
	bannedRecheck   = time.Hour
	statusRecheck   = 5 * time.Minute
)

// Message log error codes.
const (
	codeRateControlled = "RATE_CONTROLLED"
	codeWriteForbidden = "WRITE_FORBIDDEN"
	codeAuthRequired   = "AUTH_REQUIRED"
	codeProtocolError  = "PROTOCOL_ERROR"
)

// CampaignStore is the slice of the campaign repository the engine needs.
type CampaignStore interface {
	ListActive() ([]*model.Campaign, error)
	GroupsFor(campaignID uuid.UUID) ([]*model.Group, error)
	AccountsFor(campaignID uuid.UUID) ([]*model.Account, error)
}

type AccountStore interface {
	GetByID(id uuid.UUID) (*model.Account, error)
	ListSendable() ([]*model.Account, error)
	UpdateStatus(id uuid.UUID, status string) error
	TouchLastUsed(id uuid.UUID, at time.Time) error
}

type CustomerStore interface {
	GetByID(id uuid.UUID) (*model.Customer, error)
}

type LogStore interface {
	Insert(l *model.MessageLog) error
}

type UsageStore interface {
	EnsureDay(accountID uuid.UUID, day time.Time) (*model.UsageCounter, error)
	Increment(accountID uuid.UUID, day time.Time) error
}

// Deps wires the engine's collaborators. Events may be nil to disable
// outcome publishing.
type Deps struct {
	Campaigns CampaignStore
	Accounts  AccountStore
	Customers CustomerStore
	Logs      LogStore
	Usage     UsageStore

	Store    kv.Store
	Limiter  *ratelimit.Limiter
	Monitor  *health.Monitor
	Warmup   *warmup.Controller
	Selector *selector.Selector
	Variator *variator.Variator
	Dialer   transport.Dialer
	Events   *events.Publisher

	Logger zerolog.Logger
}

type Engine struct {
	campaigns CampaignStore
	accounts  AccountStore
	customers CustomerStore
	logs      LogStore
	usage     UsageStore

	store    kv.Store
	limiter  *ratelimit.Limiter
	monitor  *health.Monitor
	warmup   *warmup.Controller
	selector *selector.Selector
	variator *variator.Variator
	dialer   transport.Dialer
	events   *events.Publisher

	log zerolog.Logger
	now func() time.Time

	mu  sync.Mutex
	rng *rand.Rand

	tickPeriod time.Duration
	lockTTL    time.Duration
	humanMin   time.Duration
	humanMax   time.Duration
}

func New(d Deps) *Engine {
	return &Engine{
		campaigns:  d.Campaigns,
		accounts:   d.Accounts,
		customers:  d.Customers,
		logs:       d.Logs,
		usage:      d.Usage,
		store:      d.Store,
		limiter:    d.Limiter,
		monitor:    d.Monitor,
		warmup:     d.Warmup,
		selector:   d.Selector,
		variator:   d.Variator,
		dialer:     d.Dialer,
		events:     d.Events,
		log:        d.Logger,
		now:        time.Now,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		tickPeriod: defaultTickPeriod,
		lockTTL:    campaignLockTTL,
		humanMin:   humanDelayMin,
		humanMax:   humanDelayMax,
	}
}

// SetClock replaces the engine's time source. Test hook.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// SetRand replaces the engine's randomness source. Test hook.
func (e *Engine) SetRand(rng *rand.Rand) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rng = rng
}

// SetPacing overrides the randomized inter-send delay bounds. Test hook.
func (e *Engine) SetPacing(min, max time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.humanMin, e.humanMax = min, max
}

// humanDelay draws a randomized pause so consecutive sends don't tick
// like a metronome.
func (e *Engine) humanDelay() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.humanMax <= e.humanMin {
		return e.humanMin
	}
	return e.humanMin + time.Duration(e.rng.Int63n(int64(e.humanMax-e.humanMin)))
}

func (e *Engine) shuffleGroups(groups []*model.Group) []*model.Group {
	out := make([]*model.Group, len(groups))
	copy(out, groups)

	e.mu.Lock()
	e.rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	e.mu.Unlock()
	return out
}

// deliver opens a session, sends one message and tears the session down.
// Sessions are never shared across loop iterations.
func (e *Engine) deliver(ctx context.Context, a *model.Account, target, text string) error {
	client, err := e.dialer.Connect(ctx, transport.Credentials{
		PhoneNumber: a.PhoneNumber,
		SessionName: a.SessionName,
		APIID:       a.APIID,
		APIHash:     a.APIHash,
	})
	if err != nil {
		return err
	}
	defer client.Disconnect()

	return client.Send(ctx, target, text)
}

func (e *Engine) appendLog(campaignID, accountID, groupID uuid.UUID, target, text, status, errorCode string, floodSeconds int) {
	entry := &model.MessageLog{
		CampaignID:   campaignID,
		AccountID:    accountID,
		GroupID:      groupID,
		Target:       target,
		MessageText:  text,
		Status:       status,
		ErrorCode:    errorCode,
		FloodSeconds: floodSeconds,
		SentAt:       e.now().UTC(),
	}
	if err := e.logs.Insert(entry); err != nil {
		e.log.Error().Err(err).Str("campaign_id", campaignID.String()).Msg("failed to append message log")
	}

	e.events.PublishOutcome(events.OutcomeEvent{
		CampaignID: campaignID.String(),
		AccountID:  accountID.String(),
		GroupID:    groupID.String(),
		Status:     status,
		Detail:     errorCode,
		OccurredAt: e.now().UTC(),
	})
}

// sleepCtx waits for d or cancellation, reporting false when cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
