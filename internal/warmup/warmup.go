// internal/warmup/warmup.go

// Package warmup ramps a new account's daily send allowance over five
// stages so fresh accounts don't jump straight to full volume.
package warmup

import (
	"math/rand"
	"time"

	"github.com/tgorbit/tgads-backend/internal/model"
)

// FinalStage is the steady state; reaching it exits warmup permanently.
const FinalStage = 5

// SteadyStateLimit is the daily allowance once warmup completes.
const SteadyStateLimit = 45

// stageRanges holds the [low, high] daily-limit range per warmup stage.
var stageRanges = map[int][2]int{
	1: {5, 8},
	2: {10, 15},
	3: {20, 25},
	4: {30, 35},
}

// AccountUpdater persists the fields Apply mutates. Implemented by
// repository.AccountRepository.
type AccountUpdater interface {
	UpdateWarmup(a *model.Account) error
}

type Controller struct {
	accounts AccountUpdater
	now      func() time.Time
	rng      *rand.Rand
}

func NewController(accounts AccountUpdater) *Controller {
	return &Controller{
		accounts: accounts,
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetClock replaces the controller's time source. Test hook.
func (c *Controller) SetClock(now func() time.Time) {
	c.now = now
}

// SetRand replaces the controller's randomness source. Test hook.
func (c *Controller) SetRand(rng *rand.Rand) {
	c.rng = rng
}

// Stage returns the warmup stage for an account at the given time: one
// plus whole days elapsed since warmup started, capped at FinalStage.
func Stage(warmupStartedAt time.Time, now time.Time) int {
	days := int(now.Sub(warmupStartedAt).Hours() / 24)
	stage := days + 1
	if stage > FinalStage {
		stage = FinalStage
	}
	if stage < 1 {
		stage = 1
	}
	return stage
}

// Apply advances the account through the warmup ramp and persists the
// result. Accounts already past warmup are left untouched, as are
// accounts whose status forbids sending: the ramp never overrides a
// pause, restriction or ban.
func (c *Controller) Apply(a *model.Account) error {
	if !a.Sendable() {
		return nil
	}
	if a.Status == model.AccountActive && a.WarmupStage >= FinalStage {
		return nil
	}

	now := c.now().UTC()

	if a.WarmupStartedAt == nil {
		started := now
		a.WarmupStartedAt = &started
		a.WarmupStage = 1
	}

	a.WarmupStage = Stage(*a.WarmupStartedAt, now)

	if a.WarmupStage < FinalStage {
		r := stageRanges[a.WarmupStage]
		a.DailyLimit = r[0] + c.rng.Intn(r[1]-r[0]+1)
		a.Status = model.AccountWarming
	} else {
		a.DailyLimit = SteadyStateLimit
		a.Status = model.AccountActive
	}

	return c.accounts.UpdateWarmup(a)
}
