// internal/pricing/plans.go
package pricing

import (
	"fmt"

	"github.com/tgorbit/tgads-backend/internal/apperr"
	"github.com/tgorbit/tgads-backend/internal/model"
)

// Plan caps how aggressively a customer tier may send.
type Plan struct {
	Name               string
	Accounts           int
	MinIntervalMinutes int
	DailyPerAccount    int
}

var plans = map[string]Plan{
	"solo":    {Name: "solo", Accounts: 1, MinIntervalMinutes: 30, DailyPerAccount: 40},
	"starter": {Name: "starter", Accounts: 2, MinIntervalMinutes: 15, DailyPerAccount: 80},
	"growth":  {Name: "growth", Accounts: 5, MinIntervalMinutes: 10, DailyPerAccount: 150},
	"pro":     {Name: "pro", Accounts: 10, MinIntervalMinutes: 5, DailyPerAccount: 300},
}

func GetPlan(name string) (Plan, error) {
	p, ok := plans[name]
	if !ok {
		return Plan{}, fmt.Errorf("unknown pricing plan: %q", name)
	}
	return p, nil
}

// ValidateCampaign enforces plan limits at create/update time. Violations
// are business-rule errors surfaced to the caller, never persisted.
func ValidateCampaign(c *model.Campaign, planName string) error {
	p, err := GetPlan(planName)
	if err != nil {
		return err
	}
	if c.IntervalMinutes < p.MinIntervalMinutes {
		return &apperr.BusinessRuleError{
			Rule:   "MIN_INTERVAL",
			Detail: fmt.Sprintf("plan %s requires an interval of at least %d minutes", p.Name, p.MinIntervalMinutes),
		}
	}
	return nil
}

// ApplyPlanToAccount sets the steady-state daily limit for the tier.
func ApplyPlanToAccount(a *model.Account, planName string) error {
	p, err := GetPlan(planName)
	if err != nil {
		return err
	}
	a.DailyLimit = p.DailyPerAccount
	return nil
}
