// internal/apperr/errors.go
package apperr

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrCampaignNotFound is returned when a campaign id resolves to nothing.
type ErrCampaignNotFound struct {
	CampaignID uuid.UUID
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign %s not found", e.CampaignID)
}

func NewCampaignNotFound(id uuid.UUID) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrAccountNotFound is returned when an account id resolves to nothing.
type ErrAccountNotFound struct {
	AccountID uuid.UUID
}

func (e *ErrAccountNotFound) Error() string {
	return fmt.Sprintf("account %s not found", e.AccountID)
}

func NewAccountNotFound(id uuid.UUID) error {
	return &ErrAccountNotFound{AccountID: id}
}

// BusinessRuleError is surfaced synchronously at create/update time and is
// never persisted or retried.
type BusinessRuleError struct {
	Rule   string
	Detail string
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Detail)
}

// IsBusinessRule reports whether err is (or wraps) a BusinessRuleError.
func IsBusinessRule(err error) bool {
	var bre *BusinessRuleError
	return errors.As(err, &bre)
}
