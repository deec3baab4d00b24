package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidExecContext  = errors.New("invalid execution context")
	ErrInsufficientBalance = errors.New("insufficient coin balance")
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
	ErrPersistence         = errors.New("persistence failure")
	ErrQuotaExceeded       = errors.New("plan quota exceeded")
	ErrRateLimited         = errors.New("too many attempts")

	// ErrRedemptionInvalid is the parent of every code validation failure.
	ErrRedemptionInvalid = errors.New("redemption invalid")
	ErrCodeInactive      = fmt.Errorf("%w: code is inactive", ErrRedemptionInvalid)
	ErrCodeExpired       = fmt.Errorf("%w: code has expired", ErrRedemptionInvalid)
	ErrCodeExhausted     = fmt.Errorf("%w: code has no uses left", ErrRedemptionInvalid)
	ErrCodeAlreadyUsed   = fmt.Errorf("%w: code already used by this account", ErrRedemptionInvalid)
	ErrTrialNotEligible  = fmt.Errorf("%w: trial is only available on the free plan", ErrRedemptionInvalid)
)

// Reason maps an error to the stable failure reason exposed to API callers.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCodeInactive):
		return "inactive"
	case errors.Is(err, ErrCodeExpired):
		return "expired"
	case errors.Is(err, ErrCodeExhausted):
		return "exhausted_uses"
	case errors.Is(err, ErrCodeAlreadyUsed):
		return "already_used"
	case errors.Is(err, ErrTrialNotEligible):
		return "trial_not_eligible"
	case errors.Is(err, ErrRedemptionInvalid):
		return "redemption_invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrConcurrencyConflict):
		return "concurrency_conflict"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "persistence_failure"
	}
}
