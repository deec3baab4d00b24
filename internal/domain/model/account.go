package model

import (
	"time"

	"hookstudio/internal/domain"

	"github.com/google/uuid"
)

type Plan string

const (
	PlanFree       Plan = "free"
	PlanStarter    Plan = "starter"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanStarter, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// UsageKind is the kind of content a generation produced.
type UsageKind string

const (
	UsageHooks   UsageKind = "hooks"
	UsageThreads UsageKind = "threads"
)

func (k UsageKind) Valid() bool { return k == UsageHooks || k == UsageThreads }

// Usage holds lifetime and time-windowed counters. Costs are micro-units.
type Usage struct {
	TotalHooks        int64 `json:"total_hooks"`
	TotalThreads      int64 `json:"total_threads"`
	TotalTokens       int64 `json:"total_tokens"`
	DailyThreads      int64 `json:"daily_threads"`
	DailyCostMicros   int64 `json:"daily_cost_micros"`
	MonthlyCostMicros int64 `json:"monthly_cost_micros"`

	LastDailyThreadsResetAt time.Time `json:"last_daily_threads_reset_at"`
	LastDailyCostResetAt    time.Time `json:"last_daily_cost_reset_at"`
	LastMonthlyCostResetAt  time.Time `json:"last_monthly_cost_reset_at"`
}

// Account is the per-user aggregate owned by the ledger.
type Account struct {
	ID           string
	Plan         Plan
	CoinBalance  int64
	Subscription Subscription
	Usage        Usage
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Benefit is what a redemption code grants.
type Benefit struct {
	Type  CodeType
	Value int64
	Plan  Plan
}

func NewAccount(id string, now time.Time) (*Account, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if now.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	return &Account{
		ID:           id,
		Plan:         PlanFree,
		Subscription: Subscription{Status: SubscriptionStatusNone},
		Usage: Usage{
			LastDailyThreadsResetAt: now,
			LastDailyCostResetAt:    now,
			LastMonthlyCostResetAt:  now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (a *Account) IsZero() bool { return a == nil || a.ID == "" }

// Clone returns a deep copy so callers can mutate without touching a cached value.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Subscription = a.Subscription.clone()
	return &cp
}

// ResetExpiredPeriods zeroes every windowed counter whose boundary has passed.
// Each counter has its own boundary and reset timestamp. A now earlier than the
// recorded reset never resets, so reset timestamps only move forward.
func (a *Account) ResetExpiredPeriods(now time.Time) bool {
	u := &a.Usage
	changed := false
	if shouldAdvance(u.LastDailyThreadsResetAt, now, GranularityDay) {
		u.DailyThreads = 0
		u.LastDailyThreadsResetAt = now
		changed = true
	}
	if shouldAdvance(u.LastDailyCostResetAt, now, GranularityDay) {
		u.DailyCostMicros = 0
		u.LastDailyCostResetAt = now
		changed = true
	}
	if shouldAdvance(u.LastMonthlyCostResetAt, now, GranularityMonth) {
		u.MonthlyCostMicros = 0
		u.LastMonthlyCostResetAt = now
		changed = true
	}
	return changed
}

func shouldAdvance(last, now time.Time, g Granularity) bool {
	if !last.IsZero() && now.Before(last) {
		return false
	}
	return ShouldReset(last, now, g)
}

// RecordUsage applies lazy resets and then adds one generation to the counters.
func (a *Account) RecordUsage(kind UsageKind, tokens, costMicros int64, now time.Time) error {
	if !kind.Valid() || tokens < 0 || costMicros < 0 {
		return domain.ErrInvalidArgument
	}
	a.ResetExpiredPeriods(now)
	u := &a.Usage
	switch kind {
	case UsageHooks:
		u.TotalHooks++
	case UsageThreads:
		u.TotalThreads++
		u.DailyThreads++
	}
	u.TotalTokens += tokens
	u.DailyCostMicros += costMicros
	u.MonthlyCostMicros += costMicros
	a.UpdatedAt = now
	return nil
}

// ApplyBenefit mutates plan, balance or subscription according to b.
func (a *Account) ApplyBenefit(b Benefit, now time.Time) error {
	switch b.Type {
	case CodeTypeSubscription:
		plan := b.Plan
		if plan == "" {
			plan = PlanPro
		}
		a.Plan = plan
		a.Subscription = NewActiveSubscription(plan, b.Value, now)
	case CodeTypeCoins:
		if err := a.CreditCoins(b.Value); err != nil {
			return err
		}
	case CodeTypeTrial:
		if a.Plan != PlanFree {
			return domain.ErrTrialNotEligible
		}
		a.Plan = PlanStarter
		a.Subscription = NewActiveSubscription(PlanStarter, b.Value, now)
	default:
		return domain.ErrInvalidArgument
	}
	a.UpdatedAt = now
	return nil
}

func (a *Account) CreditCoins(n int64) error {
	if n < 0 {
		return domain.ErrInvalidArgument
	}
	a.CoinBalance += n
	return nil
}

// DebitCoins fails without mutating when the balance would go negative.
func (a *Account) DebitCoins(n int64) error {
	if n < 0 {
		return domain.ErrInvalidArgument
	}
	if a.CoinBalance-n < 0 {
		return domain.ErrInsufficientBalance
	}
	a.CoinBalance -= n
	return nil
}

// AccountView is the public projection of an Account.
type AccountView struct {
	ID           string       `json:"id"`
	Plan         Plan         `json:"plan"`
	CoinBalance  int64        `json:"coin_balance"`
	Subscription Subscription `json:"subscription"`
	Usage        Usage        `json:"usage"`
}

// View projects the account as seen at now: windowed counters past their
// boundary read as zero and a lapsed subscription reads as expired.
func (a *Account) View(now time.Time) AccountView {
	cp := a.Clone()
	cp.ResetExpiredPeriods(now)
	return AccountView{
		ID:           cp.ID,
		Plan:         cp.Plan,
		CoinBalance:  cp.CoinBalance,
		Subscription: cp.Subscription.EffectiveAt(now),
		Usage:        cp.Usage,
	}
}
