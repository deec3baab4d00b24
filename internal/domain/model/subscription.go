package model

import (
	"time"
)

type SubscriptionStatus string

const (
	SubscriptionStatusNone      SubscriptionStatus = "none"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// Subscription is the subscription state owned by an Account.
// It is only ever replaced as a whole value.
type Subscription struct {
	Status    SubscriptionStatus `json:"status"`
	Plan      Plan               `json:"plan,omitempty"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`
}

// MaxSubscriptionDays bounds day-based benefits so expiry stays a valid timestamp.
const MaxSubscriptionDays = 36500

// NewActiveSubscription starts a subscription on plan lasting days from now.
// days is clamped to [0, MaxSubscriptionDays].
func NewActiveSubscription(plan Plan, days int64, now time.Time) Subscription {
	days = max(0, min(days, MaxSubscriptionDays))
	expire := now.AddDate(0, 0, int(days))
	return Subscription{
		Status:    SubscriptionStatusActive,
		Plan:      plan,
		ExpiresAt: &expire,
	}
}

// EffectiveAt reports the subscription as it should be seen at now.
// An active subscription whose expiry has passed reads as expired.
func (s Subscription) EffectiveAt(now time.Time) Subscription {
	out := s.clone()
	if out.Status == SubscriptionStatusActive && out.ExpiresAt != nil && now.After(*out.ExpiresAt) {
		out.Status = SubscriptionStatusExpired
	}
	return out
}

func (s Subscription) clone() Subscription {
	out := s
	if s.ExpiresAt != nil {
		ex := *s.ExpiresAt
		out.ExpiresAt = &ex
	}
	return out
}
