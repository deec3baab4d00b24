package model

import (
	"slices"
	"strings"
	"time"

	"hookstudio/internal/domain"

	"github.com/google/uuid"
)

type CodeType string

const (
	CodeTypeSubscription CodeType = "subscription"
	CodeTypeCoins        CodeType = "coins"
	CodeTypeTrial        CodeType = "trial"
)

func (t CodeType) Valid() bool {
	return t == CodeTypeSubscription || t == CodeTypeCoins || t == CodeTypeTrial
}

// RedemptionCode is a global code redeemable by up to MaxUses distinct accounts.
type RedemptionCode struct {
	ID        string
	Code      string
	Type      CodeType
	Value     int64
	Plan      Plan // optional, subscription and trial only
	MaxUses   int
	UsedCount int
	UsedBy    []string
	IsActive  bool
	ExpiresAt *time.Time
	CreatedBy string
	CreatedAt time.Time
}

// NormalizeCode trims and upper-cases raw user input to the stored casing.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func NewRedemptionCode(code string, typ CodeType, value int64, plan Plan, maxUses int, expiresAt *time.Time, createdBy string, now time.Time) (*RedemptionCode, error) {
	code = NormalizeCode(code)
	if code == "" || !typ.Valid() || value < 0 || maxUses < 1 {
		return nil, domain.ErrInvalidArgument
	}
	if plan != "" && !plan.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	if typ != CodeTypeCoins && value > MaxSubscriptionDays {
		return nil, domain.ErrInvalidArgument
	}
	return &RedemptionCode{
		ID:        uuid.NewString(),
		Code:      code,
		Type:      typ,
		Value:     value,
		Plan:      plan,
		MaxUses:   maxUses,
		IsActive:  true,
		ExpiresAt: expiresAt,
		CreatedBy: createdBy,
		CreatedAt: now,
	}, nil
}

func (c *RedemptionCode) HasUsed(accountID string) bool {
	return slices.Contains(c.UsedBy, accountID)
}

// Validate runs the redemption checks in their fixed order; the first failure wins.
func (c *RedemptionCode) Validate(accountID string, now time.Time) error {
	if !c.IsActive {
		return domain.ErrCodeInactive
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return domain.ErrCodeExpired
	}
	if c.UsedCount >= c.MaxUses {
		return domain.ErrCodeExhausted
	}
	if c.HasUsed(accountID) {
		return domain.ErrCodeAlreadyUsed
	}
	return nil
}

// Consume records one use by accountID. It re-checks the use invariants.
func (c *RedemptionCode) Consume(accountID string) error {
	if c.UsedCount >= c.MaxUses {
		return domain.ErrCodeExhausted
	}
	if c.HasUsed(accountID) {
		return domain.ErrCodeAlreadyUsed
	}
	c.UsedCount++
	c.UsedBy = append(c.UsedBy, accountID)
	return nil
}

func (c *RedemptionCode) Benefit() Benefit {
	return Benefit{Type: c.Type, Value: c.Value, Plan: c.Plan}
}

func (c *RedemptionCode) Clone() *RedemptionCode {
	if c == nil {
		return nil
	}
	cp := *c
	cp.UsedBy = slices.Clone(c.UsedBy)
	if c.ExpiresAt != nil {
		ex := *c.ExpiresAt
		cp.ExpiresAt = &ex
	}
	return &cp
}

// RedemptionResult is returned on a successful redemption.
type RedemptionResult struct {
	Type    CodeType    `json:"type"`
	Value   int64       `json:"value"`
	Account AccountView `json:"account"`
}
