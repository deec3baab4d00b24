package repository

import (
	"context"

	"hookstudio/internal/domain/model"
)

// RedemptionCodeRepository is the port for benefit codes.
type RedemptionCodeRepository interface {
	// Create stores a new code; ErrAlreadyExists if the code string is taken.
	Create(ctx context.Context, tx Tx, c *model.RedemptionCode) error
	// FindByCode looks up a normalized code. Inside a transaction the row is locked for update.
	FindByCode(ctx context.Context, tx Tx, code string) (*model.RedemptionCode, error)
	// ConsumeUse atomically records one use by accountID, only if uses remain and
	// the account has not used the code yet. Otherwise it returns ErrCodeExhausted
	// or ErrCodeAlreadyUsed and changes nothing.
	ConsumeUse(ctx context.Context, tx Tx, codeID, accountID string) error
}
