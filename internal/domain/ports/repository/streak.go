package repository

import (
	"context"

	"hookstudio/internal/domain/model"
)

type StreakRepository interface {
	// FindOrCreate returns the account's streak record, inserting an empty one when absent.
	// Inside a transaction the row is locked for update.
	FindOrCreate(ctx context.Context, tx Tx, accountID string) (*model.StreakRecord, error)
	// Update is a compare-and-set on s.Version; see AccountRepository.Update.
	Update(ctx context.Context, tx Tx, s *model.StreakRecord) error
}
