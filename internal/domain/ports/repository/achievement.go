package repository

import (
	"context"

	"hookstudio/internal/domain/model"
)

type AchievementRepository interface {
	// InsertIfAbsent stores u unless (AccountID, AchievementID) already exists.
	// It returns the stored row and whether this call created it.
	InsertIfAbsent(ctx context.Context, tx Tx, u *model.UnlockedAchievement) (*model.UnlockedAchievement, bool, error)
	ListByAccount(ctx context.Context, tx Tx, accountID string) ([]*model.UnlockedAchievement, error)
}
