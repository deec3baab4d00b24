package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"hookstudio/internal/domain/model"
	"hookstudio/internal/domain/ports/repository"
)

var _ repository.AchievementRepository = (*AchievementRepo)(nil)

type AchievementRepo struct {
	pool *pgxpool.Pool
}

func NewAchievementRepo(pool *pgxpool.Pool) *AchievementRepo {
	return &AchievementRepo{pool: pool}
}

func (r *AchievementRepo) InsertIfAbsent(ctx context.Context, tx repository.Tx, u *model.UnlockedAchievement) (*model.UnlockedAchievement, bool, error) {
	const ins = `
INSERT INTO unlocked_achievements (id, account_id, achievement_id, unlocked_at, progress)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (account_id, achievement_id) DO NOTHING;`
	tag, err := execSQL(ctx, r.pool, tx, ins, u.ID, u.AccountID, u.AchievementID, u.UnlockedAt, u.Progress)
	if err != nil {
		return nil, false, mapError("insert achievement", err)
	}
	if tag.RowsAffected() == 1 {
		cp := *u
		return &cp, true, nil
	}

	const q = `
SELECT id, account_id, achievement_id, unlocked_at, progress
  FROM unlocked_achievements WHERE account_id=$1 AND achievement_id=$2;`
	var existing model.UnlockedAchievement
	if err := pickRow(ctx, r.pool, tx, q, u.AccountID, u.AchievementID).Scan(
		&existing.ID, &existing.AccountID, &existing.AchievementID, &existing.UnlockedAt, &existing.Progress,
	); err != nil {
		return nil, false, mapError("find achievement", err)
	}
	existing.UnlockedAt = existing.UnlockedAt.In(model.CanonicalZone)
	return &existing, false, nil
}

func (r *AchievementRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string) ([]*model.UnlockedAchievement, error) {
	const q = `
SELECT id, account_id, achievement_id, unlocked_at, progress
  FROM unlocked_achievements WHERE account_id=$1 ORDER BY unlocked_at, id;`
	rows, err := queryRows(ctx, r.pool, tx, q, accountID)
	if err != nil {
		return nil, mapError("list achievements", err)
	}
	defer rows.Close()

	var out []*model.UnlockedAchievement
	for rows.Next() {
		var u model.UnlockedAchievement
		if err := rows.Scan(&u.ID, &u.AccountID, &u.AchievementID, &u.UnlockedAt, &u.Progress); err != nil {
			return nil, mapError("scan achievement", err)
		}
		u.UnlockedAt = u.UnlockedAt.In(model.CanonicalZone)
		out = append(out, &u)
	}
	return out, mapError("list achievements", rows.Err())
}
