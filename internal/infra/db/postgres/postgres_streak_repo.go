package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"hookstudio/internal/domain"
	"hookstudio/internal/domain/model"
	"hookstudio/internal/domain/ports/repository"
)

var _ repository.StreakRepository = (*StreakRepo)(nil)

type StreakRepo struct {
	pool *pgxpool.Pool
}

func NewStreakRepo(pool *pgxpool.Pool) *StreakRepo {
	return &StreakRepo{pool: pool}
}

// FindOrCreate inserts an empty record when absent. Two callers racing on the
// insert both end up reading the same row.
func (r *StreakRepo) FindOrCreate(ctx context.Context, tx repository.Tx, accountID string) (*model.StreakRecord, error) {
	const ins = `INSERT INTO streaks (account_id, updated_at) VALUES ($1, NOW()) ON CONFLICT (account_id) DO NOTHING;`
	if _, err := execSQL(ctx, r.pool, tx, ins, accountID); err != nil {
		return nil, mapError("create streak", err)
	}

	q := `
SELECT account_id, current_streak, longest_streak, last_activity_date, total_days_active, version, updated_at
  FROM streaks WHERE account_id=$1` + forUpdate(tx)
	var (
		s    model.StreakRecord
		last *time.Time
	)
	if err := pickRow(ctx, r.pool, tx, q, accountID).Scan(
		&s.AccountID, &s.CurrentStreak, &s.LongestStreak, &last, &s.TotalDaysActive, &s.Version, &s.UpdatedAt,
	); err != nil {
		return nil, mapError("find streak", err)
	}
	if last != nil {
		d := model.CalendarDay(*last)
		s.LastActivityDate = &d
	}
	s.UpdatedAt = s.UpdatedAt.In(model.CanonicalZone)
	return &s, nil
}

func (r *StreakRepo) Update(ctx context.Context, tx repository.Tx, s *model.StreakRecord) error {
	const q = `
UPDATE streaks SET
  current_streak=$3, longest_streak=$4, last_activity_date=$5, total_days_active=$6,
  updated_at=$7, version=version+1
WHERE account_id=$1 AND version=$2;`
	var last *time.Time
	if s.LastActivityDate != nil {
		d := model.CalendarDay(*s.LastActivityDate)
		last = &d
	}
	updatedAt := s.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	tag, err := execSQL(ctx, r.pool, tx, q,
		s.AccountID, s.Version, s.CurrentStreak, s.LongestStreak, last, s.TotalDaysActive, updatedAt)
	if err != nil {
		return mapError("update streak", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConcurrencyConflict
	}
	s.Version++
	return nil
}
