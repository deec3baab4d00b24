package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"hookstudio/internal/domain/model"
	"hookstudio/internal/domain/ports/repository"
	"hookstudio/internal/infra/logging"
	"hookstudio/internal/infra/metrics"
)

// Compile-time check
var _ StreakUseCase = (*streakUC)(nil)

// StreakUseCase tracks consecutive active days per account.
//
// RecordActivity restarts a stale streak at one, while GetStatus zeroes it.
// Both behaviors are kept as they are.
type StreakUseCase interface {
	RecordActivity(ctx context.Context, accountID string, now time.Time) (model.StreakEvent, model.StreakStatus, error)
	GetStatus(ctx context.Context, accountID string, now time.Time) (model.StreakStatus, error)
}

type streakUC struct {
	streaks repository.StreakRepository
	tm      repository.TransactionManager
	log     *zerolog.Logger
}

func NewStreakUseCase(streaks repository.StreakRepository, tm repository.TransactionManager, logger *zerolog.Logger) *streakUC {
	return &streakUC{streaks: streaks, tm: tm, log: logger}
}

func (uc *streakUC) RecordActivity(ctx context.Context, accountID string, now time.Time) (model.StreakEvent, model.StreakStatus, error) {
	defer logging.TraceDuration(uc.log, "StreakUC.RecordActivity")()

	var (
		ev model.StreakEvent
		st model.StreakStatus
	)
	err := retryOnConflict(uc.log, "record_activity", func() error {
		return uc.tm.WithTx(ctx, rowLockTx, func(ctx context.Context, tx repository.Tx) error {
			rec, err := uc.streaks.FindOrCreate(ctx, tx, accountID)
			if err != nil {
				return err
			}
			ev = rec.RecordActivity(now)
			if ev.Kind != model.StreakNoChange {
				if err := uc.streaks.Update(ctx, tx, rec); err != nil {
					return err
				}
			}
			st = rec.Status(now)
			return nil
		})
	})
	if err != nil {
		return model.StreakEvent{}, model.StreakStatus{}, err
	}

	metrics.IncStreakEvent(string(ev.Kind))
	if ev.Kind == model.StreakReset {
		uc.log.Debug().Str("account_id", accountID).Int("previous_streak", ev.PreviousStreak).Msg("streak reset")
	}
	return ev, st, nil
}

func (uc *streakUC) GetStatus(ctx context.Context, accountID string, now time.Time) (model.StreakStatus, error) {
	defer logging.TraceDuration(uc.log, "StreakUC.GetStatus")()

	var st model.StreakStatus
	err := retryOnConflict(uc.log, "streak_status", func() error {
		return uc.tm.WithTx(ctx, rowLockTx, func(ctx context.Context, tx repository.Tx) error {
			rec, err := uc.streaks.FindOrCreate(ctx, tx, accountID)
			if err != nil {
				return err
			}
			if rec.Invalidate(now) {
				if err := uc.streaks.Update(ctx, tx, rec); err != nil {
					return err
				}
			}
			st = rec.Status(now)
			return nil
		})
	})
	return st, err
}
