package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"hookstudio/internal/config"
	"hookstudio/internal/domain"
	"hookstudio/internal/domain/model"
	"hookstudio/internal/domain/ports/repository"
	"hookstudio/internal/infra/logging"
	"hookstudio/internal/infra/metrics"
)

// Compile-time check
var _ LedgerUseCase = (*ledgerUC)(nil)

// UsageEvent is one completed generation reported by the generation service.
type UsageEvent struct {
	AccountID  string
	Kind       model.UsageKind
	Tokens     int64
	CostMicros int64
}

// LedgerUseCase owns account balances and usage counters.
type LedgerUseCase interface {
	// EnsureAccount returns the account, creating a free one on first sight.
	EnsureAccount(ctx context.Context, accountID string, now time.Time) (*model.AccountView, error)
	GetAccount(ctx context.Context, accountID string, now time.Time) (*model.AccountView, error)
	RecordUsage(ctx context.Context, ev UsageEvent, now time.Time) (*model.AccountView, error)
	// CheckQuota returns domain.ErrQuotaExceeded when the plan's limits are used up.
	CheckQuota(ctx context.Context, accountID string, kind model.UsageKind, now time.Time) error
	SpendCoins(ctx context.Context, accountID string, amount int64, now time.Time) (*model.AccountView, error)
	// ApplyBenefit mutates the account inside the caller's transaction.
	ApplyBenefit(ctx context.Context, tx repository.Tx, accountID string, b model.Benefit, now time.Time) (*model.Account, error)
}

type ledgerUC struct {
	accounts repository.AccountRepository
	tm       repository.TransactionManager
	limits   map[string]config.PlanLimit
	log      *zerolog.Logger
}

func NewLedgerUseCase(accounts repository.AccountRepository, tm repository.TransactionManager, limits map[string]config.PlanLimit, logger *zerolog.Logger) *ledgerUC {
	return &ledgerUC{
		accounts: accounts,
		tm:       tm,
		limits:   limits,
		log:      logger,
	}
}

func (uc *ledgerUC) EnsureAccount(ctx context.Context, accountID string, now time.Time) (*model.AccountView, error) {
	defer logging.TraceDuration(uc.log, "LedgerUC.EnsureAccount")()
	if accountID == "" {
		return nil, domain.ErrInvalidArgument
	}

	a, err := uc.accounts.FindByID(ctx, repository.NoTX, accountID)
	if errors.Is(err, domain.ErrNotFound) {
		a, err = model.NewAccount(accountID, now)
		if err != nil {
			return nil, err
		}
		err = uc.accounts.Create(ctx, repository.NoTX, a)
		if errors.Is(err, domain.ErrAlreadyExists) {
			// registered concurrently
			a, err = uc.accounts.FindByID(ctx, repository.NoTX, accountID)
		} else if err == nil {
			uc.log.Info().Str("account_id", accountID).Msg("account created")
		}
	}
	if err != nil {
		return nil, err
	}
	v := a.View(now)
	return &v, nil
}

func (uc *ledgerUC) GetAccount(ctx context.Context, accountID string, now time.Time) (*model.AccountView, error) {
	defer logging.TraceDuration(uc.log, "LedgerUC.GetAccount")()
	a, err := uc.accounts.FindByID(ctx, repository.NoTX, accountID)
	if err != nil {
		return nil, err
	}
	v := a.View(now)
	return &v, nil
}

func (uc *ledgerUC) RecordUsage(ctx context.Context, ev UsageEvent, now time.Time) (*model.AccountView, error) {
	defer logging.TraceDuration(uc.log, "LedgerUC.RecordUsage")()
	if ev.AccountID == "" || !ev.Kind.Valid() || ev.Tokens < 0 || ev.CostMicros < 0 {
		return nil, domain.ErrInvalidArgument
	}

	var view model.AccountView
	err := retryOnConflict(uc.log, "record_usage", func() error {
		return uc.tm.WithTx(ctx, rowLockTx, func(ctx context.Context, tx repository.Tx) error {
			a, err := uc.accounts.FindByID(ctx, tx, ev.AccountID)
			if err != nil {
				return err
			}
			if err := a.RecordUsage(ev.Kind, ev.Tokens, ev.CostMicros, now); err != nil {
				return err
			}
			if err := uc.accounts.Update(ctx, tx, a); err != nil {
				return err
			}
			view = a.View(now)
			return nil
		})
	})
	if err != nil {
		uc.log.Error().Err(err).Str("account_id", ev.AccountID).Str("kind", string(ev.Kind)).Msg("record usage failed")
		return nil, err
	}
	metrics.ObserveUsage(string(ev.Kind), ev.Tokens, ev.CostMicros)
	return &view, nil
}

func (uc *ledgerUC) CheckQuota(ctx context.Context, accountID string, kind model.UsageKind, now time.Time) error {
	defer logging.TraceDuration(uc.log, "LedgerUC.CheckQuota")()
	a, err := uc.accounts.FindByID(repository.WithoutCache(ctx), repository.NoTX, accountID)
	if err != nil {
		return err
	}
	v := a.View(now)
	limit, ok := uc.limits[string(v.Plan)]
	if !ok {
		return nil
	}
	if kind == model.UsageThreads && limit.DailyThreads > 0 && v.Usage.DailyThreads >= limit.DailyThreads {
		metrics.IncQuotaBlocked(string(v.Plan))
		return domain.ErrQuotaExceeded
	}
	if limit.MonthlyCostMicros > 0 && v.Usage.MonthlyCostMicros >= limit.MonthlyCostMicros {
		metrics.IncQuotaBlocked(string(v.Plan))
		return domain.ErrQuotaExceeded
	}
	return nil
}

func (uc *ledgerUC) SpendCoins(ctx context.Context, accountID string, amount int64, now time.Time) (*model.AccountView, error) {
	defer logging.TraceDuration(uc.log, "LedgerUC.SpendCoins")()
	if amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}

	var view model.AccountView
	err := retryOnConflict(uc.log, "spend_coins", func() error {
		return uc.tm.WithTx(ctx, rowLockTx, func(ctx context.Context, tx repository.Tx) error {
			a, err := uc.accounts.FindByID(ctx, tx, accountID)
			if err != nil {
				return err
			}
			if err := a.DebitCoins(amount); err != nil {
				return err
			}
			a.UpdatedAt = now
			if err := uc.accounts.Update(ctx, tx, a); err != nil {
				return err
			}
			view = a.View(now)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (uc *ledgerUC) ApplyBenefit(ctx context.Context, tx repository.Tx, accountID string, b model.Benefit, now time.Time) (*model.Account, error) {
	defer logging.TraceDuration(uc.log, "LedgerUC.ApplyBenefit")()
	a, err := uc.accounts.FindByID(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if err := a.ApplyBenefit(b, now); err != nil {
		return nil, err
	}
	if err := uc.accounts.Update(ctx, tx, a); err != nil {
		return nil, err
	}
	return a, nil
}
