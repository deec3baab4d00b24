package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"hookstudio/internal/domain"
	"hookstudio/internal/domain/model"
	"hookstudio/internal/domain/ports/repository"
)

var _ repository.AccountRepository = (*AccountRepo)(nil)

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

const accountColumns = `
  id, plan, coin_balance, sub_status, sub_plan, sub_expires_at,
  total_hooks, total_threads, total_tokens, daily_threads, daily_cost_micros, monthly_cost_micros,
  last_daily_threads_reset_at, last_daily_cost_reset_at, last_monthly_cost_reset_at,
  version, created_at, updated_at`

func (r *AccountRepo) Create(ctx context.Context, tx repository.Tx, a *model.Account) error {
	const q = `
INSERT INTO accounts (` + accountColumns + `
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18);`
	u := a.Usage
	_, err := execSQL(ctx, r.pool, tx, q,
		a.ID, a.Plan, a.CoinBalance, a.Subscription.Status, nullablePlan(a.Subscription.Plan), a.Subscription.ExpiresAt,
		u.TotalHooks, u.TotalThreads, u.TotalTokens, u.DailyThreads, u.DailyCostMicros, u.MonthlyCostMicros,
		u.LastDailyThreadsResetAt, u.LastDailyCostResetAt, u.LastMonthlyCostResetAt,
		a.Version, a.CreatedAt, a.UpdatedAt)
	return mapError("create account", err)
}

func (r *AccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	q := `SELECT` + accountColumns + ` FROM accounts WHERE id=$1` + forUpdate(tx)
	row := pickRow(ctx, r.pool, tx, q, id)

	var (
		a       model.Account
		subPlan *string
	)
	u := &a.Usage
	if err := row.Scan(
		&a.ID, &a.Plan, &a.CoinBalance, &a.Subscription.Status, &subPlan, &a.Subscription.ExpiresAt,
		&u.TotalHooks, &u.TotalThreads, &u.TotalTokens, &u.DailyThreads, &u.DailyCostMicros, &u.MonthlyCostMicros,
		&u.LastDailyThreadsResetAt, &u.LastDailyCostResetAt, &u.LastMonthlyCostResetAt,
		&a.Version, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, mapError("find account", err)
	}
	if subPlan != nil {
		a.Subscription.Plan = model.Plan(*subPlan)
	}
	normalizeAccountTimes(&a)
	return &a, nil
}

// Update is a compare-and-set on version; the stored version moves forward by one.
func (r *AccountRepo) Update(ctx context.Context, tx repository.Tx, a *model.Account) error {
	const q = `
UPDATE accounts SET
  plan=$3, coin_balance=$4, sub_status=$5, sub_plan=$6, sub_expires_at=$7,
  total_hooks=$8, total_threads=$9, total_tokens=$10,
  daily_threads=$11, daily_cost_micros=$12, monthly_cost_micros=$13,
  last_daily_threads_reset_at=$14, last_daily_cost_reset_at=$15, last_monthly_cost_reset_at=$16,
  updated_at=$17, version=version+1
WHERE id=$1 AND version=$2;`
	u := a.Usage
	updatedAt := a.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	tag, err := execSQL(ctx, r.pool, tx, q,
		a.ID, a.Version,
		a.Plan, a.CoinBalance, a.Subscription.Status, nullablePlan(a.Subscription.Plan), a.Subscription.ExpiresAt,
		u.TotalHooks, u.TotalThreads, u.TotalTokens,
		u.DailyThreads, u.DailyCostMicros, u.MonthlyCostMicros,
		u.LastDailyThreadsResetAt, u.LastDailyCostResetAt, u.LastMonthlyCostResetAt,
		updatedAt)
	if err != nil {
		return mapError("update account", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConcurrencyConflict
	}
	a.Version++
	return nil
}

func nullablePlan(p model.Plan) *string {
	if p == "" {
		return nil
	}
	s := string(p)
	return &s
}

// normalizeAccountTimes moves scanned timestamps into the canonical zone.
func normalizeAccountTimes(a *model.Account) {
	z := model.CanonicalZone
	a.CreatedAt = a.CreatedAt.In(z)
	a.UpdatedAt = a.UpdatedAt.In(z)
	a.Usage.LastDailyThreadsResetAt = a.Usage.LastDailyThreadsResetAt.In(z)
	a.Usage.LastDailyCostResetAt = a.Usage.LastDailyCostResetAt.In(z)
	a.Usage.LastMonthlyCostResetAt = a.Usage.LastMonthlyCostResetAt.In(z)
	if a.Subscription.ExpiresAt != nil {
		t := a.Subscription.ExpiresAt.In(z)
		a.Subscription.ExpiresAt = &t
	}
}
