//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"hookstudio/internal/domain"
	"hookstudio/internal/domain/model"
	"hookstudio/internal/usecase"
)

func TestLedgerUseCase_RecordUsage(t *testing.T) {
	ctx := context.Background()

	t.Run("should increment lifetime and windowed counters", func(t *testing.T) {
		e := newTestEnv(t, nil)
		d := day(2025, 3, 10)
		e.seedAccount(t, "acc", d)

		if _, err := e.ledger.RecordUsage(ctx, usecase.UsageEvent{AccountID: "acc", Kind: model.UsageThreads, Tokens: 120, CostMicros: 3000}, d); err != nil {
			t.Fatalf("RecordUsage failed: %v", err)
		}
		view, err := e.ledger.RecordUsage(ctx, usecase.UsageEvent{AccountID: "acc", Kind: model.UsageHooks, Tokens: 30, CostMicros: 1000}, d)
		if err != nil {
			t.Fatalf("RecordUsage failed: %v", err)
		}

		u := view.Usage
		if u.TotalThreads != 1 || u.TotalHooks != 1 || u.DailyThreads != 1 {
			t.Errorf("unexpected counters: %+v", u)
		}
		if u.TotalTokens != 150 || u.DailyCostMicros != 4000 || u.MonthlyCostMicros != 4000 {
			t.Errorf("unexpected cost/tokens: %+v", u)
		}
		if got := e.account(t, "acc").Version; got != 2 {
			t.Errorf("expected two persisted writes, version=%d", got)
		}
	})

	t.Run("should reset daily counters on a new day but keep the month", func(t *testing.T) {
		e := newTestEnv(t, nil)
		d1 := day(2025, 3, 10)
		e.seedAccount(t, "acc", d1)
		_, _ = e.ledger.RecordUsage(ctx, usecase.UsageEvent{AccountID: "acc", Kind: model.UsageThreads, CostMicros: 500}, d1)

		view, err := e.ledger.RecordUsage(ctx, usecase.UsageEvent{AccountID: "acc", Kind: model.UsageThreads, CostMicros: 700}, d1.AddDate(0, 0, 1))
		if err != nil {
			t.Fatalf("RecordUsage failed: %v", err)
		}
		if view.Usage.DailyThreads != 1 || view.Usage.DailyCostMicros != 700 {
			t.Errorf("expected daily counters reset, got %+v", view.Usage)
		}
		if view.Usage.MonthlyCostMicros != 1200 {
			t.Errorf("expected monthly cost 1200, got %d", view.Usage.MonthlyCostMicros)
		}
		if view.Usage.TotalThreads != 2 {
			t.Errorf("lifetime counter must not reset, got %d", view.Usage.TotalThreads)
		}
	})

	t.Run("should reset the month counter on a new month", func(t *testing.T) {
		e := newTestEnv(t, nil)
		d1 := day(2025, 3, 31)
		e.seedAccount(t, "acc", d1)
		_, _ = e.ledger.RecordUsage(ctx, usecase.UsageEvent{AccountID: "acc", Kind: model.UsageHooks, CostMicros: 900}, d1)

		view, _ := e.ledger.RecordUsage(ctx, usecase.UsageEvent{AccountID: "acc", Kind: model.UsageHooks, CostMicros: 100}, day(2025, 4, 1))
		if view.Usage.MonthlyCostMicros != 100 {
			t.Errorf("expected monthly cost reset to 100, got %d", view.Usage.MonthlyCostMicros)
		}
	})

	t.Run("should fail for unknown account and invalid input", func(t *testing.T) {
		e := newTestEnv(t, nil)
		if _, err := e.ledger.RecordUsage(ctx, usecase.UsageEvent{AccountID: "ghost", Kind: model.UsageHooks}, day(2025, 1, 1)); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := e.ledger.RecordUsage(ctx, usecase.UsageEvent{AccountID: "acc", Kind: "memes"}, day(2025, 1, 1)); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should retry a lost compare-and-set exactly once", func(t *testing.T) {
		e := newTestEnv(t, nil)
		d := day(2025, 3, 10)
		e.seedAccount(t, "acc", d)
		e.db.failNext("accounts.update", domain.ErrConcurrencyConflict)

		if _, err := e.ledger.RecordUsage(ctx, usecase.UsageEvent{AccountID: "acc", Kind: model.UsageHooks}, d); err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
		if got := e.account(t, "acc").Usage.TotalHooks; got != 1 {
			t.Errorf("expected exactly one increment, got %d", got)
		}
	})

	t.Run("should surface a second conflict without writing", func(t *testing.T) {
		e := newTestEnv(t, nil)
		d := day(2025, 3, 10)
		e.seedAccount(t, "acc", d)
		e.db.failNext("accounts.update", domain.ErrConcurrencyConflict)
		e.db.failNext("accounts.update", domain.ErrConcurrencyConflict)

		if _, err := e.ledger.RecordUsage(ctx, usecase.UsageEvent{AccountID: "acc", Kind: model.UsageHooks}, d); !errors.Is(err, domain.ErrConcurrencyConflict) {
			t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
		}
		if got := e.account(t, "acc").Usage.TotalHooks; got != 0 {
			t.Errorf("expected no increment, got %d", got)
		}
	})
}

func TestLedgerUseCase_GetAccount(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, nil)
	d := day(2025, 3, 10)
	e.seedAccount(t, "acc", d)
	_, _ = e.ledger.RecordUsage(ctx, usecase.UsageEvent{AccountID: "acc", Kind: model.UsageThreads, CostMicros: 10}, d)

	view, err := e.ledger.GetAccount(ctx, "acc", d.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if view.Usage.DailyThreads != 0 || view.Usage.DailyCostMicros != 0 {
		t.Errorf("expected the view to read elapsed windows as zero, got %+v", view.Usage)
	}
	if stored := e.account(t, "acc"); stored.Usage.DailyThreads != 1 {
		t.Errorf("a read must not write, stored daily threads=%d", stored.Usage.DailyThreads)
	}
}

func TestLedgerUseCase_EnsureAccount(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, nil)
	d := day(2025, 3, 10)

	v, err := e.ledger.EnsureAccount(ctx, "new-acc", d)
	if err != nil {
		t.Fatalf("EnsureAccount failed: %v", err)
	}
	if v.Plan != model.PlanFree || v.CoinBalance != 0 || v.Subscription.Status != model.SubscriptionStatusNone {
		t.Errorf("unexpected new account: %+v", v)
	}
	_, _ = e.ledger.RecordUsage(ctx, usecase.UsageEvent{AccountID: "new-acc", Kind: model.UsageHooks}, d)

	again, err := e.ledger.EnsureAccount(ctx, "new-acc", d)
	if err != nil {
		t.Fatalf("EnsureAccount failed: %v", err)
	}
	if again.Usage.TotalHooks != 1 {
		t.Error("EnsureAccount must not reset an existing account")
	}
}

func TestLedgerUseCase_SpendCoins(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, nil)
	d := day(2025, 3, 10)
	a := e.seedAccount(t, "acc", d)
	a.CoinBalance = 30
	if err := e.accounts.Update(ctx, nil, a); err != nil {
		t.Fatal(err)
	}

	t.Run("should debit when the balance covers it", func(t *testing.T) {
		v, err := e.ledger.SpendCoins(ctx, "acc", 20, d)
		if err != nil {
			t.Fatalf("SpendCoins failed: %v", err)
		}
		if v.CoinBalance != 10 {
			t.Errorf("expected balance 10, got %d", v.CoinBalance)
		}
	})

	t.Run("should fail without mutation when it would go negative", func(t *testing.T) {
		if _, err := e.ledger.SpendCoins(ctx, "acc", 11, d); !errors.Is(err, domain.ErrInsufficientBalance) {
			t.Fatalf("expected ErrInsufficientBalance, got %v", err)
		}
		if got := e.account(t, "acc").CoinBalance; got != 10 {
			t.Errorf("balance must be unchanged, got %d", got)
		}
	})
}

func TestLedgerUseCase_CheckQuota(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, nil)
	d := day(2025, 3, 10)
	e.seedAccount(t, "acc", d)

	for i := 0; i < 3; i++ {
		if err := e.ledger.CheckQuota(ctx, "acc", model.UsageThreads, d); err != nil {
			t.Fatalf("unexpected quota error at %d: %v", i, err)
		}
		_, _ = e.ledger.RecordUsage(ctx, usecase.UsageEvent{AccountID: "acc", Kind: model.UsageThreads}, d)
	}
	if err := e.ledger.CheckQuota(ctx, "acc", model.UsageThreads, d); !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Errorf("expected ErrQuotaExceeded after 3 threads, got %v", err)
	}
	if err := e.ledger.CheckQuota(ctx, "acc", model.UsageHooks, d); err != nil {
		t.Errorf("hooks are not capped on free, got %v", err)
	}
	if err := e.ledger.CheckQuota(ctx, "acc", model.UsageThreads, d.Add(24*time.Hour)); err != nil {
		t.Errorf("quota must free up on the next day, got %v", err)
	}
}

func TestDecisionReads_SkipAccountCache(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, nil)
	d := day(2025, 3, 10)
	e.seedAccount(t, "acc", d)

	t.Run("quota check reads the committed row", func(t *testing.T) {
		before := e.accounts.UncachedReads.Load()
		if err := e.ledger.CheckQuota(ctx, "acc", model.UsageThreads, d); err != nil {
			t.Fatalf("CheckQuota failed: %v", err)
		}
		if e.accounts.UncachedReads.Load() != before+1 {
			t.Error("expected CheckQuota to bypass the account cache")
		}
	})

	t.Run("achievement evaluation reads the committed row", func(t *testing.T) {
		before := e.accounts.UncachedReads.Load()
		if _, err := e.achievements.Evaluate(ctx, "acc", d); err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if e.accounts.UncachedReads.Load() <= before {
			t.Error("expected Evaluate to bypass the account cache")
		}
	})

	t.Run("display read may use the cache", func(t *testing.T) {
		before := e.accounts.UncachedReads.Load()
		if _, err := e.ledger.GetAccount(ctx, "acc", d); err != nil {
			t.Fatalf("GetAccount failed: %v", err)
		}
		if e.accounts.UncachedReads.Load() != before {
			t.Error("GetAccount should not force an uncached read")
		}
	})
}
