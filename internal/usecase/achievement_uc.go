package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"hookstudio/internal/catalog"
	"hookstudio/internal/domain"
	"hookstudio/internal/domain/model"
	"hookstudio/internal/domain/ports/repository"
	"hookstudio/internal/infra/logging"
	"hookstudio/internal/infra/metrics"
)

// Compile-time check
var _ AchievementUseCase = (*achievementUC)(nil)

type AchievementUseCase interface {
	// Unlock stores the pair once. A repeated call returns the stored row with created=false.
	Unlock(ctx context.Context, accountID, achievementID string, progress int, now time.Time) (u *model.UnlockedAchievement, created bool, err error)
	// Grant unlocks at full progress. Catalog entries outside every progress family
	// are only reachable this way.
	Grant(ctx context.Context, accountID, achievementID string, now time.Time) (u *model.UnlockedAchievement, created bool, err error)
	// Evaluate unlocks every catalog entry whose progress reached its requirement.
	Evaluate(ctx context.Context, accountID string, now time.Time) ([]*model.UnlockedAchievement, error)
	List(ctx context.Context, accountID string, now time.Time) (*model.AchievementsView, error)
}

type achievementUC struct {
	catalog      *catalog.Catalog
	achievements repository.AchievementRepository
	accounts     repository.AccountRepository
	streaks      repository.StreakRepository
	counts       repository.ContentCounter
	log          *zerolog.Logger
}

func NewAchievementUseCase(
	cat *catalog.Catalog,
	achievements repository.AchievementRepository,
	accounts repository.AccountRepository,
	streaks repository.StreakRepository,
	counts repository.ContentCounter,
	logger *zerolog.Logger,
) *achievementUC {
	return &achievementUC{
		catalog:      cat,
		achievements: achievements,
		accounts:     accounts,
		streaks:      streaks,
		counts:       counts,
		log:          logger,
	}
}

func (uc *achievementUC) Unlock(ctx context.Context, accountID, achievementID string, progress int, now time.Time) (*model.UnlockedAchievement, bool, error) {
	defer logging.TraceDuration(uc.log, "AchievementUC.Unlock")()
	if _, ok := uc.catalog.Get(achievementID); !ok {
		return nil, false, domain.ErrNotFound
	}
	u, created, err := uc.achievements.InsertIfAbsent(ctx, repository.NoTX, model.NewUnlockedAchievement(accountID, achievementID, progress, now))
	if err != nil {
		return nil, false, err
	}
	if created {
		metrics.IncAchievementUnlocked(achievementID)
		uc.log.Info().Str("account_id", accountID).Str("achievement_id", achievementID).Msg("achievement unlocked")
	}
	return u, created, nil
}

func (uc *achievementUC) Grant(ctx context.Context, accountID, achievementID string, now time.Time) (*model.UnlockedAchievement, bool, error) {
	defer logging.TraceDuration(uc.log, "AchievementUC.Grant")()
	def, ok := uc.catalog.Get(achievementID)
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	return uc.Unlock(ctx, accountID, achievementID, def.Requirement, now)
}

// snapshot is everything progress is derived from, read once per call.
type snapshot struct {
	account  *model.Account
	streak   int
	counts   model.DerivedCounts
	unlocked map[string]*model.UnlockedAchievement
}

func (uc *achievementUC) load(ctx context.Context, accountID string, now time.Time) (*snapshot, error) {
	var (
		s       = &snapshot{}
		records []*model.UnlockedAchievement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := uc.accounts.FindByID(repository.WithoutCache(gctx), repository.NoTX, accountID)
		s.account = a
		return err
	})
	g.Go(func() error {
		rec, err := uc.streaks.FindOrCreate(gctx, repository.NoTX, accountID)
		if err != nil {
			return err
		}
		s.streak = rec.EffectiveCurrent(now)
		return nil
	})
	g.Go(func() error {
		var err error
		records, err = uc.achievements.ListByAccount(gctx, repository.NoTX, accountID)
		return err
	})
	g.Go(func() error {
		n, err := uc.counts.CountTemplates(gctx, accountID)
		s.counts.Templates = n
		return err
	})
	g.Go(func() error {
		n, err := uc.counts.CountCollections(gctx, accountID)
		s.counts.Collections = n
		return err
	})
	g.Go(func() error {
		n, err := uc.counts.CountScheduledPosts(gctx, accountID)
		s.counts.ScheduledPosts = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.unlocked = make(map[string]*model.UnlockedAchievement, len(records))
	for _, r := range records {
		s.unlocked[r.AchievementID] = r
	}
	return s, nil
}

func (s *snapshot) progress(def model.AchievementDefinition) int {
	_, unlocked := s.unlocked[def.ID]
	return model.ComputeProgress(def, model.ProgressInput{
		Account:  s.account,
		Streak:   s.streak,
		Counts:   s.counts,
		Unlocked: unlocked,
	})
}

func (uc *achievementUC) Evaluate(ctx context.Context, accountID string, now time.Time) ([]*model.UnlockedAchievement, error) {
	defer logging.TraceDuration(uc.log, "AchievementUC.Evaluate")()
	s, err := uc.load(ctx, accountID, now)
	if err != nil {
		return nil, err
	}

	var fresh []*model.UnlockedAchievement
	for _, def := range uc.catalog.All() {
		if _, done := s.unlocked[def.ID]; done {
			continue
		}
		p := s.progress(def)
		if p < def.Requirement {
			continue
		}
		u, created, err := uc.Unlock(ctx, accountID, def.ID, p, now)
		if err != nil {
			return fresh, err
		}
		if created {
			fresh = append(fresh, u)
		}
	}
	return fresh, nil
}

func (uc *achievementUC) List(ctx context.Context, accountID string, now time.Time) (*model.AchievementsView, error) {
	defer logging.TraceDuration(uc.log, "AchievementUC.List")()
	s, err := uc.load(ctx, accountID, now)
	if err != nil {
		return nil, err
	}

	defs := uc.catalog.All()
	view := &model.AchievementsView{
		Items:      make([]model.AchievementItem, 0, len(defs)),
		TotalCount: len(defs),
		ByCategory: make(map[model.AchievementCategory][]model.AchievementItem),
	}
	for _, def := range defs {
		p := s.progress(def)
		item := model.AchievementItem{
			ID:              def.ID,
			Name:            def.Name,
			Description:     def.Description,
			Category:        def.Category,
			Requirement:     def.Requirement,
			XP:              def.XP,
			Progress:        p,
			ProgressPercent: model.ProgressPercent(p, def.Requirement),
		}
		if u, ok := s.unlocked[def.ID]; ok {
			at := u.UnlockedAt
			item.Unlocked = true
			item.UnlockedAt = &at
			view.UnlockedCount++
			view.TotalXP += def.XP
		}
		view.Items = append(view.Items, item)
		view.ByCategory[def.Category] = append(view.ByCategory[def.Category], item)
	}
	return view, nil
}
