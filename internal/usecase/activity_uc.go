package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"hookstudio/internal/domain"
	"hookstudio/internal/domain/model"
	"hookstudio/internal/infra/logging"
	"hookstudio/internal/infra/metrics"
)

// Compile-time check
var _ ActivityUseCase = (*activityUC)(nil)

// TokenCounter estimates tokens for content when the producer did not report them.
type TokenCounter interface {
	Count(text string) int64
}

// GenerationEvent is emitted by the generation service after producing content.
type GenerationEvent struct {
	AccountID  string
	Kind       model.UsageKind
	Tokens     int64
	CostMicros int64
	Content    string    // optional, used only to estimate Tokens
	At         time.Time // zero means now
}

// GenerationOutcome is the ledger result plus whatever enrichment succeeded.
type GenerationOutcome struct {
	Account      model.AccountView            `json:"account"`
	Streak       *model.StreakEvent           `json:"streak,omitempty"`
	Achievements []*model.UnlockedAchievement `json:"achievements,omitempty"`
}

// EngagementOutcome carries the best-effort results of an engagement event.
type EngagementOutcome struct {
	Streak       *model.StreakEvent           `json:"streak,omitempty"`
	Achievements []*model.UnlockedAchievement `json:"achievements,omitempty"`
}

// ActivityUseCase turns collaborator events into ledger, streak and achievement updates.
// Only the ledger write can fail the call; streak and achievement updates are
// logged and counted on failure.
type ActivityUseCase interface {
	RecordGeneration(ctx context.Context, ev GenerationEvent) (*GenerationOutcome, error)
	// RecordEngagement handles template-used, post-scheduled and collection-created events.
	RecordEngagement(ctx context.Context, accountID, source string, at time.Time) (*EngagementOutcome, error)
}

type activityUC struct {
	ledger       LedgerUseCase
	streaks      StreakUseCase
	achievements AchievementUseCase
	tokens       TokenCounter
	log          *zerolog.Logger
}

func NewActivityUseCase(ledger LedgerUseCase, streaks StreakUseCase, achievements AchievementUseCase, tokens TokenCounter, logger *zerolog.Logger) *activityUC {
	return &activityUC{
		ledger:       ledger,
		streaks:      streaks,
		achievements: achievements,
		tokens:       tokens,
		log:          logger,
	}
}

func (uc *activityUC) RecordGeneration(ctx context.Context, ev GenerationEvent) (*GenerationOutcome, error) {
	defer logging.TraceDuration(uc.log, "ActivityUC.RecordGeneration")()

	now := ev.At
	if now.IsZero() {
		now = time.Now()
	}
	tokens := ev.Tokens
	if tokens == 0 && ev.Content != "" && uc.tokens != nil {
		tokens = uc.tokens.Count(ev.Content)
	}

	view, err := uc.ledger.RecordUsage(ctx, UsageEvent{
		AccountID:  ev.AccountID,
		Kind:       ev.Kind,
		Tokens:     tokens,
		CostMicros: ev.CostMicros,
	}, now)
	if err != nil {
		return nil, err
	}

	out := &GenerationOutcome{Account: *view}
	out.Streak, out.Achievements = uc.enrich(ctx, ev.AccountID, now)
	return out, nil
}

func (uc *activityUC) RecordEngagement(ctx context.Context, accountID, source string, at time.Time) (*EngagementOutcome, error) {
	defer logging.TraceDuration(uc.log, "ActivityUC.RecordEngagement")()
	if accountID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if at.IsZero() {
		at = time.Now()
	}
	uc.log.Debug().Str("account_id", accountID).Str("source", source).Msg("engagement event")

	out := &EngagementOutcome{}
	out.Streak, out.Achievements = uc.enrich(ctx, accountID, at)
	return out, nil
}

// enrich runs the streak and achievement updates; failures never reach the caller.
func (uc *activityUC) enrich(ctx context.Context, accountID string, now time.Time) (*model.StreakEvent, []*model.UnlockedAchievement) {
	log := logging.With(ctx, uc.log)

	var streak *model.StreakEvent
	if ev, _, err := uc.streaks.RecordActivity(ctx, accountID, now); err != nil {
		metrics.IncEnrichmentFailure("streak")
		log.Warn().Err(err).Str("account_id", accountID).Msg("streak update failed")
	} else {
		streak = &ev
	}

	unlocked, err := uc.achievements.Evaluate(ctx, accountID, now)
	if err != nil {
		metrics.IncEnrichmentFailure("achievements")
		log.Warn().Err(err).Str("account_id", accountID).Msg("achievement evaluation failed")
	}
	return streak, unlocked
}
