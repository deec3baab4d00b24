package model

import (
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

type AchievementCategory string

const (
	CategoryGeneration AchievementCategory = "generation"
	CategoryStreaks    AchievementCategory = "streaks"
	CategoryEngagement AchievementCategory = "engagement"
	CategoryMilestones AchievementCategory = "milestones"
)

func (c AchievementCategory) Valid() bool {
	switch c {
	case CategoryGeneration, CategoryStreaks, CategoryEngagement, CategoryMilestones:
		return true
	}
	return false
}

// AchievementDefinition is one immutable catalog entry.
type AchievementDefinition struct {
	ID          string              `yaml:"id" json:"id"`
	Name        string              `yaml:"name" json:"name"`
	Description string              `yaml:"description" json:"description"`
	Category    AchievementCategory `yaml:"category" json:"category"`
	Requirement int                 `yaml:"requirement" json:"requirement"`
	XP          int                 `yaml:"xp" json:"xp"`
}

// Metric is the counter an achievement family measures progress against.
type Metric string

const (
	MetricNone        Metric = ""
	MetricHooks       Metric = "hooks"
	MetricThreads     Metric = "threads"
	MetricStreak      Metric = "streak"
	MetricTemplates   Metric = "templates"
	MetricCollections Metric = "collections"
	MetricSchedules   Metric = "schedules"
)

var metricPrefixes = []struct {
	prefix string
	metric Metric
}{
	{"first_hook", MetricHooks},
	{"hooks_", MetricHooks},
	{"first_thread", MetricThreads},
	{"threads_", MetricThreads},
	{"streak_", MetricStreak},
	{"first_template", MetricTemplates},
	{"templates_", MetricTemplates},
	{"first_collection", MetricCollections},
	{"collections_", MetricCollections},
	{"first_schedule", MetricSchedules},
	{"scheduled_", MetricSchedules},
}

// MetricFor resolves the id family of an achievement. Unknown families return MetricNone.
func MetricFor(id string) Metric {
	for _, p := range metricPrefixes {
		if strings.HasPrefix(id, p.prefix) {
			return p.metric
		}
	}
	return MetricNone
}

// DerivedCounts are owned-entity counts supplied by the content collaborators.
type DerivedCounts struct {
	Templates      int
	Collections    int
	ScheduledPosts int
}

// ProgressInput is everything progress is computed from.
type ProgressInput struct {
	Account  *Account
	Streak   int // effective current streak
	Counts   DerivedCounts
	Unlocked bool
}

// ComputeProgress returns progress towards def, capped at its requirement.
func ComputeProgress(def AchievementDefinition, in ProgressInput) int {
	var v int64
	switch MetricFor(def.ID) {
	case MetricHooks:
		if in.Account != nil {
			v = in.Account.Usage.TotalHooks
		}
	case MetricThreads:
		if in.Account != nil {
			v = in.Account.Usage.TotalThreads
		}
	case MetricStreak:
		v = int64(in.Streak)
	case MetricTemplates:
		v = int64(in.Counts.Templates)
	case MetricCollections:
		v = int64(in.Counts.Collections)
	case MetricSchedules:
		v = int64(in.Counts.ScheduledPosts)
	default:
		if in.Unlocked {
			return def.Requirement
		}
		return 0
	}
	if v < 0 {
		v = 0
	}
	return int(min(v, int64(def.Requirement)))
}

// ProgressPercent is round(100*progress/requirement) clamped to [0,100].
func ProgressPercent(progress, requirement int) int {
	if requirement <= 0 {
		return 100
	}
	p := int(math.Round(100 * float64(progress) / float64(requirement)))
	return max(0, min(p, 100))
}

// UnlockedAchievement is created once per (account, achievement) and never changed.
type UnlockedAchievement struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"account_id"`
	AchievementID string    `json:"achievement_id"`
	UnlockedAt    time.Time `json:"unlocked_at"`
	Progress      int       `json:"progress"`
}

func NewUnlockedAchievement(accountID, achievementID string, progress int, now time.Time) *UnlockedAchievement {
	return &UnlockedAchievement{
		ID:            ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		AccountID:     accountID,
		AchievementID: achievementID,
		UnlockedAt:    now,
		Progress:      progress,
	}
}

// AchievementItem is one row of the achievement listing.
type AchievementItem struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Description     string              `json:"description"`
	Category        AchievementCategory `json:"category"`
	Requirement     int                 `json:"requirement"`
	XP              int                 `json:"xp"`
	Unlocked        bool                `json:"unlocked"`
	UnlockedAt      *time.Time          `json:"unlocked_at,omitempty"`
	Progress        int                 `json:"progress"`
	ProgressPercent int                 `json:"progress_percent"`
}

// AchievementsView is derived on read and never persisted.
type AchievementsView struct {
	Items         []AchievementItem                         `json:"items"`
	TotalXP       int                                       `json:"total_xp"`
	UnlockedCount int                                       `json:"unlocked_count"`
	TotalCount    int                                       `json:"total_count"`
	ByCategory    map[AchievementCategory][]AchievementItem `json:"by_category"`
}
