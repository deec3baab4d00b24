package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		redemptionsTotal,
		achievementsUnlockedTotal,
		streakEventsTotal,
		concurrencyConflictsTotal,
		enrichmentFailuresTotal,
	)
}

var (
	redemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redemptions_total",
			Help: "Redemption attempts by code type and outcome reason.",
		},
		[]string{"type", "result"}, // result: 'success' or a failure reason
	)

	achievementsUnlockedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "achievements_unlocked_total",
			Help: "Achievements unlocked, by achievement id.",
		},
		[]string{"achievement"},
	)

	streakEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streak_events_total",
			Help: "Streak transitions produced by recorded activity.",
		},
		[]string{"event"}, // first_activity | streak_continued | streak_reset | no_change | invalidated
	)

	concurrencyConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concurrency_conflicts_total",
			Help: "Lost conditional writes, by operation.",
		},
		[]string{"operation"},
	)

	enrichmentFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_failures_total",
			Help: "Best-effort streak/achievement updates that failed and were only logged.",
		},
		[]string{"stage"},
	)
)

func IncRedemption(codeType, result string) {
	if codeType == "" {
		codeType = "unknown"
	}
	redemptionsTotal.WithLabelValues(norm(codeType), norm(result)).Inc()
}

func IncAchievementUnlocked(id string) {
	achievementsUnlockedTotal.WithLabelValues(norm(id)).Inc()
}

func IncStreakEvent(event string) {
	streakEventsTotal.WithLabelValues(norm(event)).Inc()
}

func IncConcurrencyConflict(op string) {
	concurrencyConflictsTotal.WithLabelValues(norm(op)).Inc()
}

func IncEnrichmentFailure(stage string) {
	enrichmentFailuresTotal.WithLabelValues(norm(stage)).Inc()
}
