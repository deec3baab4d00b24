package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(usageEventsTotal, usageTokensTotal, usageCostMicro, quotaBlocksTotal) }

var (
	usageEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_events_total",
			Help: "Generation events recorded by the ledger, by kind.",
		},
		[]string{"kind"},
	)

	usageTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_tokens_total",
			Help: "Tokens consumed by generations, by kind.",
		},
		[]string{"kind"},
	)

	usageCostMicro = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_cost_micro",
			Help: "Total micro-cost of generations, by kind.",
		},
		[]string{"kind"},
	)

	quotaBlocksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_blocks_total",
			Help: "Generations refused by plan quota, by plan.",
		},
		[]string{"plan"},
	)
)

func ObserveUsage(kind string, tokens, costMicro int64) {
	k := norm(kind)
	usageEventsTotal.WithLabelValues(k).Inc()
	usageTokensTotal.WithLabelValues(k).Add(float64(tokens))
	usageCostMicro.WithLabelValues(k).Add(float64(costMicro))
}

func IncQuotaBlocked(plan string) {
	quotaBlocksTotal.WithLabelValues(norm(plan)).Inc()
}
