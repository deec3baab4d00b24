package metrics

import "github.com/prometheus/client_golang/prometheus"

// PoolStatFunc reports connection pool state at scrape time.
type PoolStatFunc func() (total, idle, inUse int32)

// RegisterDBPool exposes db_pool_stats{state} gauges read from stat on every scrape.
func RegisterDBPool(reg prometheus.Registerer, stat PoolStatFunc) error {
	for _, state := range []string{"total", "idle", "in_use"} {
		state := state
		g := prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:        "db_pool_stats",
				Help:        "Current state of the database connection pool.",
				ConstLabels: prometheus.Labels{"state": state},
			},
			func() float64 {
				total, idle, inUse := stat()
				switch state {
				case "total":
					return float64(total)
				case "idle":
					return float64(idle)
				default:
					return float64(inUse)
				}
			},
		)
		if err := reg.Register(g); err != nil {
			return err
		}
	}
	return nil
}
