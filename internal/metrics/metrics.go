package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ProviderRequestsTotal prometheus.Counter
	ProviderErrorsTotal   prometheus.Counter

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	SnapshotFlushesTotal     prometheus.Counter
	SnapshotFlushErrorsTotal prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ProviderRequestsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "provider_requests_total",
				Help: "Total number of requests issued to the rate provider",
			},
		),

		ProviderErrorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "provider_errors_total",
				Help: "Total number of failed rate provider requests",
			},
		),

		CacheHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of exchange rate cache hits",
			},
		),

		CacheMissesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of exchange rate cache misses",
			},
		),

		SnapshotFlushesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "snapshot_flushes_total",
				Help: "Total number of cache snapshots written to disk",
			},
		),

		SnapshotFlushErrorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "snapshot_flush_errors_total",
				Help: "Total number of failed cache snapshot writes",
			},
		),
	}
}
