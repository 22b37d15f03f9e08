package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	SearchQueries  prometheus.Counter
	StatisticsRows prometheus.Counter
	BackupsTotal   prometheus.Counter
	BackupFailures prometheus.Counter
	ChatsImported  prometheus.Counter
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "alpaca",
				Name:      "model_cache_hits_total",
				Help:      "Total model cache lookups served from cache",
			}),
			CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "alpaca",
				Name:      "model_cache_misses_total",
				Help:      "Total model cache lookups that missed or were expired",
			}),
			SearchQueries: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "alpaca",
				Name:      "search_queries_total",
				Help:      "Total cross-chat search queries executed",
			}),
			StatisticsRows: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "alpaca",
				Name:      "statistics_rows_total",
				Help:      "Total usage statistics rows recorded",
			}),
			BackupsTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "alpaca",
				Name:      "backups_total",
				Help:      "Total backups created",
			}),
			BackupFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "alpaca",
				Name:      "backup_failures_total",
				Help:      "Total backup attempts that failed",
			}),
			ChatsImported: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "alpaca",
				Name:      "chats_imported_total",
				Help:      "Total chats imported from exported databases",
			}),
		}
		prometheus.MustRegister(
			global.CacheHits, global.CacheMisses, global.SearchQueries,
			global.StatisticsRows, global.BackupsTotal, global.BackupFailures,
			global.ChatsImported,
		)
	})
	return global
}
