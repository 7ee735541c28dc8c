package catalogue

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for catalogue reads.
type Metrics struct {
	ShardsRead   prometheus.Counter
	RowsRead     *prometheus.CounterVec
	ReadDuration prometheus.Histogram
	ReadErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	shardsRead := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eagle_catalogue_shards_read_total",
		Help: "Total shard files read",
	})

	rowsRead := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eagle_catalogue_rows_read_total",
		Help: "Total catalogue rows returned, per table",
	}, []string{"table"})

	readDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "eagle_catalogue_read_duration_seconds",
		Help:    "Wall time of whole-catalogue field reads",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	})

	readErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eagle_catalogue_read_errors_total",
		Help: "Failed catalogue reads, per table",
	}, []string{"table"})

	reg.MustRegister(shardsRead, rowsRead, readDuration, readErrors)

	return &Metrics{
		ShardsRead:   shardsRead,
		RowsRead:     rowsRead,
		ReadDuration: readDuration,
		ReadErrors:   readErrors,
	}
}
