package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "countries_refresh_total",
			Help: "Refresh attempts partitioned by outcome",
		},
		[]string{"outcome"},
	)

	refreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "countries_refresh_duration_seconds",
			Help:    "Wall time of a refresh including both fetches and the transaction",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
	)

	refreshRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "countries_refresh_rows_total",
			Help: "Country rows written by refreshes partitioned by operation",
		},
		[]string{"op"},
	)

	lastRefreshTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "countries_last_refresh_timestamp_seconds",
			Help: "Unix time of the last successful refresh",
		},
	)
)

// refreshOutcome maps a refresh error onto a low-cardinality label
func refreshOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsDataSourceUnavailable(err):
		return "data_source_unavailable"
	case IsValidationFailed(err):
		return "validation_failed"
	case IsStorageFailure(err):
		return "storage_failure"
	default:
		return "error"
	}
}

func observeRefresh(res *RefreshResult, err error, refreshedAt time.Time, elapsed time.Duration) {
	refreshTotal.WithLabelValues(refreshOutcome(err)).Inc()
	refreshDuration.Observe(elapsed.Seconds())

	if err != nil || res == nil {
		return
	}

	refreshRows.WithLabelValues("inserted").Add(float64(res.Inserted))
	refreshRows.WithLabelValues("updated").Add(float64(res.Updated))
	lastRefreshTimestamp.Set(float64(refreshedAt.Unix()))
}
