package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PriceAdjustmentRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_adjustment_runs_total",
			Help: "Price adjustment runs by outcome",
		},
		[]string{"sport", "outcome"},
	)

	RacesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_adjustment_races_processed_total",
			Help: "Races marked as price adjusted",
		},
		[]string{"sport"},
	)

	PriceDeltaUnits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_delta_units_total",
			Help: "Absolute price units moved by the engine",
		},
		[]string{"sport", "kind", "direction"},
	)

	ScoreComputationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "score_computation_duration_seconds",
			Help:    "Time spent computing scores",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"view"},
	)

	PointsImportMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "points_import_messages_total",
			Help: "Points import messages by outcome",
		},
		[]string{"outcome"},
	)
)
