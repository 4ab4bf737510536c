// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	InterpretationConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "estimation_interpretation_confidence",
			Help:    "Confidence of interpreted project descriptions",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 9),
		},
	)

	CatalogMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estimation_catalog_misses_total",
			Help: "Catalog lookups that returned no entries or failed",
		},
		[]string{"kind"},
	)

	OfferTotalPrice = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "estimation_offer_total_price_dkk",
			Help:    "Total offer price in DKK",
			Buckets: prometheus.ExponentialBuckets(1000, 2, 12),
		},
	)

	RiskScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "estimation_risk_score",
			Help:    "Risk score of analyzed offers",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)

	FeedbackCollected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estimation_feedback_collected_total",
			Help: "Completed projects processed by feedback collection, by outcome",
		},
		[]string{"outcome"},
	)

	CalibrationAdjustments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estimation_calibration_adjustments_total",
			Help: "Calibration adjustments proposed or recorded, by type",
		},
		[]string{"adjustment_type", "state"},
	)
)
