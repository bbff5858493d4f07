package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ExtractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "assetgate_extraction_seconds",
		Help:    "Time spent extracting references from one asset file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	CheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "assetgate_check_seconds",
		Help:    "Wall time of one full consistency run.",
		Buckets: prometheus.DefBuckets,
	})

	ClosureRounds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "assetgate_closure_rounds",
		Help:    "Expansion rounds needed to reach the closure fixpoint.",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
	})

	StoreLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assetgate_store_lookups_total",
		Help: "Store collaborator lookups by operation.",
	}, []string{"op"})

	FindingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assetgate_findings_total",
		Help: "Findings produced across runs, by category.",
	}, []string{"category"})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assetgate_runs_total",
		Help: "Consistency runs by outcome.",
	}, []string{"outcome"})

	ClosureSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "assetgate_closure_assets",
		Help: "Assets in the most recent run's resolved closure.",
	})
)
