package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sniper_cycles_total",
		Help: "The total number of poll cycles run",
	}, []string{"status"})

	CycleDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sniper_cycle_duration_seconds",
		Help:    "Duration of one poll cycle",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	CandidatesSeen = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sniper_candidates_seen_total",
		Help: "The total number of candidate tenders surfaced by the feed",
	})

	CandidatesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sniper_candidates_dropped_total",
		Help: "Candidates dropped per pipeline stage",
	}, []string{"stage"})

	EnrichmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sniper_enrichments_total",
		Help: "Detail-page enrichment attempts",
	}, []string{"status"})

	OracleCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sniper_oracle_calls_total",
		Help: "Oracle assessments by decision",
	}, []string{"decision"})

	SendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sniper_sends_total",
		Help: "Notification send attempts by outcome",
	}, []string{"outcome"})

	ActiveFilters = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sniper_active_filters",
		Help: "Number of active filters in the last cycle",
	})

	TentativeSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sniper_tentative_deliveries_swept_total",
		Help: "Tentative delivery rows reclaimed by the expiry sweep",
	})
)
