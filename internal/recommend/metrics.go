package recommend

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ContractFreeText   = "free_text"
	ContractStructured = "structured"
)

type Stage string

const (
	StageAggregating Stage = "aggregating"
	StageValidating  Stage = "validating"
	StageSanitizing  Stage = "sanitizing"
	StagePrompting   Stage = "prompting"
	StageCalling     Stage = "calling"
	StageExtracting  Stage = "extracting"
)

// Metrics counts outcomes per contract and times each pipeline stage.
type Metrics struct {
	Outcomes *prometheus.CounterVec
	Stages   *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg. A nil reg yields unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Outcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexlook_recommendations_total",
				Help: "Recommendation requests by contract and terminal outcome",
			},
			[]string{"contract", "outcome"},
		),
		Stages: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nexlook_recommendation_stage_seconds",
				Help:    "Duration of recommendation pipeline stages in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),
	}
}

func (m *Metrics) observeOutcome(contract string, kind OutcomeKind) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(contract, string(kind)).Inc()
}

func (m *Metrics) observeStage(stage Stage, start time.Time) {
	if m == nil {
		return
	}
	m.Stages.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
}
