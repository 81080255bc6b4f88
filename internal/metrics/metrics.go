package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satpred_predictions_total",
			Help: "Prediction requests by outcome",
		},
		[]string{"outcome"}, // satisfied|not_satisfied|invalid|failed|unavailable
	)

	VotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satpred_votes_total",
			Help: "Member votes by label",
		},
		[]string{"label"},
	)

	EnsembleModels = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "satpred_ensemble_models",
			Help: "Configured model sources by load state",
		},
		[]string{"state"}, // loaded|failed
	)

	PredictionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "satpred_prediction_duration_seconds",
			Help:    "Time spent evaluating the whole ensemble",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		PredictionsTotal,
		VotesTotal,
		EnsembleModels,
		PredictionDuration,
	)
}
