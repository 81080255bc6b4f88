package prediction

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmehdipour/satisfaction-predictor/internal/ensemble"
	"github.com/jmehdipour/satisfaction-predictor/internal/metrics"
	"github.com/jmehdipour/satisfaction-predictor/internal/model"
	"github.com/jmehdipour/satisfaction-predictor/internal/util"
	"go.uber.org/zap"
)

var ErrInvalidRecord = errors.New("invalid feature record")

// Outcome is the result of one ensemble prediction.
type Outcome struct {
	ID     string
	Label  model.Label
	Tally  ensemble.VoteTally
	Models int
}

// Status describes what was loaded at startup.
type Status struct {
	Loaded   []string
	Failures []ensemble.LoadFailure
	Warnings []string
}

// Service validates feature records against the vocabulary and runs them
// through the ensemble. It is read-only after construction.
type Service struct {
	ens    *ensemble.Ensemble
	vocab  model.Vocabulary
	status Status
	log    *zap.Logger
}

// New constructs the prediction service.
func New(ens *ensemble.Ensemble, vocab model.Vocabulary, status Status, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if ens == nil {
		ens = ensemble.New()
	}
	return &Service{ens: ens, vocab: vocab, status: status, log: log}
}

func (s *Service) Vocabulary() model.Vocabulary { return s.vocab }

func (s *Service) Status() Status { return s.status }

// Ready reports whether at least one model is loaded.
func (s *Service) Ready() bool { return s.ens.Len() > 0 }

// Predict validates rec and returns the majority label with its tally.
// Errors are ensemble.ErrEmptyEnsemble, ErrInvalidRecord (wrapping
// model.ValidationErrors) or a *ensemble.PredictionFailure.
func (s *Service) Predict(ctx context.Context, rec model.FeatureRecord) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	if !s.Ready() {
		metrics.PredictionsTotal.WithLabelValues("unavailable").Inc()
		return Outcome{}, ensemble.ErrEmptyEnsemble
	}

	if err := s.vocab.Validate(rec); err != nil {
		metrics.PredictionsTotal.WithLabelValues("invalid").Inc()
		return Outcome{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	start := time.Now()
	label, tally, err := ensemble.Predict(s.ens, rec)
	metrics.PredictionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PredictionsTotal.WithLabelValues("failed").Inc()
		s.log.Warn("prediction failed", zap.Error(err))
		return Outcome{}, err
	}

	for _, l := range tally.Labels() {
		metrics.VotesTotal.WithLabelValues(strconv.Itoa(int(l))).Add(float64(tally.Count(l)))
	}
	metrics.PredictionsTotal.WithLabelValues(outcomeLabel(label)).Inc()

	out := Outcome{
		ID:     util.New(),
		Label:  label,
		Tally:  tally,
		Models: s.ens.Len(),
	}
	s.log.Debug("prediction",
		zap.String("id", out.ID),
		zap.Stringer("label", label),
		zap.Stringer("votes", tally),
	)
	return out, nil
}

func outcomeLabel(l model.Label) string {
	if l == model.LabelSatisfied {
		return "satisfied"
	}
	return "not_satisfied"
}
