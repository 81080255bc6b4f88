package prediction

import (
	"errors"
	"fmt"

	"github.com/jmehdipour/satisfaction-predictor/internal/booster"
	"github.com/jmehdipour/satisfaction-predictor/internal/ensemble"
	"github.com/jmehdipour/satisfaction-predictor/internal/metrics"
	"github.com/jmehdipour/satisfaction-predictor/internal/model"
	"github.com/jmehdipour/satisfaction-predictor/internal/vocabulary"
	"go.uber.org/zap"
)

// Opts points at the model artifacts and the category list.
type Opts struct {
	ModelDir       string
	ModelFiles     []string
	CategoriesFile string
}

// Bootstrap loads the ensemble and the vocabulary once. Missing or broken
// inputs never fail the call; they are reported in the Status warnings.
func Bootstrap(opts Opts, log *zap.Logger) *Service {
	return bootstrap(booster.Opener{Dir: opts.ModelDir}, opts, log)
}

func bootstrap(opener ensemble.Opener, opts Opts, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}

	ens, failures := ensemble.NewLoader(opener, log).Load(opts.ModelFiles)

	status := Status{
		Loaded:   ens.Sources(),
		Failures: failures,
	}
	for _, f := range failures {
		status.Warnings = append(status.Warnings, f.Error())
	}
	if ens.Len() == 0 {
		status.Warnings = append(status.Warnings, "model not loaded, cannot predict")
	}

	categories, err := vocabulary.LoadCategories(opts.CategoriesFile)
	switch {
	case errors.Is(err, vocabulary.ErrMissing):
		log.Warn("category list not found", zap.String("path", opts.CategoriesFile))
		status.Warnings = append(status.Warnings, fmt.Sprintf("category list %q not found", opts.CategoriesFile))
	case err != nil:
		log.Warn("category list unreadable", zap.String("path", opts.CategoriesFile), zap.Error(err))
		status.Warnings = append(status.Warnings, fmt.Sprintf("failed to read category list: %v", err))
	default:
		log.Info("category list loaded", zap.Int("categories", len(categories)))
	}

	metrics.EnsembleModels.WithLabelValues("loaded").Set(float64(ens.Len()))
	metrics.EnsembleModels.WithLabelValues("failed").Set(float64(len(failures)))

	return New(ens, model.NewVocabulary(categories), status, log)
}
