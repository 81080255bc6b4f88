// Package ensemble loads a fixed set of binary classifiers and combines their
// predictions by majority vote.
package ensemble

import (
	"github.com/jmehdipour/satisfaction-predictor/internal/model"
)

// Classifier is one loaded, immutable predictive model.
type Classifier interface {
	Predict(rec model.FeatureRecord) (model.Label, error)
}

// Member is a classifier together with the source it was loaded from.
type Member struct {
	Source     string
	Classifier Classifier
}

// Ensemble is the ordered, read-only set of classifiers used for voting.
// It is safe for concurrent use once built.
type Ensemble struct {
	members []Member
}

// New builds an ensemble from members, keeping their order.
func New(members ...Member) *Ensemble {
	return &Ensemble{members: append([]Member(nil), members...)}
}

func (e *Ensemble) Len() int {
	if e == nil {
		return 0
	}
	return len(e.members)
}

// Sources lists the member sources in voting order.
func (e *Ensemble) Sources() []string {
	if e == nil {
		return nil
	}
	out := make([]string, len(e.members))
	for i, m := range e.members {
		out[i] = m.Source
	}
	return out
}
