package ensemble

import (
	"go.uber.org/zap"
)

// Opener deserializes one model source into a Classifier.
type Opener interface {
	Open(source string) (Classifier, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(source string) (Classifier, error)

func (f OpenerFunc) Open(source string) (Classifier, error) { return f(source) }

// Loader builds an Ensemble from a list of sources on a best-effort basis.
type Loader struct {
	opener Opener
	log    *zap.Logger
}

func NewLoader(opener Opener, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{opener: opener, log: log}
}

// Load opens every source in order. A source that fails is recorded as a
// LoadFailure and skipped; the remaining sources are still loaded. The
// returned ensemble may be empty but is never nil.
func (l *Loader) Load(sources []string) (*Ensemble, []LoadFailure) {
	members := make([]Member, 0, len(sources))
	var failures []LoadFailure

	for _, src := range sources {
		clf, err := l.opener.Open(src)
		if err == nil && clf == nil {
			err = errNilClassifier
		}
		if err != nil {
			f := LoadFailure{Source: src, Err: err}
			failures = append(failures, f)
			l.log.Warn("model load failed",
				zap.String("source", src),
				zap.Bool("missing", f.Missing()),
				zap.Error(err),
			)
			continue
		}

		members = append(members, Member{Source: src, Classifier: clf})
		l.log.Debug("model loaded", zap.String("source", src))
	}

	l.log.Info("ensemble loaded",
		zap.Int("requested", len(sources)),
		zap.Int("loaded", len(members)),
		zap.Int("failed", len(failures)),
	)

	return New(members...), failures
}
