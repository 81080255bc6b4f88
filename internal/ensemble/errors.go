package ensemble

import (
	"errors"
	"fmt"
	"io/fs"
)

// ErrEmptyEnsemble is returned by Predict when no classifier is loaded.
var ErrEmptyEnsemble = errors.New("cannot predict, no models available")

// ErrInvalidLabel is wrapped in a PredictionFailure when a member returns
// something other than LabelNotSatisfied or LabelSatisfied.
var ErrInvalidLabel = errors.New("classifier returned an invalid label")

var errNilClassifier = errors.New("opener returned no classifier")

// LoadFailure is the diagnostic recorded for a source that could not be loaded.
type LoadFailure struct {
	Source string
	Err    error
}

func (f LoadFailure) Error() string {
	return fmt.Sprintf("failed to load model %q: %v", f.Source, f.Err)
}

func (f LoadFailure) Unwrap() error { return f.Err }

// Missing reports whether the source did not exist.
func (f LoadFailure) Missing() bool { return errors.Is(f.Err, fs.ErrNotExist) }

// PredictionFailure aborts a whole prediction when one member fails.
type PredictionFailure struct {
	Index  int
	Source string
	Err    error
}

func (f *PredictionFailure) Error() string {
	return fmt.Sprintf("prediction failed on model %q (#%d): %v", f.Source, f.Index+1, f.Err)
}

func (f *PredictionFailure) Unwrap() error { return f.Err }
