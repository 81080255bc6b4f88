// Package booster loads gradient-boosted tree ensembles exported by the
// training pipeline and evaluates them against a FeatureRecord.
package booster

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jmehdipour/satisfaction-predictor/internal/ensemble"
	"github.com/jmehdipour/satisfaction-predictor/internal/model"
)

const (
	FormatV1          = "tree-booster/v1"
	ObjectiveLogistic = "binary:logistic"

	defaultThreshold = 0.5
)

var (
	ErrCorruptModel    = errors.New("corrupt model artifact")
	ErrSchemaMismatch  = errors.New("feature schema mismatch")
	ErrUnknownCategory = errors.New("unknown category")
)

type featureKind int

const (
	kindNumeric featureKind = iota
	kindCategorical
)

type feature struct {
	name  string
	kind  featureKind
	codes map[string]int
}

type node struct {
	leaf        bool
	value       float64
	featureIdx  int
	threshold   float64
	categorical bool
	categories  []int
	left, right int
}

type tree []node

// Booster is a binary logistic tree ensemble. It is immutable and safe for
// concurrent use.
type Booster struct {
	name      string
	baseScore float64
	threshold float64
	features  []feature
	trees     []tree
}

// Open reads the artifact at path. File system errors are returned wrapped
// (fs.ErrNotExist stays detectable); anything wrong with the content yields
// ErrCorruptModel.
func Open(path string) (*Booster, error) {
	raw, err := readArtifact(path)
	if err != nil {
		return nil, err
	}
	b, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if b.name == "" {
		base := filepath.Base(path)
		for _, ext := range []string{".gz", ".json"} {
			base = strings.TrimSuffix(base, ext)
		}
		b.name = base
	}
	return b, nil
}

func readArtifact(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, int64(maxArtifactSize)+1))
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	if len(raw) > maxArtifactSize {
		return nil, fmt.Errorf("%s: %w: artifact larger than %d bytes", filepath.Base(path), ErrCorruptModel, maxArtifactSize)
	}
	return raw, nil
}

// Opener opens artifacts relative to Dir. It plugs into ensemble.Loader.
type Opener struct {
	Dir string
}

func (o Opener) Open(source string) (ensemble.Classifier, error) {
	path := source
	if o.Dir != "" && !filepath.IsAbs(source) {
		path = filepath.Join(o.Dir, source)
	}
	b, err := Open(path)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Booster) Name() string { return b.name }

func (b *Booster) Threshold() float64 { return b.threshold }

// Predict returns LabelSatisfied when the predicted probability reaches the
// model threshold.
func (b *Booster) Predict(rec model.FeatureRecord) (model.Label, error) {
	p, err := b.Probability(rec)
	if err != nil {
		return model.LabelNotSatisfied, err
	}
	if p >= b.threshold {
		return model.LabelSatisfied, nil
	}
	return model.LabelNotSatisfied, nil
}

// Probability returns the positive-class probability for rec.
func (b *Booster) Probability(rec model.FeatureRecord) (float64, error) {
	x, err := b.encode(rec)
	if err != nil {
		return 0, err
	}
	margin := b.baseScore
	for _, t := range b.trees {
		margin += t.eval(x)
	}
	return 1 / (1 + math.Exp(-margin)), nil
}

func (b *Booster) encode(rec model.FeatureRecord) ([]float64, error) {
	numeric := rec.Numeric()
	categorical := rec.Categorical()

	x := make([]float64, len(b.features))
	for i, f := range b.features {
		switch f.kind {
		case kindNumeric:
			v, ok := numeric[f.name]
			if !ok {
				return nil, mismatch(f.name, "numeric", categorical)
			}
			x[i] = v
		case kindCategorical:
			s, ok := categorical[f.name]
			if !ok {
				return nil, mismatch(f.name, "categorical", numeric)
			}
			code, ok := f.codes[s]
			if !ok {
				return nil, fmt.Errorf("%w %q for feature %q", ErrUnknownCategory, s, f.name)
			}
			x[i] = float64(code)
		}
	}
	return x, nil
}

func mismatch[V any](name, want string, other map[string]V) error {
	if _, ok := other[name]; ok {
		return fmt.Errorf("%w: feature %q is %s in the model but not in the record", ErrSchemaMismatch, name, want)
	}
	return fmt.Errorf("%w: record has no feature %q", ErrSchemaMismatch, name)
}

func (t tree) eval(x []float64) float64 {
	i := 0
	for {
		n := t[i]
		if n.leaf {
			return n.value
		}
		v := x[n.featureIdx]
		switch {
		case n.categorical:
			if slices.Contains(n.categories, int(v)) {
				i = n.right
			} else {
				i = n.left
			}
		case v < n.threshold:
			i = n.left
		default:
			i = n.right
		}
	}
}
