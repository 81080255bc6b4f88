package ensemble

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/jmehdipour/satisfaction-predictor/internal/model"
)

// VoteTally counts labels and remembers the order in which each label was
// first seen.
type VoteTally struct {
	order  []model.Label
	counts map[model.Label]int
}

func (t *VoteTally) Add(l model.Label) {
	if t.counts == nil {
		t.counts = make(map[model.Label]int, 2)
	}
	if _, ok := t.counts[l]; !ok {
		t.order = append(t.order, l)
	}
	t.counts[l]++
}

func (t VoteTally) Count(l model.Label) int { return t.counts[l] }

// Labels returns the distinct labels in first-seen order.
func (t VoteTally) Labels() []model.Label {
	return append([]model.Label(nil), t.order...)
}

// Counts returns a copy of the label counts.
func (t VoteTally) Counts() map[model.Label]int {
	out := make(map[model.Label]int, len(t.counts))
	for l, n := range t.counts {
		out[l] = n
	}
	return out
}

func (t VoteTally) Total() int {
	total := 0
	for _, n := range t.counts {
		total += n
	}
	return total
}

// Winner returns the label with the highest count. Among labels sharing the
// highest count, the one seen first wins. ok is false for an empty tally.
func (t VoteTally) Winner() (label model.Label, ok bool) {
	best := 0
	for _, l := range t.order {
		if n := t.counts[l]; n > best {
			best = n
			label = l
			ok = true
		}
	}
	return label, ok
}

// String renders the tally as {1: 3, 0: 2}, in first-seen order.
func (t VoteTally) String() string {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, l := range t.order {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(int(l)))
		b.WriteString(": ")
		b.WriteString(strconv.Itoa(t.counts[l]))
	}
	b.WriteByte('}')
	return b.String()
}

// MarshalJSON encodes the tally as an object keyed by label, in first-seen order.
func (t VoteTally) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, l := range t.order {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(strconv.Itoa(int(l))))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(t.counts[l]))
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// Predict asks every member for a label, in ensemble order, and returns the
// majority label with the full tally. The first member error aborts the whole
// prediction with a *PredictionFailure; no partial tally is returned.
func Predict(e *Ensemble, rec model.FeatureRecord) (model.Label, VoteTally, error) {
	if e.Len() == 0 {
		return 0, VoteTally{}, ErrEmptyEnsemble
	}

	var tally VoteTally
	for i, m := range e.members {
		label, err := m.Classifier.Predict(rec)
		if err != nil {
			return 0, VoteTally{}, &PredictionFailure{Index: i, Source: m.Source, Err: err}
		}
		if !label.Valid() {
			err = fmt.Errorf("%w: %d", ErrInvalidLabel, int(label))
			return 0, VoteTally{}, &PredictionFailure{Index: i, Source: m.Source, Err: err}
		}
		tally.Add(label)
	}

	winner, _ := tally.Winner()
	return winner, tally, nil
}
