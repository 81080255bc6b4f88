package model

import "strconv"

// Label is the binary class emitted by every classifier.
type Label int

const (
	LabelNotSatisfied Label = 0
	LabelSatisfied    Label = 1
)

func (l Label) String() string {
	switch l {
	case LabelSatisfied:
		return "Satisfied"
	case LabelNotSatisfied:
		return "Not Satisfied"
	default:
		return "Label(" + strconv.Itoa(int(l)) + ")"
	}
}

func (l Label) Valid() bool {
	return l == LabelNotSatisfied || l == LabelSatisfied
}
