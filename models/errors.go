package models

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"eve/core/models/constants"
)

type FieldKind string

const (
	QualityField FieldKind = "quality"
	DepthField   FieldKind = "depth"
)

// MissingFieldError signals that every extraction strategy in a
// caller's fallback chain came up empty for one record. It is
// fatal to that record only: the extractor drops the record and
// keeps going.
type MissingFieldError struct {
	Caller   constants.Caller
	Kind     FieldKind
	Position int
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("no %s field found for caller %s at position %d", e.Kind, e.Caller, e.Position)
}

// ImputationError signals a quality column with no present values
// at all; no meaningful feature can be built, so the run aborts.
type ImputationError struct {
	Column string
}

func (e *ImputationError) Error() string {
	return fmt.Sprintf("column %s has no present values to impute from", e.Column)
}

// ErrEmptyTrainingSet is returned when the training partition has
// no rows; no model can be produced.
var ErrEmptyTrainingSet = errors.New("training partition is empty")

// SchemaMismatchError signals that rows handed to a model for
// prediction do not carry the model's frozen feature columns. It
// marks an encoding-pipeline invariant violation and is never
// coerced away.
type SchemaMismatchError struct {
	Expected []string
	Got      []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("feature columns do not match model schema: expected [%s], got [%s]",
		strings.Join(e.Expected, ","), strings.Join(e.Got, ","))
}
