package models

import (
	"math"

	"eve/core/models/constants"
)

const (
	// NoCall is the sentinel category for a caller that reported
	// nothing at a locus. The same symbol stands in for unlabeled
	// truth values once the table reaches the encoder.
	NoCall = "nocall"

	// Unknown marks a locus the truth source never matched.
	Unknown = "unknown"

	// MissingValue is how absent numerics are serialized.
	MissingValue = "NA"
)

// VariantCall is one caller's observation at one position,
// immutable once produced by extraction.
type VariantCall struct {
	Position     int     `json:"position" mapstructure:"position"`
	Allele       string  `json:"allele" mapstructure:"allele"`
	Quality      float64 `json:"quality" mapstructure:"quality"`
	Depth        int     `json:"depth" mapstructure:"depth"`
	PassesFilter bool    `json:"passesFilter" mapstructure:"passesFilter"`
	IsSnp        bool    `json:"isSnp" mapstructure:"isSnp"`
}

// CallerObservation is one caller's cell pair on a merged row.
// Quality is NaN when the caller made no call at the locus.
type CallerObservation struct {
	Allele  string  `json:"allele"`
	Quality float64 `json:"quality"`
}

// LocusRow is one row of the merged feature matrix, keyed by
// position. Rows are created once during the merge and only ever
// appended-to (truth label, encoded features) afterwards.
type LocusRow struct {
	Position     int                                     `json:"position"`
	Depth        float64                                 `json:"depth"`
	Observations map[constants.Caller]*CallerObservation `json:"observations"`

	// Actual is the ground-truth allele, or Unknown when no truth
	// source matched this position.
	Actual string `json:"actual"`
}

// ObservationFor returns the caller's cell pair, backfilling the
// no-call shape for safety; the matrix builder guarantees every
// active caller has an entry.
func (r *LocusRow) ObservationFor(c constants.Caller) *CallerObservation {
	if obs, ok := r.Observations[c]; ok {
		return obs
	}
	return &CallerObservation{Allele: NoCall, Quality: math.NaN()}
}

// FeatureTable is the merged matrix: one row per position in the
// union of all caller position sets, ascending by position.
type FeatureTable struct {
	Callers []constants.Caller
	Rows    []*LocusRow
}

// EncodedRow is the numeric projection of a LocusRow. Features
// line up index-for-index with the table's FeatureColumns.
type EncodedRow struct {
	Position int
	Features []float64
	// Class is the integer-coded actual (sentinel included).
	Class int
	// Labeled is false when the actual was the Unknown sentinel;
	// such rows contribute nothing to training.
	Labeled bool
}

// EncodedTable is the fully encoded matrix plus the frozen
// feature-column list and target-class table the model will carry.
type EncodedTable struct {
	FeatureColumns []string
	Classes        []string
	Rows           []*EncodedRow
}

// DataSplit partitions encoded rows for training and evaluation.
type DataSplit struct {
	Training   []*EncodedRow
	Evaluation []*EncodedRow
}
