package models

import (
	"github.com/google/uuid"

	"eve/core/ml/decisionforest"
)

// ModelSchemaVersion guards artifact compatibility across releases.
const ModelSchemaVersion = 1

// Model owns a fitted forest plus the frozen feature-column list
// and target-class table needed to apply it without retraining.
// A model artifact is written once and never mutated; retraining
// always produces a new artifact under a new id.
type Model struct {
	Id             uuid.UUID              `json:"id"`
	SchemaVersion  int                    `json:"schemaVersion"`
	CreatedAt      string                 `json:"createdAt"`
	FeatureColumns []string               `json:"featureColumns"`
	Classes        []string               `json:"classes"`
	Forest         *decisionforest.Forest `json:"forest"`
}

// AlleleForClass maps an encoded integer class back to allele-string
// space via the frozen class table.
func (m *Model) AlleleForClass(class int) string {
	if class < 0 || class >= len(m.Classes) {
		return Unknown
	}
	return m.Classes[class]
}

// FeatureImportance is one entry of the ranked importance list
// handed to the external chart consumer.
type FeatureImportance struct {
	Feature string  `json:"feature"`
	Score   float64 `json:"score"`
}
