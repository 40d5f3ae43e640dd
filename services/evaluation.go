package services

import (
	linq "github.com/ahmetb/go-linq"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"eve/core/models"
)

// ConfusionMatrix cross-tabulates true versus predicted allele for
// the evaluation partition. The sum of all cells always equals the
// partition's row count.
type ConfusionMatrix struct {
	Labels []string                  `json:"labels"`
	Cells  map[string]map[string]int `json:"cells"`
	Total  int                       `json:"total"`
}

// Count returns one cell of the matrix.
func (m *ConfusionMatrix) Count(actual string, predicted string) int {
	if byPredicted, ok := m.Cells[actual]; ok {
		return byPredicted[predicted]
	}
	return 0
}

type (
	EvaluationService struct {
		Config *models.Config
		Logger *zap.Logger
	}
)

func NewEvaluationService(cfg *models.Config, logger *zap.Logger) *EvaluationService {
	return &EvaluationService{
		Config: cfg,
		Logger: logger,
	}
}

// Evaluate builds the confusion matrix over paired actual and
// predicted labels from the evaluation partition.
func (es *EvaluationService) Evaluate(actuals []string, predictions []string) (*ConfusionMatrix, error) {
	if len(actuals) != len(predictions) {
		return nil, errors.Errorf("actual (%d) and predicted (%d) label counts differ", len(actuals), len(predictions))
	}

	var labels []string
	linq.From(actuals).
		Concat(linq.From(predictions)).
		Distinct().
		OrderBy(func(label interface{}) interface{} { return label }).
		ToSlice(&labels)

	matrix := &ConfusionMatrix{
		Labels: labels,
		Cells:  map[string]map[string]int{},
		Total:  len(actuals),
	}
	for _, label := range labels {
		matrix.Cells[label] = map[string]int{}
	}

	correct := 0
	for i := range actuals {
		matrix.Cells[actuals[i]][predictions[i]]++
		if actuals[i] == predictions[i] {
			correct++
		}
	}

	es.Logger.Info("evaluated predictions",
		zap.Int("rows", matrix.Total),
		zap.Int("correct", correct))

	return matrix, nil
}

// RankImportance normalizes the model's raw per-feature
// importances to a 0-100 scale relative to the maximum-importance
// feature and returns them sorted ascending, ready for the
// external bar-chart consumer.
func (es *EvaluationService) RankImportance(model *models.Model) []models.FeatureImportance {
	raw := model.Forest.Importances

	max := 0.0
	for _, importance := range raw {
		if importance > max {
			max = importance
		}
	}

	ranking := make([]models.FeatureImportance, len(model.FeatureColumns))
	for i, feature := range model.FeatureColumns {
		score := 0.0
		if max > 0 {
			score = raw[i] / max * 100
		}
		ranking[i] = models.FeatureImportance{Feature: feature, Score: score}
	}

	var sorted []models.FeatureImportance
	linq.From(ranking).
		OrderBy(func(fi interface{}) interface{} { return fi.(models.FeatureImportance).Score }).
		ToSlice(&sorted)

	return sorted
}
