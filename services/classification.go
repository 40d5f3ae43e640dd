package services

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"eve/core/ml/decisionforest"
	"eve/core/models"
	"eve/core/utils"
)

type (
	ClassificationService struct {
		Config *models.Config
		Logger *zap.Logger
	}
)

func NewClassificationService(cfg *models.Config, logger *zap.Logger) *ClassificationService {
	return &ClassificationService{
		Config: cfg,
		Logger: logger,
	}
}

// Train fits a random forest over the encoded training rows
// against the integer-coded actual target and freezes the feature
// columns and class table onto the resulting model. Training is
// synchronous; the forest parallelizes across trees internally.
func (cs *ClassificationService) Train(split *models.DataSplit, encoded *models.EncodedTable) (*models.Model, error) {
	if len(split.Training) == 0 {
		return nil, models.ErrEmptyTrainingSet
	}

	x := make([][]float64, len(split.Training))
	y := make([]int, len(split.Training))
	for i, row := range split.Training {
		x[i] = row.Features
		y[i] = row.Class
	}

	started := time.Now()
	forest, err := decisionforest.Train(x, y, len(encoded.Classes), decisionforest.TrainingConfig{
		NumTrees: cs.Config.Forest.NumTrees,
		MaxDepth: cs.Config.Forest.MaxDepth,
		Seed:     cs.Config.Forest.Seed,
	})
	if err != nil {
		return nil, err
	}

	model := &models.Model{
		Id:             uuid.New(),
		SchemaVersion:  models.ModelSchemaVersion,
		CreatedAt:      time.Now().String(),
		FeatureColumns: append([]string{}, encoded.FeatureColumns...),
		Classes:        append([]string{}, encoded.Classes...),
		Forest:         forest,
	}

	cs.Logger.Info("trained ensemble classifier",
		zap.String("modelId", model.Id.String()),
		zap.Int("trainingRows", len(split.Training)),
		zap.Int("trees", len(forest.Trees)),
		zap.Duration("took", time.Since(started)))

	return model, nil
}

// Predict applies a frozen model to encoded rows and maps the
// integer predictions back to allele strings. The rows' feature
// columns must exactly match the model's frozen list; a mismatch
// signals an encoding-pipeline invariant violation and is fatal.
func (cs *ClassificationService) Predict(model *models.Model, featureColumns []string, rows []*models.EncodedRow) ([]string, error) {
	if !utils.StringSlicesEqual(featureColumns, model.FeatureColumns) {
		return nil, &models.SchemaMismatchError{Expected: model.FeatureColumns, Got: featureColumns}
	}
	for _, row := range rows {
		if len(row.Features) != len(model.FeatureColumns) {
			return nil, &models.SchemaMismatchError{Expected: model.FeatureColumns, Got: featureColumns}
		}
	}

	predictions := make([]string, len(rows))
	for i, row := range rows {
		predictions[i] = model.AlleleForClass(model.Forest.Classify(row.Features))
	}

	cs.Logger.Info("applied classifier",
		zap.String("modelId", model.Id.String()),
		zap.Int("rows", len(rows)))

	return predictions, nil
}
