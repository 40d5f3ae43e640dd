package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"eve/core/models"
	"eve/core/tests/common"
)

// separableEncodedTable builds rows whose class is fully determined
// by the first two indicator columns.
func separableEncodedTable(rows int) (*models.EncodedTable, *models.DataSplit) {
	encoded := &models.EncodedTable{
		FeatureColumns: []string{"gatk=A", "gatk=T", "gatk_qual", "depth"},
		Classes:        []string{"A", "T"},
	}

	for i := 0; i < rows; i++ {
		class := i % 2
		features := []float64{0, 0, 30 + float64(i%7), 20}
		features[class] = 1

		encoded.Rows = append(encoded.Rows, &models.EncodedRow{
			Position: 100 + i,
			Features: features,
			Class:    class,
			Labeled:  true,
		})
	}

	split := &models.DataSplit{
		Training:   encoded.Rows[:rows*8/10],
		Evaluation: encoded.Rows[rows*8/10:],
	}
	return encoded, split
}

func TestTrainRequiresTrainingRows(t *testing.T) {
	cfg := common.InitConfig()
	cs := NewClassificationService(cfg, zap.NewNop())

	encoded, _ := separableEncodedTable(10)
	_, err := cs.Train(&models.DataSplit{}, encoded)

	assert.ErrorIs(t, err, models.ErrEmptyTrainingSet)
}

func TestTrainAndPredict(t *testing.T) {
	cfg := common.InitConfig()
	cs := NewClassificationService(cfg, zap.NewNop())

	encoded, split := separableEncodedTable(100)

	model, err := cs.Train(split, encoded)
	require.NoError(t, err)

	t.Run("model freezes the schema", func(t *testing.T) {
		assert.Equal(t, encoded.FeatureColumns, model.FeatureColumns)
		assert.Equal(t, encoded.Classes, model.Classes)
		assert.Equal(t, models.ModelSchemaVersion, model.SchemaVersion)
		assert.NotEmpty(t, model.Id.String())
	})

	t.Run("predictions map back to allele space", func(t *testing.T) {
		predictions, predictErr := cs.Predict(model, encoded.FeatureColumns, split.Evaluation)
		require.NoError(t, predictErr)
		require.Len(t, predictions, len(split.Evaluation))

		for i, row := range split.Evaluation {
			assert.Equal(t, model.AlleleForClass(row.Class), predictions[i], "at i=%d", i)
		}
	})
}

func TestPredictRejectsSchemaMismatch(t *testing.T) {
	cfg := common.InitConfig()
	cs := NewClassificationService(cfg, zap.NewNop())

	encoded, split := separableEncodedTable(50)
	model, err := cs.Train(split, encoded)
	require.NoError(t, err)

	// evaluation data encoded separately would observe different
	// categories; that must surface, never be coerced
	foreignColumns := []string{"gatk=A", "gatk=C", "gatk_qual", "depth"}
	_, err = cs.Predict(model, foreignColumns, split.Evaluation)
	require.Error(t, err)

	var schemaErr *models.SchemaMismatchError
	assert.ErrorAs(t, err, &schemaErr)
}
