package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"eve/core/models"
	"eve/core/models/constants"
	"eve/core/models/constants/caller"
	"eve/core/tests/common"
)

// encodableTable builds a small labeled table by hand, with a hole
// in each caller's quality column to exercise imputation.
func encodableTable() *models.FeatureTable {
	return &models.FeatureTable{
		Callers: []constants.Caller{caller.Gatk, caller.Mpileup},
		Rows: []*models.LocusRow{
			{
				Position: 100,
				Depth:    20,
				Observations: map[constants.Caller]*models.CallerObservation{
					caller.Gatk:    {Allele: "A", Quality: 10},
					caller.Mpileup: {Allele: models.NoCall, Quality: math.NaN()},
				},
				Actual: "A",
			},
			{
				Position: 101,
				Depth:    18,
				Observations: map[constants.Caller]*models.CallerObservation{
					caller.Gatk:    {Allele: "T", Quality: math.NaN()},
					caller.Mpileup: {Allele: "T", Quality: 42},
				},
				Actual: "T",
			},
			{
				Position: 102,
				Depth:    22,
				Observations: map[constants.Caller]*models.CallerObservation{
					caller.Gatk:    {Allele: "T", Quality: 30},
					caller.Mpileup: {Allele: "T", Quality: 38},
				},
				Actual: models.Unknown,
			},
		},
	}
}

func TestEncode(t *testing.T) {
	cfg := common.InitConfig()
	es := NewEncodingService(cfg, zap.NewNop())

	encoded, err := es.Encode(encodableTable())
	require.NoError(t, err)

	t.Run("feature columns cover every caller and category", func(t *testing.T) {
		assert.Equal(t, []string{
			"gatk=A", "gatk=T",
			"mpileup=T", "mpileup=nocall",
			"gatk_qual", "mpileup_qual",
			"depth",
		}, encoded.FeatureColumns)
	})

	t.Run("class table covers every observed actual plus the sentinel", func(t *testing.T) {
		assert.Equal(t, []string{"A", "T", models.NoCall}, encoded.Classes)
	})

	t.Run("one-hot indicators are set per caller category", func(t *testing.T) {
		require.Len(t, encoded.Rows, 3)
		assert.Equal(t, []float64{1, 0, 0, 1}, encoded.Rows[0].Features[0:4])
		assert.Equal(t, []float64{0, 1, 1, 0}, encoded.Rows[1].Features[0:4])
	})

	t.Run("missing qualities impute to the column mean", func(t *testing.T) {
		// gatk column had [10, missing, 30]
		assert.Equal(t, 20.0, encoded.Rows[1].Features[4])
		// mpileup column had [missing, 42, 38]
		assert.Equal(t, 40.0, encoded.Rows[0].Features[5])
	})

	t.Run("depth passes through unencoded", func(t *testing.T) {
		assert.Equal(t, 20.0, encoded.Rows[0].Features[6])
		assert.Equal(t, 22.0, encoded.Rows[2].Features[6])
	})

	t.Run("unlabeled rows carry the sentinel class", func(t *testing.T) {
		assert.False(t, encoded.Rows[2].Labeled)
		assert.Equal(t, 2, encoded.Rows[2].Class)
		assert.True(t, encoded.Rows[0].Labeled)
	})
}

func TestEncodeImputationFailure(t *testing.T) {
	cfg := common.InitConfig()
	es := NewEncodingService(cfg, zap.NewNop())

	table := encodableTable()
	// a caller that never called anything has no quality values at all
	table.Callers = append(table.Callers, caller.VarScan)
	for _, row := range table.Rows {
		row.Observations[caller.VarScan] = &models.CallerObservation{
			Allele:  models.NoCall,
			Quality: math.NaN(),
		}
	}

	_, err := es.Encode(table)
	require.Error(t, err)

	var imputationErr *models.ImputationError
	require.ErrorAs(t, err, &imputationErr)
	assert.Equal(t, "varscan_qual", imputationErr.Column)
}

func TestEncodeIsStable(t *testing.T) {
	cfg := common.InitConfig()
	es := NewEncodingService(cfg, zap.NewNop())

	first, err := es.Encode(encodableTable())
	require.NoError(t, err)
	second, err := es.Encode(encodableTable())
	require.NoError(t, err)

	assert.Equal(t, first, second, "encoding the same table twice must be identical")
}

func syntheticEncodedTable(rows int) *models.EncodedTable {
	encoded := &models.EncodedTable{
		FeatureColumns: []string{"gatk=A", "gatk_qual", "depth"},
		Classes:        []string{"A", "T"},
	}
	for i := 0; i < rows; i++ {
		encoded.Rows = append(encoded.Rows, &models.EncodedRow{
			Position: 100 + i,
			Features: []float64{1, 10, 20},
			Class:    i % 2,
			Labeled:  true,
		})
	}
	return encoded
}

func TestSplit(t *testing.T) {
	cfg := common.InitConfig()
	es := NewEncodingService(cfg, zap.NewNop())

	encoded := syntheticEncodedTable(200)

	t.Run("partitions every labeled row", func(t *testing.T) {
		split := es.Split(encoded)
		assert.Equal(t, 200, len(split.Training)+len(split.Evaluation))
		assert.NotEmpty(t, split.Training)
		assert.NotEmpty(t, split.Evaluation)
	})

	t.Run("same seed reproduces the same partition", func(t *testing.T) {
		first := es.Split(encoded)
		second := es.Split(encoded)

		require.Equal(t, len(first.Training), len(second.Training))
		for i := range first.Training {
			assert.Equal(t, first.Training[i].Position, second.Training[i].Position)
		}
		for i := range first.Evaluation {
			assert.Equal(t, first.Evaluation[i].Position, second.Evaluation[i].Position)
		}
	})

	t.Run("unlabeled rows never reach training", func(t *testing.T) {
		for _, row := range encoded.Rows {
			row.Labeled = false
		}
		split := es.Split(encoded)
		assert.Empty(t, split.Training)
		assert.Empty(t, split.Evaluation, "unlabeled rows stay out of evaluation unless configured in")
	})

	t.Run("unlabeled rows reach evaluation when configured", func(t *testing.T) {
		cfg.Encoding.IncludeUnlabeledInEvaluation = true
		defer func() { cfg.Encoding.IncludeUnlabeledInEvaluation = false }()

		split := es.Split(encoded)
		assert.Empty(t, split.Training)
		assert.NotEmpty(t, split.Evaluation)
	})
}
