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

func demoCallSets() map[constants.Caller][]*models.VariantCall {
	return map[constants.Caller][]*models.VariantCall{
		caller.Gatk: {
			{Position: 100, Allele: "A", Quality: 25.0, Depth: 20, PassesFilter: true, IsSnp: true},
			{Position: 101, Allele: "T", Quality: 12.5, Depth: 18, PassesFilter: true, IsSnp: true},
			{Position: 102, Allele: "T", Quality: 8.0, Depth: 22, PassesFilter: true, IsSnp: true},
		},
		caller.Mpileup: {
			{Position: 101, Allele: "T", Quality: 42.0, Depth: 18, PassesFilter: true, IsSnp: true},
			{Position: 102, Allele: "T", Quality: 38.0, Depth: 22, PassesFilter: true, IsSnp: true},
			{Position: 103, Allele: "C", Quality: 30.0, Depth: 25, PassesFilter: true, IsSnp: true},
		},
	}
}

func TestBuildMatrixMergesTwoCallers(t *testing.T) {
	cfg := common.InitConfig()
	ms := NewMatrixService(cfg, zap.NewNop())

	callers := []constants.Caller{caller.Gatk, caller.Mpileup}
	table, err := ms.BuildMatrix(demoCallSets(), callers)
	require.NoError(t, err)

	t.Run("position set is the union across callers", func(t *testing.T) {
		require.Len(t, table.Rows, 4)
		positions := make([]int, 0, len(table.Rows))
		for _, row := range table.Rows {
			positions = append(positions, row.Position)
		}
		assert.Equal(t, []int{100, 101, 102, 103}, positions)
	})

	t.Run("absent callers get the no-call sentinel", func(t *testing.T) {
		assert.Equal(t, models.NoCall, table.Rows[0].ObservationFor(caller.Mpileup).Allele)
		assert.True(t, math.IsNaN(table.Rows[0].ObservationFor(caller.Mpileup).Quality))

		assert.Equal(t, models.NoCall, table.Rows[3].ObservationFor(caller.Gatk).Allele)
		assert.True(t, math.IsNaN(table.Rows[3].ObservationFor(caller.Gatk).Quality))
	})

	t.Run("every row has an observation for every active caller", func(t *testing.T) {
		for _, row := range table.Rows {
			for _, c := range callers {
				obs, present := row.Observations[c]
				require.True(t, present, "row %d is missing caller %s", row.Position, c)
				require.NotEmpty(t, obs.Allele)
			}
		}
	})

	t.Run("every row carries at least one real allele", func(t *testing.T) {
		for _, row := range table.Rows {
			real := 0
			for _, c := range callers {
				if row.ObservationFor(c).Allele != models.NoCall {
					real++
				}
			}
			assert.GreaterOrEqual(t, real, 1, "row %d", row.Position)
		}
	})

	t.Run("rows start unlabeled", func(t *testing.T) {
		for _, row := range table.Rows {
			assert.Equal(t, models.Unknown, row.Actual)
		}
	})
}

func TestBuildMatrixDepthPolicy(t *testing.T) {
	cfg := common.InitConfig()
	ms := NewMatrixService(cfg, zap.NewNop())

	callSets := map[constants.Caller][]*models.VariantCall{
		caller.Gatk: {
			{Position: 500, Allele: "A", Quality: 10, Depth: 30, PassesFilter: true, IsSnp: true},
		},
		caller.Mpileup: {
			{Position: 500, Allele: "A", Quality: 11, Depth: 99, PassesFilter: true, IsSnp: true},
		},
	}

	table, err := ms.BuildMatrix(callSets, []constants.Caller{caller.Gatk, caller.Mpileup})
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)

	// first caller in the active order wins; the conflicting later
	// value is ignored
	assert.Equal(t, 30.0, table.Rows[0].Depth)
}

func TestBuildMatrixRequiresCallers(t *testing.T) {
	cfg := common.InitConfig()
	ms := NewMatrixService(cfg, zap.NewNop())

	_, err := ms.BuildMatrix(demoCallSets(), nil)
	assert.Error(t, err)
}
