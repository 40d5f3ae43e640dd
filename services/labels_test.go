package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"eve/core/models"
	"eve/core/models/constants"
	"eve/core/models/constants/caller"
	"eve/core/tests/common"
)

func demoTable(t *testing.T) *models.FeatureTable {
	cfg := common.InitConfig()
	ms := NewMatrixService(cfg, zap.NewNop())

	table, err := ms.BuildMatrix(demoCallSets(), []constants.Caller{caller.Gatk, caller.Mpileup})
	require.NoError(t, err)
	return table
}

func TestAttachFromVcf(t *testing.T) {
	cfg := common.InitConfig()
	ls := NewLabelService(cfg, zap.NewNop())
	table := demoTable(t)

	path, err := common.WriteDemoFile(t.TempDir(), "truth.vcf", common.TruthDemoVcf)
	require.NoError(t, err)

	require.NoError(t, ls.AttachFromVcf(table, path))

	t.Run("matching positions receive the truth alt allele", func(t *testing.T) {
		assert.Equal(t, "T", table.Rows[1].Actual)
	})

	t.Run("positions absent from the truth source stay unknown", func(t *testing.T) {
		assert.Equal(t, models.Unknown, table.Rows[0].Actual)
	})

	t.Run("truth positions absent from the matrix create no rows", func(t *testing.T) {
		assert.Len(t, table.Rows, 4)
	})
}

func TestAttachFromSimulatorLog(t *testing.T) {
	cfg := common.InitConfig()
	ls := NewLabelService(cfg, zap.NewNop())
	table := demoTable(t)

	path, err := common.WriteDemoFile(t.TempDir(), "mutations.txt", common.SimulatorLogDemo)
	require.NoError(t, err)

	require.NoError(t, ls.AttachFromSimulatorLog(table, path))

	t.Run("matching positions receive the mutated base", func(t *testing.T) {
		assert.Equal(t, "T", table.Rows[1].Actual)
		assert.Equal(t, "T", table.Rows[2].Actual)
	})

	t.Run("ambiguity codes are skipped", func(t *testing.T) {
		// the log's 100 row mutates A to R, which is not canonical
		assert.Equal(t, models.Unknown, table.Rows[0].Actual)
	})

	t.Run("log positions absent from the matrix are ignored", func(t *testing.T) {
		assert.Len(t, table.Rows, 4)
	})
}

func TestAttachDispatch(t *testing.T) {
	cfg := common.InitConfig()
	table := demoTable(t)

	t.Run("no truth source leaves every row unlabeled", func(t *testing.T) {
		cfg.Pipeline.TruthMode = "none"
		ls := NewLabelService(cfg, zap.NewNop())
		require.NoError(t, ls.Attach(table))
		for _, row := range table.Rows {
			assert.Equal(t, models.Unknown, row.Actual)
		}
	})

	t.Run("vcf mode dispatches to the truth call-file reader", func(t *testing.T) {
		path, err := common.WriteDemoFile(t.TempDir(), "truth.vcf", common.TruthDemoVcf)
		require.NoError(t, err)

		cfg.Pipeline.TruthMode = "vcf"
		cfg.Pipeline.TruthPath = path
		ls := NewLabelService(cfg, zap.NewNop())

		require.NoError(t, ls.Attach(table))
		assert.Equal(t, "T", table.Rows[1].Actual)
	})
}
