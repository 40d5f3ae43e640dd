package services

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"eve/core/models"
	"eve/core/models/constants"
)

type (
	EncodingService struct {
		Config *models.Config
		Logger *zap.Logger
	}
)

func NewEncodingService(cfg *models.Config, logger *zap.Logger) *EncodingService {
	return &EncodingService{
		Config: cfg,
		Logger: logger,
	}
}

// Encode projects the merged table into a numeric feature matrix:
// a one-hot indicator column per (caller, observed-category) pair,
// the caller quality columns with column-mean imputation, and the
// depth column. Category discovery runs over the whole table
// before any row is encoded, so every row shares an identical
// column set -- encoding must never happen per-partition.
func (es *EncodingService) Encode(table *models.FeatureTable) (*models.EncodedTable, error) {
	// 1. per-caller category discovery (no-call is an explicit category)
	categories := map[constants.Caller][]string{}
	for _, c := range table.Callers {
		seen := map[string]bool{}
		for _, row := range table.Rows {
			seen[row.ObservationFor(c).Allele] = true
		}
		categories[c] = sortedKeys(seen)
	}

	var featureColumns []string
	for _, c := range table.Callers {
		for _, category := range categories[c] {
			featureColumns = append(featureColumns, fmt.Sprintf("%s=%s", c, category))
		}
	}

	// 2. quality and depth columns pass through unencoded
	qualityColumnStart := len(featureColumns)
	for _, c := range table.Callers {
		featureColumns = append(featureColumns, fmt.Sprintf("%s_qual", c))
	}
	featureColumns = append(featureColumns, "depth")

	// 3. target class table, fitted over every observed actual
	// (the sentinel stands in for unlabeled rows)
	classSeen := map[string]bool{}
	for _, row := range table.Rows {
		classSeen[actualOrSentinel(row)] = true
	}
	classes := sortedKeys(classSeen)
	classIndex := map[string]int{}
	for i, class := range classes {
		classIndex[class] = i
	}

	encoded := &models.EncodedTable{
		FeatureColumns: featureColumns,
		Classes:        classes,
		Rows:           make([]*models.EncodedRow, 0, len(table.Rows)),
	}

	for _, row := range table.Rows {
		features := make([]float64, len(featureColumns))

		offset := 0
		for _, c := range table.Callers {
			allele := row.ObservationFor(c).Allele
			for j, category := range categories[c] {
				if category == allele {
					features[offset+j] = 1
				}
			}
			offset += len(categories[c])
		}
		for _, c := range table.Callers {
			features[offset] = row.ObservationFor(c).Quality
			offset++
		}
		features[offset] = row.Depth

		labeled := row.Actual != models.Unknown
		encoded.Rows = append(encoded.Rows, &models.EncodedRow{
			Position: row.Position,
			Features: features,
			Class:    classIndex[actualOrSentinel(row)],
			Labeled:  labeled,
		})
	}

	// 4. impute each quality column by its own mean over present values
	for k := range table.Callers {
		column := qualityColumnStart + k

		var present []float64
		for _, row := range encoded.Rows {
			if !math.IsNaN(row.Features[column]) {
				present = append(present, row.Features[column])
			}
		}

		mean, err := stats.Mean(present)
		if err != nil {
			return nil, &models.ImputationError{Column: featureColumns[column]}
		}

		imputed := 0
		for _, row := range encoded.Rows {
			if math.IsNaN(row.Features[column]) {
				row.Features[column] = mean
				imputed++
			}
		}
		if imputed > 0 {
			es.Logger.Info("imputed missing quality values",
				zap.String("column", featureColumns[column]),
				zap.Int("imputed", imputed),
				zap.Float64("mean", mean))
		}
	}

	es.Logger.Info("encoded feature matrix",
		zap.Int("rows", len(encoded.Rows)),
		zap.Int("featureColumns", len(encoded.FeatureColumns)),
		zap.Int("classes", len(encoded.Classes)))

	return encoded, nil
}

// Split partitions encoded rows into training and evaluation sets
// by one independent uniform draw per row, in row order, so a
// fixed seed reproduces the partition exactly. Unlabeled rows
// carry no supervision signal and never enter training; they reach
// evaluation only when configured to.
func (es *EncodingService) Split(encoded *models.EncodedTable) *models.DataSplit {
	fraction := es.Config.Encoding.TrainingFraction
	if fraction <= 0 || fraction >= 1 {
		fraction = 0.8
	}

	rng := rand.New(rand.NewSource(es.Config.Encoding.Seed))
	split := &models.DataSplit{}

	droppedUnlabeled := 0
	for _, row := range encoded.Rows {
		if rng.Float64() < fraction {
			if row.Labeled {
				split.Training = append(split.Training, row)
			} else {
				droppedUnlabeled++
			}
		} else {
			if row.Labeled || es.Config.Encoding.IncludeUnlabeledInEvaluation {
				split.Evaluation = append(split.Evaluation, row)
			} else {
				droppedUnlabeled++
			}
		}
	}

	es.Logger.Info("partitioned encoded rows",
		zap.Int("training", len(split.Training)),
		zap.Int("evaluation", len(split.Evaluation)),
		zap.Int("droppedUnlabeled", droppedUnlabeled),
		zap.Int64("seed", es.Config.Encoding.Seed))

	return split
}

func actualOrSentinel(row *models.LocusRow) string {
	if row.Actual == models.Unknown {
		return models.NoCall
	}
	return row.Actual
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
