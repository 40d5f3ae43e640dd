package services

import (
	"math"

	linq "github.com/ahmetb/go-linq"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"eve/core/models"
	"eve/core/models/constants"
)

type (
	MatrixService struct {
		Config *models.Config
		Logger *zap.Logger
	}
)

func NewMatrixService(cfg *models.Config, logger *zap.Logger) *MatrixService {
	return &MatrixService{
		Config: cfg,
		Logger: logger,
	}
}

// BuildMatrix merges per-caller call sequences into one feature
// table keyed by position: one row per position in the union of
// all observed position sets, one column group per caller.
//
// Depth policy: the first caller (in the active-caller order) that
// supplied a value for a position wins; later conflicting values
// are logged and ignored. Depth should reflect the underlying
// alignment, so callers rarely disagree; when they do, the
// disagreement is surfaced rather than reconciled.
func (ms *MatrixService) BuildMatrix(
	callSets map[constants.Caller][]*models.VariantCall,
	callers []constants.Caller) (*models.FeatureTable, error) {

	if len(callers) == 0 {
		return nil, errors.New("cannot build a matrix without active callers")
	}

	// index every caller's calls by position; a caller reporting a
	// position twice keeps its first record
	indexed := map[constants.Caller]map[int]*models.VariantCall{}
	for _, c := range callers {
		byPosition := map[int]*models.VariantCall{}
		for _, call := range callSets[c] {
			if _, seen := byPosition[call.Position]; !seen {
				byPosition[call.Position] = call
			}
		}
		indexed[c] = byPosition
	}

	// the merged position set is the union across callers
	var observed []int
	for _, c := range callers {
		for position := range indexed[c] {
			observed = append(observed, position)
		}
	}

	var positions []int
	linq.From(observed).
		Distinct().
		OrderBy(func(p interface{}) interface{} { return p }).
		ToSlice(&positions)

	depthConflicts := 0

	table := &models.FeatureTable{
		Callers: callers,
		Rows:    make([]*models.LocusRow, 0, len(positions)),
	}

	for _, position := range positions {
		row := &models.LocusRow{
			Position:     position,
			Depth:        math.NaN(),
			Observations: map[constants.Caller]*models.CallerObservation{},
			Actual:       models.Unknown,
		}

		for _, c := range callers {
			call, present := indexed[c][position]
			if !present {
				row.Observations[c] = &models.CallerObservation{
					Allele:  models.NoCall,
					Quality: math.NaN(),
				}
				continue
			}

			row.Observations[c] = &models.CallerObservation{
				Allele:  call.Allele,
				Quality: call.Quality,
			}

			if math.IsNaN(row.Depth) {
				row.Depth = float64(call.Depth)
			} else if row.Depth != float64(call.Depth) {
				depthConflicts++
				ms.Logger.Warn("callers disagree on depth, keeping first-seen value",
					zap.Int("position", position),
					zap.String("caller", string(c)),
					zap.Float64("kept", row.Depth),
					zap.Int("ignored", call.Depth))
			}
		}

		table.Rows = append(table.Rows, row)
	}

	ms.Logger.Info("built feature matrix",
		zap.Int("positions", len(table.Rows)),
		zap.Int("callers", len(callers)),
		zap.Int("depthConflicts", depthConflicts))

	return table, nil
}
