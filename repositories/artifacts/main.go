package artifacts

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Jeffail/gabs"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"eve/core/models"
	"eve/core/utils"
)

type (
	Repository struct {
		Config *models.Config
		Logger *zap.Logger
	}
)

func NewRepository(cfg *models.Config, logger *zap.Logger) (*Repository, error) {
	if err := os.MkdirAll(cfg.Artifacts.DirPath, 0755); err != nil {
		return nil, errors.Wrap(err, "creating artifact directory")
	}

	return &Repository{
		Config: cfg,
		Logger: logger,
	}, nil
}

// SaveModel persists a trained model as an opaque JSON artifact
// under a fresh id-derived filename. Artifacts are write-once:
// retraining produces a new file rather than mutating one in place.
func (r *Repository) SaveModel(model *models.Model) (string, error) {
	path := filepath.Join(r.Config.Artifacts.DirPath, fmt.Sprintf("model-%s.json", model.Id.String()))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", errors.Wrap(err, "creating model artifact")
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(model); err != nil {
		return "", errors.Wrap(err, "encoding model artifact")
	}

	r.Logger.Info("persisted model artifact",
		zap.String("modelId", model.Id.String()),
		zap.String("path", path))

	return path, nil
}

// LoadModel reloads a persisted model for pure prediction without
// retraining. The artifact's shape is inspected before the strict
// decode so a foreign or stale file fails with a useful message.
func (r *Repository) LoadModel(path string) (*models.Model, error) {
	contents, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading model artifact")
	}

	jsonParsed, err := gabs.ParseJSON(contents)
	if err != nil {
		return nil, errors.Wrap(err, "parsing model artifact")
	}

	for _, field := range []string{"schemaVersion", "featureColumns", "classes", "forest"} {
		if !jsonParsed.Exists(field) {
			return nil, errors.Errorf("model artifact %s is missing field %s", path, field)
		}
	}
	if version, ok := jsonParsed.Path("schemaVersion").Data().(float64); !ok || int(version) != models.ModelSchemaVersion {
		return nil, errors.Errorf("model artifact %s has unsupported schema version", path)
	}

	var model models.Model
	if err := json.Unmarshal(contents, &model); err != nil {
		return nil, errors.Wrap(err, "decoding model artifact")
	}

	r.Logger.Info("loaded model artifact",
		zap.String("modelId", model.Id.String()),
		zap.String("path", path))

	return &model, nil
}

// WriteFeatureTable serializes the merged matrix as
// position-indexed tab-delimited text: position, depth, then per
// caller the allele and quality columns, plus actual when the
// table was labeled. Missing numerics render as NA.
func (r *Repository) WriteFeatureTable(w io.Writer, table *models.FeatureTable, labeled bool) error {
	tsv := csv.NewWriter(w)
	tsv.Comma = '\t'

	header := []string{"position", "depth"}
	for _, c := range table.Callers {
		header = append(header, string(c), fmt.Sprintf("%s_qual", c))
	}
	if labeled {
		header = append(header, "actual")
	}
	if err := tsv.Write(header); err != nil {
		return errors.Wrap(err, "writing feature table header")
	}

	for _, row := range table.Rows {
		record := []string{
			strconv.Itoa(row.Position),
			utils.FormatFloatOrMissing(row.Depth, models.MissingValue),
		}
		for _, c := range table.Callers {
			obs := row.ObservationFor(c)
			record = append(record,
				obs.Allele,
				utils.FormatFloatOrMissing(obs.Quality, models.MissingValue))
		}
		if labeled {
			record = append(record, row.Actual)
		}
		if err := tsv.Write(record); err != nil {
			return errors.Wrap(err, "writing feature table row")
		}
	}

	tsv.Flush()
	return errors.Wrap(tsv.Error(), "flushing feature table")
}

// WriteImportanceRanking serializes the ranked feature-importance
// list for the external chart renderer.
func (r *Repository) WriteImportanceRanking(w io.Writer, ranking []models.FeatureImportance) error {
	tsv := csv.NewWriter(w)
	tsv.Comma = '\t'

	if err := tsv.Write([]string{"feature", "score"}); err != nil {
		return errors.Wrap(err, "writing importance header")
	}
	for _, entry := range ranking {
		record := []string{entry.Feature, strconv.FormatFloat(entry.Score, 'f', 4, 64)}
		if err := tsv.Write(record); err != nil {
			return errors.Wrap(err, "writing importance row")
		}
	}

	tsv.Flush()
	return errors.Wrap(tsv.Error(), "flushing importance ranking")
}

// WriteConsensus serializes the final consensus call per position.
func (r *Repository) WriteConsensus(w io.Writer, rows []*models.EncodedRow, predictions []string) error {
	if len(rows) != len(predictions) {
		return errors.Errorf("row (%d) and prediction (%d) counts differ", len(rows), len(predictions))
	}

	tsv := csv.NewWriter(w)
	tsv.Comma = '\t'

	if err := tsv.Write([]string{"position", "allele"}); err != nil {
		return errors.Wrap(err, "writing consensus header")
	}
	for i, row := range rows {
		if err := tsv.Write([]string{strconv.Itoa(row.Position), predictions[i]}); err != nil {
			return errors.Wrap(err, "writing consensus row")
		}
	}

	tsv.Flush()
	return errors.Wrap(tsv.Error(), "flushing consensus calls")
}

// CreateArtifactFile opens a named output file under the artifact
// directory, truncating any previous run's copy.
func (r *Repository) CreateArtifactFile(name string) (*os.File, error) {
	return os.Create(filepath.Join(r.Config.Artifacts.DirPath, name))
}
