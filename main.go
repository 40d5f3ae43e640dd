package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"eve/core/models"
	"eve/core/models/constants"
	callerConstants "eve/core/models/constants/caller"
	truthMode "eve/core/models/constants/truth-mode"
	"eve/core/repositories/artifacts"
	"eve/core/services"
)

func main() {
	// Gather environment variables
	var cfg models.Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	logger, loggerErr := newLogger(cfg.Debug)
	if loggerErr != nil {
		fmt.Println(loggerErr)
		os.Exit(2)
	}
	defer logger.Sync()

	logger.Info("starting ensemble consensus pipeline",
		zap.Bool("debug", cfg.Debug),
		zap.String("vcfDirPath", cfg.Pipeline.VcfDirPath),
		zap.String("callers", cfg.Pipeline.Callers),
		zap.String("truthMode", cfg.Pipeline.TruthMode),
		zap.String("artifactsDirPath", cfg.Artifacts.DirPath),
		zap.Int64("encodingSeed", cfg.Encoding.Seed),
		zap.Int("forestTrees", cfg.Forest.NumTrees))

	// Service singletons
	extractionService := services.NewExtractionService(&cfg, logger)
	matrixService := services.NewMatrixService(&cfg, logger)
	labelService := services.NewLabelService(&cfg, logger)
	encodingService := services.NewEncodingService(&cfg, logger)
	classificationService := services.NewClassificationService(&cfg, logger)
	evaluationService := services.NewEvaluationService(&cfg, logger)

	repository, repositoryErr := artifacts.NewRepository(&cfg, logger)
	if repositoryErr != nil {
		fatal(logger, "failed to open artifact repository", repositoryErr)
	}

	callers := callerConstants.CastToCallers(cfg.Pipeline.Callers)
	if len(callers) == 0 {
		fatal(logger, "no recognized callers configured", fmt.Errorf("callers=%q", cfg.Pipeline.Callers))
	}

	// -- extract every caller's call-file, in parallel
	callSets, extractErr := extractionService.ExtractAll(resolveCallSources(&cfg, callers, logger))
	if extractErr != nil {
		fatal(logger, "extraction failed", extractErr)
	}

	// -- merge into the locus feature matrix
	table, matrixErr := matrixService.BuildMatrix(callSets, callers)
	if matrixErr != nil {
		fatal(logger, "matrix build failed", matrixErr)
	}

	// -- optionally attach ground truth
	labeled := truthMode.CastToTruthMode(cfg.Pipeline.TruthMode) != truthMode.None
	if labeled {
		if labelErr := labelService.Attach(table); labelErr != nil {
			fatal(logger, "truth label attachment failed", labelErr)
		}
	}

	writeTableArtifact(repository, logger, table, labeled)

	// -- encode and partition
	encoded, encodeErr := encodingService.Encode(table)
	if encodeErr != nil {
		fatal(logger, "feature encoding failed", encodeErr)
	}
	split := encodingService.Split(encoded)

	// -- train and persist the arbiter
	model, trainErr := classificationService.Train(split, encoded)
	if trainErr != nil {
		fatal(logger, "classifier training failed", trainErr)
	}
	if _, saveErr := repository.SaveModel(model); saveErr != nil {
		fatal(logger, "model persistence failed", saveErr)
	}

	// -- evaluate on the held-out partition
	predictions, predictErr := classificationService.Predict(model, encoded.FeatureColumns, split.Evaluation)
	if predictErr != nil {
		fatal(logger, "prediction failed", predictErr)
	}

	actuals := make([]string, len(split.Evaluation))
	for i, row := range split.Evaluation {
		actuals[i] = model.AlleleForClass(row.Class)
	}

	matrix, evaluateErr := evaluationService.Evaluate(actuals, predictions)
	if evaluateErr != nil {
		fatal(logger, "evaluation failed", evaluateErr)
	}
	logger.Info("confusion matrix computed",
		zap.Strings("labels", matrix.Labels),
		zap.Int("total", matrix.Total))

	writeRankingArtifact(repository, logger, evaluationService.RankImportance(model))

	// -- consensus calls across the full matrix
	consensus, consensusErr := classificationService.Predict(model, encoded.FeatureColumns, encoded.Rows)
	if consensusErr != nil {
		fatal(logger, "consensus prediction failed", consensusErr)
	}
	writeConsensusArtifact(repository, logger, encoded.Rows, consensus)

	logger.Info("pipeline complete", zap.String("modelId", model.Id.String()))
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func fatal(logger *zap.Logger, message string, err error) {
	logger.Error(message, zap.Error(err))
	logger.Sync()
	os.Exit(1)
}

// resolveCallSources maps each configured caller to its call-file
// under the VCF directory, accepting plain or gzipped files. A
// caller with no call-file present is skipped with a warning.
func resolveCallSources(cfg *models.Config, callers []constants.Caller, logger *zap.Logger) []services.CallSource {
	var sources []services.CallSource
	for _, c := range callers {
		found := false
		for _, name := range []string{fmt.Sprintf("%s.vcf", c), fmt.Sprintf("%s.vcf.gz", c)} {
			path := filepath.Join(cfg.Pipeline.VcfDirPath, name)
			if _, statErr := os.Stat(path); statErr == nil {
				sources = append(sources, services.CallSource{Caller: c, Path: path})
				found = true
				break
			}
		}
		if !found {
			logger.Warn("no call-file found for caller", zap.String("caller", string(c)))
		}
	}
	return sources
}

func writeTableArtifact(repository *artifacts.Repository, logger *zap.Logger, table *models.FeatureTable, labeled bool) {
	f, err := repository.CreateArtifactFile("feature-table.tsv")
	if err != nil {
		fatal(logger, "failed to create feature table artifact", err)
	}
	defer f.Close()

	if err := repository.WriteFeatureTable(f, table, labeled); err != nil {
		fatal(logger, "failed to write feature table artifact", err)
	}
}

func writeRankingArtifact(repository *artifacts.Repository, logger *zap.Logger, ranking []models.FeatureImportance) {
	f, err := repository.CreateArtifactFile("feature-importance.tsv")
	if err != nil {
		fatal(logger, "failed to create importance artifact", err)
	}
	defer f.Close()

	if err := repository.WriteImportanceRanking(f, ranking); err != nil {
		fatal(logger, "failed to write importance artifact", err)
	}
}

func writeConsensusArtifact(repository *artifacts.Repository, logger *zap.Logger, rows []*models.EncodedRow, predictions []string) {
	f, err := repository.CreateArtifactFile("consensus.tsv")
	if err != nil {
		fatal(logger, "failed to create consensus artifact", err)
	}
	defer f.Close()

	if err := repository.WriteConsensus(f, rows, predictions); err != nil {
		fatal(logger, "failed to write consensus artifact", err)
	}
}
