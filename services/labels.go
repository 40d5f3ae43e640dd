package services

import (
	"bufio"
	"compress/gzip"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"eve/core/models"
	"eve/core/models/constants/nucleotide"
	truthMode "eve/core/models/constants/truth-mode"
)

type (
	LabelService struct {
		Config *models.Config
		Logger *zap.Logger
	}
)

func NewLabelService(cfg *models.Config, logger *zap.Logger) *LabelService {
	return &LabelService{
		Config: cfg,
		Logger: logger,
	}
}

// Attach joins the configured ground-truth source onto the matrix,
// setting Actual on matching rows by position. Rows never matched
// retain the Unknown sentinel.
func (ls *LabelService) Attach(table *models.FeatureTable) error {
	mode := truthMode.CastToTruthMode(ls.Config.Pipeline.TruthMode)

	switch mode {
	case truthMode.Vcf:
		return ls.AttachFromVcf(table, ls.Config.Pipeline.TruthPath)
	case truthMode.SimulatorLog:
		return ls.AttachFromSimulatorLog(table, ls.Config.Pipeline.TruthPath)
	default:
		ls.Logger.Info("no truth source configured, all rows stay unlabeled")
		return nil
	}
}

// AttachFromVcf reads a ground-truth call-file and labels each
// matching matrix row with the truth ALT allele. Truth positions
// absent from the matrix are ignored; no row is created for them.
func (ls *LabelService) AttachFromVcf(table *models.FeatureTable, path string) error {
	index := indexRowsByPosition(table)

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening truth call-file")
	}
	defer f.Close()

	var scanner *bufio.Scanner
	if strings.HasSuffix(path, ".gz") {
		gr, gzErr := gzip.NewReader(f)
		if gzErr != nil {
			return errors.Wrap(gzErr, "opening gzipped truth call-file")
		}
		defer gr.Close()
		scanner = bufio.NewScanner(gr)
	} else {
		scanner = bufio.NewScanner(f)
	}

	var (
		discoveredHeaders bool
		headers           []string
		matched           int
	)

	for scanner.Scan() {
		line := scanner.Text()
		if !discoveredHeaders {
			if len(line) >= 6 && line[0:6] == "#CHROM" {
				headers = strings.Split(line, "\t")
				discoveredHeaders = true
			}
			continue
		}
		if line == "" {
			continue
		}

		record := parseVcfLine(headers, line)
		alt := recordAlleles(record, "alt")
		if len(alt) == 0 {
			continue
		}

		if row, present := index[recordPosition(record)]; present {
			row.Actual = strings.ToUpper(alt[0])
			matched++
		}
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return errors.Wrap(scanErr, "reading truth call-file")
	}

	ls.Logger.Info("attached truth labels from call-file",
		zap.String("path", path), zap.Int("matched", matched))

	return nil
}

// AttachFromSimulatorLog reads a read-simulator's tab-delimited
// mutation log (chromosome, position, original base, mutated base,
// haplotype id; no header) and labels matching rows with the
// mutated base. Rows carrying ambiguity or indel codes in either
// base column are skipped.
func (ls *LabelService) AttachFromSimulatorLog(table *models.FeatureTable, path string) error {
	index := indexRowsByPosition(table)

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening simulator mutation log")
	}
	defer f.Close()

	var (
		matched int
		skipped int
	)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 4 {
			skipped++
			continue
		}

		position, posErr := strconv.Atoi(strings.TrimSpace(fields[1]))
		if posErr != nil {
			skipped++
			continue
		}

		originalBase := strings.TrimSpace(fields[2])
		mutatedBase := strings.TrimSpace(fields[3])
		if !nucleotide.IsCanonical(originalBase) || !nucleotide.IsCanonical(mutatedBase) {
			skipped++
			continue
		}

		if row, present := index[position]; present {
			row.Actual = strings.ToUpper(mutatedBase)
			matched++
		}
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return errors.Wrap(scanErr, "reading simulator mutation log")
	}

	ls.Logger.Info("attached truth labels from simulator log",
		zap.String("path", path), zap.Int("matched", matched), zap.Int("skipped", skipped))

	return nil
}

func indexRowsByPosition(table *models.FeatureTable) map[int]*models.LocusRow {
	index := make(map[int]*models.LocusRow, len(table.Rows))
	for _, row := range table.Rows {
		index[row.Position] = row
	}
	return index
}
