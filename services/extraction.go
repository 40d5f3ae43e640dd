package services

import (
	"bufio"
	"compress/gzip"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	yaml "gopkg.in/yaml.v2"

	"eve/core/models"
	"eve/core/models/constants"
	"eve/core/models/constants/caller"
	"eve/core/models/constants/nucleotide"
	"eve/core/utils"
)

// Named extraction strategies. A caller's profile is an ordered
// list of these; the first that yields a value wins.
const (
	StrategyQualityByDepth  = "quality_by_depth"  // INFO QD (GATK family)
	StrategyGenotypeQuality = "genotype_quality"  // FORMAT GQ per-sample annotation
	StrategyQualOverDepth   = "qual_over_depth"   // raw QUAL divided by read depth

	StrategyTotalDepth     = "total_depth"     // INFO/FORMAT DP
	StrategyAlternateDepth = "alternate_depth" // FORMAT ADP (VarScan family)
)

// CallerProfile is the field-lookup table for one caller: which
// strategies to try, in which order. Behavior across callers
// differs only in these tables, never in control flow.
type CallerProfile struct {
	Quality []string `yaml:"quality"`
	Depth   []string `yaml:"depth"`
}

type callerProfileFile struct {
	Callers map[string]*CallerProfile `yaml:"callers"`
}

func DefaultCallerProfiles() map[constants.Caller]*CallerProfile {
	return map[constants.Caller]*CallerProfile{
		caller.Gatk: {
			Quality: []string{StrategyQualityByDepth, StrategyGenotypeQuality, StrategyQualOverDepth},
			Depth:   []string{StrategyTotalDepth, StrategyAlternateDepth},
		},
		caller.Mpileup: {
			Quality: []string{StrategyGenotypeQuality, StrategyQualityByDepth, StrategyQualOverDepth},
			Depth:   []string{StrategyTotalDepth, StrategyAlternateDepth},
		},
		caller.VarScan: {
			Quality: []string{StrategyGenotypeQuality, StrategyQualOverDepth, StrategyQualityByDepth},
			Depth:   []string{StrategyAlternateDepth, StrategyTotalDepth},
		},
	}
}

// CallSource points at one caller's call-file.
type CallSource struct {
	Caller constants.Caller
	Path   string
}

type (
	ExtractionService struct {
		Config   *models.Config
		Logger   *zap.Logger
		Profiles map[constants.Caller]*CallerProfile
	}
)

func NewExtractionService(cfg *models.Config, logger *zap.Logger) *ExtractionService {
	xs := &ExtractionService{
		Config:   cfg,
		Logger:   logger,
		Profiles: DefaultCallerProfiles(),
	}

	if cfg.Pipeline.CallerProfilePath != "" {
		if err := xs.loadProfileOverrides(cfg.Pipeline.CallerProfilePath); err != nil {
			logger.Warn("failed to load caller profile overrides, using defaults",
				zap.String("path", cfg.Pipeline.CallerProfilePath), zap.Error(err))
		}
	}

	return xs
}

func (xs *ExtractionService) loadProfileOverrides(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var file callerProfileFile
	if err := yaml.NewDecoder(f).Decode(&file); err != nil {
		return errors.Wrap(err, "decoding caller profiles")
	}

	for name, profile := range file.Callers {
		if !caller.IsKnownCaller(name) {
			xs.Logger.Warn("ignoring profile override for unknown caller", zap.String("caller", name))
			continue
		}
		xs.Profiles[caller.CastToCaller(name)] = profile
	}
	return nil
}

// ExtractAll parses every call-file concurrently, one task per
// caller, joined at a barrier before the merge. Extractors share
// no mutable state beyond the guarded result map.
func (xs *ExtractionService) ExtractAll(sources []CallSource) (map[constants.Caller][]*models.VariantCall, error) {
	results := map[constants.Caller][]*models.VariantCall{}
	resultsMux := sync.Mutex{}

	var eg errgroup.Group
	for _, source := range sources {
		source := source

		if IsIndelCallFile(source.Path) {
			// indel reconciliation is out of scope; skip the
			// caller's indel sub-output wholesale
			xs.Logger.Info("skipping indel call-file", zap.String("path", source.Path))
			continue
		}

		eg.Go(func() error {
			calls, err := xs.Extract(source)
			if err != nil {
				return err
			}

			resultsMux.Lock()
			results[source.Caller] = append(results[source.Caller], calls...)
			resultsMux.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// IsIndelCallFile reports whether the path is a caller's separate
// indel sub-output (e.g. varscan.indel.vcf).
func IsIndelCallFile(path string) bool {
	return strings.Contains(strings.ToLower(filepath.Base(path)), ".indel.")
}

// Extract parses one caller's call-file into an ordered sequence
// of variant calls, keeping only passing SNP records. A record
// whose fallback chains are exhausted is dropped with a warning;
// the run continues.
func (xs *ExtractionService) Extract(source CallSource) ([]*models.VariantCall, error) {
	profile, ok := xs.Profiles[source.Caller]
	if !ok {
		return nil, errors.Errorf("no field-lookup profile for caller %s", source.Caller)
	}

	f, err := os.Open(source.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening call-file for caller %s", source.Caller)
	}
	defer f.Close()

	var scanner *bufio.Scanner
	if strings.HasSuffix(source.Path, ".gz") {
		gr, gzErr := gzip.NewReader(f)
		if gzErr != nil {
			return nil, errors.Wrapf(gzErr, "opening gzipped call-file for caller %s", source.Caller)
		}
		defer gr.Close()
		scanner = bufio.NewScanner(gr)
	} else {
		scanner = bufio.NewScanner(f)
	}

	var (
		discoveredHeaders bool
		headers           []string
		calls             []*models.VariantCall

		droppedNonSnp       int
		droppedFiltered     int
		droppedMissingField int
	)

	for scanner.Scan() {
		// Gather the header row by seeking the CHROM string
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

		isSnp, allele := snpAllele(record)
		if !isSnp {
			droppedNonSnp++
			continue
		}
		if !passesFilter(record) {
			droppedFiltered++
			continue
		}

		quality, qualityErr := xs.deriveField(source.Caller, profile.Quality, qualityStrategies, record, models.QualityField)
		if qualityErr != nil {
			xs.Logger.Warn("dropping record", zap.Error(qualityErr))
			droppedMissingField++
			continue
		}

		depth, depthErr := xs.deriveField(source.Caller, profile.Depth, depthStrategies, record, models.DepthField)
		if depthErr != nil {
			xs.Logger.Warn("dropping record", zap.Error(depthErr))
			droppedMissingField++
			continue
		}

		tmpCall := map[string]interface{}{
			"position":     recordPosition(record),
			"allele":       allele,
			"quality":      quality,
			"depth":        int(depth),
			"passesFilter": true,
			"isSnp":        true,
		}

		var resultingCall models.VariantCall
		if decodeErr := mapstructure.Decode(tmpCall, &resultingCall); decodeErr != nil {
			return nil, errors.Wrap(decodeErr, "decoding variant call")
		}
		calls = append(calls, &resultingCall)
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return nil, errors.Wrapf(scanErr, "reading call-file for caller %s", source.Caller)
	}

	xs.Logger.Info("extracted call-file",
		zap.String("caller", string(source.Caller)),
		zap.String("path", source.Path),
		zap.Int("kept", len(calls)),
		zap.Int("droppedNonSnp", droppedNonSnp),
		zap.Int("droppedFiltered", droppedFiltered),
		zap.Int("droppedMissingField", droppedMissingField))

	return calls, nil
}

// deriveField walks a caller's fallback chain until a strategy
// yields a value. Exhaustion is a typed failure, not control flow.
func (xs *ExtractionService) deriveField(
	c constants.Caller, chain []string, strategies map[string]fieldStrategy,
	record map[string]interface{}, kind models.FieldKind) (float64, error) {

	for _, name := range chain {
		strategy, known := strategies[name]
		if !known {
			xs.Logger.Warn("unknown extraction strategy in caller profile",
				zap.String("caller", string(c)), zap.String("strategy", name))
			continue
		}
		if value, ok := strategy(record); ok {
			return value, nil
		}
	}
	return 0, &models.MissingFieldError{Caller: c, Kind: kind, Position: recordPosition(record)}
}

// ---- VCF line parsing ------------------------------------------------

// parseVcfLine breaks one data line up into a loosely-typed record
// keyed by the lower-cased column headers; columns beyond the
// standard VCF headers are collected as per-sample value lists.
func parseVcfLine(headers []string, line string) map[string]interface{} {
	rowComponents := strings.Split(line, "\t")

	record := map[string]interface{}{
		"info":    map[string]string{},
		"samples": [][]string{},
	}

	for i, rowComponent := range rowComponents {
		value := strings.TrimSpace(rowComponent)

		var key string
		if i < len(headers) {
			key = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(headers[i], "#", "")))
		}

		if key == "" || !utils.StringInSlice(key, constants.VcfHeaders) {
			// assume it's a sample column
			record["samples"] = append(record["samples"].([][]string), strings.Split(value, ":"))
			continue
		}

		switch key {
		case "pos":
			position, err := strconv.Atoi(value)
			if err != nil {
				position = -1 // simulates a null value (empty string, or a single period '.')
			}
			record[key] = position
		case "qual":
			record[key] = utils.ParseFloatOrNaN(value)
		case "ref", "alt":
			record[key] = strings.Split(value, ",")
		case "format":
			record[key] = strings.Split(value, ":")
		case "info":
			info := map[string]string{}
			for _, scSep := range strings.Split(value, ";") {
				equalitySeparations := strings.SplitN(scSep, "=", 2)
				if len(equalitySeparations) == 2 {
					info[equalitySeparations[0]] = equalitySeparations[1]
				} else {
					info[equalitySeparations[0]] = ""
				}
			}
			record[key] = info
		default:
			record[key] = value
		}
	}

	return record
}

func recordPosition(record map[string]interface{}) int {
	if position, ok := record["pos"].(int); ok {
		return position
	}
	return -1
}

func recordQual(record map[string]interface{}) float64 {
	if qual, ok := record["qual"].(float64); ok {
		return qual
	}
	return math.NaN()
}

func recordInfo(record map[string]interface{}) map[string]string {
	if info, ok := record["info"].(map[string]string); ok {
		return info
	}
	return map[string]string{}
}

func recordFormat(record map[string]interface{}) []string {
	if format, ok := record["format"].([]string); ok {
		return format
	}
	return nil
}

func recordSamples(record map[string]interface{}) [][]string {
	if samples, ok := record["samples"].([][]string); ok {
		return samples
	}
	return nil
}

func recordAlleles(record map[string]interface{}, key string) []string {
	if alleles, ok := record[key].([]string); ok {
		return alleles
	}
	return nil
}

// snpAllele decides whether the record is a single-nucleotide
// variant and, if so, which alternate allele it reports. Indel and
// complex-variant records are rejected.
func snpAllele(record map[string]interface{}) (bool, string) {
	ref := recordAlleles(record, "ref")
	alt := recordAlleles(record, "alt")

	if len(ref) != 1 || !nucleotide.IsCanonical(ref[0]) {
		return false, ""
	}
	if len(alt) == 0 {
		return false, ""
	}
	for _, a := range alt {
		if !nucleotide.IsCanonical(a) {
			return false, ""
		}
	}
	return true, strings.ToUpper(alt[0])
}

// passesFilter treats an empty or absent FILTER field as passing;
// any annotation other than PASS marks the call low-confidence.
func passesFilter(record map[string]interface{}) bool {
	filter, ok := record["filter"].(string)
	if !ok {
		return true
	}
	switch filter {
	case "", ".", "PASS":
		return true
	default:
		return false
	}
}

// ---- field strategies ------------------------------------------------

type fieldStrategy func(record map[string]interface{}) (float64, bool)

var qualityStrategies = map[string]fieldStrategy{
	StrategyQualityByDepth:  qualityByDepth,
	StrategyGenotypeQuality: genotypeQuality,
	StrategyQualOverDepth:   qualOverDepth,
}

var depthStrategies = map[string]fieldStrategy{
	StrategyTotalDepth:     totalDepth,
	StrategyAlternateDepth: alternateDepth,
}

// sampleFormatValue looks a FORMAT key up in the first sample's
// genotype block.
func sampleFormatValue(record map[string]interface{}, key string) (string, bool) {
	format := recordFormat(record)
	samples := recordSamples(record)
	if len(samples) == 0 {
		return "", false
	}
	for i, f := range format {
		if f == key && i < len(samples[0]) {
			return samples[0][i], true
		}
	}
	return "", false
}

func infoFloat(record map[string]interface{}, key string) (float64, bool) {
	raw, ok := recordInfo(record)[key]
	if !ok {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func formatFloat(record map[string]interface{}, key string) (float64, bool) {
	raw, ok := sampleFormatValue(record, key)
	if !ok {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func qualityByDepth(record map[string]interface{}) (float64, bool) {
	return infoFloat(record, "QD")
}

func genotypeQuality(record map[string]interface{}) (float64, bool) {
	return formatFloat(record, "GQ")
}

func qualOverDepth(record map[string]interface{}) (float64, bool) {
	qual := recordQual(record)
	if math.IsNaN(qual) {
		return 0, false
	}
	depth, ok := totalDepth(record)
	if !ok || depth <= 0 {
		return 0, false
	}
	return qual / depth, true
}

func totalDepth(record map[string]interface{}) (float64, bool) {
	if depth, ok := infoFloat(record, "DP"); ok {
		return depth, true
	}
	return formatFloat(record, "DP")
}

func alternateDepth(record map[string]interface{}) (float64, bool) {
	if depth, ok := formatFloat(record, "ADP"); ok {
		return depth, true
	}
	return infoFloat(record, "ADP")
}
