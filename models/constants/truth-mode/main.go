package truthMode

import (
	"strings"

	"eve/core/models/constants"
)

const (
	None constants.TruthMode = "none"

	// a ground-truth VCF of known calls
	Vcf constants.TruthMode = "vcf"
	// a read-simulator's tab-delimited mutation log
	SimulatorLog constants.TruthMode = "simulator"
)

func CastToTruthMode(text string) constants.TruthMode {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "vcf":
		return Vcf
	case "simulator", "simulator-log", "log":
		return SimulatorLog
	default:
		return None
	}
}
