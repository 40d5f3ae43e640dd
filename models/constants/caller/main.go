package caller

import (
	"strings"

	"eve/core/models/constants"
)

const (
	Unknown constants.Caller = "unknown"

	Gatk    constants.Caller = "gatk"
	Mpileup constants.Caller = "mpileup"
	VarScan constants.Caller = "varscan"
)

func CastToCaller(text string) constants.Caller {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "gatk":
		return Gatk
	case "mpileup":
		return Mpileup
	case "varscan":
		return VarScan
	default:
		return Unknown
	}
}

func IsKnownCaller(text string) bool {
	return CastToCaller(text) != Unknown
}

// CastToCallers maps a comma-separated list (the form the
// orchestration layer hands over) to a caller set, dropping
// anything unrecognized.
func CastToCallers(commaSep string) []constants.Caller {
	var callers []constants.Caller
	for _, piece := range strings.Split(commaSep, ",") {
		if IsKnownCaller(piece) {
			callers = append(callers, CastToCaller(piece))
		}
	}
	return callers
}
