package nucleotide

import (
	"strings"

	"eve/core/models/constants"
)

const (
	A constants.Nucleotide = "A"
	C constants.Nucleotide = "C"
	G constants.Nucleotide = "G"
	T constants.Nucleotide = "T"
)

func ValidListOfNucleotides() []constants.Nucleotide {
	return []constants.Nucleotide{A, C, G, T}
}

// IsCanonical reports whether a base string is one of the four
// canonical nucleotide symbols. Ambiguity codes (R, Y, N, ...)
// and indel strings are not canonical.
func IsCanonical(base string) bool {
	switch strings.ToUpper(strings.TrimSpace(base)) {
	case string(A), string(C), string(G), string(T):
		return true
	default:
		return false
	}
}
