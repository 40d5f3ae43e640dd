package constants

/*
	Defines a set of base level
	constants and enums to be used
	throughout the EVE core and it's
	associated services.
*/
type Caller string
type TruthMode string
type Nucleotide string

// Standard VCF column headers, lower-cased. Any further
// column on a #CHROM line is assumed to be a sample id.
var VcfHeaders = []string{"chrom", "pos", "id", "ref", "alt", "qual", "filter", "info", "format"}
