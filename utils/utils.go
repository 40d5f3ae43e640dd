package utils

import (
	"math"
	"strconv"
)

func StringInSlice(a string, list []string) bool {
	for _, b := range list {
		if b == a {
			return true
		}
	}
	return false
}

func StringSlicesEqual(a []string, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ParseFloatOrNaN maps unparseable numeric text (such as a VCF's
// placeholder '.') to NaN rather than an error.
func ParseFloatOrNaN(text string) float64 {
	if value, err := strconv.ParseFloat(text, 64); err == nil {
		return value
	}
	return math.NaN()
}

// FormatFloatOrMissing renders a float for tabular output, using
// the given placeholder for NaN.
func FormatFloatOrMissing(value float64, missing string) string {
	if math.IsNaN(value) {
		return missing
	}
	return strconv.FormatFloat(value, 'g', -1, 64)
}
