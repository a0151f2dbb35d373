package types

import (
	"math"
	"strconv"
	"strings"
)

// ParseFloat reads a numeric attribute. Blank or unparseable values become
// NaN so they flow through the color scale as invalid rather than as zero.
func ParseFloat(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// FormatFloat renders a numeric attribute for tables and CSV; NaN is blank.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
