package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reThousandsDot   = regexp.MustCompile(`^-?\d{1,3}(?:\.\d{3})+$`)
	reThousandsComma = regexp.MustCompile(`^-?\d{1,3}(?:,\d{3})+$`)
)

// ParseNumber reads quantities and volumes as written in dispatch exports:
// "1,234.5", "1.234,5", "12,5", "1 000". Empty input yields ok=false.
func ParseNumber(input string) (float64, bool) {
	s := strings.ReplaceAll(input, "\u00a0", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, " ", "")

	switch {
	case reThousandsDot.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	case reThousandsComma.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ",", ".")
	}

	parsed, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func FloatPtr(v float64) *float64 { return &v }
