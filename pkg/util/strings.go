package util

import (
	"regexp"
	"strconv"
	"strings"
)

// tickerPattern accepts listings like AAPL, BRK.B, BF-B, ^GSPC or EURUSD=X.
var tickerPattern = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9.\-=]{0,14}$`)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// NormalizeTicker trims and upper-cases a ticker symbol.
func NormalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsTicker reports whether s, once normalized, looks like a ticker symbol.
func IsTicker(s string) bool {
	return tickerPattern.MatchString(NormalizeTicker(s))
}
