package util

import (
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order after RFC3339. Layouts without a zone parse as UTC.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006/01/02",
	"20060102",
	"01/02/2006",
	"Jan 2, 2006",
	"02 Jan 2006",
}

// ParseTime tries RFC3339, RFC3339Nano, common calendar layouts and unix timestamps.
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return FromEpoch(ts), true
	}
	return time.Time{}, false
}

// FromEpoch converts an integer epoch to UTC time, inferring the unit from
// its magnitude (seconds, milliseconds, microseconds or nanoseconds).
func FromEpoch(v int64) time.Time {
	abs := v
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1e17:
		return time.Unix(0, v).UTC()
	case abs >= 1e14:
		return time.UnixMicro(v).UTC()
	case abs >= 1e11:
		return time.UnixMilli(v).UTC()
	default:
		return time.Unix(v, 0).UTC()
	}
}

// TruncateDay drops the clock part of t, keeping its location.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
