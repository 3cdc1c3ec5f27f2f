package features

import (
	"math"
	"time"
)

// PctChange returns value[t]/value[t-k] - 1. It is undefined (ok=false) when
// t-k is out of range, either value is NaN, or the base is zero while the
// current value is not. A zero-to-zero move is no change.
func PctChange(values []float64, t, k int) (float64, bool) {
	if k <= 0 || t-k < 0 || t >= len(values) {
		return 0, false
	}
	prev, cur := values[t-k], values[t]
	if math.IsNaN(prev) || math.IsNaN(cur) {
		return 0, false
	}
	if prev == 0 {
		if cur == 0 {
			return 0, true
		}
		return 0, false
	}
	return cur/prev - 1, true
}

// ForwardChange returns value[t+h]/value[t] - 1, the label for horizon h.
func ForwardChange(values []float64, t, h int) (float64, bool) {
	if t+h >= len(values) {
		return 0, false
	}
	return PctChange(values, t+h, h)
}

// DayOfWeek maps a weekday to 0=Monday..6=Sunday.
func DayOfWeek(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}
