package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextSessionSkipsWeekend(t *testing.T) {
	e := New("XNYS")
	// Friday 2024-06-07 -> Monday 2024-06-10
	assert.Equal(t, day(2024, time.June, 10), e.NextSession(day(2024, time.June, 7)))
}

func TestNextSessionSkipsHoliday(t *testing.T) {
	e := New("XNYS")
	if e.Fallback() {
		t.Skip("exchange calendar unavailable")
	}
	// 2024-07-04 is Independence Day.
	assert.Equal(t, day(2024, time.July, 5), e.NextSession(day(2024, time.July, 3)))
}

func TestUnknownExchangeUsesWeekdays(t *testing.T) {
	e := New("NOPE")
	assert.True(t, e.Fallback())
	assert.Equal(t, day(2024, time.June, 4), e.NextSession(day(2024, time.June, 3)))
	assert.Equal(t, day(2024, time.June, 10), e.NextSession(day(2024, time.June, 8)))
}
