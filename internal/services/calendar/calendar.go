package calendar

import (
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// maxLookahead bounds the search for the next session across long holiday runs.
const maxLookahead = 14

// Exchange resolves trading sessions for one market.
type Exchange struct {
	cal      *calendar.Calendar
	mic      string
	fallback bool
}

// New loads the calendar for a MIC such as XNYS. Unknown MICs fall back to
// plain Monday to Friday sessions.
func New(mic string) *Exchange {
	mic = strings.ToLower(strings.TrimSpace(mic))
	if mic == "" {
		mic = "xnys"
	}
	cal := calendar.GetCalendar(mic)
	return &Exchange{cal: cal, mic: mic, fallback: cal == nil}
}

// MIC returns the exchange code in use.
func (e *Exchange) MIC() string {
	return e.mic
}

// Fallback reports whether the weekday-only calendar is in use.
func (e *Exchange) Fallback() bool {
	return e.fallback
}

// IsTradingDay reports whether the market holds a session on date.
func (e *Exchange) IsTradingDay(date time.Time) bool {
	if e.fallback {
		wd := date.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return e.cal.IsBusinessDay(e.atNoon(date))
}

// NextSession returns the first trading day strictly after the calendar day of
// after, at midnight UTC.
func (e *Exchange) NextSession(after time.Time) time.Time {
	y, m, d := after.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= maxLookahead; i++ {
		next := day.AddDate(0, 0, i)
		if e.IsTradingDay(next) {
			return next
		}
	}
	return day.AddDate(0, 0, 1)
}

// atNoon places a calendar date at midday in the exchange's zone so the
// business-day check never straddles a date line.
func (e *Exchange) atNoon(date time.Time) time.Time {
	y, m, d := date.Date()
	loc := time.UTC
	if e.cal != nil && e.cal.Loc != nil {
		loc = e.cal.Loc
	}
	return time.Date(y, m, d, 12, 0, 0, 0, loc)
}
