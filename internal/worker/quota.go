package worker

import (
	"fmt"
	"time"

	_ "time/tzdata" // reference timezones must resolve on minimal images
)

const dayLayout = "2006-01-02"

// DailyQuota caps grants per calendar day, where the day boundary is taken
// in a fixed reference location rather than the host's local time.
type DailyQuota struct {
	limit int
	loc   *time.Location
	used  int
	day   string // last reset date in loc
}

// NewDailyQuota creates a tracker whose current day is the date of now in loc
func NewDailyQuota(limit int, loc *time.Location, now time.Time) *DailyQuota {
	if loc == nil {
		loc = time.UTC
	}
	return &DailyQuota{
		limit: limit,
		loc:   loc,
		day:   now.In(loc).Format(dayLayout),
	}
}

// Roll resets usage when the reference date has advanced. It reports
// whether a reset happened.
func (q *DailyQuota) Roll(now time.Time) bool {
	day := now.In(q.loc).Format(dayLayout)
	if day == q.day {
		return false
	}
	q.day = day
	q.used = 0
	return true
}

// Exhausted reports whether the cap for the current day has been reached
func (q *DailyQuota) Exhausted() bool {
	return q.used >= q.limit
}

// Use counts one grant. Callers check Exhausted first.
func (q *DailyQuota) Use() {
	q.used++
}

// Used returns grants counted for the current day
func (q *DailyQuota) Used() int {
	return q.used
}

// Day returns the current reference date (YYYY-MM-DD)
func (q *DailyQuota) Day() string {
	return q.day
}

// LoadLocation resolves the reference timezone for daily quotas
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}
