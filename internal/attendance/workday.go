package attendance

import "time"

const workDateLayout = "2006-01-02"

// WorkdayClock supplies the current instant and maps instants to work dates
// in the reporting timezone.
type WorkdayClock struct {
	loc *time.Location
	now func() time.Time
}

// NewWorkdayClock returns a clock for loc. A nil loc means UTC and a nil now means time.Now.
func NewWorkdayClock(loc *time.Location, now func() time.Time) WorkdayClock {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return WorkdayClock{loc: loc, now: now}
}

// Now returns the current instant in UTC at the microsecond precision Postgres stores.
func (c WorkdayClock) Now() time.Time {
	now := c.now
	if now == nil {
		now = time.Now
	}
	return now().UTC().Truncate(time.Microsecond)
}

// WorkDate returns the calendar date of t in the reporting timezone.
func (c WorkdayClock) WorkDate(t time.Time) string {
	loc := c.loc
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(workDateLayout)
}

// breakMinutes rounds a break up to whole minutes. Negative spans count as zero.
func breakMinutes(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int((d + time.Minute - 1) / time.Minute)
}

// workedMinutes floors the elapsed session to whole minutes and subtracts breaks,
// clamping at zero.
func workedMinutes(login, logout time.Time, breakMins int) int {
	elapsed := logout.Sub(login)
	mins := int(elapsed / time.Minute)
	if elapsed < 0 && elapsed%time.Minute != 0 {
		mins--
	}
	return max(0, mins-breakMins)
}
