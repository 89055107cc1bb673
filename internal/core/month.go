package core

import "time"

// MonthPosition places a target month relative to "now".
type MonthPosition int

const (
	MonthPast MonthPosition = iota
	MonthCurrent
	MonthFuture
)

// Month identifies a calendar month. The zero value is invalid; build one
// with NewMonth or MonthOf.
type Month struct {
	Year  int
	Month time.Month
}

func NewMonth(year int, month time.Month) Month {
	return Month{Year: year, Month: month}
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// Start returns midnight UTC on the first day of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last instant of the month's final day.
func (m Month) End() time.Time {
	return m.Start().AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// Days returns the number of days in the month.
func (m Month) Days() int {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Prev returns the preceding calendar month.
func (m Month) Prev() Month {
	t := m.Start().AddDate(0, -1, 0)
	return MonthOf(t)
}

// Position compares the month against now's calendar month.
func (m Month) Position(now time.Time) MonthPosition {
	cur := MonthOf(now)
	switch {
	case m.Year < cur.Year || (m.Year == cur.Year && m.Month < cur.Month):
		return MonthPast
	case m.Year == cur.Year && m.Month == cur.Month:
		return MonthCurrent
	default:
		return MonthFuture
	}
}

// ClampDay clamps day to the month's length, so a day-31 cutoff works in
// February too.
func (m Month) ClampDay(day int) int {
	if last := m.Days(); day > last {
		return last
	}
	if day < 1 {
		return 1
	}
	return day
}

// DayEnd returns the last instant of the given day of the month, clamped
// to the month's length. Used to truncate a comparison month to the same
// day-of-month as today.
func (m Month) DayEnd(day int) time.Time {
	day = m.ClampDay(day)
	return time.Date(m.Year, m.Month, day, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
}

func (m Month) String() string {
	return m.Start().Format("2006-01")
}
