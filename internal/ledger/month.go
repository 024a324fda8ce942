package ledger

import (
	"fmt"
	"time"
)

// MonthKey identifies a calendar month as "YYYY-MM".
type MonthKey string

const monthLayout = "2006-01"

// DateLayout is the storage and wire format for ledger dates.
const DateLayout = "2006-01-02"

// NewMonthKey builds a key from a year and a 1-based month.
func NewMonthKey(year int, month time.Month) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", year, int(month)))
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) MonthKey {
	return MonthKey(t.Format(monthLayout))
}

// ParseMonthKey validates and returns a month key.
func ParseMonthKey(s string) (MonthKey, error) {
	if _, err := time.Parse(monthLayout, s); err != nil {
		return "", fmt.Errorf("%w: %q (want YYYY-MM)", ErrInvalidMonth, s)
	}
	return MonthKey(s), nil
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q (want YYYY-MM-DD)", ErrInvalidDate, s)
	}
	return t, nil
}

// Start returns the first day of the month at 00:00 UTC.
func (m MonthKey) Start() time.Time {
	t, _ := time.Parse(monthLayout, string(m))
	return t
}

// End returns the last day of the month at 00:00 UTC.
func (m MonthKey) End() time.Time {
	return m.Start().AddDate(0, 1, -1)
}

// Days returns the number of days in the month.
func (m MonthKey) Days() int {
	return m.End().Day()
}

// Next returns the following month.
func (m MonthKey) Next() MonthKey {
	return MonthOf(m.Start().AddDate(0, 1, 0))
}

// Valid reports whether the key parses.
func (m MonthKey) Valid() bool {
	_, err := time.Parse(monthLayout, string(m))
	return err == nil
}

func (m MonthKey) String() string {
	return string(m)
}

// Truncate strips the time of day, keeping the calendar date in UTC.
func Truncate(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
