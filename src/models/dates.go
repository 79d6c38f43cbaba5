package models

import (
	"fmt"
	"strings"
	"time"
)

// Calendar dates are carried as time.Time at midnight UTC.

// Date builds a calendar date
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf strips the clock from t, keeping the calendar day as seen in t's location
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// AddDays shifts a calendar date
func AddDays(date time.Time, days int) time.Time {
	return date.AddDate(0, 0, days)
}

// WeekdayIndex returns 0 for Monday through 6 for Sunday
func WeekdayIndex(date time.Time) int {
	return (int(date.Weekday()) + 6) % 7
}

// FormatDate renders dd.mm.yyyy
func FormatDate(date time.Time) string {
	return date.Format("02.01.2006")
}

// ClockTime is a wall clock time of day such as a course start
type ClockTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// ParseClockTime accepts "15:04" and "15:04:05"
func ParseClockTime(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return ClockTime{}, fmt.Errorf("invalid time of day: %q", s)
}

// String renders HH:MM
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On combines a calendar date with the clock time in loc
func (c ClockTime) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour, c.Minute, 0, 0, loc)
}
