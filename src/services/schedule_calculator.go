package services

import (
	"iter"
	"slices"
	"time"

	"github.com/jaegermarcel/bewegungsradius-crm/src/holidays"
	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
)

// HolidayCalendar is the part of the holiday calculator the schedule needs
type HolidayCalendar interface {
	IsHoliday(date time.Time) bool
	HolidaysInRange(start, end time.Time) []time.Time
	WarnOnCourseDay(start, end time.Time, weekday int) []holidays.Warning
}

// ScheduleCalculator expands weekly courses into session dates
type ScheduleCalculator struct {
	calendar HolidayCalendar
}

// NewScheduleCalculator creates a calculator over a holiday calendar
func NewScheduleCalculator(calendar HolidayCalendar) *ScheduleCalculator {
	return &ScheduleCalculator{calendar: calendar}
}

// CourseSchedule summarises a course's session dates
type CourseSchedule struct {
	Dates    []time.Time        `json:"dates"`
	Skipped  []time.Time        `json:"skipped"`
	Units    int                `json:"units"`
	Warnings []holidays.Warning `json:"warnings"`
}

// weekly yields start, start+7d, ... up to and including end
func weekly(start, end time.Time) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		start, end = models.DateOf(start), models.DateOf(end)
		for d := start; !d.After(end); d = models.AddDays(d, 7) {
			if !yield(d) {
				return
			}
		}
	}
}

// OccurrenceSeq lazily yields the weekly dates that are not holidays
func (s *ScheduleCalculator) OccurrenceSeq(start, end time.Time) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for d := range weekly(start, end) {
			if s.calendar.IsHoliday(d) {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

// Occurrences returns the session dates in [start, end], holidays excluded
func (s *ScheduleCalculator) Occurrences(start, end time.Time) []time.Time {
	return slices.Collect(s.OccurrenceSeq(start, end))
}

// Skipped returns the weekly dates that fall on a holiday
func (s *ScheduleCalculator) Skipped(start, end time.Time) []time.Time {
	var out []time.Time
	for d := range weekly(start, end) {
		if s.calendar.IsHoliday(d) {
			out = append(out, d)
		}
	}
	return out
}

// CountUnits returns the number of sessions in [start, end]
func (s *ScheduleCalculator) CountUnits(start, end time.Time) int {
	n := 0
	for range s.OccurrenceSeq(start, end) {
		n++
	}
	return n
}

// ForCourse expands a course. One-off courses and courses without an end
// date have exactly one session on the start date.
func (s *ScheduleCalculator) ForCourse(course *models.Course) CourseSchedule {
	start := models.DateOf(course.StartDate)
	if !course.IsWeekly || course.EndDate == nil {
		return CourseSchedule{Dates: []time.Time{start}, Units: 1}
	}
	end := *course.EndDate
	dates := s.Occurrences(start, end)
	return CourseSchedule{
		Dates:    dates,
		Skipped:  s.Skipped(start, end),
		Units:    len(dates),
		Warnings: s.calendar.WarnOnCourseDay(start, end, course.Weekday),
	}
}
