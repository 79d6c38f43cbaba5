package holidays

import (
	"sort"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/de"
)

// Holiday is a named public holiday
type Holiday struct {
	Date time.Time `json:"date"`
	Name string    `json:"name"`
}

// Provider yields the public holidays of one year for a fixed region
type Provider interface {
	Holidays(year int) []Holiday
}

// reformation500 was a one-off nationwide holiday for the 500th anniversary
var reformation500 = &cal.Holiday{
	Name:      "Reformationstag",
	Type:      cal.ObservancePublic,
	Month:     time.October,
	Day:       31,
	StartYear: 2017,
	EndYear:   2017,
	Func:      cal.CalcDayOfMonth,
}

// CalendarProvider evaluates a set of rickar/cal holiday definitions
type CalendarProvider struct {
	holidays []*cal.Holiday
}

// NewCalendarProvider combines holiday definitions; a date listed twice
// keeps the first name
func NewCalendarProvider(sets ...[]*cal.Holiday) *CalendarProvider {
	var all []*cal.Holiday
	for _, set := range sets {
		all = append(all, set...)
	}
	return &CalendarProvider{holidays: all}
}

// Bavaria is the public holiday calendar of the Free State of Bavaria.
// Mariä Himmelfahrt counts although it is only observed in communities
// with a Catholic majority, which covers the studio's area.
func Bavaria() *CalendarProvider {
	return NewCalendarProvider(de.HolidaysBY, []*cal.Holiday{de.MariaHimmelfahrt, reformation500})
}

// Holidays returns the holidays of year in calendar order
func (p *CalendarProvider) Holidays(year int) []Holiday {
	seen := make(map[time.Time]bool)
	var days []Holiday
	for _, h := range p.holidays {
		actual, _ := h.Calc(year)
		if actual.IsZero() {
			continue
		}
		day := normalize(actual)
		if day.Year() != year || seen[day] {
			continue
		}
		seen[day] = true
		days = append(days, Holiday{Date: day, Name: h.Name})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days
}
