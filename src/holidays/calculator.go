package holidays

import (
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jaegermarcel/bewegungsradius-crm/src/metrics"
)

// DefaultName is shown when the calendar has no name for a holiday
const DefaultName = "Feiertag"

const yearCacheSize = 16

// Warning flags a holiday that falls on a course's weekday
type Warning struct {
	Date    time.Time `json:"date"`
	Name    string    `json:"name"`
	Message string    `json:"message"`
}

// Calculator answers holiday queries over a Provider, caching whole years
type Calculator struct {
	provider Provider
	cache    *lru.Cache[int, map[time.Time]string]
	mu       sync.Mutex
}

// NewCalculator wraps a provider with a year cache
func NewCalculator(provider Provider) (*Calculator, error) {
	cache, err := lru.New[int, map[time.Time]string](yearCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create holiday cache: %w", err)
	}
	return &Calculator{provider: provider, cache: cache}, nil
}

// NewBavariaCalculator returns a calculator for the Bavarian calendar
func NewBavariaCalculator() (*Calculator, error) {
	return NewCalculator(Bavaria())
}

func (c *Calculator) year(year int) map[time.Time]string {
	if days, ok := c.cache.Get(year); ok {
		metrics.RecordHolidayCache(true)
		return days
	}
	metrics.RecordHolidayCache(false)

	c.mu.Lock()
	defer c.mu.Unlock()
	if days, ok := c.cache.Get(year); ok {
		return days
	}
	days := make(map[time.Time]string)
	for _, h := range c.provider.Holidays(year) {
		days[normalize(h.Date)] = h.Name
	}
	c.cache.Add(year, days)
	return days
}

// HolidaysForYear returns the holiday dates of one year, sorted
func (c *Calculator) HolidaysForYear(year int) []time.Time {
	days := c.year(year)
	out := make([]time.Time, 0, len(days))
	for d := range days {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// HolidaysInRange returns the holidays within [start, end], sorted
// A zero bound yields no holidays
func (c *Calculator) HolidaysInRange(start, end time.Time) []time.Time {
	if start.IsZero() || end.IsZero() {
		return nil
	}
	start, end = normalize(start), normalize(end)
	var out []time.Time
	for year := start.Year(); year <= end.Year(); year++ {
		for _, d := range c.HolidaysForYear(year) {
			if !d.Before(start) && !d.After(end) {
				out = append(out, d)
			}
		}
	}
	return out
}

// IsHoliday reports whether date is a public holiday
func (c *Calculator) IsHoliday(date time.Time) bool {
	_, ok := c.year(date.Year())[normalize(date)]
	return ok
}

// HolidayName returns the holiday's name, false if date is no holiday
func (c *Calculator) HolidayName(date time.Time) (string, bool) {
	name, ok := c.year(date.Year())[normalize(date)]
	return name, ok
}

// WarnOnCourseDay lists the holidays in range that fall on weekday (0=Monday)
func (c *Calculator) WarnOnCourseDay(start, end time.Time, weekday int) []Warning {
	if start.IsZero() || end.IsZero() || weekday < 0 || weekday > 6 {
		return nil
	}
	var warnings []Warning
	for _, d := range c.HolidaysInRange(start, end) {
		if weekdayIndex(d) != weekday {
			continue
		}
		name, _ := c.HolidayName(d)
		if name == "" {
			name = DefaultName
		}
		warnings = append(warnings, Warning{
			Date:    d,
			Name:    name,
			Message: fmt.Sprintf("⚠️ %s (%s) - Kurs fällt aus", d.Format("02.01.2006"), name),
		})
	}
	return warnings
}

func normalize(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
