package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaegermarcel/bewegungsradius-crm/src/holidays"
	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
	"github.com/jaegermarcel/bewegungsradius-crm/src/services"
)

func newSchedule(t *testing.T) (*services.ScheduleCalculator, *holidays.Calculator) {
	t.Helper()
	calendar, err := holidays.NewBavariaCalculator()
	require.NoError(t, err)
	return services.NewScheduleCalculator(calendar), calendar
}

func TestOccurrences(t *testing.T) {
	schedule, _ := newSchedule(t)

	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		expected []time.Time
		skipped  []time.Time
	}{
		{
			name:     "Three Mondays without holidays",
			start:    models.Date(2025, time.November, 24),
			end:      models.Date(2025, time.December, 8),
			expected: []time.Time{models.Date(2025, time.November, 24), models.Date(2025, time.December, 1), models.Date(2025, time.December, 8)},
		},
		{
			name:     "Whit Monday is skipped",
			start:    models.Date(2025, time.May, 26),
			end:      models.Date(2025, time.June, 16),
			expected: []time.Time{models.Date(2025, time.May, 26), models.Date(2025, time.June, 2), models.Date(2025, time.June, 16)},
			skipped:  []time.Time{models.Date(2025, time.June, 9)},
		},
		{
			name:     "End before start",
			start:    models.Date(2025, time.June, 2),
			end:      models.Date(2025, time.June, 1),
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, schedule.Occurrences(tt.start, tt.end))
			assert.Equal(t, tt.skipped, schedule.Skipped(tt.start, tt.end))
			assert.Equal(t, len(tt.expected), schedule.CountUnits(tt.start, tt.end))
		})
	}
}

func TestOccurrencesNeverHitHolidays(t *testing.T) {
	schedule, calendar := newSchedule(t)

	// every weekday through two full years
	for offset := 0; offset < 7; offset++ {
		start := models.AddDays(models.Date(2025, time.January, 1), offset)
		for d := range schedule.OccurrenceSeq(start, models.Date(2026, time.December, 31)) {
			assert.False(t, calendar.IsHoliday(d), "occurrence %s is a holiday", d.Format(time.DateOnly))
		}
	}
}

func TestScheduleForCourse(t *testing.T) {
	schedule, _ := newSchedule(t)
	end := models.Date(2025, time.June, 16)

	tests := []struct {
		name     string
		course   *models.Course
		units    int
		warnings int
	}{
		{
			name:     "Weekly course",
			course:   models.NewCourseBuilder().WithDates(models.Date(2025, time.May, 26), &end).Build(),
			units:    3,
			warnings: 1,
		},
		{
			name:   "One-off course",
			course: models.NewCourseBuilder().WithDates(models.Date(2025, time.June, 9), &end).Weekly(false).Build(),
			units:  1,
		},
		{
			name:   "No end date",
			course: models.NewCourseBuilder().WithDates(models.Date(2025, time.June, 9), nil).Build(),
			units:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := schedule.ForCourse(tt.course)
			assert.Equal(t, tt.units, got.Units)
			assert.Len(t, got.Dates, tt.units)
			assert.Len(t, got.Warnings, tt.warnings)
		})
	}
}
