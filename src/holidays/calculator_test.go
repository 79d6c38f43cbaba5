package holidays

import (
	"testing"
	"time"
)

func d(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func newCalc(t *testing.T) *Calculator {
	t.Helper()
	calc, err := NewBavariaCalculator()
	if err != nil {
		t.Fatalf("NewBavariaCalculator() error = %v", err)
	}
	return calc
}

func TestEasterDerivedHolidays(t *testing.T) {
	tests := []struct {
		year       int
		goodFriday time.Time
		whitMonday time.Time
	}{
		{2019, d(2019, time.April, 19), d(2019, time.June, 10)},
		{2024, d(2024, time.March, 29), d(2024, time.May, 20)},
		{2025, d(2025, time.April, 18), d(2025, time.June, 9)},
		{2026, d(2026, time.April, 3), d(2026, time.May, 25)},
		{2038, d(2038, time.April, 23), d(2038, time.June, 14)},
	}

	calc := newCalc(t)
	for _, tt := range tests {
		t.Run(tt.goodFriday.Format("2006"), func(t *testing.T) {
			if !calc.IsHoliday(tt.goodFriday) {
				t.Errorf("expected Good Friday %s to be a holiday", tt.goodFriday.Format("2006-01-02"))
			}
			easterMonday := tt.goodFriday.AddDate(0, 0, 3)
			if !calc.IsHoliday(easterMonday) {
				t.Errorf("expected Easter Monday %s to be a holiday", easterMonday.Format("2006-01-02"))
			}
			if !calc.IsHoliday(tt.whitMonday) {
				t.Errorf("expected Whit Monday %s to be a holiday", tt.whitMonday.Format("2006-01-02"))
			}
		})
	}
}

func TestBavariaHolidays(t *testing.T) {
	days := Bavaria().Holidays(2025)

	expected := []time.Time{
		d(2025, time.January, 1),
		d(2025, time.January, 6),
		d(2025, time.April, 18),
		d(2025, time.April, 21),
		d(2025, time.May, 1),
		d(2025, time.May, 29),
		d(2025, time.June, 9),
		d(2025, time.June, 19),
		d(2025, time.August, 15),
		d(2025, time.October, 3),
		d(2025, time.November, 1),
		d(2025, time.December, 25),
		d(2025, time.December, 26),
	}
	found := map[time.Time]string{}
	for _, h := range days {
		found[h.Date] = h.Name
	}
	for _, date := range expected {
		name, ok := found[date]
		if !ok {
			t.Errorf("expected holiday on %s", date.Format("2006-01-02"))
			continue
		}
		if name == "" {
			t.Errorf("holiday on %s has no name", date.Format("2006-01-02"))
		}
	}
	if _, ok := found[d(2025, time.October, 31)]; ok {
		t.Error("expected 2025-10-31 not to be a holiday in Bavaria")
	}

	for i := 1; i < len(days); i++ {
		if !days[i].Date.After(days[i-1].Date) {
			t.Errorf("holidays not sorted or duplicated at index %d", i)
		}
	}
}

func TestReformationDayOnlyIn2017(t *testing.T) {
	calc := newCalc(t)
	if !calc.IsHoliday(d(2017, time.October, 31)) {
		t.Error("expected 2017-10-31 to be a holiday")
	}
	if calc.IsHoliday(d(2018, time.October, 31)) {
		t.Error("expected 2018-10-31 not to be a holiday")
	}
}

func TestHolidaysInRange(t *testing.T) {
	calc := newCalc(t)

	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		expected []time.Time
	}{
		{
			name:     "Christmas across year boundary",
			start:    d(2025, time.December, 20),
			end:      d(2026, time.January, 10),
			expected: []time.Time{d(2025, time.December, 25), d(2025, time.December, 26), d(2026, time.January, 1), d(2026, time.January, 6)},
		},
		{
			name:     "Inclusive bounds",
			start:    d(2025, time.May, 1),
			end:      d(2025, time.May, 29),
			expected: []time.Time{d(2025, time.May, 1), d(2025, time.May, 29)},
		},
		{
			name:     "No holidays",
			start:    d(2025, time.November, 24),
			end:      d(2025, time.December, 8),
			expected: nil,
		},
		{
			name:     "Missing start",
			start:    time.Time{},
			end:      d(2025, time.December, 31),
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.HolidaysInRange(tt.start, tt.end)
			if len(got) != len(tt.expected) {
				t.Fatalf("HolidaysInRange() = %v, want %v", got, tt.expected)
			}
			for i := range got {
				if !got[i].Equal(tt.expected[i]) {
					t.Errorf("HolidaysInRange()[%d] = %v, want %v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestHolidayName(t *testing.T) {
	calc := newCalc(t)

	name, ok := calc.HolidayName(d(2025, time.October, 3))
	if !ok || name != "Tag der Deutschen Einheit" {
		t.Errorf("HolidayName() = %q, %v, want Tag der Deutschen Einheit, true", name, ok)
	}

	// clock time must not matter
	if !calc.IsHoliday(time.Date(2025, time.December, 25, 18, 30, 0, 0, time.UTC)) {
		t.Error("expected Christmas evening to count as holiday")
	}

	if _, ok := calc.HolidayName(d(2025, time.October, 4)); ok {
		t.Error("expected 2025-10-04 not to be a holiday")
	}
}

func TestWarnOnCourseDay(t *testing.T) {
	calc := newCalc(t)

	warnings := calc.WarnOnCourseDay(d(2025, time.January, 1), d(2025, time.December, 31), 0)
	if len(warnings) != 3 {
		t.Fatalf("WarnOnCourseDay() returned %d warnings, want 3: %v", len(warnings), warnings)
	}

	first := warnings[0]
	if !first.Date.Equal(d(2025, time.January, 6)) {
		t.Errorf("first warning date = %v, want 2025-01-06", first.Date)
	}
	name, _ := calc.HolidayName(first.Date)
	want := "⚠️ 06.01.2025 (" + name + ") - Kurs fällt aus"
	if first.Message != want {
		t.Errorf("Message = %q, want %q", first.Message, want)
	}

	if got := calc.WarnOnCourseDay(d(2025, time.January, 1), time.Time{}, 0); got != nil {
		t.Errorf("WarnOnCourseDay() without end = %v, want nil", got)
	}
}

type unnamedProvider struct{}

func (unnamedProvider) Holidays(year int) []Holiday {
	return []Holiday{{Date: d(year, time.March, 3)}}
}

func TestWarnOnCourseDayFallbackName(t *testing.T) {
	calc, err := NewCalculator(unnamedProvider{})
	if err != nil {
		t.Fatal(err)
	}

	// 2025-03-03 is a Monday
	warnings := calc.WarnOnCourseDay(d(2025, time.March, 1), d(2025, time.March, 31), 0)
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(warnings))
	}
	if warnings[0].Name != DefaultName {
		t.Errorf("Name = %q, want %q", warnings[0].Name, DefaultName)
	}
}
