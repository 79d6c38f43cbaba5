package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestCourseStatus(t *testing.T) {
	end := Date(2025, time.June, 30)
	course := NewCourseBuilder().WithDates(Date(2025, time.June, 2), &end).Build()

	tests := []struct {
		today    time.Time
		expired  bool
		ongoing  bool
		upcoming bool
	}{
		{Date(2025, time.May, 20), false, false, true},
		{Date(2025, time.June, 2), false, true, false},
		{Date(2025, time.June, 30), false, true, false},
		{Date(2025, time.July, 1), true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.today.Format(time.DateOnly), func(t *testing.T) {
			if got := course.IsExpired(tt.today); got != tt.expired {
				t.Errorf("IsExpired() = %v, want %v", got, tt.expired)
			}
			if got := course.IsOngoing(tt.today); got != tt.ongoing {
				t.Errorf("IsOngoing() = %v, want %v", got, tt.ongoing)
			}
			if got := course.IsUpcoming(tt.today); got != tt.upcoming {
				t.Errorf("IsUpcoming() = %v, want %v", got, tt.upcoming)
			}
		})
	}
}

func TestCourseWeekday(t *testing.T) {
	course := NewCourseBuilder().WithDates(Date(2025, time.June, 8), nil).Build()
	if course.Weekday != 6 {
		t.Errorf("Weekday = %d, want 6 (Sunday)", course.Weekday)
	}
	course.StartDate = Date(2025, time.June, 9)
	course.RecomputeWeekday()
	if course.Weekday != 0 {
		t.Errorf("Weekday = %d, want 0 (Monday)", course.Weekday)
	}
}

func TestCourseParticipants(t *testing.T) {
	location := &Location{ID: uuid.New(), MaxParticipants: 1}
	course := NewCourseBuilder().WithLocation(location).Build()
	a, b := uuid.New(), uuid.New()

	if !course.AddParticipant(ParticipantInPerson, a) {
		t.Fatal("AddParticipant() = false for new participant")
	}
	if course.AddParticipant(ParticipantInPerson, a) {
		t.Error("AddParticipant() = true for existing participant")
	}
	course.AddParticipant(ParticipantOnline, a)
	course.AddParticipant(ParticipantOnline, b)

	if !course.IsFullInPerson() || course.AvailableSpotsInPerson() != 0 {
		t.Errorf("capacity: full %v spots %d", course.IsFullInPerson(), course.AvailableSpotsInPerson())
	}
	if got := len(course.AllParticipants()); got != 2 {
		t.Errorf("AllParticipants() has %d ids, want 2", got)
	}

	modes := course.RemoveParticipant(a)
	if len(modes) != 2 {
		t.Errorf("RemoveParticipant() = %v, want both modes", modes)
	}
	if course.TotalParticipants() != 1 {
		t.Errorf("TotalParticipants() = %d, want 1", course.TotalParticipants())
	}
}

func TestCoursePrice(t *testing.T) {
	offer := NewOffer(OfferTypeCourse, "Pilates", decimal.RequireFromString("100"))
	offer.IsTaxExempt = false
	offer.TaxRate = decimal.NewFromInt(19)
	course := NewCourseBuilder().WithOffer(offer).Build()

	if got := course.Price(); !got.Equal(decimal.RequireFromString("119")) {
		t.Errorf("Price() = %v, want 119", got)
	}
	if got := (&Course{}).Price(); !got.IsZero() {
		t.Errorf("Price() without offer = %v, want 0", got)
	}
}

func TestCustomerHelpers(t *testing.T) {
	birthday := Date(1990, time.February, 28)
	c := &Customer{FirstName: "änne", LastName: "Schmidt", Birthday: &birthday}

	if c.Initials() != "ÄS" {
		t.Errorf("Initials() = %q, want ÄS", c.Initials())
	}
	if got := c.AgeOn(Date(2025, time.February, 27)); got != 34 {
		t.Errorf("AgeOn() = %d, want 34", got)
	}
	if got := c.AgeOn(Date(2025, time.February, 28)); got != 35 {
		t.Errorf("AgeOn() = %d, want 35", got)
	}
	if !c.HasBirthdayOn(Date(2025, time.February, 28)) {
		t.Error("HasBirthdayOn() = false on birthday")
	}
	if (&Customer{}).AgeOn(Date(2025, time.January, 1)) != -1 {
		t.Error("AgeOn() without birthday should be -1")
	}
}
