package services_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
)

func TestAddParticipantBillsAndIssuesCode(t *testing.T) {
	h := newHarness(t)
	course := h.course(t, h.offer(t, models.OfferTypeCourse, "Pilates Basics", "100"))
	max := h.customer(t, "Max", "Mustermann")

	enrollment, err := h.courses.AddParticipant(h.ctx, course.ID, max.ID, models.ParticipantInPerson)
	require.NoError(t, err)

	require.NotNil(t, enrollment.Invoice)
	assert.Equal(t, "Rechnung für Kurs: Pilates Basics (Präsenz)", enrollment.Invoice.Notes)
	assert.True(t, enrollment.Invoice.Amount.Equal(money("100")))
	assert.Equal(t, course.ID, *enrollment.Invoice.CourseID)
	require.NotNil(t, enrollment.DiscountCode)

	// joining the online list as well does not bill twice
	again, err := h.courses.AddParticipant(h.ctx, course.ID, max.ID, models.ParticipantOnline)
	require.NoError(t, err)
	assert.Nil(t, again.Invoice)
	assert.Nil(t, again.DiscountCode)

	invoices, err := h.invoices.ListByCustomer(h.ctx, max.ID)
	require.NoError(t, err)
	assert.Len(t, invoices, 1)

	assert.Equal(t, []string{"course.participant_added", "course.participant_added"}, h.events.names())
}

func TestAddParticipantRespectsCapacity(t *testing.T) {
	h := newHarness(t)
	course := h.course(t, h.offer(t, models.OfferTypeCourse, "Pilates Basics", "100"))

	for _, name := range []string{"Anna", "Berta"} {
		c := h.customer(t, name, "Muster")
		_, err := h.courses.AddParticipant(h.ctx, course.ID, c.ID, models.ParticipantInPerson)
		require.NoError(t, err)
	}

	late := h.customer(t, "Clara", "Muster")
	_, err := h.courses.AddParticipant(h.ctx, course.ID, late.ID, models.ParticipantInPerson)
	assert.True(t, errors.Is(err, models.ErrCourseFull))

	// online places are not limited
	_, err = h.courses.AddParticipant(h.ctx, course.ID, late.ID, models.ParticipantOnline)
	assert.NoError(t, err)

	stored, err := h.courses.Get(h.ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.TotalParticipants())
	assert.Equal(t, 0, stored.AvailableSpotsInPerson())
}

func TestFreeCourseIsNotBilled(t *testing.T) {
	h := newHarness(t)
	course := h.course(t, h.offer(t, models.OfferTypeCourse, "Schnupperstunde", "0"))
	max := h.customer(t, "Max", "Mustermann")

	enrollment, err := h.courses.AddParticipant(h.ctx, course.ID, max.ID, models.ParticipantInPerson)
	require.NoError(t, err)
	assert.Nil(t, enrollment.Invoice)
}

func TestRemoveParticipant(t *testing.T) {
	h := newHarness(t)
	course := h.course(t, h.offer(t, models.OfferTypeCourse, "Pilates Basics", "100"))
	max := h.customer(t, "Max", "Mustermann")
	enrollment, err := h.courses.AddParticipant(h.ctx, course.ID, max.ID, models.ParticipantInPerson)
	require.NoError(t, err)

	require.NoError(t, h.courses.RemoveParticipant(h.ctx, course.ID, max.ID))
	// removing twice is a no-op
	require.NoError(t, h.courses.RemoveParticipant(h.ctx, course.ID, max.ID))

	stored, err := h.courses.Get(h.ctx, course.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.AllParticipants())
	assert.Equal(t, models.DiscountStatusCancelled, h.reloadCode(t, enrollment.DiscountCode.ID).Status)
	assert.Contains(t, h.events.names(), "course.participant_removed")
}

func TestSaveCourseValidatesAndRecomputesWeekday(t *testing.T) {
	h := newHarness(t)
	offer := h.offer(t, models.OfferTypeCourse, "Pilates Basics", "100")

	end := models.Date(2025, time.May, 1)
	invalid := models.NewCourseBuilder().WithOffer(offer).WithDates(models.Date(2025, time.June, 2), &end).Build()
	err := h.courses.Save(h.ctx, invalid)
	var verr *models.ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.ErrorIs(t, err, models.ErrInvalidCourseDates)

	course := h.course(t, offer)
	course.StartDate = models.Date(2025, time.June, 5)
	require.NoError(t, h.courses.Save(h.ctx, course))
	assert.Equal(t, 3, course.Weekday)
}

func TestCourseSchedule(t *testing.T) {
	h := newHarness(t)
	course := h.course(t, h.offer(t, models.OfferTypeCourse, "Pilates Basics", "100"))

	schedule, err := h.courses.Schedule(h.ctx, course.ID)
	require.NoError(t, err)
	// Whit Monday 2025-06-09 falls out
	assert.Equal(t, 4, schedule.Units)
	require.Len(t, schedule.Warnings, 1)
	assert.Equal(t, "⚠️ 09.06.2025 (Pfingstmontag) - Kurs fällt aus", schedule.Warnings[0].Message)
}

func TestDeactivateExpired(t *testing.T) {
	h := newHarness(t)
	course := h.course(t, h.offer(t, models.OfferTypeCourse, "Pilates Basics", "100"))

	n, err := h.courses.DeactivateExpired(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	h.now = time.Date(2025, time.July, 1, 6, 0, 0, 0, h.settings.Location)
	n, err = h.courses.DeactivateExpired(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := h.courses.Get(h.ctx, course.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}
