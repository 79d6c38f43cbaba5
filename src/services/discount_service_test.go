package services_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
)

func TestGenerateCode(t *testing.T) {
	h := newHarness(t)
	customer := &models.Customer{ID: uuid.New(), FirstName: "max", LastName: "Öztürk"}
	end := models.Date(2025, time.June, 30)

	tests := []struct {
		name     string
		title    string
		end      *time.Time
		expected string
	}{
		{name: "Pilates", title: "Pilates Basics", end: &end, expected: "P0625MÖ"},
		{name: "Rückbildung", title: "Rückbildung Abendkurs", end: &end, expected: "RB0625MÖ"},
		{name: "Body workout", title: "Body-Workout mit Baby", end: &end, expected: "BW0625MÖ"},
		{name: "Unknown title", title: "Yoga", end: &end, expected: "XX0625MÖ"},
		{name: "No end date uses today", title: "Pilates", end: nil, expected: "P0625MÖ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offer := models.NewOffer(models.OfferTypeCourse, tt.title, money("100"))
			course := models.NewCourseBuilder().WithOffer(offer).WithDates(models.Date(2025, time.June, 2), tt.end).Build()

			code, err := h.discounts.GenerateCode(h.ctx, course, customer)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, code)
		})
	}
}

func TestGenerateCodeAppendsSuffixOnCollision(t *testing.T) {
	h := newHarness(t)
	customer := h.customer(t, "Max", "Mustermann")
	h.code(t, customer.ID, "P0625MM", models.DiscountPercentage, "10")
	h.code(t, customer.ID, "P0625MM1", models.DiscountPercentage, "10")

	end := models.Date(2025, time.June, 30)
	offer := models.NewOffer(models.OfferTypeCourse, "Pilates", money("100"))
	course := models.NewCourseBuilder().WithOffer(offer).WithDates(models.Date(2025, time.June, 2), &end).Build()

	code, err := h.discounts.GenerateCode(h.ctx, course, customer)
	require.NoError(t, err)
	assert.Equal(t, "P0625MM2", code)
}

func TestIssueForParticipant(t *testing.T) {
	h := newHarness(t)
	customer := h.customer(t, "Max", "Mustermann")
	course := h.course(t, h.offer(t, models.OfferTypeCourse, "Pilates Basics", "100"))

	code, err := h.discounts.IssueForParticipant(h.ctx, course, customer)
	require.NoError(t, err)
	require.NotNil(t, code)

	assert.Equal(t, "P0625MM", code.Code)
	assert.Equal(t, models.DiscountStatusPlanned, code.Status)
	assert.Equal(t, models.ReasonCourseCompleted, code.Reason)
	assert.True(t, code.DiscountValue.Equal(money("10")))
	assert.Equal(t, models.Date(2025, time.June, 30), code.ValidFrom)
	assert.Equal(t, models.Date(2026, time.June, 30), code.ValidUntil)
	assert.Equal(t, "Rabatt für Kursteilnahme: Pilates Basics (Kurs "+course.ID.String()+")", code.Description)

	again, err := h.discounts.IssueForParticipant(h.ctx, course, customer)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestCancelForRemovedParticipant(t *testing.T) {
	h := newHarness(t)
	customer := h.customer(t, "Max", "Mustermann")
	course := h.course(t, h.offer(t, models.OfferTypeCourse, "Pilates Basics", "100"))

	code, err := h.discounts.IssueForParticipant(h.ctx, course, customer)
	require.NoError(t, err)

	n, err := h.discounts.CancelForRemovedParticipant(h.ctx, course.ID, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	cancelled := h.reloadCode(t, code.ID)
	assert.Equal(t, models.DiscountStatusCancelled, cancelled.Status)
	assert.Equal(t, "Kunde aus Kurs "+course.ID.String()+" entfernt", cancelled.CancelledReason)
	assert.NotNil(t, cancelled.CancelledAt)
}

func TestValidateCode(t *testing.T) {
	h := newHarness(t)
	customer := h.customer(t, "Max", "Mustermann")
	h.code(t, customer.ID, "SUMMER", models.DiscountPercentage, "15")

	code, result, err := h.discounts.Validate(h.ctx, " summer ")
	require.NoError(t, err)
	assert.Equal(t, "SUMMER", code.Code)
	assert.True(t, result.Valid)
	assert.Equal(t, "Code ist gültig", result.Message)

	_, _, err = h.discounts.Validate(h.ctx, "MISSING")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteOldCodes(t *testing.T) {
	h := newHarness(t)
	customer := h.customer(t, "Max", "Mustermann")

	old := h.code(t, customer.ID, "OLD", models.DiscountFixed, "5")
	old.CreatedAt = h.now.AddDate(0, -14, 0)
	require.NoError(t, h.store.UpdateDiscountCode(h.ctx, old))
	recent := h.code(t, customer.ID, "RECENT", models.DiscountFixed, "5")

	n, err := h.discounts.DeleteOld(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = h.store.GetDiscountCode(h.ctx, old.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = h.store.GetDiscountCode(h.ctx, recent.ID)
	assert.NoError(t, err)
}

func TestReleaseIgnoresUnusedCode(t *testing.T) {
	h := newHarness(t)
	customer := h.customer(t, "Max", "Mustermann")
	code := h.code(t, customer.ID, "TEN", models.DiscountPercentage, "10")

	require.NoError(t, h.discounts.Release(h.ctx, code.ID))
	assert.Equal(t, models.DiscountStatusSent, h.reloadCode(t, code.ID).Status)
	assert.NoError(t, h.discounts.Release(h.ctx, uuid.New()))
}

func TestCreateRejectsPercentageAboveHundred(t *testing.T) {
	h := newHarness(t)
	customer := h.customer(t, "Max", "Mustermann")

	tests := []struct {
		name  string
		kind  models.DiscountType
		value string
		want  error
	}{
		{name: "Hundred percent", kind: models.DiscountPercentage, value: "100"},
		{name: "Above hundred percent", kind: models.DiscountPercentage, value: "150", want: models.ErrInvalidDiscountValue},
		{name: "Large fixed amount", kind: models.DiscountFixed, value: "150"},
		{name: "Negative", kind: models.DiscountFixed, value: "-5", want: models.ErrNegativeAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc := &models.DiscountCode{
				CustomerID:    customer.ID,
				Code:          "C" + uuid.NewString()[:8],
				DiscountType:  tt.kind,
				DiscountValue: decimal.RequireFromString(tt.value),
				Reason:        models.ReasonLoyalty,
				ValidFrom:     models.Date(2025, time.January, 1),
				ValidUntil:    models.Date(2025, time.December, 31),
			}
			err := h.discounts.Create(h.ctx, dc)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			var verr *models.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.ErrorIs(t, err, tt.want)
			_, err = h.store.GetDiscountCode(h.ctx, dc.ID)
			assert.ErrorIs(t, err, models.ErrNotFound)
		})
	}
}
