package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jaegermarcel/bewegungsradius-crm/src/holidays"
	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
	"github.com/jaegermarcel/bewegungsradius-crm/src/services"
	"github.com/jaegermarcel/bewegungsradius-crm/src/store/memory"
)

type harness struct {
	ctx       context.Context
	now       time.Time
	settings  services.Settings
	store     *memory.Store
	outbox    *memory.Outbox
	scheduler *memory.Scheduler
	events    *recordingPublisher

	discounts     *services.DiscountService
	invoices      *services.InvoiceService
	accounting    *services.AccountingDeriver
	notifications *services.NotificationService
	courses       *services.CourseService
	birthdays     *services.BirthdayService
	schedule      *services.ScheduleCalculator
}

type recordingPublisher struct {
	keys   []string
	values []interface{}
}

func (p *recordingPublisher) Publish(_ context.Context, key string, value interface{}) error {
	p.keys = append(p.keys, key)
	p.values = append(p.values, value)
	return nil
}

func (p *recordingPublisher) names() []string {
	var out []string
	for _, v := range p.values {
		out = append(out, v.(services.EventEnvelope).Event)
	}
	return out
}

// Monday 2025-06-02, 10:00 in Berlin
func newHarness(t *testing.T) *harness {
	t.Helper()
	settings := services.DefaultSettings()
	now := time.Date(2025, time.June, 2, 10, 0, 0, 0, settings.Location)
	h := &harness{ctx: context.Background(), now: now}
	settings.Now = func() time.Time { return h.now }
	h.settings = settings

	h.store = memory.New()
	h.outbox = memory.NewOutbox()
	h.scheduler = memory.NewScheduler()
	h.events = &recordingPublisher{}
	stores := h.store.Stores()

	calendar, err := holidays.NewBavariaCalculator()
	require.NoError(t, err)

	h.schedule = services.NewScheduleCalculator(calendar)
	h.discounts = services.NewDiscountService(stores.DiscountCodes, settings)
	h.invoices = services.NewInvoiceService(stores, h.outbox, settings)
	h.accounting = services.NewAccountingDeriver(stores.Accounting, h.invoices, settings)
	h.notifications = services.NewNotificationService(stores, h.scheduler, h.outbox, settings)
	h.courses = services.NewCourseService(stores, h.schedule, h.notifications, h.discounts, h.invoices, h.events, settings)
	h.birthdays = services.NewBirthdayService(stores.Customers, h.outbox, settings)
	h.invoices.Subscribe(
		h.accounting,
		services.NewCancellationHandler(h.courses, h.discounts),
		services.NewPublishingHandler(h.events),
	)
	return h
}

func (h *harness) customer(t *testing.T, first, last string) *models.Customer {
	t.Helper()
	c := &models.Customer{
		ID:        uuid.New(),
		FirstName: first,
		LastName:  last,
		Email:     first + "@example.com",
		IsActive:  true,
	}
	require.NoError(t, h.store.CreateCustomer(h.ctx, c))
	return c
}

func (h *harness) offer(t *testing.T, offerType models.OfferType, title string, amount string) *models.Offer {
	t.Helper()
	o := models.NewOffer(offerType, title, decimal.RequireFromString(amount))
	units, duration := 8, 60
	o.CourseUnits = &units
	o.CourseDuration = &duration
	require.NoError(t, h.store.CreateOffer(h.ctx, o))
	return o
}

// course runs weekly on Mondays in June 2025 at a venue with two places
func (h *harness) course(t *testing.T, offer *models.Offer) *models.Course {
	t.Helper()
	location := &models.Location{ID: uuid.New(), Name: "Studio Süd", MaxParticipants: 2}
	require.NoError(t, h.store.CreateLocation(h.ctx, location))
	end := models.Date(2025, time.June, 30)
	c := models.NewCourseBuilder().
		WithOffer(offer).
		WithDates(models.Date(2025, time.June, 2), &end).
		WithTimes("18:00", "19:00").
		WithLocation(location).
		Build()
	require.NoError(t, h.courses.Save(h.ctx, c))
	return c
}

func (h *harness) code(t *testing.T, customerID uuid.UUID, code string, kind models.DiscountType, value string) *models.DiscountCode {
	t.Helper()
	dc := &models.DiscountCode{
		CustomerID:    customerID,
		Code:          code,
		DiscountType:  kind,
		DiscountValue: decimal.RequireFromString(value),
		Reason:        models.ReasonLoyalty,
		ValidFrom:     models.Date(2025, time.January, 1),
		ValidUntil:    models.Date(2025, time.December, 31),
		Status:        models.DiscountStatusSent,
	}
	require.NoError(t, h.discounts.Create(h.ctx, dc))
	return dc
}

func (h *harness) reloadCode(t *testing.T, id uuid.UUID) *models.DiscountCode {
	t.Helper()
	dc, err := h.store.GetDiscountCode(h.ctx, id)
	require.NoError(t, err)
	return dc
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
