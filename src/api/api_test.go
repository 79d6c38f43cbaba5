package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaegermarcel/bewegungsradius-crm/src/holidays"
	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
	"github.com/jaegermarcel/bewegungsradius-crm/src/services"
	"github.com/jaegermarcel/bewegungsradius-crm/src/store/memory"
)

type testAPI struct {
	ctx     context.Context
	store   *memory.Store
	svc     Services
	handler http.Handler
}

func newTestAPI(t *testing.T, health HealthChecker) *testAPI {
	t.Helper()
	settings := services.DefaultSettings()
	now := time.Date(2025, time.June, 2, 10, 0, 0, 0, settings.Location)
	settings.Now = func() time.Time { return now }

	store := memory.New()
	stores := store.Stores()
	outbox := memory.NewOutbox()
	calendar, err := holidays.NewBavariaCalculator()
	require.NoError(t, err)

	discounts := services.NewDiscountService(stores.DiscountCodes, settings)
	invoices := services.NewInvoiceService(stores, outbox, settings)
	accounting := services.NewAccountingDeriver(stores.Accounting, invoices, settings)
	notifications := services.NewNotificationService(stores, memory.NewScheduler(), outbox, settings)
	courses := services.NewCourseService(stores, services.NewScheduleCalculator(calendar), notifications, discounts, invoices, nil, settings)
	invoices.Subscribe(accounting, services.NewCancellationHandler(courses, discounts))

	svc := Services{Invoices: invoices, Courses: courses, Discounts: discounts, Accounting: accounting}
	return &testAPI{ctx: context.Background(), store: store, svc: svc, handler: NewRouter(svc, health)}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) customer(t *testing.T, first string) *models.Customer {
	t.Helper()
	c := &models.Customer{ID: uuid.New(), FirstName: first, LastName: "Muster", Email: first + "@example.com", IsActive: true}
	require.NoError(t, a.store.CreateCustomer(a.ctx, c))
	return c
}

// course runs Mondays in June 2025 with one in-person place
func (a *testAPI) course(t *testing.T) *models.Course {
	t.Helper()
	offer := models.NewOffer(models.OfferTypeCourse, "Pilates Basics", decimal.NewFromInt(100))
	require.NoError(t, a.store.CreateOffer(a.ctx, offer))
	location := &models.Location{ID: uuid.New(), Name: "Studio Süd", MaxParticipants: 1}
	require.NoError(t, a.store.CreateLocation(a.ctx, location))
	end := models.Date(2025, time.June, 30)
	c := models.NewCourseBuilder().
		WithOffer(offer).
		WithDates(models.Date(2025, time.June, 2), &end).
		WithTimes("18:00", "19:00").
		WithLocation(location).
		Build()
	require.NoError(t, a.svc.Courses.Save(a.ctx, c))
	return c
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealthAndMetrics(t *testing.T) {
	a := newTestAPI(t, pinger{})
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/health", nil).Code)

	rec := a.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "studio_api_request_duration_seconds")

	down := newTestAPI(t, pinger{err: errors.New("connection refused")})
	assert.Equal(t, http.StatusServiceUnavailable, down.do(t, http.MethodGet, "/health", nil).Code)
}

func TestInvoiceLifecycle(t *testing.T) {
	a := newTestAPI(t, nil)
	customer := a.customer(t, "Anna")
	course := a.course(t)

	rec := a.do(t, http.MethodPost, "/api/v1/invoices", map[string]interface{}{
		"customer_id":   customer.ID,
		"course_id":     course.ID,
		"tax_rate":      "19",
		"is_tax_exempt": false,
		"status":        "paid",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID            uuid.UUID `json:"id"`
		InvoiceNumber string    `json:"invoice_number"`
		Status        string    `json:"status"`
		TaxAmount     string    `json:"tax_amount"`
		TotalAmount   string    `json:"total_amount"`
		Title         string    `json:"title"`
	}
	decodeBody(t, rec, &created)
	assert.Equal(t, "2025-001", created.InvoiceNumber)
	assert.Equal(t, "draft", created.Status)
	assert.Equal(t, "19.00", created.TaxAmount)
	assert.Equal(t, "119.00", created.TotalAmount)
	assert.Equal(t, "Pilates Basics", created.Title)

	path := "/api/v1/invoices/" + created.ID.String()
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, path, nil).Code)

	rec = a.do(t, http.MethodPost, path+"/status", map[string]string{"status": "paid"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/v1/accounting/report?from=2025-06-01&to=2025-06-30", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report models.AccountingReport
	decodeBody(t, rec, &report)
	assert.True(t, report.IncomeTotal.Equal(decimal.NewFromInt(119)), "income %s", report.IncomeTotal)
	assert.Equal(t, 1, report.TotalEntries)

	rec = a.do(t, http.MethodGet, path+"/storno.pdf", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodGet, path+"/pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=Rechnung_2025-001.pdf`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = a.do(t, http.MethodPost, path+"/cancel", map[string]string{"storno_number": "2025-002"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, path+"/storno.pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename=Storno_2025-001.pdf`, rec.Header().Get("Content-Disposition"))

	rec = a.do(t, http.MethodPost, path+"/status", map[string]string{"status": "sent"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPut, path, map[string]interface{}{
		"customer_id": customer.ID,
		"course_id":   course.ID,
		"notes":       "neu",
	})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	stored, err := a.store.GetInvoice(a.ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CancelledInvoiceNumber)
	assert.Equal(t, "2025-002", *stored.CancelledInvoiceNumber)
	assert.Equal(t, "2025-001", stored.InvoiceNumber)

	rec = a.do(t, http.MethodPost, path+"/status", map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/customers/"+customer.ID.String()+"/invoices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []map[string]interface{}
	decodeBody(t, rec, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, "cancelled", listed[0]["status"])
}

func TestInvoiceErrors(t *testing.T) {
	a := newTestAPI(t, nil)
	customer := a.customer(t, "Anna")

	rec := a.do(t, http.MethodPost, "/api/v1/invoices", map[string]interface{}{
		"customer_id": customer.ID,
		"amount":      "50",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/api/v1/invoices/"+uuid.NewString(), nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodGet, "/api/v1/invoices/not-a-uuid", nil).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", bytes.NewBufferString("{broken"))
	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParticipantsAndDiscountValidation(t *testing.T) {
	a := newTestAPI(t, nil)
	course := a.course(t)
	anna := a.customer(t, "Anna")
	bert := a.customer(t, "Bert")
	base := "/api/v1/courses/" + course.ID.String()

	rec := a.do(t, http.MethodPost, base+"/participants", map[string]interface{}{"customer_id": anna.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var enrollment services.Enrollment
	decodeBody(t, rec, &enrollment)
	require.NotNil(t, enrollment.DiscountCode)
	require.NotNil(t, enrollment.Invoice)

	rec = a.do(t, http.MethodPost, base+"/participants", map[string]interface{}{"customer_id": bert.ID, "mode": "in_person"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPost, base+"/participants", map[string]interface{}{"customer_id": bert.ID, "mode": "online"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// the participation code is valid from the course end only
	rec = a.do(t, http.MethodPost, "/api/v1/discount-codes/validate", map[string]string{"code": enrollment.DiscountCode.Code})
	require.Equal(t, http.StatusOK, rec.Code)
	var validation validateResponse
	decodeBody(t, rec, &validation)
	assert.False(t, validation.Valid)
	assert.Equal(t, "Code ist noch nicht gültig", validation.Message)
	assert.Equal(t, "10%", validation.DisplayValue)

	rec = a.do(t, http.MethodPost, "/api/v1/discount-codes/validate", map[string]string{"code": "NOPE"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, base+"/schedule", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var schedule services.CourseSchedule
	decodeBody(t, rec, &schedule)
	assert.Equal(t, 4, schedule.Units)

	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, base+"/participants/"+anna.ID.String(), nil).Code)
	stored, err := a.store.GetDiscountCode(a.ctx, enrollment.DiscountCode.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DiscountStatusCancelled, stored.Status)

	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, base, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, base, nil).Code)
}

func TestAccountingReportRejectsBadRange(t *testing.T) {
	a := newTestAPI(t, nil)
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodGet, "/api/v1/accounting/report?from=01.06.2025&to=2025-06-30", nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodGet, "/api/v1/accounting/report?from=2025-06-30&to=2025-06-01", nil).Code)
}
