// Package api exposes the studio services over a JSON HTTP interface.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jaegermarcel/bewegungsradius-crm/src/metrics"
	"github.com/jaegermarcel/bewegungsradius-crm/src/services"
)

// Services are the use cases the API calls into
type Services struct {
	Invoices   *services.InvoiceService
	Courses    *services.CourseService
	Discounts  *services.DiscountService
	Accounting *services.AccountingDeriver
}

// HealthChecker reports whether a backing store is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// NewRouter builds the HTTP router; health may be nil
func NewRouter(svc Services, health HealthChecker) http.Handler {
	h := &handler{svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(recordDuration)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Logger)

		r.Route("/invoices", func(r chi.Router) {
			r.Post("/", h.createInvoice)
			r.Get("/{id}", h.getInvoice)
			r.Put("/{id}", h.updateInvoice)
			r.Post("/{id}/status", h.updateInvoiceStatus)
			r.Post("/{id}/cancel", h.cancelInvoice)
			r.Post("/{id}/email", h.sendInvoiceEmail)
			r.Get("/{id}/pdf", h.invoicePDF)
			r.Get("/{id}/storno.pdf", h.cancellationPDF)
		})
		r.Get("/customers/{id}/invoices", h.listCustomerInvoices)

		r.Route("/courses/{id}", func(r chi.Router) {
			r.Get("/", h.getCourse)
			r.Delete("/", h.deleteCourse)
			r.Get("/schedule", h.courseSchedule)
			r.Post("/participants", h.addParticipant)
			r.Delete("/participants/{customerID}", h.removeParticipant)
		})

		r.Post("/discount-codes/validate", h.validateDiscountCode)
		r.Get("/accounting/report", h.accountingReport)
	})

	return r
}

// recordDuration observes every request under its route pattern
func recordDuration(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordRequestDuration(route, strconv.Itoa(status), time.Since(start).Seconds())
	})
}
