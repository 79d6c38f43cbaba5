package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks API latency per route
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "studio_api_request_duration_seconds",
			Help: "Duration of API requests in seconds",
			Buckets: []float64{
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
			},
		},
		[]string{"route", "status"},
	)

	InvoicesSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_invoices_saved_total",
			Help: "Invoice saves by outcome",
		},
		[]string{"outcome"}, // created, updated, rejected
	)

	AccountingEntriesDerived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_accounting_entries_derived_total",
			Help: "Accounting entries created or deleted from invoice transitions",
		},
		[]string{"action", "entry_type"},
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_emails_total",
			Help: "Emails handed to the mail queue by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	EmailsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_emails_delivered_total",
			Help: "Emails delivered to the SMTP relay by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	DiscountValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_discount_validations_total",
			Help: "Discount code validations by result reason",
		},
		[]string{"reason"},
	)

	DocumentsRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_documents_rendered_total",
			Help: "PDF documents rendered by kind and outcome",
		},
		[]string{"kind", "outcome"}, // invoice or cancellation
	)

	HolidayCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_holiday_cache_lookups_total",
			Help: "Holiday year cache lookups",
		},
		[]string{"result"}, // hit or miss
	)
)

// RecordRequestDuration records the duration of an API request
func RecordRequestDuration(route, status string, seconds float64) {
	RequestDuration.WithLabelValues(route, status).Observe(seconds)
}

// RecordInvoiceSaved counts an invoice save
func RecordInvoiceSaved(outcome string) {
	InvoicesSaved.WithLabelValues(outcome).Inc()
}

// RecordAccountingEntry counts a derived accounting change
func RecordAccountingEntry(action, entryType string) {
	AccountingEntriesDerived.WithLabelValues(action, entryType).Inc()
}

// RecordEmail counts a mail by kind, e.g. birthday or invoice
func RecordEmail(kind string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	EmailsSent.WithLabelValues(kind, outcome).Inc()
}

// RecordDelivery counts an SMTP delivery attempt
func RecordDelivery(kind string, err error) {
	outcome := "delivered"
	if err != nil {
		outcome = "failed"
	}
	EmailsDelivered.WithLabelValues(kind, outcome).Inc()
}

// RecordDiscountValidation counts a validation result
func RecordDiscountValidation(reason string) {
	DiscountValidations.WithLabelValues(reason).Inc()
}

// RecordDocument counts a rendered PDF
func RecordDocument(kind string, err error) {
	outcome := "rendered"
	if err != nil {
		outcome = "failed"
	}
	DocumentsRendered.WithLabelValues(kind, outcome).Inc()
}

// RecordHolidayCache counts a holiday cache lookup
func RecordHolidayCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	HolidayCacheLookups.WithLabelValues(result).Inc()
}
