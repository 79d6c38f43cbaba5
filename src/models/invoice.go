package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"     // Entwurf
	InvoiceStatusSent      InvoiceStatus = "sent"      // Versendet
	InvoiceStatusPaid      InvoiceStatus = "paid"      // Bezahlt
	InvoiceStatusOverdue   InvoiceStatus = "overdue"   // Überfällig
	InvoiceStatusCancelled InvoiceStatus = "cancelled" // Storniert
)

// InvoiceStatusLabels maps statuses to display labels
var InvoiceStatusLabels = map[InvoiceStatus]string{
	InvoiceStatusDraft:     "Entwurf",
	InvoiceStatusSent:      "Versendet",
	InvoiceStatusPaid:      "Bezahlt",
	InvoiceStatusOverdue:   "Überfällig",
	InvoiceStatusCancelled: "Storniert",
}

// DefaultDueDays is the payment term when no due date is given
const DefaultDueDays = 14

// Invoice is a financial document for a course or an offer
type Invoice struct {
	ID            uuid.UUID `json:"id" db:"id"`
	InvoiceNumber string    `json:"invoice_number" db:"invoice_number"` // YYYY-NNN
	CustomerID    uuid.UUID `json:"customer_id" db:"customer_id"`

	// At least one is set; Source holds the resolved variant
	CourseID *uuid.UUID    `json:"course_id,omitempty" db:"course_id"`
	OfferID  *uuid.UUID    `json:"offer_id,omitempty" db:"offer_id"`
	Source   InvoiceSource `json:"-" db:"-"`

	DiscountCodeID *uuid.UUID    `json:"discount_code_id,omitempty" db:"discount_code_id"`
	DiscountCode   *DiscountCode `json:"-" db:"-"`

	IssueDate time.Time `json:"issue_date" db:"issue_date"`
	DueDate   time.Time `json:"due_date" db:"due_date"`

	CourseUnits    int    `json:"course_units" db:"course_units"`
	CourseDuration *int   `json:"course_duration,omitempty" db:"course_duration"`
	CourseIDCustom string `json:"course_id_custom" db:"course_id_custom"` // KU-XX-XXXXXX

	// Amounts (net)
	Amount         decimal.Decimal  `json:"amount" db:"amount"`                   // after discount
	OriginalAmount *decimal.Decimal `json:"original_amount" db:"original_amount"` // fixed at first save
	DiscountAmount decimal.Decimal  `json:"discount_amount" db:"discount_amount"`

	TaxRate     decimal.Decimal `json:"tax_rate" db:"tax_rate"`
	IsTaxExempt bool            `json:"is_tax_exempt" db:"is_tax_exempt"`

	Status                 InvoiceStatus `json:"status" db:"status"`
	CancelledAt            *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancelledInvoiceNumber *string       `json:"cancelled_invoice_number,omitempty" db:"cancelled_invoice_number"`

	IsPreventionCertified bool   `json:"is_prevention_certified" db:"is_prevention_certified"` // § 20 SGB V
	ZPPPreventionID       string `json:"zpp_prevention_id" db:"zpp_prevention_id"`

	Notes       string     `json:"notes" db:"notes"`
	EmailSent   bool       `json:"email_sent" db:"email_sent"`
	EmailSentAt *time.Time `json:"email_sent_at,omitempty" db:"email_sent_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TaxAmount is derived, never stored
func (i *Invoice) TaxAmount() decimal.Decimal {
	return ComputeTax(&i.Amount, i.TaxRate, i.IsTaxExempt)
}

// TotalAmount is derived, never stored
func (i *Invoice) TotalAmount() decimal.Decimal {
	return ComputeTotal(&i.Amount, i.TaxRate, i.IsTaxExempt)
}

// Title resolves through the invoice source
func (i *Invoice) Title() string {
	return InvoiceTitle(i.Source)
}

// DisplayName renders the invoice for listings
func (i *Invoice) DisplayName(customerName string) string {
	switch src := i.Source.(type) {
	case CourseSource:
		return fmt.Sprintf("Rechnung %s - %s (Kurs)", i.InvoiceNumber, customerName)
	case OfferSource:
		return fmt.Sprintf("Rechnung %s - %s (%s)", i.InvoiceNumber, customerName, src.Offer.Title)
	}
	return fmt.Sprintf("Rechnung %s - %s", i.InvoiceNumber, customerName)
}

// CanTransitionTo checks if the invoice can move to a new status
func (i *Invoice) CanTransitionTo(newStatus InvoiceStatus) bool {
	validTransitions := map[InvoiceStatus][]InvoiceStatus{
		InvoiceStatusDraft: {
			InvoiceStatusSent,
			InvoiceStatusPaid,
			InvoiceStatusCancelled,
		},
		InvoiceStatusSent: {
			InvoiceStatusDraft,
			InvoiceStatusPaid,
			InvoiceStatusOverdue,
			InvoiceStatusCancelled,
		},
		InvoiceStatusOverdue: {
			InvoiceStatusSent,
			InvoiceStatusPaid,
			InvoiceStatusCancelled,
		},
		InvoiceStatusPaid: {
			InvoiceStatusSent,    // Payment booked by mistake
			InvoiceStatusOverdue, // Payment returned
			InvoiceStatusCancelled,
		},
		InvoiceStatusCancelled: {}, // Terminal state
	}

	allowed, exists := validTransitions[i.Status]
	if !exists {
		return false
	}

	for _, s := range allowed {
		if s == newStatus {
			return true
		}
	}
	return false
}

// IsTerminal returns true once the invoice is cancelled
func (i *Invoice) IsTerminal() bool {
	return i.Status == InvoiceStatusCancelled
}

// IsBooked returns true if the invoice counts as revenue
func (i *Invoice) IsBooked() bool {
	return i.Status == InvoiceStatusPaid
}

// ApplyStatusChange moves the invoice to a new status and returns what happened
// Setting the current status again is a no-op without events
func ApplyStatusChange(inv *Invoice, to InvoiceStatus, now time.Time) ([]DomainEvent, error) {
	if inv.Status == to {
		return nil, nil
	}
	if !inv.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, inv.Status, to)
	}

	from := inv.Status
	inv.Status = to
	inv.UpdatedAt = now

	events := []DomainEvent{InvoiceStatusChanged{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		From:          from,
		To:            to,
		At:            now,
	}}

	if to == InvoiceStatusCancelled {
		if inv.CancelledAt == nil {
			inv.CancelledAt = &now
		}
		if inv.CancelledInvoiceNumber == nil || *inv.CancelledInvoiceNumber == "" {
			number := inv.InvoiceNumber
			inv.CancelledInvoiceNumber = &number
		}
		events = append(events, InvoiceCancelled{
			InvoiceID:      inv.ID,
			InvoiceNumber:  inv.InvoiceNumber,
			CustomerID:     inv.CustomerID,
			CourseID:       inv.CourseID,
			DiscountCodeID: inv.DiscountCodeID,
			At:             *inv.CancelledAt,
		})
	}

	return events, nil
}

// InvoiceBuilder helps construct invoices
type InvoiceBuilder struct {
	invoice *Invoice
}

// NewInvoiceBuilder creates a draft invoice under the small business exemption
func NewInvoiceBuilder() *InvoiceBuilder {
	return &InvoiceBuilder{
		invoice: &Invoice{
			ID:                    uuid.New(),
			Status:                InvoiceStatusDraft,
			TaxRate:               decimal.Zero,
			IsTaxExempt:           true,
			IsPreventionCertified: true,
			DiscountAmount:        decimal.Zero,
		},
	}
}

// ForCustomer sets the customer
func (b *InvoiceBuilder) ForCustomer(customerID uuid.UUID) *InvoiceBuilder {
	b.invoice.CustomerID = customerID
	return b
}

// ForCourse bills a course
func (b *InvoiceBuilder) ForCourse(course *Course) *InvoiceBuilder {
	b.invoice.CourseID = &course.ID
	b.invoice.Source = CourseSource{Course: course}
	return b
}

// ForOffer bills an offer directly
func (b *InvoiceBuilder) ForOffer(offer *Offer) *InvoiceBuilder {
	b.invoice.OfferID = &offer.ID
	if b.invoice.Source == nil {
		b.invoice.Source = OfferSource{Offer: offer}
	}
	return b
}

// WithAmount sets an explicit net amount
func (b *InvoiceBuilder) WithAmount(amount decimal.Decimal) *InvoiceBuilder {
	b.invoice.Amount = amount
	return b
}

// WithTax sets rate and exemption
func (b *InvoiceBuilder) WithTax(rate decimal.Decimal, exempt bool) *InvoiceBuilder {
	b.invoice.TaxRate = rate
	b.invoice.IsTaxExempt = exempt
	return b
}

// WithDiscountCode attaches a code
func (b *InvoiceBuilder) WithDiscountCode(code *DiscountCode) *InvoiceBuilder {
	b.invoice.DiscountCode = code
	b.invoice.DiscountCodeID = &code.ID
	return b
}

// WithIssueDate sets the invoice date
func (b *InvoiceBuilder) WithIssueDate(date time.Time) *InvoiceBuilder {
	b.invoice.IssueDate = date
	return b
}

// WithNotes sets free text notes
func (b *InvoiceBuilder) WithNotes(notes string) *InvoiceBuilder {
	b.invoice.Notes = notes
	return b
}

// Build creates the invoice
func (b *InvoiceBuilder) Build() *Invoice {
	return b.invoice
}
