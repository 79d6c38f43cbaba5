package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jaegermarcel/bewegungsradius-crm/src/documents"
	"github.com/jaegermarcel/bewegungsradius-crm/src/metrics"
	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
)

// InvoiceService owns the invoice amount lifecycle and status transitions
type InvoiceService struct {
	stores    Stores
	mailer    Mailer
	settings  Settings
	clock     clock
	documents *documents.Renderer
	handlers  []EventHandler
}

// NewInvoiceService creates a new invoice service; mailer may be nil
func NewInvoiceService(stores Stores, mailer Mailer, settings Settings) *InvoiceService {
	return &InvoiceService{
		stores:   stores,
		mailer:   mailer,
		settings: settings,
		clock:    newClock(settings),
		documents: documents.NewRenderer(documents.Company{
			Name:      settings.CompanyName,
			Address:   settings.CompanyAddress,
			Email:     settings.CompanyEmail,
			TaxNumber: settings.CompanyTaxNumber,
			BankName:  settings.CompanyBankName,
			IBAN:      settings.CompanyIBAN,
			BIC:       settings.CompanyBIC,
		}, settings.Location),
	}
}

// Subscribe registers handlers for the events of status changes
func (s *InvoiceService) Subscribe(handlers ...EventHandler) {
	s.handlers = append(s.handlers, handlers...)
}

// Get loads an invoice with its source and discount code resolved
func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	inv, err := s.stores.Invoices.GetInvoice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	if err := s.resolveSource(ctx, inv); err != nil && !errors.Is(err, models.ErrInvoiceSourceMissing) {
		return nil, err
	}
	if inv.DiscountCodeID != nil {
		dc, err := s.stores.DiscountCodes.GetDiscountCode(ctx, *inv.DiscountCodeID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("failed to get discount code: %w", err)
		}
		inv.DiscountCode = dc
	}
	return inv, nil
}

// resolveSource loads the course and offer behind the invoice, course first
func (s *InvoiceService) resolveSource(ctx context.Context, inv *models.Invoice) error {
	if inv.Source != nil {
		return nil
	}
	var course *models.Course
	var offer *models.Offer
	if inv.CourseID != nil {
		c, err := s.stores.Courses.GetCourse(ctx, *inv.CourseID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("failed to get course: %w", err)
		}
		course = c
	}
	if course == nil && inv.OfferID != nil {
		o, err := s.stores.Offers.GetOffer(ctx, *inv.OfferID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("failed to get offer: %w", err)
		}
		offer = o
	}
	src, err := models.ResolveInvoiceSource(course, offer)
	if err != nil {
		return err
	}
	inv.Source = src
	return nil
}

// Save runs the amount lifecycle and persists the invoice:
//
//  1. a course or offer is required
//  2. number, amount, units and dates are filled in when unset
//  3. original_amount is fixed on first save
//  4. the discount is recomputed from original_amount
//  5. amount = original_amount - discount
//  6. invoice and discount redemption are persisted together
//
// Status is left untouched; use UpdateStatus for transitions.
func (s *InvoiceService) Save(ctx context.Context, inv *models.Invoice) error {
	if err := s.save(ctx, inv); err != nil {
		metrics.RecordInvoiceSaved("rejected")
		return err
	}
	return nil
}

func (s *InvoiceService) save(ctx context.Context, inv *models.Invoice) error {
	now := s.clock.Now()

	if err := s.resolveSource(ctx, inv); err != nil {
		if errors.Is(err, models.ErrInvoiceSourceMissing) {
			return models.NewValidationError(err, "invoice "+inv.InvoiceNumber)
		}
		return err
	}

	previous, err := s.stores.Invoices.GetInvoice(ctx, inv.ID)
	if errors.Is(err, models.ErrNotFound) {
		previous = nil
	} else if err != nil {
		return fmt.Errorf("failed to get invoice: %w", err)
	}

	if previous != nil {
		if previous.IsTerminal() {
			return fmt.Errorf("invoice %s: %w", previous.InvoiceNumber, models.ErrInvoiceCancelled)
		}
		carryForward(inv, previous)
	} else if inv.Status == "" {
		inv.Status = models.InvoiceStatusDraft
	}

	if err := s.initialize(ctx, inv); err != nil {
		return err
	}
	if inv.DueDate.Before(inv.IssueDate) {
		return models.NewValidationError(models.ErrDueBeforeIssue,
			fmt.Sprintf("due %s, issued %s", models.FormatDate(inv.DueDate), models.FormatDate(inv.IssueDate)))
	}
	if inv.Amount.IsNegative() {
		return models.NewValidationError(models.ErrNegativeAmount, inv.Amount.String())
	}

	if inv.OriginalAmount == nil {
		original := inv.Amount
		inv.OriginalAmount = &original
	}

	code, newlyAttached, err := s.applyDiscount(ctx, inv, previous)
	if err != nil {
		return err
	}
	inv.Amount = inv.OriginalAmount.Sub(inv.DiscountAmount)
	if inv.Amount.IsNegative() {
		return models.NewValidationError(models.ErrNegativeAmount, inv.Amount.String())
	}

	var released *uuid.UUID
	if previous != nil && previous.DiscountCodeID != nil &&
		(inv.DiscountCodeID == nil || *inv.DiscountCodeID != *previous.DiscountCodeID) {
		released = previous.DiscountCodeID
	}

	inv.UpdatedAt = now
	err = s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if previous == nil {
			inv.CreatedAt = now
			if err := s.stores.Invoices.CreateInvoice(ctx, inv); err != nil {
				return fmt.Errorf("failed to create invoice: %w", err)
			}
		} else if err := s.stores.Invoices.UpdateInvoice(ctx, inv); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}

		if released != nil {
			if err := s.releaseCode(ctx, *released); err != nil {
				return err
			}
		}
		if code != nil && newlyAttached {
			code.Use(now)
			if err := s.stores.DiscountCodes.UpdateDiscountCode(ctx, code); err != nil {
				return fmt.Errorf("failed to redeem discount code: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if previous == nil {
		metrics.RecordInvoiceSaved("created")
	} else {
		metrics.RecordInvoiceSaved("updated")
	}
	return nil
}

// carryForward keeps what the stored row owns; callers cannot overwrite
// the number, the dates of record, the cancellation or the email state
func carryForward(inv, previous *models.Invoice) {
	inv.Status = previous.Status
	if previous.OriginalAmount != nil {
		original := *previous.OriginalAmount
		inv.OriginalAmount = &original
	}
	inv.InvoiceNumber = previous.InvoiceNumber
	inv.IssueDate = previous.IssueDate
	inv.CreatedAt = previous.CreatedAt
	inv.CancelledAt = previous.CancelledAt
	inv.CancelledInvoiceNumber = previous.CancelledInvoiceNumber
	inv.EmailSent = previous.EmailSent
	inv.EmailSentAt = previous.EmailSentAt
}

// initialize fills the fields a new invoice derives from its source
func (s *InvoiceService) initialize(ctx context.Context, inv *models.Invoice) error {
	today := s.clock.Today()

	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.IssueDate.IsZero() {
		inv.IssueDate = today
	}
	if inv.InvoiceNumber == "" {
		number, err := s.nextInvoiceNumber(ctx, inv.IssueDate.Year())
		if err != nil {
			return err
		}
		inv.InvoiceNumber = number
	}
	if inv.DueDate.IsZero() {
		days := s.settings.InvoiceDueDays
		if days == 0 {
			days = models.DefaultDueDays
		}
		inv.DueDate = models.AddDays(inv.IssueDate, days)
	}

	src := inv.Source
	if inv.Amount.IsZero() && inv.OriginalAmount == nil {
		inv.Amount = src.Price()
	}
	if inv.CourseUnits == 0 {
		if units := src.Units(); units != nil {
			inv.CourseUnits = *units
		}
	}
	if inv.CourseDuration == nil {
		inv.CourseDuration = src.Duration()
	}
	if inv.CourseIDCustom == "" {
		inv.CourseIDCustom = customCourseID(src.CustomIDType())
	}
	if inv.ZPPPreventionID == "" {
		if cert := src.Certification(); cert != nil {
			inv.ZPPPreventionID = cert.ZPPID
		}
	}
	return nil
}

// applyDiscount sets DiscountAmount from the attached code. newlyAttached
// reports whether the code was not on the stored row yet.
func (s *InvoiceService) applyDiscount(ctx context.Context, inv, previous *models.Invoice) (*models.DiscountCode, bool, error) {
	if inv.DiscountCodeID == nil && inv.DiscountCode != nil {
		inv.DiscountCodeID = &inv.DiscountCode.ID
	}
	if inv.DiscountCodeID == nil {
		inv.DiscountCode = nil
		inv.DiscountAmount = decimal.Zero
		return nil, false, nil
	}

	code, err := s.stores.DiscountCodes.GetDiscountCode(ctx, *inv.DiscountCodeID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get discount code: %w", err)
	}
	if code.CustomerID != inv.CustomerID {
		return nil, false, models.NewValidationError(models.ErrDiscountCustomerMismatch, code.Code)
	}

	newlyAttached := previous == nil || previous.DiscountCodeID == nil || *previous.DiscountCodeID != code.ID
	if newlyAttached {
		result := code.Validate(s.clock.Today())
		metrics.RecordDiscountValidation(string(result.Reason))
		if !result.Valid {
			return nil, false, models.NewValidationError(models.ErrDiscountCodeNotUsable, result.Message)
		}
	}

	inv.DiscountCode = code
	inv.DiscountAmount = code.CalculateDiscount(*inv.OriginalAmount)
	return code, newlyAttached, nil
}

func (s *InvoiceService) releaseCode(ctx context.Context, id uuid.UUID) error {
	code, err := s.stores.DiscountCodes.GetDiscountCode(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get discount code: %w", err)
	}
	code.Release()
	if err := s.stores.DiscountCodes.UpdateDiscountCode(ctx, code); err != nil {
		return fmt.Errorf("failed to release discount code: %w", err)
	}
	log.Printf("discount code %s released", code.Code)
	return nil
}

// nextInvoiceNumber returns YYYY-NNN following the year's last number
func (s *InvoiceService) nextInvoiceNumber(ctx context.Context, year int) (string, error) {
	last, err := s.stores.Invoices.LastInvoiceNumber(ctx, year)
	if err != nil {
		return "", fmt.Errorf("failed to get last invoice number: %w", err)
	}
	next := 1
	if i := strings.LastIndex(last, "-"); i >= 0 {
		if n, err := strconv.Atoi(last[i+1:]); err == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("%d-%03d", year, next), nil
}

// customCourseID returns KU-XX-XXXXXX, or "" without a type
func customCourseID(kind string) string {
	if len(kind) < 2 {
		return ""
	}
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = letters[rand.IntN(len(letters))]
	}
	return fmt.Sprintf("KU-%s-%s", strings.ToUpper(kind[:2]), suffix)
}

// UpdateStatus applies a transition, persists it and dispatches its events
func (s *InvoiceService) UpdateStatus(ctx context.Context, id uuid.UUID, to models.InvoiceStatus) (*models.Invoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return inv, s.transition(ctx, inv, to)
}

// Cancel cancels an invoice, optionally recording a separate storno number
func (s *InvoiceService) Cancel(ctx context.Context, id uuid.UUID, stornoNumber string) (*models.Invoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.IsTerminal() {
		return inv, nil
	}
	if stornoNumber != "" {
		inv.CancelledInvoiceNumber = &stornoNumber
	}
	return inv, s.transition(ctx, inv, models.InvoiceStatusCancelled)
}

func (s *InvoiceService) transition(ctx context.Context, inv *models.Invoice, to models.InvoiceStatus) error {
	events, err := models.ApplyStatusChange(inv, to, s.clock.Now())
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	if err := s.stores.Invoices.UpdateInvoice(ctx, inv); err != nil {
		return fmt.Errorf("failed to update invoice status: %w", err)
	}
	return s.dispatch(ctx, events)
}

// dispatch runs every handler for every event; failures are joined
func (s *InvoiceService) dispatch(ctx context.Context, events []models.DomainEvent) error {
	var errs []error
	for _, ev := range events {
		for _, h := range s.handlers {
			if err := h.Handle(ctx, ev); err != nil {
				log.Printf("handler failed for %s %s: %v", ev.EventName(), ev.AggregateID(), err)
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// CreateForParticipant bills a customer who joined a course. It returns nil
// when the customer already has an invoice for the course or the course is free.
func (s *InvoiceService) CreateForParticipant(ctx context.Context, course *models.Course, customerID uuid.UUID, mode models.ParticipantMode) (*models.Invoice, error) {
	exists, err := s.stores.Invoices.ExistsForCustomerAndCourse(ctx, customerID, course.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check invoices: %w", err)
	}
	if exists {
		log.Printf("invoice for customer %s and course %s exists, skipping", customerID, course.ID)
		return nil, nil
	}
	price := course.Price()
	if !price.IsPositive() {
		log.Printf("course %s has no price, no invoice created", course.ID)
		return nil, nil
	}

	inv := models.NewInvoiceBuilder().
		ForCustomer(customerID).
		ForCourse(course).
		WithAmount(price).
		WithTax(s.settings.DefaultTaxRate, s.settings.DefaultTaxExempt).
		WithIssueDate(s.clock.Today()).
		WithNotes(fmt.Sprintf("Rechnung für Kurs: %s (%s)", course.Title(), mode.Label())).
		Build()
	inv.IsPreventionCertified = course.IsZPPCertified()
	inv.ZPPPreventionID = course.ZPPPreventionID()

	if err := s.Save(ctx, inv); err != nil {
		return nil, err
	}
	log.Printf("invoice %s created for course %s", inv.InvoiceNumber, course.Title())
	return inv, nil
}

// InvoicePDF renders the invoice document and its file name
func (s *InvoiceService) InvoicePDF(ctx context.Context, id uuid.UUID) (string, []byte, error) {
	inv, customer, err := s.withCustomer(ctx, id)
	if err != nil {
		return "", nil, err
	}
	return s.renderInvoicePDF(inv, customer)
}

func (s *InvoiceService) renderInvoicePDF(inv *models.Invoice, customer *models.Customer) (string, []byte, error) {
	data, err := s.documents.Invoice(inv, customer)
	metrics.RecordDocument("invoice", err)
	if err != nil {
		return "", nil, err
	}
	return documents.InvoiceFilename(inv.InvoiceNumber), data, nil
}

// CancellationPDF renders the storno document of a cancelled invoice
func (s *InvoiceService) CancellationPDF(ctx context.Context, id uuid.UUID) (string, []byte, error) {
	inv, customer, err := s.withCustomer(ctx, id)
	if err != nil {
		return "", nil, err
	}
	data, err := s.documents.Cancellation(inv, customer)
	metrics.RecordDocument("cancellation", err)
	if err != nil {
		return "", nil, err
	}
	return documents.CancellationFilename(inv.InvoiceNumber), data, nil
}

func (s *InvoiceService) withCustomer(ctx context.Context, id uuid.UUID) (*models.Invoice, *models.Customer, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	customer, err := s.stores.Customers.GetCustomer(ctx, inv.CustomerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return inv, customer, nil
}

// SendEmail mails the invoice with its PDF to the customer and records the delivery
func (s *InvoiceService) SendEmail(ctx context.Context, id uuid.UUID) error {
	if s.mailer == nil {
		return errors.New("no mailer configured")
	}
	inv, customer, err := s.withCustomer(ctx, id)
	if err != nil {
		return err
	}
	if customer.Email == "" {
		return fmt.Errorf("customer %s has no email address", customer.FullName())
	}
	filename, pdf, err := s.renderInvoicePDF(inv, customer)
	if err != nil {
		return err
	}

	body, err := renderEmail(EmailInvoice, map[string]interface{}{
		"FirstName": customer.FirstName,
		"Number":    inv.InvoiceNumber,
		"Title":     inv.Title(),
		"Total":     inv.TotalAmount().StringFixed(2),
		"DueDate":   models.FormatDate(inv.DueDate),
		"Company":   s.settings.CompanyName,
	})
	if err != nil {
		return err
	}
	err = s.mailer.Send(ctx, EmailMessage{
		ID:      uuid.New(),
		Kind:    EmailInvoice,
		To:      customer.Email,
		ToName:  customer.FullName(),
		Subject: "Rechnung " + inv.InvoiceNumber,
		Body:    body,
		Attachments: []Attachment{{
			Filename:    filename,
			ContentType: "application/pdf",
			Data:        pdf,
		}},
	})
	metrics.RecordEmail(string(EmailInvoice), err)
	if err != nil {
		return fmt.Errorf("failed to send invoice email: %w", err)
	}

	now := s.clock.Now()
	inv.EmailSent = true
	inv.EmailSentAt = &now
	if err := s.stores.Invoices.UpdateInvoice(ctx, inv); err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	return nil
}

// ListByCustomer returns a customer's invoices
func (s *InvoiceService) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.Invoice, error) {
	invoices, err := s.stores.Invoices.ListInvoicesByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}
