package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
)

const invoiceColumns = `id, invoice_number, customer_id, course_id, offer_id, discount_code_id, issue_date,
	due_date, course_units, course_duration, course_id_custom, amount, original_amount,
	discount_amount, tax_rate, is_tax_exempt, status, cancelled_at, cancelled_invoice_number,
	is_prevention_certified, zpp_prevention_id, notes, email_sent, email_sent_at, created_at, updated_at`

func (s *Store) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES (:id, :invoice_number, :customer_id, :course_id, :offer_id, :discount_code_id, :issue_date,
			:due_date, :course_units, :course_duration, :course_id_custom, :amount, :original_amount,
			:discount_amount, :tax_rate, :is_tax_exempt, :status, :cancelled_at, :cancelled_invoice_number,
			:is_prevention_certified, :zpp_prevention_id, :notes, :email_sent, :email_sent_at, :created_at, :updated_at)
	`
	_, err := s.named(ctx, query, inv)
	return mapError(err)
}

// UpdateInvoice rewrites every column except the invoice number
func (s *Store) UpdateInvoice(ctx context.Context, inv *models.Invoice) error {
	query := `
		UPDATE invoices SET
			customer_id = :customer_id, course_id = :course_id, offer_id = :offer_id,
			discount_code_id = :discount_code_id, issue_date = :issue_date, due_date = :due_date,
			course_units = :course_units, course_duration = :course_duration,
			course_id_custom = :course_id_custom, amount = :amount, original_amount = :original_amount,
			discount_amount = :discount_amount, tax_rate = :tax_rate, is_tax_exempt = :is_tax_exempt,
			status = :status, cancelled_at = :cancelled_at,
			cancelled_invoice_number = :cancelled_invoice_number,
			is_prevention_certified = :is_prevention_certified, zpp_prevention_id = :zpp_prevention_id,
			notes = :notes, email_sent = :email_sent, email_sent_at = :email_sent_at,
			updated_at = :updated_at
		WHERE id = :id
	`
	return expectRow(s.named(ctx, query, inv))
}

func (s *Store) GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var inv models.Invoice
	if err := s.get(ctx, &inv, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &inv, nil
}

// LastInvoiceNumber orders by suffix length first so 2025-1000 sorts after 2025-999
func (s *Store) LastInvoiceNumber(ctx context.Context, year int) (string, error) {
	query := `
		SELECT invoice_number FROM invoices
		WHERE invoice_number LIKE $1
		ORDER BY length(invoice_number) DESC, invoice_number DESC
		LIMIT 1
	`
	var number string
	err := s.get(ctx, &number, query, fmt.Sprintf("%d-%%", year))
	if err == models.ErrNotFound {
		return "", nil
	}
	return number, err
}

func (s *Store) ExistsForCustomerAndCourse(ctx context.Context, customerID, courseID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM invoices WHERE customer_id = $1 AND course_id = $2)`
	if err := s.get(ctx, &exists, query, customerID, courseID); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) ListInvoicesByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE customer_id = $1 ORDER BY issue_date, invoice_number`
	var invoices []*models.Invoice
	if err := s.list(ctx, &invoices, query, customerID); err != nil {
		return nil, err
	}
	return invoices, nil
}
