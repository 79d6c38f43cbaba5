package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
)

const entryColumns = `id, entry_type, description, amount, date, invoice_id, notes, created_at`

// CreateEntry records an accounting entry; entries are never updated
func (s *Store) CreateEntry(ctx context.Context, e *models.AccountingEntry) error {
	query := `
		INSERT INTO accounting_entries (` + entryColumns + `)
		VALUES (:id, :entry_type, :description, :amount, :date, :invoice_id, :notes, :created_at)
	`
	_, err := s.named(ctx, query, e)
	return mapError(err)
}

func (s *Store) ListEntriesByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*models.AccountingEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM accounting_entries WHERE invoice_id = $1 ORDER BY date, created_at`
	var entries []*models.AccountingEntry
	if err := s.list(ctx, &entries, query, invoiceID); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) DeleteEntriesByInvoice(ctx context.Context, invoiceID uuid.UUID) (int, error) {
	res, err := s.exec(ctx).ExecContext(ctx, `DELETE FROM accounting_entries WHERE invoice_id = $1`, invoiceID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete accounting entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// ListEntries returns entries dated within [from, to]
func (s *Store) ListEntries(ctx context.Context, from, to time.Time) ([]*models.AccountingEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM accounting_entries WHERE date BETWEEN $1 AND $2 ORDER BY date, created_at`
	var entries []*models.AccountingEntry
	if err := s.list(ctx, &entries, query, models.DateOf(from), models.DateOf(to)); err != nil {
		return nil, err
	}
	return entries, nil
}
