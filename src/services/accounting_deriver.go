package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jaegermarcel/bewegungsradius-crm/src/metrics"
	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
)

// InvoiceLoader loads an invoice with its source resolved
type InvoiceLoader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
}

// AccountingDeriver keeps accounting entries in line with invoice status.
// Deriving twice for the same state changes nothing.
type AccountingDeriver struct {
	entries  AccountingStore
	invoices InvoiceLoader
	clock    clock
}

// NewAccountingDeriver creates a new accounting deriver
func NewAccountingDeriver(entries AccountingStore, invoices InvoiceLoader, settings Settings) *AccountingDeriver {
	return &AccountingDeriver{
		entries:  entries,
		invoices: invoices,
		clock:    newClock(settings),
	}
}

// Handle derives entries after a status change
func (d *AccountingDeriver) Handle(ctx context.Context, event models.DomainEvent) error {
	changed, ok := event.(models.InvoiceStatusChanged)
	if !ok {
		return nil
	}
	inv, err := d.invoices.Get(ctx, changed.InvoiceID)
	if err != nil {
		return err
	}
	return d.Derive(ctx, inv)
}

// Derive reconciles the entries of one invoice with its current status
func (d *AccountingDeriver) Derive(ctx context.Context, inv *models.Invoice) error {
	switch inv.Status {
	case models.InvoiceStatusDraft, models.InvoiceStatusSent, models.InvoiceStatusOverdue:
		return d.removeEntries(ctx, inv)
	case models.InvoiceStatusPaid:
		return d.bookIncome(ctx, inv)
	case models.InvoiceStatusCancelled:
		return d.bookReversal(ctx, inv)
	}
	return nil
}

func (d *AccountingDeriver) removeEntries(ctx context.Context, inv *models.Invoice) error {
	n, err := d.entries.DeleteEntriesByInvoice(ctx, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to delete accounting entries: %w", err)
	}
	if n > 0 {
		log.Printf("deleted %d accounting entries for invoice %s (status %s)", n, inv.InvoiceNumber, inv.Status)
		metrics.RecordAccountingEntry("deleted", "any")
	}
	return nil
}

func (d *AccountingDeriver) bookIncome(ctx context.Context, inv *models.Invoice) error {
	existing, err := d.entries.ListEntriesByInvoice(ctx, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to list accounting entries: %w", err)
	}
	for _, e := range existing {
		if e.EntryType == models.EntryTypeIncome {
			return nil
		}
	}

	invoiceID := inv.ID
	entry := &models.AccountingEntry{
		ID:          uuid.New(),
		EntryType:   models.EntryTypeIncome,
		Description: fmt.Sprintf("Rechnung %s - %s", inv.InvoiceNumber, inv.Title()),
		Amount:      inv.TotalAmount(),
		Date:        models.DateOf(inv.IssueDate),
		InvoiceID:   &invoiceID,
		Notes:       fmt.Sprintf("Automatisch von Rechnung %s", inv.InvoiceNumber),
		CreatedAt:   d.clock.Now(),
	}
	if err := d.entries.CreateEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to create income entry: %w", err)
	}
	log.Printf("income entry for invoice %s: %s", inv.InvoiceNumber, entry.Amount.StringFixed(2))
	metrics.RecordAccountingEntry("created", string(models.EntryTypeIncome))
	return nil
}

func (d *AccountingDeriver) bookReversal(ctx context.Context, inv *models.Invoice) error {
	existing, err := d.entries.ListEntriesByInvoice(ctx, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to list accounting entries: %w", err)
	}

	var income *models.AccountingEntry
	for _, e := range existing {
		if e.IsReversal() {
			return nil
		}
		if income == nil && e.EntryType == models.EntryTypeIncome {
			income = e
		}
	}
	// never paid, nothing to reverse
	if income == nil {
		return nil
	}

	date := d.clock.Today()
	if inv.CancelledAt != nil {
		date = models.DateOf(inv.CancelledAt.In(d.clock.loc))
	}
	storno := "N/A"
	if inv.CancelledInvoiceNumber != nil && *inv.CancelledInvoiceNumber != "" {
		storno = *inv.CancelledInvoiceNumber
	}

	invoiceID := inv.ID
	entry := &models.AccountingEntry{
		ID:          uuid.New(),
		EntryType:   models.EntryTypeExpense,
		Description: fmt.Sprintf("%s: Rechnung %s - %s", models.CancellationMarker, inv.InvoiceNumber, inv.Title()),
		Amount:      income.Amount,
		Date:        date,
		InvoiceID:   &invoiceID,
		Notes:       fmt.Sprintf("Storno-Nummer: %s - Gegenbuchung zu Einnahme-Eintrag", storno),
		CreatedAt:   d.clock.Now(),
	}
	if err := d.entries.CreateEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to create reversal entry: %w", err)
	}
	log.Printf("reversal entry for invoice %s: %s", inv.InvoiceNumber, entry.Amount.StringFixed(2))
	metrics.RecordAccountingEntry("created", string(models.EntryTypeExpense))
	return nil
}

// Report sums the entries dated within [from, to]
func (d *AccountingDeriver) Report(ctx context.Context, from, to time.Time) (models.AccountingReport, error) {
	from, to = models.DateOf(from), models.DateOf(to)
	entries, err := d.entries.ListEntries(ctx, from, to)
	if err != nil {
		return models.AccountingReport{}, fmt.Errorf("failed to list accounting entries: %w", err)
	}
	return models.BuildAccountingReport(entries, from, to), nil
}
