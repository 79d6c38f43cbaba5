package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountingEntryType represents the side of a booking
type AccountingEntryType string

const (
	EntryTypeIncome  AccountingEntryType = "income"  // Einnahme
	EntryTypeExpense AccountingEntryType = "expense" // Ausgabe, includes cancellation reversals
)

// CancellationMarker identifies reversal entries in their description
const CancellationMarker = "Stornierung"

// AccountingEntry is a booked income or expense, optionally derived from an invoice
// Amounts are stored positive; the sign follows from EntryType
type AccountingEntry struct {
	ID          uuid.UUID           `json:"id" db:"id"`
	EntryType   AccountingEntryType `json:"entry_type" db:"entry_type"`
	Description string              `json:"description" db:"description"`
	Amount      decimal.Decimal     `json:"amount" db:"amount"`
	Date        time.Time           `json:"date" db:"date"`
	InvoiceID   *uuid.UUID          `json:"invoice_id,omitempty" db:"invoice_id"`
	Notes       string              `json:"notes" db:"notes"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
}

// IsReversal reports whether the entry books a cancellation
func (e *AccountingEntry) IsReversal() bool {
	return e.EntryType == EntryTypeExpense && strings.Contains(e.Description, CancellationMarker)
}

// GetSignedAmount returns the amount with the sign used for balances
// Positive = income, negative = expense
func (e *AccountingEntry) GetSignedAmount() decimal.Decimal {
	if e.EntryType == EntryTypeIncome {
		return e.Amount.Abs()
	}
	return e.Amount.Abs().Neg()
}

// AccountingReport sums entries over a period
type AccountingReport struct {
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	IncomeTotal  decimal.Decimal `json:"income_total"`
	ExpenseTotal decimal.Decimal `json:"expense_total"`
	Balance      decimal.Decimal `json:"balance"`
	TotalEntries int             `json:"total_entries"`
}

// BuildAccountingReport folds entries dated within [from, to]
func BuildAccountingReport(entries []*AccountingEntry, from, to time.Time) AccountingReport {
	report := AccountingReport{
		From:         from,
		To:           to,
		IncomeTotal:  decimal.Zero,
		ExpenseTotal: decimal.Zero,
		Balance:      decimal.Zero,
	}
	for _, e := range entries {
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		report.TotalEntries++
		if e.EntryType == EntryTypeIncome {
			report.IncomeTotal = report.IncomeTotal.Add(e.Amount)
		} else {
			report.ExpenseTotal = report.ExpenseTotal.Add(e.Amount)
		}
		report.Balance = report.Balance.Add(e.GetSignedAmount())
	}
	return report
}
