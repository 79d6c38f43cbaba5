package models

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds to cents, half away from zero (kaufmännisches Runden)
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ComputeTax returns the VAT for a net amount
// A nil amount or a tax exempt invoice yields zero
func ComputeTax(amount *decimal.Decimal, taxRate decimal.Decimal, isTaxExempt bool) decimal.Decimal {
	if amount == nil || isTaxExempt {
		return decimal.Zero
	}
	return RoundMoney(amount.Mul(taxRate).Div(hundred))
}

// ComputeTotal returns net amount plus VAT
func ComputeTotal(amount *decimal.Decimal, taxRate decimal.Decimal, isTaxExempt bool) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return RoundMoney(amount.Add(ComputeTax(amount, taxRate, isTaxExempt)))
}
