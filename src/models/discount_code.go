package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountType represents how a code reduces an amount
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// DiscountStatus represents the lifecycle state of a code
type DiscountStatus string

const (
	DiscountStatusPlanned   DiscountStatus = "planned"   // Created, not yet mailed
	DiscountStatusSent      DiscountStatus = "sent"      // Mailed to the customer
	DiscountStatusUsed      DiscountStatus = "used"      // Redeemed on an invoice
	DiscountStatusExpired   DiscountStatus = "expired"   // Expired administratively
	DiscountStatusCancelled DiscountStatus = "cancelled" // Withdrawn, e.g. participant removed
)

// DiscountReason records why a code was issued
type DiscountReason string

const (
	ReasonBirthday        DiscountReason = "birthday"
	ReasonCourseCompleted DiscountReason = "course_completed"
	ReasonReferral        DiscountReason = "referral"
	ReasonLoyalty         DiscountReason = "loyalty"
	ReasonOther           DiscountReason = "other"
)

// DiscountReasonLabels maps reasons to display labels
var DiscountReasonLabels = map[DiscountReason]string{
	ReasonBirthday:        "Geburtstag",
	ReasonCourseCompleted: "Kurs abgeschlossen",
	ReasonReferral:        "Empfehlung",
	ReasonLoyalty:         "Treueprämie",
	ReasonOther:           "Sonstiges",
}

// DiscountCode is a redeemable reduction owned by one customer
type DiscountCode struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	CustomerID uuid.UUID  `json:"customer_id" db:"customer_id"`
	CourseID   *uuid.UUID `json:"course_id,omitempty" db:"course_id"`

	Code          string          `json:"code" db:"code"`
	DiscountType  DiscountType    `json:"discount_type" db:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value" db:"discount_value"` // percent or euros
	Reason        DiscountReason  `json:"reason" db:"reason"`
	Description   string          `json:"description" db:"description"`

	// Inclusive validity window
	ValidFrom  time.Time `json:"valid_from" db:"valid_from"`
	ValidUntil time.Time `json:"valid_until" db:"valid_until"`

	Status          DiscountStatus `json:"status" db:"status"`
	UsedAt          *time.Time     `json:"used_at,omitempty" db:"used_at"`
	EmailSentAt     *time.Time     `json:"email_sent_at,omitempty" db:"email_sent_at"`
	CancelledAt     *time.Time     `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancelledReason string         `json:"cancelled_reason" db:"cancelled_reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DiscountReasonCode is the machine readable validation outcome
type DiscountReasonCode string

const (
	DiscountOK          DiscountReasonCode = "ok"
	DiscountAlreadyUsed DiscountReasonCode = "already_used"
	DiscountCancelled   DiscountReasonCode = "cancelled"
	DiscountExpired     DiscountReasonCode = "expired"
	DiscountNotYetValid DiscountReasonCode = "not_yet_valid"
)

// DiscountValidation is the result of checking a code; invalid codes are not errors
type DiscountValidation struct {
	Valid   bool               `json:"valid"`
	Reason  DiscountReasonCode `json:"reason"`
	Message string             `json:"message"`
}

// Validate checks status first, then the date window
func (d *DiscountCode) Validate(today time.Time) DiscountValidation {
	switch d.Status {
	case DiscountStatusUsed:
		return DiscountValidation{false, DiscountAlreadyUsed, "Code wurde bereits verwendet"}
	case DiscountStatusCancelled:
		return DiscountValidation{false, DiscountCancelled, "Code wurde storniert"}
	case DiscountStatusExpired:
		return DiscountValidation{false, DiscountExpired, "Code ist abgelaufen"}
	}
	if today.Before(d.ValidFrom) {
		return DiscountValidation{false, DiscountNotYetValid, "Code ist noch nicht gültig"}
	}
	if today.After(d.ValidUntil) {
		return DiscountValidation{false, DiscountExpired, "Code ist abgelaufen"}
	}
	return DiscountValidation{true, DiscountOK, "Code ist gültig"}
}

// IsUsable reports whether the code may be redeemed today
func (d *DiscountCode) IsUsable(today time.Time) bool {
	return d.Validate(today).Valid
}

// CalculateDiscount returns the reduction for base; fixed codes never exceed base
func (d *DiscountCode) CalculateDiscount(base decimal.Decimal) decimal.Decimal {
	if d.DiscountType == DiscountPercentage {
		return RoundMoney(base.Mul(d.DiscountValue.Div(hundred)))
	}
	return decimal.Min(d.DiscountValue, base)
}

// Use marks the code as redeemed; used_at is stamped only once
func (d *DiscountCode) Use(now time.Time) {
	if d.Status == DiscountStatusUsed && d.UsedAt != nil {
		return
	}
	d.Status = DiscountStatusUsed
	d.UsedAt = &now
}

// Release reverts a redemption
func (d *DiscountCode) Release() {
	if d.Status == DiscountStatusUsed {
		d.Status = DiscountStatusSent
	}
	d.UsedAt = nil
}

// Cancel withdraws the code
func (d *DiscountCode) Cancel(now time.Time, reason string) {
	d.Status = DiscountStatusCancelled
	d.CancelledAt = &now
	d.CancelledReason = reason
}

// MarkSent records that the code was mailed
func (d *DiscountCode) MarkSent(now time.Time) {
	d.Status = DiscountStatusSent
	d.EmailSentAt = &now
}

// DisplayValue renders "10%" or "5.00€"
func (d *DiscountCode) DisplayValue() string {
	if d.DiscountType == DiscountPercentage {
		return d.DiscountValue.String() + "%"
	}
	return d.DiscountValue.StringFixed(2) + "€"
}

// FullInfo renders code, value and reason
func (d *DiscountCode) FullInfo() string {
	return fmt.Sprintf("%s - %s (%s)", d.Code, d.DisplayValue(), DiscountReasonLabels[d.Reason])
}
