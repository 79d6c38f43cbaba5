package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OfferType represents what kind of product an offer is
type OfferType string

const (
	OfferTypeCourse   OfferType = "course"    // Recurring course
	OfferTypeTicket10 OfferType = "ticket_10" // Prepaid multi-session card
	OfferTypeWorkshop OfferType = "workshop"
	OfferTypeSeminar  OfferType = "seminar"
)

// OfferTypeLabels maps offer types to their German display labels
var OfferTypeLabels = map[OfferType]string{
	OfferTypeCourse:   "Kurs",
	OfferTypeTicket10: "10er-Karte",
	OfferTypeWorkshop: "Workshop",
	OfferTypeSeminar:  "Seminar",
}

// CourseFormat represents how a course is held
type CourseFormat string

const (
	FormatInPerson CourseFormat = "praesenz"
	FormatOnline   CourseFormat = "online"
	FormatHybrid   CourseFormat = "hybrid"
)

// FormatLabels maps course formats to display labels
var FormatLabels = map[CourseFormat]string{
	FormatInPerson: "Präsenz",
	FormatOnline:   "Online",
	FormatHybrid:   "Hybrid",
}

// ZPPCertification is a prevention program certification (§ 20 SGB V)
type ZPPCertification struct {
	ID            uuid.UUID    `json:"id" db:"id"`
	ZPPID         string       `json:"zpp_id" db:"zpp_id"` // e.g. KU-BE-ZCURFS
	Name          string       `json:"name" db:"name"`
	OfficialTitle string       `json:"official_title" db:"official_title"`
	Format        CourseFormat `json:"format" db:"format"`
	ValidFrom     time.Time    `json:"valid_from" db:"valid_from"`
	ValidUntil    time.Time    `json:"valid_until" db:"valid_until"`
	IsActive      bool         `json:"is_active" db:"is_active"`
	Notes         string       `json:"notes" db:"notes"`
}

// IsValidOn checks activity and the inclusive validity window
func (z *ZPPCertification) IsValidOn(date time.Time) bool {
	if !z.IsActive {
		return false
	}
	return !date.Before(z.ValidFrom) && !date.After(z.ValidUntil)
}

// DaysUntilExpiry returns the remaining days, 0 once expired
func (z *ZPPCertification) DaysUntilExpiry(date time.Time) int {
	if date.After(z.ValidUntil) {
		return 0
	}
	return int(z.ValidUntil.Sub(date).Hours() / 24)
}

// Offer is a priced product: course, 10-session card, workshop or seminar
type Offer struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	OfferType OfferType     `json:"offer_type" db:"offer_type"`
	Title     string        `json:"title" db:"title"`
	Format    *CourseFormat `json:"format,omitempty" db:"format"`

	// Course details
	CourseUnits    *int `json:"course_units,omitempty" db:"course_units"`
	CourseDuration *int `json:"course_duration,omitempty" db:"course_duration"` // minutes per unit

	// 10er-Karte details
	TicketSessions       int `json:"ticket_sessions" db:"ticket_sessions"`
	TicketValidityMonths int `json:"ticket_validity_months" db:"ticket_validity_months"`

	// Pricing
	Amount      decimal.Decimal `json:"amount" db:"amount"` // net
	TaxRate     decimal.Decimal `json:"tax_rate" db:"tax_rate"`
	IsTaxExempt bool            `json:"is_tax_exempt" db:"is_tax_exempt"` // Kleinunternehmerregelung (§19 UStG)

	ZPPCertificationID *uuid.UUID        `json:"zpp_certification_id,omitempty" db:"zpp_certification_id"`
	ZPPCertification   *ZPPCertification `json:"zpp_certification,omitempty" db:"-"`

	Notes     string    `json:"notes" db:"notes"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewOffer returns an offer with the defaults of a new product
func NewOffer(offerType OfferType, title string, amount decimal.Decimal) *Offer {
	return &Offer{
		ID:                   uuid.New(),
		OfferType:            offerType,
		Title:                title,
		TicketSessions:       10,
		TicketValidityMonths: 6,
		Amount:               amount,
		TaxRate:              decimal.Zero,
		IsTaxExempt:          true,
		IsActive:             true,
		CreatedAt:            time.Now(),
		UpdatedAt:            time.Now(),
	}
}

// TaxAmount returns the VAT of the offer price
func (o *Offer) TaxAmount() decimal.Decimal {
	return ComputeTax(&o.Amount, o.TaxRate, o.IsTaxExempt)
}

// TotalAmount returns the gross price
func (o *Offer) TotalAmount() decimal.Decimal {
	return ComputeTotal(&o.Amount, o.TaxRate, o.IsTaxExempt)
}

// IsTicket10 reports whether this is a prepaid multi-session card
func (o *Offer) IsTicket10() bool {
	return o.OfferType == OfferTypeTicket10
}

// PricePerSession splits a card's total over its sessions
func (o *Offer) PricePerSession() decimal.Decimal {
	if o.IsTicket10() && o.TicketSessions > 0 {
		return RoundMoney(o.TotalAmount().Div(decimal.NewFromInt(int64(o.TicketSessions))))
	}
	return o.TotalAmount()
}

// ZPPPreventionID returns the certification id or ""
func (o *Offer) ZPPPreventionID() string {
	if o.ZPPCertification == nil {
		return ""
	}
	return o.ZPPCertification.ZPPID
}

// Description renders the line shown on invoices
func (o *Offer) Description() string {
	switch o.OfferType {
	case OfferTypeTicket10:
		return "für Gruppensportkurs (z. B. Pilates / Mama-Workout)"
	case OfferTypeCourse:
		var parts []string
		if o.CourseUnits != nil {
			parts = append(parts, fmt.Sprintf("%d Einheiten", *o.CourseUnits))
		}
		if o.CourseDuration != nil {
			parts = append(parts, fmt.Sprintf("à %d Minuten", *o.CourseDuration))
		}
		if o.Format != nil {
			parts = append(parts, fmt.Sprintf("(%s)", FormatLabels[*o.Format]))
		}
		return strings.Join(parts, " ")
	}
	return OfferTypeLabels[o.OfferType]
}
