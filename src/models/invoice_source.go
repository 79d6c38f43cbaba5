package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// UntitledInvoice is used when no source yields a title
const UntitledInvoice = "Rechnung ohne Titel"

// InvoiceSource is whatever priced the invoice: a course or a standalone offer
type InvoiceSource interface {
	// Price is the gross amount the source charges
	Price() decimal.Decimal
	Title() string
	// Units is the number of sessions billed, nil if the source does not know
	Units() *int
	// Duration is minutes per session
	Duration() *int
	// CustomIDType feeds the KU-XX-XXXXXX id; "" means no custom id
	CustomIDType() string
	Certification() *ZPPCertification

	isInvoiceSource()
}

// CourseSource bills a course run
type CourseSource struct {
	Course *Course
}

// OfferSource bills an offer directly (10er-Karte, workshop, seminar)
type OfferSource struct {
	Offer *Offer
}

// ResolveInvoiceSource picks the course first and falls back to the offer
func ResolveInvoiceSource(course *Course, offer *Offer) (InvoiceSource, error) {
	if course != nil {
		return CourseSource{Course: course}, nil
	}
	if offer != nil {
		return OfferSource{Offer: offer}, nil
	}
	return nil, ErrInvoiceSourceMissing
}

// InvoiceTitle returns the source title or the generic placeholder
func InvoiceTitle(src InvoiceSource) string {
	if src == nil {
		return UntitledInvoice
	}
	if title := strings.TrimSpace(src.Title()); title != "" {
		return title
	}
	return UntitledInvoice
}

func (s CourseSource) Price() decimal.Decimal { return s.Course.Price() }

func (s CourseSource) Title() string { return s.Course.Title() }

func (s CourseSource) Units() *int {
	if s.Course.Offer == nil {
		return nil
	}
	return s.Course.Offer.CourseUnits
}

func (s CourseSource) Duration() *int {
	if s.Course.Offer == nil {
		return nil
	}
	return s.Course.Offer.CourseDuration
}

func (s CourseSource) CustomIDType() string { return s.Course.CourseType() }

func (s CourseSource) Certification() *ZPPCertification {
	if s.Course.Offer == nil {
		return nil
	}
	return s.Course.Offer.ZPPCertification
}

func (CourseSource) isInvoiceSource() {}

func (s OfferSource) Price() decimal.Decimal { return s.Offer.TotalAmount() }

func (s OfferSource) Title() string { return s.Offer.Title }

func (s OfferSource) Units() *int {
	if s.Offer.IsTicket10() {
		sessions := s.Offer.TicketSessions
		return &sessions
	}
	return s.Offer.CourseUnits
}

func (s OfferSource) Duration() *int { return s.Offer.CourseDuration }

func (s OfferSource) CustomIDType() string {
	if s.Offer.IsTicket10() {
		return "ticket"
	}
	return ""
}

func (s OfferSource) Certification() *ZPPCertification { return s.Offer.ZPPCertification }

func (OfferSource) isInvoiceSource() {}
