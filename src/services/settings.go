package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
)

// Settings holds the studio's business parameters
type Settings struct {
	CompanyName  string
	CompanyEmail string
	Location     *time.Location

	// letterhead of invoice and storno PDFs
	CompanyAddress   string
	CompanyTaxNumber string
	CompanyBankName  string
	CompanyIBAN      string
	CompanyBIC       string

	InvoiceDueDays   int
	DefaultTaxRate   decimal.Decimal
	DefaultTaxExempt bool

	ParticipantDiscountPercent decimal.Decimal
	DiscountValidityDays       int
	DiscountRetentionMonths    int

	StartEmailLeadDays    int
	StartEmailTime        models.ClockTime
	DefaultCompletionTime models.ClockTime
	PastJobDelay          time.Duration

	// Now overrides the wall clock, nil means time.Now
	Now func() time.Time
}

// DefaultSettings returns the studio defaults
func DefaultSettings() Settings {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		loc = time.UTC
	}
	return Settings{
		CompanyName:                "bewegungsradius",
		CompanyEmail:               "info@bewegungsradius.de",
		Location:                   loc,
		InvoiceDueDays:             models.DefaultDueDays,
		DefaultTaxRate:             decimal.Zero,
		DefaultTaxExempt:           true,
		ParticipantDiscountPercent: decimal.NewFromInt(10),
		DiscountValidityDays:       365,
		DiscountRetentionMonths:    13,
		StartEmailLeadDays:         2,
		StartEmailTime:             models.ClockTime{Hour: 8},
		DefaultCompletionTime:      models.ClockTime{Hour: 18},
		PastJobDelay:               10 * time.Minute,
	}
}

// clock gives services a replaceable notion of now
type clock struct {
	now func() time.Time
	loc *time.Location
}

func newClock(settings Settings) clock {
	c := clock{now: settings.Now, loc: settings.Location}
	if c.now == nil {
		c.now = time.Now
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	return c
}

func (c clock) Now() time.Time {
	return c.now().In(c.loc)
}

func (c clock) Today() time.Time {
	return models.DateOf(c.Now())
}
