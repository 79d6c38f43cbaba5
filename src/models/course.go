package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ParticipantMode distinguishes in-person from online participation
type ParticipantMode string

const (
	ParticipantInPerson ParticipantMode = "in_person"
	ParticipantOnline   ParticipantMode = "online"
)

// Label returns the German label used on invoices
func (m ParticipantMode) Label() string {
	if m == ParticipantOnline {
		return "Online"
	}
	return "Präsenz"
}

// Location is a venue with limited in-person capacity
type Location struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	Street          string    `json:"street" db:"street"`
	HouseNumber     string    `json:"house_number" db:"house_number"`
	PostalCode      string    `json:"postal_code" db:"postal_code"`
	City            string    `json:"city" db:"city"`
	MaxParticipants int       `json:"max_participants" db:"max_participants"`
}

// Course is a scheduled run of an offer
type Course struct {
	ID      uuid.UUID `json:"id" db:"id"`
	OfferID uuid.UUID `json:"offer_id" db:"offer_id"`
	Offer   *Offer    `json:"offer,omitempty" db:"-"`

	LocationID *uuid.UUID `json:"location_id,omitempty" db:"location_id"`
	Location   *Location  `json:"location,omitempty" db:"-"`

	// Schedule
	StartDate time.Time  `json:"start_date" db:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty" db:"end_date"`
	StartTime *string    `json:"start_time,omitempty" db:"start_time"` // HH:MM
	EndTime   *string    `json:"end_time,omitempty" db:"end_time"`
	IsWeekly  bool       `json:"is_weekly" db:"is_weekly"`
	Weekday   int        `json:"weekday" db:"weekday"` // 0=Monday, derived from StartDate

	// Participants are persisted in course_participants
	ParticipantsInPerson []uuid.UUID `json:"participants_inperson" db:"-"`
	ParticipantsOnline   []uuid.UUID `json:"participants_online" db:"-"`

	IsActive bool `json:"is_active" db:"is_active"`

	// Email tracking
	StartEmailSent        bool       `json:"start_email_sent" db:"start_email_sent"`
	StartEmailSentAt      *time.Time `json:"start_email_sent_at,omitempty" db:"start_email_sent_at"`
	CompletionEmailSent   bool       `json:"completion_email_sent" db:"completion_email_sent"`
	CompletionEmailSentAt *time.Time `json:"completion_email_sent_at,omitempty" db:"completion_email_sent_at"`

	// Handles of the pending notification jobs
	StartEmailJobID      *string `json:"start_email_job_id,omitempty" db:"start_email_job_id"`
	CompletionEmailJobID *string `json:"completion_email_job_id,omitempty" db:"completion_email_job_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Validate checks the date range
func (c *Course) Validate() error {
	if c.EndDate != nil && c.EndDate.Before(c.StartDate) {
		return ErrInvalidCourseDates
	}
	return nil
}

// RecomputeWeekday derives the weekday from the start date
func (c *Course) RecomputeWeekday() {
	c.Weekday = WeekdayIndex(c.StartDate)
}

// Title comes from the offer
func (c *Course) Title() string {
	if c.Offer == nil {
		return ""
	}
	return c.Offer.Title
}

// CourseType returns the offer type as a string
func (c *Course) CourseType() string {
	if c.Offer == nil {
		return ""
	}
	return string(c.Offer.OfferType)
}

// Price is the offer's gross total
func (c *Course) Price() decimal.Decimal {
	if c.Offer == nil {
		return decimal.Zero
	}
	return c.Offer.TotalAmount()
}

// IsZPPCertified reports whether the offer carries a prevention certification
func (c *Course) IsZPPCertified() bool {
	return c.Offer != nil && c.Offer.ZPPPreventionID() != ""
}

// ZPPPreventionID returns the offer's certification id
func (c *Course) ZPPPreventionID() string {
	if c.Offer == nil {
		return ""
	}
	return c.Offer.ZPPPreventionID()
}

// StartClock parses StartTime
func (c *Course) StartClock() (*ClockTime, error) {
	return parseOptionalClock(c.StartTime)
}

// EndClock parses EndTime
func (c *Course) EndClock() (*ClockTime, error) {
	return parseOptionalClock(c.EndTime)
}

func parseOptionalClock(s *string) (*ClockTime, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	ct, err := ParseClockTime(*s)
	if err != nil {
		return nil, err
	}
	return &ct, nil
}

// IsExpired is true once the end date has passed
func (c *Course) IsExpired(today time.Time) bool {
	if c.EndDate == nil {
		return false
	}
	return c.EndDate.Before(today)
}

// IsOngoing is true while today lies within start and end date
func (c *Course) IsOngoing(today time.Time) bool {
	if c.EndDate == nil {
		return false
	}
	return !today.Before(c.StartDate) && !today.After(*c.EndDate)
}

// IsUpcoming is true before the start date
func (c *Course) IsUpcoming(today time.Time) bool {
	return c.StartDate.After(today)
}

// ParticipantModes returns the lists a customer is in
func (c *Course) ParticipantModes(customerID uuid.UUID) []ParticipantMode {
	var modes []ParticipantMode
	if containsID(c.ParticipantsInPerson, customerID) {
		modes = append(modes, ParticipantInPerson)
	}
	if containsID(c.ParticipantsOnline, customerID) {
		modes = append(modes, ParticipantOnline)
	}
	return modes
}

// AddParticipant adds a customer to a list, returning false if already present
func (c *Course) AddParticipant(mode ParticipantMode, customerID uuid.UUID) bool {
	list := &c.ParticipantsInPerson
	if mode == ParticipantOnline {
		list = &c.ParticipantsOnline
	}
	if containsID(*list, customerID) {
		return false
	}
	*list = append(*list, customerID)
	return true
}

// RemoveParticipant removes a customer from both lists and returns the lists it was in
func (c *Course) RemoveParticipant(customerID uuid.UUID) []ParticipantMode {
	modes := c.ParticipantModes(customerID)
	c.ParticipantsInPerson = removeID(c.ParticipantsInPerson, customerID)
	c.ParticipantsOnline = removeID(c.ParticipantsOnline, customerID)
	return modes
}

// AllParticipants returns the distinct customers of both lists
func (c *Course) AllParticipants() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.ParticipantsInPerson)+len(c.ParticipantsOnline))
	ids = append(ids, c.ParticipantsInPerson...)
	for _, id := range c.ParticipantsOnline {
		if !containsID(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// TotalParticipants counts both lists
func (c *Course) TotalParticipants() int {
	return len(c.ParticipantsInPerson) + len(c.ParticipantsOnline)
}

// MaxParticipantsInPerson is the location capacity, 0 without location
func (c *Course) MaxParticipantsInPerson() int {
	if c.Location == nil {
		return 0
	}
	return c.Location.MaxParticipants
}

// IsFullInPerson reports whether the location is at capacity
func (c *Course) IsFullInPerson() bool {
	if c.Location == nil {
		return false
	}
	return len(c.ParticipantsInPerson) >= c.Location.MaxParticipants
}

// AvailableSpotsInPerson returns the free in-person places
func (c *Course) AvailableSpotsInPerson() int {
	if c.Location == nil {
		return 0
	}
	return c.Location.MaxParticipants - len(c.ParticipantsInPerson)
}

// MarkStartEmailSent records the start mail
func (c *Course) MarkStartEmailSent(now time.Time) {
	c.StartEmailSent = true
	c.StartEmailSentAt = &now
}

// MarkCompletionEmailSent records the completion mail and ends the course
func (c *Course) MarkCompletionEmailSent(now time.Time) {
	c.CompletionEmailSent = true
	c.CompletionEmailSentAt = &now
	c.IsActive = false
}

// EmailStatusDisplay summarises the mail tracking for listings
func (c *Course) EmailStatusDisplay() string {
	start := "Start: ✗"
	if c.StartEmailSent && c.StartEmailSentAt != nil {
		start = fmt.Sprintf("Start: ✓ (%s)", FormatDate(*c.StartEmailSentAt))
	}
	completion := "Abschluss: ✗"
	if c.CompletionEmailSent && c.CompletionEmailSentAt != nil {
		completion = fmt.Sprintf("Abschluss: ✓ (%s)", FormatDate(*c.CompletionEmailSentAt))
	}
	return start + " | " + completion
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

// CourseBuilder helps construct courses
type CourseBuilder struct {
	course *Course
}

// NewCourseBuilder creates a weekly, active course
func NewCourseBuilder() *CourseBuilder {
	return &CourseBuilder{
		course: &Course{
			ID:        uuid.New(),
			IsWeekly:  true,
			IsActive:  true,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
	}
}

// WithOffer links the offer
func (b *CourseBuilder) WithOffer(offer *Offer) *CourseBuilder {
	b.course.Offer = offer
	b.course.OfferID = offer.ID
	return b
}

// WithDates sets the schedule bounds
func (b *CourseBuilder) WithDates(start time.Time, end *time.Time) *CourseBuilder {
	b.course.StartDate = start
	b.course.EndDate = end
	return b
}

// WithTimes sets start and end time of day
func (b *CourseBuilder) WithTimes(start, end string) *CourseBuilder {
	b.course.StartTime = &start
	b.course.EndTime = &end
	return b
}

// WithLocation sets the venue
func (b *CourseBuilder) WithLocation(location *Location) *CourseBuilder {
	b.course.Location = location
	b.course.LocationID = &location.ID
	return b
}

// Weekly toggles recurrence
func (b *CourseBuilder) Weekly(weekly bool) *CourseBuilder {
	b.course.IsWeekly = weekly
	return b
}

// Build creates the course
func (b *CourseBuilder) Build() *Course {
	b.course.RecomputeWeekday()
	return b.course
}
