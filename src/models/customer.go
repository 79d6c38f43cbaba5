package models

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Customer represents a studio customer
type Customer struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	FirstName   string     `json:"first_name" db:"first_name"`
	LastName    string     `json:"last_name" db:"last_name"`
	Email       string     `json:"email" db:"email"`
	Mobile      string     `json:"mobile" db:"mobile"`
	Birthday    *time.Time `json:"birthday,omitempty" db:"birthday"`
	Street      string     `json:"street" db:"street"`
	HouseNumber string     `json:"house_number" db:"house_number"`
	PostalCode  string     `json:"postal_code" db:"postal_code"`
	City        string     `json:"city" db:"city"`
	Country     string     `json:"country" db:"country"`
	Notes       string     `json:"notes" db:"notes"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty" db:"archived_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Validate checks the fields needed for codes and mails
func (c *Customer) Validate() error {
	if strings.TrimSpace(c.FirstName) == "" || strings.TrimSpace(c.LastName) == "" {
		return ErrInvalidCustomer
	}
	return nil
}

// FullName returns "First Last"
func (c *Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Initials returns the upper-cased first letters of first and last name
func (c *Customer) Initials() string {
	return firstLetter(c.FirstName) + firstLetter(c.LastName)
}

func firstLetter(s string) string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(s))
	if r == utf8.RuneError {
		return ""
	}
	return string(unicode.ToUpper(r))
}

// FullAddress joins the non-empty address parts
func (c *Customer) FullAddress() string {
	street := strings.TrimSpace(c.Street + " " + c.HouseNumber)
	city := strings.TrimSpace(c.PostalCode + " " + c.City)
	var parts []string
	for _, p := range []string{street, city, c.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// HasBirthdayOn reports whether month and day of the birthday match date
func (c *Customer) HasBirthdayOn(date time.Time) bool {
	if c.Birthday == nil {
		return false
	}
	return c.Birthday.Month() == date.Month() && c.Birthday.Day() == date.Day()
}

// AgeOn returns the age in full years, or -1 without a birthday
func (c *Customer) AgeOn(date time.Time) int {
	if c.Birthday == nil {
		return -1
	}
	born := *c.Birthday
	age := date.Year() - born.Year()
	if date.Month() < born.Month() || (date.Month() == born.Month() && date.Day() < born.Day()) {
		age--
	}
	return age
}
