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

// BirthdayService sends birthday greetings
type BirthdayService struct {
	customers CustomerStore
	mailer    Mailer
	settings  Settings
	clock     clock
}

// NewBirthdayService creates a new birthday service
func NewBirthdayService(customers CustomerStore, mailer Mailer, settings Settings) *BirthdayService {
	return &BirthdayService{
		customers: customers,
		mailer:    mailer,
		settings:  settings,
		clock:     newClock(settings),
	}
}

// BirthdaysOn returns the active customers with a birthday on date
func (s *BirthdayService) BirthdaysOn(ctx context.Context, date time.Time) ([]*models.Customer, error) {
	customers, err := s.customers.ListCustomersWithBirthday(ctx, date.Month(), date.Day())
	if err != nil {
		return nil, fmt.Errorf("failed to list birthdays: %w", err)
	}
	var out []*models.Customer
	for _, c := range customers {
		if c.IsActive && c.ArchivedAt == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

// SendToday greets every customer whose birthday is today
func (s *BirthdayService) SendToday(ctx context.Context) (SendResult, error) {
	today := s.clock.Today()
	customers, err := s.BirthdaysOn(ctx, today)
	if err != nil {
		return SendResult{}, err
	}

	var result SendResult
	for _, c := range customers {
		if c.Email == "" {
			result.fail(c.FullName(), fmt.Errorf("no email address"))
			continue
		}
		body, err := renderEmail(EmailBirthday, map[string]interface{}{
			"FirstName": c.FirstName,
			"Age":       c.AgeOn(today),
			"Company":   s.settings.CompanyName,
		})
		if err != nil {
			return result, err
		}
		err = s.mailer.Send(ctx, EmailMessage{
			ID:      uuid.New(),
			Kind:    EmailBirthday,
			To:      c.Email,
			ToName:  c.FullName(),
			Subject: fmt.Sprintf("🎉 Alles Gute zum Geburtstag, %s!", c.FirstName),
			Body:    body,
		})
		metrics.RecordEmail(string(EmailBirthday), err)
		if err != nil {
			result.fail(c.FullName(), err)
			continue
		}
		result.Sent++
	}
	log.Printf("birthday emails: %d sent, %d failed", result.Sent, result.Errors)
	return result, nil
}
