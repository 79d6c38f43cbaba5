package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jaegermarcel/bewegungsradius-crm/src/metrics"
	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
)

// courseKeywords map course titles to code prefixes, first match wins
var courseKeywords = []struct {
	keyword string
	prefix  string
}{
	{"rückbildung", "RB"},
	{"rueckbildung", "RB"},
	{"pilates", "P"},
	{"body-workout", "BW"},
}

const fallbackPrefix = "XX"

// maxCodeAttempts bounds the collision suffix search
const maxCodeAttempts = 1000

// DiscountService issues, validates and redeems discount codes
type DiscountService struct {
	codes    DiscountCodeStore
	settings Settings
	clock    clock
}

// NewDiscountService creates a new discount service
func NewDiscountService(codes DiscountCodeStore, settings Settings) *DiscountService {
	return &DiscountService{
		codes:    codes,
		settings: settings,
		clock:    newClock(settings),
	}
}

// Validate looks a code up and checks it against today
func (s *DiscountService) Validate(ctx context.Context, code string) (*models.DiscountCode, models.DiscountValidation, error) {
	dc, err := s.codes.GetDiscountCodeByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, models.DiscountValidation{}, fmt.Errorf("failed to get discount code: %w", err)
	}
	result := dc.Validate(s.clock.Today())
	metrics.RecordDiscountValidation(string(result.Reason))
	return dc, result, nil
}

// GenerateCode builds PREFIX + MMYY + initials and appends 1, 2, ... on collision
func (s *DiscountService) GenerateCode(ctx context.Context, course *models.Course, customer *models.Customer) (string, error) {
	prefix := fallbackPrefix
	title := strings.ToLower(course.Title())
	for _, kw := range courseKeywords {
		if strings.Contains(title, kw.keyword) {
			prefix = kw.prefix
			break
		}
	}

	date := s.clock.Today()
	if course.EndDate != nil {
		date = *course.EndDate
	}
	base := prefix + date.Format("0106") + customer.Initials()

	code := base
	for i := 1; i <= maxCodeAttempts; i++ {
		exists, err := s.codes.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check discount code: %w", err)
		}
		if !exists {
			return code, nil
		}
		code = fmt.Sprintf("%s%d", base, i)
	}
	return "", fmt.Errorf("no free discount code for %s", base)
}

// Create stores a manually issued code
func (s *DiscountService) Create(ctx context.Context, code *models.DiscountCode) error {
	if code.ID == uuid.Nil {
		code.ID = uuid.New()
	}
	code.Code = strings.ToUpper(strings.TrimSpace(code.Code))
	if code.Status == "" {
		code.Status = models.DiscountStatusPlanned
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = s.clock.Now()
	}
	if code.DiscountValue.IsNegative() {
		return models.NewValidationError(models.ErrNegativeAmount, "discount value")
	}
	if code.DiscountType == models.DiscountPercentage && code.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return models.NewValidationError(models.ErrInvalidDiscountValue, code.DiscountValue.String()+"%")
	}
	if err := s.codes.CreateDiscountCode(ctx, code); err != nil {
		return fmt.Errorf("failed to create discount code: %w", err)
	}
	return nil
}

// IssueForParticipant creates the participation code for a new course member.
// Nothing is created if the customer already holds a code for the course.
func (s *DiscountService) IssueForParticipant(ctx context.Context, course *models.Course, customer *models.Customer) (*models.DiscountCode, error) {
	existing, err := s.codes.FindForCustomerAndCourse(ctx, customer.ID, course.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up discount codes: %w", err)
	}
	if len(existing) > 0 {
		return nil, nil
	}

	code, err := s.GenerateCode(ctx, course, customer)
	if err != nil {
		return nil, err
	}

	validFrom := s.clock.Today()
	if course.EndDate != nil {
		validFrom = models.DateOf(*course.EndDate)
	}
	courseID := course.ID
	dc := &models.DiscountCode{
		ID:            uuid.New(),
		CustomerID:    customer.ID,
		CourseID:      &courseID,
		Code:          code,
		DiscountType:  models.DiscountPercentage,
		DiscountValue: s.settings.ParticipantDiscountPercent,
		Reason:        models.ReasonCourseCompleted,
		Description:   fmt.Sprintf("Rabatt für Kursteilnahme: %s (Kurs %s)", course.Title(), course.ID),
		ValidFrom:     validFrom,
		ValidUntil:    models.AddDays(validFrom, s.settings.DiscountValidityDays),
		Status:        models.DiscountStatusPlanned,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.codes.CreateDiscountCode(ctx, dc); err != nil {
		return nil, fmt.Errorf("failed to create discount code: %w", err)
	}
	log.Printf("discount code %s created for %s", dc.Code, customer.FullName())
	return dc, nil
}

// CancelForRemovedParticipant withdraws unused codes tied to the course
func (s *DiscountService) CancelForRemovedParticipant(ctx context.Context, courseID, customerID uuid.UUID) (int, error) {
	codes, err := s.codes.FindForCustomerAndCourse(ctx, customerID, courseID,
		models.DiscountStatusPlanned, models.DiscountStatusSent)
	if err != nil {
		return 0, fmt.Errorf("failed to look up discount codes: %w", err)
	}
	now := s.clock.Now()
	for _, dc := range codes {
		dc.Cancel(now, fmt.Sprintf("Kunde aus Kurs %s entfernt", courseID))
		if err := s.codes.UpdateDiscountCode(ctx, dc); err != nil {
			return 0, fmt.Errorf("failed to cancel discount code: %w", err)
		}
		log.Printf("discount code %s cancelled", dc.Code)
	}
	return len(codes), nil
}

// Release reverts the redemption of a code, e.g. after an invoice was cancelled
func (s *DiscountService) Release(ctx context.Context, id uuid.UUID) error {
	dc, err := s.codes.GetDiscountCode(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get discount code: %w", err)
	}
	if dc.Status != models.DiscountStatusUsed {
		return nil
	}
	dc.Release()
	if err := s.codes.UpdateDiscountCode(ctx, dc); err != nil {
		return fmt.Errorf("failed to release discount code: %w", err)
	}
	log.Printf("discount code %s released", dc.Code)
	return nil
}

// DeleteOld removes codes created before the retention window
func (s *DiscountService) DeleteOld(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().AddDate(0, -s.settings.DiscountRetentionMonths, 0)
	n, err := s.codes.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old discount codes: %w", err)
	}
	if n > 0 {
		log.Printf("deleted %d discount codes created before %s", n, cutoff.Format(time.DateOnly))
	}
	return n, nil
}
