package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
)

// CourseService manages courses, their participants and their schedule
type CourseService struct {
	stores        Stores
	schedule      *ScheduleCalculator
	notifications *NotificationService
	discounts     *DiscountService
	invoices      *InvoiceService
	publisher     EventPublisher
	clock         clock
}

// NewCourseService creates a new course service; publisher may be nil
func NewCourseService(
	stores Stores,
	schedule *ScheduleCalculator,
	notifications *NotificationService,
	discounts *DiscountService,
	invoices *InvoiceService,
	publisher EventPublisher,
	settings Settings,
) *CourseService {
	return &CourseService{
		stores:        stores,
		schedule:      schedule,
		notifications: notifications,
		discounts:     discounts,
		invoices:      invoices,
		publisher:     publisher,
		clock:         newClock(settings),
	}
}

// Get loads a course with offer, location and participants
func (s *CourseService) Get(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	course, err := s.stores.Courses.GetCourse(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	return course, nil
}

// Save creates or updates a course and keeps its notification jobs in sync
func (s *CourseService) Save(ctx context.Context, course *models.Course) error {
	if err := course.Validate(); err != nil {
		return models.NewValidationError(err, "")
	}
	course.RecomputeWeekday()

	if course.Offer == nil {
		offer, err := s.stores.Offers.GetOffer(ctx, course.OfferID)
		if err != nil {
			return fmt.Errorf("failed to get offer: %w", err)
		}
		course.Offer = offer
	}

	now := s.clock.Now()
	course.UpdatedAt = now
	_, err := s.stores.Courses.GetCourse(ctx, course.ID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		if course.ID == uuid.Nil {
			course.ID = uuid.New()
		}
		course.CreatedAt = now
		if err := s.stores.Courses.CreateCourse(ctx, course); err != nil {
			return fmt.Errorf("failed to create course: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to get course: %w", err)
	default:
		if err := s.stores.Courses.UpdateCourse(ctx, course); err != nil {
			return fmt.Errorf("failed to update course: %w", err)
		}
	}

	if err := s.notifications.SyncCourseJobs(ctx, course); err != nil {
		return err
	}
	if err := s.stores.Courses.UpdateCourse(ctx, course); err != nil {
		return fmt.Errorf("failed to store job handles: %w", err)
	}
	return nil
}

// Delete cancels the course's jobs and removes it
func (s *CourseService) Delete(ctx context.Context, id uuid.UUID) error {
	course, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.notifications.CancelCourseJobs(ctx, course); err != nil {
		return err
	}
	if err := s.stores.Courses.DeleteCourse(ctx, id); err != nil {
		return fmt.Errorf("failed to delete course: %w", err)
	}
	return nil
}

// Enrollment is what adding a participant produced
type Enrollment struct {
	DiscountCode *models.DiscountCode `json:"discount_code,omitempty"`
	Invoice      *models.Invoice      `json:"invoice,omitempty"`
}

// AddParticipant enrolls a customer, issues the participation code and bills the course
func (s *CourseService) AddParticipant(ctx context.Context, courseID, customerID uuid.UUID, mode models.ParticipantMode) (Enrollment, error) {
	course, err := s.Get(ctx, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	customer, err := s.stores.Customers.GetCustomer(ctx, customerID)
	if err != nil {
		return Enrollment{}, fmt.Errorf("failed to get customer: %w", err)
	}

	if mode == models.ParticipantInPerson && course.IsFullInPerson() {
		return Enrollment{}, models.ErrCourseFull
	}
	if !course.AddParticipant(mode, customerID) {
		return Enrollment{}, nil
	}
	course.UpdatedAt = s.clock.Now()
	if err := s.stores.Courses.UpdateCourse(ctx, course); err != nil {
		return Enrollment{}, fmt.Errorf("failed to update course: %w", err)
	}

	var result Enrollment
	result.DiscountCode, err = s.discounts.IssueForParticipant(ctx, course, customer)
	if err != nil {
		return result, err
	}
	result.Invoice, err = s.invoices.CreateForParticipant(ctx, course, customerID, mode)
	if err != nil {
		return result, err
	}

	s.publish(ctx, models.ParticipantAdded{CourseID: courseID, CustomerID: customerID, Mode: mode, At: s.clock.Now()})
	return result, nil
}

// RemoveParticipant takes a customer out of the course and withdraws its codes
func (s *CourseService) RemoveParticipant(ctx context.Context, courseID, customerID uuid.UUID) error {
	course, err := s.Get(ctx, courseID)
	if err != nil {
		return err
	}
	modes := course.RemoveParticipant(customerID)
	if len(modes) == 0 {
		return nil
	}
	course.UpdatedAt = s.clock.Now()
	if err := s.stores.Courses.UpdateCourse(ctx, course); err != nil {
		return fmt.Errorf("failed to update course: %w", err)
	}
	if _, err := s.discounts.CancelForRemovedParticipant(ctx, courseID, customerID); err != nil {
		return err
	}
	s.publish(ctx, models.ParticipantRemoved{CourseID: courseID, CustomerID: customerID, Modes: modes, At: s.clock.Now()})
	return nil
}

// Schedule expands the course into session dates with holiday warnings
func (s *CourseService) Schedule(ctx context.Context, id uuid.UUID) (CourseSchedule, error) {
	course, err := s.Get(ctx, id)
	if err != nil {
		return CourseSchedule{}, err
	}
	return s.schedule.ForCourse(course), nil
}

// DeactivateExpired switches off courses whose end date has passed
func (s *CourseService) DeactivateExpired(ctx context.Context) (int, error) {
	n, err := s.stores.Courses.DeactivateExpiredCourses(ctx, s.clock.Today())
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate courses: %w", err)
	}
	if n > 0 {
		log.Printf("deactivated %d expired courses", n)
	}
	return n, nil
}

// publish is best effort; the course change is already stored
func (s *CourseService) publish(ctx context.Context, event models.DomainEvent) {
	if err := publish(ctx, s.publisher, event); err != nil {
		log.Printf("event not published: %v", err)
	}
}
