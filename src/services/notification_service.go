package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jaegermarcel/bewegungsradius-crm/src/metrics"
	"github.com/jaegermarcel/bewegungsradius-crm/src/models"
)

// NotificationKind names a scheduled course mail
type NotificationKind string

const (
	NotificationCourseStart      NotificationKind = "start"
	NotificationCourseCompletion NotificationKind = "completion"
)

// NotificationJob is a mail to be sent for a course at RunAt
type NotificationJob struct {
	ID       string           `json:"id"`
	Kind     NotificationKind `json:"kind"`
	CourseID uuid.UUID        `json:"course_id"`
	RunAt    time.Time        `json:"run_at"`
}

// JobScheduler runs notification jobs at their time. Scheduling an id that is
// already pending replaces it; cancelling an unknown id is not an error.
type JobScheduler interface {
	Schedule(ctx context.Context, job NotificationJob) error
	Cancel(ctx context.Context, jobID string) error
}

// JobID returns the stable id of a course's notification job
func JobID(courseID uuid.UUID, kind NotificationKind) string {
	return fmt.Sprintf("course-%s-%s-email", courseID, kind)
}

// SendFailure names a recipient whose mail could not be sent
type SendFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// SendResult summarises a mail batch
type SendResult struct {
	Sent    int           `json:"sent"`
	Errors  int           `json:"errors"`
	Failed  []SendFailure `json:"failed,omitempty"`
	Skipped string        `json:"skipped,omitempty"`
}

func (r *SendResult) fail(name string, err error) {
	r.Errors++
	r.Failed = append(r.Failed, SendFailure{Name: name, Error: err.Error()})
}

// NotificationService schedules and sends the course mails
type NotificationService struct {
	stores    Stores
	scheduler JobScheduler
	mailer    Mailer
	settings  Settings
	clock     clock
}

// NewNotificationService creates a new notification service
func NewNotificationService(stores Stores, scheduler JobScheduler, mailer Mailer, settings Settings) *NotificationService {
	return &NotificationService{
		stores:    stores,
		scheduler: scheduler,
		mailer:    mailer,
		settings:  settings,
		clock:     newClock(settings),
	}
}

// StartEmailTime is 08:00 studio time two days before the course starts.
// A time already past becomes now plus the configured delay.
func (s *NotificationService) StartEmailTime(startDate time.Time) time.Time {
	day := models.AddDays(models.DateOf(startDate), -s.settings.StartEmailLeadDays)
	return s.notPast(s.settings.StartEmailTime.On(day, s.clock.loc), "start")
}

// CompletionEmailTime is the course's end time on the end date, 18:00 without one
func (s *NotificationService) CompletionEmailTime(endDate time.Time, endTime *models.ClockTime) time.Time {
	at := s.settings.DefaultCompletionTime
	if endTime != nil {
		at = *endTime
	}
	return s.notPast(at.On(models.DateOf(endDate), s.clock.loc), "completion")
}

func (s *NotificationService) notPast(at time.Time, kind string) time.Time {
	now := s.clock.Now()
	if at.After(now) {
		return at
	}
	next := now.Add(s.settings.PastJobDelay)
	log.Printf("%s email time %s is past, scheduling for %s", kind, at.Format(time.RFC3339), next.Format(time.RFC3339))
	return next
}

// SyncCourseJobs schedules or removes both notification jobs of a course and
// stores their handles on it. The caller persists the course.
func (s *NotificationService) SyncCourseJobs(ctx context.Context, course *models.Course) error {
	if course.StartEmailSent {
		if err := s.cancelJob(ctx, &course.StartEmailJobID, course.ID, NotificationCourseStart); err != nil {
			return err
		}
	} else {
		runAt := s.StartEmailTime(course.StartDate)
		if err := s.scheduleJob(ctx, &course.StartEmailJobID, course.ID, NotificationCourseStart, runAt); err != nil {
			return err
		}
	}

	if course.CompletionEmailSent || course.EndDate == nil {
		return s.cancelJob(ctx, &course.CompletionEmailJobID, course.ID, NotificationCourseCompletion)
	}
	endClock, err := course.EndClock()
	if err != nil {
		return fmt.Errorf("failed to parse course end time: %w", err)
	}
	runAt := s.CompletionEmailTime(*course.EndDate, endClock)
	return s.scheduleJob(ctx, &course.CompletionEmailJobID, course.ID, NotificationCourseCompletion, runAt)
}

// CancelCourseJobs removes both jobs, e.g. before the course is deleted
func (s *NotificationService) CancelCourseJobs(ctx context.Context, course *models.Course) error {
	if err := s.cancelJob(ctx, &course.StartEmailJobID, course.ID, NotificationCourseStart); err != nil {
		return err
	}
	return s.cancelJob(ctx, &course.CompletionEmailJobID, course.ID, NotificationCourseCompletion)
}

func (s *NotificationService) scheduleJob(ctx context.Context, handle **string, courseID uuid.UUID, kind NotificationKind, runAt time.Time) error {
	job := NotificationJob{ID: JobID(courseID, kind), Kind: kind, CourseID: courseID, RunAt: runAt}
	if err := s.scheduler.Schedule(ctx, job); err != nil {
		return fmt.Errorf("failed to schedule %s email: %w", kind, err)
	}
	id := job.ID
	*handle = &id
	return nil
}

func (s *NotificationService) cancelJob(ctx context.Context, handle **string, courseID uuid.UUID, kind NotificationKind) error {
	id := JobID(courseID, kind)
	if *handle != nil {
		id = **handle
	}
	if err := s.scheduler.Cancel(ctx, id); err != nil {
		return fmt.Errorf("failed to cancel %s email: %w", kind, err)
	}
	*handle = nil
	return nil
}

// Run dispatches a fired job to the matching send operation
func (s *NotificationService) Run(ctx context.Context, job NotificationJob) (SendResult, error) {
	switch job.Kind {
	case NotificationCourseStart:
		return s.SendCourseStartEmail(ctx, job.CourseID)
	case NotificationCourseCompletion:
		return s.SendCourseCompletionEmail(ctx, job.CourseID)
	}
	return SendResult{}, fmt.Errorf("unknown notification kind %q", job.Kind)
}

// SendCourseStartEmail mails every participant that the course starts soon
func (s *NotificationService) SendCourseStartEmail(ctx context.Context, courseID uuid.UUID) (SendResult, error) {
	course, err := s.stores.Courses.GetCourse(ctx, courseID)
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to get course: %w", err)
	}
	if course.StartEmailSent {
		return SendResult{Skipped: "already sent"}, nil
	}

	startTime := ""
	if course.StartTime != nil {
		startTime = *course.StartTime
	}
	location := ""
	if course.Location != nil {
		location = course.Location.Name
	}
	subject := "Kurs startet bald: " + course.Title()
	result, err := s.mailParticipants(ctx, course, EmailCourseStart, subject, func(c *models.Customer) interface{} {
		return map[string]interface{}{
			"FirstName": c.FirstName,
			"Title":     course.Title(),
			"StartDate": models.FormatDate(course.StartDate),
			"StartTime": startTime,
			"Location":  location,
			"Company":   s.settings.CompanyName,
		}
	})
	if err != nil || result.Sent == 0 {
		return result, err
	}

	course.MarkStartEmailSent(s.clock.Now())
	course.StartEmailJobID = nil
	if err := s.stores.Courses.UpdateCourse(ctx, course); err != nil {
		return result, fmt.Errorf("failed to update course: %w", err)
	}
	return result, nil
}

// SendCourseCompletionEmail congratulates every participant and ends the course
func (s *NotificationService) SendCourseCompletionEmail(ctx context.Context, courseID uuid.UUID) (SendResult, error) {
	course, err := s.stores.Courses.GetCourse(ctx, courseID)
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to get course: %w", err)
	}
	if course.CompletionEmailSent {
		return SendResult{Skipped: "already sent"}, nil
	}

	subject := "Glückwunsch zum Abschluss: " + course.Title()
	result, err := s.mailParticipants(ctx, course, EmailCourseCompletion, subject, func(c *models.Customer) interface{} {
		return map[string]interface{}{
			"FirstName": c.FirstName,
			"Title":     course.Title(),
			"Company":   s.settings.CompanyName,
		}
	})
	if err != nil || result.Sent == 0 {
		return result, err
	}

	course.MarkCompletionEmailSent(s.clock.Now())
	course.CompletionEmailJobID = nil
	if err := s.stores.Courses.UpdateCourse(ctx, course); err != nil {
		return result, fmt.Errorf("failed to update course: %w", err)
	}
	return result, nil
}

func (s *NotificationService) mailParticipants(
	ctx context.Context,
	course *models.Course,
	kind EmailKind,
	subject string,
	data func(*models.Customer) interface{},
) (SendResult, error) {
	participants := course.AllParticipants()
	if len(participants) == 0 {
		return SendResult{Skipped: "no participants"}, nil
	}

	var result SendResult
	for _, id := range participants {
		customer, err := s.stores.Customers.GetCustomer(ctx, id)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				result.fail(id.String(), err)
				continue
			}
			return result, fmt.Errorf("failed to get customer: %w", err)
		}
		if err := s.send(ctx, customer, kind, subject, data(customer)); err != nil {
			result.fail(customer.FullName(), err)
			continue
		}
		result.Sent++
	}
	log.Printf("%s emails for %s: %d sent, %d failed", kind, course.Title(), result.Sent, result.Errors)
	return result, nil
}

func (s *NotificationService) send(ctx context.Context, customer *models.Customer, kind EmailKind, subject string, data interface{}) error {
	if customer.Email == "" {
		return errors.New("no email address")
	}
	body, err := renderEmail(kind, data)
	if err != nil {
		return err
	}
	err = s.mailer.Send(ctx, EmailMessage{
		ID:      uuid.New(),
		Kind:    kind,
		To:      customer.Email,
		ToName:  customer.FullName(),
		Subject: subject,
		Body:    body,
	})
	metrics.RecordEmail(string(kind), err)
	return err
}

// SendCompletionDiscountCodes mails each participant of a course ending
// today the planned code issued for that course
func (s *NotificationService) SendCompletionDiscountCodes(ctx context.Context) (SendResult, error) {
	today := s.clock.Today()
	courses, err := s.stores.Courses.ListCoursesEndingOn(ctx, today)
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to list courses: %w", err)
	}

	var result SendResult
	for _, course := range courses {
		for _, id := range course.AllParticipants() {
			customer, err := s.stores.Customers.GetCustomer(ctx, id)
			if err != nil {
				result.fail(id.String(), err)
				continue
			}
			codes, err := s.stores.DiscountCodes.FindForCustomerAndCourse(ctx, id, course.ID, models.DiscountStatusPlanned)
			if err != nil {
				return result, fmt.Errorf("failed to look up discount codes: %w", err)
			}
			if len(codes) == 0 {
				continue
			}
			code := codes[0]
			subject := fmt.Sprintf("Dein %s Rabattcode für %s", code.DisplayValue(), s.settings.CompanyName)
			err = s.send(ctx, customer, EmailDiscountCode, subject, map[string]interface{}{
				"FirstName":  customer.FirstName,
				"Title":      course.Title(),
				"Value":      code.DisplayValue(),
				"Code":       code.Code,
				"ValidUntil": models.FormatDate(code.ValidUntil),
				"Company":    s.settings.CompanyName,
			})
			if err != nil {
				result.fail(customer.FullName(), err)
				continue
			}
			code.MarkSent(s.clock.Now())
			if err := s.stores.DiscountCodes.UpdateDiscountCode(ctx, code); err != nil {
				return result, fmt.Errorf("failed to update discount code: %w", err)
			}
			result.Sent++
		}
	}
	if result.Sent > 0 || result.Errors > 0 {
		log.Printf("completion codes: %d sent, %d failed", result.Sent, result.Errors)
	}
	return result, nil
}
