// Package jobs runs the studio's recurring maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron"

	"github.com/jaegermarcel/bewegungsradius-crm/src/services"
)

// Task is one recurring job
type Task struct {
	Name string
	Spec string // cron spec with seconds field
	Run  func(ctx context.Context) (string, error)
}

// Specs holds the cron expressions of the daily tasks
type Specs struct {
	Birthdays       string
	CompletionCodes string
	Cleanup         string
	Deactivate      string
}

// Daily builds the four daily tasks over the services
func Daily(specs Specs, birthdays *services.BirthdayService, notifications *services.NotificationService,
	discounts *services.DiscountService, courses *services.CourseService) []Task {
	return []Task{
		{
			Name: "birthday-emails",
			Spec: specs.Birthdays,
			Run: func(ctx context.Context) (string, error) {
				res, err := birthdays.SendToday(ctx)
				return summarize(res), err
			},
		},
		{
			Name: "completion-discount-codes",
			Spec: specs.CompletionCodes,
			Run: func(ctx context.Context) (string, error) {
				res, err := notifications.SendCompletionDiscountCodes(ctx)
				return summarize(res), err
			},
		},
		{
			Name: "delete-old-discount-codes",
			Spec: specs.Cleanup,
			Run: func(ctx context.Context) (string, error) {
				n, err := discounts.DeleteOld(ctx)
				return fmt.Sprintf("deleted %d", n), err
			},
		},
		{
			Name: "deactivate-expired-courses",
			Spec: specs.Deactivate,
			Run: func(ctx context.Context) (string, error) {
				n, err := courses.DeactivateExpired(ctx)
				return fmt.Sprintf("deactivated %d", n), err
			},
		},
	}
}

func summarize(r services.SendResult) string {
	if r.Skipped != "" {
		return "skipped: " + r.Skipped
	}
	return fmt.Sprintf("sent %d, errors %d", r.Sent, r.Errors)
}

// Runner owns the cron scheduler
type Runner struct {
	cron    *cron.Cron
	tasks   []Task
	timeout time.Duration

	mu      sync.Mutex
	running map[string]bool
}

// NewRunner validates every cron expression; tasks fire in loc
func NewRunner(loc *time.Location, tasks []Task) (*Runner, error) {
	r := &Runner{
		cron:    cron.NewWithLocation(loc),
		tasks:   tasks,
		timeout: 10 * time.Minute,
		running: make(map[string]bool),
	}
	for _, t := range tasks {
		if _, err := cron.Parse(t.Spec); err != nil {
			return nil, fmt.Errorf("invalid cron spec %q for %s: %w", t.Spec, t.Name, err)
		}
	}
	return r, nil
}

// Run starts the scheduler and blocks until ctx is done
func (r *Runner) Run(ctx context.Context) error {
	for _, t := range r.tasks {
		if err := r.cron.AddFunc(t.Spec, func() { r.Execute(ctx, t) }); err != nil {
			return fmt.Errorf("failed to register %s: %w", t.Name, err)
		}
		log.Printf("registered job %s (%s)", t.Name, t.Spec)
	}
	r.cron.Start()
	<-ctx.Done()
	r.cron.Stop()
	return nil
}

// Execute runs a task once unless the previous run is still active
func (r *Runner) Execute(ctx context.Context, t Task) bool {
	r.mu.Lock()
	if r.running[t.Name] {
		r.mu.Unlock()
		log.Printf("job %s still running, skipping", t.Name)
		return false
	}
	r.running[t.Name] = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.running, t.Name)
		r.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := time.Now()
	summary, err := t.Run(ctx)
	if err != nil {
		log.Printf("job %s failed after %s: %v", t.Name, time.Since(started).Round(time.Millisecond), err)
		return true
	}
	log.Printf("job %s done in %s: %s", t.Name, time.Since(started).Round(time.Millisecond), summary)
	return true
}
