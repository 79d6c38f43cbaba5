// Package workflows runs the course notification jobs on Temporal.
package workflows

import (
	"context"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/jaegermarcel/bewegungsradius-crm/src/services"
)

// JobRunner sends the mail a notification job stands for
type JobRunner interface {
	Run(ctx context.Context, job services.NotificationJob) (services.SendResult, error)
}

// Activities are the side effects of the course email workflow
type Activities struct {
	Notifications JobRunner
}

// SendCourseEmail runs the start or completion mail of a course
func (a *Activities) SendCourseEmail(ctx context.Context, job services.NotificationJob) (services.SendResult, error) {
	return a.Notifications.Run(ctx, job)
}

// CourseEmailWorkflow waits until the job is due, then sends the mail.
// Rescheduling terminates the run and starts a new one under the same id.
func CourseEmailWorkflow(ctx workflow.Context, job services.NotificationJob) (services.SendResult, error) {
	logger := workflow.GetLogger(ctx)

	if wait := job.RunAt.Sub(workflow.Now(ctx)); wait > 0 {
		logger.Info("waiting for course email", "job", job.ID, "run_at", job.RunAt)
		if err := workflow.Sleep(ctx, wait); err != nil {
			return services.SendResult{}, err
		}
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    10 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Minute,
			MaximumAttempts:    5,
		},
	})

	var acts *Activities
	var result services.SendResult
	if err := workflow.ExecuteActivity(ctx, acts.SendCourseEmail, job).Get(ctx, &result); err != nil {
		return services.SendResult{}, err
	}

	logger.Info("course email done", "job", job.ID, "sent", result.Sent, "errors", result.Errors, "skipped", result.Skipped)
	return result, nil
}
