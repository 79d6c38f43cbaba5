package workflows

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/jaegermarcel/bewegungsradius-crm/src/services"
)

// WorkflowClient is the subset of client.Client the scheduler needs
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	TerminateWorkflow(ctx context.Context, workflowID string, runID string, reason string, details ...interface{}) error
}

// Scheduler implements services.JobScheduler with one workflow per job id
type Scheduler struct {
	client    WorkflowClient
	taskQueue string
}

var _ services.JobScheduler = (*Scheduler)(nil)

func NewScheduler(c WorkflowClient, taskQueue string) *Scheduler {
	return &Scheduler{client: c, taskQueue: taskQueue}
}

// Schedule replaces any pending run of job.ID
func (s *Scheduler) Schedule(ctx context.Context, job services.NotificationJob) error {
	if err := s.terminate(ctx, job.ID, "rescheduled"); err != nil {
		return err
	}

	opts := client.StartWorkflowOptions{
		ID:        job.ID,
		TaskQueue: s.taskQueue,
	}
	opts.WorkflowExecutionErrorWhenAlreadyStarted = true
	run, err := s.client.ExecuteWorkflow(ctx, opts, CourseEmailWorkflow, job)
	if err != nil {
		return fmt.Errorf("failed to start workflow %s: %w", job.ID, err)
	}
	if run != nil {
		log.Printf("scheduled %s for %s (run %s)", job.ID, job.RunAt.Format("2006-01-02 15:04"), run.GetRunID())
	}
	return nil
}

// Cancel terminates the pending run; unknown ids are ignored
func (s *Scheduler) Cancel(ctx context.Context, jobID string) error {
	return s.terminate(ctx, jobID, "cancelled")
}

func (s *Scheduler) terminate(ctx context.Context, jobID, reason string) error {
	err := s.client.TerminateWorkflow(ctx, jobID, "", reason)
	if err == nil {
		return nil
	}
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("failed to terminate workflow %s: %w", jobID, err)
}

// NewWorker registers the course email workflow and its activities on taskQueue
func NewWorker(c client.Client, taskQueue string, acts *Activities) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(CourseEmailWorkflow)
	w.RegisterActivity(acts)
	return w
}
