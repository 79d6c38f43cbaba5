package workflows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/testsuite"

	"github.com/jaegermarcel/bewegungsradius-crm/src/services"
)

type fakeRunner struct {
	jobs []services.NotificationJob
}

func (r *fakeRunner) Run(_ context.Context, job services.NotificationJob) (services.SendResult, error) {
	r.jobs = append(r.jobs, job)
	return services.SendResult{Sent: 2}, nil
}

func TestCourseEmailWorkflowWaitsAndSends(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	start := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	env.SetStartTime(start)

	runner := &fakeRunner{}
	env.RegisterActivity(&Activities{Notifications: runner})

	job := services.NotificationJob{
		ID:       services.JobID(uuid.New(), services.NotificationCourseStart),
		Kind:     services.NotificationCourseStart,
		CourseID: uuid.New(),
		RunAt:    start.Add(36 * time.Hour),
	}
	env.ExecuteWorkflow(CourseEmailWorkflow, job)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result services.SendResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, 2, result.Sent)
	require.Len(t, runner.jobs, 1)
	assert.Equal(t, job.ID, runner.jobs[0].ID)
	assert.False(t, env.Now().Before(job.RunAt), "activity ran before the job was due")
}

func TestCourseEmailWorkflowSurfacesActivityError(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	var acts *Activities
	env.RegisterActivity(acts)
	env.OnActivity(acts.SendCourseEmail, mock.Anything, mock.Anything).
		Return(services.SendResult{}, errors.New("smtp down"))

	env.ExecuteWorkflow(CourseEmailWorkflow, services.NotificationJob{ID: "course-x-completion-email"})

	require.True(t, env.IsWorkflowCompleted())
	assert.ErrorContains(t, env.GetWorkflowError(), "smtp down")
}

type call struct {
	op, id string
}

type fakeClient struct {
	calls        []call
	terminateErr error
}

func (c *fakeClient) ExecuteWorkflow(_ context.Context, opts client.StartWorkflowOptions, _ interface{}, _ ...interface{}) (client.WorkflowRun, error) {
	c.calls = append(c.calls, call{"start", opts.ID})
	return nil, nil
}

func (c *fakeClient) TerminateWorkflow(_ context.Context, workflowID, _, _ string, _ ...interface{}) error {
	c.calls = append(c.calls, call{"terminate", workflowID})
	return c.terminateErr
}

func TestSchedulerReplacesPendingRun(t *testing.T) {
	ctx := context.Background()
	job := services.NotificationJob{ID: "course-1-start-email", RunAt: time.Now().Add(time.Hour)}

	c := &fakeClient{terminateErr: serviceerror.NewNotFound("workflow not found")}
	s := NewScheduler(c, "course-emails")

	require.NoError(t, s.Schedule(ctx, job))
	require.NoError(t, s.Cancel(ctx, "course-2-start-email"))
	assert.Equal(t, []call{
		{"terminate", "course-1-start-email"},
		{"start", "course-1-start-email"},
		{"terminate", "course-2-start-email"},
	}, c.calls)

	c.terminateErr = errors.New("connection refused")
	assert.Error(t, s.Schedule(ctx, job))
}
