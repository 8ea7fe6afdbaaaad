package joblauncher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weatheretl/pkg/batch/database"
	"weatheretl/pkg/batch/job/core"
)

type recordingRepo struct {
	saved    []*core.JobExecution
	statuses []core.JobStatus
}

func (r *recordingRepo) SaveJobExecution(ctx context.Context, je *core.JobExecution) error {
	r.saved = append(r.saved, je)
	return nil
}
func (r *recordingRepo) UpdateJobExecution(ctx context.Context, je *core.JobExecution) error {
	r.statuses = append(r.statuses, je.Status)
	return nil
}
func (r *recordingRepo) FindJobExecutionByID(ctx context.Context, id string) (*core.JobExecution, error) {
	return nil, nil
}
func (r *recordingRepo) SaveStepExecution(ctx context.Context, se *core.StepExecution) error {
	return nil
}
func (r *recordingRepo) UpdateStepExecution(ctx context.Context, se *core.StepExecution) error {
	return nil
}
func (r *recordingRepo) FindStepExecutionsByJobExecutionID(ctx context.Context, id string) ([]*core.StepExecution, error) {
	return nil, nil
}
func (r *recordingRepo) GetDBConnection() database.DBConnection { return nil }
func (r *recordingRepo) Close() error                           { return nil }

type fakeJob struct {
	runErr   error
	complete bool
}

func (j *fakeJob) Run(ctx context.Context, je *core.JobExecution, params core.JobParameters) error {
	if j.complete {
		je.MarkAsCompleted()
	}
	return j.runErr
}
func (j *fakeJob) JobName() string                               { return "weatherETLJob" }
func (j *fakeJob) GetFlow() *core.FlowDefinition                 { return nil }
func (j *fakeJob) ValidateParameters(params core.JobParameters) error { return nil }

type providerFunc func(string) (core.Job, error)

func (f providerFunc) CreateJob(name string) (core.Job, error) { return f(name) }

func TestSimpleJobLauncher_Launch(t *testing.T) {
	repo := &recordingRepo{}
	launcher := NewSimpleJobLauncher(repo, providerFunc(func(string) (core.Job, error) {
		return &fakeJob{complete: true}, nil
	}))

	je, err := launcher.Launch(context.Background(), "weatherETLJob", core.NewJobParameters())
	require.NoError(t, err)
	assert.Equal(t, core.BatchStatusCompleted, je.Status)
	require.Len(t, repo.saved, 1)
	assert.Equal(t, []core.JobStatus{core.BatchStatusStarted, core.BatchStatusCompleted}, repo.statuses)
}

func TestSimpleJobLauncher_RunErrorMarksFailed(t *testing.T) {
	repo := &recordingRepo{}
	launcher := NewSimpleJobLauncher(repo, providerFunc(func(string) (core.Job, error) {
		return &fakeJob{runErr: errors.New("step save failed")}, nil
	}))

	je, err := launcher.Launch(context.Background(), "weatherETLJob", core.NewJobParameters())
	require.Error(t, err)
	assert.Equal(t, core.BatchStatusFailed, je.Status)
	assert.Equal(t, core.BatchStatusFailed, repo.statuses[len(repo.statuses)-1])
}

func TestSimpleJobLauncher_UnknownJob(t *testing.T) {
	launcher := NewSimpleJobLauncher(&recordingRepo{}, providerFunc(func(name string) (core.Job, error) {
		return nil, errors.New("no such job: " + name)
	}))

	je, err := launcher.Launch(context.Background(), "missing", core.NewJobParameters())
	assert.Error(t, err)
	assert.Nil(t, je)
}
