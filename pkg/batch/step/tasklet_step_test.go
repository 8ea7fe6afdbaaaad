package step

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weatheretl/pkg/batch/job/core"
)

type stubTasklet struct {
	status core.ExitStatus
	err    error
	closed bool
}

func (t *stubTasklet) Execute(ctx context.Context, se *core.StepExecution) (core.ExitStatus, error) {
	se.ExecutionContext.Put("aggregated", 3)
	return t.status, t.err
}

func (t *stubTasklet) Close(ctx context.Context) error {
	t.closed = true
	return nil
}

type recordingStepListener struct {
	before, after []core.JobStatus
}

func (l *recordingStepListener) BeforeStep(ctx context.Context, se *core.StepExecution) {
	l.before = append(l.before, se.Status)
}

func (l *recordingStepListener) AfterStep(ctx context.Context, se *core.StepExecution) {
	l.after = append(l.after, se.Status)
}

func TestTaskletStep_Completed(t *testing.T) {
	repo := newFakeRepo()
	tasklet := &stubTasklet{status: core.ExitStatusCompleted}
	listener := &recordingStepListener{}
	promotion := &ExecutionContextPromotion{
		Keys:         []string{"aggregated"},
		JobLevelKeys: map[string]string{"aggregated": "weather.aggregated"},
	}
	s := NewTaskletStep("aggregate", tasklet, repo, []core.StepExecutionListener{listener}, promotion)

	je, se := newExecution("aggregate")
	require.NoError(t, s.Execute(context.Background(), je, se))

	assert.Equal(t, core.BatchStatusCompleted, se.Status)
	assert.True(t, tasklet.closed)
	assert.Equal(t, []core.JobStatus{core.BatchStatusStarted}, listener.before)
	assert.Equal(t, []core.JobStatus{core.BatchStatusCompleted}, listener.after)
	v, ok := je.ExecutionContext.GetInt("weather.aggregated")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	assert.GreaterOrEqual(t, repo.stepUpdates, 2)
}

func TestTaskletStep_Failed(t *testing.T) {
	repo := newFakeRepo()
	tasklet := &stubTasklet{err: errors.New("db down")}
	s := NewTaskletStep("aggregate", tasklet, repo, nil, nil)

	je, se := newExecution("aggregate")
	err := s.Execute(context.Background(), je, se)

	require.Error(t, err)
	assert.ErrorContains(t, err, "db down")
	assert.Equal(t, core.BatchStatusFailed, se.Status)
	assert.Equal(t, core.ExitStatusFailed, se.ExitStatus)
	assert.True(t, tasklet.closed)
	assert.Len(t, je.Failures, 1)
}

func TestTaskletStep_NonCompletedExitStatus(t *testing.T) {
	s := NewTaskletStep("aggregate", &stubTasklet{status: core.ExitStatusStopped}, newFakeRepo(), nil, nil)

	je, se := newExecution("aggregate")
	require.Error(t, s.Execute(context.Background(), je, se))
	assert.Equal(t, core.BatchStatusFailed, se.Status)
}
