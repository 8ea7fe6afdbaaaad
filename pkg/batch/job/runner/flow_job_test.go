package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"weatheretl/pkg/batch/database"
	"weatheretl/pkg/batch/job/core"
)

func TestMain(m *testing.M) {
	// gosnowflake 経由の keyring が init 時に dbus のワーカーを起動するため除外する
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("github.com/godbus/dbus.(*Conn).inWorker"))
}

type memoryRepo struct {
	saved   []*core.StepExecution
	updates int
}

func (r *memoryRepo) SaveJobExecution(ctx context.Context, je *core.JobExecution) error { return nil }
func (r *memoryRepo) UpdateJobExecution(ctx context.Context, je *core.JobExecution) error {
	r.updates++
	return nil
}
func (r *memoryRepo) FindJobExecutionByID(ctx context.Context, id string) (*core.JobExecution, error) {
	return nil, nil
}
func (r *memoryRepo) SaveStepExecution(ctx context.Context, se *core.StepExecution) error {
	r.saved = append(r.saved, se)
	return nil
}
func (r *memoryRepo) UpdateStepExecution(ctx context.Context, se *core.StepExecution) error {
	return nil
}
func (r *memoryRepo) FindStepExecutionsByJobExecutionID(ctx context.Context, id string) ([]*core.StepExecution, error) {
	return nil, nil
}
func (r *memoryRepo) GetDBConnection() database.DBConnection { return nil }
func (r *memoryRepo) Close() error                           { return nil }

type stubStep struct {
	name  string
	fail  bool
	calls int
}

func (s *stubStep) ID() string       { return s.name }
func (s *stubStep) StepName() string { return s.name }
func (s *stubStep) Execute(ctx context.Context, je *core.JobExecution, se *core.StepExecution) error {
	s.calls++
	if s.fail {
		err := errors.New(s.name + " failed")
		se.MarkAsFailed(err)
		je.AddFailureException(err)
		return err
	}
	se.MarkAsCompleted()
	return nil
}

type recordingJobListener struct {
	before, after int
}

func (l *recordingJobListener) BeforeJob(ctx context.Context, je *core.JobExecution) { l.before++ }
func (l *recordingJobListener) AfterJob(ctx context.Context, je *core.JobExecution)  { l.after++ }

func newETLFlow(t *testing.T, ingest, aggregate *stubStep) *core.FlowDefinition {
	t.Helper()
	flow := core.NewFlowDefinition(ingest.name)
	require.NoError(t, flow.AddElement(ingest.name, ingest))
	require.NoError(t, flow.AddElement(aggregate.name, aggregate))
	flow.AddTransitionRule(ingest.name, core.Transition{On: "*", To: aggregate.name})
	flow.AddTransitionRule(aggregate.name, core.Transition{On: "COMPLETED", End: true})
	flow.AddTransitionRule(aggregate.name, core.Transition{On: "FAILED", Fail: true})
	return flow
}

func TestFlowJob_Run(t *testing.T) {
	tests := []struct {
		name            string
		ingestFails     bool
		aggregateFails  bool
		wantStatus      core.JobStatus
		wantFailures    int
		wantAggregation int
	}{
		{"all steps complete", false, false, core.BatchStatusCompleted, 0, 1},
		{"aggregation runs after failed ingestion", true, false, core.BatchStatusFailed, 1, 1},
		{"aggregation failure fails the job", false, true, core.BatchStatusFailed, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingest := &stubStep{name: "ingestRawWeatherStep", fail: tt.ingestFails}
			aggregate := &stubStep{name: "aggregateDailyWeatherStep", fail: tt.aggregateFails}
			repo := &memoryRepo{}
			listener := &recordingJobListener{}
			job := NewFlowJob("weatherETLJob", newETLFlow(t, ingest, aggregate), repo, []core.JobExecutionListener{listener})

			je := core.NewJobExecution(job.JobName(), core.NewJobParameters())
			je.MarkAsStarted()
			require.NoError(t, job.Run(context.Background(), je, je.Parameters))

			assert.Equal(t, tt.wantStatus, je.Status)
			assert.Len(t, je.Failures, tt.wantFailures)
			assert.Equal(t, 1, ingest.calls)
			assert.Equal(t, tt.wantAggregation, aggregate.calls)
			assert.Len(t, repo.saved, 2)
			assert.Equal(t, 1, listener.before)
			assert.Equal(t, 1, listener.after)
			assert.Equal(t, "aggregateDailyWeatherStep", je.CurrentStepName)
		})
	}
}

func TestFlowJob_UnknownTransitionTarget(t *testing.T) {
	ingest := &stubStep{name: "ingest"}
	flow := core.NewFlowDefinition("ingest")
	require.NoError(t, flow.AddElement("ingest", ingest))
	flow.AddTransitionRule("ingest", core.Transition{On: "*", To: "missing"})

	job := NewFlowJob("job", flow, &memoryRepo{}, nil)
	je := core.NewJobExecution("job", core.NewJobParameters())
	assert.Error(t, job.Run(context.Background(), je, je.Parameters))
	assert.Equal(t, core.BatchStatusFailed, je.Status)
}

func TestFlowJob_NoMatchingRuleEndsFlow(t *testing.T) {
	ingest := &stubStep{name: "ingest"}
	flow := core.NewFlowDefinition("ingest")
	require.NoError(t, flow.AddElement("ingest", ingest))

	job := NewFlowJob("job", flow, &memoryRepo{}, nil)
	je := core.NewJobExecution("job", core.NewJobParameters())
	require.NoError(t, job.Run(context.Background(), je, je.Parameters))
	assert.Equal(t, core.BatchStatusCompleted, je.Status)
}

func TestFlowJob_CancelledContext(t *testing.T) {
	ingest := &stubStep{name: "ingest"}
	flow := core.NewFlowDefinition("ingest")
	require.NoError(t, flow.AddElement("ingest", ingest))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := NewFlowJob("job", flow, &memoryRepo{}, nil)
	je := core.NewJobExecution("job", core.NewJobParameters())
	assert.ErrorIs(t, job.Run(ctx, je, je.Parameters), context.Canceled)
	assert.Equal(t, core.BatchStatusStopped, je.Status)
	assert.Equal(t, 0, ingest.calls)
}
