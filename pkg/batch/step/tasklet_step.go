package step

import (
	"context"
	"fmt"

	"weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/repository"
	"weatheretl/pkg/batch/util/exception"
	"weatheretl/pkg/batch/util/logger"
)

// TaskletStep は Tasklet インターフェースをラップし、core.Step インターフェースを実装します。
// JSR352のTaskletステップに相当します。
type TaskletStep struct {
	stepLifecycle
	tasklet core.Tasklet
}

var _ core.Step = (*TaskletStep)(nil)

// NewTaskletStep は新しい TaskletStep のインスタンスを作成します。
func NewTaskletStep(
	name string,
	tasklet core.Tasklet,
	repo repository.JobRepository,
	stepListeners []core.StepExecutionListener,
	promotion *ExecutionContextPromotion,
) *TaskletStep {
	return &TaskletStep{
		stepLifecycle: stepLifecycle{
			name:          name,
			jobRepository: repo,
			listeners:     stepListeners,
			promotion:     promotion,
		},
		tasklet: tasklet,
	}
}

func (s *TaskletStep) StepName() string {
	return s.name
}

func (s *TaskletStep) ID() string {
	return s.name
}

// Execute は Tasklet を実行し、その ExitStatus をステップに反映します。
func (s *TaskletStep) Execute(ctx context.Context, jobExecution *core.JobExecution, stepExecution *core.StepExecution) error {
	logger.Infof("Taskletステップ '%s' (Execution ID: %s) を始めるよ。", s.name, stepExecution.ID)

	if err := s.start(ctx, stepExecution); err != nil {
		return s.finish(ctx, jobExecution, stepExecution, err)
	}

	exitStatus, err := s.tasklet.Execute(ctx, stepExecution)
	if cerr := s.tasklet.Close(ctx); cerr != nil {
		logger.Errorf("Taskletステップ '%s': Tasklet のクローズに失敗したよ: %v", s.name, cerr)
		if err == nil {
			err = cerr
		}
	}
	if err != nil {
		return s.finish(ctx, jobExecution, stepExecution, exception.NewBatchError(s.name, "Tasklet 実行エラー", err, false, false))
	}

	if exitStatus != core.ExitStatusCompleted {
		return s.finish(ctx, jobExecution, stepExecution, fmt.Errorf("tasklet returned non-completed exit status: %s", exitStatus))
	}
	stepExecution.ExitStatus = exitStatus
	logger.Infof("Taskletステップ '%s' が正常に完了したよ。ExitStatus: %s", s.name, exitStatus)
	return s.finish(ctx, jobExecution, stepExecution, nil)
}
