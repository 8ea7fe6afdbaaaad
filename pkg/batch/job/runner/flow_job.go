package runner

import (
	"context"
	"errors"

	"weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/repository"
	"weatheretl/pkg/batch/util/exception"
	"weatheretl/pkg/batch/util/logger"
)

// FlowJob は FlowDefinition に従ってステップを順に実行する core.Job の実装です。
// ステップの ExitStatus から遷移ルールを引き、次のステップまたはジョブの終了を決定します。
type FlowJob struct {
	name          string
	flow          *core.FlowDefinition
	jobRepository repository.JobRepository
	jobListeners  []core.JobExecutionListener
}

var _ core.Job = (*FlowJob)(nil)

// NewFlowJob は新しい FlowJob のインスタンスを作成します。
func NewFlowJob(
	name string,
	flow *core.FlowDefinition,
	jobRepository repository.JobRepository,
	jobListeners []core.JobExecutionListener,
) *FlowJob {
	return &FlowJob{
		name:          name,
		flow:          flow,
		jobRepository: jobRepository,
		jobListeners:  jobListeners,
	}
}

func (j *FlowJob) JobName() string {
	return j.name
}

func (j *FlowJob) GetFlow() *core.FlowDefinition {
	return j.flow
}

// ValidateParameters はジョブパラメータを検証します。このジョブは必須パラメータを持ちません。
func (j *FlowJob) ValidateParameters(params core.JobParameters) error {
	logger.Debugf("ジョブ '%s': JobParameters のバリデーションを実行するよ。Parameters: %+v", j.name, params.Params)
	return nil
}

// Run はフローを開始要素から実行します。
// ステップの失敗は遷移ルールに従って処理され、エラーとしては返しません。
// 戻り値のエラーは StepExecution の保存失敗など、フローを続行できない場合に限られます。
func (j *FlowJob) Run(ctx context.Context, jobExecution *core.JobExecution, jobParameters core.JobParameters) error {
	logger.Infof("ジョブ '%s' (Execution ID: %s) を始めるよ。", j.name, jobExecution.ID)

	for _, l := range j.jobListeners {
		l.BeforeJob(ctx, jobExecution)
	}
	defer func() {
		for _, l := range j.jobListeners {
			l.AfterJob(ctx, jobExecution)
		}
		logger.Infof("ジョブ '%s' (Execution ID: %s) が終了したよ。最終ステータス: %s, 終了ステータス: %s",
			j.name, jobExecution.ID, jobExecution.Status, jobExecution.ExitStatus)
	}()

	stepFailed := false
	currentElementID := j.flow.StartElement
	for {
		if err := ctx.Err(); err != nil {
			logger.Warnf("Context がキャンセルされたため、ジョブ '%s' の実行を中断するよ: %v", j.name, err)
			jobExecution.AddFailureException(err)
			jobExecution.MarkAsStopped()
			return err
		}

		element, ok := j.flow.Elements[currentElementID]
		if !ok {
			err := exception.NewBatchErrorf(j.name, "フロー要素 '%s' が見つからないよ", currentElementID)
			jobExecution.MarkAsFailed(err)
			return err
		}
		step, ok := element.(core.Step)
		if !ok {
			err := exception.NewBatchErrorf(j.name, "フロー要素 '%s' はステップではありません", currentElementID)
			jobExecution.MarkAsFailed(err)
			return err
		}

		jobExecution.CurrentStepName = step.StepName()
		stepExecution := core.NewStepExecution(step.StepName(), jobExecution)
		if err := j.jobRepository.SaveStepExecution(ctx, stepExecution); err != nil {
			jobExecution.MarkAsFailed(err)
			return exception.NewBatchError(j.name, "StepExecution の保存エラー", err, false, false)
		}

		if err := step.Execute(ctx, jobExecution, stepExecution); err != nil {
			stepFailed = true
			logger.Warnf("ジョブ '%s': ステップ '%s' が失敗したよ: %v", j.name, step.StepName(), err)
			if errors.Is(err, context.Canceled) {
				jobExecution.MarkAsStopped()
				return err
			}
		}
		if err := j.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
			logger.Warnf("ジョブ '%s': JobExecution の途中更新に失敗しました: %v", j.name, err)
		}

		exitStatus := stepExecution.ExitStatus
		rule, found := j.flow.GetTransitionRule(currentElementID, exitStatus)
		if !found {
			logger.Debugf("ジョブ '%s': ステップ '%s' (ExitStatus: %s) に一致する遷移ルールがないため、フローを終了するよ。", j.name, currentElementID, exitStatus)
			j.finish(jobExecution, stepFailed)
			return nil
		}

		t := rule.Transition
		switch {
		case t.End:
			j.finish(jobExecution, stepFailed)
			return nil
		case t.Fail:
			jobExecution.MarkAsFailed(nil)
			return nil
		case t.Stop:
			jobExecution.MarkAsStopped()
			return nil
		case t.To != "":
			logger.Debugf("ジョブ '%s': '%s' (ExitStatus: %s) から '%s' へ遷移するよ。", j.name, currentElementID, exitStatus, t.To)
			currentElementID = t.To
		default:
			err := exception.NewBatchErrorf(j.name, "ステップ '%s' の遷移ルール (on: '%s') に遷移先がありません", currentElementID, t.On)
			jobExecution.MarkAsFailed(err)
			return err
		}
	}
}

// finish は実行したステップのいずれかが失敗していれば FAILED、そうでなければ COMPLETED でジョブを終えます。
func (j *FlowJob) finish(jobExecution *core.JobExecution, stepFailed bool) {
	if stepFailed {
		jobExecution.MarkAsFailed(nil)
		return
	}
	jobExecution.MarkAsCompleted()
	logger.Infof("ジョブ '%s' のフローが正常に完了したよ。", j.name)
}
