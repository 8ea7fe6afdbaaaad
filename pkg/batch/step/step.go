package step

import (
	"context"

	"weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/repository"
	"weatheretl/pkg/batch/util/logger"
)

// ExecutionContextPromotion は StepExecutionContext から JobExecutionContext へ引き継ぐキーを定義します。
type ExecutionContextPromotion struct {
	Keys         []string
	JobLevelKeys map[string]string
}

// promote は指定されたキーを JobExecutionContext にコピーします。
func (p *ExecutionContextPromotion) promote(stepName string, jobExecution *core.JobExecution, stepExecution *core.StepExecution) {
	if p == nil || jobExecution == nil {
		return
	}
	for _, key := range p.Keys {
		val, ok := stepExecution.ExecutionContext.Get(key)
		if !ok {
			logger.Warnf("ステップ '%s': StepExecutionContext にプロモート対象のキー '%s' が見つかりませんでした。", stepName, key)
			continue
		}
		jobLevelKey := key
		if mapped, found := p.JobLevelKeys[key]; found {
			jobLevelKey = mapped
		}
		jobExecution.ExecutionContext.Put(jobLevelKey, val)
		logger.Debugf("ステップ '%s': キー '%s' を JobExecutionContext の '%s' にプロモートしました。", stepName, key, jobLevelKey)
	}
}

// stepLifecycle は ChunkStep と TaskletStep が共有する開始・終了処理です。
type stepLifecycle struct {
	name          string
	jobRepository repository.JobRepository
	listeners     []core.StepExecutionListener
	promotion     *ExecutionContextPromotion
}

func (l *stepLifecycle) start(ctx context.Context, stepExecution *core.StepExecution) error {
	stepExecution.MarkAsStarted()
	for _, listener := range l.listeners {
		listener.BeforeStep(ctx, stepExecution)
	}
	return l.jobRepository.UpdateStepExecution(ctx, stepExecution)
}

// finish はステップを完了または失敗として確定させ、永続化します。
// 元のエラーを優先して返します。
func (l *stepLifecycle) finish(ctx context.Context, jobExecution *core.JobExecution, stepExecution *core.StepExecution, runErr error) error {
	if runErr != nil {
		logger.Errorf("ステップ '%s' が失敗しました: %v", l.name, runErr)
		stepExecution.MarkAsFailed(runErr)
		if jobExecution != nil {
			jobExecution.AddFailureException(runErr)
		}
	} else {
		stepExecution.MarkAsCompleted()
	}

	for _, listener := range l.listeners {
		listener.AfterStep(ctx, stepExecution)
	}
	l.promotion.promote(l.name, jobExecution, stepExecution)

	if err := l.jobRepository.UpdateStepExecution(ctx, stepExecution); err != nil {
		logger.Errorf("ステップ '%s': StepExecution の更新に失敗しました: %v", l.name, err)
		if runErr == nil {
			return err
		}
	}
	return runErr
}
