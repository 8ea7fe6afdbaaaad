package joblauncher

import (
	"context"
	"fmt"

	"weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/repository"
	"weatheretl/pkg/batch/util/exception"
	"weatheretl/pkg/batch/util/logger"
)

// SimpleJobLauncher はジョブを同期的に実行し、JobExecution を JobRepository に記録します。
type SimpleJobLauncher struct {
	jobRepository repository.JobRepository
	jobProvider   JobProvider
}

var _ JobLauncher = (*SimpleJobLauncher)(nil)

func NewSimpleJobLauncher(jobRepository repository.JobRepository, jobProvider JobProvider) *SimpleJobLauncher {
	return &SimpleJobLauncher{
		jobRepository: jobRepository,
		jobProvider:   jobProvider,
	}
}

// Launch はジョブを生成・実行し、最終状態の JobExecution を返します。
// ジョブの失敗は JobExecution.Status に反映され、エラーとして返るのは起動や永続化に失敗した場合です。
func (l *SimpleJobLauncher) Launch(ctx context.Context, jobName string, params core.JobParameters) (*core.JobExecution, error) {
	logger.Infof("JobLauncher を使用して Job '%s' を起動するよ。", jobName)

	batchJob, err := l.jobProvider.CreateJob(jobName)
	if err != nil {
		return nil, exception.NewBatchError("job_launcher", fmt.Sprintf("Job '%s' の作成に失敗しました", jobName), err, false, false)
	}

	if err := batchJob.ValidateParameters(params); err != nil {
		return nil, exception.NewBatchError("job_launcher", "JobParameters のバリデーションエラー", err, false, false)
	}

	jobExecution := core.NewJobExecution(jobName, params)
	if err := l.jobRepository.SaveJobExecution(ctx, jobExecution); err != nil {
		return jobExecution, exception.NewBatchError("job_launcher", "起動処理エラー: JobExecution の初期保存に失敗しました", err, false, false)
	}

	jobExecution.MarkAsStarted()
	if err := l.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
		logger.Errorf("JobExecution (ID: %s) の Started 状態への更新に失敗しました: %v", jobExecution.ID, err)
		jobExecution.AddFailureException(err)
	}

	logger.Infof("Job '%s' (Execution ID: %s) を実行するよ。", jobName, jobExecution.ID)
	runErr := batchJob.Run(ctx, jobExecution, params)
	if runErr != nil && !jobExecution.Status.IsFinished() {
		jobExecution.MarkAsFailed(runErr)
	}

	if updateErr := l.jobRepository.UpdateJobExecution(context.WithoutCancel(ctx), jobExecution); updateErr != nil {
		logger.Errorf("JobExecution (ID: %s) の最終状態の更新に失敗しました: %v", jobExecution.ID, updateErr)
		if runErr == nil {
			runErr = exception.NewBatchError("job_launcher", "JobExecution 最終状態の永続化に失敗しました", updateErr, false, false)
		}
	}

	return jobExecution, runErr
}
