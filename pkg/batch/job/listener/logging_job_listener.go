package listener

import (
	"context"

	"weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/util/logger"
)

// LoggingJobListener はジョブの開始と終了をログ出力する JobExecutionListener の実装です。
type LoggingJobListener struct{}

func NewLoggingJobListener() *LoggingJobListener {
	return &LoggingJobListener{}
}

func (l *LoggingJobListener) BeforeJob(ctx context.Context, jobExecution *core.JobExecution) {
	logger.Debugf("ジョブ '%s' (Execution ID: %s) が始まるよ。Parameters: %+v", jobExecution.JobName, jobExecution.ID, jobExecution.Parameters.Params)
}

// AfterJob はジョブの所要時間と失敗内容を出力します。
func (l *LoggingJobListener) AfterJob(ctx context.Context, jobExecution *core.JobExecution) {
	elapsed := jobExecution.EndTime.Sub(jobExecution.StartTime)
	if jobExecution.EndTime.IsZero() || jobExecution.StartTime.IsZero() {
		elapsed = 0
	}
	logger.Infof("ジョブ '%s' (Execution ID: %s) 終了。Status: %s, 所要時間: %s, ステップ数: %d",
		jobExecution.JobName, jobExecution.ID, jobExecution.Status, elapsed, len(jobExecution.StepExecutions))
	for _, err := range jobExecution.Failures {
		logger.Warnf("ジョブ '%s' の失敗: %v", jobExecution.JobName, err)
	}
}

var _ core.JobExecutionListener = (*LoggingJobListener)(nil)
