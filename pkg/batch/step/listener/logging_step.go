package listener

import (
	"context"

	"weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/util/logger"
)

// LoggingStepListener はステップの開始と終了をログ出力します。
type LoggingStepListener struct{}

func NewLoggingStepListener() *LoggingStepListener {
	return &LoggingStepListener{}
}

func (l *LoggingStepListener) BeforeStep(ctx context.Context, stepExecution *core.StepExecution) {
	logger.Debugf("ステップ '%s' (Execution ID: %s) が始まるよ。", stepExecution.StepName, stepExecution.ID)
}

func (l *LoggingStepListener) AfterStep(ctx context.Context, stepExecution *core.StepExecution) {
	logger.Infof("ステップ '%s' が終了しました。Status: %s, ExitStatus: %s (%s)",
		stepExecution.StepName, stepExecution.Status, stepExecution.ExitStatus, stepExecution.Summary())
}

var _ core.StepExecutionListener = (*LoggingStepListener)(nil)
