package core

import (
	"context"

	"weatheretl/pkg/batch/database"
)

// FlowElement はフロー内の要素の共通インターフェースです。
type FlowElement interface {
	ID() string
}

// Job は実行可能なバッチジョブのインターフェースです。
type Job interface {
	Run(ctx context.Context, jobExecution *JobExecution, jobParameters JobParameters) error
	JobName() string
	GetFlow() *FlowDefinition
	ValidateParameters(params JobParameters) error
}

// Step はジョブ内で実行される単一のステップのインターフェースです。
type Step interface {
	Execute(ctx context.Context, jobExecution *JobExecution, stepExecution *StepExecution) error
	StepName() string
	ID() string
}

// ItemReader はデータを読み込むステップのインターフェースです。
// O は読み込まれるアイテムの型です。
// 読み込むものがなくなったら io.EOF を返します。
type ItemReader[O any] interface {
	Open(ctx context.Context, ec ExecutionContext) error
	Read(ctx context.Context) (O, error)
	Close(ctx context.Context) error
}

// ItemProcessor はアイテムを処理するステップのインターフェースです。
// I は入力アイテムの型、O は出力アイテムの型です。
// 出力がゼロ値 (nil) の場合、そのアイテムはフィルタされ書き込まれません。
type ItemProcessor[I, O any] interface {
	Process(ctx context.Context, item I) (O, error)
}

// ItemWriter はデータを書き込むステップのインターフェースです。
// I は書き込まれるアイテムの型です。
type ItemWriter[I any] interface {
	Open(ctx context.Context, ec ExecutionContext) error
	Write(ctx context.Context, tx database.Tx, items []I) error
	Close(ctx context.Context) error
}

// Tasklet は単一の操作を実行するステップのインターフェースです。
// JSR352のTaskletに相当します。
type Tasklet interface {
	// Execute はTaskletのビジネスロジックを実行します。
	// 処理が成功した場合は COMPLETED などの ExitStatus を返し、エラーが発生した場合はエラーを返します。
	Execute(ctx context.Context, stepExecution *StepExecution) (ExitStatus, error)
	Close(ctx context.Context) error
}

// SkipListener はアイテムスキップイベントを処理するためのインターフェースです。
type SkipListener interface {
	OnSkipRead(ctx context.Context, err error)
	OnSkipProcess(ctx context.Context, item any, err error)
	OnSkipWrite(ctx context.Context, item any, err error)
}

// StepExecutionListener はステップ実行イベントを処理するためのインターフェースです。
type StepExecutionListener interface {
	BeforeStep(ctx context.Context, stepExecution *StepExecution)
	AfterStep(ctx context.Context, stepExecution *StepExecution)
}

// JobExecutionListener はジョブ実行イベントを処理するためのインターフェースです。
type JobExecutionListener interface {
	BeforeJob(ctx context.Context, jobExecution *JobExecution)
	AfterJob(ctx context.Context, jobExecution *JobExecution)
}
