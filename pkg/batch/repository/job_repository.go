package repository

import (
	"context"

	"weatheretl/pkg/batch/config"
	"weatheretl/pkg/batch/database"
	"weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/util/exception"
	"weatheretl/pkg/batch/util/logger"
)

// JobExecution は JobExecution の永続化と取得に関する操作を定義します。
type JobExecution interface {
	// SaveJobExecution は新しい JobExecution を永続化します。
	SaveJobExecution(ctx context.Context, jobExecution *core.JobExecution) error

	// UpdateJobExecution は既存の JobExecution の状態を更新します。
	UpdateJobExecution(ctx context.Context, jobExecution *core.JobExecution) error

	// FindJobExecutionByID は指定された ID の JobExecution を検索します。
	// 関連する StepExecution もロードされます。
	FindJobExecutionByID(ctx context.Context, executionID string) (*core.JobExecution, error)
}

// StepExecution は StepExecution の永続化と取得に関する操作を定義します。
type StepExecution interface {
	SaveStepExecution(ctx context.Context, stepExecution *core.StepExecution) error
	UpdateStepExecution(ctx context.Context, stepExecution *core.StepExecution) error
	FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*core.StepExecution, error)
}

// JobRepository はバッチ実行に関するメタデータを永続化・管理するためのインターフェースです。
// Spring Batch の JobRepository に相当します。
type JobRepository interface {
	JobExecution
	StepExecution

	// GetDBConnection は、このリポジトリが使用するデータベース接続を返します。
	// ステップ内でトランザクションを開始するために使用されます。
	GetDBConnection() database.DBConnection

	// Close はリポジトリが使用するデータベース接続を解放します。
	Close() error
}

// NewJobRepository は設定を基にデータベース接続を確立し、JobRepository を作成します。
func NewJobRepository(ctx context.Context, cfg config.Config) (JobRepository, error) {
	logger.Debugf("JobRepository の生成を開始します (Type: %s).", cfg.Database.Type)

	dbConn, err := database.NewDBConnectionFromConfig(ctx, cfg.Database)
	if err != nil {
		logger.Errorf("JobRepository 用のデータベース接続確立に失敗しました (Type: %s): %v", cfg.Database.Type, err)
		return nil, exception.NewBatchError("repository_factory", "JobRepository 用のデータベース接続確立に失敗しました", err, false, false)
	}
	return NewSQLJobRepository(dbConn), nil
}
