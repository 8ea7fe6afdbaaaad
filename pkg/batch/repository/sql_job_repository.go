package repository

import (
	"weatheretl/pkg/batch/database"
	"weatheretl/pkg/batch/util/exception"
	"weatheretl/pkg/batch/util/logger"
)

// SQLJobRepository は JobRepository インターフェースの SQL データベース実装です。
// JobExecution と StepExecution の実装を埋め込み、委譲します。
type SQLJobRepository struct {
	dbConnection database.DBConnection

	*SQLJobExecutionRepository
	*SQLStepExecutionRepository
}

// NewSQLJobRepository は既に確立されたデータベース接続から SQLJobRepository を作成します。
func NewSQLJobRepository(dbConn database.DBConnection) *SQLJobRepository {
	stepRepo := NewSQLStepExecutionRepository(dbConn)
	return &SQLJobRepository{
		dbConnection:               dbConn,
		SQLJobExecutionRepository:  NewSQLJobExecutionRepository(dbConn, stepRepo),
		SQLStepExecutionRepository: stepRepo,
	}
}

func (r *SQLJobRepository) GetDBConnection() database.DBConnection {
	return r.dbConnection
}

// Close はデータベース接続を閉じます。
func (r *SQLJobRepository) Close() error {
	if r.dbConnection == nil {
		return nil
	}
	if err := r.dbConnection.Close(); err != nil {
		return exception.NewBatchError("job_repository", "データベース接続を閉じるのに失敗しました", err, false, false)
	}
	logger.Debugf("Job Repository のデータベース接続を閉じました。")
	return nil
}

var _ JobRepository = (*SQLJobRepository)(nil)
