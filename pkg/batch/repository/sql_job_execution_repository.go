package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"weatheretl/pkg/batch/database"
	"weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/util/exception"
	"weatheretl/pkg/batch/util/logger"
	"weatheretl/pkg/batch/util/serialization"
)

// SQLJobExecutionRepository は JobExecution インターフェースの SQL データベース実装です。
type SQLJobExecutionRepository struct {
	dbConnection      database.DBConnection
	stepExecutionRepo StepExecution
}

// NewSQLJobExecutionRepository は新しい SQLJobExecutionRepository のインスタンスを作成します。
// stepRepo は FindJobExecutionByID で StepExecution をロードするために使います。
func NewSQLJobExecutionRepository(dbConn database.DBConnection, stepRepo StepExecution) *SQLJobExecutionRepository {
	return &SQLJobExecutionRepository{
		dbConnection:      dbConn,
		stepExecutionRepo: stepRepo,
	}
}

type jobExecutionColumns struct {
	params, failures, context string
}

func encodeJobExecution(je *core.JobExecution) (jobExecutionColumns, error) {
	var cols jobExecutionColumns
	var err error
	if cols.params, err = serialization.MarshalJobParameters(je.Parameters); err != nil {
		return cols, err
	}
	if cols.failures, err = serialization.MarshalFailures(je.Failures); err != nil {
		return cols, err
	}
	if cols.context, err = serialization.MarshalExecutionContext(je.ExecutionContext); err != nil {
		return cols, err
	}
	return cols, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// SaveJobExecution は新しい JobExecution をデータベースに保存します。
func (r *SQLJobExecutionRepository) SaveJobExecution(ctx context.Context, jobExecution *core.JobExecution) error {
	cols, err := encodeJobExecution(jobExecution)
	if err != nil {
		return exception.NewBatchError("job_repository", "JobExecution のエンコードに失敗しました", err, false, false)
	}

	query := r.dbConnection.Dialect().Rebind(`
    INSERT INTO batch_job_execution (id, job_name, status, exit_status, start_time, end_time, create_time, last_updated, version, job_parameters, failure_exceptions, execution_context, current_step_name)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = r.dbConnection.ExecContext(ctx, query,
		jobExecution.ID,
		jobExecution.JobName,
		string(jobExecution.Status),
		string(jobExecution.ExitStatus),
		nullTime(jobExecution.StartTime),
		nullTime(jobExecution.EndTime),
		jobExecution.CreateTime,
		jobExecution.LastUpdated,
		jobExecution.Version,
		cols.params,
		cols.failures,
		cols.context,
		jobExecution.CurrentStepName,
	)
	if err != nil {
		return exception.NewBatchError("job_repository", fmt.Sprintf("JobExecution (ID: %s) の保存に失敗しました", jobExecution.ID), err, false, false)
	}

	logger.Debugf("JobExecution (ID: %s, JobName: %s) を保存しました。", jobExecution.ID, jobExecution.JobName)
	return nil
}

// UpdateJobExecution は既存の JobExecution の状態をデータベースで更新し、Version を進めます。
func (r *SQLJobExecutionRepository) UpdateJobExecution(ctx context.Context, jobExecution *core.JobExecution) error {
	cols, err := encodeJobExecution(jobExecution)
	if err != nil {
		return exception.NewBatchError("job_repository", "JobExecution のエンコードに失敗しました", err, false, false)
	}

	jobExecution.LastUpdated = time.Now()
	query := r.dbConnection.Dialect().Rebind(`
    UPDATE batch_job_execution
    SET status = ?, exit_status = ?, start_time = ?, end_time = ?, last_updated = ?, version = ?, job_parameters = ?, failure_exceptions = ?, execution_context = ?, current_step_name = ?
    WHERE id = ?`)
	res, err := r.dbConnection.ExecContext(ctx, query,
		string(jobExecution.Status),
		string(jobExecution.ExitStatus),
		nullTime(jobExecution.StartTime),
		nullTime(jobExecution.EndTime),
		jobExecution.LastUpdated,
		jobExecution.Version+1,
		cols.params,
		cols.failures,
		cols.context,
		jobExecution.CurrentStepName,
		jobExecution.ID,
	)
	if err != nil {
		return exception.NewBatchError("job_repository", fmt.Sprintf("JobExecution (ID: %s) の更新に失敗しました", jobExecution.ID), err, false, false)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return exception.NewBatchError("job_repository", fmt.Sprintf("JobExecution (ID: %s) の更新結果取得に失敗しました", jobExecution.ID), err, false, false)
	}
	if rowsAffected == 0 {
		return exception.NewBatchErrorf("job_repository", "JobExecution (ID: %s) の更新対象が見つかりませんでした", jobExecution.ID)
	}
	jobExecution.Version++

	logger.Debugf("JobExecution (ID: %s) を更新しました。Status: %s", jobExecution.ID, jobExecution.Status)
	return nil
}

// FindJobExecutionByID は指定された ID の JobExecution をデータベースから取得します。
// 関連する StepExecution もロードします。
func (r *SQLJobExecutionRepository) FindJobExecutionByID(ctx context.Context, executionID string) (*core.JobExecution, error) {
	query := r.dbConnection.Dialect().Rebind(`
    SELECT id, job_name, status, exit_status, start_time, end_time, create_time, last_updated, version, job_parameters, failure_exceptions, execution_context, current_step_name
    FROM batch_job_execution
    WHERE id = ?`)
	row := r.dbConnection.QueryRowContext(ctx, query, executionID)

	je := &core.JobExecution{}
	var startTime, endTime sql.NullTime
	var paramsJSON, failuresJSON, contextJSON, currentStepName sql.NullString
	err := row.Scan(
		&je.ID,
		&je.JobName,
		&je.Status,
		&je.ExitStatus,
		&startTime,
		&endTime,
		&je.CreateTime,
		&je.LastUpdated,
		&je.Version,
		&paramsJSON,
		&failuresJSON,
		&contextJSON,
		&currentStepName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, exception.NewBatchErrorf("job_repository", "JobExecution (ID: %s) が見つかりませんでした", executionID)
		}
		return nil, exception.NewBatchError("job_repository", fmt.Sprintf("JobExecution (ID: %s) の取得に失敗しました", executionID), err, false, false)
	}

	je.StartTime = startTime.Time
	je.EndTime = endTime.Time
	je.CurrentStepName = currentStepName.String
	if je.Parameters, err = serialization.UnmarshalJobParameters(paramsJSON.String); err != nil {
		return nil, err
	}
	if je.Failures, err = serialization.UnmarshalFailures(failuresJSON.String); err != nil {
		return nil, err
	}
	if je.ExecutionContext, err = serialization.UnmarshalExecutionContext(contextJSON.String); err != nil {
		return nil, err
	}

	if r.stepExecutionRepo != nil {
		steps, err := r.stepExecutionRepo.FindStepExecutionsByJobExecutionID(ctx, je.ID)
		if err != nil {
			return nil, err
		}
		for _, se := range steps {
			se.JobExecution = je
		}
		je.StepExecutions = steps
	}

	return je, nil
}
