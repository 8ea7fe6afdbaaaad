package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"weatheretl/pkg/batch/database"
	"weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/util/exception"
	"weatheretl/pkg/batch/util/logger"
	"weatheretl/pkg/batch/util/serialization"
)

// SQLStepExecutionRepository は StepExecution インターフェースの SQL データベース実装です。
type SQLStepExecutionRepository struct {
	dbConnection database.DBConnection
}

func NewSQLStepExecutionRepository(dbConn database.DBConnection) *SQLStepExecutionRepository {
	return &SQLStepExecutionRepository{dbConnection: dbConn}
}

func jobExecutionID(se *core.StepExecution) string {
	if se.JobExecution == nil {
		return ""
	}
	return se.JobExecution.ID
}

// SaveStepExecution は新しい StepExecution をデータベースに保存します。
func (r *SQLStepExecutionRepository) SaveStepExecution(ctx context.Context, stepExecution *core.StepExecution) error {
	failuresJSON, err := serialization.MarshalFailures(stepExecution.Failures)
	if err != nil {
		return err
	}
	contextJSON, err := serialization.MarshalExecutionContext(stepExecution.ExecutionContext)
	if err != nil {
		return err
	}

	query := r.dbConnection.Dialect().Rebind(`
    INSERT INTO batch_step_execution (id, job_execution_id, step_name, status, exit_status, start_time, end_time, read_count, write_count, commit_count, rollback_count, filter_count, skip_read_count, skip_process_count, skip_write_count, failure_exceptions, execution_context, last_updated, version)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = r.dbConnection.ExecContext(ctx, query,
		stepExecution.ID,
		jobExecutionID(stepExecution),
		stepExecution.StepName,
		string(stepExecution.Status),
		string(stepExecution.ExitStatus),
		nullTime(stepExecution.StartTime),
		nullTime(stepExecution.EndTime),
		stepExecution.ReadCount,
		stepExecution.WriteCount,
		stepExecution.CommitCount,
		stepExecution.RollbackCount,
		stepExecution.FilterCount,
		stepExecution.SkipReadCount,
		stepExecution.SkipProcessCount,
		stepExecution.SkipWriteCount,
		failuresJSON,
		contextJSON,
		stepExecution.LastUpdated,
		stepExecution.Version,
	)
	if err != nil {
		return exception.NewBatchError("job_repository", fmt.Sprintf("StepExecution (ID: %s) の保存に失敗しました", stepExecution.ID), err, false, false)
	}
	logger.Debugf("StepExecution (ID: %s, StepName: %s) を保存しました。", stepExecution.ID, stepExecution.StepName)
	return nil
}

// UpdateStepExecution は StepExecution の状態とカウンタを更新し、Version を進めます。
func (r *SQLStepExecutionRepository) UpdateStepExecution(ctx context.Context, stepExecution *core.StepExecution) error {
	failuresJSON, err := serialization.MarshalFailures(stepExecution.Failures)
	if err != nil {
		return err
	}
	contextJSON, err := serialization.MarshalExecutionContext(stepExecution.ExecutionContext)
	if err != nil {
		return err
	}

	stepExecution.LastUpdated = time.Now()
	query := r.dbConnection.Dialect().Rebind(`
    UPDATE batch_step_execution
    SET status = ?, exit_status = ?, start_time = ?, end_time = ?, read_count = ?, write_count = ?, commit_count = ?, rollback_count = ?, filter_count = ?, skip_read_count = ?, skip_process_count = ?, skip_write_count = ?, failure_exceptions = ?, execution_context = ?, last_updated = ?, version = ?
    WHERE id = ?`)
	res, err := r.dbConnection.ExecContext(ctx, query,
		string(stepExecution.Status),
		string(stepExecution.ExitStatus),
		nullTime(stepExecution.StartTime),
		nullTime(stepExecution.EndTime),
		stepExecution.ReadCount,
		stepExecution.WriteCount,
		stepExecution.CommitCount,
		stepExecution.RollbackCount,
		stepExecution.FilterCount,
		stepExecution.SkipReadCount,
		stepExecution.SkipProcessCount,
		stepExecution.SkipWriteCount,
		failuresJSON,
		contextJSON,
		stepExecution.LastUpdated,
		stepExecution.Version+1,
		stepExecution.ID,
	)
	if err != nil {
		return exception.NewBatchError("job_repository", fmt.Sprintf("StepExecution (ID: %s) の更新に失敗しました", stepExecution.ID), err, false, false)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return exception.NewBatchError("job_repository", fmt.Sprintf("StepExecution (ID: %s) の更新結果取得に失敗しました", stepExecution.ID), err, false, false)
	}
	if rowsAffected == 0 {
		return exception.NewBatchErrorf("job_repository", "StepExecution (ID: %s) の更新対象が見つかりませんでした", stepExecution.ID)
	}
	stepExecution.Version++

	logger.Debugf("StepExecution (ID: %s) を更新しました。Status: %s", stepExecution.ID, stepExecution.Status)
	return nil
}

// FindStepExecutionsByJobExecutionID は JobExecution に属する StepExecution を開始順に取得します。
// 戻り値の JobExecution 参照は設定されません。
func (r *SQLStepExecutionRepository) FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*core.StepExecution, error) {
	query := r.dbConnection.Dialect().Rebind(`
    SELECT id, step_name, status, exit_status, start_time, end_time, read_count, write_count, commit_count, rollback_count, filter_count, skip_read_count, skip_process_count, skip_write_count, failure_exceptions, execution_context, last_updated, version
    FROM batch_step_execution
    WHERE job_execution_id = ?
    ORDER BY start_time, last_updated`)
	rows, err := r.dbConnection.QueryContext(ctx, query, jobExecutionID)
	if err != nil {
		return nil, exception.NewBatchError("job_repository", fmt.Sprintf("StepExecution (JobExecutionID: %s) の取得に失敗しました", jobExecutionID), err, false, false)
	}
	defer rows.Close()

	var steps []*core.StepExecution
	for rows.Next() {
		se := &core.StepExecution{}
		var startTime, endTime sql.NullTime
		var failuresJSON, contextJSON sql.NullString
		if err := rows.Scan(
			&se.ID,
			&se.StepName,
			&se.Status,
			&se.ExitStatus,
			&startTime,
			&endTime,
			&se.ReadCount,
			&se.WriteCount,
			&se.CommitCount,
			&se.RollbackCount,
			&se.FilterCount,
			&se.SkipReadCount,
			&se.SkipProcessCount,
			&se.SkipWriteCount,
			&failuresJSON,
			&contextJSON,
			&se.LastUpdated,
			&se.Version,
		); err != nil {
			return nil, exception.NewBatchError("job_repository", "StepExecution の読み取りに失敗しました", err, false, false)
		}
		se.StartTime = startTime.Time
		se.EndTime = endTime.Time
		if se.Failures, err = serialization.UnmarshalFailures(failuresJSON.String); err != nil {
			return nil, err
		}
		if se.ExecutionContext, err = serialization.UnmarshalExecutionContext(contextJSON.String); err != nil {
			return nil, err
		}
		steps = append(steps, se)
	}
	if err := rows.Err(); err != nil {
		return nil, exception.NewBatchError("job_repository", "StepExecution の読み取りに失敗しました", err, false, false)
	}
	return steps, nil
}
