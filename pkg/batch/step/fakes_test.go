package step

import (
	"context"
	"database/sql"
	"io"

	"weatheretl/pkg/batch/database"
	"weatheretl/pkg/batch/job/core"
)

type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit() error   { t.committed = true; return nil }
func (t *fakeTx) Rollback() error { t.rolledBack = true; return nil }
func (t *fakeTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}
func (t *fakeTx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, nil
}
func (t *fakeTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return nil
}

type fakeDB struct {
	txs []*fakeTx
}

func (d *fakeDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (database.Tx, error) {
	tx := &fakeTx{}
	d.txs = append(d.txs, tx)
	return tx, nil
}
func (d *fakeDB) Close() error                          { return nil }
func (d *fakeDB) PingContext(ctx context.Context) error { return nil }
func (d *fakeDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}
func (d *fakeDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, nil
}
func (d *fakeDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return nil
}
func (d *fakeDB) Dialect() database.Dialect { return database.DialectSQLite }

type fakeRepo struct {
	db          *fakeDB
	stepUpdates int
}

func newFakeRepo() *fakeRepo { return &fakeRepo{db: &fakeDB{}} }

func (r *fakeRepo) SaveJobExecution(ctx context.Context, je *core.JobExecution) error   { return nil }
func (r *fakeRepo) UpdateJobExecution(ctx context.Context, je *core.JobExecution) error { return nil }
func (r *fakeRepo) FindJobExecutionByID(ctx context.Context, id string) (*core.JobExecution, error) {
	return nil, nil
}
func (r *fakeRepo) SaveStepExecution(ctx context.Context, se *core.StepExecution) error { return nil }
func (r *fakeRepo) UpdateStepExecution(ctx context.Context, se *core.StepExecution) error {
	r.stepUpdates++
	return nil
}
func (r *fakeRepo) FindStepExecutionsByJobExecutionID(ctx context.Context, id string) ([]*core.StepExecution, error) {
	return nil, nil
}
func (r *fakeRepo) GetDBConnection() database.DBConnection { return r.db }
func (r *fakeRepo) Close() error                           { return nil }

type readResult struct {
	item int
	err  error
}

type sliceReader struct {
	results []readResult
	idx     int
	opened  bool
	closed  bool
}

func (r *sliceReader) Open(ctx context.Context, ec core.ExecutionContext) error {
	r.opened = true
	return nil
}

func (r *sliceReader) Read(ctx context.Context) (int, error) {
	if r.idx >= len(r.results) {
		return 0, io.EOF
	}
	res := r.results[r.idx]
	r.idx++
	return res.item, res.err
}

func (r *sliceReader) Close(ctx context.Context) error {
	r.closed = true
	return nil
}

type funcProcessor func(ctx context.Context, item int) (*int, error)

func (f funcProcessor) Process(ctx context.Context, item int) (*int, error) { return f(ctx, item) }

type recordingWriter struct {
	chunks [][]int
	err    error
}

func (w *recordingWriter) Open(ctx context.Context, ec core.ExecutionContext) error { return nil }
func (w *recordingWriter) Write(ctx context.Context, tx database.Tx, items []*int) error {
	if w.err != nil {
		return w.err
	}
	chunk := make([]int, len(items))
	for i, v := range items {
		chunk[i] = *v
	}
	w.chunks = append(w.chunks, chunk)
	return nil
}
func (w *recordingWriter) Close(ctx context.Context) error { return nil }

type countingSkipListener struct {
	reads, processes, writes int
}

func (l *countingSkipListener) OnSkipRead(ctx context.Context, err error)              { l.reads++ }
func (l *countingSkipListener) OnSkipProcess(ctx context.Context, item any, err error) { l.processes++ }
func (l *countingSkipListener) OnSkipWrite(ctx context.Context, item any, err error)   { l.writes++ }
