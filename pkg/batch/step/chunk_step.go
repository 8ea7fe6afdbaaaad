package step

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"

	"weatheretl/pkg/batch/database"
	"weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/repository"
	"weatheretl/pkg/batch/util/exception"
	"weatheretl/pkg/batch/util/logger"
)

// ChunkStep はチャンク指向のステップを実装します。
// Reader で chunkSize 件読み込み、Processor で変換し、Writer でチャンクごとに1トランザクションで書き込みます。
// スキップ可能なエラーは skipLimit に達するまでスキップされます。
type ChunkStep[I, O any] struct {
	stepLifecycle
	reader        core.ItemReader[I]
	processor     core.ItemProcessor[I, O]
	writer        core.ItemWriter[O]
	chunkSize     int
	skipLimit     int
	skipListeners []core.SkipListener
}

var _ core.Step = (*ChunkStep[any, any])(nil)

// NewChunkStep は新しい ChunkStep のインスタンスを作成します。
func NewChunkStep[I, O any](
	name string,
	r core.ItemReader[I],
	p core.ItemProcessor[I, O],
	w core.ItemWriter[O],
	chunkSize int,
	skipLimit int,
	repo repository.JobRepository,
	stepListeners []core.StepExecutionListener,
	skipListeners []core.SkipListener,
	promotion *ExecutionContextPromotion,
) *ChunkStep[I, O] {
	if chunkSize < 1 {
		chunkSize = 1
	}
	return &ChunkStep[I, O]{
		stepLifecycle: stepLifecycle{
			name:          name,
			jobRepository: repo,
			listeners:     stepListeners,
			promotion:     promotion,
		},
		reader:        r,
		processor:     p,
		writer:        w,
		chunkSize:     chunkSize,
		skipLimit:     skipLimit,
		skipListeners: skipListeners,
	}
}

func (cs *ChunkStep[I, O]) ID() string {
	return cs.name
}

func (cs *ChunkStep[I, O]) StepName() string {
	return cs.name
}

// Execute はチャンクステップを実行します。
func (cs *ChunkStep[I, O]) Execute(ctx context.Context, jobExecution *core.JobExecution, stepExecution *core.StepExecution) error {
	logger.Infof("チャンクステップ '%s' (Execution ID: %s) を始めるよ。", cs.name, stepExecution.ID)

	if err := cs.start(ctx, stepExecution); err != nil {
		return cs.finish(ctx, jobExecution, stepExecution, err)
	}
	return cs.finish(ctx, jobExecution, stepExecution, cs.run(ctx, stepExecution))
}

func (cs *ChunkStep[I, O]) run(ctx context.Context, stepExecution *core.StepExecution) (err error) {
	if err := cs.reader.Open(ctx, stepExecution.ExecutionContext); err != nil {
		return exception.NewBatchError(cs.name, "Reader のオープンに失敗しました", err, false, false)
	}
	defer func() {
		if cerr := cs.reader.Close(ctx); cerr != nil {
			logger.Errorf("チャンクステップ '%s': Reader のクローズに失敗しました: %v", cs.name, cerr)
			if err == nil {
				err = cerr
			}
		}
	}()

	if err := cs.writer.Open(ctx, stepExecution.ExecutionContext); err != nil {
		return exception.NewBatchError(cs.name, "Writer のオープンに失敗しました", err, false, false)
	}
	defer func() {
		if cerr := cs.writer.Close(ctx); cerr != nil {
			logger.Errorf("チャンクステップ '%s': Writer のクローズに失敗しました: %v", cs.name, cerr)
			if err == nil {
				err = cerr
			}
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		items, eof, err := cs.readAndProcessChunk(ctx, stepExecution)
		if err != nil {
			return err
		}
		if len(items) > 0 {
			if err := cs.writeChunk(ctx, stepExecution, items); err != nil {
				return err
			}
		}

		// チェックポイント
		if err := cs.jobRepository.UpdateStepExecution(ctx, stepExecution); err != nil {
			return err
		}
		if eof {
			logger.Debugf("チャンクステップ '%s': Reader の終端に達しました。(%s)", cs.name, stepExecution.Summary())
			return nil
		}
	}
}

// readAndProcessChunk は最大 chunkSize 件を読み込んで処理します。
// Reader が終端に達した場合は eof=true を返します。
func (cs *ChunkStep[I, O]) readAndProcessChunk(ctx context.Context, stepExecution *core.StepExecution) ([]O, bool, error) {
	var out []O
	read := 0
	for read < cs.chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		item, err := cs.reader.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, true, nil
			}
			if cs.canSkip(err, stepExecution) {
				stepExecution.SkipReadCount++
				for _, l := range cs.skipListeners {
					l.OnSkipRead(ctx, err)
				}
				continue
			}
			return nil, false, exception.NewBatchError(cs.name, "アイテムの読み込みに失敗しました", err, false, false)
		}
		if isNil(item) {
			return out, true, nil
		}
		read++
		stepExecution.ReadCount++

		processed, err := cs.processor.Process(ctx, item)
		if err != nil {
			if cs.canSkip(err, stepExecution) {
				stepExecution.SkipProcessCount++
				for _, l := range cs.skipListeners {
					l.OnSkipProcess(ctx, item, err)
				}
				continue
			}
			return nil, false, exception.NewBatchError(cs.name, "アイテムの処理に失敗しました", err, false, false)
		}
		if isNil(processed) {
			stepExecution.FilterCount++
			continue
		}
		out = append(out, processed)
	}
	return out, false, nil
}

// writeChunk はチャンクを1トランザクションで書き込みます。
// トランザクションは読み込みと処理が終わってから開始します。
func (cs *ChunkStep[I, O]) writeChunk(ctx context.Context, stepExecution *core.StepExecution, items []O) error {
	db := cs.jobRepository.GetDBConnection()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return exception.NewBatchError(cs.name, "トランザクションの開始に失敗しました", err, false, false)
	}

	if err := cs.writer.Write(ctx, tx, items); err != nil {
		cs.rollback(tx, stepExecution)
		if cs.canSkip(err, stepExecution) {
			stepExecution.SkipWriteCount += len(items)
			for _, item := range items {
				for _, l := range cs.skipListeners {
					l.OnSkipWrite(ctx, item, err)
				}
			}
			return nil
		}
		return exception.NewBatchError(cs.name, fmt.Sprintf("%d 件のアイテムの書き込みに失敗しました", len(items)), err, false, false)
	}

	if err := tx.Commit(); err != nil {
		cs.rollback(tx, stepExecution)
		return exception.NewBatchError(cs.name, "トランザクションのコミットに失敗しました", err, false, false)
	}
	stepExecution.WriteCount += len(items)
	stepExecution.CommitCount++
	return nil
}

func (cs *ChunkStep[I, O]) rollback(tx database.Tx, stepExecution *core.StepExecution) {
	stepExecution.RollbackCount++
	if err := tx.Rollback(); err != nil {
		logger.Warnf("チャンクステップ '%s': ロールバックに失敗しました: %v", cs.name, err)
	}
}

func (cs *ChunkStep[I, O]) canSkip(err error, stepExecution *core.StepExecution) bool {
	return exception.IsSkippable(err) && stepExecution.SkipCount() < cs.skipLimit
}

// isNil はインターフェース値または nil ポインタを判定します。
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
