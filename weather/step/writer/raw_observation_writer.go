package writer

import (
	"context"
	"fmt"
	"time"

	"weatheretl/pkg/batch/database"
	core "weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"

	weather_config "weatheretl/weather/config"
	weather_entity "weatheretl/weather/domain/entity"
	appRepo "weatheretl/weather/repository"
)

// DuplicateCountKey は同日に既に保存済みだった件数を記録する ExecutionContext のキーです。
const DuplicateCountKey = "duplicateCount"

// RawObservationWriter は検証済みのレスポンスを raw_weather に1都市1日1行で保存します。
type RawObservationWriter struct {
	repo             appRepo.WeatherRepository
	config           weather_config.RawWriterConfig
	now              func() time.Time
	duplicates       int
	executionContext core.ExecutionContext
}

var _ core.ItemWriter[any] = (*RawObservationWriter)(nil)

func NewRawObservationWriter(repo appRepo.WeatherRepository, cfg weather_config.RawWriterConfig, now func() time.Time) *RawObservationWriter {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &RawObservationWriter{
		repo:             repo,
		config:           cfg,
		now:              now,
		executionContext: core.NewExecutionContext(),
	}
}

func (w *RawObservationWriter) Open(ctx context.Context, ec core.ExecutionContext) error {
	if ec == nil {
		ec = core.NewExecutionContext()
	}
	w.executionContext = ec
	if n, ok := ec.GetInt(DuplicateCountKey); ok {
		w.duplicates = n
	}
	w.executionContext.Put(DuplicateCountKey, w.duplicates)
	return nil
}

// Write は items を tx 上で raw_weather に挿入します。
// 同じ都市・同じ日の行が既にあれば何も書き込まず、ERROR レベルでログを出します。
func (w *RawObservationWriter) Write(ctx context.Context, tx database.Tx, items []any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	for _, item := range items {
		obs, ok := item.(*weather_entity.RawObservation)
		if !ok {
			return exception.NewBatchError("raw_observation_writer", fmt.Sprintf("予期しない入力アイテムの型です: %T", item), nil, false, true)
		}

		fetchTime := w.now().In(w.config.Location)
		fetchDate := fetchTime.Format(weather_entity.DateLayout)

		inserted, err := w.repo.InsertRawObservation(ctx, tx, weather_entity.StoredRawObservation{
			City:      obs.City,
			FetchDate: fetchDate,
			FetchTime: fetchTime,
			RawData:   string(obs.Raw),
		})
		if err != nil {
			return exception.NewBatchError("raw_observation_writer", "raw_weather への挿入に失敗しました", err, false, false)
		}
		if !inserted {
			w.duplicates++
			w.executionContext.Put(DuplicateCountKey, w.duplicates)
			logger.Errorf("ETL already completed for %s on %s", obs.City, fetchDate)
			continue
		}
		logger.Infof("Fetched raw data from %s: %s", obs.City, fetchTime.Format("2006-01-02 15:04:05.000000"))
	}
	return nil
}

func (w *RawObservationWriter) Close(ctx context.Context) error {
	logger.Debugf("RawObservationWriter をクローズします。")
	return nil
}
