package tasklet

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

// AggregatedCityCountKey は今回 transformed_weather に挿入した都市数を記録する ExecutionContext のキーです。
const AggregatedCityCountKey = "aggregatedCityCount"

// DailyAggregateTasklet は当日分の raw_weather を都市ごとに平均し、transformed_weather に保存します。
type DailyAggregateTasklet struct {
	repo   appRepo.WeatherRepository
	conn   database.DBConnection
	config weather_config.AggregatorConfig
	now    func() time.Time
}

var _ core.Tasklet = (*DailyAggregateTasklet)(nil)

func NewDailyAggregateTasklet(repo appRepo.WeatherRepository, conn database.DBConnection, cfg weather_config.AggregatorConfig, now func() time.Time) *DailyAggregateTasklet {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SkipScope == "" {
		cfg.SkipScope = weather_config.SkipScopeDay
	}
	if now == nil {
		now = time.Now
	}
	return &DailyAggregateTasklet{repo: repo, conn: conn, config: cfg, now: now}
}

// Execute は TransformAndStore を実行し、挿入件数をステップに記録します。
func (t *DailyAggregateTasklet) Execute(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
	n, err := t.TransformAndStore(ctx)
	stepExecution.ExecutionContext.Put(AggregatedCityCountKey, n)
	if err != nil {
		return core.ExitStatusFailed, err
	}
	stepExecution.WriteCount += n
	return core.ExitStatusCompleted, nil
}

// TransformAndStore は当日分の集計を1トランザクションで行い、挿入した行数を返します。
//
// skip_scope が day の場合、当日の集計行が1件でもあれば何もしません。
// city の場合は集計済みの都市だけを除外します。
// raw_data の main.temp / main.humidity が不正な行があればエラーを返し、何も書き込みません。
func (t *DailyAggregateTasklet) TransformAndStore(ctx context.Context) (int, error) {
	today := t.now().In(t.config.Location).Format(weather_entity.DateLayout)

	tx, err := t.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, exception.NewBatchError("daily_aggregate_tasklet", "トランザクションの開始に失敗しました", err, false, false)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Warnf("DailyAggregateTasklet: ロールバックに失敗しました: %v", rbErr)
			}
		}
	}()

	if t.config.SkipScope == weather_config.SkipScopeDay {
		exists, err := t.repo.AggregateExistsForDate(ctx, tx, today)
		if err != nil {
			return 0, exception.NewBatchError("daily_aggregate_tasklet", "集計済みかどうかの確認に失敗しました", err, false, false)
		}
		if exists {
			logger.Errorf("Transformation already completed for %s", today)
			return 0, nil
		}
	}

	rows, err := t.repo.FindRawObservationsByDate(ctx, tx, today)
	if err != nil {
		return 0, exception.NewBatchError("daily_aggregate_tasklet", "raw_weather の読み込みに失敗しました", err, false, false)
	}
	logger.Infof("Loaded %d raw observations for %s", len(rows), today)
	if len(rows) == 0 {
		return 0, nil
	}

	readings := make([]weather_entity.Reading, 0, len(rows))
	for _, row := range rows {
		p, err := weather_entity.ParsePayload([]byte(row.RawData))
		if err != nil {
			return 0, exception.NewBatchError("daily_aggregate_tasklet", fmt.Sprintf("raw_weather (id=%d, city=%s) の raw_data が不正です", row.ID, row.City), err, false, false)
		}
		readings = append(readings, weather_entity.Reading{City: row.City, Temp: p.Temperature(), Humidity: p.Humidity()})
	}

	if t.config.SkipScope == weather_config.SkipScopeCity {
		readings, err = t.excludeAggregatedCities(ctx, tx, today, readings)
		if err != nil {
			return 0, err
		}
		if len(readings) == 0 {
			logger.Errorf("Transformation already completed for %s", today)
			return 0, nil
		}
	}

	aggregates := weather_entity.AggregateDaily(readings, today)
	inserted, err := t.repo.InsertDailyAggregates(ctx, tx, aggregates)
	if err != nil {
		return 0, exception.NewBatchError("daily_aggregate_tasklet", "transformed_weather への挿入に失敗しました", err, false, false)
	}
	if err := tx.Commit(); err != nil {
		return 0, exception.NewBatchError("daily_aggregate_tasklet", "トランザクションのコミットに失敗しました", err, false, false)
	}
	committed = true

	logger.Infof("Inserted transformed weather data")
	return inserted, nil
}

func (t *DailyAggregateTasklet) excludeAggregatedCities(ctx context.Context, tx database.Tx, date string, readings []weather_entity.Reading) ([]weather_entity.Reading, error) {
	done, err := t.repo.FindAggregatedCities(ctx, tx, date)
	if err != nil {
		return nil, exception.NewBatchError("daily_aggregate_tasklet", "集計済み都市の取得に失敗しました", err, false, false)
	}
	if len(done) == 0 {
		return readings, nil
	}
	skip := make(map[string]struct{}, len(done))
	for _, c := range done {
		skip[c] = struct{}{}
	}

	out := readings[:0]
	for _, r := range readings {
		if _, ok := skip[r.City]; ok {
			continue
		}
		out = append(out, r)
	}
	logger.Debugf("集計済みの都市 %v を除外しました。", done)
	return out, nil
}

func (t *DailyAggregateTasklet) Close(ctx context.Context) error {
	return nil
}
