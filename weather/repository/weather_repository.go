package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"weatheretl/pkg/batch/database"
	"weatheretl/pkg/batch/util/logger"
	weather_entity "weatheretl/weather/domain/entity"
)

// WeatherRepository は raw_weather と transformed_weather へのアクセスを提供します。
// 全ての操作は呼び出し元が開始したトランザクション上で実行されます。
type WeatherRepository interface {
	// InsertRawObservation は (city, fetch_date) が未登録の場合のみ1行挿入します。
	// 既に存在した場合は false を返します。
	InsertRawObservation(ctx context.Context, tx database.Tx, row weather_entity.StoredRawObservation) (bool, error)
	FindRawObservationsByDate(ctx context.Context, tx database.Tx, date string) ([]weather_entity.StoredRawObservation, error)
	AggregateExistsForDate(ctx context.Context, tx database.Tx, date string) (bool, error)
	FindAggregatedCities(ctx context.Context, tx database.Tx, date string) ([]string, error)
	// InsertDailyAggregates は (city, date) が衝突する行を無視して挿入し、挿入件数を返します。
	InsertDailyAggregates(ctx context.Context, tx database.Tx, rows []weather_entity.DailyAggregate) (int, error)
}

type queries struct {
	insertRaw       string
	insertAggregate string
}

var dialectQueries = map[database.Dialect]queries{
	database.DialectPostgres: {
		insertRaw: `INSERT INTO raw_weather (city, fetch_date, fetch_time, raw_data) VALUES (?, ?, ?, ?)
			ON CONFLICT (city, fetch_date) DO NOTHING`,
		insertAggregate: `INSERT INTO transformed_weather (city, date, avg_temp, avg_humidity) VALUES (?, ?, ?, ?)
			ON CONFLICT (city, date) DO NOTHING`,
	},
	database.DialectSQLite: {
		insertRaw: `INSERT INTO raw_weather (city, fetch_date, fetch_time, raw_data) VALUES (?, ?, ?, ?)
			ON CONFLICT (city, fetch_date) DO NOTHING`,
		insertAggregate: `INSERT INTO transformed_weather (city, date, avg_temp, avg_humidity) VALUES (?, ?, ?, ?)
			ON CONFLICT (city, date) DO NOTHING`,
	},
	// 重複時は何も更新しないので影響行数は 0 になる
	database.DialectMySQL: {
		insertRaw: `INSERT INTO raw_weather (city, fetch_date, fetch_time, raw_data) VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE id = id`,
		insertAggregate: `INSERT INTO transformed_weather (city, date, avg_temp, avg_humidity) VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE id = id`,
	},
	// Snowflake は UNIQUE 制約を強制しないため MERGE で重複を避ける
	database.DialectSnowflake: {
		insertRaw: `MERGE INTO raw_weather t
			USING (SELECT ? AS city, TO_DATE(?) AS fetch_date, ? AS fetch_time, PARSE_JSON(?) AS raw_data) s
			ON t.city = s.city AND t.fetch_date = s.fetch_date
			WHEN NOT MATCHED THEN INSERT (city, fetch_date, fetch_time, raw_data)
			VALUES (s.city, s.fetch_date, s.fetch_time, s.raw_data)`,
		insertAggregate: `MERGE INTO transformed_weather t
			USING (SELECT ? AS city, TO_DATE(?) AS date, ? AS avg_temp, ? AS avg_humidity) s
			ON t.city = s.city AND t.date = s.date
			WHEN NOT MATCHED THEN INSERT (city, date, avg_temp, avg_humidity)
			VALUES (s.city, s.date, s.avg_temp, s.avg_humidity)`,
	},
}

// SQLWeatherRepository は database.Dialect ごとの SQL で WeatherRepository を実装します。
type SQLWeatherRepository struct {
	dialect database.Dialect
	q       queries
}

var _ WeatherRepository = (*SQLWeatherRepository)(nil)

func NewSQLWeatherRepository(dialect database.Dialect) (*SQLWeatherRepository, error) {
	q, ok := dialectQueries[dialect]
	if !ok {
		return nil, fmt.Errorf("サポートされていないデータベースタイプです: %s", dialect)
	}
	return &SQLWeatherRepository{dialect: dialect, q: q}, nil
}

func (r *SQLWeatherRepository) InsertRawObservation(ctx context.Context, tx database.Tx, row weather_entity.StoredRawObservation) (bool, error) {
	res, err := tx.ExecContext(ctx, r.dialect.Rebind(r.q.insertRaw), row.City, row.FetchDate, row.FetchTime, row.RawData)
	if err != nil {
		return false, fmt.Errorf("failed to insert raw_weather for %s on %s: %w", row.City, row.FetchDate, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected for raw_weather: %w", err)
	}
	return n > 0, nil
}

func (r *SQLWeatherRepository) FindRawObservationsByDate(ctx context.Context, tx database.Tx, date string) ([]weather_entity.StoredRawObservation, error) {
	rows, err := tx.QueryContext(ctx, r.dialect.Rebind(
		`SELECT id, city, fetch_time, raw_data FROM raw_weather WHERE fetch_date = ? ORDER BY id`), date)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw_weather for %s: %w", date, err)
	}
	defer rows.Close()

	var out []weather_entity.StoredRawObservation
	for rows.Next() {
		o := weather_entity.StoredRawObservation{FetchDate: date}
		if err := rows.Scan(&o.ID, &o.City, &o.FetchTime, &o.RawData); err != nil {
			return nil, fmt.Errorf("failed to scan raw_weather row: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate raw_weather rows: %w", err)
	}
	logger.Debugf("raw_weather から %s の行を %d 件読み込みました。", date, len(out))
	return out, nil
}

func (r *SQLWeatherRepository) AggregateExistsForDate(ctx context.Context, tx database.Tx, date string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, r.dialect.Rebind(
		`SELECT 1 FROM transformed_weather WHERE date = ? LIMIT 1`), date).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check transformed_weather for %s: %w", date, err)
	}
	return true, nil
}

func (r *SQLWeatherRepository) FindAggregatedCities(ctx context.Context, tx database.Tx, date string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, r.dialect.Rebind(
		`SELECT city FROM transformed_weather WHERE date = ?`), date)
	if err != nil {
		return nil, fmt.Errorf("failed to query transformed_weather cities for %s: %w", date, err)
	}
	defer rows.Close()

	var cities []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan transformed_weather city: %w", err)
		}
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

func (r *SQLWeatherRepository) InsertDailyAggregates(ctx context.Context, tx database.Tx, rows []weather_entity.DailyAggregate) (int, error) {
	query := r.dialect.Rebind(r.q.insertAggregate)
	inserted := 0
	for _, a := range rows {
		select {
		case <-ctx.Done():
			return inserted, ctx.Err()
		default:
		}

		res, err := tx.ExecContext(ctx, query, a.City, a.Date, a.AvgTemp, a.AvgHumidity)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert transformed_weather for %s on %s: %w", a.City, a.Date, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("failed to read rows affected for transformed_weather: %w", err)
		}
		if n > 0 {
			inserted++
		}
	}
	logger.Debugf("transformed_weather に %d/%d 件を挿入しました。", inserted, len(rows))
	return inserted, nil
}
