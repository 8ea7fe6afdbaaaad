package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weatheretl/pkg/batch/config"
	"weatheretl/pkg/batch/database"
	weather_entity "weatheretl/weather/domain/entity"
	appRepo "weatheretl/weather/repository"
	"weatheretl/weather/resources"
)

func newSQLiteConn(t *testing.T) database.DBConnection {
	t.Helper()
	cfg := config.DatabaseConfig{Type: "sqlite", Path: filepath.Join(t.TempDir(), "weather.db")}
	require.NoError(t, database.RunMigrations(cfg, resources.Migrations(), "sqlite", "schema_migrations"))

	conn, err := database.NewDBConnectionFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func inTx(t *testing.T, conn database.DBConnection, fn func(tx database.Tx)) {
	t.Helper()
	tx, err := conn.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	fn(tx)
	require.NoError(t, tx.Commit())
}

func countRows(t *testing.T, conn database.DBConnection, table string) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestNewSQLWeatherRepository_UnknownDialect(t *testing.T) {
	_, err := appRepo.NewSQLWeatherRepository(database.Dialect("redshift"))
	assert.Error(t, err)
}

func TestInsertRawObservation_OncePerCityPerDay(t *testing.T) {
	ctx := context.Background()
	conn := newSQLiteConn(t)
	repo, err := appRepo.NewSQLWeatherRepository(conn.Dialect())
	require.NoError(t, err)

	fetchTime := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	row := weather_entity.StoredRawObservation{
		City:      "Doha",
		FetchDate: "2026-10-16",
		FetchTime: fetchTime,
		RawData:   `{"main":{"temp":31.2,"humidity":40}}`,
	}

	inTx(t, conn, func(tx database.Tx) {
		inserted, err := repo.InsertRawObservation(ctx, tx, row)
		require.NoError(t, err)
		assert.True(t, inserted)
	})

	row.FetchTime = fetchTime.Add(time.Hour)
	row.RawData = `{"main":{"temp":33.0,"humidity":35}}`
	inTx(t, conn, func(tx database.Tx) {
		inserted, err := repo.InsertRawObservation(ctx, tx, row)
		require.NoError(t, err)
		assert.False(t, inserted)
	})

	// 別の日なら挿入できる
	row.FetchDate = "2026-10-17"
	inTx(t, conn, func(tx database.Tx) {
		inserted, err := repo.InsertRawObservation(ctx, tx, row)
		require.NoError(t, err)
		assert.True(t, inserted)
	})

	assert.Equal(t, 2, countRows(t, conn, "raw_weather"))

	inTx(t, conn, func(tx database.Tx) {
		rows, err := repo.FindRawObservationsByDate(ctx, tx, "2026-10-16")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "Doha", rows[0].City)
		assert.Equal(t, "2026-10-16", rows[0].FetchDate)
		assert.JSONEq(t, `{"main":{"temp":31.2,"humidity":40}}`, rows[0].RawData)
		assert.True(t, fetchTime.Equal(rows[0].FetchTime))
	})
}

func TestDailyAggregates_InsertOrIgnore(t *testing.T) {
	ctx := context.Background()
	conn := newSQLiteConn(t)
	repo, err := appRepo.NewSQLWeatherRepository(conn.Dialect())
	require.NoError(t, err)

	inTx(t, conn, func(tx database.Tx) {
		exists, err := repo.AggregateExistsForDate(ctx, tx, "2026-10-16")
		require.NoError(t, err)
		assert.False(t, exists)

		n, err := repo.InsertDailyAggregates(ctx, tx, []weather_entity.DailyAggregate{
			{City: "Tokyo", Date: "2026-10-16", AvgTemp: 21.0, AvgHumidity: 62.33},
			{City: "Doha", Date: "2026-10-16", AvgTemp: 35.5, AvgHumidity: 30},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	inTx(t, conn, func(tx database.Tx) {
		n, err := repo.InsertDailyAggregates(ctx, tx, []weather_entity.DailyAggregate{
			{City: "Tokyo", Date: "2026-10-16", AvgTemp: 99, AvgHumidity: 99},
			{City: "London", Date: "2026-10-16", AvgTemp: 12.1, AvgHumidity: 80},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		exists, err := repo.AggregateExistsForDate(ctx, tx, "2026-10-16")
		require.NoError(t, err)
		assert.True(t, exists)

		cities, err := repo.FindAggregatedCities(ctx, tx, "2026-10-16")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"Tokyo", "Doha", "London"}, cities)
	})

	var avg float64
	require.NoError(t, conn.QueryRowContext(ctx,
		"SELECT avg_temp FROM transformed_weather WHERE city = ? AND date = ?", "Tokyo", "2026-10-16").Scan(&avg))
	assert.Equal(t, 21.0, avg)
	assert.Equal(t, 3, countRows(t, conn, "transformed_weather"))
}

// rowsAffectedErrTx は ExecContext が RowsAffected を返せない Result を返す Tx です。
type rowsAffectedErrTx struct {
	database.Tx
}

type noRowsAffectedResult struct{}

func (noRowsAffectedResult) LastInsertId() (int64, error) { return 0, nil }
func (noRowsAffectedResult) RowsAffected() (int64, error) {
	return 0, errors.New("rows affected not supported")
}

func (rowsAffectedErrTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return noRowsAffectedResult{}, nil
}

func TestInsertPaths_ReturnRowsAffectedError(t *testing.T) {
	repo, err := appRepo.NewSQLWeatherRepository(database.DialectSQLite)
	require.NoError(t, err)
	tx := rowsAffectedErrTx{}

	_, err = repo.InsertRawObservation(context.Background(), tx, weather_entity.StoredRawObservation{
		City: "Doha", FetchDate: "2026-10-16", FetchTime: time.Now(), RawData: `{}`,
	})
	assert.ErrorContains(t, err, "rows affected not supported")

	n, err := repo.InsertDailyAggregates(context.Background(), tx, []weather_entity.DailyAggregate{
		{City: "Doha", Date: "2026-10-16", AvgTemp: 30, AvgHumidity: 40},
	})
	assert.ErrorContains(t, err, "rows affected not supported")
	assert.Equal(t, 0, n)
}
