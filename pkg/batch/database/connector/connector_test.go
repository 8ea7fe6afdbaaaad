package connector

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weatheretl/pkg/batch/config"
)

func TestGetSQLDB_SQLite(t *testing.T) {
	cfg := config.DatabaseConfig{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "weather.db"),
		ConnectionPool: config.ConnectionPoolConfig{
			MaxOpenConns: 10,
		},
	}

	db, err := GetSQLDB(cfg)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 1, db.Stats().MaxOpenConnections)

	var one int
	require.NoError(t, db.QueryRow("SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
}

func TestGetSQLDB_UnknownType(t *testing.T) {
	_, err := GetSQLDB(config.DatabaseConfig{Type: "redshift"})
	assert.Error(t, err)
}

func TestSnowflakeDSN(t *testing.T) {
	dsn, err := snowflakeDSN(config.DatabaseConfig{
		Type:      "snowflake",
		Account:   "acme-xy12345",
		User:      "etl",
		Password:  "secret",
		Database:  "WEATHER",
		Schema:    "PUBLIC",
		Warehouse: "ETL_WH",
	})
	require.NoError(t, err)
	assert.Contains(t, dsn, "etl:secret@")
	assert.Contains(t, dsn, "database=WEATHER")
	assert.Contains(t, dsn, "warehouse=ETL_WH")

	dsn, err = snowflakeDSN(config.DatabaseConfig{Type: "snowflake", URL: "etl:pw@acme/WEATHER/PUBLIC"})
	require.NoError(t, err)
	assert.Equal(t, "etl:pw@acme/WEATHER/PUBLIC", dsn)
}
