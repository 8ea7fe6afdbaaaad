package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	query := "INSERT INTO raw_weather (city, fetch_time, fetch_date, raw_data) VALUES (?, ?, ?, ?)"

	assert.Equal(t,
		"INSERT INTO raw_weather (city, fetch_time, fetch_date, raw_data) VALUES ($1, $2, $3, $4)",
		DialectPostgres.Rebind(query))
	assert.Equal(t, query, DialectMySQL.Rebind(query))
	assert.Equal(t, query, DialectSQLite.Rebind(query))
	assert.Equal(t, query, DialectSnowflake.Rebind(query))
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("Postgres")
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, d)

	d, err = DialectFor("sqlite")
	require.NoError(t, err)
	assert.Equal(t, DialectSQLite, d)

	_, err = DialectFor("redshift")
	assert.Error(t, err)
}
