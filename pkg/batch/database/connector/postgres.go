package connector

import (
	"database/sql"

	_ "github.com/lib/pq" // PostgreSQL ドライバ

	"weatheretl/pkg/batch/config"
)

// postgresConnector は PostgreSQL データベースへの接続を確立する DBConnector の実装です。
type postgresConnector struct{}

// Connect は PostgreSQL データベースへの接続を確立し、*sql.DB を返します。
func (c *postgresConnector) Connect(cfg config.DatabaseConfig) (*sql.DB, error) {
	return openAndPing("postgres", "PostgreSQL", cfg.ConnectionString(), cfg.ConnectionPool)
}

func init() {
	RegisterConnector("postgres", &postgresConnector{})
}
