package connector

import (
	"database/sql"

	_ "modernc.org/sqlite" // SQLite ドライバ (cgo 不要)

	"weatheretl/pkg/batch/config"
)

// sqliteConnector はローカル実行とテスト用の SQLite 接続を確立します。
type sqliteConnector struct{}

// Connect は SQLite ファイルを開きます。
// SQLite は単一ライターのため、プール設定に関わらず接続数を 1 に固定します。
func (c *sqliteConnector) Connect(cfg config.DatabaseConfig) (*sql.DB, error) {
	pool := cfg.ConnectionPool
	pool.MaxOpenConns = 1
	return openAndPing("sqlite", "SQLite", cfg.ConnectionString(), pool)
}

func init() {
	RegisterConnector("sqlite", &sqliteConnector{})
}
