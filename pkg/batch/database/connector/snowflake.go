package connector

import (
	"database/sql"

	"github.com/snowflakedb/gosnowflake"

	"weatheretl/pkg/batch/config"
	"weatheretl/pkg/batch/util/exception"
)

// snowflakeConnector は Snowflake への接続を確立する DBConnector の実装です。
type snowflakeConnector struct{}

// Connect は Snowflake への接続を確立します。
// URL が指定されていなければ個別項目から gosnowflake.DSN で DSN を組み立てます。
func (c *snowflakeConnector) Connect(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn, err := snowflakeDSN(cfg)
	if err != nil {
		return nil, err
	}
	return openAndPing("snowflake", "Snowflake", dsn, cfg.ConnectionPool)
}

func snowflakeDSN(cfg config.DatabaseConfig) (string, error) {
	if cfg.URL != "" {
		return cfg.URL, nil
	}
	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Database:  cfg.Database,
		Schema:    cfg.Schema,
		Warehouse: cfg.Warehouse,
		Role:      cfg.Role,
	})
	if err != nil {
		return "", exception.NewBatchError("database", "Snowflake の DSN 組み立てに失敗しました", err, false, false)
	}
	return dsn, nil
}

func init() {
	RegisterConnector("snowflake", &snowflakeConnector{})
}
