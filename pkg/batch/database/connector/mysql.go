package connector

import (
	"database/sql"

	"github.com/go-sql-driver/mysql"

	"weatheretl/pkg/batch/config"
	"weatheretl/pkg/batch/util/exception"
)

// mysqlConnector は MySQL データベースへの接続を確立する DBConnector の実装です。
type mysqlConnector struct{}

// Connect は MySQL データベースへの接続を確立し、*sql.DB を返します。
// DATE / DATETIME を time.Time で受け取るため parseTime を必ず有効にします。
func (c *mysqlConnector) Connect(cfg config.DatabaseConfig) (*sql.DB, error) {
	mc, err := mysql.ParseDSN(cfg.ConnectionString())
	if err != nil {
		return nil, exception.NewBatchError("database", "MySQL の DSN が不正です", err, false, false)
	}
	mc.ParseTime = true
	return openAndPing("mysql", "MySQL", mc.FormatDSN(), cfg.ConnectionPool)
}

func init() {
	RegisterConnector("mysql", &mysqlConnector{})
}
