package database

import (
	"strconv"
	"strings"

	"weatheretl/pkg/batch/util/exception"
)

// Dialect は接続先データベースの SQL 方言です。
type Dialect string

const (
	DialectPostgres  Dialect = "postgres"
	DialectMySQL     Dialect = "mysql"
	DialectSQLite    Dialect = "sqlite"
	DialectSnowflake Dialect = "snowflake"
)

// DialectFor は設定のデータベースタイプから Dialect を決定します。
func DialectFor(dbType string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(dbType)); d {
	case DialectPostgres, DialectMySQL, DialectSQLite, DialectSnowflake:
		return d, nil
	default:
		return "", exception.NewBatchErrorf("database", "サポートされていないデータベースタイプ: %s", dbType)
	}
}

// Rebind は '?' プレースホルダを方言に合わせて書き換えます。
// PostgreSQL のみ $1, $2, ... 形式に変換し、それ以外はそのまま返します。
// クエリ内の文字列リテラルに '?' を含めないこと。
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
