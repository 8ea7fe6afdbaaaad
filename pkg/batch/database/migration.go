package database

import (
	"database/sql"
	"errors"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesnowflake "github.com/golang-migrate/migrate/v4/database/snowflake"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"weatheretl/pkg/batch/config"
	"weatheretl/pkg/batch/database/connector"
	"weatheretl/pkg/batch/util/exception"
	"weatheretl/pkg/batch/util/logger"
)

// RunMigrations は fsys 内の dir 以下にある SQL マイグレーションを適用します。
//
// dir: データベースタイプごとのディレクトリ (例: "migrations/postgres")
// migrationsTable: 適用済みバージョンを記録するテーブル名 (フレームワークとアプリケーションで分ける)
//
// 専用の接続を開き、完了後に閉じます。適用するものがなければ成功として扱います。
func RunMigrations(cfg config.DatabaseConfig, fsys fs.FS, dir, migrationsTable string) error {
	logger.Infof("データベースマイグレーションを開始します。DBタイプ: %s, ディレクトリ: %s, テーブル: %s", cfg.Type, dir, migrationsTable)

	db, err := connector.GetSQLDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	driver, err := migrationDriver(cfg, db, migrationsTable)
	if err != nil {
		return exception.NewBatchError("migration", "マイグレーションドライバの作成に失敗しました", err, false, false)
	}

	src, err := iofs.New(fsys, dir)
	if err != nil {
		return exception.NewBatchError("migration", "マイグレーションソースの読み込みに失敗しました", err, false, false)
	}

	m, err := migrate.NewWithInstance("iofs", src, cfg.Type, driver)
	if err != nil {
		return exception.NewBatchError("migration", "マイグレーションインスタンスの作成に失敗しました", err, false, false)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Infof("マイグレーションは不要です。データベースは最新の状態です。(%s)", migrationsTable)
			return nil
		}
		return exception.NewBatchError("migration", "マイグレーションの実行に失敗しました", err, false, false)
	}

	logger.Infof("データベースマイグレーションが正常に完了しました。(%s)", migrationsTable)
	return nil
}

func migrationDriver(cfg config.DatabaseConfig, db *sql.DB, migrationsTable string) (migratedb.Driver, error) {
	dialect, err := DialectFor(cfg.Type)
	if err != nil {
		return nil, err
	}
	switch dialect {
	case DialectPostgres:
		return migratepostgres.WithInstance(db, &migratepostgres.Config{MigrationsTable: migrationsTable})
	case DialectMySQL:
		return migratemysql.WithInstance(db, &migratemysql.Config{MigrationsTable: migrationsTable})
	case DialectSQLite:
		return migratesqlite.WithInstance(db, &migratesqlite.Config{MigrationsTable: migrationsTable})
	case DialectSnowflake:
		return migratesnowflake.WithInstance(db, &migratesnowflake.Config{MigrationsTable: migrationsTable, DatabaseName: cfg.Database})
	default:
		return nil, exception.NewBatchErrorf("migration", "サポートされていないデータベースタイプ: %s", cfg.Type)
	}
}
