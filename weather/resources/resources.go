package resources

import (
	"embed"
	"io/fs"
)

//go:embed application.yaml
var ApplicationYAML []byte

//go:embed job.yaml
var JobYAML []byte

//go:embed migrations
var migrations embed.FS

// Migrations は "postgres", "mysql", "sqlite", "snowflake" ディレクトリを直下に持つ
// アプリケーションのマイグレーションです。
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}
