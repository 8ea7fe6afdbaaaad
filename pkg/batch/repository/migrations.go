package repository

import "embed"

// Migrations はバッチメタデータテーブルのマイグレーションです。
// データベースタイプごとに migrations/<type> 以下に配置されています。
//
//go:embed migrations
var Migrations embed.FS

// MigrationsTable はバッチメタデータ用のマイグレーション管理テーブル名です。
const MigrationsTable = "batch_schema_migrations"
