package config

import (
	"fmt"
	"net/url"
	"strings"
)

// EmbeddedConfig は main.go から渡される埋め込み設定 (application.yaml) の内容です。
type EmbeddedConfig []byte

// ConnectionPoolConfig はデータベースコネクションプールの設定を保持します。
type ConnectionPoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns" toml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns           int `yaml:"max_idle_conns" toml:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetimeSeconds int `yaml:"conn_max_lifetime_seconds" toml:"conn_max_lifetime_seconds" validate:"gte=0"`
}

type DatabaseConfig struct {
	Type string `yaml:"type" toml:"type" validate:"required,oneof=postgres mysql sqlite snowflake"`
	// URL が指定されている場合は個別項目より優先されます (DB_URL / DATABASE_URL)。
	URL      string `yaml:"url" toml:"url"`
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port" validate:"gte=0,lte=65535"`
	Database string `yaml:"database" toml:"database"`
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password" toml:"password"`
	Sslmode  string `yaml:"sslmode" toml:"sslmode"`
	// sqlite 用のファイルパス
	Path string `yaml:"path" toml:"path"`
	// snowflake 用
	Account   string `yaml:"account" toml:"account"`
	Schema    string `yaml:"schema" toml:"schema"`
	Warehouse string `yaml:"warehouse" toml:"warehouse"`
	Role      string `yaml:"role" toml:"role"`

	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool" toml:"connection_pool"`
}

// ConnectionString はドライバに渡す DSN を組み立てます。
// snowflake は connector 側で gosnowflake.DSN を使って組み立てるため、URL 未指定時は空文字列を返します。
func (c DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	switch strings.ToLower(c.Type) {
	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
			Path:   "/" + c.Database,
		}
		if c.Sslmode != "" {
			u.RawQuery = "sslmode=" + url.QueryEscape(c.Sslmode)
		}
		return u.String()
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			c.User, c.Password, c.Host, c.Port, c.Database)
	case "sqlite":
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_time_format=sqlite", c.Path)
	default:
		return ""
	}
}

// ItemSkipConfig はアイテムレベルのスキップ設定です。
type ItemSkipConfig struct {
	SkipLimit int `yaml:"skip_limit" toml:"skip_limit" validate:"gte=0"`
}

type BatchConfig struct {
	APIEndpoint string         `yaml:"api_endpoint" toml:"api_endpoint" validate:"required,url"`
	APIKey      string         `yaml:"api_key" toml:"api_key"`
	JobName     string         `yaml:"job_name" toml:"job_name" validate:"required"`
	ChunkSize   int            `yaml:"chunk_size" toml:"chunk_size" validate:"gte=1"`
	ItemSkip    ItemSkipConfig `yaml:"item_skip" toml:"item_skip"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR FATAL debug info warn error fatal"`
	File   string `yaml:"file" toml:"file"`
	Stdout bool   `yaml:"stdout" toml:"stdout"`
}

type SystemConfig struct {
	Timezone string        `yaml:"timezone" toml:"timezone" validate:"omitempty,timezone"`
	Logging  LoggingConfig `yaml:"logging" toml:"logging"`
}

// BreakerConfig は天気 API 呼び出しを保護するサーキットブレーカーの設定です。
type BreakerConfig struct {
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures" toml:"max_consecutive_failures" validate:"gte=1"`
	OpenTimeoutSeconds     int `yaml:"open_timeout_seconds" toml:"open_timeout_seconds" validate:"gte=0"`
}

type AggregationConfig struct {
	// day: 当日分の集計が1件でもあればスキップ / city: 集計済みの都市のみスキップ
	SkipScope string `yaml:"skip_scope" toml:"skip_scope" validate:"oneof=day city"`
}

type WeatherConfig struct {
	Units        string   `yaml:"units" toml:"units" validate:"oneof=standard metric imperial"`
	Cities       []string `yaml:"cities" toml:"cities" validate:"dive,required"`
	DefaultCity  string   `yaml:"default_city" toml:"default_city" validate:"required"`
	RunAllCities bool     `yaml:"run_all_cities" toml:"run_all_cities"`
	// 0 はタイムアウトなし
	RequestTimeoutSeconds int               `yaml:"request_timeout_seconds" toml:"request_timeout_seconds" validate:"gte=0"`
	Breaker               BreakerConfig     `yaml:"breaker" toml:"breaker"`
	Aggregation           AggregationConfig `yaml:"aggregation" toml:"aggregation"`
}

// TargetCities は今回の実行で取得対象となる都市を返します。
func (w WeatherConfig) TargetCities() []string {
	if w.RunAllCities && len(w.Cities) > 0 {
		return append([]string(nil), w.Cities...)
	}
	return []string{w.DefaultCity}
}

type Config struct {
	Database       DatabaseConfig `yaml:"database" toml:"database"`
	Batch          BatchConfig    `yaml:"batch" toml:"batch"`
	System         SystemConfig   `yaml:"system" toml:"system"`
	Weather        WeatherConfig  `yaml:"weather" toml:"weather"`
	EmbeddedConfig EmbeddedConfig `yaml:"-" toml:"-"`
}

// DefaultCities は OpenWeatherMap から取得する既定の都市一覧です。
var DefaultCities = []string{"Doha", "New York", "Tokyo", "London", "Sydney"}

// NewConfig はデフォルト値を設定した Config を返します。
func NewConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Type: "postgres",
		},
		Batch: BatchConfig{
			APIEndpoint: "https://api.openweathermap.org/data/2.5/weather",
			ChunkSize:   1,
			ItemSkip:    ItemSkipConfig{SkipLimit: 10},
		},
		System: SystemConfig{
			Logging:  LoggingConfig{Level: "INFO", File: "weather.log", Stdout: true},
		},
		Weather: WeatherConfig{
			Units:       "metric",
			Cities:      append([]string(nil), DefaultCities...),
			DefaultCity: "Doha",
			Breaker: BreakerConfig{
				MaxConsecutiveFailures: 3,
				OpenTimeoutSeconds:     60,
			},
			Aggregation: AggregationConfig{SkipScope: "day"},
		},
	}
}
