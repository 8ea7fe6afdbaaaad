package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"weatheretl/pkg/batch/util/logger"
)

// ConfigFileEnv は埋め込み設定を上書きする追加設定ファイルのパスを指す環境変数です。
const ConfigFileEnv = "CONFIG_FILE"

// BytesConfigLoader はバイトスライスから設定をロードする ConfigLoader の実装です。
type BytesConfigLoader struct {
	data []byte
}

// NewBytesConfigLoader は新しい BytesConfigLoader のインスタンスを作成します。
func NewBytesConfigLoader(data []byte) *BytesConfigLoader {
	return &BytesConfigLoader{data: data}
}

// Load は次の順で設定を重ねてロードし、最後にバリデーションを行います。
// デフォルト値 → 埋め込み YAML → CONFIG_FILE (yaml / toml) → 環境変数
func (l *BytesConfigLoader) Load() (*Config, error) {
	cfg := NewConfig()

	if err := yaml.Unmarshal(l.data, cfg); err != nil {
		return nil, fmt.Errorf("YAML設定のパースに失敗しました: %w", err)
	}

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := loadOverrideFile(path, cfg); err != nil {
			return nil, err
		}
		logger.Infof("追加の設定ファイル '%s' をロードしました。", path)
	}

	loadEnvVars(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	cfg.EmbeddedConfig = l.data
	return cfg, nil
}

// loadOverrideFile は拡張子に応じて YAML または TOML の設定ファイルを cfg に重ねます。
func loadOverrideFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイル '%s' の読み込みに失敗しました: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("設定ファイル '%s' (YAML) のパースに失敗しました: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("設定ファイル '%s' (TOML) のパースに失敗しました: %w", path, err)
		}
	default:
		return fmt.Errorf("設定ファイル '%s' の形式がサポートされていません (yaml / toml のみ)", path)
	}
	return nil
}

var validate = validator.New()

// Validate は構造体タグに基づいて設定値を検証します。
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("設定値が不正です: %w", err)
	}
	if cfg.Database.Type == "sqlite" && cfg.Database.URL == "" && cfg.Database.Path == "" {
		return fmt.Errorf("設定値が不正です: sqlite には database.path または DATABASE_URL が必要です")
	}
	return nil
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warnf("%s の値 '%s' が無効です。デフォルト値または設定ファイルの値を使用します。", key, v)
		return
	}
	*dst = n
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// 環境変数で個別の設定値を上書きする関数
func loadEnvVars(cfg *Config) {
	// Database 設定
	envString("DATABASE_TYPE", &cfg.Database.Type)
	envString("DATABASE_HOST", &cfg.Database.Host)
	envInt("DATABASE_PORT", &cfg.Database.Port)
	envString("DATABASE_DATABASE", &cfg.Database.Database)
	envString("DATABASE_USER", &cfg.Database.User)
	envString("DATABASE_PASSWORD", &cfg.Database.Password)
	envString("DATABASE_SSLMODE", &cfg.Database.Sslmode)
	envString("DATABASE_PATH", &cfg.Database.Path)
	// DB_URL は古いデプロイメントとの互換用。DATABASE_URL が優先されます。
	envString("DB_URL", &cfg.Database.URL)
	envString("DATABASE_URL", &cfg.Database.URL)
	envInt("DATABASE_MAX_OPEN_CONNS", &cfg.Database.ConnectionPool.MaxOpenConns)
	envInt("DATABASE_MAX_IDLE_CONNS", &cfg.Database.ConnectionPool.MaxIdleConns)
	envInt("DATABASE_CONN_MAX_LIFETIME_SECONDS", &cfg.Database.ConnectionPool.ConnMaxLifetimeSeconds)

	// Batch 設定
	envString("BATCH_API_ENDPOINT", &cfg.Batch.APIEndpoint)
	envString("API_KEY", &cfg.Batch.APIKey)
	envString("BATCH_API_KEY", &cfg.Batch.APIKey)
	envString("BATCH_JOB_NAME", &cfg.Batch.JobName)
	envInt("BATCH_CHUNK_SIZE", &cfg.Batch.ChunkSize)
	envInt("BATCH_SKIP_LIMIT", &cfg.Batch.ItemSkip.SkipLimit)

	// System 設定
	envString("SYSTEM_TIMEZONE", &cfg.System.Timezone)
	envString("SYSTEM_LOGGING_LEVEL", &cfg.System.Logging.Level)
	envString("SYSTEM_LOGGING_FILE", &cfg.System.Logging.File)

	// Weather 設定
	if v := os.Getenv("WEATHER_RUN_ALL_CITIES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warnf("WEATHER_RUN_ALL_CITIES の値 '%s' が無効です。", v)
		} else {
			cfg.Weather.RunAllCities = b
		}
	}
	envString("WEATHER_AGGREGATION_SKIP_SCOPE", &cfg.Weather.Aggregation.SkipScope)
}
