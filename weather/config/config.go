package weather_config

import (
	"time"

	"weatheretl/pkg/batch/config"
)

// FetcherConfig は Fetcher に必要な設定のみを持つ構造体です。
type FetcherConfig struct {
	APIEndpoint string
	APIKey      string
	Units       string
	// 0 はタイムアウトなし
	RequestTimeout         time.Duration
	MaxConsecutiveFailures int
	OpenTimeout            time.Duration
}

// CityReaderConfig は CityWeatherReader に必要な設定です。
type CityReaderConfig struct {
	Cities []string
}

// RawWriterConfig は RawObservationWriter に必要な設定です。
type RawWriterConfig struct {
	Location *time.Location
}

// AggregatorConfig は DailyAggregateTasklet に必要な設定です。
type AggregatorConfig struct {
	Location  *time.Location
	SkipScope string
}

const (
	SkipScopeDay  = "day"
	SkipScopeCity = "city"
)

func NewFetcherConfig(cfg *config.Config) FetcherConfig {
	return FetcherConfig{
		APIEndpoint:            cfg.Batch.APIEndpoint,
		APIKey:                 cfg.Batch.APIKey,
		Units:                  cfg.Weather.Units,
		RequestTimeout:         time.Duration(cfg.Weather.RequestTimeoutSeconds) * time.Second,
		MaxConsecutiveFailures: cfg.Weather.Breaker.MaxConsecutiveFailures,
		OpenTimeout:            time.Duration(cfg.Weather.Breaker.OpenTimeoutSeconds) * time.Second,
	}
}

// LoadLocation は system.timezone を *time.Location に変換します。
// 空ならプロセスのローカルタイムゾーンを使います。
func LoadLocation(cfg *config.Config) (*time.Location, error) {
	if cfg.System.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(cfg.System.Timezone)
}
