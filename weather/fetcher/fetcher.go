package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"

	"weatheretl/pkg/batch/util/logger"
	weather_config "weatheretl/weather/config"
	weather_entity "weatheretl/weather/domain/entity"
)

// WeatherFetcher は都市名から現在の天気を取得するインターフェースです。
type WeatherFetcher interface {
	Fetch(ctx context.Context, city string) (*weather_entity.FetchedWeather, error)
}

// Fetcher は OpenWeatherMap の current weather API クライアントです。
// リトライは行いません。連続失敗が閾値に達するとサーキットブレーカーが開き、
// 以降の都市は API を呼ばずに失敗します。
type Fetcher struct {
	config  weather_config.FetcherConfig
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

var _ WeatherFetcher = (*Fetcher)(nil)

// StatusError は API が 200 以外を返したことを表します。
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// isProviderHealthy は err がブレーカーの失敗に数えないものかを判定します。
// 4xx は都市ごとの問題 (city not found など) なので API 自体の障害とはみなしません。
func isProviderHealthy(err error) bool {
	if err == nil {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500
}

func NewFetcher(cfg weather_config.FetcherConfig, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	if cfg.Units == "" {
		cfg.Units = "metric"
	}
	threshold := uint32(cfg.MaxConsecutiveFailures)
	if threshold == 0 {
		threshold = 1
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "openweathermap",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: isProviderHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("サーキットブレーカー '%s' の状態が %s から %s に変わったよ。", name, from, to)
		},
	})

	return &Fetcher{config: cfg, client: client, circuit: cb}
}

// Fetch は city の現在の天気を1回だけ取得します。
// 200 以外のレスポンスはボディをエラーログに出し、ErrFetchFailed をラップして返します。
func (f *Fetcher) Fetch(ctx context.Context, city string) (*weather_entity.FetchedWeather, error) {
	result, err := f.circuit.Execute(func() (interface{}, error) {
		return f.do(ctx, city)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", weather_entity.ErrFetchFailed, city, err)
	}
	body, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: %s: unexpected result type %T", weather_entity.ErrFetchFailed, city, result)
	}
	return &weather_entity.FetchedWeather{City: city, Raw: json.RawMessage(body)}, nil
}

func (f *Fetcher) do(ctx context.Context, city string) ([]byte, error) {
	values := url.Values{}
	values.Set("q", city)
	values.Set("appid", f.config.APIKey)
	values.Set("units", f.config.Units)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.config.APIEndpoint+"?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}

	logger.Infof("ETL Started for %s", city)
	resp, err := f.client.Do(req)
	if err != nil {
		logger.Errorf("Error fetching weather data for %s: %v", city, err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		logger.Errorf("Error fetching weather data for %s: %s", city, string(body))
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}
	if !json.Valid(body) {
		logger.Errorf("Error fetching weather data for %s: invalid JSON body", city)
		return nil, fmt.Errorf("invalid JSON body")
	}
	return body, nil
}
