package weatherreader

import (
	"context"
	"fmt"
	"io"

	core "weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"

	weather_config "weatheretl/weather/config"
	"weatheretl/weather/fetcher"
)

const (
	// ExecutionContext のキー
	CurrentIndexKey      = "currentIndex"
	FetchFailureCountKey = "fetchFailureCount"
)

// CityWeatherReader は対象都市を順番に Fetcher で取得し、1都市ずつアイテムとして返す Reader です。
// 取得に失敗した都市はスキップ可能なエラーとして返すので、チャンクステップはその都市を飛ばして続行します。
type CityWeatherReader struct {
	config           weather_config.CityReaderConfig
	fetcher          fetcher.WeatherFetcher
	currentIndex     int
	fetchFailures    int
	executionContext core.ExecutionContext
}

var _ core.ItemReader[any] = (*CityWeatherReader)(nil)

func NewCityWeatherReader(cfg weather_config.CityReaderConfig, f fetcher.WeatherFetcher) *CityWeatherReader {
	return &CityWeatherReader{
		config:           cfg,
		fetcher:          f,
		executionContext: core.NewExecutionContext(),
	}
}

// Open は ExecutionContext から読み込み位置を復元します。
func (r *CityWeatherReader) Open(ctx context.Context, ec core.ExecutionContext) error {
	if ec == nil {
		ec = core.NewExecutionContext()
	}
	r.executionContext = ec
	if idx, ok := ec.GetInt(CurrentIndexKey); ok {
		r.currentIndex = idx
		logger.Debugf("CityWeatherReader: ExecutionContext から currentIndex を復元しました: %d", idx)
	}
	if n, ok := ec.GetInt(FetchFailureCountKey); ok {
		r.fetchFailures = n
	}
	r.executionContext.Put(CurrentIndexKey, r.currentIndex)
	r.executionContext.Put(FetchFailureCountKey, r.fetchFailures)
	logger.Debugf("CityWeatherReader をオープンしました。対象都市: %v", r.config.Cities)
	return nil
}

// Read は次の都市の取得結果 (*weather_entity.FetchedWeather) を返します。
// 全ての都市を読み終えると io.EOF を返します。
func (r *CityWeatherReader) Read(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if r.currentIndex >= len(r.config.Cities) {
		return nil, io.EOF
	}
	city := r.config.Cities[r.currentIndex]
	r.currentIndex++
	r.executionContext.Put(CurrentIndexKey, r.currentIndex)

	fetched, err := r.fetcher.Fetch(ctx, city)
	if err != nil {
		r.fetchFailures++
		r.executionContext.Put(FetchFailureCountKey, r.fetchFailures)
		return nil, exception.NewBatchError("city_weather_reader", fmt.Sprintf("%s の天気データを取得できませんでした", city), err, false, true)
	}
	return fetched, nil
}

func (r *CityWeatherReader) Close(ctx context.Context) error {
	logger.Debugf("CityWeatherReader.Close が呼び出されました。取得失敗: %d 件", r.fetchFailures)
	return nil
}
