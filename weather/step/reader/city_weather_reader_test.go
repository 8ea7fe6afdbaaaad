package weatherreader_test

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/util/exception"
	weather_config "weatheretl/weather/config"
	weather_entity "weatheretl/weather/domain/entity"
	weatherreader "weatheretl/weather/step/reader"
)

type stubFetcher struct {
	failing map[string]bool
	calls   []string
}

func (f *stubFetcher) Fetch(ctx context.Context, city string) (*weather_entity.FetchedWeather, error) {
	f.calls = append(f.calls, city)
	if f.failing[city] {
		return nil, fmt.Errorf("%w: %s", weather_entity.ErrFetchFailed, city)
	}
	return &weather_entity.FetchedWeather{City: city, Raw: []byte(`{"main":{"temp":1,"humidity":2}}`)}, nil
}

func TestCityWeatherReader_ReadsEachCityOnce(t *testing.T) {
	ctx := context.Background()
	f := &stubFetcher{failing: map[string]bool{"London": true}}
	r := weatherreader.NewCityWeatherReader(weather_config.CityReaderConfig{Cities: []string{"Doha", "London", "Tokyo"}}, f)
	ec := core.NewExecutionContext()
	require.NoError(t, r.Open(ctx, ec))

	item, err := r.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Doha", item.(*weather_entity.FetchedWeather).City)

	_, err = r.Read(ctx)
	require.Error(t, err)
	assert.True(t, exception.IsSkippable(err))
	assert.ErrorIs(t, err, weather_entity.ErrFetchFailed)

	item, err = r.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Tokyo", item.(*weather_entity.FetchedWeather).City)

	_, err = r.Read(ctx)
	assert.ErrorIs(t, err, io.EOF)

	assert.Equal(t, []string{"Doha", "London", "Tokyo"}, f.calls)
	n, _ := ec.GetInt(weatherreader.FetchFailureCountKey)
	assert.Equal(t, 1, n)
	idx, _ := ec.GetInt(weatherreader.CurrentIndexKey)
	assert.Equal(t, 3, idx)
	assert.NoError(t, r.Close(ctx))
}

func TestCityWeatherReader_ResumesFromExecutionContext(t *testing.T) {
	ctx := context.Background()
	f := &stubFetcher{}
	r := weatherreader.NewCityWeatherReader(weather_config.CityReaderConfig{Cities: []string{"Doha", "Tokyo"}}, f)
	ec := core.NewExecutionContext()
	ec.Put(weatherreader.CurrentIndexKey, 1)
	require.NoError(t, r.Open(ctx, ec))

	item, err := r.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Tokyo", item.(*weather_entity.FetchedWeather).City)
	_, err = r.Read(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestCityWeatherReader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := weatherreader.NewCityWeatherReader(weather_config.CityReaderConfig{Cities: []string{"Doha"}}, &stubFetcher{})
	require.NoError(t, r.Open(ctx, core.NewExecutionContext()))

	_, err := r.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
