package writer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"weatheretl/pkg/batch/database"
	core "weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/util/exception"
	"weatheretl/pkg/batch/util/logger"
	weather_config "weatheretl/weather/config"
	weather_entity "weatheretl/weather/domain/entity"
	weatherwriter "weatheretl/weather/step/writer"
)

// MockWeatherRepository は appRepo.WeatherRepository インターフェースのモック実装です。
type MockWeatherRepository struct {
	mock.Mock
}

func (m *MockWeatherRepository) InsertRawObservation(ctx context.Context, tx database.Tx, row weather_entity.StoredRawObservation) (bool, error) {
	args := m.Called(ctx, tx, row)
	return args.Bool(0), args.Error(1)
}

func (m *MockWeatherRepository) FindRawObservationsByDate(ctx context.Context, tx database.Tx, date string) ([]weather_entity.StoredRawObservation, error) {
	args := m.Called(ctx, tx, date)
	return args.Get(0).([]weather_entity.StoredRawObservation), args.Error(1)
}

func (m *MockWeatherRepository) AggregateExistsForDate(ctx context.Context, tx database.Tx, date string) (bool, error) {
	args := m.Called(ctx, tx, date)
	return args.Bool(0), args.Error(1)
}

func (m *MockWeatherRepository) FindAggregatedCities(ctx context.Context, tx database.Tx, date string) ([]string, error) {
	args := m.Called(ctx, tx, date)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockWeatherRepository) InsertDailyAggregates(ctx context.Context, tx database.Tx, rows []weather_entity.DailyAggregate) (int, error) {
	args := m.Called(ctx, tx, rows)
	return args.Int(0), args.Error(1)
}

func TestRawObservationWriter_WriteScenarios(t *testing.T) {
	doha := time.FixedZone("AST", 3*60*60)
	// UTC では 10/15 だが Doha では 10/16
	fixedNow := time.Date(2026, 10, 15, 22, 30, 0, 0, time.UTC)
	obs := &weather_entity.RawObservation{City: "Doha", Raw: []byte(`{"main":{"temp":30,"humidity":40}}`)}

	matchRow := mock.MatchedBy(func(row weather_entity.StoredRawObservation) bool {
		return row.City == "Doha" && row.FetchDate == "2026-10-16" && row.RawData == string(obs.Raw)
	})

	tests := []struct {
		name           string
		inputItems     []any
		mockSetup      func(*MockWeatherRepository)
		wantDuplicates int
		wantLogLevel   zapcore.Level
		wantLogMsg     string
		expectedError  bool
		isSkippable    bool
	}{
		{
			name:       "Inserted",
			inputItems: []any{obs},
			mockSetup: func(m *MockWeatherRepository) {
				m.On("InsertRawObservation", mock.Anything, mock.Anything, matchRow).Return(true, nil).Once()
			},
			wantLogLevel: zapcore.InfoLevel,
			wantLogMsg:   "Fetched raw data from Doha: 2026-10-16 01:30:00.000000",
		},
		{
			name:       "Duplicate Skip",
			inputItems: []any{obs},
			mockSetup: func(m *MockWeatherRepository) {
				m.On("InsertRawObservation", mock.Anything, mock.Anything, matchRow).Return(false, nil).Once()
			},
			wantDuplicates: 1,
			wantLogLevel:   zapcore.ErrorLevel,
			wantLogMsg:     "ETL already completed for Doha on 2026-10-16",
		},
		{
			name:       "Database Error",
			inputItems: []any{obs},
			mockSetup: func(m *MockWeatherRepository) {
				m.On("InsertRawObservation", mock.Anything, mock.Anything, matchRow).Return(false, errors.New("db connection lost")).Once()
			},
			expectedError: true,
		},
		{
			name:          "Invalid Input Item Type (Skippable)",
			inputItems:    []any{"invalid_item"},
			mockSetup:     func(m *MockWeatherRepository) {},
			expectedError: true,
			isSkippable:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obsCore, logs := observer.New(zapcore.DebugLevel)
			restore := logger.UseCore(obsCore)
			defer restore()

			mockRepo := new(MockWeatherRepository)
			tt.mockSetup(mockRepo)

			w := weatherwriter.NewRawObservationWriter(mockRepo, weather_config.RawWriterConfig{Location: doha}, func() time.Time { return fixedNow })
			ec := core.NewExecutionContext()
			require.NoError(t, w.Open(context.Background(), ec))

			err := w.Write(context.Background(), nil, tt.inputItems)

			if tt.expectedError {
				require.Error(t, err)
				var be *exception.BatchError
				require.ErrorAs(t, err, &be)
				assert.Equal(t, tt.isSkippable, be.IsSkippable())
			} else {
				require.NoError(t, err)
				found := logs.FilterMessage(tt.wantLogMsg).All()
				require.Len(t, found, 1)
				assert.Equal(t, tt.wantLogLevel, found[0].Level)
			}
			n, _ := ec.GetInt(weatherwriter.DuplicateCountKey)
			assert.Equal(t, tt.wantDuplicates, n)
			mockRepo.AssertExpectations(t)
		})
	}
}
