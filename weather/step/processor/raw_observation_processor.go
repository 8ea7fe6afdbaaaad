package weatherprocessor

import (
	"context"
	"fmt"

	core "weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/util/exception"

	weather_entity "weatheretl/weather/domain/entity"
)

// RawObservationProcessor は取得したレスポンスを型付きの構造に変換して検証します。
// main.temp / main.humidity が無いか数値でなければスキップ可能なエラーを返します。
type RawObservationProcessor struct{}

var _ core.ItemProcessor[any, any] = (*RawObservationProcessor)(nil)

func NewRawObservationProcessor() *RawObservationProcessor {
	return &RawObservationProcessor{}
}

// Process は *weather_entity.FetchedWeather を *weather_entity.RawObservation に変換します。
func (p *RawObservationProcessor) Process(ctx context.Context, item any) (any, error) {
	fetched, ok := item.(*weather_entity.FetchedWeather)
	if !ok {
		return nil, exception.NewBatchError("raw_observation_processor", fmt.Sprintf("予期しない入力アイテムの型です: %T", item), nil, false, false)
	}

	payload, err := weather_entity.ParsePayload(fetched.Raw)
	if err != nil {
		return nil, exception.NewBatchError("raw_observation_processor", fmt.Sprintf("%s のレスポンスが不正です", fetched.City), err, false, true)
	}

	return &weather_entity.RawObservation{
		City:    fetched.City,
		Payload: payload,
		Raw:     fetched.Raw,
	}, nil
}
