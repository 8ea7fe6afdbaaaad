package weather_entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout は fetch_date / date 列に書き込む暦日の書式です。
const DateLayout = "2006-01-02"

var (
	// ErrFetchFailed は天気 API からデータを取得できなかったことを表します。
	ErrFetchFailed = errors.New("weather fetch failed")
	// ErrMalformedPayload は main.temp / main.humidity が欠落しているか数値でないことを表します。
	ErrMalformedPayload = errors.New("malformed weather payload")
)

// FlexFloat は JSON の数値と数値文字列のどちらも受け付ける float64 です。
type FlexFloat float64

// UnmarshalJSON は 21.5 と "21.5" の両方を float64 として読み込みます。
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	s := string(bytes.TrimSpace(data))
	if len(s) > 0 && s[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		s = unquoted
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("数値ではありません: %s", string(data))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("有限の数値ではありません: %s", string(data))
	}
	*f = FlexFloat(v)
	return nil
}

// MainReadings は OpenWeatherMap レスポンスの "main" オブジェクトのうち集計に使う項目です。
type MainReadings struct {
	Temp     *FlexFloat `json:"temp" validate:"required"`
	Humidity *FlexFloat `json:"humidity" validate:"required"`
}

// WeatherPayload は OpenWeatherMap "current weather" レスポンスの型付き表現です。
// 元のレスポンス全体は RawObservation.Raw に保持します。
type WeatherPayload struct {
	Name string        `json:"name"`
	Main *MainReadings `json:"main" validate:"required"`
}

// Temperature は丸め済み (小数点以下2桁) の気温を返します。
func (p *WeatherPayload) Temperature() float64 {
	return Round2(float64(*p.Main.Temp))
}

// Humidity は丸め済み (小数点以下2桁) の湿度を返します。
func (p *WeatherPayload) Humidity() float64 {
	return Round2(float64(*p.Main.Humidity))
}

var validate = validator.New()

// ParsePayload は raw を WeatherPayload にデコードし、必須項目を検証します。
// 失敗した場合は ErrMalformedPayload をラップしたエラーを返します。
func ParsePayload(raw []byte) (*WeatherPayload, error) {
	var p WeatherPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := validate.Struct(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &p, nil
}

// FetchedWeather は Fetcher が返す1都市分の取得結果です。
type FetchedWeather struct {
	City string
	Raw  json.RawMessage
}

// RawObservation は検証済みで raw_weather に書き込む直前のアイテムです。
type RawObservation struct {
	City    string
	Payload *WeatherPayload
	Raw     json.RawMessage
}

// StoredRawObservation は raw_weather の1行です。
type StoredRawObservation struct {
	ID        int64
	City      string
	FetchDate string
	FetchTime time.Time
	RawData   string
}

// Reading は集計対象となる1観測分の気温と湿度です。
type Reading struct {
	City     string
	Temp     float64
	Humidity float64
}

// DailyAggregate は transformed_weather の1行です。
type DailyAggregate struct {
	City        string
	Date        string
	AvgTemp     float64
	AvgHumidity float64
}

// Round2 は小数点以下2桁に丸めます。
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// AggregateDaily は都市ごとに気温と湿度の算術平均を求め、date を付けて返します。
// 結果は都市の初出順です。
func AggregateDaily(readings []Reading, date string) []DailyAggregate {
	type acc struct {
		temp, humidity float64
		n              int
	}
	var order []string
	sums := make(map[string]*acc)
	for _, r := range readings {
		a, ok := sums[r.City]
		if !ok {
			a = &acc{}
			sums[r.City] = a
			order = append(order, r.City)
		}
		a.temp += r.Temp
		a.humidity += r.Humidity
		a.n++
	}

	out := make([]DailyAggregate, 0, len(order))
	for _, city := range order {
		a := sums[city]
		out = append(out, DailyAggregate{
			City:        city,
			Date:        date,
			AvgTemp:     Round2(a.temp / float64(a.n)),
			AvgHumidity: Round2(a.humidity / float64(a.n)),
		})
	}
	return out
}
