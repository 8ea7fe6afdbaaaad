package serialization

import (
	"encoding/json"
	"errors"

	"weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/util/exception"
)

const module = "serialization"

// MarshalExecutionContext は ExecutionContext を JSON 文字列にシリアライズします。
// nil の場合は空の JSON オブジェクトを返します。
func MarshalExecutionContext(ec core.ExecutionContext) (string, error) {
	if ec == nil {
		return "{}", nil
	}
	data, err := json.Marshal(ec)
	if err != nil {
		return "", exception.NewBatchError(module, "ExecutionContext のシリアライズに失敗しました", err, false, false)
	}
	return string(data), nil
}

// UnmarshalExecutionContext は JSON 文字列を ExecutionContext にデシリアライズします。
// 数値は float64 として復元されるため、取り出しには ExecutionContext.GetInt を使います。
func UnmarshalExecutionContext(data string) (core.ExecutionContext, error) {
	ec := core.NewExecutionContext()
	if data == "" || data == "null" {
		return ec, nil
	}
	if err := json.Unmarshal([]byte(data), &ec); err != nil {
		return nil, exception.NewBatchError(module, "ExecutionContext のデシリアライズに失敗しました", err, false, false)
	}
	return ec, nil
}

// MarshalJobParameters は JobParameters を JSON 文字列にシリアライズします。
func MarshalJobParameters(params core.JobParameters) (string, error) {
	if params.Params == nil {
		return "{}", nil
	}
	data, err := json.Marshal(params.Params)
	if err != nil {
		return "", exception.NewBatchError(module, "JobParameters のシリアライズに失敗しました", err, false, false)
	}
	return string(data), nil
}

// UnmarshalJobParameters は JSON 文字列を JobParameters にデシリアライズします。
func UnmarshalJobParameters(data string) (core.JobParameters, error) {
	params := core.NewJobParameters()
	if data == "" || data == "null" {
		return params, nil
	}
	if err := json.Unmarshal([]byte(data), &params.Params); err != nil {
		return core.JobParameters{}, exception.NewBatchError(module, "JobParameters のデシリアライズに失敗しました", err, false, false)
	}
	return params, nil
}

// MarshalFailures は []error をエラーメッセージの JSON 配列にシリアライズします。
func MarshalFailures(failures []error) (string, error) {
	msgs := make([]string, len(failures))
	for i, err := range failures {
		msgs[i] = err.Error()
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return "", exception.NewBatchError(module, "Failures のシリアライズに失敗しました", err, false, false)
	}
	return string(data), nil
}

// UnmarshalFailures はエラーメッセージの JSON 配列を []error に戻します。
func UnmarshalFailures(data string) ([]error, error) {
	if data == "" || data == "null" {
		return []error{}, nil
	}
	var msgs []string
	if err := json.Unmarshal([]byte(data), &msgs); err != nil {
		return nil, exception.NewBatchError(module, "Failures のデシリアライズに失敗しました", err, false, false)
	}
	failures := make([]error, len(msgs))
	for i, msg := range msgs {
		failures[i] = errors.New(msg)
	}
	return failures, nil
}
