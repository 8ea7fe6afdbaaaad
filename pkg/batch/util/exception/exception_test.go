package exception_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"weatheretl/pkg/batch/util/exception"
)

var errSentinel = errors.New("sentinel")

func TestBatchError_ErrorAndUnwrap(t *testing.T) {
	be := exception.NewBatchError("reader", "読み込みに失敗しました", errSentinel, false, true)

	assert.Equal(t, "[reader] 読み込みに失敗しました: sentinel", be.Error())
	assert.ErrorIs(t, be, errSentinel)
	assert.True(t, be.IsSkippable())
	assert.False(t, be.IsRetryable())
	assert.NotEmpty(t, be.StackTrace)
}

func TestBatchErrorf_NoCause(t *testing.T) {
	be := exception.NewBatchErrorf("jsl_loader", "ジョブ '%s' が見つかりません", "weatherEtlJob")

	assert.Equal(t, "[jsl_loader] ジョブ 'weatherEtlJob' が見つかりません", be.Error())
	assert.Nil(t, be.Unwrap())
	assert.False(t, be.IsSkippable())
}

func TestIsSkippable_ThroughWrapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		skippable bool
		retryable bool
	}{
		{"plain error", errSentinel, false, false},
		{"skippable batch error", exception.NewBatchError("p", "m", nil, false, true), true, false},
		{"wrapped retryable", fmt.Errorf("outer: %w", exception.NewBatchError("w", "m", nil, true, false)), false, true},
		{"nil", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.skippable, exception.IsSkippable(tt.err))
			assert.Equal(t, tt.retryable, exception.IsRetryable(tt.err))
		})
	}
}
