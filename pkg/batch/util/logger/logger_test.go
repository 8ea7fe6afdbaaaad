package logger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"weatheretl/pkg/batch/util/logger"
)

func TestInit_WritesToFileWithLevelFilter(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "weather.log")

	require.NoError(t, logger.Init(logger.Options{Level: "WARN", File: logPath}))
	logger.Infof("これは出力されない %d", 1)
	logger.Errorf("ETL already completed for %s on %s", "Doha", "2024-05-01")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	content := string(data)

	assert.NotContains(t, content, "これは出力されない")
	assert.Contains(t, content, " - ERROR - ETL already completed for Doha on 2024-05-01")

	// 後続テストのために標準出力のみへ戻す
	require.NoError(t, logger.Init(logger.Options{Level: "INFO", Stdout: true}))
}

func TestUseCore_ObservesRecords(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := logger.UseCore(core)
	defer restore()

	logger.Debugf("debug %s", "a")
	logger.Warnf("warn %s", "b")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "debug a", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "warn b", entries[1].Message)
}
