package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options はロガーの出力先とレベルを表します。
// config パッケージへの依存を避けるため、ここで独自に定義します。
type Options struct {
	Level  string // DEBUG, INFO, WARN, ERROR, FATAL
	File   string // 空の場合はファイル出力なし
	Stdout bool
}

var (
	mu      sync.RWMutex
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sugar   = newSugar(zapcore.NewCore(newEncoder(), zapcore.Lock(os.Stdout), level))
	logFile *os.File
)

func newEncoder() zapcore.Encoder {
	encCfg := zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05,000"),
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " - ",
	}
	return zapcore.NewConsoleEncoder(encCfg)
}

func newSugar(core zapcore.Core) *zap.SugaredLogger {
	return zap.New(core).Sugar()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Init はログの出力先 (標準出力とログファイル) とレベルを設定します。
// 既に開いているログファイルがあれば閉じてから差し替えます。
func Init(opts Options) error {
	SetLogLevel(opts.Level)

	var cores []zapcore.Core
	enc := newEncoder()
	if opts.Stdout {
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level))
	}

	var f *os.File
	if opts.File != "" {
		var err error
		f, err = os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("ログファイル '%s' のオープンに失敗しました: %w", opts.File, err)
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(f), level))
	}

	if len(cores) == 0 {
		cores = append(cores, zapcore.NewNopCore())
	}

	mu.Lock()
	prev := logFile
	sugar = newSugar(zapcore.NewTee(cores...))
	logFile = f
	mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// UseCore は任意の zapcore.Core にログを向けます。テストでの観測用です。
// 戻り値の関数を呼ぶと元のロガーに戻ります。
func UseCore(core zapcore.Core) func() {
	mu.Lock()
	prev := sugar
	sugar = newSugar(core)
	mu.Unlock()
	return func() {
		mu.Lock()
		sugar = prev
		mu.Unlock()
	}
}

// SetLogLevel はログレベルを設定します。
func SetLogLevel(lvl string) {
	switch strings.ToUpper(lvl) {
	case "DEBUG":
		level.SetLevel(zapcore.DebugLevel)
	case "INFO", "":
		level.SetLevel(zapcore.InfoLevel)
	case "WARN":
		level.SetLevel(zapcore.WarnLevel)
	case "ERROR":
		level.SetLevel(zapcore.ErrorLevel)
	case "FATAL":
		level.SetLevel(zapcore.FatalLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
		current().Warnf("不明なログレベル '%s' が指定されました。INFO レベルで続行します。", lvl)
	}
}

// Close はバッファをフラッシュし、ログファイルを閉じます。
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	_ = sugar.Sync()
	if logFile == nil {
		return nil
	}
	// 閉じたファイルに書き込まないよう標準出力のみに戻す
	sugar = newSugar(zapcore.NewCore(newEncoder(), zapcore.Lock(os.Stdout), level))
	err := logFile.Close()
	logFile = nil
	return err
}

// Debugf は DEBUG レベルのログを出力します。
func Debugf(format string, v ...interface{}) {
	current().Debugf(format, v...)
}

// Infof は INFO レベルのログを出力します。
func Infof(format string, v ...interface{}) {
	current().Infof(format, v...)
}

// Warnf は WARN レベルのログを出力します。
func Warnf(format string, v ...interface{}) {
	current().Warnf(format, v...)
}

// Errorf は ERROR レベルのログを出力します。
func Errorf(format string, v ...interface{}) {
	current().Errorf(format, v...)
}

// Fatalf は FATAL レベルのログを出力し、プログラムを終了します。
func Fatalf(format string, v ...interface{}) {
	current().Fatalf(format, v...)
}
