// Package logging provides zap logger helpers.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TimeLayout prefixes every run log line; health checks match on its date part.
const TimeLayout = "2006-01-02 15:04:05"

// Config selects the console flavour and the append-only run log file.
type Config struct {
	Development bool
	File        string
}

// New builds a zap.Logger that tees console output with the run log file.
// The returned close func syncs the logger and releases the file.
func New(cfg Config) (*zap.Logger, func() error, error) {
	cores := []zapcore.Core{consoleCore(cfg.Development)}

	var file *os.File
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o750); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open run log: %w", err)
		}
		file = f
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(FileEncoderConfig()),
			zapcore.Lock(f),
			zapcore.InfoLevel,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	closeFn := func() error {
		_ = logger.Sync() //nolint:errcheck // stderr sync fails on some terminals
		if file == nil {
			return nil
		}
		if err := file.Close(); err != nil {
			return fmt.Errorf("close run log: %w", err)
		}
		return nil
	}
	return logger, closeFn, nil
}

// FileEncoderConfig renders "2006-01-02 15:04:05 LEVEL message {fields}" lines.
func FileEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		NameKey:          "logger",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       zapcore.TimeEncoderOfLayout(TimeLayout),
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " ",
	}
}

func consoleCore(development bool) zapcore.Core {
	if development {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.TimeKey = "ts"
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), zapcore.DebugLevel)
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	return zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(os.Stderr), zapcore.InfoLevel)
}
