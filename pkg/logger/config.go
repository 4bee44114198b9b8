package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the configuration for the logger
type Config struct {
	Level         string `yaml:"level"          json:"level"          mapstructure:"level"`
	FilePath      string `yaml:"file_path"      json:"file_path"      mapstructure:"file_path"`
	Format        string `yaml:"format"         json:"format"         mapstructure:"format"`
	WithTrace     bool   `yaml:"with_trace"     json:"with_trace"     mapstructure:"with_trace"`
	EnableConsole bool   `yaml:"enable_console" json:"enable_console" mapstructure:"enable_console"`
	EnableBuffer  bool   `yaml:"enable_buffer"  json:"enable_buffer"  mapstructure:"enable_buffer"`
	InstantSync   bool   `yaml:"instant_sync"   json:"instant_sync"   mapstructure:"instant_sync"`
}

// Initialize sets up the global logger with the given configuration
func Initialize(config Config) error {
	GlobalEnableConsoleLogger = config.EnableConsole
	GlobalEnableFileLogger = config.FilePath != ""
	GlobalEnableBufferLogger = config.EnableBuffer
	GlobalInstantSync = config.InstantSync

	if config.FilePath != "" {
		GlobalLogPath = config.FilePath
	}

	logLevel := config.Level
	if logLevel == "" {
		logLevel = InfoLogLevel
	}
	GlobalLogLevel = logLevel
	level := zap.NewAtomicLevelAt(getZapLevel(logLevel))

	var cores []zapcore.Core

	if config.EnableConsole {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleEncoderConfig()),
			zapcore.Lock(os.Stderr),
			level,
		))
	}

	if config.FilePath != "" {
		fileCore, err := createFileCore(level, config.Format == "json")
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		cores = append(cores, fileCore)
	}

	if config.EnableBuffer {
		cores = append(cores, createBufferCore(level))
	}

	opts := []zap.Option{zap.AddCaller()}
	if config.WithTrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	l := zap.New(zapcore.NewTee(cores...), opts...).Named(loggerName)
	SetGlobalLogger(&Logger{Logger: l})

	return nil
}
