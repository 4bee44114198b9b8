package logger

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LogFilePermissions = 0600
	InfoLogLevel       = "info"
	LastLogLines       = 100
	loggerName         = "sftpxfer"
)

var (
	globalLogger *zap.Logger
	loggerMutex  sync.RWMutex

	GlobalEnableConsoleLogger bool
	GlobalEnableFileLogger    bool
	GlobalEnableBufferLogger  bool
	GlobalLogPath             string = "/tmp/sftpxfer.log"
	GlobalLogLevel            string = InfoLogLevel
	GlobalInstantSync         bool
	GlobalLoggedBuffer        syncBuilder
	GlobalLogFile             *os.File
)

// Logger wraps a zap logger with the printf-style helpers used across the
// code base.
type Logger struct {
	*zap.Logger
}

// syncBuilder is a goroutine-safe strings.Builder used as the in-memory sink.
type syncBuilder struct {
	mu sync.Mutex
	b  strings.Builder
}

func (s *syncBuilder) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuilder) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func (s *syncBuilder) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.b.Reset()
}

// InitLoggerOutputs loads output settings from viper, falling back to the
// defaults below.
func InitLoggerOutputs() {
	GlobalEnableConsoleLogger = true
	GlobalEnableFileLogger = false
	GlobalEnableBufferLogger = false
	GlobalLogLevel = InfoLogLevel
	GlobalInstantSync = false

	if viper.IsSet("general.log_path") {
		GlobalLogPath = viper.GetString("general.log_path")
		GlobalEnableFileLogger = GlobalLogPath != ""
	}
	if viper.IsSet("general.log_level") {
		GlobalLogLevel = viper.GetString("general.log_level")
	}
	if viper.IsSet("general.enable_console_logger") {
		GlobalEnableConsoleLogger = viper.GetBool("general.enable_console_logger")
	}
	if viper.IsSet("general.enable_file_logger") {
		GlobalEnableFileLogger = viper.GetBool("general.enable_file_logger")
	}
	if viper.IsSet("general.enable_buffer_logger") {
		GlobalEnableBufferLogger = viper.GetBool("general.enable_buffer_logger")
	}
	GlobalInstantSync = viper.GetBool("general.instant_sync")
}

// initProduction builds the global logger from the Global* settings. Must be
// called with loggerMutex held.
func initProduction() {
	level := zap.NewAtomicLevelAt(getZapLevel(GlobalLogLevel))

	var cores []zapcore.Core
	if GlobalEnableConsoleLogger {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleEncoderConfig()),
			zapcore.Lock(os.Stderr),
			level,
		))
	}
	if GlobalEnableFileLogger {
		if fileCore, err := createFileCore(level, false); err == nil {
			cores = append(cores, fileCore)
		}
	}
	if GlobalEnableBufferLogger {
		cores = append(cores, createBufferCore(level))
	}

	globalLogger = zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Named(loggerName)
}

func baseEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     customTimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := baseEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeCaller = nil
	cfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("15:04:05"))
	}
	return cfg
}

func createFileCore(level zap.AtomicLevel, json bool) (zapcore.Core, error) {
	logFile, err := os.OpenFile(
		GlobalLogPath,
		os.O_APPEND|os.O_CREATE|os.O_WRONLY,
		LogFilePermissions,
	)
	if err != nil {
		return nil, err
	}
	GlobalLogFile = logFile

	var encoder zapcore.Encoder
	if json {
		encoder = zapcore.NewJSONEncoder(baseEncoderConfig())
	} else {
		encoder = zapcore.NewConsoleEncoder(baseEncoderConfig())
	}
	return zapcore.NewCore(encoder, zapcore.AddSync(logFile), level), nil
}

func createBufferCore(level zap.AtomicLevel) zapcore.Core {
	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(baseEncoderConfig()),
		zapcore.AddSync(&GlobalLoggedBuffer),
		level,
	)
}

func (l *Logger) syncIfNeeded() {
	if GlobalInstantSync {
		_ = l.Sync()
	}
}

func (l *Logger) log(level zapcore.Level, msg string, fields ...zap.Field) {
	if l == nil || l.Logger == nil {
		return
	}
	if ce := l.Logger.Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
	l.syncIfNeeded()
}

func (l *Logger) Debug(msg string) { l.log(zapcore.DebugLevel, msg) }
func (l *Logger) Info(msg string)  { l.log(zapcore.InfoLevel, msg) }
func (l *Logger) Warn(msg string)  { l.log(zapcore.WarnLevel, msg) }
func (l *Logger) Error(msg string) { l.log(zapcore.ErrorLevel, msg) }

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) DebugWithFields(msg string, fields ...zap.Field) {
	l.log(zapcore.DebugLevel, msg, fields...)
}

func (l *Logger) InfoWithFields(msg string, fields ...zap.Field) {
	l.log(zapcore.InfoLevel, msg, fields...)
}

func (l *Logger) WarnWithFields(msg string, fields ...zap.Field) {
	l.log(zapcore.WarnLevel, msg, fields...)
}

func (l *Logger) ErrorWithFields(msg string, fields ...zap.Field) {
	l.log(zapcore.ErrorLevel, msg, fields...)
}

// With returns a child logger carrying the given fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	if l == nil || l.Logger == nil {
		return NewNopLogger()
	}
	return &Logger{Logger: l.Logger.With(fields...)}
}

func customTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(fmt.Sprintf("[%s]", t.Format("2006-01-02 15:04:05")))
}

func getZapLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Get returns the process-wide logger, building it on first use.
func Get() *Logger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	if globalLogger == nil {
		initProduction()
	}
	return &Logger{Logger: globalLogger}
}

func SetGlobalLogger(l *Logger) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	if l == nil {
		globalLogger = nil
		return
	}
	globalLogger = l.Logger
}

func NewNopLogger() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// LogPanic records a recovered panic with its stack on the global logger.
func LogPanic(rec interface{}) {
	Get().LogPanic(rec)
}

// LogPanic records a recovered panic with its stack.
func (l *Logger) LogPanic(rec interface{}) {
	l.ErrorWithFields("PANIC",
		zap.String("panic", fmt.Sprint(rec)),
		zap.String("stack", string(debug.Stack())),
	)
	if l != nil && l.Logger != nil {
		_ = l.Sync()
	}
}

// RecoverAndLog runs f, logging and re-raising any panic.
func RecoverAndLog(f func()) {
	defer func() {
		if r := recover(); r != nil {
			LogPanic(r)
			panic(r)
		}
	}()
	f()
}

// GetLastLines returns the last n lines written to the in-memory sink.
func GetLastLines(n int) []string {
	if n <= 0 {
		return []string{}
	}
	lines := strings.Split(strings.TrimRight(GlobalLoggedBuffer.String(), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return []string{}
	}
	if n >= len(lines) {
		return lines
	}
	return lines[len(lines)-n:]
}
