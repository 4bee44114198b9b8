package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger whose output goes to t.Log and is also captured for
// assertions.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger returns a debug-level logger bound to tb.
func NewTestLogger(tb zaptest.TestingT) *TestLogger {
	core, observed := observer.New(zapcore.DebugLevel)
	testCore := zaptest.NewLogger(tb, zaptest.Level(zapcore.DebugLevel)).Core()
	l := zap.New(zapcore.NewTee(testCore, core)).Named(loggerName)
	return &TestLogger{
		Logger:   &Logger{Logger: l},
		observed: observed,
	}
}

// GetLogs returns the captured messages in order.
func (tl *TestLogger) GetLogs() []string {
	entries := tl.observed.All()
	logs := make([]string, 0, len(entries))
	for _, e := range entries {
		logs = append(logs, e.Message)
	}
	return logs
}

// Entries returns the captured entries with their fields.
func (tl *TestLogger) Entries() []observer.LoggedEntry {
	return tl.observed.All()
}

// FilterMessage returns entries whose message matches msg exactly.
func (tl *TestLogger) FilterMessage(msg string) []observer.LoggedEntry {
	return tl.observed.FilterMessage(msg).All()
}
