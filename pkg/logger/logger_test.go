package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitializeWithBufferAndFile(t *testing.T) {
	t.Cleanup(func() {
		SetGlobalLogger(nil)
		GlobalLoggedBuffer.Reset()
	})
	GlobalLoggedBuffer.Reset()

	logPath := filepath.Join(t.TempDir(), "sftpxfer.log")
	err := Initialize(Config{
		Level:        "debug",
		FilePath:     logPath,
		Format:       "json",
		EnableBuffer: true,
	})
	require.NoError(t, err)

	l := Get()
	l.Debug("debug line")
	l.Info("uploaded 11 bytes")
	l.InfoWithFields("with fields", zap.String("remote", "out.txt"))
	require.NoError(t, l.Sync())

	lines := GetLastLines(LastLogLines)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "debug line")
	assert.Contains(t, lines[1], "uploaded 11 bytes")
	assert.Contains(t, lines[2], "out.txt")
	assert.Len(t, GetLastLines(1), 1)
	assert.Empty(t, GetLastLines(0))

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"uploaded 11 bytes"`)
}

func TestInitializeLevelFiltersDebug(t *testing.T) {
	t.Cleanup(func() {
		SetGlobalLogger(nil)
		GlobalLoggedBuffer.Reset()
	})
	GlobalLoggedBuffer.Reset()

	require.NoError(t, Initialize(Config{Level: "warn", EnableBuffer: true}))
	l := Get()
	l.Info("hidden")
	l.Warn("shown")

	lines := GetLastLines(LastLogLines)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "shown")
}

func TestInitializeBadFilePath(t *testing.T) {
	t.Cleanup(func() { SetGlobalLogger(nil) })
	err := Initialize(Config{FilePath: filepath.Join(t.TempDir(), "missing", "dir", "log")})
	assert.ErrorContains(t, err, "failed to open log file")
}

func TestTestLoggerCapturesMessages(t *testing.T) {
	tl := NewTestLogger(t)
	tl.Info("connect attempt")
	tl.With(zap.String("host", "127.0.0.1")).WarnWithFields("connect failure", zap.String("kind", "connection.timeout"))

	assert.Equal(t, []string{"connect attempt", "connect failure"}, tl.GetLogs())
	entries := tl.FilterMessage("connect failure")
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "127.0.0.1", fields["host"])
	assert.Equal(t, "connection.timeout", fields["kind"])
	assert.Equal(t, zap.WarnLevel, tl.Entries()[1].Level)
}

func TestRecoverAndLogReraises(t *testing.T) {
	t.Cleanup(func() {
		SetGlobalLogger(nil)
		GlobalLoggedBuffer.Reset()
	})
	GlobalLoggedBuffer.Reset()
	require.NoError(t, Initialize(Config{Level: "error", EnableBuffer: true}))

	assert.PanicsWithValue(t, "boom", func() {
		RecoverAndLog(func() { panic("boom") })
	})
	lines := GetLastLines(LastLogLines)
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "PANIC")
}

func TestNilAndNopLoggersAreSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info("nothing")
		l.With(zap.Int("n", 1)).Error("still nothing")
		NewNopLogger().Error("ignored")
	})
}

func TestContextRoundTrip(t *testing.T) {
	tl := NewTestLogger(t)
	ctx := IntoContext(context.Background(), tl.Logger)
	assert.Same(t, tl.Logger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestGetZapLevel(t *testing.T) {
	assert.Equal(t, "debug", getZapLevel("DEBUG").String())
	assert.Equal(t, "error", getZapLevel("error").String())
	assert.Equal(t, "info", getZapLevel("nonsense").String())
}
