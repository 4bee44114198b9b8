package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/lahrah/sftp-file-transfer-solution/internal/testutil"
	"github.com/lahrah/sftp-file-transfer-solution/pkg/logger"
	"github.com/lahrah/sftp-file-transfer-solution/pkg/models"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ExecuteCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	defer func() {
		if r := recover(); r != nil {
			logger.Get().LogPanic(r)
			err = fmt.Errorf("panic occurred: %v", r)
		}
	}()

	_, err = root.ExecuteC()
	_ = logger.Get().Sync()

	return buf.String(), err
}

func serverArgs(t *testing.T, s *testutil.SFTPServer) []string {
	t.Helper()
	return []string{
		"--host", s.Host,
		"--port", strconv.Itoa(s.Port),
		"--username", testutil.TestUser,
		"--known-hosts-file", testutil.WriteKnownHosts(t, s.Addr(), s.HostKey.PublicKey()),
		"--log-level", "error",
	}
}

func resetLogger(t *testing.T) {
	t.Cleanup(func() { logger.SetGlobalLogger(nil) })
}

func TestUploadCommand(t *testing.T) {
	resetLogger(t)
	server := testutil.StartSFTPServer(t)
	server.MkdirAll(t, "remote_sftp_test")

	local := filepath.Join(t.TempDir(), "test.txt")
	require.NoError(t, os.WriteFile(local, []byte("hello world"), 0o644))

	args := append([]string{"upload", local, "remote_sftp_test/out.txt", "--password", testutil.TestPassword},
		serverArgs(t, server)...)
	out, err := ExecuteCommand(NewRootCmd(), args...)
	require.NoError(t, err, out)

	assert.Contains(t, out, "11 bytes")
	assert.Equal(t, "hello world", string(server.ReadFile(t, "remote_sftp_test/out.txt")))
}

func TestDownloadCommandMissingRemote(t *testing.T) {
	resetLogger(t)
	server := testutil.StartSFTPServer(t)
	local := filepath.Join(t.TempDir(), "out.txt")

	args := append([]string{"download", "sample.txt", local, "--password", testutil.TestPassword},
		serverArgs(t, server)...)
	out, err := ExecuteCommand(NewRootCmd(), args...)
	require.Error(t, err)

	var transferErr *TransferError
	require.True(t, errors.As(err, &transferErr))
	assert.Equal(t, models.ErrorKindRemoteNotFound, transferErr.Result.Kind())
	assert.Contains(t, out, "transfer.remote_not_found")
	assert.NoFileExists(t, local)
}

func TestConfigFileAndEnvFile(t *testing.T) {
	resetLogger(t)
	server := testutil.StartSFTPServer(t)
	dir := t.TempDir()

	cfg := fmt.Sprintf(`
sftp:
  host: %s
  port: %d
  username: %s
  known_hosts_file: %s
general:
  log_level: error
`, server.Host, server.Port, testutil.TestUser,
		testutil.WriteKnownHosts(t, server.Addr(), server.HostKey.PublicKey()))
	cfgPath := filepath.Join(dir, "sftpxfer.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("SFTP_PASSWORD="+testutil.TestPassword+"\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("SFTP_PASSWORD") })

	local := filepath.Join(dir, "test.txt")
	require.NoError(t, os.WriteFile(local, []byte("from config"), 0o644))

	out, err := ExecuteCommand(NewRootCmd(), "upload", local, "cfg.txt", "--config", cfgPath, "--env-file", envPath)
	require.NoError(t, err, out)
	assert.Equal(t, "from config", string(server.ReadFile(t, "cfg.txt")))
}

func TestMissingHostIsConfigError(t *testing.T) {
	resetLogger(t)
	cfgPath := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("sftp:\n  username: root\n"), 0o600))

	_, err := ExecuteCommand(NewRootCmd(), "upload", "a.txt", "b.txt", "--config", cfgPath, "--password", "pw")
	assert.Equal(t, models.ErrorKindConfig, models.KindOf(err))
}

func TestUploadRequiresTwoArgs(t *testing.T) {
	resetLogger(t)
	_, err := ExecuteCommand(NewRootCmd(), "upload", "only-one")
	assert.Error(t, err)
}

func TestRetryTransfer(t *testing.T) {
	orig := newBackOff
	newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	t.Cleanup(func() { newBackOff = orig })

	tests := []struct {
		name          string
		kind          models.ErrorKind
		retries       uint64
		expectedCalls int
	}{
		{name: "timeout is retried", kind: models.ErrorKindTimeout, retries: 2, expectedCalls: 3},
		{name: "unreachable is retried", kind: models.ErrorKindUnreachable, retries: 1, expectedCalls: 2},
		{name: "connection lost is retried", kind: models.ErrorKindConnectionLost, retries: 3, expectedCalls: 4},
		{name: "auth rejected is not retried", kind: models.ErrorKindAuthRejected, retries: 3, expectedCalls: 1},
		{name: "remote not found is not retried", kind: models.ErrorKindRemoteNotFound, retries: 3, expectedCalls: 1},
		{name: "no retries by default", kind: models.ErrorKindTimeout, retries: 0, expectedCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			result := retryTransfer(context.Background(), logger.NewTestLogger(t).Logger, tt.retries,
				func() models.TransferResult {
					calls++
					return models.Failure(tt.kind, "failed")
				})
			assert.Equal(t, tt.expectedCalls, calls)
			assert.Equal(t, tt.kind, result.Kind())
		})
	}

	t.Run("stops on success", func(t *testing.T) {
		calls := 0
		result := retryTransfer(context.Background(), logger.NewTestLogger(t).Logger, 5,
			func() models.TransferResult {
				calls++
				if calls < 3 {
					return models.Failure(models.ErrorKindUnreachable, "refused")
				}
				return models.Success(11)
			})
		assert.Equal(t, 3, calls)
		assert.True(t, result.Succeeded())
	})
}

func TestFailurePrintsBufferedLogsWhenConsoleIsOff(t *testing.T) {
	resetLogger(t)
	logger.GlobalLoggedBuffer.Reset()
	server := testutil.StartSFTPServer(t)

	cfg := fmt.Sprintf(`
general:
  enable_console_logger: false
  enable_buffer_logger: true
  log_level: debug
sftp:
  host: %s
  port: %d
  username: %s
  password: %s
  known_hosts_file: %s
`, server.Host, server.Port, testutil.TestUser, testutil.TestPassword,
		testutil.WriteKnownHosts(t, server.Addr(), server.HostKey.PublicKey()))
	cfgPath := filepath.Join(t.TempDir(), "sftpxfer.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	out, err := ExecuteCommand(NewRootCmd(), "download", "missing.txt",
		filepath.Join(t.TempDir(), "out.txt"), "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, out, "Transfer failed")
	assert.Contains(t, out, "Connected")
}
