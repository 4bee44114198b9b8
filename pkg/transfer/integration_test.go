//go:build integration

package transfer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lahrah/sftp-file-transfer-solution/internal/testutil"
	"github.com/lahrah/sftp-file-transfer-solution/pkg/logger"
	"github.com/lahrah/sftp-file-transfer-solution/pkg/models"
	"github.com/lahrah/sftp-file-transfer-solution/pkg/sshutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/ssh"
)

const (
	containerUser     = "testuser"
	containerPassword = "testpass"
	containerSSHPort  = "2222/tcp"
)

func startOpenSSHContainer(t *testing.T, authorizedKey ssh.PublicKey) models.ConnectionTarget {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "linuxserver/openssh-server:latest",
		ExposedPorts: []string{containerSSHPort},
		Env: map[string]string{
			"PUID":            "1000",
			"PGID":            "1000",
			"TZ":              "UTC",
			"USER_NAME":       containerUser,
			"USER_PASSWORD":   containerPassword,
			"PASSWORD_ACCESS": "true",
			"PUBLIC_KEY":      string(ssh.MarshalAuthorizedKey(authorizedKey)),
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(containerSSHPort),
			wait.ForLog("sshd is listening on port").WithStartupTimeout(60*time.Second),
		),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, containerSSHPort)
	require.NoError(t, err)

	target, err := models.NewConnectionTarget(host, port.Int(), containerUser)
	require.NoError(t, err)
	return target
}

func TestOpenSSHServerRoundTrip(t *testing.T) {
	keys := testutil.CreateSSHKeyPairOnDisk(t, "")
	target := startOpenSSHContainer(t, keys.PublicKey)
	client := NewClient(WithLogger(logger.NewTestLogger(t).Logger))

	// The container generates a fresh host key on every start.
	opts := Options{
		Timeout:  30 * time.Second,
		HostKey:  sshutils.HostKeyPolicy{InsecureIgnoreHostKey: true},
		PathMode: models.PathModeHome,
	}

	dir := t.TempDir()
	local := filepath.Join(dir, "test.txt")
	payload := []byte("hello from the integration test\n")
	require.NoError(t, os.WriteFile(local, payload, 0o644))

	tests := []struct {
		name    string
		cfg     sshutils.AuthConfig
		backend sshutils.Backend
	}{
		{name: "password over sftp", cfg: sshutils.AuthConfig{Password: containerPassword}, backend: sshutils.BackendSFTP},
		{name: "key over sftp", cfg: sshutils.AuthConfig{KeyPath: keys.PrivateKeyPath}, backend: sshutils.BackendSFTP},
		{name: "key over shell", cfg: sshutils.AuthConfig{KeyPath: keys.PrivateKeyPath}, backend: sshutils.BackendShell},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			callOpts := opts
			callOpts.Backend = tt.backend
			remote := "roundtrip-" + string(tt.backend) + ".txt"

			up := client.Upload(ctx, target, tt.cfg, local, remote, callOpts)
			require.True(t, up.Succeeded(), up.String())
			assert.Equal(t, int64(len(payload)), up.BytesTransferred)

			back := filepath.Join(dir, "back-"+string(tt.backend)+".txt")
			down := client.Download(ctx, target, tt.cfg, remote, back, callOpts)
			require.True(t, down.Succeeded(), down.String())

			got, err := os.ReadFile(back)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}

	t.Run("missing remote file", func(t *testing.T) {
		result := client.Download(context.Background(), target,
			sshutils.AuthConfig{Password: containerPassword}, "does-not-exist.txt",
			filepath.Join(dir, "never.txt"), opts)
		assert.Equal(t, models.ErrorKindRemoteNotFound, result.Kind())
	})

	t.Run("wrong password", func(t *testing.T) {
		result := client.Upload(context.Background(), target,
			sshutils.AuthConfig{Password: "wrong"}, local, "never.txt", opts)
		assert.Equal(t, models.ErrorKindAuthRejected, result.Kind())
	})
}
