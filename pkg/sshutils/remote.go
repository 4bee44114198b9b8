package sshutils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lahrah/sftp-file-transfer-solution/pkg/models"
)

// RemoteFiler is the file API a session exposes over its SSH connection.
// Errors for missing paths wrap os.ErrNotExist and refused access wraps
// os.ErrPermission.
type RemoteFiler interface {
	Create(path string) (io.WriteCloser, error)
	Open(path string) (io.ReadCloser, error)
	Stat(path string) (os.FileInfo, error)
	Remove(path string) error
	Close() error
}

// Backend names a RemoteFiler implementation.
type Backend string

const (
	BackendSFTP  Backend = "sftp"
	BackendShell Backend = "shell"
)

// RemoteFilerFunc opens a RemoteFiler on an authenticated client.
type RemoteFilerFunc func(client SSHClienter) (RemoteFiler, error)

// DefaultBackends is the registry consulted by Manager when it has none of
// its own.
var DefaultBackends = map[Backend]RemoteFilerFunc{
	BackendSFTP:  NewSFTPFiler,
	BackendShell: NewShellFiler,
}

// ParseBackend maps a configuration string to a Backend. The empty string
// selects SFTP.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case "", BackendSFTP:
		return BackendSFTP, nil
	case BackendShell:
		return BackendShell, nil
	default:
		return "", models.NewError(models.ErrorKindConfig, fmt.Sprintf("unknown backend %q", s), nil)
	}
}
