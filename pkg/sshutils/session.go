package sshutils

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lahrah/sftp-file-transfer-solution/pkg/models"
)

// Session is an authenticated connection with an open file API. It is owned
// by whoever called Connect and must be handed back to Release exactly once;
// extra Release calls are ignored.
type Session struct {
	Target         models.ConnectionTarget
	CredentialKind models.CredentialKind
	ConnectedAt    time.Time
	Backend        Backend

	client      SSHClienter
	files       RemoteFiler
	releaseOnce sync.Once
	released    atomic.Bool
}

// NewSession assembles a Session around an already-open client and file API.
func NewSession(
	target models.ConnectionTarget,
	kind models.CredentialKind,
	backend Backend,
	client SSHClienter,
	files RemoteFiler,
) *Session {
	return &Session{
		Target:         target,
		CredentialKind: kind,
		ConnectedAt:    time.Now(),
		Backend:        backend,
		client:         client,
		files:          files,
	}
}

func (s *Session) Files() RemoteFiler {
	return s.files
}

// IsAlive reports whether the session is unreleased and, when it has an SSH
// client, whether that client still answers.
func (s *Session) IsAlive() bool {
	if s == nil || s.released.Load() {
		return false
	}
	if s.client == nil {
		return true
	}
	return s.client.IsConnected()
}

// Interrupt closes the SSH connection so that blocked I/O on the file API
// returns. The session must still be released.
func (s *Session) Interrupt() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Session) Released() bool {
	return s.released.Load()
}

// close shuts the file API then the SSH client. It runs at most once.
func (s *Session) close() (first bool, err error) {
	s.releaseOnce.Do(func() {
		first = true
		s.released.Store(true)
		var errs []error
		if s.files != nil {
			if cerr := s.files.Close(); cerr != nil {
				errs = append(errs, fmt.Errorf("close %s backend: %w", s.Backend, cerr))
			}
		}
		if s.client != nil {
			if cerr := s.client.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
				errs = append(errs, fmt.Errorf("close ssh client: %w", cerr))
			}
		}
		err = errors.Join(errs...)
	})
	return first, err
}
