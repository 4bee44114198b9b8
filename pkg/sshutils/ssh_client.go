package sshutils

import (
	"fmt"

	"golang.org/x/crypto/ssh"
)

// SSHClienter is the subset of *ssh.Client the connection layer depends on.
type SSHClienter interface {
	NewSession() (SSHSessioner, error)
	GetClient() *ssh.Client
	IsConnected() bool
	Close() error
}

type SSHClientWrapper struct {
	*ssh.Client
}

func (w *SSHClientWrapper) NewSession() (SSHSessioner, error) {
	if w.Client == nil {
		return nil, fmt.Errorf("SSH client not connected")
	}
	session, err := w.Client.NewSession()
	if err != nil {
		return nil, err
	}
	return &SSHSessionWrapper{Session: session}, nil
}

func (w *SSHClientWrapper) GetClient() *ssh.Client {
	return w.Client
}

func (w *SSHClientWrapper) Close() error {
	if w.Client == nil {
		return nil
	}
	return w.Client.Close()
}

// IsConnected sends a keepalive request. A server that rejects the request
// type is still considered alive; only a transport error means the link is
// gone.
func (w *SSHClientWrapper) IsConnected() bool {
	if w.Client == nil {
		return false
	}
	_, _, err := w.Client.SendRequest(keepAliveRequest, true, nil)
	return err == nil
}
