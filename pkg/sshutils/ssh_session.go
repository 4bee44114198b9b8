package sshutils

import (
	"fmt"
	"io"

	"golang.org/x/crypto/ssh"
)

// SSHSessioner is the subset of *ssh.Session used by the shell backend.
type SSHSessioner interface {
	Run(cmd string) error
	Output(cmd string) ([]byte, error)
	StdinPipe() (io.WriteCloser, error)
	StdoutPipe() (io.Reader, error)
	SetStderr(w io.Writer)
	Start(cmd string) error
	Wait() error
	Close() error
}

type SSHSessionWrapper struct {
	Session *ssh.Session
}

func (s *SSHSessionWrapper) Run(cmd string) error {
	if s.Session == nil {
		return fmt.Errorf("SSH session is nil")
	}
	return s.Session.Run(cmd)
}

func (s *SSHSessionWrapper) Output(cmd string) ([]byte, error) {
	if s.Session == nil {
		return nil, fmt.Errorf("SSH session is nil")
	}
	return s.Session.Output(cmd)
}

func (s *SSHSessionWrapper) StdinPipe() (io.WriteCloser, error) {
	return s.Session.StdinPipe()
}

func (s *SSHSessionWrapper) StdoutPipe() (io.Reader, error) {
	return s.Session.StdoutPipe()
}

func (s *SSHSessionWrapper) SetStderr(w io.Writer) {
	s.Session.Stderr = w
}

func (s *SSHSessionWrapper) Start(cmd string) error {
	return s.Session.Start(cmd)
}

func (s *SSHSessionWrapper) Wait() error {
	return s.Session.Wait()
}

func (s *SSHSessionWrapper) Close() error {
	return s.Session.Close()
}
