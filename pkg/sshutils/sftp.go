package sshutils

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/sftp"
)

// SFTPClientCreator opens the SFTP subsystem. Tests replace it to simulate a
// server without the subsystem.
var SFTPClientCreator = func(client SSHClienter) (*sftp.Client, error) {
	raw := client.GetClient()
	if raw == nil {
		return nil, fmt.Errorf("SSH client not connected")
	}
	return sftp.NewClient(raw)
}

type sftpFiler struct {
	client *sftp.Client
}

// NewSFTPFiler opens an SFTP session on client.
func NewSFTPFiler(client SSHClienter) (RemoteFiler, error) {
	c, err := SFTPClientCreator(client)
	if err != nil {
		return nil, fmt.Errorf("failed to start sftp subsystem: %w", err)
	}
	return &sftpFiler{client: c}, nil
}

func (f *sftpFiler) Create(path string) (io.WriteCloser, error) {
	file, err := f.client.Create(path)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (f *sftpFiler) Open(path string) (io.ReadCloser, error) {
	file, err := f.client.Open(path)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (f *sftpFiler) Stat(path string) (os.FileInfo, error) {
	return f.client.Stat(path)
}

func (f *sftpFiler) Remove(path string) error {
	return f.client.Remove(path)
}

func (f *sftpFiler) Close() error {
	return f.client.Close()
}
