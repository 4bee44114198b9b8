package sshutils

import (
	"fmt"

	"github.com/lahrah/sftp-file-transfer-solution/pkg/logger"
	"github.com/lahrah/sftp-file-transfer-solution/pkg/models"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// HostKeyPolicy decides how the server's host key is verified. The zero value
// checks against ~/.ssh/known_hosts.
type HostKeyPolicy struct {
	KnownHostsFile        string
	InsecureIgnoreHostKey bool
	// Callback, when set, is used as is and overrides the fields above.
	Callback ssh.HostKeyCallback
}

// HostKeyCallback builds the callback for p. Loading the known_hosts file
// happens here, before any network I/O, so a missing file is a configuration
// problem rather than a connection one.
func (p HostKeyPolicy) HostKeyCallback(l *logger.Logger) (ssh.HostKeyCallback, error) {
	if p.Callback != nil {
		return p.Callback, nil
	}
	if p.InsecureIgnoreHostKey {
		l.Warn("Host key verification disabled")
		//nolint:gosec // explicit opt-in
		return ssh.InsecureIgnoreHostKey(), nil
	}

	file := p.KnownHostsFile
	if file == "" {
		file = DefaultKnownHostsFile
	}
	expanded, err := homedir.Expand(file)
	if err != nil {
		return nil, models.NewError(
			models.ErrorKindConfig,
			fmt.Sprintf("failed to expand known_hosts path %s", file),
			err,
		)
	}

	callback, err := knownhosts.New(expanded)
	if err != nil {
		return nil, models.NewError(
			models.ErrorKindConfig,
			fmt.Sprintf("failed to load known_hosts file %s", expanded),
			err,
		)
	}
	l.Debugf("Verifying host keys against %s", expanded)
	return callback, nil
}
