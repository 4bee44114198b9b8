package sshutils

import "time"

const (
	DefaultSSHPort = 22
	// DefaultConnectTimeout bounds dial plus authentication when the caller
	// does not set one.
	DefaultConnectTimeout = 15 * time.Second
	DefaultKnownHostsFile = "~/.ssh/known_hosts"

	keepAliveRequest = "keepalive@openssh.com"
)
