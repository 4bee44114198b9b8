package sshutils

import (
	"context"
	"net"

	"golang.org/x/crypto/ssh"
)

// NetDialer opens the TCP connection. *net.Dialer satisfies it.
type NetDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// HandshakeFunc runs the SSH handshake and authentication over conn.
type HandshakeFunc func(conn net.Conn, addr string, config *ssh.ClientConfig) (SSHClienter, error)

func DefaultHandshake(conn net.Conn, addr string, config *ssh.ClientConfig) (SSHClienter, error) {
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		return nil, err
	}
	return &SSHClientWrapper{Client: ssh.NewClient(c, chans, reqs)}, nil
}
