package testutil

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

const (
	TestUser     = "root"
	TestPassword = "password"
)

// SFTPServer is an in-process SSH server exposing an in-memory SFTP
// filesystem. Relative paths resolve against "/".
type SFTPServer struct {
	Host    string
	Port    int
	HostKey ssh.Signer

	listener      net.Listener
	config        *ssh.ServerConfig
	handlers      sftp.Handlers
	authorized    []ssh.PublicKey
	disableSFTP   bool
	silentSFTP    bool
	accepted      atomic.Int64
	authenticated atomic.Int64

	mu    sync.Mutex
	conns []net.Conn
	wg    sync.WaitGroup
}

type ServerOption func(*SFTPServer)

// WithAuthorizedKey allows public key authentication with key.
func WithAuthorizedKey(key ssh.PublicKey) ServerOption {
	return func(s *SFTPServer) { s.authorized = append(s.authorized, key) }
}

// WithoutSFTPSubsystem makes the server refuse the sftp subsystem request.
func WithoutSFTPSubsystem() ServerOption {
	return func(s *SFTPServer) { s.disableSFTP = true }
}

// WithSilentSFTPSubsystem makes the server accept the sftp subsystem request
// and then never answer on the channel.
func WithSilentSFTPSubsystem() ServerOption {
	return func(s *SFTPServer) { s.silentSFTP = true }
}

// StartSFTPServer starts a server on 127.0.0.1 with a random port. It is shut
// down when the test ends.
func StartSFTPServer(t testing.TB, opts ...ServerOption) *SFTPServer {
	t.Helper()

	s := &SFTPServer{
		HostKey:  GenerateSigner(t),
		handlers: sftp.InMemHandler(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.config = &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == TestUser && string(pass) == TestPassword {
				return nil, nil
			}
			return nil, errors.New("password rejected")
		},
		PublicKeyCallback: func(c ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			for _, k := range s.authorized {
				if c.User() == TestUser && bytes.Equal(k.Marshal(), key.Marshal()) {
					return nil, nil
				}
			}
			return nil, errors.New("public key rejected")
		},
	}
	s.config.AddHostKey(s.HostKey)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s.listener = ln
	addr := ln.Addr().(*net.TCPAddr)
	s.Host = addr.IP.String()
	s.Port = addr.Port

	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

// Addr returns host:port.
func (s *SFTPServer) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// AcceptedConnections counts TCP connections accepted so far.
func (s *SFTPServer) AcceptedConnections() int64 {
	return s.accepted.Load()
}

// AuthenticatedConnections counts completed SSH handshakes.
func (s *SFTPServer) AuthenticatedConnections() int64 {
	return s.authenticated.Load()
}

func (s *SFTPServer) Close() {
	_ = s.listener.Close()
	s.mu.Lock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
	s.mu.Unlock()
	s.wg.Wait()
}

// DropConnections closes every open connection while leaving the listener up.
func (s *SFTPServer) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
}

func (s *SFTPServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.accepted.Add(1)
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *SFTPServer) handleConn(raw net.Conn) {
	defer s.wg.Done()
	sc, chans, reqs, err := ssh.NewServerConn(raw, s.config)
	if err != nil {
		_ = raw.Close()
		return
	}
	defer sc.Close()
	s.authenticated.Add(1)
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		s.wg.Add(1)
		go s.handleSession(channel, requests)
	}
}

func (s *SFTPServer) handleSession(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer s.wg.Done()
	defer channel.Close()
	for req := range requests {
		if req.Type != "subsystem" || s.disableSFTP {
			_ = req.Reply(false, nil)
			continue
		}
		var payload struct{ Name string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
			_ = req.Reply(false, nil)
			continue
		}
		_ = req.Reply(true, nil)

		if s.silentSFTP {
			_, _ = io.Copy(io.Discard, channel)
			return
		}
		server := sftp.NewRequestServer(channel, s.handlers)
		if err := server.Serve(); err != nil && !errors.Is(err, io.EOF) {
			_ = server.Close()
		}
		return
	}
}

// Client opens an SFTP client against the server with password auth. It is
// used to seed and inspect the in-memory filesystem.
func (s *SFTPServer) Client(t testing.TB) *sftp.Client {
	t.Helper()
	conn, err := ssh.Dial("tcp", s.Addr(), &ssh.ClientConfig{
		User:            TestUser,
		Auth:            []ssh.AuthMethod{ssh.Password(TestPassword)},
		HostKeyCallback: ssh.FixedHostKey(s.HostKey.PublicKey()),
	})
	require.NoError(t, err)
	client, err := sftp.NewClient(conn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
		_ = conn.Close()
	})
	return client
}

func (s *SFTPServer) MkdirAll(t testing.TB, dir string) {
	t.Helper()
	require.NoError(t, s.Client(t).MkdirAll(dir))
}

func (s *SFTPServer) WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()
	f, err := s.Client(t).Create(path)
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func (s *SFTPServer) ReadFile(t testing.TB, path string) []byte {
	t.Helper()
	f, err := s.Client(t).Open(path)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return data
}

func (s *SFTPServer) Exists(t testing.TB, path string) bool {
	t.Helper()
	_, err := s.Client(t).Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	require.NoError(t, err)
	return true
}

// SilentListener accepts TCP connections and never speaks SSH.
func SilentListener(t testing.TB) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var held []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			held = append(held, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		for _, c := range held {
			_ = c.Close()
		}
		mu.Unlock()
	})
	return ln.Addr().String()
}

// ClosedPort returns a loopback port with nothing listening on it.
func ClosedPort(t testing.TB) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}
