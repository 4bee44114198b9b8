package sshutils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/lahrah/sftp-file-transfer-solution/pkg/logger"
	"github.com/lahrah/sftp-file-transfer-solution/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// ConnectOptions tunes a single Connect call.
type ConnectOptions struct {
	// Timeout bounds dial plus authentication. Zero means DefaultConnectTimeout.
	Timeout time.Duration
	HostKey HostKeyPolicy
	// Backend selects the file API. Empty means BackendSFTP.
	Backend Backend
	// OnPhase is told when the dial starts and when authentication starts.
	OnPhase func(models.TransferState)
}

func (o ConnectOptions) withDefaults() ConnectOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultConnectTimeout
	}
	if o.Backend == "" {
		o.Backend = BackendSFTP
	}
	return o
}

func (o ConnectOptions) phase(state models.TransferState) {
	if o.OnPhase != nil {
		o.OnPhase(state)
	}
}

// Connector opens and releases sessions.
type Connector interface {
	Connect(
		ctx context.Context,
		target models.ConnectionTarget,
		cred models.Credential,
		opts ConnectOptions,
	) (*Session, error)
	Release(session *Session)
}

// Manager establishes authenticated sessions. The zero value is ready to use;
// every field is a seam for tests.
type Manager struct {
	Dialer    NetDialer
	Handshake HandshakeFunc
	KeyReader KeyReader
	Backends  map[Backend]RemoteFilerFunc
	Logger    *logger.Logger
}

func NewManager(l *logger.Logger) *Manager {
	return &Manager{Logger: l}
}

func (m *Manager) log() *logger.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return logger.Get()
}

func (m *Manager) dialer() NetDialer {
	if m.Dialer != nil {
		return m.Dialer
	}
	return &net.Dialer{}
}

func (m *Manager) handshake() HandshakeFunc {
	if m.Handshake != nil {
		return m.Handshake
	}
	return DefaultHandshake
}

func (m *Manager) backend(b Backend) (RemoteFilerFunc, error) {
	backends := m.Backends
	if backends == nil {
		backends = DefaultBackends
	}
	fn, ok := backends[b]
	if !ok {
		return nil, models.NewError(models.ErrorKindConfig, fmt.Sprintf("unknown backend %q", b), nil)
	}
	return fn, nil
}

// Connect dials target, authenticates with cred and opens the file API.
// Failures are *models.Error values of the connection or config category.
// Key material and host key configuration are checked before any socket is
// opened.
func (m *Manager) Connect(
	ctx context.Context,
	target models.ConnectionTarget,
	cred models.Credential,
	opts ConnectOptions,
) (*Session, error) {
	opts = opts.withDefaults()
	l := m.log().With(
		zap.String("target", target.String()),
		zap.String("credential", string(cred.Kind)),
	)

	if err := target.Validate(); err != nil {
		return nil, err
	}
	openFiles, err := m.backend(opts.Backend)
	if err != nil {
		return nil, err
	}
	auth, err := authMethods(m.KeyReader, cred)
	if err != nil {
		l.WarnWithFields("Connect failure", zap.Error(err))
		return nil, err
	}
	hostKeyCallback, err := opts.HostKey.HostKeyCallback(l)
	if err != nil {
		l.WarnWithFields("Connect failure", zap.Error(err))
		return nil, err
	}

	clientConfig := &ssh.ClientConfig{
		User:            target.Username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         opts.Timeout,
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	addr := target.Address()
	l.InfoWithFields("Connect attempt", zap.Duration("timeout", opts.Timeout))
	opts.phase(models.StateConnecting)

	conn, err := m.dialer().DialContext(ctx, "tcp", addr)
	if err != nil {
		cerr := classifyDialError(ctx, err)
		l.WarnWithFields("Connect failure", zap.Error(cerr))
		return nil, cerr
	}

	opts.phase(models.StateAuthenticating)
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// Until the backend is open, the deadline and ctx both bound every read
	// on conn. Closing conn unblocks the handshake and the subsystem request.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	client, err := m.handshake()(conn, addr, clientConfig)
	if err != nil {
		stop()
		_ = conn.Close()
		cerr := classifyHandshakeError(ctx, err)
		l.WarnWithFields("Connect failure", zap.Error(cerr))
		return nil, cerr
	}

	files, err := openFiles(client)
	aborted := !stop()
	if err != nil || aborted {
		if files != nil {
			_ = files.Close()
		}
		_ = client.Close()
		cerr := classifyBackendError(ctx, opts.Backend, err)
		l.WarnWithFields("Connect failure", zap.Error(cerr))
		return nil, cerr
	}
	_ = conn.SetDeadline(time.Time{})

	session := NewSession(target, cred.Kind, opts.Backend, client, files)
	l.InfoWithFields("Connected", zap.String("backend", string(opts.Backend)))
	return session, nil
}

// Release closes session. It is safe to call more than once and with nil;
// close errors are logged, never returned.
func (m *Manager) Release(session *Session) {
	if session == nil {
		return
	}
	first, err := session.close()
	if !first {
		return
	}
	l := m.log().With(zap.String("target", session.Target.String()))
	if err != nil {
		l.WarnWithFields("Error while releasing session", zap.Error(err))
	}
	l.Debug("Session released")
}

// WithSession connects, runs fn and releases the session on every exit path.
// A panic in fn is logged and turned into a connection-lost failure after the
// session is released.
func WithSession(
	ctx context.Context,
	c Connector,
	target models.ConnectionTarget,
	cred models.Credential,
	opts ConnectOptions,
	fn func(*Session) models.TransferResult,
) (result models.TransferResult) {
	session, err := c.Connect(ctx, target, cred, opts)
	if err != nil {
		return models.FailureFromError(err)
	}
	defer func() {
		r := recover()
		c.Release(session)
		if r != nil {
			logger.FromContext(ctx).With(zap.String("target", target.String())).LogPanic(r)
			result = models.Failure(
				models.ErrorKindConnectionLost,
				fmt.Sprintf("unexpected fault during transfer: %v", r),
			)
		}
	}()
	return fn(session)
}

func classifyDialError(ctx context.Context, err error) *models.Error {
	if isTimeout(ctx, err) {
		return models.NewError(models.ErrorKindTimeout, "timed out connecting", err)
	}
	return models.NewError(models.ErrorKindUnreachable, "failed to connect", err)
}

func classifyHandshakeError(ctx context.Context, err error) *models.Error {
	var keyErr *knownhosts.KeyError
	var revoked *knownhosts.RevokedError
	switch {
	case errors.As(err, &keyErr), errors.As(err, &revoked):
		return models.NewError(models.ErrorKindAuthRejected, "host key verification failed", err)
	case strings.Contains(err.Error(), "unable to authenticate"):
		return models.NewError(models.ErrorKindAuthRejected, "authentication rejected", err)
	case strings.Contains(err.Error(), "knownhosts:"):
		return models.NewError(models.ErrorKindAuthRejected, "host key verification failed", err)
	case isTimeout(ctx, err):
		return models.NewError(models.ErrorKindTimeout, "timed out during handshake", err)
	case errors.Is(ctx.Err(), context.Canceled):
		return models.NewError(models.ErrorKindTimeout, "connect aborted", err)
	default:
		return models.NewError(models.ErrorKindUnreachable, "ssh handshake failed", err)
	}
}

func classifyBackendError(ctx context.Context, backend Backend, err error) *models.Error {
	if err == nil {
		err = ctx.Err()
	}
	switch {
	case isTimeout(ctx, err):
		return models.NewError(models.ErrorKindTimeout, fmt.Sprintf("timed out opening %s backend", backend), err)
	case errors.Is(ctx.Err(), context.Canceled):
		return models.NewError(models.ErrorKindTimeout, "connect aborted", err)
	default:
		return models.NewError(models.ErrorKindUnreachable, fmt.Sprintf("failed to open %s backend", backend), err)
	}
}

// pastDeadline covers the window where the conn deadline has fired but the
// ctx timer has not yet marked ctx done.
func pastDeadline(ctx context.Context) bool {
	deadline, ok := ctx.Deadline()
	return ok && !time.Now().Before(deadline)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) || pastDeadline(ctx) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "i/o timeout")
}
