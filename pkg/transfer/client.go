package transfer

import (
	"context"
	"time"

	"github.com/lahrah/sftp-file-transfer-solution/pkg/logger"
	"github.com/lahrah/sftp-file-transfer-solution/pkg/models"
	"github.com/lahrah/sftp-file-transfer-solution/pkg/sshutils"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Options are the per-call connection and transfer settings.
type Options struct {
	// Timeout bounds connect plus authentication. Zero means 15s.
	Timeout time.Duration
	// TransferTimeout bounds the data phase. Zero means no bound.
	TransferTimeout time.Duration
	HostKey         sshutils.HostKeyPolicy
	Backend         sshutils.Backend
	PathMode        models.PathMode
}

// Client runs single-file transfers, one session per call. It holds no
// per-call state and may be shared between goroutines.
type Client struct {
	Connector sshutils.Connector
	Fs        afero.Fs
	Logger    *logger.Logger
	// OnStateChange observes every lifecycle transition of every call.
	OnStateChange func(from, to models.TransferState)
}

type ClientOption func(*Client)

func WithConnector(c sshutils.Connector) ClientOption {
	return func(cl *Client) { cl.Connector = c }
}

func WithFs(fs afero.Fs) ClientOption {
	return func(cl *Client) { cl.Fs = fs }
}

func WithLogger(l *logger.Logger) ClientOption {
	return func(cl *Client) { cl.Logger = l }
}

func WithStateObserver(fn func(from, to models.TransferState)) ClientOption {
	return func(cl *Client) { cl.OnStateChange = fn }
}

// NewClient returns a Client backed by an sshutils.Manager and the OS
// filesystem unless overridden.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = logger.Get()
	}
	if c.Connector == nil {
		c.Connector = sshutils.NewManager(c.Logger)
	}
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
	return c
}

// Transfer resolves the credential, opens a session, runs exactly one
// transfer and releases the session. It never panics on transport errors
// and never returns a result without a kind on failure.
func (c *Client) Transfer(
	ctx context.Context,
	target models.ConnectionTarget,
	cfg sshutils.AuthConfig,
	req models.TransferRequest,
	opts Options,
) models.TransferResult {
	l := c.Logger.With(zap.String("target", target.String()), zap.String("request", req.String()))
	states := newStateTracker(l, c.OnStateChange)
	defer states.close()

	if err := target.Validate(); err != nil {
		return states.fail(models.FailureFromError(err))
	}
	cred, err := sshutils.ResolveCredential(cfg)
	if err != nil {
		return states.fail(models.FailureFromError(err))
	}

	connectOpts := sshutils.ConnectOptions{
		Timeout: opts.Timeout,
		HostKey: opts.HostKey,
		Backend: opts.Backend,
		OnPhase: states.move,
	}
	executor := &Executor{
		Fs:              c.Fs,
		PathMode:        opts.PathMode,
		TransferTimeout: opts.TransferTimeout,
		Logger:          c.Logger,
	}

	ctx = logger.IntoContext(ctx, l)
	result := sshutils.WithSession(ctx, c.Connector, target, cred, connectOpts,
		func(session *sshutils.Session) models.TransferResult {
			states.move(models.StateTransferring)
			return executor.Execute(ctx, session, req)
		})

	if result.Succeeded() {
		states.move(models.StateSucceeded)
	} else {
		states.fail(result)
	}
	return result
}

func (c *Client) Upload(
	ctx context.Context,
	target models.ConnectionTarget,
	cfg sshutils.AuthConfig,
	localPath, remotePath string,
	opts Options,
) models.TransferResult {
	return c.Transfer(ctx, target, cfg, models.NewUploadRequest(localPath, remotePath), opts)
}

func (c *Client) Download(
	ctx context.Context,
	target models.ConnectionTarget,
	cfg sshutils.AuthConfig,
	remotePath, localPath string,
	opts Options,
) models.TransferResult {
	return c.Transfer(ctx, target, cfg, models.NewDownloadRequest(remotePath, localPath), opts)
}

// stateTracker follows one Transfer call through the lifecycle. Moves that
// the lifecycle does not allow are logged and dropped.
type stateTracker struct {
	l        *logger.Logger
	current  models.TransferState
	observer func(from, to models.TransferState)
}

func newStateTracker(l *logger.Logger, observer func(from, to models.TransferState)) *stateTracker {
	return &stateTracker{l: l, current: models.StateIdle, observer: observer}
}

func (s *stateTracker) move(next models.TransferState) {
	if !s.current.CanTransition(next) {
		s.l.DebugWithFields("Ignoring invalid state transition",
			zap.Stringer("from", s.current),
			zap.Stringer("to", next),
		)
		return
	}
	prev := s.current
	s.current = next
	s.l.DebugWithFields("Transfer state changed", zap.Stringer("from", prev), zap.Stringer("to", next))
	if s.observer != nil {
		s.observer(prev, next)
	}
}

// fail moves to Failed when the lifecycle allows it. Failures before the
// transfer phase go straight to Closed.
func (s *stateTracker) fail(result models.TransferResult) models.TransferResult {
	if s.current.CanTransition(models.StateFailed) {
		s.move(models.StateFailed)
	}
	return result
}

func (s *stateTracker) close() {
	s.move(models.StateClosed)
}
