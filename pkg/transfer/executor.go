package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/lahrah/sftp-file-transfer-solution/pkg/logger"
	"github.com/lahrah/sftp-file-transfer-solution/pkg/models"
	"github.com/lahrah/sftp-file-transfer-solution/pkg/sshutils"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	deadlineExceededDetail = "transfer deadline exceeded"
	cancelledDetail        = "transfer cancelled"
)

// Executor moves one file over an open session. It makes exactly one attempt.
type Executor struct {
	// Fs is the local filesystem. Nil means the OS filesystem.
	Fs       afero.Fs
	PathMode models.PathMode
	// TransferTimeout bounds the data phase. Zero means no bound.
	TransferTimeout time.Duration
	Logger          *logger.Logger
}

func (e *Executor) fs() afero.Fs {
	if e.Fs == nil {
		return afero.NewOsFs()
	}
	return e.Fs
}

func (e *Executor) log(ctx context.Context) *logger.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logger.FromContext(ctx)
}

// Execute runs req against session and classifies the outcome.
func (e *Executor) Execute(
	ctx context.Context,
	session *sshutils.Session,
	req models.TransferRequest,
) models.TransferResult {
	if session == nil || session.Files() == nil {
		return models.Failure(models.ErrorKindConnectionLost, "no open session")
	}
	if !session.IsAlive() {
		return models.Failure(models.ErrorKindConnectionLost, "session is no longer alive")
	}
	if req.LocalPath == "" || req.RemotePath == "" {
		return models.Failure(models.ErrorKindConfig, "local and remote paths are required")
	}

	remote := e.PathMode.Resolve(req.RemotePath)
	l := e.log(ctx).With(
		zap.String("target", session.Target.String()),
		zap.String("local", req.LocalPath),
		zap.String("remote", remote),
	)

	var result models.TransferResult
	switch req.Direction {
	case models.Upload:
		l.Info("About to upload file")
		result = e.upload(ctx, l, session, req.LocalPath, remote)
		if result.Succeeded() {
			l.InfoWithFields("Finished uploading file", zap.Int64("bytes", result.BytesTransferred))
		}
	case models.Download:
		l.Info("About to download file")
		result = e.download(ctx, l, session, remote, req.LocalPath)
		if result.Succeeded() {
			l.InfoWithFields("Finished downloading file", zap.Int64("bytes", result.BytesTransferred))
		}
	default:
		return models.Failure(models.ErrorKindConfig, fmt.Sprintf("unknown transfer direction %q", req.Direction))
	}

	if !result.Succeeded() {
		l.WarnWithFields("Transfer failed",
			zap.String("kind", string(result.Kind())),
			zap.String("detail", result.Detail()),
			zap.Error(result.Err()),
		)
	}
	return result
}

func (e *Executor) upload(
	ctx context.Context,
	l *logger.Logger,
	session *sshutils.Session,
	local, remote string,
) models.TransferResult {
	files := session.Files()
	localFs := e.fs()
	info, err := localFs.Stat(local)
	if err != nil {
		return failure(models.ErrorKindLocalNotFound, fmt.Sprintf("local file not found: %s", local), err)
	}
	if info.IsDir() {
		return models.Failure(models.ErrorKindLocalNotFound, fmt.Sprintf("local path is a directory: %s", local))
	}
	src, err := localFs.Open(local)
	if err != nil {
		return failure(models.ErrorKindLocalNotFound, fmt.Sprintf("cannot open local file: %s", local), err)
	}
	defer src.Close()

	dst, err := files.Create(remote)
	if err != nil {
		return failure(models.ErrorKindRemoteRejected, remoteCreateDetail(remote, err), err)
	}

	cleanup := func() {
		if rerr := files.Remove(remote); rerr != nil {
			l.WarnWithFields("Failed to remove partial remote file", zap.Error(rerr))
		}
	}

	res := e.stream(ctx, dst, src, remoteIsDst, func() {
		_ = session.Interrupt()
		_ = dst.Close()
		_ = src.Close()
	})
	if res.aborted != nil {
		cleanup()
		return failure(models.ErrorKindConnectionLost, abortDetail(res.aborted), res.aborted)
	}
	closeErr := dst.Close()

	switch {
	case res.readErr != nil:
		cleanup()
		return failure(models.ErrorKindLocalNotFound, "failed reading local file", res.readErr)
	case res.writeErr != nil:
		cleanup()
		return failure(models.ErrorKindConnectionLost, "write to remote file failed", res.writeErr)
	case closeErr != nil:
		cleanup()
		return failure(models.ErrorKindConnectionLost, "failed to finalize remote file", closeErr)
	case res.n != info.Size():
		cleanup()
		return models.Failure(
			models.ErrorKindConnectionLost,
			fmt.Sprintf("short write: %d of %d bytes", res.n, info.Size()),
		)
	}
	return models.Success(res.n)
}

func (e *Executor) download(
	ctx context.Context,
	l *logger.Logger,
	session *sshutils.Session,
	remote, local string,
) models.TransferResult {
	files := session.Files()
	info, err := files.Stat(remote)
	if err != nil {
		return remoteOpenFailure(remote, err)
	}
	if info.IsDir() {
		return models.Failure(models.ErrorKindRemoteRejected, fmt.Sprintf("remote path is a directory: %s", remote))
	}
	src, err := files.Open(remote)
	if err != nil {
		return remoteOpenFailure(remote, err)
	}
	defer src.Close()

	localFs := e.fs()
	tmp, err := afero.TempFile(localFs, filepath.Dir(local), "."+filepath.Base(local)+".part-*")
	if err != nil {
		return failure(models.ErrorKindLocalWriteFailed, fmt.Sprintf("cannot create local file in %s", filepath.Dir(local)), err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		if rerr := localFs.Remove(tmpName); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			l.WarnWithFields("Failed to remove partial local file", zap.Error(rerr))
		}
	}

	res := e.stream(ctx, tmp, src, remoteIsSrc, func() {
		_ = session.Interrupt()
		_ = src.Close()
		_ = tmp.Close()
	})
	if res.aborted != nil {
		cleanup()
		return failure(models.ErrorKindConnectionLost, abortDetail(res.aborted), res.aborted)
	}
	closeErr := tmp.Close()

	switch {
	case res.writeErr != nil:
		cleanup()
		return failure(models.ErrorKindLocalWriteFailed, "failed writing local file", res.writeErr)
	case res.readErr != nil:
		cleanup()
		return failure(models.ErrorKindConnectionLost, "read from remote file failed", res.readErr)
	case closeErr != nil:
		cleanup()
		return failure(models.ErrorKindLocalWriteFailed, "failed to finalize local file", closeErr)
	case res.n != info.Size():
		cleanup()
		return models.Failure(
			models.ErrorKindConnectionLost,
			fmt.Sprintf("short read: %d of %d bytes", res.n, info.Size()),
		)
	}

	if err := localFs.Rename(tmpName, local); err != nil {
		cleanup()
		return failure(models.ErrorKindLocalWriteFailed, fmt.Sprintf("cannot move file into place at %s", local), err)
	}
	return models.Success(res.n)
}

type streamResult struct {
	n        int64
	readErr  error
	writeErr error
	// aborted is set when the deadline or the caller's context ended the copy.
	aborted error
}

// remoteEnd names the side of a copy that lives on the server. Its file type
// gets to drive the copy so pkg/sftp can pipeline requests.
type remoteEnd int

const (
	remoteIsDst remoteEnd = iota
	remoteIsSrc
)

// stream copies src to dst on its own goroutine. If the transfer deadline or
// ctx fires first, abort is called to unblock the copy, which is then drained
// before returning. An aborted session cannot be reused.
func (e *Executor) stream(
	ctx context.Context,
	dst io.Writer,
	src io.Reader,
	remote remoteEnd,
	abort func(),
) streamResult {
	if err := ctx.Err(); err != nil {
		abort()
		return streamResult{aborted: err}
	}

	r := &trackedReader{r: src}
	w := &trackedWriter{w: dst}
	done := make(chan int64, 1)
	go func() {
		var n int64
		defer func() {
			if rec := recover(); rec != nil {
				w.err = fmt.Errorf("copy stopped by panic: %v", rec)
			}
			done <- n
		}()
		n = copyTracked(w, r, remote)
	}()

	var deadline <-chan time.Time
	if e.TransferTimeout > 0 {
		timer := time.NewTimer(e.TransferTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case n := <-done:
		return streamResult{n: n, readErr: r.err, writeErr: w.err}
	case <-deadline:
		abort()
		n := <-done
		return streamResult{n: n, aborted: context.DeadlineExceeded}
	case <-ctx.Done():
		abort()
		n := <-done
		return streamResult{n: n, aborted: ctx.Err()}
	}
}

// copyTracked lets the remote file's ReadFrom or WriteTo run the copy when it
// has one. An error the wrappers did not see is charged to the remote side.
func copyTracked(w *trackedWriter, r *trackedReader, remote remoteEnd) int64 {
	switch remote {
	case remoteIsDst:
		if rf, ok := w.w.(io.ReaderFrom); ok {
			n, err := rf.ReadFrom(r)
			if err != nil && r.err == nil {
				w.err = err
			}
			return n
		}
	case remoteIsSrc:
		if wt, ok := r.r.(io.WriterTo); ok {
			n, err := wt.WriteTo(w)
			if err != nil && w.err == nil && !errors.Is(err, io.EOF) {
				r.err = err
			}
			return n
		}
	}
	n, _ := io.Copy(w, r)
	return n
}

type trackedReader struct {
	r   io.Reader
	err error
}

func (t *trackedReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		t.err = err
	}
	return n, err
}

type trackedWriter struct {
	w   io.Writer
	err error
}

func (t *trackedWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}

func failure(kind models.ErrorKind, detail string, err error) models.TransferResult {
	return models.FailureFromError(models.NewError(kind, detail, err))
}

func abortDetail(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return deadlineExceededDetail
	}
	return cancelledDetail
}

func remoteCreateDetail(remote string, err error) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Sprintf("remote directory does not exist: %s", remote)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Sprintf("permission denied creating remote file: %s", remote)
	default:
		return fmt.Sprintf("server refused to create remote file: %s", remote)
	}
}

func remoteOpenFailure(remote string, err error) models.TransferResult {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return failure(models.ErrorKindRemoteNotFound, fmt.Sprintf("remote file not found: %s", remote), err)
	case errors.Is(err, fs.ErrPermission):
		return failure(models.ErrorKindRemoteRejected, fmt.Sprintf("permission denied reading remote file: %s", remote), err)
	default:
		return failure(models.ErrorKindRemoteRejected, fmt.Sprintf("server refused to open remote file: %s", remote), err)
	}
}
