package sshutils

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// shellFiler moves bytes by running cat on the remote host. It serves hosts
// that do not offer the sftp subsystem but have a POSIX shell.
type shellFiler struct {
	client SSHClienter
}

func NewShellFiler(client SSHClienter) (RemoteFiler, error) {
	if client == nil {
		return nil, fmt.Errorf("SSH client not connected")
	}
	return &shellFiler{client: client}, nil
}

func (f *shellFiler) run(cmd string) error {
	session, err := f.client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()
	return session.Run(cmd)
}

// test runs `test flag path`. A non-zero exit is a false answer, not an error.
func (f *shellFiler) test(flag, p string) (bool, error) {
	err := f.run(fmt.Sprintf("test %s %s", flag, shellQuote(p)))
	if err == nil {
		return true, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, err
}

func (f *shellFiler) Create(p string) (io.WriteCloser, error) {
	dir := path.Dir(p)
	ok, err := f.test("-d", dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &fs.PathError{Op: "create", Path: p, Err: fs.ErrNotExist}
	}
	if ok, err = f.test("-w", dir); err != nil {
		return nil, err
	} else if !ok {
		return nil, &fs.PathError{Op: "create", Path: p, Err: fs.ErrPermission}
	}

	session, err := f.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stderr := &bytes.Buffer{}
	session.SetStderr(stderr)
	if err := session.Start(fmt.Sprintf("cat > %s", shellQuote(p))); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to start command: %w", err)
	}
	return &shellWriter{session: session, stdin: stdin, stderr: stderr}, nil
}

func (f *shellFiler) Open(p string) (io.ReadCloser, error) {
	ok, err := f.test("-f", p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	if ok, err = f.test("-r", p); err != nil {
		return nil, err
	} else if !ok {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrPermission}
	}

	session, err := f.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := session.Start(fmt.Sprintf("cat %s", shellQuote(p))); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to start command: %w", err)
	}
	return &shellReader{session: session, stdout: stdout}, nil
}

func (f *shellFiler) Stat(p string) (os.FileInfo, error) {
	ok, err := f.test("-e", p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
	}
	if isDir, err := f.test("-d", p); err != nil {
		return nil, err
	} else if isDir {
		return shellFileInfo{name: path.Base(p), dir: true}, nil
	}

	session, err := f.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()
	out, err := session.Output(fmt.Sprintf("wc -c < %s", shellQuote(p)))
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return nil, &fs.PathError{Op: "stat", Path: p, Err: fs.ErrPermission}
		}
		return nil, err
	}
	size, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("unexpected size output %q: %w", out, err)
	}
	return shellFileInfo{name: path.Base(p), size: size}, nil
}

func (f *shellFiler) Remove(p string) error {
	return f.run(fmt.Sprintf("rm -f %s", shellQuote(p)))
}

// Close is a no-op; the SSH client is owned by the session.
func (f *shellFiler) Close() error {
	return nil
}

type shellWriter struct {
	session SSHSessioner
	stdin   io.WriteCloser
	stderr  *bytes.Buffer
	closed  bool
}

func (w *shellWriter) Write(p []byte) (int, error) {
	return w.stdin.Write(p)
}

// Close ends the input stream and waits for the remote cat to exit.
func (w *shellWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.session.Close()

	if err := w.stdin.Close(); err != nil {
		return fmt.Errorf("failed to close stdin: %w", err)
	}
	if err := w.session.Wait(); err != nil {
		return fmt.Errorf("remote write failed: %w: %s", err, strings.TrimSpace(w.stderr.String()))
	}
	return nil
}

type shellReader struct {
	session SSHSessioner
	stdout  io.Reader
	eof     bool
	closed  bool
}

func (r *shellReader) Read(p []byte) (int, error) {
	n, err := r.stdout.Read(p)
	if errors.Is(err, io.EOF) {
		r.eof = true
	}
	return n, err
}

func (r *shellReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	defer r.session.Close()
	if !r.eof {
		return nil
	}
	if err := r.session.Wait(); err != nil {
		return fmt.Errorf("remote read failed: %w", err)
	}
	return nil
}

type shellFileInfo struct {
	name string
	size int64
	dir  bool
}

func (i shellFileInfo) Name() string { return i.name }
func (i shellFileInfo) Size() int64  { return i.size }
func (i shellFileInfo) Mode() fs.FileMode {
	if i.dir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}
func (i shellFileInfo) ModTime() time.Time { return time.Time{} }
func (i shellFileInfo) IsDir() bool        { return i.dir }
func (i shellFileInfo) Sys() any           { return nil }

// shellQuote wraps s in single quotes for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
