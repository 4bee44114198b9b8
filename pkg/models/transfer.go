package models

import (
	"fmt"
	"net"
	"path"
	"strconv"
	"strings"
)

const (
	MinPort = 1
	MaxPort = 65535
)

// ConnectionTarget identifies the remote endpoint of a transfer.
type ConnectionTarget struct {
	Host     string
	Port     int
	Username string
}

// NewConnectionTarget validates and returns a ConnectionTarget
func NewConnectionTarget(host string, port int, username string) (ConnectionTarget, error) {
	t := ConnectionTarget{
		Host:     strings.TrimSpace(host),
		Port:     port,
		Username: strings.TrimSpace(username),
	}
	if err := t.Validate(); err != nil {
		return ConnectionTarget{}, err
	}
	return t, nil
}

func (t ConnectionTarget) Validate() error {
	if t.Host == "" {
		return NewError(ErrorKindConfig, "host cannot be empty", nil)
	}
	if t.Port < MinPort || t.Port > MaxPort {
		return NewError(ErrorKindConfig, fmt.Sprintf("invalid port number: %d", t.Port), nil)
	}
	if t.Username == "" {
		return NewError(ErrorKindConfig, "username cannot be empty", nil)
	}
	return nil
}

// Address returns host:port, bracketing IPv6 literals.
func (t ConnectionTarget) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t ConnectionTarget) String() string {
	return fmt.Sprintf("%s@%s", t.Username, t.Address())
}

type CredentialKind string

const (
	CredentialPassword  CredentialKind = "password"
	CredentialPublicKey CredentialKind = "public_key"
)

// Credential holds the authentication material for one session. Only the
// fields belonging to Kind are populated.
type Credential struct {
	Kind       CredentialKind
	Secret     string
	KeyPath    string
	Passphrase string
}

func PasswordCredential(secret string) Credential {
	return Credential{Kind: CredentialPassword, Secret: secret}
}

func PublicKeyCredential(keyPath, passphrase string) Credential {
	return Credential{Kind: CredentialPublicKey, KeyPath: keyPath, Passphrase: passphrase}
}

// HasPassphrase reports whether the key is expected to be encrypted.
func (c Credential) HasPassphrase() bool {
	return c.Kind == CredentialPublicKey && c.Passphrase != ""
}

// String never includes secret material.
func (c Credential) String() string {
	switch c.Kind {
	case CredentialPassword:
		return "password(****)"
	case CredentialPublicKey:
		if c.HasPassphrase() {
			return fmt.Sprintf("public_key(%s, passphrase)", c.KeyPath)
		}
		return fmt.Sprintf("public_key(%s)", c.KeyPath)
	default:
		return "none"
	}
}

type TransferDirection string

const (
	Upload   TransferDirection = "upload"
	Download TransferDirection = "download"
)

func ParseTransferDirection(s string) (TransferDirection, error) {
	switch TransferDirection(strings.ToLower(strings.TrimSpace(s))) {
	case Upload:
		return Upload, nil
	case Download:
		return Download, nil
	default:
		return "", fmt.Errorf("unknown transfer direction %q", s)
	}
}

// TransferRequest describes one file transfer. Paths are not checked until
// the transfer runs.
type TransferRequest struct {
	Direction  TransferDirection
	LocalPath  string
	RemotePath string
}

func NewUploadRequest(localPath, remotePath string) TransferRequest {
	return TransferRequest{Direction: Upload, LocalPath: localPath, RemotePath: remotePath}
}

func NewDownloadRequest(remotePath, localPath string) TransferRequest {
	return TransferRequest{Direction: Download, LocalPath: localPath, RemotePath: remotePath}
}

func (r TransferRequest) String() string {
	if r.Direction == Download {
		return fmt.Sprintf("download %s -> %s", r.RemotePath, r.LocalPath)
	}
	return fmt.Sprintf("upload %s -> %s", r.LocalPath, r.RemotePath)
}

// PathMode controls how relative remote paths are interpreted.
type PathMode string

const (
	// PathModeHome leaves relative paths relative to the login directory.
	PathModeHome PathMode = "home"
	// PathModeRoot anchors relative paths at the filesystem root.
	PathModeRoot PathMode = "root"
)

func ParsePathMode(s string) (PathMode, error) {
	switch PathMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", PathModeHome:
		return PathModeHome, nil
	case PathModeRoot:
		return PathModeRoot, nil
	default:
		return "", fmt.Errorf("unknown path mode %q (expected %q or %q)", s, PathModeHome, PathModeRoot)
	}
}

// Resolve applies the mode to a remote path. Remote paths always use forward
// slashes regardless of the local OS.
func (m PathMode) Resolve(remote string) string {
	if m == PathModeRoot && !path.IsAbs(remote) {
		return path.Join("/", remote)
	}
	return remote
}
