package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the machine-readable reason a transfer did not succeed.
type ErrorKind string

const (
	ErrorKindConfig ErrorKind = "config"

	ErrorKindTimeout      ErrorKind = "connection.timeout"
	ErrorKindUnreachable  ErrorKind = "connection.unreachable"
	ErrorKindKeyNotFound  ErrorKind = "connection.key_not_found"
	ErrorKindAuthRejected ErrorKind = "connection.auth_rejected"

	ErrorKindLocalNotFound    ErrorKind = "transfer.local_not_found"
	ErrorKindRemoteNotFound   ErrorKind = "transfer.remote_not_found"
	ErrorKindRemoteRejected   ErrorKind = "transfer.remote_rejected"
	ErrorKindLocalWriteFailed ErrorKind = "transfer.local_write_failed"
	ErrorKindConnectionLost   ErrorKind = "transfer.connection_lost"
)

type ErrorCategory string

const (
	CategoryConfig     ErrorCategory = "config"
	CategoryConnection ErrorCategory = "connection"
	CategoryTransfer   ErrorCategory = "transfer"
	CategoryUnknown    ErrorCategory = "unknown"
)

// Category groups a kind into ConfigError, ConnectionError or TransferError.
func (k ErrorKind) Category() ErrorCategory {
	switch {
	case k == ErrorKindConfig:
		return CategoryConfig
	case strings.HasPrefix(string(k), "connection."):
		return CategoryConnection
	case strings.HasPrefix(string(k), "transfer."):
		return CategoryTransfer
	default:
		return CategoryUnknown
	}
}

// Error is a classified failure. Kind is always set; Err keeps the underlying
// library error for logs and errors.Is/As.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func NewError(kind ErrorKind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind, so callers can write
// errors.Is(err, &models.Error{Kind: models.ErrorKindTimeout}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the kind from an error chain, or "" if none is classified.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
