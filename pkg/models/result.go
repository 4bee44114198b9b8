package models

import (
	"errors"
	"fmt"
)

// TransferResult is either a success carrying the byte count or a failure
// carrying a classified error.
type TransferResult struct {
	BytesTransferred int64
	err              *Error
}

func Success(bytesTransferred int64) TransferResult {
	return TransferResult{BytesTransferred: bytesTransferred}
}

func Failure(kind ErrorKind, detail string) TransferResult {
	return TransferResult{err: NewError(kind, detail, nil)}
}

// FailureFromError wraps err as a failure. Unclassified errors are reported as
// a lost connection so that a kind is always present.
func FailureFromError(err error) TransferResult {
	var e *Error
	if errors.As(err, &e) {
		return TransferResult{err: e}
	}
	return TransferResult{err: NewError(ErrorKindConnectionLost, "unclassified transport error", err)}
}

func (r TransferResult) Succeeded() bool {
	return r.err == nil
}

// Kind returns "" on success.
func (r TransferResult) Kind() ErrorKind {
	if r.err == nil {
		return ""
	}
	return r.err.Kind
}

func (r TransferResult) Detail() string {
	if r.err == nil {
		return ""
	}
	return r.err.Detail
}

// Err returns nil on success.
func (r TransferResult) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

func (r TransferResult) String() string {
	if r.Succeeded() {
		return fmt.Sprintf("success (%d bytes)", r.BytesTransferred)
	}
	return fmt.Sprintf("failure (%s: %s)", r.err.Kind, r.err.Detail)
}
