package lockbyte

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"lockbyte/internal/container"
	"lockbyte/internal/encryption"
	"lockbyte/internal/kdf"
)

// ErrorKind classifies why a file operation failed.
type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindNotAContainer
	KindAuthenticationFailed
	KindInvalidHashFormat
	KindCorruptPadding
	KindResourceExhausted
	KindEmptyTarget
	KindIOFailure
	KindCancelled
	KindInvalidPassword
)

var kindNames = map[ErrorKind]string{
	KindUnexpected:           "unexpected error",
	KindNotAContainer:        "not a container",
	KindAuthenticationFailed: "authentication failed",
	KindInvalidHashFormat:    "invalid hash format",
	KindCorruptPadding:       "corrupt padding",
	KindResourceExhausted:    "resource exhausted",
	KindEmptyTarget:          "empty target",
	KindIOFailure:            "i/o failure",
	KindCancelled:            "cancelled",
	KindInvalidPassword:      "invalid password",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is a classified failure for one path. Every error returned by
// FileCipher is an *Error.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches kind-only sentinels such as ErrCancelled, so callers can write
// errors.Is(err, lockbyte.ErrAuthenticationFailed).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Path == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind-only sentinels for use with errors.Is.
var (
	ErrNotAContainer        = &Error{Kind: KindNotAContainer}
	ErrAuthenticationFailed = &Error{Kind: KindAuthenticationFailed}
	ErrInvalidHashFormat    = &Error{Kind: KindInvalidHashFormat}
	ErrCorruptPadding       = &Error{Kind: KindCorruptPadding}
	ErrResourceExhausted    = &Error{Kind: KindResourceExhausted}
	ErrEmptyTarget          = &Error{Kind: KindEmptyTarget}
	ErrIOFailure            = &Error{Kind: KindIOFailure}
	ErrCancelled            = &Error{Kind: KindCancelled}
	ErrInvalidPassword      = &Error{Kind: KindInvalidPassword}
)

// NewError builds an *Error of the given kind.
func NewError(kind ErrorKind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// KindOf classifies err. Errors that match no known cause are KindUnexpected.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, container.ErrTooShort), errors.Is(err, container.ErrMisaligned):
		return KindNotAContainer
	case errors.Is(err, kdf.ErrPasswordMismatch):
		return KindAuthenticationFailed
	case errors.Is(err, kdf.ErrInvalidHashFormat):
		return KindInvalidHashFormat
	case errors.Is(err, encryption.ErrCorruptPadding):
		return KindCorruptPadding
	case errors.Is(err, kdf.ErrResourceExhausted):
		return KindResourceExhausted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	}
	var pathErr *fs.PathError
	var linkErr *os.LinkError
	if errors.As(err, &pathErr) || errors.As(err, &linkErr) ||
		errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrExist) {
		return KindIOFailure
	}
	return KindUnexpected
}

// Classify wraps err as an *Error for path. An existing *Error is returned
// unchanged.
func Classify(path string, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(KindOf(err), path, err)
}
