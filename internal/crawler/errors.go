package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

type ErrorKind string

const (
	ErrorKindUnknown        ErrorKind = "unknown"
	ErrorKindCredential     ErrorKind = "credential"
	ErrorKindInvalidInput   ErrorKind = "invalid_input"
	ErrorKindPermission     ErrorKind = "permission"
	ErrorKindResourceClosed ErrorKind = "resource_closed"
	ErrorKindUpstream       ErrorKind = "upstream"
	ErrorKindTransport      ErrorKind = "transport"
	ErrorKindCanceled       ErrorKind = "canceled"
	ErrorKindTimeout        ErrorKind = "timeout"
)

// Error carries the failure kind and, for upstream envelope errors, the
// upstream error code. Msg is the user-facing text.
type Error struct {
	Kind ErrorKind
	Code int
	URL  string
	Msg  string
	Err  error
}

func (e Error) Error() string {
	base := e.Msg
	if base == "" && e.Err != nil {
		base = e.Err.Error()
	}
	if base == "" {
		base = string(e.Kind)
	}
	return base
}

func (e Error) Unwrap() error { return e.Err }

func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return ErrorKindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}
	var ce Error
	if errors.As(err, &ce) && ce.Kind != "" {
		return ce.Kind
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return ErrorKindTimeout
		}
		return ErrorKindTransport
	}
	if strings.Contains(strings.ToLower(err.Error()), "http status=") {
		return ErrorKindTransport
	}
	return ErrorKindUnknown
}

// CodeOf returns the upstream error code carried by err, or 0.
func CodeOf(err error) int {
	var ce Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return 0
}

func NewCredentialError(msg string) error {
	return Error{Kind: ErrorKindCredential, Msg: msg}
}

func NewInvalidInputError(format string, args ...any) error {
	return Error{Kind: ErrorKindInvalidInput, Msg: fmt.Sprintf(format, args...)}
}

// NewTransportError keeps context errors recognisable to KindOf.
func NewTransportError(url string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return Error{Kind: ErrorKindTransport, URL: url, Msg: err.Error(), Err: err}
}
