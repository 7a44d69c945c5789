package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies adapter failures. Only Unreachable and RateLimited are
// transient; InvalidResponse is a back-end contract violation and is never
// retried.
type ErrorKind string

const (
	KindTimeout         ErrorKind = "timeout"
	KindUnreachable     ErrorKind = "unreachable"
	KindInvalidResponse ErrorKind = "invalid_response"
	KindRateLimited     ErrorKind = "rate_limited"
	KindUnknown         ErrorKind = "unknown"
)

// Error is the only failure shape an adapter may surface.
type Error struct {
	Engine string    `json:"engine"`
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Engine, e.Kind, e.Detail)
}

func (e *Error) Transient() bool {
	return e.Kind == KindUnreachable || e.Kind == KindRateLimited
}

func Errorf(engine string, kind ErrorKind, format string, args ...any) *Error {
	return &Error{Engine: engine, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// AsError coerces any adapter failure into *Error. Typed errors pass through
// with their engine name fixed up; context and net failures get the matching
// kind; everything else is Unknown.
func AsError(engineName string, err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		if typed.Engine == "" {
			typed.Engine = engineName
		}
		return typed
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Errorf(engineName, KindTimeout, "%v", err)
	case errors.Is(err, context.Canceled):
		return Errorf(engineName, KindUnknown, "cancelled: %v", err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		if nerr.Timeout() {
			return Errorf(engineName, KindTimeout, "%v", err)
		}
		return Errorf(engineName, KindUnreachable, "%v", err)
	}
	return Errorf(engineName, KindUnknown, "%v", err)
}
