package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a failure so the HTTP layer can pick a status code.
type ErrorKind string

const (
	KindBadRequest          ErrorKind = "BadRequest"
	KindUnsupportedPlatform ErrorKind = "UnsupportedPlatform"
	KindUpstream            ErrorKind = "UpstreamError"
	KindNotFound            ErrorKind = "NotFound"
	KindPayloadTooLarge     ErrorKind = "PayloadTooLarge"
	KindUnconfigured        ErrorKind = "Unconfigured"
	KindTimeout             ErrorKind = "Timeout"
	KindInternal            ErrorKind = "InternalError"
)

// Error is the error type returned by the resolver, acquirer and
// fingerprint client. Upstream carries the downstream response body
// (when there was one) so callers can forward it for diagnostics.
type Error struct {
	Kind     ErrorKind
	Message  string
	Upstream []byte
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func upstreamError(msg string, body []byte, err error) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Upstream: body, Err: err}
}

// KindOf reports the ErrorKind of err. Timeouts are recognised even when
// they were not wrapped in an *Error; anything else unknown is internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindUpstream && isTimeout(e.Err) {
			return KindTimeout
		}
		return e.Kind
	}
	if isTimeout(err) {
		return KindTimeout
	}
	return KindInternal
}

// UpstreamBody returns the downstream response body attached to err, if any.
func UpstreamBody(err error) []byte {
	var e *Error
	if errors.As(err, &e) {
		return e.Upstream
	}
	return nil
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
