package errmap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// Code classifies failures the engine can surface. In-band HTTP error
// statuses (4xx/5xx) are never mapped here: any received status is a
// successful response at this layer.
type Code string

const (
	// CodeInvalidRequest marks assembly-time failures. The request was never
	// sent and no history record exists for it.
	CodeInvalidRequest Code = "invalid_request"
	// CodeNetworkFailure covers proxy unreachable, DNS failure, connection
	// refused or reset.
	CodeNetworkFailure Code = "network_failure"
	// CodeTimeout means the whole round trip exceeded its bound.
	CodeTimeout Code = "timeout"
	// CodeCrossOriginBlocked is raised on a direct (proxyless) call the
	// sandbox refused, so the UI can suggest configuring a proxy.
	CodeCrossOriginBlocked Code = "cross_origin_blocked"
	// CodeCancelled marks an explicit user cancellation or teardown.
	CodeCancelled Code = "cancelled"
	// CodeInvalidState indicates a caller contract violation, e.g. completing
	// the same record twice. Not recoverable.
	CodeInvalidState Code = "invalid_state"
	CodeNotFound     Code = "not_found"
	CodeUnexpected   Code = "unexpected"
)

// Error carries a code plus request context while preserving the original
// cause via Unwrap.
type Error struct {
	Code    Code
	Message string
	Method  string
	URL     string
	cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = humanize(e.Code, e.cause)
	}
	if e.Method != "" && e.URL != "" {
		return fmt.Sprintf("%s %s: %s", e.Method, e.URL, msg)
	}
	if e.URL != "" {
		return fmt.Sprintf("%s: %s", e.URL, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs an Error with the supplied code, message, and cause.
func New(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// CodeOf extracts the code from a mapped error, CodeUnexpected otherwise.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnexpected
}

func humanize(code Code, cause error) string {
	switch code {
	case CodeInvalidRequest:
		return "request could not be assembled"
	case CodeNetworkFailure:
		return "could not reach the proxy or remote host"
	case CodeTimeout:
		return "request timed out"
	case CodeCrossOriginBlocked:
		return "blocked by cross-origin policy; configure a proxy"
	case CodeCancelled:
		return "request was cancelled"
	case CodeInvalidState:
		return "record is already terminal"
	case CodeNotFound:
		return "record not found"
	default:
		if cause != nil {
			return cause.Error()
		}
		return "unexpected error"
	}
}

// Map converts an arbitrary transport error into an *Error with a
// best-effort code, keeping the original error as the cause.
func Map(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err // already mapped
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Code: CodeCancelled, cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: CodeTimeout, cause: err}
	}

	// url.Error often wraps timeouts and dial failures.
	var uerr *url.Error
	if errors.As(err, &uerr) {
		var t net.Error
		if errors.As(uerr.Err, &t) && t.Timeout() {
			return &Error{Code: CodeTimeout, cause: err}
		}
		lower := strings.ToLower(uerr.Error())
		if strings.Contains(lower, "unsupported protocol scheme") || strings.Contains(lower, "invalid url") {
			return &Error{Code: CodeInvalidRequest, cause: err}
		}
		err = uerr.Err
	}

	var dnserr *net.DNSError
	if errors.As(err, &dnserr) {
		return &Error{Code: CodeNetworkFailure, cause: dnserr}
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &Error{Code: CodeTimeout, cause: nerr}
	}

	var operr *net.OpError
	if errors.As(err, &operr) {
		switch {
		case errors.Is(operr.Err, syscall.ECONNREFUSED),
			errors.Is(operr.Err, syscall.ECONNRESET),
			errors.Is(operr.Err, syscall.ENETUNREACH),
			errors.Is(operr.Err, syscall.EHOSTUNREACH):
			return &Error{Code: CodeNetworkFailure, cause: err}
		}
	}

	// Fallbacks for common textual hints.
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "timeout"):
		return &Error{Code: CodeTimeout, cause: err}
	case strings.Contains(lower, "refused"), strings.Contains(lower, "reset"),
		strings.Contains(lower, "no such host"):
		return &Error{Code: CodeNetworkFailure, cause: err}
	}

	return &Error{Code: CodeUnexpected, cause: err}
}

// MapRequestError annotates the mapped error with request context.
func MapRequestError(method, urlStr string, err error) error {
	if err == nil {
		return nil
	}
	m := Map(err)
	var me *Error
	if errors.As(m, &me) {
		me.Method = method
		me.URL = urlStr
		return me
	}
	return m
}

// Friendly returns a user-facing, action-oriented message.
func Friendly(err error) string {
	if err == nil {
		return ""
	}
	var me *Error
	if !errors.As(err, &me) {
		return err.Error()
	}
	ctx := ""
	if me.Method != "" && me.URL != "" {
		ctx = fmt.Sprintf(" (%s %s)", me.Method, me.URL)
	} else if me.URL != "" {
		ctx = fmt.Sprintf(" (%s)", me.URL)
	}
	switch me.Code {
	case CodeInvalidRequest:
		return fmt.Sprintf("The request is invalid%s.", ctx)
	case CodeTimeout:
		return fmt.Sprintf("Request timed out%s.", ctx)
	case CodeCancelled:
		return "Request was cancelled."
	case CodeNetworkFailure:
		host := ""
		if u, perr := url.Parse(me.URL); perr == nil {
			host = u.Hostname()
		}
		if host != "" {
			return fmt.Sprintf("Could not connect to '%s'%s.", host, ctx)
		}
		return fmt.Sprintf("Could not connect%s.", ctx)
	case CodeCrossOriginBlocked:
		return "The browser blocked this cross-origin request. Configure a proxy to send it."
	default:
		if s := me.Error(); s != "" {
			return s
		}
		return "Unexpected error."
	}
}
