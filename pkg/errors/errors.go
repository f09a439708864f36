package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"syscall"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeClientError ErrorType = "client_error"
	ErrorTypeFilesystem  ErrorType = "filesystem"
	ErrorTypeCanceled    ErrorType = "canceled"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents a classified error. Code is the HTTP status when one was
// received, zero otherwise.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Reason returns the short human readable failure reason recorded in the
// failure log: "HTTP <code>" when a status was received, the message otherwise.
func (e *Error) Reason() string {
	if e.Code > 0 {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return e.Message
}

// New creates a typed error
func New(errorType ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errorType,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	}
}

// FromStatus maps a non-2xx HTTP status code to a typed error
func FromStatus(statusCode int) *Error {
	e := &Error{
		Code:    statusCode,
		Message: fmt.Sprintf("unexpected status %d", statusCode),
	}
	switch {
	case statusCode == 401 || statusCode == 403:
		e.Type = ErrorTypeAuth
	case statusCode == 404:
		e.Type = ErrorTypeNotFound
	case statusCode == 429:
		e.Type = ErrorTypeRateLimit
	case statusCode >= 500:
		e.Type = ErrorTypeServerError
	case statusCode >= 400:
		e.Type = ErrorTypeClientError
	default:
		e.Type = ErrorTypeUnknown
	}
	return e
}

// Classify turns an arbitrary transport or filesystem error into a typed
// error. Typed errors pass through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if stderrors.As(err, &typed) {
		return typed
	}

	e := &Error{Err: err, Message: err.Error()}

	var netErr net.Error
	var dnsErr *net.DNSError
	var pathErr *os.PathError
	switch {
	case stderrors.Is(err, context.Canceled):
		e.Type = ErrorTypeCanceled
		e.Message = "canceled"
	case stderrors.Is(err, context.DeadlineExceeded):
		e.Type = ErrorTypeTimeout
		e.Message = "ETIMEDOUT"
	case stderrors.As(err, &dnsErr):
		e.Type = ErrorTypeNetwork
		e.Message = "ENOTFOUND"
	case stderrors.Is(err, syscall.ECONNREFUSED):
		e.Type = ErrorTypeNetwork
		e.Message = "ECONNREFUSED"
	case stderrors.Is(err, syscall.ECONNRESET):
		e.Type = ErrorTypeNetwork
		e.Message = "ECONNRESET"
	case stderrors.Is(err, io.ErrUnexpectedEOF):
		e.Type = ErrorTypeNetwork
		e.Message = "unexpected EOF"
	case stderrors.As(err, &netErr) && netErr.Timeout():
		e.Type = ErrorTypeTimeout
		e.Message = "ETIMEDOUT"
	case stderrors.As(err, &pathErr):
		e.Type = ErrorTypeFilesystem
	default:
		var urlErr *url.Error
		if stderrors.As(err, &urlErr) {
			e.Type = ErrorTypeNetwork
			e.Message = urlErr.Err.Error()
		} else {
			e.Type = ErrorTypeUnknown
		}
	}
	return e
}

// Reason returns the failure reason for any error
func Reason(err error) string {
	if err == nil {
		return ""
	}
	return Classify(err).Reason()
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParsing, ErrorTypeCanceled:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429:
		return true
	case 500, 502, 503, 504:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
