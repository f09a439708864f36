package errors

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		code     int
		expected ErrorType
	}{
		{401, ErrorTypeAuth},
		{403, ErrorTypeAuth},
		{404, ErrorTypeNotFound},
		{429, ErrorTypeRateLimit},
		{500, ErrorTypeServerError},
		{503, ErrorTypeServerError},
		{418, ErrorTypeClientError},
		{302, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.code), func(t *testing.T) {
			err := FromStatus(tt.code)
			assert.Equal(t, tt.expected, err.Type)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, fmt.Sprintf("HTTP %d", tt.code), err.Reason())
		})
	}
}

func TestClassifyTransportErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType ErrorType
		reason   string
	}{
		{"canceled", context.Canceled, ErrorTypeCanceled, "canceled"},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), ErrorTypeTimeout, "ETIMEDOUT"},
		{"refused", &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, ErrorTypeNetwork, "ECONNREFUSED"},
		{"reset", &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)}, ErrorTypeNetwork, "ECONNRESET"},
		{"truncated body", fmt.Errorf("failed to write data: %w", io.ErrUnexpectedEOF), ErrorTypeNetwork, "unexpected EOF"},
		{"dns", &net.DNSError{Err: "no such host", Name: "cdn.invalid", IsNotFound: true}, ErrorTypeNetwork, "ENOTFOUND"},
		{"path", &os.PathError{Op: "open", Path: "/nope", Err: os.ErrNotExist}, ErrorTypeFilesystem, "open /nope: file does not exist"},
		{"plain", fmt.Errorf("boom"), ErrorTypeUnknown, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := Classify(tt.err)
			require.NotNil(t, classified)
			assert.Equal(t, tt.wantType, classified.Type)
			assert.Equal(t, tt.reason, classified.Reason())
			assert.Equal(t, tt.reason, Reason(tt.err))
		})
	}
}

func TestClassifyPassesTypedErrorsThrough(t *testing.T) {
	original := FromStatus(500)
	wrapped := fmt.Errorf("attempt 2: %w", original)

	assert.Same(t, original, Classify(wrapped))
	assert.Nil(t, Classify(nil))
	assert.Equal(t, "", Reason(nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeTimeout))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.False(t, IsRetryable(ErrorTypeAuth))
	assert.False(t, IsRetryable(ErrorTypeCanceled))

	assert.True(t, IsRetryableStatusCode(503))
	assert.True(t, IsRetryableStatusCode(429))
	assert.False(t, IsRetryableStatusCode(404))
}
