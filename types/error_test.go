package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "without cause",
			err:      NewError(ErrVersionNotFound, "version 7 not found"),
			expected: "[VERSION_NOT_FOUND] version 7 not found",
		},
		{
			name:     "with cause",
			err:      NewError(ErrStorageUnavailable, "mongo ping failed").WithCause(errors.New("connection refused")),
			expected: "[STORAGE_UNAVAILABLE] mongo ping failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewWriteFailureError("failed to write config file", cause)

	assert.ErrorIs(t, err, cause)
}

func TestError_Builders(t *testing.T) {
	err := NewError(ErrInvalidRequest, "bad body").
		WithHTTPStatus(http.StatusBadRequest).
		WithRetryable(false)

	assert.Equal(t, ErrInvalidRequest, err.Code)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
	assert.False(t, err.Retryable)
}

func TestAsError(t *testing.T) {
	inner := NewVersionNotFoundError(42)
	wrapped := fmt.Errorf("rollback failed: %w", inner)

	e := AsError(wrapped)
	require.NotNil(t, e)
	assert.Equal(t, ErrVersionNotFound, e.Code)

	assert.Nil(t, AsError(errors.New("plain")))
	assert.Nil(t, AsError(nil))
}

func TestIsErrorCode(t *testing.T) {
	err := NewStorageUnavailableError("backend down", nil)

	assert.True(t, IsErrorCode(err, ErrStorageUnavailable))
	assert.False(t, IsErrorCode(err, ErrVersionNotFound))
	assert.False(t, IsErrorCode(errors.New("plain"), ErrStorageUnavailable))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewStorageUnavailableError("backend down", nil)))
	assert.False(t, IsRetryable(NewVersionNotFoundError(1)))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrWriteFailure, GetErrorCode(NewWriteFailureError("fs error", nil)))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}
