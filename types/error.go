package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// 存储与回滚错误码
const (
	ErrInvalidDocument    ErrorCode = "INVALID_DOCUMENT"
	ErrStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	ErrVersionNotFound    ErrorCode = "VERSION_NOT_FOUND"
	ErrWriteFailure       ErrorCode = "WRITE_FAILURE"
)

// API 层错误码
const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	ErrRateLimited      ErrorCode = "RATE_LIMITED"
	ErrInternalError    ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// AsError extracts a *Error from err's chain, or nil if none is present.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	if e := AsError(err); e != nil {
		return e.Code == code
	}
	return false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e := AsError(err); e != nil {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e := AsError(err); e != nil {
		return e.Code
	}
	return ""
}

// --- 常用错误构造 ---

// NewInvalidDocumentError 构造非法文档错误（解析失败或顶层不是映射）。
func NewInvalidDocumentError(message string, cause error) *Error {
	return NewError(ErrInvalidDocument, message).WithCause(cause)
}

// NewStorageUnavailableError 构造存储不可用错误（可重试，策略由调用方决定）。
func NewStorageUnavailableError(message string, cause error) *Error {
	return NewError(ErrStorageUnavailable, message).WithCause(cause).WithRetryable(true)
}

// NewVersionNotFoundError 构造回滚目标不存在错误。
func NewVersionNotFoundError(version int64) *Error {
	return NewError(ErrVersionNotFound, fmt.Sprintf("version %d not found", version))
}

// NewWriteFailureError 构造落盘失败错误。此时新版本记录已持久化，
// 存储状态与磁盘状态出现分歧，必须上抛给调用方而不是静默吞掉。
func NewWriteFailureError(message string, cause error) *Error {
	return NewError(ErrWriteFailure, message).WithCause(cause)
}
