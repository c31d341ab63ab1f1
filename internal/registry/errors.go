package registry

import "fmt"

// ErrorCode is a stable error code surfaced verbatim to callers.
type ErrorCode string

const (
	CodeToolNotFound     ErrorCode = "TOOL_NOT_FOUND"
	CodeToolDisabled     ErrorCode = "TOOL_DISABLED"
	CodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	CodeRateLimited      ErrorCode = "RATE_LIMITED"
	CodeInvalidParams    ErrorCode = "INVALID_PARAMS"
	CodeUserCancelled    ErrorCode = "USER_CANCELLED"
	CodeExecutionError   ErrorCode = "EXECUTION_ERROR"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeBuiltinConflict  ErrorCode = "BUILTIN_CONFLICT"
	CodeAlreadyExists    ErrorCode = "ALREADY_EXISTS"
)

// Error is a coded error returned from registry and executor operations.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a coded error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsError extracts an *Error from err, wrapping unknown errors as EXECUTION_ERROR.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Code: CodeExecutionError, Message: err.Error()}
}
