package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrCode represents an error code
type ErrCode string

const (
	ErrCodeNetworkFailure ErrCode = "NETWORK_FAILURE"
	ErrCodeAuthRequired   ErrCode = "AUTH_REQUIRED"
	ErrCodeNotFound       ErrCode = "NOT_FOUND"
	ErrCodeBadRequest     ErrCode = "BAD_REQUEST"
	ErrCodeInternal       ErrCode = "INTERNAL_ERROR"
)

// AppError represents an application error
type AppError struct {
	Code    ErrCode
	Message string
	Status  int // HTTP status returned by the backend, 0 for transport errors
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates an error for a rejected request or a transport failure
func NewNetworkError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeNetworkFailure,
		Message: message,
		Err:     err,
	}
}

// NewAuthRequiredError creates an error for a missing or expired session
func NewAuthRequiredError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeAuthRequired,
		Message: message,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeBadRequest,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain
func CodeOf(err error) ErrCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsAuthRequired checks if the error means the session is not authenticated
func IsAuthRequired(err error) bool {
	return CodeOf(err) == ErrCodeAuthRequired
}

// IsNetworkFailure checks if the request never produced a usable response
func IsNetworkFailure(err error) bool {
	return CodeOf(err) == ErrCodeNetworkFailure
}

// IsBadRequest checks if the error is a bad request error
func IsBadRequest(err error) bool {
	return CodeOf(err) == ErrCodeBadRequest
}
