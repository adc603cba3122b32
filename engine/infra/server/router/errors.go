package router

import (
	"fmt"
	"net/http"
)

// Error codes
const (
	ErrInternalCode   = "INTERNAL_ERROR"
	ErrBadRequestCode = "BAD_REQUEST"
	ErrNotFoundCode   = "NOT_FOUND"
)

// RequestError represents errors that can occur during request handling
type RequestError struct {
	Reason     string
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Reason
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewRequestError creates a new RequestError
func NewRequestError(statusCode int, reason string, err error) *RequestError {
	return &RequestError{
		StatusCode: statusCode,
		Reason:     reason,
		Err:        err,
	}
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// GetErrorInfo extracts error information for the standardized response
func (e *RequestError) GetErrorInfo() *ErrorInfo {
	var details string
	if e.Err != nil {
		details = e.Err.Error()
	}
	code := ErrInternalCode
	switch e.StatusCode {
	case http.StatusBadRequest:
		code = ErrBadRequestCode
	case http.StatusNotFound:
		code = ErrNotFoundCode
	}
	return &ErrorInfo{
		Code:    code,
		Message: e.Reason,
		Details: details,
	}
}

// BadRequest builds a 400 RequestError with a formatted reason.
func BadRequest(err error, format string, args ...any) *RequestError {
	return NewRequestError(http.StatusBadRequest, fmt.Sprintf(format, args...), err)
}

// NotFound builds a 404 RequestError with a formatted reason.
func NotFound(err error, format string, args ...any) *RequestError {
	return NewRequestError(http.StatusNotFound, fmt.Sprintf(format, args...), err)
}
