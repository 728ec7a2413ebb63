package http

import (
	"fmt"
	"net/http"
	"time"
)

// Error codes carried in AppError.Code.
const (
	CodeNotFound   = "ERR_NOT_FOUND"
	CodeBadRequest = "ERR_BAD_REQUEST"
	CodeBadRange   = "ERR_BAD_RANGE"
	CodeBackend    = "ERR_BACKEND"
	CodeInternal   = "ERR_INTERNAL"
)

// AppError is an error the status API reports inside the envelope.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Field: field, Message: message, Status: status}
}

// WithParam sets a single error param.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError keeps the cause for logs; it is not serialized.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func NotFoundError(message string) *AppError {
	return NewAppError(CodeNotFound, "", message, http.StatusNotFound)
}

func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return NewAppError(CodeBadRequest, "", fmt.Sprintf(format, a...), http.StatusBadRequest)
}

// RangeError reports a time window whose end precedes its start.
func RangeError(from, to time.Time) *AppError {
	return NewAppError(CodeBadRange, "to", "to is before from", http.StatusBadRequest).
		WithParam("from", from.Format(time.RFC3339)).
		WithParam("to", to.Format(time.RFC3339))
}

// BackendError reports a failing store behind an endpoint.
func BackendError(backend string, err error) *AppError {
	return NewAppError(CodeBackend, "", backend+" unavailable", http.StatusInternalServerError).
		WithParam("backend", backend).
		WithError(err)
}

func InternalError(message string) *AppError {
	return NewAppError(CodeInternal, "", message, http.StatusInternalServerError)
}
