package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnknownTopic   = errors.New("unknown topic")
	ErrDuplicateTopic = errors.New("duplicate topic")
	ErrMalformedBatch = errors.New("malformed batch")
	ErrMissingColumn  = errors.New("missing required column")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnavailable    = errors.New("dependency unavailable")
	ErrInternal       = errors.New("internal error")
	ErrTimeout        = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrUnknownTopic):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateTopic):
		return http.StatusConflict
	case errors.Is(err, ErrMalformedBatch), errors.Is(err, ErrMissingColumn), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
