package services

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/sahilchouksey/bca-library/gateway"
	"github.com/sahilchouksey/bca-library/utils/validation"
)

// Error is what services return to callers: an HTTP status and the message
// shown to the user. The underlying gateway detail is logged, not carried.
type Error struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// fail logs err under op and converts it to an *Error.
func fail(log zerolog.Logger, op string, err error) error {
	if err == nil {
		return nil
	}

	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	var formErr *validation.FormError
	if errors.As(err, &formErr) {
		return formErr
	}

	status := gateway.Code(err)
	if status == 0 {
		status = http.StatusInternalServerError
	}

	event := log.Error()
	if status < http.StatusInternalServerError {
		event = log.Warn()
	}
	event.Err(err).Str("op", op).Int("status", status).Msg("operation failed")

	return &Error{Status: status, Message: gateway.Describe(err)}
}

func badRequest(message string) error {
	return &Error{Status: http.StatusBadRequest, Message: message}
}

// StatusOf returns the HTTP status of a service error, 500 for anything else.
func StatusOf(err error) int {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Status
	}
	var formErr *validation.FormError
	if errors.As(err, &formErr) {
		return http.StatusUnprocessableEntity
	}
	if code := gateway.Code(err); code != 0 {
		return code
	}
	return http.StatusInternalServerError
}
